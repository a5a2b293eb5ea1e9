package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dsd-hamsa/powerset/pkg/utils"
)

// ParseError indicates a captured fetch export could not be turned into
// credentials, typically because an expected field is absent.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse capture: %s: %s", e.Field, e.Reason)
	}
	return "parse capture: " + e.Reason
}

// fetchOptions mirrors the options object of a Chrome "Copy as fetch (Node.js)"
// export. Only the headers matter here.
type fetchOptions struct {
	Headers map[string]string `json:"headers"`
}

// Refresher extracts fresh session credentials from captured browser network
// exports.
type Refresher struct {
	logger *zap.Logger
}

func NewRefresher(logger *zap.Logger) *Refresher {
	return &Refresher{logger: logger}
}

// Refresh parses the capture at sourceFile and returns the credentials it
// carries. The capture is a fetch(...) snippet copied from the browser's
// network tab after logging in to the platform.
func (r *Refresher) Refresh(sourceFile string) (*Credentials, error) {
	data, err := os.ReadFile(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("read capture %s: %w", sourceFile, err)
	}

	creds, err := ParseFetchExport(string(data))
	if err != nil {
		return nil, err
	}

	r.logger.Info("auth.refreshed",
		zap.String("source", sourceFile),
		zap.String("base_url", creds.BaseURL),
		zap.String("token", utils.MaskToken(creds.Token)),
		zap.Time("expires_at", creds.ExpiresAt))

	return creds, nil
}

// RefreshEnv parses the capture and persists the result to env storage.
func (r *Refresher) RefreshEnv(sourceFile, envPath string) (*Credentials, error) {
	creds, err := r.Refresh(sourceFile)
	if err != nil {
		return nil, err
	}
	if err := Save(envPath, creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// ParseFetchExport extracts credentials from the text of a captured fetch
// snippet.
func ParseFetchExport(capture string) (*Credentials, error) {
	idx := strings.Index(capture, "fetch(")
	if idx < 0 {
		return nil, &ParseError{Reason: "no fetch(...) call found"}
	}
	rest := capture[idx+len("fetch("):]

	rawURL, rest, err := readQuotedString(rest)
	if err != nil {
		return nil, &ParseError{Field: "url", Reason: err.Error()}
	}

	optsJSON, err := readObjectLiteral(rest)
	if err != nil {
		return nil, &ParseError{Field: "options", Reason: err.Error()}
	}

	var opts fetchOptions
	if err := json.Unmarshal([]byte(optsJSON), &opts); err != nil {
		return nil, &ParseError{Field: "options", Reason: "not valid JSON: " + err.Error()}
	}

	token := ""
	cookie := ""
	for name, value := range opts.Headers {
		switch strings.ToLower(name) {
		case "authorization":
			token = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(value, "Bearer"), "bearer"))
		case "cookie":
			cookie = value
		}
	}
	if token == "" {
		return nil, &ParseError{Field: "authorization", Reason: "header missing or empty"}
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &ParseError{Field: "url", Reason: "not an absolute URL"}
	}

	return &Credentials{
		Token:     token,
		Cookie:    cookie,
		BaseURL:   u.Scheme + "://" + u.Host,
		ExpiresAt: jwtExpiry(token),
	}, nil
}

// readQuotedString consumes leading whitespace and a double-quoted string,
// returning the string value and the remaining input.
func readQuotedString(s string) (string, string, error) {
	s = strings.TrimLeft(s, " \t\r\n")
	if len(s) == 0 || s[0] != '"' {
		return "", "", fmt.Errorf("expected quoted string")
	}
	end := strings.IndexByte(s[1:], '"')
	if end < 0 {
		return "", "", fmt.Errorf("unterminated string")
	}
	return s[1 : 1+end], s[2+end:], nil
}

// readObjectLiteral returns the first brace-balanced {...} region of s.
// Chrome emits the options object as valid JSON, so string-aware brace
// counting is enough.
func readObjectLiteral(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no options object found")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced options object")
}

// jwtExpiry best-effort decodes the exp claim of a JWT session token.
// Returns the zero time when the token is not a JWT or carries no exp.
func jwtExpiry(token string) time.Time {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return time.Time{}
	}
	return time.Unix(claims.Exp, 0)
}

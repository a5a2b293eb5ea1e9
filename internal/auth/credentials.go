package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
)

// Env storage keys for session credentials.
const (
	EnvToken   = "POWERTRACK_TOKEN"
	EnvCookie  = "POWERTRACK_COOKIE"
	EnvBaseURL = "POWERTRACK_BASE_URL"
	EnvExpiry  = "POWERTRACK_TOKEN_EXPIRY"
)

// Credentials is an explicit session credential object. It is produced by the
// refresher or loaded from env storage, and handed to the request client by
// reference; nothing reads ambient process state at request time.
type Credentials struct {
	Token     string
	Cookie    string
	BaseURL   string
	ExpiresAt time.Time // zero when the platform did not reveal an expiry
}

// Valid reports whether the credentials carry a token that has not expired.
func (c *Credentials) Valid() bool {
	if c == nil || c.Token == "" {
		return false
	}
	if c.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Before(c.ExpiresAt)
}

// Apply stamps the session headers onto an outbound request.
func (c *Credentials) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if c.Cookie != "" {
		req.Header.Set("Cookie", c.Cookie)
	}
	req.Header.Set("Accept", "application/json")
}

// Load reads credentials from an env storage file.
func Load(path string) (*Credentials, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env storage %s: %w", path, err)
	}

	creds := &Credentials{
		Token:   vars[EnvToken],
		Cookie:  vars[EnvCookie],
		BaseURL: vars[EnvBaseURL],
	}
	if raw := vars[EnvExpiry]; raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			creds.ExpiresAt = ts
		}
	}
	return creds, nil
}

// Save writes credentials back to an env storage file, replacing its contents.
func Save(path string, c *Credentials) error {
	vars := map[string]string{
		EnvToken:   c.Token,
		EnvCookie:  c.Cookie,
		EnvBaseURL: c.BaseURL,
	}
	if !c.ExpiresAt.IsZero() {
		vars[EnvExpiry] = c.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if err := godotenv.Write(vars, path); err != nil {
		return fmt.Errorf("write env storage %s: %w", path, err)
	}
	return nil
}

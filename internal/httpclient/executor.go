package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dsd-hamsa/powerset/internal/rate"
)

const maxBackoff = 4 * time.Second

// Backoff returns the retry sleep duration for the given attempt number.
// Delays double per attempt, capped at maxBackoff.
func Backoff(attempt int) time.Duration {
	d := 250 * time.Millisecond
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// Executor handles rate-limited, retrying HTTP execution with JSON decoding.
// Transient failures (connectivity, 429, 5xx) are retried with exponential
// backoff; 401/403 surface as *AuthError without retrying.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	retryMax     int
	tag          string
	backoff      func(int) time.Duration
	errorHandler func(status int, body []byte) error
}

// New creates an Executor. errorHandler is called on non-auth 4xx responses to
// produce a platform-specific error. If nil, a default error is returned.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	retryMax int,
	tag string,
	errorHandler func(status int, body []byte) error,
) *Executor {
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		retryMax:     retryMax,
		tag:          tag,
		backoff:      Backoff,
		errorHandler: errorHandler,
	}
}

// Response carries the final status and raw body of an executed request, for
// request-log persistence alongside the decoded value.
type Response struct {
	Status int
	Body   []byte
}

// DoJSON executes req with rate limiting and retries, then JSON-decodes the
// response into out. rateLimitKey scopes the rate limiter per API host.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) (*Response, error) {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}

		start := time.Now()
		resp, err := e.http.Do(req)
		if err != nil {
			lastErr = &NetworkError{Err: err}
			e.logger.Warn(e.tag+".http_failed",
				zap.String("url", req.URL.String()),
				zap.Error(err),
				zap.Int("attempt", attempt))
			time.Sleep(e.backoff(attempt))
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		elapsed := time.Since(start)

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			e.logger.Warn(e.tag+".auth_rejected",
				zap.Int("status", resp.StatusCode),
				zap.String("url", req.URL.String()))
			return &Response{Status: resp.StatusCode, Body: body}, &AuthError{Status: resp.StatusCode, Endpoint: req.URL.Path}

		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp, e.backoff(attempt))
			e.logger.Warn(e.tag+".rate_limited",
				zap.String("url", req.URL.String()),
				zap.Duration("wait", wait),
				zap.Int("attempt", attempt))
			lastErr = fmt.Errorf("%s throttled: %d", e.tag, resp.StatusCode)
			time.Sleep(wait)
			continue

		case resp.StatusCode >= 500:
			e.logger.Warn(e.tag+".server_error",
				zap.Int("status", resp.StatusCode),
				zap.String("url", req.URL.String()),
				zap.Duration("latency", elapsed))
			lastErr = fmt.Errorf("%s server error: %d", e.tag, resp.StatusCode)
			time.Sleep(e.backoff(attempt))
			continue

		case resp.StatusCode >= 400:
			res := &Response{Status: resp.StatusCode, Body: body}
			if e.errorHandler != nil {
				return res, e.errorHandler(resp.StatusCode, body)
			}
			return res, fmt.Errorf("%s returned %d", e.tag, resp.StatusCode)
		}

		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				e.logger.Warn(e.tag+".decode_failed",
					zap.Error(err),
					zap.String("url", req.URL.String()),
					zap.String("body", string(body)))
				return &Response{Status: resp.StatusCode, Body: body}, fmt.Errorf("decode failed: %w", err)
			}
		}

		e.logger.Debug(e.tag+".http_success",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed))

		return &Response{Status: resp.StatusCode, Body: body}, nil
	}

	return nil, &ExhaustedRetriesError{Attempts: e.retryMax + 1, Last: lastErr}
}

// retryAfter reads a Retry-After seconds header, falling back to def when the
// header is absent or unreasonable.
func retryAfter(resp *http.Response, def time.Duration) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return def
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return def
	}
	d := time.Duration(secs) * time.Second
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

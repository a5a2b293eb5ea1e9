package powertrack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dsd-hamsa/powerset/internal/auth"
	"github.com/dsd-hamsa/powerset/internal/httpclient"
	"github.com/dsd-hamsa/powerset/internal/metrics"
	"github.com/dsd-hamsa/powerset/internal/rate"
	"github.com/dsd-hamsa/powerset/internal/store"
)

// API endpoint prefixes.
const (
	siteHardwarePath = "/api/view/sitehardwareproduction/"
	siteAlertsPath   = "/api/view/sitealerts/"
	siteModelingPath = "/api/edit/modeling/"
)

// Options configures a Client.
type Options struct {
	RetryMax    int
	Timeout     time.Duration
	CaptureFile string // captured browser fetch export, consulted on auth rejection
	EnvPath     string // env storage updated after a successful refresh
}

// Client issues authenticated requests against the PowerTrack API. Credentials
// are an explicit object shared by reference with the caller; the client
// mutates them in place when an auth rejection forces a refresh. Requests are
// issued strictly sequentially.
type Client struct {
	logger    *zap.Logger
	exec      *httpclient.Executor
	creds     *auth.Credentials
	refresher *auth.Refresher
	opts      Options
	st        store.Store // optional request log sink

	mu sync.Mutex // serializes request issuance
}

// NewClient constructs a PowerTrack client around the given credentials.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, creds *auth.Credentials, opts Options) *Client {
	if opts.RetryMax <= 0 {
		opts.RetryMax = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: opts.Timeout}
	exec := httpclient.New(logger, rateMgr, httpClient, opts.RetryMax, "powertrack", func(status int, body []byte) error {
		if status == http.StatusNotFound {
			return fmt.Errorf("powertrack returned 404: endpoint may not exist")
		}
		return fmt.Errorf("powertrack returned %d: %s", status, body)
	})
	return &Client{
		logger:    logger,
		exec:      exec,
		creds:     creds,
		refresher: auth.NewRefresher(logger),
		opts:      opts,
	}
}

// AttachStore routes a copy of every completed request into the store's
// append-only request log.
func (c *Client) AttachStore(st store.Store) {
	c.st = st
}

// Credentials exposes the session credentials the client operates on.
func (c *Client) Credentials() *auth.Credentials {
	return c.creds
}

// Send issues an authenticated request and returns the raw JSON response.
// On an auth rejection it refreshes credentials from the capture file once
// and retries once; a second rejection propagates.
func (c *Client) Send(ctx context.Context, endpoint, method string, payload any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.do(ctx, endpoint, method, payload)

	var authErr *httpclient.AuthError
	if errors.As(err, &authErr) {
		if refreshErr := c.refreshCredentials(); refreshErr != nil {
			c.logger.Error("powertrack.refresh_failed", zap.Error(refreshErr))
			return nil, err
		}
		raw, err = c.do(ctx, endpoint, method, payload)
	}
	return raw, err
}

// SiteHardware fetches the hardware inventory of a site.
func (c *Client) SiteHardware(ctx context.Context, siteKey string) ([]Device, error) {
	raw, err := c.Send(ctx, siteHardwarePath+siteKey, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var devices []Device
	if err := json.Unmarshal(raw, &devices); err != nil {
		return nil, fmt.Errorf("decode hardware for %s: %w", siteKey, err)
	}
	return devices, nil
}

// SiteAlerts fetches the alerts of a site.
func (c *Client) SiteAlerts(ctx context.Context, siteKey string) ([]Alert, error) {
	raw, err := c.Send(ctx, siteAlertsPath+siteKey, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var alerts []Alert
	if err := json.Unmarshal(raw, &alerts); err != nil {
		return nil, fmt.Errorf("decode alerts for %s: %w", siteKey, err)
	}
	return alerts, nil
}

// SiteModeling fetches the modeling parameters of a site.
func (c *Client) SiteModeling(ctx context.Context, siteKey string) (*Modeling, error) {
	raw, err := c.Send(ctx, siteModelingPath+siteKey, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var modeling Modeling
	if err := json.Unmarshal(raw, &modeling); err != nil {
		return nil, fmt.Errorf("decode modeling for %s: %w", siteKey, err)
	}
	return &modeling, nil
}

func (c *Client) do(ctx context.Context, endpoint, method string, payload any) (json.RawMessage, error) {
	if !c.creds.Valid() {
		return nil, &httpclient.AuthError{Status: http.StatusUnauthorized, Endpoint: endpoint}
	}

	var payloadJSON []byte
	var body *bytes.Reader
	if payload != nil {
		var err error
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(payloadJSON)
	}

	url := strings.TrimRight(c.creds.BaseURL, "/") + endpoint
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, url, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return nil, err
	}
	c.creds.Apply(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	var raw json.RawMessage
	res, doErr := c.exec.DoJSON(ctx, req, c.creds.BaseURL, &raw)

	epClass := endpointClass(endpoint)
	metrics.ObserveAPIRequest(epClass, method, start)
	status := 0
	var responseBody string
	if res != nil {
		status = res.Status
		responseBody = string(res.Body)
	}
	metrics.IncAPIRequest(epClass, method, fmt.Sprint(status))

	c.appendRequestLog(ctx, store.RequestRecord{
		ID:        uuid.NewString(),
		Endpoint:  endpoint,
		Method:    method,
		Payload:   string(payloadJSON),
		Response:  responseBody,
		Status:    status,
		LatencyMS: time.Since(start).Milliseconds(),
		CreatedAt: start.UTC(),
	})

	if doErr != nil {
		return nil, doErr
	}
	return raw, nil
}

// refreshCredentials re-parses the capture file and persists the result,
// mutating the shared credential object in place.
func (c *Client) refreshCredentials() error {
	if c.opts.CaptureFile == "" {
		return fmt.Errorf("no capture file configured")
	}

	var fresh *auth.Credentials
	var err error
	if c.opts.EnvPath != "" {
		fresh, err = c.refresher.RefreshEnv(c.opts.CaptureFile, c.opts.EnvPath)
	} else {
		fresh, err = c.refresher.Refresh(c.opts.CaptureFile)
	}
	if err != nil {
		metrics.IncAuthRefresh("error")
		return err
	}

	*c.creds = *fresh
	metrics.IncAuthRefresh("ok")
	return nil
}

func (c *Client) appendRequestLog(ctx context.Context, rec store.RequestRecord) {
	if c.st == nil {
		return
	}
	if err := c.st.AppendRequest(ctx, rec); err != nil {
		metrics.IncStoreError("append_request")
		c.logger.Warn("powertrack.request_log_failed", zap.Error(err))
	}
}

// endpointClass maps an endpoint to a low-cardinality metrics label.
func endpointClass(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, siteHardwarePath):
		return "site_hardware"
	case strings.HasPrefix(endpoint, siteAlertsPath):
		return "site_alerts"
	case strings.HasPrefix(endpoint, siteModelingPath):
		return "modeling"
	default:
		return "other"
	}
}

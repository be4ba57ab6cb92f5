// Package coach is the HTTP client for the wellness coach service.
package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wellnav/internal/textutil"
)

const (
	// DefaultBaseURL is used when no base URL is configured.
	DefaultBaseURL = "http://localhost:8000"

	maxResponseBytes  = 1 << 20
	maxErrorBodyChars = 240
	requestIDHeader   = "X-Request-ID"
)

// Client talks to the /coach, /sync and /health endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	newID      func() string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. The caller's client keeps
// its own timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger attaches a logger for request outcomes.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a client for baseURL. A non-positive timeout falls back to 30s.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	c := &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Coach sends one chat message with profile context and decodes the result.
func (c *Client) Coach(ctx context.Context, req CoachRequest) (CoachResponse, error) {
	var wire coachResponseWire
	if err := c.roundTrip(ctx, http.MethodPost, "/coach", req, &wire); err != nil {
		return CoachResponse{}, err
	}
	return validateCoachResponse(wire)
}

// Sync records a completed milestone. The response body is not inspected.
func (c *Client) Sync(ctx context.Context, req SyncRequest) error {
	return c.roundTrip(ctx, http.MethodPost, "/sync", req, nil)
}

// Health checks that the coach service is up.
func (c *Client) Health(ctx context.Context) error {
	var out healthResponse
	if err := c.roundTrip(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(out.Status), "ok") {
		return fmt.Errorf("/health reported status %q", out.Status)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, out any) error {
	requestID := c.newID()
	logger := c.logger.With(zap.String("endpoint", path), zap.String("request_id", requestID))
	started := time.Now()

	var bodyReader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling %s request: %w", path, err)
		}
		bodyReader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("building %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("coach request failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		logger.Warn("coach response read failed", zap.Error(err))
		return fmt.Errorf("reading %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{
			Endpoint: path,
			Code:     resp.StatusCode,
			Body:     textutil.CompactSingleLine(string(payload), maxErrorBodyChars),
		}
		logger.Warn("coach returned error status", zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(started)))
		return statusErr
	}
	logger.Debug("coach request completed", zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(started)))
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		logger.Warn("coach returned non-json payload", zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, path, err)
	}
	return nil
}

func validateCoachResponse(wire coachResponseWire) (CoachResponse, error) {
	if wire.FocusArea == nil || strings.TrimSpace(*wire.FocusArea) == "" {
		return CoachResponse{}, fmt.Errorf("%w: focus_area missing", ErrMalformedResponse)
	}
	if wire.ReadyToSync == nil {
		return CoachResponse{}, fmt.Errorf("%w: ready_to_sync missing", ErrMalformedResponse)
	}
	return CoachResponse{
		FocusArea:          strings.TrimSpace(*wire.FocusArea),
		ReadyToSync:        *wire.ReadyToSync,
		MissingField:       deref(wire.MissingField),
		NextQuestion:       deref(wire.NextQuestion),
		RecommendedActions: wire.RecommendedActions,
		SafetyFlag:         deref(wire.SafetyFlag),
	}, nil
}

// IsMalformed reports whether err came from a response that failed decoding.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}

// Package upstream is the reusable HTTP client used to call named upstream
// services (inventory, sales, analytics-callbacks).
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrorKind classifies why a Request failed, decoded into a static type at
// the HTTP boundary instead of left as a dynamic/duck-typed response.
type ErrorKind string

const (
	ErrKindTimeout           ErrorKind = "timeout"
	ErrKindConnectionRefused ErrorKind = "connection_refused"
	ErrKindHTTP4xx           ErrorKind = "http_4xx"
	ErrKindHTTP5xx           ErrorKind = "http_5xx"
	ErrKindDecode            ErrorKind = "decode_error"
)

// ClientError is the typed error every Request failure unwraps to.
type ClientError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ClientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream error (%s, status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream error (%s): %v", e.Kind, e.Err)
}

func (e *ClientError) Unwrap() error { return e.Err }

// retryable reports whether this error kind qualifies for retry.
func (e *ClientError) retryable() bool {
	switch e.Kind {
	case ErrKindTimeout, ErrKindConnectionRefused, ErrKindHTTP5xx:
		return true
	case ErrKindHTTP4xx:
		return e.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// Response is a decoded upstream response.
type Response struct {
	StatusCode int
	Body       []byte
}

// ServiceConfig is one named upstream's base URL and per-call defaults.
type ServiceConfig struct {
	BaseURL        string
	DefaultTimeout time.Duration
}

// Client calls named upstream services with retry/backoff.
type Client struct {
	http       *http.Client
	logger     *zap.Logger
	services   map[string]ServiceConfig
	maxRetries int
	limiter    *rate.Limiter
}

// New constructs a Client. services maps a logical service name (e.g.
// "inventory") to its base URL and default timeout.
func New(services map[string]ServiceConfig, maxRetries int, logger *zap.Logger) *Client {
	return &Client{
		http:       &http.Client{},
		logger:     logger,
		services:   services,
		maxRetries: maxRetries,
		// Governs the spacing between retry attempts across all calls, so a
		// thundering herd of retries from one bad upstream doesn't itself
		// become a load spike.
		limiter: rate.NewLimiter(rate.Limit(20), 20),
	}
}

// Request calls method path on the named service, with query parameters and
// an optional JSON body, retrying transient failures with exponential
// backoff. timeout of 0 uses the service's configured default. GET/HEAD
// calls always qualify for retry; other methods only retry when the caller
// passes retryable=true, marking the call as safe to repeat (e.g. a POST
// that is itself idempotent server-side).
func (c *Client) Request(ctx context.Context, service, method, path string, query url.Values, body interface{}, timeout time.Duration, retryable bool) (*Response, error) {
	svc, ok := c.services[service]
	if !ok {
		return nil, fmt.Errorf("unknown upstream service %q", service)
	}
	if timeout == 0 {
		timeout = svc.DefaultTimeout
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, &ClientError{Kind: ErrKindDecode, Err: fmt.Errorf("failed to encode request body: %w", err)}
		}
	}

	idempotent := method == http.MethodGet || method == http.MethodHead
	attempts := 1
	if idempotent || retryable {
		attempts = c.maxRetries + 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := c.waitBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		resp, err := c.attempt(ctx, svc.BaseURL, method, path, query, payload, timeout)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		var clientErr *ClientError
		if !errors.As(err, &clientErr) || !clientErr.retryable() {
			return nil, err
		}
		c.logger.Warn("retrying upstream request",
			zap.String("service", service), zap.String("path", path),
			zap.Int("attempt", attempt+1), zap.Error(err))
	}

	return nil, lastErr
}

func (c *Client) waitBackoff(ctx context.Context, attempt int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	base := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	jitter := time.Duration(rand.Int63n(int64(base) + 1))
	select {
	case <-time.After(base + jitter/2):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) attempt(ctx context.Context, baseURL, method, path string, query url.Values, payload []byte, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fullURL := baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, &ClientError{Kind: ErrKindDecode, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &ClientError{Kind: ErrKindTimeout, Err: err}
		}
		return nil, &ClientError{Kind: ErrKindConnectionRefused, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ClientError{Kind: ErrKindDecode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &ClientError{Kind: ErrKindHTTP5xx, StatusCode: resp.StatusCode, Err: fmt.Errorf("upstream returned %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &ClientError{Kind: ErrKindHTTP4xx, StatusCode: resp.StatusCode, Err: fmt.Errorf("upstream returned %d", resp.StatusCode)}
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// HealthCheck probes the named service's liveness path and reports whether
// it is reachable within the configured health-probe timeout.
func (c *Client) HealthCheck(ctx context.Context, service string, probeTimeout time.Duration) bool {
	_, err := c.Request(ctx, service, http.MethodGet, "/health", nil, nil, probeTimeout, false)
	return err == nil
}

package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestClientError_RetryableClassification(t *testing.T) {
	assert.True(t, (&ClientError{Kind: ErrKindTimeout}).retryable())
	assert.True(t, (&ClientError{Kind: ErrKindConnectionRefused}).retryable())
	assert.True(t, (&ClientError{Kind: ErrKindHTTP5xx}).retryable())
	assert.False(t, (&ClientError{Kind: ErrKindDecode}).retryable())
	assert.False(t, (&ClientError{Kind: ErrKindHTTP4xx, StatusCode: http.StatusBadRequest}).retryable())
	assert.True(t, (&ClientError{Kind: ErrKindHTTP4xx, StatusCode: http.StatusTooManyRequests}).retryable())
}

func TestRequest_UnknownServiceErrors(t *testing.T) {
	c := New(map[string]ServiceConfig{}, 2, zap.NewNop())
	_, err := c.Request(context.Background(), "missing", http.MethodGet, "/x", nil, nil, 0, false)
	assert.Error(t, err)
}

func TestRequest_SucceedsOnFirstTry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(map[string]ServiceConfig{"inventory": {BaseURL: srv.URL, DefaultTimeout: time.Second}}, 2, zap.NewNop())
	resp, err := c.Request(context.Background(), "inventory", http.MethodGet, "/ping", nil, nil, 0, false)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequest_RetriesIdempotentGetOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(map[string]ServiceConfig{"inventory": {BaseURL: srv.URL, DefaultTimeout: time.Second}}, 3, zap.NewNop())
	resp, err := c.Request(context.Background(), "inventory", http.MethodGet, "/ping", nil, nil, 0, false)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRequest_DoesNotRetryNonIdempotentPostByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(map[string]ServiceConfig{"sales": {BaseURL: srv.URL, DefaultTimeout: time.Second}}, 3, zap.NewNop())
	_, err := c.Request(context.Background(), "sales", http.MethodPost, "/orders", nil, map[string]string{"a": "b"}, 0, false)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRequest_RetriesPostWhenExplicitlyMarkedRetryable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(map[string]ServiceConfig{"sales": {BaseURL: srv.URL, DefaultTimeout: time.Second}}, 3, zap.NewNop())
	resp, err := c.Request(context.Background(), "sales", http.MethodPost, "/orders/replay", nil, map[string]string{"a": "b"}, 0, true)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRequest_DoesNotRetryHTTP4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(map[string]ServiceConfig{"inventory": {BaseURL: srv.URL, DefaultTimeout: time.Second}}, 3, zap.NewNop())
	_, err := c.Request(context.Background(), "inventory", http.MethodGet, "/missing", nil, nil, 0, false)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var clientErr *ClientError
	assert.ErrorAs(t, err, &clientErr)
	assert.Equal(t, ErrKindHTTP4xx, clientErr.Kind)
}

func TestHealthCheck_TrueWhenReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(map[string]ServiceConfig{"inventory": {BaseURL: srv.URL, DefaultTimeout: time.Second}}, 0, zap.NewNop())
	assert.True(t, c.HealthCheck(context.Background(), "inventory", time.Second))
}

func TestHealthCheck_FalseWhenUnreachable(t *testing.T) {
	c := New(map[string]ServiceConfig{"inventory": {BaseURL: "http://127.0.0.1:1", DefaultTimeout: 200 * time.Millisecond}}, 0, zap.NewNop())
	assert.False(t, c.HealthCheck(context.Background(), "inventory", 200*time.Millisecond))
}

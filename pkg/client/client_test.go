package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithRetryWait(time.Millisecond, 2*time.Millisecond)}, opts...)
	c, err := NewClient(server.URL, opts...)
	require.NoError(t, err)
	return c
}

type testLogger struct {
	count atomic.Int32
}

func (l *testLogger) Debugf(string, ...interface{}) { l.count.Add(1) }
func (l *testLogger) Infof(string, ...interface{})  { l.count.Add(1) }
func (l *testLogger) Errorf(string, ...interface{}) { l.count.Add(1) }

func TestNewClient(t *testing.T) {
	c, err := NewClient("http://api.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com", c.baseURL)
	assert.Equal(t, 3, c.retryMax)
	assert.Contains(t, c.userAgent, "scentiq-go-sdk/")
	assert.Empty(t, c.apiKey)
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, u := range []string{"", "ftp://invalid", "invalid-url"} {
		_, err := NewClient(u)
		assert.True(t, errors.IsValidation(err), "url %q", u)
	}
}

func TestOptions(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}
	l := &testLogger{}
	c, err := NewClient("https://api.example.com",
		WithHTTPClient(hc),
		WithAPIKey("k"),
		WithLogger(l),
		WithRetryMax(5),
		WithRetryWait(time.Second, 10*time.Second),
		WithUserAgent("custom/1.0"),
	)
	require.NoError(t, err)
	assert.Same(t, hc, c.httpClient)
	assert.Equal(t, "k", c.apiKey)
	assert.Same(t, l, c.logger)
	assert.Equal(t, 5, c.retryMax)
	assert.Equal(t, time.Second, c.retryWaitMin)
	assert.Equal(t, 10*time.Second, c.retryWaitMax)
	assert.Equal(t, "custom/1.0", c.userAgent)
}

func TestOptions_IgnoreInvalidValues(t *testing.T) {
	c, err := NewClient("https://api.example.com",
		WithHTTPClient(nil),
		WithLogger(nil),
		WithRetryMax(-1),
		WithRetryWait(0, time.Second),
		WithUserAgent(""),
	)
	require.NoError(t, err)
	assert.NotNil(t, c.httpClient)
	assert.IsType(t, noopLogger{}, c.logger)
	assert.Equal(t, 3, c.retryMax)
	assert.Equal(t, 500*time.Millisecond, c.retryWaitMin)
	assert.Contains(t, c.userAgent, "scentiq-go-sdk/")

	c, err = NewClient("https://api.example.com", WithRetryWait(2*time.Second, time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, c.retryWaitMin)
	assert.Equal(t, 5*time.Second, c.retryWaitMax, "max below min is ignored")
}

func TestDo_Headers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Contains(t, r.Header.Get("User-Agent"), "scentiq-go-sdk/")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok": true}`))
	}, WithAPIKey("secret"))

	var out struct{ OK bool }
	require.NoError(t, c.post(context.Background(), "/x", map[string]int{"a": 1}, &out))
	assert.True(t, out.OK)
}

func TestDo_NoAuthorizationWithoutKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Content-Type"), "no body, no content type")
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.delete(context.Background(), "x"))
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	require.NoError(t, c.get(context.Background(), "/x", nil))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_GivesUpAfterRetryMax(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code": "COMMON_001", "message": "internal error"}`))
	}, WithRetryMax(2))

	err := c.get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsServerError())
	assert.Equal(t, "COMMON_001", apiErr.Code)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code": "COMMON_004", "message": "not found"}`))
	})

	err := c.get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.False(t, apiErr.IsAnalysisFailure())
	assert.Equal(t, "not found", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_NonJSONErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}, WithRetryMax(0))

	err := c.get(context.Background(), "/x", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.Contains(t, apiErr.Error(), "HTTP 502")
}

func TestDo_RateLimitedHonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	require.NoError(t, c.get(context.Background(), "/x", nil))
	assert.Equal(t, int32(2), calls.Load())
}

func TestDo_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithRetryWait(time.Hour, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := c.get(ctx, "/x", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_LogsRequests(t *testing.T) {
	l := &testLogger{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, WithLogger(l))
	require.NoError(t, c.get(context.Background(), "/x", nil))
	assert.Positive(t, l.count.Load())
}

func TestCalculateBackoff(t *testing.T) {
	c := &Client{retryWaitMin: 100 * time.Millisecond, retryWaitMax: 300 * time.Millisecond}

	b1 := c.calculateBackoff(1)
	assert.GreaterOrEqual(t, b1, 100*time.Millisecond)
	assert.Less(t, b1, 125*time.Millisecond)

	b3 := c.calculateBackoff(3)
	assert.GreaterOrEqual(t, b3, 300*time.Millisecond, "capped at max")
	assert.Less(t, b3, 375*time.Millisecond)
}

func TestParseAPIError_ReportFailure(t *testing.T) {
	e := parseAPIError(http.StatusServiceUnavailable, "rid",
		[]byte(`{"success": false, "failure": {"kind": "unavailable", "code": "COL_004", "message": "no catalog"}}`))
	assert.True(t, e.IsAnalysisFailure())
	assert.Equal(t, "COL_004", e.Code)
	assert.Equal(t, "unavailable", e.Kind)
	assert.Contains(t, e.Error(), "COL_004/unavailable")
}

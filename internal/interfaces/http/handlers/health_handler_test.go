package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthSpy struct {
	mu    sync.Mutex
	state map[string]bool
}

func (h *healthSpy) SetComponentHealth(component string, up bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state[component] = up
}

func serve(h http.HandlerFunc) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler("1.2.3", CheckerFunc("postgres", func(context.Context) error {
		return errors.New("must not be called")
	}))
	rec := serve(h.Liveness)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHealthHandler_Readiness(t *testing.T) {
	spy := &healthSpy{state: map[string]bool{}}
	ok := CheckerFunc("redis", func(context.Context) error { return nil })
	down := CheckerFunc("kafka", func(context.Context) error { return errors.New("no brokers") })

	rec := serve(NewHealthHandler("v", ok).WithRecorder(spy).Readiness)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(NewHealthHandler("v", ok, down).WithRecorder(spy).Readiness)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "healthy", resp.Components["redis"].Status)
	assert.Equal(t, "unhealthy", resp.Components["kafka"].Status)
	assert.Equal(t, "no brokers", resp.Components["kafka"].Error)

	assert.Equal(t, map[string]bool{"redis": true, "kafka": false}, spy.state)
}

func TestHealthHandler_ReadinessWithoutCheckers(t *testing.T) {
	rec := serve(NewHealthHandler("v").Readiness)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestHealthHandler_Detailed(t *testing.T) {
	down := CheckerFunc("milvus", func(context.Context) error { return errors.New("timeout") })
	rec := serve(NewHealthHandler("v", down).Detailed)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp DetailedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Contains(t, resp.Components, "milvus")
}

package opensearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// newTestClient builds a client against srv without the connect-time ping.
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := newClient(ClientConfig{
		Addresses:      []string{srv.URL},
		MaxRetries:     1,
		RequestTimeout: time.Second,
	}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func statusServer(t *testing.T, code int) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, ValidateConfig(ClientConfig{Addresses: []string{"http://localhost:9200"}}))
	assert.True(t, apperrors.IsValidation(ValidateConfig(ClientConfig{})))
	assert.Error(t, ValidateConfig(ClientConfig{Addresses: []string{"x"}, MaxRetries: -1}))
	assert.Error(t, ValidateConfig(ClientConfig{Addresses: []string{"x"}, RequestTimeout: -time.Second}))
}

func TestClientConfigFrom(t *testing.T) {
	cfg := ClientConfigFrom(config.OpenSearchConfig{Addresses: []string{"http://os:9200"}, Username: "admin", InsecureSkipVerify: true})
	assert.Equal(t, []string{"http://os:9200"}, cfg.Addresses)
	assert.Equal(t, "admin", cfg.Username)
	assert.True(t, cfg.InsecureSkipVerify)
}

func TestNewClient_Success(t *testing.T) {
	srv := statusServer(t, http.StatusOK)

	c, err := NewClient(ClientConfig{Addresses: []string{srv.URL}}, nil)
	require.NoError(t, err)
	assert.True(t, c.IsHealthy())
	require.NoError(t, c.Close())
}

func TestNewClient_PingFailure(t *testing.T) {
	srv := statusServer(t, http.StatusUnauthorized)

	_, err := NewClient(ClientConfig{Addresses: []string{srv.URL}}, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable))
}

func TestClient_PingTracksHealth(t *testing.T) {
	var code atomic.Int32
	code.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(code.Load()))
	}))
	defer srv.Close()
	c := newTestClient(t, srv)

	require.NoError(t, c.Ping(context.Background()))
	assert.True(t, c.IsHealthy())

	code.Store(http.StatusForbidden)
	assert.Error(t, c.Ping(context.Background()))
	assert.False(t, c.IsHealthy())
}

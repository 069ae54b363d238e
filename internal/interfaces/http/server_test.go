package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
)

func TestNewServer(t *testing.T) {
	h := http.NewServeMux()
	s := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 8080, ReadTimeout: time.Second}, h, nil)

	assert.Equal(t, "127.0.0.1:8080", s.Addr())
	assert.Equal(t, 30*time.Second, s.shutdownTimeout)
	assert.Equal(t, time.Second, s.srv.ReadTimeout)
}

func TestServer_ServeAndStop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "pong") })
	s := NewServer(config.ServerConfig{ShutdownTimeout: time.Second}, mux, nil)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	require.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, <-done)
}

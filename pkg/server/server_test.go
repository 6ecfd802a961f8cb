package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeStopsOnCancel(t *testing.T) {
	srv := New(Config{
		ListenAddress:   "127.0.0.1:0",
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     time.Second,
		ShutdownTimeout: time.Second,
	}, http.NotFoundHandler())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	// Give the listener a moment to bind, then trigger shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}

func TestServeReportsBindFailure(t *testing.T) {
	srv := New(Config{
		ListenAddress:   "256.256.256.256:99999",
		ShutdownTimeout: time.Second,
	}, http.NotFoundHandler())

	err := srv.Serve(context.Background())
	require.Error(t, err)
}

func TestNewPanicsOnNilHandler(t *testing.T) {
	assert.Panics(t, func() { New(Config{}, nil) })
}

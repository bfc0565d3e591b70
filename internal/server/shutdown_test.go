package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/config"
)

func testGracefulServer() *GracefulServer {
	cfg := &config.Config{Server: config.ServerConfig{ShutdownTimeout: 5 * time.Second}}
	httpServer := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGracefulServer(httpServer, logger, cfg)
}

func TestGracefulServer_RunStopsWorkersAndRunsHooks(t *testing.T) {
	gs := testGracefulServer()

	var workerStopped, hookRan atomic.Bool
	started := make(chan struct{})
	gs.RegisterWorker(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		workerStopped.Store(true)
		return nil
	})
	gs.RegisterShutdownHook(func(ctx context.Context) error {
		hookRan.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Run(ctx) }()

	<-started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, workerStopped.Load())
	assert.True(t, hookRan.Load())
}

func TestGracefulServer_HookErrorIsReturned(t *testing.T) {
	gs := testGracefulServer()
	hookErr := errors.New("flush failed")
	gs.RegisterShutdownHook(func(ctx context.Context) error { return hookErr })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gs.Run(ctx)
	assert.ErrorIs(t, err, hookErr)
}

func TestGracefulServer_ListenFailure(t *testing.T) {
	gs := testGracefulServer()
	gs.server.Addr = "256.0.0.1:bad"

	err := gs.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server failed")
}

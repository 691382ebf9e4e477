package slackbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// StatusReporter is what the health endpoints probe. *Bot implements it.
type StatusReporter interface {
	IsConnected() bool
	IsReady() bool
}

// HealthServer provides HTTP health endpoints for Kubernetes probes.
type HealthServer struct {
	status StatusReporter
	port   int
	logger *slog.Logger
}

// NewHealthServer creates a new health server for the given bot. A nil
// logger means slog.Default().
func NewHealthServer(status StatusReporter, port int, logger *slog.Logger) *HealthServer {
	return &HealthServer{
		status: status,
		port:   port,
		logger: componentLogger(logger, "health"),
	}
}

// Handler returns the probe routes.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// /healthz - liveness probe: checks if the bot is connected to Slack
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if h.status.IsConnected() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("disconnected"))
		}
	})

	// /readyz - readiness probe: ready once the event loop runs. A brief
	// disconnect does not flip it since Socket Mode redelivers unacked events.
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if h.status.IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("starting"))
		}
	})

	return mux
}

// Start begins serving health endpoints and blocks until ctx is cancelled.
func (h *HealthServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", h.port))
	if err != nil {
		return fmt.Errorf("health server listen: %w", err)
	}
	return h.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (h *HealthServer) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	h.logger.Info("serving health endpoints", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		h.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("health server error: %w", err)
	}
}

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

// ShutdownTimeout bounds how long in-flight requests may take to drain.
var ShutdownTimeout = 10 * time.Second

// Run serves until ctx is canceled or SIGINT/SIGTERM arrives, then drains.
// A listener failure is returned immediately.
func (s *Server) Run(ctx context.Context) error {
	stopCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() { served <- s.Start() }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-stopCtx.Done():
	}

	if ctx.Err() != nil {
		s.logger.Info("shutting down", "reason", "context canceled")
	} else {
		s.logger.Info("shutting down", "reason", "signal")
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(drainCtx); err != nil {
		return err
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

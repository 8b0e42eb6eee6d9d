package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kocoro-lab/research-orchestrator/internal/circuitbreaker"
)

// Run serves the public API and the admin endpoints, runs the Temporal
// worker when enabled and watches the template directory, until ctx is
// cancelled or one of them fails.
func (c *Components) Run(ctx context.Context) error {
	public := &http.Server{
		Addr:              ":" + strconv.Itoa(c.Config.Server.Port),
		Handler:           c.PublicHandler(),
		ReadHeaderTimeout: 10 * time.Second,
		// research runs can take minutes
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	admin := &http.Server{
		Addr:         ":" + strconv.Itoa(c.Config.Server.HealthPort),
		Handler:      c.AdminHandler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(public, "Public HTTP server", c.Logger) })
	g.Go(func() error { return serve(admin, "Admin HTTP server", c.Logger) })
	circuitbreaker.StartMetricsCollection(ctx, 15*time.Second)
	g.Go(func() error {
		if err := c.WatchTemplates(ctx); err != nil {
			return fmt.Errorf("watch templates: %w", err)
		}
		return nil
	})

	if c.Temporal != nil {
		w, err := c.NewTemporalWorker()
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
		c.Logger.Info("Temporal worker started", zap.String("queue", c.Config.Temporal.TaskQueue))
		defer w.Stop()
	}

	g.Go(func() error {
		<-ctx.Done()
		c.Logger.Info("Shutting down research orchestrator")
		timeout := c.Config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return errors.Join(public.Shutdown(sctx), admin.Shutdown(sctx))
	})

	return g.Wait()
}

func serve(s *http.Server, name string, logger *zap.Logger) error {
	logger.Info(name+" listening", zap.String("address", s.Addr))
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

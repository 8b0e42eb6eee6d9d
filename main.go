package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/config"
	"github.com/Kocoro-lab/research-orchestrator/internal/logging"
	"github.com/Kocoro-lab/research-orchestrator/internal/server"
	"github.com/Kocoro-lab/research-orchestrator/internal/tracing"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tracing.Initialize(cfg.Tracing, logger); err != nil {
		logger.Warn("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	components, err := server.Build(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build research orchestrator", zap.Error(err))
	}
	defer components.Close()

	logger.Info("Starting research orchestrator",
		zap.Int("port", cfg.Server.Port),
		zap.Int("health_port", cfg.Server.HealthPort),
		zap.String("worker_mode", cfg.Workers.Mode),
		zap.String("submitter", cfg.Submitter),
		zap.Bool("temporal", cfg.Temporal.Enabled),
	)
	if err := components.Run(ctx); err != nil {
		logger.Error("Research orchestrator stopped with error", zap.Error(err))
		return
	}
	logger.Info("Research orchestrator stopped")
}

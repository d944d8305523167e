package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JarvisScienz/progress-tracker/internal/config"
	"github.com/JarvisScienz/progress-tracker/internal/logging"
	"github.com/JarvisScienz/progress-tracker/internal/outbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Must(cfg.LogLevel, cfg.LogDevelopment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, logger, cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("dlq manager metrics listening", zap.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	logger.Info("dlq manager started",
		zap.Duration("interval", cfg.DLQPollInterval),
		zap.Int("max_retries", cfg.DLQMaxRetries),
		zap.Int("batch_size", cfg.DLQBatchSize),
	)
	manager.Run(ctx, cfg.DLQPollInterval, cfg.DLQBatchSize)
	logger.Info("dlq manager received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}
}

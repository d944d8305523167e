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
	"github.com/JarvisScienz/progress-tracker/internal/domain"
	"github.com/JarvisScienz/progress-tracker/internal/logging"
	"github.com/JarvisScienz/progress-tracker/internal/persistence/postgres"
	"github.com/JarvisScienz/progress-tracker/internal/reminder"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Must(cfg.LogLevel, cfg.LogDevelopment)
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("invalid timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	repo := postgres.NewRepository(pool)
	service := domain.NewService(repo, repo, domain.WithLocation(loc))
	sweeper := reminder.NewSweeper(service, reminder.NewSMTPMailer(cfg.SMTP), logger)

	scheduler, err := reminder.NewScheduler(cfg.ReminderSchedule, loc, sweeper, logger)
	if err != nil {
		logger.Fatal("configure scheduler", zap.Error(err))
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal("start scheduler", zap.Error(err))
	}

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("reminder metrics listening", zap.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("reminder shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("reminder sweep still running at shutdown", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}
}

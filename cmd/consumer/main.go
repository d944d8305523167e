package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/JarvisScienz/progress-tracker/internal/config"
	"github.com/JarvisScienz/progress-tracker/internal/consumer"
	"github.com/JarvisScienz/progress-tracker/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Must(cfg.LogLevel, cfg.LogDevelopment)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	handler := consumer.NewEventLogHandler(pool)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("consumer metrics listening", zap.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	var wg sync.WaitGroup
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for _, topic := range cfg.ConsumerTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})

		topicLogger := logger.With(zap.String("topic", topic), zap.String("group", cfg.ConsumerGroupID))
		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(topicLogger))

		wg.Add(1)
		go func(r *kafka.Reader) {
			defer wg.Done()
			defer r.Close()

			topicLogger.Info("consumer started")
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				topicLogger.Error("consumer stopped with error", zap.Error(err))
			}
		}(reader)
	}

	<-stop
	logger.Info("consumer shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	wg.Wait()
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JarvisScienz/progress-tracker/internal/api"
	"github.com/JarvisScienz/progress-tracker/internal/auth"
	"github.com/JarvisScienz/progress-tracker/internal/config"
	"github.com/JarvisScienz/progress-tracker/internal/domain"
	"github.com/JarvisScienz/progress-tracker/internal/logging"
	"github.com/JarvisScienz/progress-tracker/internal/outbox"
	"github.com/JarvisScienz/progress-tracker/internal/persistence/memory"
	"github.com/JarvisScienz/progress-tracker/internal/persistence/postgres"
	httptransport "github.com/JarvisScienz/progress-tracker/internal/transport/http"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		activities domain.ActivityRepository
		settings   domain.SettingsRepository
		dispatcher *outbox.Dispatcher
	)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		repo := memory.NewRepository()
		activities, settings = repo, repo
		logger.Warn("using in-memory storage, data is lost on restart")
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal("connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		applied, err := postgres.Migrate(ctx, pool)
		if err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", zap.Strings("migrations", applied))
		}

		repo := postgres.NewRepository(pool)
		activities, settings = repo, repo

		if cfg.OutboxEnabled {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, logger)
			defer producer.Close()

			registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL, nil)
			store := outbox.NewPostgresStore(pool, cfg.DLQBaseDelay)
			dispatcher = outbox.NewDispatcher(store, producer, registry, logger, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
			go dispatcher.Start(ctx)
		}
	default:
		logger.Fatal("unknown storage driver", zap.String("driver", cfg.StorageDriver))
	}

	service := domain.NewService(activities, settings, domain.WithLocation(loc))

	handler := api.NewHandler(service, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux,
		httptransport.CORS(cfg.CORSOrigin),
		httptransport.RequestLogger(logger),
		authMiddleware.Wrap,
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("progress tracker listening",
			zap.String("address", cfg.HTTPAddress),
			zap.String("storage", cfg.StorageDriver),
			zap.String("timezone", loc.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}

//go:build integration

package consumer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap/zaptest"

	"github.com/JarvisScienz/progress-tracker/internal/consumer"
	"github.com/JarvisScienz/progress-tracker/internal/domain"
	"github.com/JarvisScienz/progress-tracker/internal/outbox"
	"github.com/JarvisScienz/progress-tracker/internal/persistence/postgres"
	"github.com/JarvisScienz/progress-tracker/internal/testsupport"
)

type staticRegistry struct{}

func (staticRegistry) EnsureSchema(context.Context, string, string) (int, error) { return 3, nil }

func TestDispatchedEventsReachConsumer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkaContainer.RunContainer(ctx, testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             outbox.TopicProgress,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))

	pool := testsupport.Postgres(t, ctx)
	repo := postgres.NewRepository(pool)
	svc := domain.NewService(repo, repo)

	activity, err := svc.CreateActivity(ctx, domain.CreateActivityInput{UserID: "user-7", Title: "Practice scales", Frequency: domain.FrequencyDaily})
	require.NoError(t, err)
	_, err = svc.MarkPeriod(ctx, domain.MarkPeriodInput{UserID: "user-7", ActivityID: activity.ID, Completed: true})
	require.NoError(t, err)

	producer := outbox.NewKafkaProducer(brokers, zaptest.NewLogger(t))
	defer producer.Close()
	dispatcher := outbox.NewDispatcher(outbox.NewPostgresStore(pool, time.Second), producer, staticRegistry{}, zaptest.NewLogger(t), time.Second, 10)
	require.NoError(t, dispatcher.ProcessBatch(ctx))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "progress-integration",
		Topic:       outbox.TopicProgress,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	var (
		mu       sync.Mutex
		received []consumer.Message
	)
	logHandler := consumer.NewEventLogHandler(pool)
	handler := consumer.HandlerFunc(func(ctx context.Context, msg consumer.Message) error {
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		return logHandler.Handle(ctx, msg)
	})

	consumerCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = consumer.NewProcessor(reader, handler, consumer.WithLogger(zaptest.NewLogger(t))).Run(consumerCtx)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 60*time.Second, 500*time.Millisecond)

	mu.Lock()
	msg := received[0]
	mu.Unlock()
	require.Equal(t, string(domain.EventActivityPeriodMarked), msg.EventType)
	require.Equal(t, "user-7", msg.UserID)
	require.Equal(t, 3, msg.SchemaID)
	require.Contains(t, string(msg.Payload), activity.ID)

	var logged int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM activity_event_log WHERE user_id = 'user-7'`).Scan(&logged))
	require.Equal(t, 1, logged)
}

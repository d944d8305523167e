package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, StoragePostgres, cfg.StorageDriver)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	require.Equal(t, 5, cfg.DLQMaxRetries)
	require.Equal(t, "0 9 * * *", cfg.ReminderSchedule)
	require.Equal(t, 587, cfg.SMTP.Port)
	require.False(t, cfg.SMTP.TLS)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("OUTBOX_ENABLED", "false")
	t.Setenv("DLQ_MAX_RETRIES", "9")
	t.Setenv("SMTP_TLS", "true")
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("TIMEZONE", "Europe/Rome")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StorageMemory, cfg.StorageDriver)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	require.False(t, cfg.OutboxEnabled)
	require.Equal(t, 9, cfg.DLQMaxRetries)
	require.True(t, cfg.SMTP.TLS)
	require.Equal(t, 465, cfg.SMTP.Port)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Europe/Rome", loc.String())
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("OUTBOX_BATCH_SIZE", "many")
	t.Setenv("DLQ_BASE_DELAY", "soon")
	t.Setenv("OUTBOX_ENABLED", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.Equal(t, time.Minute, cfg.DLQBaseDelay)
	require.True(t, cfg.OutboxEnabled)
}

func TestLocationRejectsUnknownZone(t *testing.T) {
	_, err := Config{Timezone: "Mars/Olympus"}.Location()
	require.Error(t, err)
}

//go:build integration

package consumer_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JarvisScienz/progress-tracker/internal/consumer"
	"github.com/JarvisScienz/progress-tracker/internal/testsupport"
)

func TestEventLogHandlerStoresEventOnce(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.Postgres(t, ctx)

	handler := consumer.NewEventLogHandler(pool)

	payload := json.RawMessage(`{"activity_id":"abc","user_id":"user-123","current_streak":4}`)
	msg := consumer.Message{
		EventType:     "activity.period_marked",
		UserID:        "user-123",
		SchemaID:      42,
		SchemaSubject: "activity_progress-PeriodMarked",
		Topic:         "activity_progress",
		Partition:     0,
		Offset:        5,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
	}

	require.NoError(t, handler.Handle(ctx, msg))
	require.NoError(t, handler.Handle(ctx, msg), "redelivery must be ignored")

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM activity_event_log`).Scan(&count))
	require.Equal(t, 1, count)

	var storedPayload []byte
	var userID string
	require.NoError(t, pool.QueryRow(ctx, `SELECT payload, user_id FROM activity_event_log LIMIT 1`).Scan(&storedPayload, &userID))
	require.JSONEq(t, string(payload), string(storedPayload))
	require.Equal(t, "user-123", userID)
}

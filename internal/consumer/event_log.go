package consumer

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventLogHandler appends consumed events to activity_event_log. Redelivered
// records are ignored so replays after a rebalance are harmless.
type EventLogHandler struct {
	pool *pgxpool.Pool
}

// NewEventLogHandler constructs a handler backed by the provided pool.
func NewEventLogHandler(pool *pgxpool.Pool) *EventLogHandler {
	return &EventLogHandler{pool: pool}
}

// Handle stores the event keyed by its topic, partition and offset.
func (h *EventLogHandler) Handle(ctx context.Context, msg Message) error {
	_, err := h.pool.Exec(ctx,
		`INSERT INTO activity_event_log (event_type, user_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		msg.UserID,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	return err
}

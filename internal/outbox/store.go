package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on the outbox and outbox_dlq tables.
type PostgresStore struct {
	pool      *pgxpool.Pool
	retryBase time.Duration
}

// NewPostgresStore constructs a PostgresStore. retryBase seeds the backoff of
// entries parked in the DLQ.
func NewPostgresStore(pool *pgxpool.Pool, retryBase time.Duration) *PostgresStore {
	if retryBase <= 0 {
		retryBase = time.Minute
	}
	return &PostgresStore{pool: pool, retryBase: retryBase}
}

// Claim locks up to limit unpublished rows, stamps claimed_at and returns them.
// SKIP LOCKED lets several dispatchers share the table.
func (s *PostgresStore) Claim(ctx context.Context, limit int) (_ []Message, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const query = `SELECT event_id, user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, delivery_attempts
        FROM outbox
        WHERE published_at IS NULL
        ORDER BY event_id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.EventID, &msg.UserID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Topic, &msg.SchemaSubject, &msg.PartitionKey, &msg.Payload, &msg.Attempts); err != nil {
			rows.Close()
			return nil, err
		}
		messages = append(messages, msg)
		ids = append(ids, msg.EventID)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		tx.Rollback(ctx)
		return nil, nil
	}

	if _, err = tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkPublished stamps published_at on the given rows.
func (s *PostgresStore) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids)
	return err
}

// MoveToDLQ records a failed outbox message in the DLQ alongside the supplied
// reason. The entry keeps the message's delivery attempts so the manager can
// quarantine it once retries run out.
func (s *PostgresStore) MoveToDLQ(ctx context.Context, msg Message, reason string) error {
	next := time.Now().UTC().Add(Backoff(msg.Attempts+1, s.retryBase))
	_, err := s.pool.Exec(ctx,
		`INSERT INTO outbox_dlq (user_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count, next_retry_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		msg.UserID, msg.EventID, msg.EventType, msg.Topic, msg.Payload, reason, msg.AggregateType, msg.AggregateID, msg.SchemaSubject, msg.PartitionKey, msg.Attempts, next,
	)
	return err
}

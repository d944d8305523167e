package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const maxBackoff = time.Hour

// Backoff returns the exponential delay before the given retry attempt,
// starting at base and capped at one hour.
func Backoff(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 31 {
		return maxBackoff
	}
	delay := time.Duration(1<<uint(attempt-1)) * base
	if delay > maxBackoff || delay <= 0 {
		return maxBackoff
	}
	return delay
}

// DLQManager handles retrying failed outbox messages and quarantining exhausted entries.
type DLQManager struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
	now        func() time.Time
}

// NewDLQManager constructs a DLQManager with the provided pool and retry configuration.
func NewDLQManager(pool *pgxpool.Pool, logger *zap.Logger, maxRetries int, baseDelay time.Duration) *DLQManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &DLQManager{
		pool:       pool,
		logger:     logger.Named("dlq"),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		now:        time.Now,
	}
}

// Run calls RunOnce every interval until ctx is cancelled.
func (m *DLQManager) Run(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		processed, err := m.RunOnce(ctx, batchSize)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			m.logger.Error("dlq pass failed", zap.Int("processed", processed), zap.Error(err))
		case processed > 0:
			m.logger.Info("dlq pass finished", zap.Int("processed", processed))
		}
	}
}

// RunOnce processes a batch of due DLQ entries and returns how many were
// handled without error.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	entries, err := m.dueEntries(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, entry := range entries {
		if procErr := m.handleEntry(ctx, entry); procErr != nil {
			err = errors.Join(err, fmt.Errorf("dlq entry %d: %w", entry.ID, procErr))
			continue
		}
		processed++
	}

	if gaugeErr := updateBacklogGauge(ctx, m.pool); gaugeErr != nil {
		m.logger.Warn("dlq backlog gauge not updated", zap.Error(gaugeErr))
	}
	return processed, err
}

func (m *DLQManager) dueEntries(ctx context.Context, batchSize int) ([]dlqEntry, error) {
	const query = `SELECT dlq_id, user_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count
                    FROM outbox_dlq
                   WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= $1)
                   ORDER BY created_at
                   LIMIT $2`

	rows, err := m.pool.Query(ctx, query, m.now().UTC(), batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]dlqEntry, 0)
	for rows.Next() {
		var e dlqEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventID, &e.EventType, &e.Topic, &e.Payload, &e.Reason, &e.AggregateType, &e.AggregateID, &e.SchemaSubject, &e.PartitionKey, &e.RetryCount); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// handleEntry quarantines an exhausted entry or moves it back to the outbox.
// When the requeue fails the entry stays parked with a later retry time.
func (m *DLQManager) handleEntry(ctx context.Context, entry dlqEntry) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if entry.RetryCount >= m.maxRetries {
		if _, err := tx.Exec(ctx, `UPDATE outbox_dlq SET quarantined_at = $1, quarantine_reason = $2 WHERE dlq_id = $3`,
			m.now().UTC(), "retry limit reached", entry.ID); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		m.logger.Warn("dlq entry quarantined",
			zap.Int64("dlq_id", entry.ID),
			zap.String("event_type", entry.EventType),
			zap.String("user_id", entry.UserID),
		)
		recordDLQOutcome(entry, outcomeQuarantined)
		return nil
	}

	if requeueErr := requeueOutbox(ctx, tx, entry); requeueErr != nil {
		// The failed insert aborted the transaction; record the retry on a fresh one.
		tx.Rollback(ctx)
		return m.scheduleRetry(ctx, entry, requeueErr)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id = $1`, entry.ID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	recordDLQOutcome(entry, outcomeRequeued)
	return nil
}

func (m *DLQManager) scheduleRetry(ctx context.Context, entry dlqEntry, cause error) error {
	now := m.now().UTC()
	next := now.Add(Backoff(entry.RetryCount+1, m.baseDelay))
	if _, err := m.pool.Exec(ctx,
		`UPDATE outbox_dlq
            SET retry_count = retry_count + 1,
                last_attempt_at = $1,
                next_retry_at = $2,
                reason = $3
          WHERE dlq_id = $4`,
		now, next, cause.Error(), entry.ID,
	); err != nil {
		return errors.Join(cause, err)
	}
	recordDLQOutcome(entry, outcomeRetry)
	return nil
}

// requeueOutbox reinserts the payload into the primary outbox table for replay.
func requeueOutbox(ctx context.Context, tx pgx.Tx, entry dlqEntry) error {
	if entry.SchemaSubject == "" {
		return fmt.Errorf("missing schema_subject for dlq entry %d", entry.ID)
	}

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, delivery_attempts)
                   VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err := tx.Exec(ctx, stmt,
		entry.UserID,
		entry.AggregateType,
		entry.AggregateID,
		entry.EventType,
		entry.Topic,
		entry.SchemaSubject,
		entry.PartitionKey,
		entry.Payload,
		entry.RetryCount+1,
	)
	return err
}

// dlqEntry represents an outbox_dlq row selected for processing.
type dlqEntry struct {
	ID            int64
	UserID        string
	EventID       int64
	EventType     string
	Topic         string
	Payload       []byte
	Reason        string
	AggregateType string
	AggregateID   string
	SchemaSubject string
	PartitionKey  string
	RetryCount    int
}

package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DLQ entry outcomes reported by the manager.
const (
	outcomeRequeued    = "requeued"
	outcomeRetry       = "retry_scheduled"
	outcomeQuarantined = "quarantined"
)

var (
	dlqOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progress_tracker",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "DLQ entries handled by the manager, by topic, event type and outcome.",
	}, []string{"topic", "event_type", "outcome"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "progress_tracker",
		Subsystem: "dlq",
		Name:      "queued_messages",
		Help:      "Entries waiting in the DLQ that are not quarantined.",
	})
)

func init() {
	prometheus.MustRegister(dlqOutcomeCounter, dlqBacklogGauge)
}

func recordDLQOutcome(entry dlqEntry, outcome string) {
	dlqOutcomeCounter.WithLabelValues(entry.Topic, entry.EventType, outcome).Inc()
}

func updateBacklogGauge(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return err
	}
	dlqBacklogGauge.Set(float64(count))
	return nil
}

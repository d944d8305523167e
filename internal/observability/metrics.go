// Package observability holds the service-wide Prometheus collectors.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "progress_tracker",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity write.",
	})

	periodMarksCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progress_tracker",
		Subsystem: "streaks",
		Name:      "period_marks_total",
		Help:      "Number of periods marked, by frequency and outcome.",
	}, []string{"frequency", "completed"})

	streakRecordCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progress_tracker",
		Subsystem: "streaks",
		Name:      "new_records_total",
		Help:      "Number of marks that raised an activity's best streak.",
	}, []string{"frequency"})

	remindersCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progress_tracker",
		Subsystem: "reminders",
		Name:      "emails_total",
		Help:      "Reminder emails attempted, by result.",
	}, []string{"result"})

	reminderSweepGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "progress_tracker",
		Subsystem: "reminders",
		Name:      "last_sweep_timestamp_seconds",
		Help:      "Unix timestamp of the most recent reminder sweep.",
	})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, periodMarksCounter, streakRecordCounter, remindersCounter, reminderSweepGauge)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordPeriodMarked counts a mark and, when it set a new best streak, the record.
func RecordPeriodMarked(frequency string, completed, newRecord bool) {
	periodMarksCounter.WithLabelValues(frequency, strconv.FormatBool(completed)).Inc()
	if newRecord {
		streakRecordCounter.WithLabelValues(frequency).Inc()
	}
}

// RecordReminder counts one reminder email attempt.
func RecordReminder(err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	remindersCounter.WithLabelValues(result).Inc()
}

// RecordReminderSweep updates the sweep watermark gauge.
func RecordReminderSweep(ts time.Time) {
	if ts.IsZero() {
		return
	}
	reminderSweepGauge.Set(float64(ts.Unix()))
}

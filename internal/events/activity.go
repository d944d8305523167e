// Package events defines the payloads published for activity state changes.
package events

import "time"

// ActivityCreated is emitted when a user registers a new activity.
type ActivityCreated struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Frequency  string    `json:"frequency"`
	StartDate  time.Time `json:"start_date"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivityUpdated is emitted after descriptive fields of an activity change.
type ActivityUpdated struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivityRetired is emitted when an activity is soft deleted.
type ActivityRetired struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PeriodMarked carries the streak state after a period was marked.
type PeriodMarked struct {
	ActivityID    string    `json:"activity_id"`
	UserID        string    `json:"user_id"`
	Frequency     string    `json:"frequency"`
	PeriodDate    string    `json:"period_date"`
	Completed     bool      `json:"completed"`
	CurrentStreak int       `json:"current_streak"`
	BestStreak    int       `json:"best_streak"`
	NewRecord     bool      `json:"new_record"`
	OccurredAt    time.Time `json:"occurred_at"`
}

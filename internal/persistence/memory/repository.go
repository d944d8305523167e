// Package memory provides an in-process repository for local development and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/JarvisScienz/progress-tracker/internal/domain"
)

// Repository stores activities and settings in memory.
type Repository struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
	settings   map[string]domain.Settings
	events     []domain.Event
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		activities: make(map[string]domain.Activity),
		settings:   make(map[string]domain.Settings),
	}
}

// Create implements domain.ActivityRepository.
func (r *Repository) Create(ctx context.Context, activity domain.Activity, events ...domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.activities[activity.ID] = activity.Clone()
	r.events = append(r.events, events...)
	return nil
}

// Get implements domain.ActivityRepository.
func (r *Repository) Get(ctx context.Context, userID, activityID string) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	activity, ok := r.activities[activityID]
	if !ok || activity.UserID != userID {
		return nil, nil
	}
	out := activity.Clone()
	return &out, nil
}

// ListActive implements domain.ActivityRepository.
func (r *Repository) ListActive(ctx context.Context, userID string, page domain.Page) ([]domain.Activity, *domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]domain.Activity, 0)
	for _, activity := range r.activities {
		if activity.UserID != userID || !activity.IsActive {
			continue
		}
		if c := page.Cursor; c != nil && !afterCursor(activity, c) {
			continue
		}
		results = append(results, activity.Clone())
	}
	slices.SortFunc(results, func(a, b domain.Activity) int {
		if cmp := b.CreatedAt.Compare(a.CreatedAt); cmp != 0 {
			return cmp
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})

	if page.Limit <= 0 || len(results) < page.Limit {
		return results, nil, nil
	}
	results = results[:page.Limit]
	last := results[len(results)-1]
	return results, &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
}

// afterCursor reports whether activity sorts after the cursor position.
func afterCursor(activity domain.Activity, c *domain.Cursor) bool {
	if activity.CreatedAt.Equal(c.CreatedAt) {
		return activity.ID < c.ID
	}
	return activity.CreatedAt.Before(c.CreatedAt)
}

// Mutate implements domain.ActivityRepository. The lock is held across the
// read-modify-write so concurrent marks on one activity cannot lose updates.
func (r *Repository) Mutate(ctx context.Context, userID, activityID string, fn domain.MutateFunc) (*domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.activities[activityID]
	if !ok || stored.UserID != userID {
		return nil, domain.ErrActivityNotFound
	}
	working := stored.Clone()
	events, err := fn(&working)
	if err != nil {
		return nil, err
	}
	r.activities[activityID] = working.Clone()
	r.events = append(r.events, events...)
	return &working, nil
}

// ReminderCandidates implements domain.ActivityRepository.
func (r *Repository) ReminderCandidates(ctx context.Context) ([]domain.ReminderCandidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ReminderCandidate, 0)
	for _, activity := range r.activities {
		if !activity.IsActive || activity.Frequency != domain.FrequencyDaily {
			continue
		}
		settings, ok := r.settings[activity.UserID]
		if !ok {
			continue
		}
		out = append(out, domain.ReminderCandidate{Activity: activity.Clone(), Settings: settings})
	}
	slices.SortFunc(out, func(a, b domain.ReminderCandidate) int {
		switch {
		case a.Activity.ID < b.Activity.ID:
			return -1
		case a.Activity.ID > b.Activity.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

// GetSettings implements domain.SettingsRepository.
func (r *Repository) GetSettings(ctx context.Context, userID string) (*domain.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	settings, ok := r.settings[userID]
	if !ok {
		return nil, nil
	}
	return &settings, nil
}

// SaveSettings implements domain.SettingsRepository.
func (r *Repository) SaveSettings(ctx context.Context, settings domain.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings[settings.UserID] = settings
	return nil
}

// Events returns every event recorded so far.
func (r *Repository) Events() []domain.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.Event(nil), r.events...)
}

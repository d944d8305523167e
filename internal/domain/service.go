// Package domain defines the business logic for the progress tracker.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JarvisScienz/progress-tracker/internal/events"
)

// ErrFrequencyImmutable is returned when an update tries to change the cadence.
var ErrFrequencyImmutable = errors.New("frequency cannot be changed after creation")

// ActivityRepository captures persistence operations.
type ActivityRepository interface {
	Create(ctx context.Context, activity Activity, events ...Event) error
	Get(ctx context.Context, userID, activityID string) (*Activity, error)
	ListActive(ctx context.Context, userID string, page Page) ([]Activity, *Cursor, error)
	// Mutate loads the activity, applies fn and stores the result atomically.
	// It returns ErrActivityNotFound when the activity is missing.
	Mutate(ctx context.Context, userID, activityID string, fn MutateFunc) (*Activity, error)
	ReminderCandidates(ctx context.Context) ([]ReminderCandidate, error)
}

// MutateFunc changes an activity in place and returns the events to record with it.
type MutateFunc func(*Activity) ([]Event, error)

// SettingsRepository persists user preferences.
type SettingsRepository interface {
	GetSettings(ctx context.Context, userID string) (*Settings, error)
	SaveSettings(ctx context.Context, settings Settings) error
}

// Cursor models the pagination token.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Page selects a window of a listing. A zero Limit returns everything.
type Page struct {
	Cursor *Cursor
	Limit  int
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLocation sets the time zone that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Service orchestrates activity workflows.
type Service struct {
	repo     ActivityRepository
	settings SettingsRepository
	now      func() time.Time
	loc      *time.Location
}

// NewService constructs a Service.
func NewService(repo ActivityRepository, settings SettingsRepository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		settings: settings,
		now:      time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the time zone used for calendar days.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Today returns local midnight of the current day.
func (s *Service) Today() time.Time {
	return StartOfDay(s.now(), s.loc)
}

// CreateActivityInput captures the payload from the API layer.
type CreateActivityInput struct {
	UserID      string
	Title       string
	Description string
	Frequency   Frequency
	StartDate   *time.Time
	EndDate     *time.Time
}

// CreateActivity registers a new activity with an empty history.
func (s *Service) CreateActivity(ctx context.Context, input CreateActivityInput) (*Activity, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if !input.Frequency.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, input.Frequency)
	}

	now := s.now().UTC()
	start := s.Today()
	if input.StartDate != nil {
		start = StartOfDay(*input.StartDate, s.loc)
	}

	activity := Activity{
		ID:                uuid.NewString(),
		UserID:            input.UserID,
		Title:             title,
		Description:       strings.TrimSpace(input.Description),
		Frequency:         input.Frequency,
		StartDate:         start,
		CompletionHistory: []CompletionRecord{},
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if input.EndDate != nil {
		end := StartOfDay(*input.EndDate, s.loc)
		activity.EndDate = &end
	}

	event := Event{Type: EventActivityCreated, Payload: events.ActivityCreated{
		ActivityID: activity.ID,
		UserID:     activity.UserID,
		Title:      activity.Title,
		Frequency:  string(activity.Frequency),
		StartDate:  activity.StartDate,
		OccurredAt: now,
	}}
	if err := s.repo.Create(ctx, activity, event); err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}
	return &activity, nil
}

// ListActivities returns the user's active activities, newest first.
func (s *Service) ListActivities(ctx context.Context, userID string, page Page) ([]Activity, *Cursor, error) {
	return s.repo.ListActive(ctx, userID, page)
}

// GetActivity fetches by ID.
func (s *Service) GetActivity(ctx context.Context, userID, activityID string) (*Activity, error) {
	activity, err := s.repo.Get(ctx, userID, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// UpdateActivityInput lists the fields to change; nil fields are left alone.
type UpdateActivityInput struct {
	UserID       string
	ActivityID   string
	Title        *string
	Description  *string
	Frequency    *Frequency
	StartDate    *time.Time
	EndDate      *time.Time
	ClearEndDate bool
}

// UpdateActivity applies a partial update.
func (s *Service) UpdateActivity(ctx context.Context, input UpdateActivityInput) (*Activity, error) {
	return s.repo.Mutate(ctx, input.UserID, input.ActivityID, func(a *Activity) ([]Event, error) {
		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return nil, ErrTitleRequired
			}
			a.Title = title
		}
		if input.Description != nil {
			a.Description = strings.TrimSpace(*input.Description)
		}
		if input.Frequency != nil && *input.Frequency != a.Frequency {
			return nil, ErrFrequencyImmutable
		}
		if input.StartDate != nil {
			a.StartDate = StartOfDay(*input.StartDate, s.loc)
		}
		switch {
		case input.ClearEndDate:
			a.EndDate = nil
		case input.EndDate != nil:
			end := StartOfDay(*input.EndDate, s.loc)
			a.EndDate = &end
		}

		now := s.now().UTC()
		a.UpdatedAt = now
		return []Event{{Type: EventActivityUpdated, Payload: events.ActivityUpdated{
			ActivityID: a.ID,
			UserID:     a.UserID,
			Title:      a.Title,
			OccurredAt: now,
		}}}, nil
	})
}

// RetireActivity soft deletes the activity; its history is kept.
func (s *Service) RetireActivity(ctx context.Context, userID, activityID string) error {
	_, err := s.repo.Mutate(ctx, userID, activityID, func(a *Activity) ([]Event, error) {
		now := s.now().UTC()
		a.IsActive = false
		a.UpdatedAt = now
		return []Event{{Type: EventActivityRetired, Payload: events.ActivityRetired{
			ActivityID: a.ID,
			UserID:     a.UserID,
			OccurredAt: now,
		}}}, nil
	})
	return err
}

// MarkPeriodInput captures a completion update for one period.
type MarkPeriodInput struct {
	UserID     string
	ActivityID string
	// Date defaults to today when nil.
	Date      *time.Time
	Completed bool
	Note      string
}

// MarkPeriodResult is the stored activity plus what the mark changed.
type MarkPeriodResult struct {
	Activity  Activity
	Created   bool
	NewRecord bool
}

// MarkPeriod records the outcome of the period containing the target date and
// updates the streak counters.
func (s *Service) MarkPeriod(ctx context.Context, input MarkPeriodInput) (*MarkPeriodResult, error) {
	target := s.Today()
	if input.Date != nil {
		target = StartOfDay(*input.Date, s.loc)
	}

	var res Reconciliation
	activity, err := s.repo.Mutate(ctx, input.UserID, input.ActivityID, func(a *Activity) ([]Event, error) {
		res = a.MarkPeriod(Mark{
			Date:      target,
			Completed: input.Completed,
			Note:      strings.TrimSpace(input.Note),
		})
		now := s.now().UTC()
		a.UpdatedAt = now
		return []Event{{Type: EventActivityPeriodMarked, Payload: events.PeriodMarked{
			ActivityID:    a.ID,
			UserID:        a.UserID,
			Frequency:     string(a.Frequency),
			PeriodDate:    target.Format(DateLayout),
			Completed:     input.Completed,
			CurrentStreak: a.CurrentStreak,
			BestStreak:    a.BestStreak,
			NewRecord:     res.NewRecord,
			OccurredAt:    now,
		}}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &MarkPeriodResult{Activity: *activity, Created: res.Created, NewRecord: res.NewRecord}, nil
}

// History returns the completion records, most recent first.
func (s *Service) History(ctx context.Context, userID, activityID string) ([]CompletionRecord, error) {
	activity, err := s.GetActivity(ctx, userID, activityID)
	if err != nil {
		return nil, err
	}
	return SortHistory(activity.CompletionHistory), nil
}

// MonthOverview aggregates the user's active activities for one calendar month.
func (s *Service) MonthOverview(ctx context.Context, userID string, year int, month int) (map[string]*DaySummary, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	activities, _, err := s.repo.ListActive(ctx, userID, Page{})
	if err != nil {
		return nil, err
	}
	return AggregateMonth(activities, year, time.Month(month), s.loc), nil
}

// DailyProgress summarises how many active activities were completed on day.
// A nil day means today.
func (s *Service) DailyProgress(ctx context.Context, userID string, day *time.Time) (*DailyProgress, error) {
	target := s.Today()
	if day != nil {
		target = StartOfDay(*day, s.loc)
	}
	activities, _, err := s.repo.ListActive(ctx, userID, Page{})
	if err != nil {
		return nil, err
	}
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	progress := ComputeProgress(activities, target, settings.ThresholdPercentage)
	return &progress, nil
}

// GetSettings returns the user's settings, creating defaults on first access.
func (s *Service) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	settings, err := s.settings.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		return settings, nil
	}
	defaults := DefaultSettings(userID, s.now().UTC())
	if err := s.settings.SaveSettings(ctx, defaults); err != nil {
		return nil, fmt.Errorf("create default settings: %w", err)
	}
	return &defaults, nil
}

// UpdateSettingsInput lists the preferences to change; nil fields are left alone.
type UpdateSettingsInput struct {
	UserID              string
	ThresholdPercentage *int
	Username            *string
	DarkMode            *bool
	Email               *string
	RemindersEnabled    *bool
}

// UpdateSettings applies a partial settings update.
func (s *Service) UpdateSettings(ctx context.Context, input UpdateSettingsInput) (*Settings, error) {
	if t := input.ThresholdPercentage; t != nil && (*t < 0 || *t > 100) {
		return nil, ErrInvalidThreshold
	}
	settings, err := s.GetSettings(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if input.ThresholdPercentage != nil {
		settings.ThresholdPercentage = *input.ThresholdPercentage
	}
	if input.Username != nil && strings.TrimSpace(*input.Username) != "" {
		settings.Username = strings.TrimSpace(*input.Username)
	}
	if input.DarkMode != nil {
		settings.DarkMode = *input.DarkMode
	}
	if input.Email != nil {
		settings.Email = strings.TrimSpace(*input.Email)
	}
	if input.RemindersEnabled != nil {
		settings.RemindersEnabled = *input.RemindersEnabled
	}
	settings.UpdatedAt = s.now().UTC()
	if err := s.settings.SaveSettings(ctx, *settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// DueReminders lists active daily activities not yet completed today.
func (s *Service) DueReminders(ctx context.Context) ([]Reminder, error) {
	candidates, err := s.repo.ReminderCandidates(ctx)
	if err != nil {
		return nil, err
	}
	today := s.Today()
	reminders := make([]Reminder, 0, len(candidates))
	for _, c := range candidates {
		if !NeedsReminder(c, today) {
			continue
		}
		reminders = append(reminders, Reminder{
			UserID:      c.Activity.UserID,
			Username:    c.Settings.Username,
			Email:       c.Settings.Email,
			ActivityID:  c.Activity.ID,
			Title:       c.Activity.Title,
			Description: c.Activity.Description,
		})
	}
	return reminders, nil
}

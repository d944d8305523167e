package domain

import "time"

// DailyProgress is the dashboard summary for one calendar day.
type DailyProgress struct {
	Date                time.Time
	Total               int
	Completed           int
	Percentage          float64
	ThresholdPercentage int
	MeetsThreshold      bool
}

// ComputeProgress counts the activities completed on day's calendar date.
func ComputeProgress(activities []Activity, day time.Time, threshold int) DailyProgress {
	progress := DailyProgress{
		Date:                day,
		Total:               len(activities),
		ThresholdPercentage: threshold,
	}
	for _, activity := range activities {
		if CompletedOn(activity, day) {
			progress.Completed++
		}
	}
	if progress.Total > 0 {
		progress.Percentage = float64(progress.Completed) / float64(progress.Total) * 100
	}
	progress.MeetsThreshold = progress.Total > 0 && progress.Percentage >= float64(threshold)
	return progress
}

// CompletedOn reports whether activity has a completed record on day's calendar date.
func CompletedOn(activity Activity, day time.Time) bool {
	for _, record := range activity.CompletionHistory {
		if record.Completed && SameDay(day, record.Date) {
			return true
		}
	}
	return false
}

// Reminder is one pending daily activity whose owner should be nudged.
type Reminder struct {
	UserID      string
	Username    string
	Email       string
	ActivityID  string
	Title       string
	Description string
}

// ReminderCandidate pairs an active daily activity with its owner's settings.
type ReminderCandidate struct {
	Activity Activity
	Settings Settings
}

// NeedsReminder reports whether the candidate is still open on day.
func NeedsReminder(c ReminderCandidate, day time.Time) bool {
	if !c.Activity.IsActive || c.Activity.Frequency != FrequencyDaily {
		return false
	}
	if !c.Settings.RemindersEnabled || c.Settings.Email == "" {
		return false
	}
	return !CompletedOn(c.Activity, day)
}

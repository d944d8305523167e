package domain

import "time"

// Mark is a request to record the outcome of the period containing Date.
// Date must already be normalised to local midnight.
type Mark struct {
	Date      time.Time
	Completed bool
	Note      string
}

// StreakState is the part of an activity the streak engine reads and writes.
type StreakState struct {
	Frequency     Frequency
	History       []CompletionRecord
	CurrentStreak int
	BestStreak    int
}

// Reconciliation is the outcome of applying a Mark.
type Reconciliation struct {
	History       []CompletionRecord
	CurrentStreak int
	BestStreak    int
	// Created is true when a new record was appended instead of updated.
	Created bool
	// NewRecord is true when BestStreak advanced.
	NewRecord bool
}

// ReconcilePeriod applies mark to state. The input history is not modified.
//
// Streak continuity is probed with the calendar day before mark.Date for
// every frequency, and the probe sees the history as it was before the mark.
// Re-marking a completed period keeps a running streak as it is, but restarts
// one that a later miss reset.
func ReconcilePeriod(state StreakState, mark Mark) Reconciliation {
	history := append([]CompletionRecord(nil), state.History...)
	previousDate := mark.Date.AddDate(0, 0, -1)

	existing := findPeriod(history, state.Frequency, mark.Date)
	previous := findPeriod(history, state.Frequency, previousDate)

	previousCompleted := previous >= 0 && history[previous].Completed
	alreadyCompleted := existing >= 0 && history[existing].Completed

	res := Reconciliation{CurrentStreak: state.CurrentStreak}
	if existing >= 0 {
		history[existing].Completed = mark.Completed
		if mark.Note != "" {
			history[existing].Note = mark.Note
		}
	} else {
		history = append(history, CompletionRecord{
			Date:      mark.Date,
			Completed: mark.Completed,
			Note:      mark.Note,
		})
		res.Created = true
	}

	switch {
	case !mark.Completed:
		res.CurrentStreak = 0
	case !previousCompleted:
		res.CurrentStreak = 1
	case !alreadyCompleted || res.CurrentStreak == 0:
		res.CurrentStreak++
	}

	res.BestStreak = state.BestStreak
	if res.CurrentStreak > res.BestStreak {
		res.BestStreak = res.CurrentStreak
		res.NewRecord = true
	}
	res.History = history
	return res
}

// MarkPeriod applies mark to the activity in place.
func (a *Activity) MarkPeriod(mark Mark) Reconciliation {
	res := ReconcilePeriod(StreakState{
		Frequency:     a.Frequency,
		History:       a.CompletionHistory,
		CurrentStreak: a.CurrentStreak,
		BestStreak:    a.BestStreak,
	}, mark)
	a.CompletionHistory = res.History
	a.CurrentStreak = res.CurrentStreak
	a.BestStreak = res.BestStreak
	return res
}

func findPeriod(history []CompletionRecord, f Frequency, date time.Time) int {
	for i, record := range history {
		if SamePeriod(f, date, record.Date) {
			return i
		}
	}
	return -1
}

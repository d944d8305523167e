package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type step struct {
	date      time.Time
	completed bool
	current   int
	best      int
	created   bool
	newRecord bool
}

func runSteps(t *testing.T, f Frequency, steps []step) StreakState {
	t.Helper()
	state := StreakState{Frequency: f}
	for i, s := range steps {
		res := ReconcilePeriod(state, Mark{Date: s.date, Completed: s.completed})
		require.Equalf(t, s.current, res.CurrentStreak, "step %d current", i)
		require.Equalf(t, s.best, res.BestStreak, "step %d best", i)
		require.Equalf(t, s.created, res.Created, "step %d created", i)
		require.Equalf(t, s.newRecord, res.NewRecord, "step %d new record", i)
		state = StreakState{Frequency: f, History: res.History, CurrentStreak: res.CurrentStreak, BestStreak: res.BestStreak}
	}
	return state
}

func TestReconcilePeriodDaily(t *testing.T) {
	state := runSteps(t, FrequencyDaily, []step{
		{date: day(2024, 3, 10), completed: true, current: 1, best: 1, created: true, newRecord: true},
		{date: day(2024, 3, 11), completed: true, current: 2, best: 2, created: true, newRecord: true},
		// Re-marking a completed day changes nothing.
		{date: day(2024, 3, 11), completed: true, current: 2, best: 2},
		{date: day(2024, 3, 12), completed: true, current: 3, best: 3, created: true, newRecord: true},
		// Gap on the 13th.
		{date: day(2024, 3, 14), completed: true, current: 1, best: 3, created: true},
		{date: day(2024, 3, 14), completed: false, current: 0, best: 3},
		{date: day(2024, 3, 15), completed: true, current: 1, best: 3, created: true},
	})
	require.Len(t, state.History, 5)
}

func TestReconcilePeriodRecompletingAfterUndo(t *testing.T) {
	runSteps(t, FrequencyDaily, []step{
		{date: day(2024, 3, 10), completed: true, current: 1, best: 1, created: true, newRecord: true},
		{date: day(2024, 3, 11), completed: true, current: 2, best: 2, created: true, newRecord: true},
		{date: day(2024, 3, 11), completed: false, current: 0, best: 2},
		{date: day(2024, 3, 11), completed: true, current: 1, best: 2},
	})
}

func TestReconcilePeriodRemarkRestartsResetStreak(t *testing.T) {
	runSteps(t, FrequencyDaily, []step{
		{date: day(2024, 3, 10), completed: true, current: 1, best: 1, created: true, newRecord: true},
		{date: day(2024, 3, 11), completed: true, current: 2, best: 2, created: true, newRecord: true},
		{date: day(2024, 3, 12), completed: false, current: 0, best: 2, created: true},
		// The 11th is already completed, but the miss on the 12th zeroed the streak.
		{date: day(2024, 3, 11), completed: true, current: 1, best: 2},
		{date: day(2024, 3, 11), completed: true, current: 1, best: 2},
	})
}

func TestReconcilePeriodBackfillDoesNotRecount(t *testing.T) {
	state := StreakState{
		Frequency:     FrequencyDaily,
		History:       []CompletionRecord{{Date: day(2024, 3, 12), Completed: true}},
		CurrentStreak: 1,
		BestStreak:    1,
	}
	// Filling the day after an earlier completion continues from it.
	res := ReconcilePeriod(state, Mark{Date: day(2024, 3, 13), Completed: true})
	require.Equal(t, 2, res.CurrentStreak)

	// An older day with no completed predecessor restarts the count.
	res = ReconcilePeriod(state, Mark{Date: day(2024, 3, 1), Completed: true})
	require.Equal(t, 1, res.CurrentStreak)
	require.Equal(t, 1, res.BestStreak)
	require.False(t, res.NewRecord)
}

func TestReconcilePeriodWeekly(t *testing.T) {
	runSteps(t, FrequencyWeekly, []step{
		// Thursday 2024-03-14 opens an epoch bucket.
		{date: day(2024, 3, 14), completed: true, current: 1, best: 1, created: true, newRecord: true},
		// The next bucket's first day probes the 20th, inside the previous bucket.
		{date: day(2024, 3, 21), completed: true, current: 2, best: 2, created: true, newRecord: true},
		// Same bucket as the 21st: updates that record.
		{date: day(2024, 3, 23), completed: true, current: 2, best: 2},
		// Mid-bucket marks probe their own bucket, which has no record yet.
		{date: day(2024, 3, 30), completed: true, current: 1, best: 2, created: true},
	})
}

func TestReconcilePeriodMonthly(t *testing.T) {
	state := runSteps(t, FrequencyMonthly, []step{
		{date: day(2024, 2, 10), completed: true, current: 1, best: 1, created: true, newRecord: true},
		// The 1st probes the last day of February.
		{date: day(2024, 3, 1), completed: true, current: 2, best: 2, created: true, newRecord: true},
		{date: day(2024, 4, 15), completed: true, current: 1, best: 2, created: true},
	})
	require.Len(t, state.History, 3)
}

func TestReconcilePeriodKeepsNoteUnlessReplaced(t *testing.T) {
	state := StreakState{Frequency: FrequencyDaily}
	res := ReconcilePeriod(state, Mark{Date: day(2024, 3, 10), Completed: true, Note: "5k run"})
	state.History = res.History

	res = ReconcilePeriod(state, Mark{Date: day(2024, 3, 10), Completed: false})
	require.Equal(t, "5k run", res.History[0].Note)
	require.False(t, res.History[0].Completed)

	res = ReconcilePeriod(state, Mark{Date: day(2024, 3, 10), Completed: true, Note: "10k"})
	require.Equal(t, "10k", res.History[0].Note)
}

func TestReconcilePeriodDoesNotMutateInput(t *testing.T) {
	history := []CompletionRecord{
		{Date: day(2024, 3, 10), Completed: true, Note: "first"},
		{Date: day(2024, 3, 11), Completed: true},
	}
	snapshot := append([]CompletionRecord(nil), history...)

	res := ReconcilePeriod(StreakState{Frequency: FrequencyDaily, History: history, CurrentStreak: 2, BestStreak: 2},
		Mark{Date: day(2024, 3, 10), Completed: false, Note: "skipped"})

	if diff := cmp.Diff(snapshot, history); diff != "" {
		t.Fatalf("input history changed (-want +got):\n%s", diff)
	}
	require.False(t, res.History[0].Completed)
	require.Equal(t, "skipped", res.History[0].Note)
}

func TestBestStreakNeverDecreases(t *testing.T) {
	state := StreakState{Frequency: FrequencyDaily, BestStreak: 7}
	for i := 0; i < 10; i++ {
		res := ReconcilePeriod(state, Mark{Date: day(2024, 3, 1).AddDate(0, 0, i*2), Completed: i%3 != 0})
		require.GreaterOrEqual(t, res.BestStreak, state.BestStreak)
		require.LessOrEqual(t, res.CurrentStreak, res.BestStreak)
		state = StreakState{Frequency: FrequencyDaily, History: res.History, CurrentStreak: res.CurrentStreak, BestStreak: res.BestStreak}
	}
	require.Equal(t, 7, state.BestStreak)
}

func TestActivityMarkPeriod(t *testing.T) {
	a := Activity{Frequency: FrequencyDaily}
	res := a.MarkPeriod(Mark{Date: day(2024, 3, 10), Completed: true})
	require.True(t, res.Created)
	require.Equal(t, 1, a.CurrentStreak)
	require.Equal(t, 1, a.BestStreak)
	require.Len(t, a.CompletionHistory, 1)
}

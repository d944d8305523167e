package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JarvisScienz/progress-tracker/internal/domain"
)

func activity(id, user string, createdAt time.Time) domain.Activity {
	return domain.Activity{
		ID:                id,
		UserID:            user,
		Title:             "Activity " + id,
		Frequency:         domain.FrequencyDaily,
		IsActive:          true,
		CompletionHistory: []domain.CompletionRecord{},
		CreatedAt:         createdAt,
	}
}

func TestGetReturnsIsolatedCopies(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, activity("a", "u1", time.Now())))

	got, err := repo.Get(ctx, "u1", "a")
	require.NoError(t, err)
	got.CompletionHistory = append(got.CompletionHistory, domain.CompletionRecord{Completed: true})
	got.Title = "changed"

	again, err := repo.Get(ctx, "u1", "a")
	require.NoError(t, err)
	require.Empty(t, again.CompletionHistory)
	require.Equal(t, "Activity a", again.Title)

	other, err := repo.Get(ctx, "u2", "a")
	require.NoError(t, err)
	require.Nil(t, other)
}

func TestListActivePagesNewestFirst(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, activity(fmt.Sprintf("a%d", i), "u1", base.Add(time.Duration(i)*time.Minute))))
	}
	// Same timestamp as a4: ties break on id, descending.
	require.NoError(t, repo.Create(ctx, activity("a9", "u1", base.Add(4*time.Minute))))
	retired := activity("r", "u1", base.Add(time.Hour))
	retired.IsActive = false
	require.NoError(t, repo.Create(ctx, retired))
	require.NoError(t, repo.Create(ctx, activity("x", "u2", base)))

	var ids []string
	page := domain.Page{Limit: 4}
	for {
		items, next, err := repo.ListActive(ctx, "u1", page)
		require.NoError(t, err)
		for _, a := range items {
			ids = append(ids, a.ID)
		}
		if next == nil {
			break
		}
		page.Cursor = next
	}
	require.Equal(t, []string{"a9", "a4", "a3", "a2", "a1", "a0"}, ids)
}

func TestMutate(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, activity("a", "u1", time.Now())))

	_, err := repo.Mutate(ctx, "u2", "a", func(*domain.Activity) ([]domain.Event, error) { return nil, nil })
	require.ErrorIs(t, err, domain.ErrActivityNotFound)

	boom := errors.New("boom")
	_, err = repo.Mutate(ctx, "u1", "a", func(a *domain.Activity) ([]domain.Event, error) {
		a.Title = "lost"
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	got, _ := repo.Get(ctx, "u1", "a")
	require.Equal(t, "Activity a", got.Title)

	updated, err := repo.Mutate(ctx, "u1", "a", func(a *domain.Activity) ([]domain.Event, error) {
		a.Title = "kept"
		return []domain.Event{{Type: domain.EventActivityUpdated}}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "kept", updated.Title)
	require.Len(t, repo.Events(), 1)
}

func TestMutateSerialisesConcurrentMarks(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, activity("a", "u1", time.Now())))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Mutate(ctx, "u1", "a", func(a *domain.Activity) ([]domain.Event, error) {
				a.MarkPeriod(domain.Mark{Date: start.AddDate(0, 0, i*2), Completed: true})
				return nil, nil
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := repo.Get(ctx, "u1", "a")
	require.NoError(t, err)
	require.Len(t, got.CompletionHistory, 20)
}

func TestReminderCandidates(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, activity("b", "u1", time.Now())))
	require.NoError(t, repo.Create(ctx, activity("a", "u1", time.Now())))
	weekly := activity("w", "u1", time.Now())
	weekly.Frequency = domain.FrequencyWeekly
	require.NoError(t, repo.Create(ctx, weekly))
	require.NoError(t, repo.Create(ctx, activity("n", "no-settings", time.Now())))
	require.NoError(t, repo.SaveSettings(ctx, domain.Settings{UserID: "u1", Email: "ada@example.com"}))

	candidates, err := repo.ReminderCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.Equal(t, "a", candidates[0].Activity.ID)
	require.Equal(t, "b", candidates[1].Activity.ID)
	require.Equal(t, "ada@example.com", candidates[0].Settings.Email)
}

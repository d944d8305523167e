package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JarvisScienz/progress-tracker/internal/domain"
	"github.com/JarvisScienz/progress-tracker/internal/observability"
	"github.com/JarvisScienz/progress-tracker/internal/outbox"
)

const activityColumns = `activity_id, user_id, title, description, frequency, start_date, end_date,
        completion_history, current_streak, best_streak, is_active, created_at, updated_at`

// Repository provides Postgres-backed persistence for activities, settings and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create persists the activity and records outbox events inside a single transaction.
func (r *Repository) Create(ctx context.Context, activity domain.Activity, events ...domain.Event) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = scopeToUser(ctx, tx, activity.UserID); err != nil {
		return err
	}

	history, err := json.Marshal(nonNilHistory(activity.CompletionHistory))
	if err != nil {
		return err
	}

	const insertActivity = `INSERT INTO activities (` + activityColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	_, err = tx.Exec(ctx, insertActivity,
		activity.ID,
		activity.UserID,
		activity.Title,
		activity.Description,
		string(activity.Frequency),
		activity.StartDate,
		activity.EndDate,
		history,
		activity.CurrentStreak,
		activity.BestStreak,
		activity.IsActive,
		activity.CreatedAt,
		activity.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for _, event := range events {
		if err = insertOutbox(ctx, tx, activity, event); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// Get retrieves an activity by ID for its owner.
func (r *Repository) Get(ctx context.Context, userID, activityID string) (*domain.Activity, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := scopeToUser(ctx, tx, userID); err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE user_id=$1 AND activity_id=$2`, userID, activityID)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &activity, nil
}

// ListActive returns active activities for a user ordered by creation time, newest first.
func (r *Repository) ListActive(ctx context.Context, userID string, page domain.Page) ([]domain.Activity, *domain.Cursor, error) {
	args := []any{userID}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id=$1 AND is_active`

	if page.Cursor != nil {
		query += ` AND (created_at, activity_id) < ($2, $3)`
		args = append(args, page.Cursor.CreatedAt, page.Cursor.ID)
	}
	query += ` ORDER BY created_at DESC, activity_id DESC`
	if page.Limit > 0 {
		args = append(args, page.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	if err := scopeToUser(ctx, tx, userID); err != nil {
		return nil, nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0, page.Limit)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if page.Limit > 0 && len(results) == page.Limit {
		last := results[len(results)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

// Mutate locks the activity row, applies fn and writes the document back with
// its outbox events in one transaction.
func (r *Repository) Mutate(ctx context.Context, userID, activityID string, fn domain.MutateFunc) (_ *domain.Activity, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = scopeToUser(ctx, tx, userID); err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE user_id=$1 AND activity_id=$2 FOR UPDATE`, userID, activityID)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = domain.ErrActivityNotFound
		}
		return nil, err
	}

	events, err := fn(&activity)
	if err != nil {
		return nil, err
	}

	history, err := json.Marshal(nonNilHistory(activity.CompletionHistory))
	if err != nil {
		return nil, err
	}

	const update = `UPDATE activities
           SET title=$3, description=$4, start_date=$5, end_date=$6, completion_history=$7,
               current_streak=$8, best_streak=$9, is_active=$10, updated_at=$11
         WHERE user_id=$1 AND activity_id=$2`

	if _, err = tx.Exec(ctx, update,
		userID,
		activityID,
		activity.Title,
		activity.Description,
		activity.StartDate,
		activity.EndDate,
		history,
		activity.CurrentStreak,
		activity.BestStreak,
		activity.IsActive,
		activity.UpdatedAt,
	); err != nil {
		return nil, err
	}

	for _, event := range events {
		if err = insertOutbox(ctx, tx, activity, event); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return &activity, nil
}

// ReminderCandidates returns every active daily activity whose owner can receive email.
func (r *Repository) ReminderCandidates(ctx context.Context) ([]domain.ReminderCandidate, error) {
	const query = `SELECT a.activity_id, a.user_id, a.title, a.description, a.frequency, a.start_date, a.end_date,
               a.completion_history, a.current_streak, a.best_streak, a.is_active, a.created_at, a.updated_at,
               s.threshold_percentage, s.username, s.dark_mode, s.email, s.reminders_enabled, s.updated_at
          FROM activities a
          JOIN user_settings s ON s.user_id = a.user_id
         WHERE a.is_active AND a.frequency = 'daily' AND s.reminders_enabled AND s.email <> ''
         ORDER BY a.activity_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ReminderCandidate, 0)
	for rows.Next() {
		var (
			c         domain.ReminderCandidate
			frequency string
			history   []byte
		)
		a := &c.Activity
		s := &c.Settings
		if err := rows.Scan(&a.ID, &a.UserID, &a.Title, &a.Description, &frequency, &a.StartDate, &a.EndDate,
			&history, &a.CurrentStreak, &a.BestStreak, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
			&s.ThresholdPercentage, &s.Username, &s.DarkMode, &s.Email, &s.RemindersEnabled, &s.UpdatedAt); err != nil {
			return nil, err
		}
		a.Frequency = domain.Frequency(frequency)
		if err := json.Unmarshal(history, &a.CompletionHistory); err != nil {
			return nil, fmt.Errorf("decode completion history of %s: %w", a.ID, err)
		}
		s.UserID = a.UserID
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetSettings loads the user's settings, or nil when none were saved.
func (r *Repository) GetSettings(ctx context.Context, userID string) (*domain.Settings, error) {
	const query = `SELECT user_id, threshold_percentage, username, dark_mode, email, reminders_enabled, updated_at
        FROM user_settings WHERE user_id=$1`

	var s domain.Settings
	err := r.pool.QueryRow(ctx, query, userID).Scan(&s.UserID, &s.ThresholdPercentage, &s.Username, &s.DarkMode, &s.Email, &s.RemindersEnabled, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// SaveSettings upserts the user's settings.
func (r *Repository) SaveSettings(ctx context.Context, s domain.Settings) error {
	const stmt = `INSERT INTO user_settings (user_id, threshold_percentage, username, dark_mode, email, reminders_enabled, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (user_id) DO UPDATE
           SET threshold_percentage = EXCLUDED.threshold_percentage,
               username = EXCLUDED.username,
               dark_mode = EXCLUDED.dark_mode,
               email = EXCLUDED.email,
               reminders_enabled = EXCLUDED.reminders_enabled,
               updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, stmt, s.UserID, s.ThresholdPercentage, s.Username, s.DarkMode, s.Email, s.RemindersEnabled, s.UpdatedAt)
	return err
}

func insertOutbox(ctx context.Context, tx pgx.Tx, activity domain.Activity, event domain.Event) error {
	route, err := outbox.RouteFor(event.Type)
	if err != nil {
		return err
	}
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		activity.UserID,
		"activity",
		activity.ID,
		string(event.Type),
		route.Topic,
		route.SchemaSubject,
		activity.ID,
		body,
	)
	return err
}

func scopeToUser(ctx context.Context, tx pgx.Tx, userID string) error {
	_, err := tx.Exec(ctx, "SELECT set_config('app.user_id', $1, true)", userID)
	return err
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var (
		a         domain.Activity
		frequency string
		history   []byte
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.Description, &frequency, &a.StartDate, &a.EndDate,
		&history, &a.CurrentStreak, &a.BestStreak, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Activity{}, err
	}
	a.Frequency = domain.Frequency(frequency)
	if err := json.Unmarshal(history, &a.CompletionHistory); err != nil {
		return domain.Activity{}, fmt.Errorf("decode completion history of %s: %w", a.ID, err)
	}
	return a, nil
}

func nonNilHistory(history []domain.CompletionRecord) []domain.CompletionRecord {
	if history == nil {
		return []domain.CompletionRecord{}
	}
	return history
}

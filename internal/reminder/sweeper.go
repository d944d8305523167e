// Package reminder emails users about daily activities they have not completed yet.
package reminder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JarvisScienz/progress-tracker/internal/domain"
	"github.com/JarvisScienz/progress-tracker/internal/observability"
)

// Source lists the reminders that are due right now.
type Source interface {
	DueReminders(ctx context.Context) ([]domain.Reminder, error)
}

// Result summarises one sweep.
type Result struct {
	Due    int
	Sent   int
	Failed int
}

// Sweeper sends one email per due reminder. Delivery is best effort: a failed
// email is logged and counted and the sweep moves on.
type Sweeper struct {
	source Source
	mailer Mailer
	logger *zap.Logger
	now    func() time.Time
}

// NewSweeper constructs a Sweeper.
func NewSweeper(source Source, mailer Mailer, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{source: source, mailer: mailer, logger: logger, now: time.Now}
}

// Run performs one sweep. Only a failure to list reminders is returned.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	reminders, err := s.source.DueReminders(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Due: len(reminders)}
	for _, r := range reminders {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		err := s.send(ctx, r)
		observability.RecordReminder(err)
		if err != nil {
			res.Failed++
			s.logger.Warn("reminder not sent",
				zap.String("user_id", r.UserID),
				zap.String("activity_id", r.ActivityID),
				zap.Error(err),
			)
			continue
		}
		res.Sent++
		s.logger.Debug("reminder sent", zap.String("user_id", r.UserID), zap.String("activity_id", r.ActivityID))
	}

	observability.RecordReminderSweep(s.now())
	s.logger.Info("reminder sweep finished",
		zap.Int("due", res.Due),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *Sweeper) send(ctx context.Context, r domain.Reminder) error {
	email, err := Render(r)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, email)
}

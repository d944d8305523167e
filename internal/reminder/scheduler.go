package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule runs the sweep every day at 09:00.
const DefaultSchedule = "0 9 * * *"

// Scheduler runs a Sweeper on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	sweeper *Sweeper
	logger  *zap.Logger
	timeout time.Duration
	entryID cron.EntryID
}

// NewScheduler validates spec and prepares a scheduler in loc. Overlapping
// runs are skipped and panics inside a sweep are recovered.
func NewScheduler(spec string, loc *time.Location, sweeper *Sweeper, logger *zap.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("reminder")
	cronLogger := zapCronLogger{logger: logger.Sugar()}

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		spec:    spec,
		sweeper: sweeper,
		logger:  logger,
		timeout: 10 * time.Minute,
	}, nil
}

// Start registers the sweep and starts the cron loop in its own goroutine.
func (s *Scheduler) Start() error {
	id, err := s.cron.AddFunc(s.spec, s.runOnce)
	if err != nil {
		return fmt.Errorf("schedule reminder sweep: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	s.logger.Info("reminder scheduler started", zap.String("schedule", s.spec), zap.Time("next", s.Next()))
	return nil
}

// Next reports when the sweep runs next, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("reminder scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.sweeper.Run(ctx); err != nil {
		s.logger.Error("reminder sweep failed", zap.Error(err))
	}
}

// zapCronLogger adapts zap to cron.Logger.
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

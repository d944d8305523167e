package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JarvisScienz/progress-tracker/internal/config"
	"github.com/JarvisScienz/progress-tracker/internal/domain"
	"github.com/JarvisScienz/progress-tracker/internal/logging"
	"github.com/JarvisScienz/progress-tracker/internal/persistence/postgres"
	"github.com/JarvisScienz/progress-tracker/internal/reminder"
)

type app struct {
	cfg     config.Config
	logger  *zap.Logger
	verbose bool
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "habitctl",
		Short:         "Administer the progress tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			level := cfg.LogLevel
			if a.verbose {
				level = "debug"
			}
			logger, err := logging.New(level, true)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 2*time.Minute, "overall deadline for the command")

	root.AddCommand(
		a.migrateCmd(),
		a.monthCmd(),
		a.progressCmd(),
		a.remindCmd(),
		replayCmd(),
	)
	return root
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()

			pool, err := pgxpool.New(ctx, a.cfg.PostgresURL)
			if err != nil {
				return fmt.Errorf("connect to postgres: %w", err)
			}
			defer pool.Close()

			applied, err := postgres.Migrate(ctx, pool)
			if err != nil {
				return err
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			current, latest, err := postgres.SchemaVersion(ctx, pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date at version %d\n", current)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d of %d\n", current, latest)
			return nil
		},
	}
}

func (a *app) monthCmd() *cobra.Command {
	var (
		userID string
		year   int
		month  int
	)
	now := time.Now()
	cmd := &cobra.Command{
		Use:   "month",
		Short: "Print the calendar overview of one month as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if month < 1 || month > 12 {
				return fmt.Errorf("%w: %d", domain.ErrInvalidMonth, month)
			}
			return a.withService(cmd.Context(), func(ctx context.Context, svc *domain.Service) error {
				days, err := svc.MonthOverview(ctx, userID, year, month)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"year": year, "month": month, "days": days})
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner of the activities")
	cmd.Flags().IntVar(&year, "year", now.Year(), "calendar year")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "calendar month, 1-12")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) progressCmd() *cobra.Command {
	var (
		userID string
		date   string
	)
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Print one day's completion against the user's goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *domain.Service) error {
				var day *time.Time
				if date != "" {
					parsed, err := time.ParseInLocation(domain.DateLayout, date, svc.Location())
					if err != nil {
						return fmt.Errorf("invalid --date: %w", err)
					}
					day = &parsed
				}
				progress, err := svc.DailyProgress(ctx, userID, day)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), progress)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner of the activities")
	cmd.Flags().StringVar(&date, "date", "", "calendar day as YYYY-MM-DD, defaults to today")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) remindCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Run one reminder sweep now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *domain.Service) error {
				if dryRun {
					due, err := svc.DueReminders(ctx)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), due)
				}
				res, err := reminder.NewSweeper(svc, reminder.NewSMTPMailer(a.cfg.SMTP), a.logger).Run(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "due=%d sent=%d failed=%d\n", res.Due, res.Sent, res.Failed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list due reminders without sending email")
	return cmd
}

func (a *app) withService(parent context.Context, fn func(context.Context, *domain.Service) error) error {
	loc, err := a.cfg.Location()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", a.cfg.Timezone, err)
	}
	ctx, cancel := context.WithTimeout(parent, a.timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, a.cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	repo := postgres.NewRepository(pool)
	return fn(ctx, domain.NewService(repo, repo, domain.WithLocation(loc)))
}

// replayCmd runs marks through the streak engine without touching storage.
// Each argument is a date, optionally suffixed with ":missed".
func replayCmd() *cobra.Command {
	var frequency string
	cmd := &cobra.Command{
		Use:     "replay DATE[:missed]...",
		Short:   "Replay period marks and print the resulting streaks",
		Example: "  habitctl replay --frequency daily 2024-03-10 2024-03-11 2024-03-12:missed",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := domain.ParseFrequency(frequency)
			if err != nil {
				return err
			}
			activity := domain.Activity{Frequency: f}
			for _, arg := range args {
				raw, state, _ := strings.Cut(arg, ":")
				if state != "" && state != "missed" && state != "done" {
					return fmt.Errorf("invalid mark %q: state must be done or missed", arg)
				}
				date, err := time.ParseInLocation(domain.DateLayout, raw, time.UTC)
				if err != nil {
					return fmt.Errorf("invalid mark %q: %w", arg, err)
				}
				activity.MarkPeriod(domain.Mark{Date: date, Completed: state != "missed"})
			}

			history := make([]map[string]any, 0, len(activity.CompletionHistory))
			for _, r := range domain.SortHistory(activity.CompletionHistory) {
				history = append(history, map[string]any{"date": r.Date.Format(domain.DateLayout), "completed": r.Completed})
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"frequency":      f,
				"current_streak": activity.CurrentStreak,
				"best_streak":    activity.BestStreak,
				"history":        history,
			})
		},
	}
	cmd.Flags().StringVarP(&frequency, "frequency", "f", string(domain.FrequencyDaily), "daily, weekly or monthly")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

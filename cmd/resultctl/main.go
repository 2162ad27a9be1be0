package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stemsi/exstem-results/internal/app"
	"github.com/stemsi/exstem-results/internal/clock"
	"github.com/stemsi/exstem-results/internal/config"
	"github.com/stemsi/exstem-results/internal/logger"
	"github.com/stemsi/exstem-results/internal/worker"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "resultctl",
		Short:        "Operate exam evaluation and result release",
		SilenceUsage: true,
	}

	f := root.PersistentFlags()
	f.String("database-url", "", "PostgreSQL URL (or DATABASE_URL)")
	f.String("redis-url", "", "Redis URL (or REDIS_URL)")
	f.String("grade-table", "", "Grade bands, e.g. A+:80,A:70,F:0 (or GRADE_TABLE)")
	f.String("notification-sink", "", "queue or log (or NOTIFICATION_SINK)")
	f.Int("notify-concurrency", 0, "Parallel notification sends (or NOTIFY_CONCURRENCY)")
	f.String("log-level", "", "Log level (or LOG_LEVEL)")
	f.String("log-format", "", "pretty or json (or LOG_FORMAT)")
	f.Duration("timeout", 5*time.Minute, "Overall command timeout")

	root.AddCommand(
		releaseCmd(),
		autoReleaseCmd(),
		evaluateCmd(),
		checkTimerCmd(),
		reevaluateCmd(),
		invalidateCacheCmd(),
	)
	return root
}

func releaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release <exam-id>",
		Short: "Close open submissions, publish ranked results and notify students",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
			examID, err := parseID("exam", args[0])
			if err != nil {
				return err
			}
			report, err := a.Release.FinalizeAndRelease(ctx, examID)
			if err != nil {
				return fmt.Errorf("release: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), report)
		}),
	}
}

func autoReleaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auto-release [exam-id...]",
		Short: "Release objective-only exams that are due",
		RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all == (len(args) > 0) {
				return fmt.Errorf("pass exam ids or --all, not both")
			}

			released := map[string]bool{}
			if all {
				sweeper := worker.NewReleaseSweeper(a.Exams, a.Release, clock.System{}, time.Minute, logFrom(ctx))
				ids, err := sweeper.Sweep(ctx)
				if err != nil {
					return fmt.Errorf("sweep: %w", err)
				}
				for _, id := range ids {
					released[id.String()] = true
				}
				return printJSON(cmd.OutOrStdout(), released)
			}

			for _, raw := range args {
				examID, err := parseID("exam", raw)
				if err != nil {
					return err
				}
				ok, err := a.Release.AutoReleaseIfDue(ctx, examID)
				if err != nil {
					return fmt.Errorf("auto-release %s: %w", examID, err)
				}
				released[examID.String()] = ok
			}
			return printJSON(cmd.OutOrStdout(), released)
		}),
	}
	cmd.Flags().Bool("all", false, "Check every ended exam without published results")
	return cmd
}

func evaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <submission-id>",
		Short: "Evaluate one submission and store its result",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
			id, err := parseID("submission", args[0])
			if err != nil {
				return err
			}
			b, err := a.Evaluation.EvaluateByID(ctx, id)
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), b)
		}),
	}
}

func checkTimerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-timer <submission-id>",
		Short: "Apply section auto-submission to a submission and show its state",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
			id, err := parseID("submission", args[0])
			if err != nil {
				return err
			}
			sub, err := a.Release.CheckSubmission(ctx, id)
			if err != nil {
				return fmt.Errorf("check timer: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), sub)
		}),
	}
}

func reevaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reevaluate <exam-id>",
		Short: "Queue every submitted submission of an exam for re-evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
			examID, err := parseID("exam", args[0])
			if err != nil {
				return err
			}
			n, err := a.Queue.EnqueueExam(ctx, examID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"queued": n})
		}),
	}
}

func invalidateCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate-cache <exam-id>",
		Short: "Drop the cached question sets of an exam",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
			examID, err := parseID("exam", args[0])
			if err != nil {
				return err
			}
			if err := a.QuestionSets.Invalidate(ctx, examID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		}),
	}
}

// ----------------------------------------------------------------
// Plumbing
// ----------------------------------------------------------------

type appFunc func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error

type logKey struct{}

// withApp loads configuration, connects and hands the wired App to fn.
func withApp(fn appFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		v := viperForCmd(cmd)
		cfg := config.Load()
		applyOverrides(cfg, v)

		log := logger.New(cmd.ErrOrStderr(), cfg.LogFormat).Level(logger.ParseLevel(cfg.LogLevel))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, v.GetDuration("timeout"))
		defer cancel()
		ctx = context.WithValue(ctx, logKey{}, log)

		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(ctx, a, cmd, args)
	}
}

func logFrom(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(logKey{}).(zerolog.Logger); ok {
		return log
	}
	return zerolog.Nop()
}

// viperForCmd binds a command's flags and environment to a fresh viper
// instance. Flag names map onto the server's environment keys, so
// --database-url falls back to DATABASE_URL.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.PersistentFlags())
	_ = v.BindPFlags(cmd.InheritedFlags())

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// applyOverrides lets non-empty flag values win over the environment-loaded config.
func applyOverrides(cfg *config.Config, v *viper.Viper) {
	if s := v.GetString("database-url"); s != "" {
		cfg.DatabaseURL = s
	}
	if s := v.GetString("redis-url"); s != "" {
		cfg.RedisURL = s
	}
	if s := v.GetString("grade-table"); s != "" {
		cfg.GradeTable = s
	}
	if s := v.GetString("notification-sink"); s != "" {
		cfg.NotificationSink = s
	}
	if n := v.GetInt("notify-concurrency"); n > 0 {
		cfg.NotifyConcurrency = n
	}
	if s := v.GetString("log-level"); s != "" {
		cfg.LogLevel = s
	}
	if s := v.GetString("log-format"); s != "" {
		cfg.LogFormat = s
	}
}

func parseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q: %w", kind, raw, err)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"timetrack/internal/bootstrap"
	sessiondto "timetrack/internal/modules/session/dto"
	"timetrack/internal/platform/config"
	apperrors "timetrack/internal/platform/errors"
	"timetrack/internal/ui/theme"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	dataDir    string
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "timetrack",
		Short:         "Track work sessions and the applications used in them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "directory holding the session store and index")
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default <data-dir>/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error")

	root.AddCommand(newStartCmd(opts))
	root.AddCommand(newStopCmd(opts))
	root.AddCommand(newRestartCmd(opts))
	root.AddCommand(newRemoveCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newShowCmd(opts))
	root.AddCommand(newActivityCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newTrackCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	root.AddCommand(newExportCmd(opts))
	root.AddCommand(newReindexCmd(opts))
	root.AddCommand(newReportCmd(opts))
	return root
}

func loadApp(ctx context.Context, opts *rootOptions, overrides ...func(*config.Config)) (*bootstrap.App, config.Config, error) {
	cfg, err := config.Load(config.Options{DataDir: opts.dataDir, ConfigFile: opts.configFile, LogLevel: opts.logLevel})
	if err != nil {
		return nil, config.Config{}, err
	}
	for _, override := range overrides {
		override(&cfg)
	}
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return nil, config.Config{}, err
	}
	return app, cfg, nil
}

// withApp runs fn against a freshly loaded app and turns a failed save into
// the command's error once fn has printed its result.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, app *bootstrap.App) error, overrides ...func(*config.Config)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, _, err := loadApp(ctx, opts, overrides...)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := fn(ctx, app); err != nil {
		return err
	}
	if err := app.SessionCLI.PersistErr(); err != nil {
		return fmt.Errorf("save sessions: %w", err)
	}
	return nil
}

// routine reports outcomes that are printed rather than failing the command.
func routine(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrInvalidState)
}

func printBool(w io.Writer, ok bool, success, miss string) {
	if ok {
		_, _ = fmt.Fprintln(w, success)
		return
	}
	_, _ = fmt.Fprintln(w, miss)
}

func newStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start <name>",
		Short: "Start a new session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SessionCLI.Start(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session started: %s\n", out.ID)
				return nil
			})
		},
	}
}

func newStopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop an active session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				ok, err := app.SessionCLI.Stop(ctx, args[0])
				if err != nil {
					return err
				}
				printBool(cmd.OutOrStdout(), ok, "session stopped: "+args[0], "session not found or already stopped")
				return nil
			})
		},
	}
}

func newRestartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <id>",
		Short: "Restart a stopped session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				ok, err := app.SessionCLI.Restart(ctx, args[0])
				if err != nil {
					return err
				}
				printBool(cmd.OutOrStdout(), ok, "session restarted: "+args[0], "session not found or already active")
				return nil
			})
		},
	}
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a session and its activities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				ok, err := app.SessionCLI.Remove(ctx, args[0])
				if err != nil {
					return err
				}
				printBool(cmd.OutOrStdout(), ok, "session removed: "+args[0], "session not found")
				return nil
			})
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				sessions, err := app.SessionCLI.List(ctx, all)
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					if all {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no sessions found")
					} else {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no active sessions")
					}
					return nil
				}
				t := theme.NewTable("ID", "NAME", "DURATION", "STATUS")
				for _, s := range sessions {
					t.Row(s.ID, s.Name, formatDuration(s.Duration), theme.Status(s.IsActive))
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include stopped sessions")
	return cmd
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session with its activities and statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				s, err := app.SessionCLI.Show(ctx, args[0])
				if routine(err) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "session not found")
					return nil
				}
				if err != nil {
					return err
				}
				stats, err := app.SessionCLI.Stats(ctx, s.ID)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "id:       %s\n", s.ID)
				_, _ = fmt.Fprintf(w, "name:     %s\n", s.Name)
				_, _ = fmt.Fprintf(w, "status:   %s\n", theme.Status(s.IsActive))
				_, _ = fmt.Fprintf(w, "started:  %s\n", s.StartTime.Local().Format(time.DateTime))
				if s.EndTime != nil {
					_, _ = fmt.Fprintf(w, "ended:    %s\n", s.EndTime.Local().Format(time.DateTime))
				}
				_, _ = fmt.Fprintf(w, "duration: %s\n\n", formatDuration(s.Duration))
				printActivities(w, s.Activities)
				_, _ = fmt.Fprintln(w)
				printStats(w, stats)
				return nil
			})
		},
	}
}

func newActivityCmd(opts *rootOptions) *cobra.Command {
	activity := &cobra.Command{Use: "activity", Short: "Activity commands"}

	activity.AddCommand(&cobra.Command{
		Use:   "start <session-id>",
		Short: "Start an activity from the focused window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SessionCLI.StartActivity(ctx, args[0])
				if routine(err) {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "activity not started: %v\n", err)
					return nil
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "activity started: %s (%s, %s)\n", out.ID, out.ApplicationName, out.FilePath)
				return nil
			})
		},
	})

	activity.AddCommand(&cobra.Command{
		Use:   "stop <session-id> <activity-id>",
		Short: "Stop a running activity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				ok, err := app.SessionCLI.StopActivity(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				printBool(cmd.OutOrStdout(), ok, "activity stopped: "+args[1], "activity not found or already stopped")
				return nil
			})
		},
	})

	activity.AddCommand(&cobra.Command{
		Use:   "list <session-id>",
		Short: "List the activities of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				activities, err := app.SessionCLI.Activities(ctx, args[0])
				if routine(err) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "session not found")
					return nil
				}
				if err != nil {
					return err
				}
				printActivities(cmd.OutOrStdout(), activities)
				return nil
			})
		},
	})
	return activity
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <id>",
		Short: "Show application and file statistics for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				stats, err := app.SessionCLI.Stats(ctx, args[0])
				if routine(err) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "session not found")
					return nil
				}
				if err != nil {
					return err
				}
				printStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}
}

func newTrackCmd(opts *rootOptions) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "track <id>",
		Short: "Follow the focused window and record activities until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, cfg, err := loadApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			if interval <= 0 {
				interval = cfg.TrackInterval
			}
			return track(ctx, cmd.OutOrStdout(), app, args[0], interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "polling interval (default track.interval)")
	return cmd
}

func track(ctx context.Context, w io.Writer, app *bootstrap.App, sessionID string, interval time.Duration) error {
	poll := func() error {
		out, err := app.SessionCLI.SwitchActivity(ctx, sessionID)
		if err != nil {
			return err
		}
		if out.Switched {
			_, _ = fmt.Fprintf(w, "tracking %s (%s)\n", out.Activity.ApplicationName, out.Activity.FilePath)
		}
		if err := app.SessionCLI.PersistErr(); err != nil {
			return fmt.Errorf("save sessions: %w", err)
		}
		return nil
	}
	if err := poll(); err != nil {
		if routine(err) {
			_, _ = fmt.Fprintf(w, "cannot track: %v\n", err)
			return nil
		}
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if _, err := app.SessionCLI.StopRunningActivity(context.Background(), sessionID); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(w, "tracking stopped")
			if err := app.SessionCLI.PersistErr(); err != nil {
				return fmt.Errorf("save sessions: %w", err)
			}
			return nil
		case <-ticker.C:
			if err := poll(); err != nil {
				if routine(err) {
					_, _ = fmt.Fprintf(w, "tracking ended: %v\n", err)
					return nil
				}
				return err
			}
		}
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the terminal view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM)
			defer stop()

			app, cfg, err := loadApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			if err := bootstrap.RunWatch(ctx, app, cfg.TrackInterval); err != nil {
				return err
			}
			if err := app.SessionCLI.PersistErr(); err != nil {
				return fmt.Errorf("save sessions: %w", err)
			}
			return nil
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write the session as a markdown note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SessionCLI.Export(ctx, args[0])
				if routine(err) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "session not found")
					return nil
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %s note=%s\n", out.SessionID, out.Path)
				return nil
			}, func(cfg *config.Config) {
				if dir != "" {
					cfg.ExportDir = dir
				}
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "notes directory (default export.dir)")
	return cmd
}

func newReindexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the statistics index from the session store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SessionCLI.Reindex(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d sessions, %d activities\n", out.Sessions, out.Activities)
				return nil
			})
		},
	}
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var since string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show application and file totals across sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := parseSince(since, time.Now())
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SessionCLI.Report(ctx, from)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if len(out.Applications) == 0 {
					_, _ = fmt.Fprintln(w, "no activities recorded")
					return nil
				}
				printTotals(w, "APPLICATION", out.Applications)
				_, _ = fmt.Fprintln(w)
				printTotals(w, "FILE", out.Files)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "lower bound: a duration back from now (24h), a date (2006-01-02) or an RFC3339 time")
	return cmd
}

// parseSince accepts an empty string (everything), a Go duration counted back
// from now, a local date or an RFC3339 timestamp.
func parseSince(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return now.Add(-d), nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("--since %q: expected a duration, date or RFC3339 time: %w", raw, apperrors.ErrInvalidArgument)
}

func printActivities(w io.Writer, activities []sessiondto.ActivityOutput) {
	if len(activities) == 0 {
		_, _ = fmt.Fprintln(w, "no activities")
		return
	}
	t := theme.NewTable("ID", "APPLICATION", "FILE", "STARTED", "DURATION", "STATUS")
	for _, a := range activities {
		status := "stopped"
		if a.Running {
			status = "running"
		}
		t.Row(a.ID, a.ApplicationName, a.FilePath, a.StartTime.Local().Format(time.TimeOnly), formatDuration(a.Duration), status)
	}
	_, _ = fmt.Fprintln(w, t.Render())
}

func printStats(w io.Writer, stats sessiondto.StatisticsOutput) {
	printTotals(w, "APPLICATION", stats.Applications)
	_, _ = fmt.Fprintln(w)
	printTotals(w, "FILE", stats.Files)
	_, _ = fmt.Fprintf(w, "\ntotal active: %s\n", formatDuration(stats.TotalActive))
}

func printTotals(w io.Writer, column string, totals []sessiondto.TotalOutput) {
	t := theme.NewTable(column, "DURATION", "ACTIVITIES")
	for _, total := range totals {
		t.Row(total.Key, formatDuration(total.Duration), fmt.Sprint(total.Count))
	}
	_, _ = fmt.Fprintln(w, t.Render())
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}

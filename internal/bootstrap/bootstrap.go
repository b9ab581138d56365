package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	sessioninadapter "timetrack/internal/modules/session/adapter/in"
	sessionoutadapter "timetrack/internal/modules/session/adapter/out"
	sessionout "timetrack/internal/modules/session/port/out"
	sessionservice "timetrack/internal/modules/session/service"
	sessionusecase "timetrack/internal/modules/session/usecase"
	"timetrack/internal/platform/clock"
	"timetrack/internal/platform/config"
	"timetrack/internal/platform/id"
	"timetrack/internal/platform/logging"
	uiapp "timetrack/internal/ui/app"
)

type App struct {
	SessionCLI sessioninadapter.CLIHandler
	Logger     *zap.Logger

	closers []io.Closer
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("new logger: %w", err)
	}

	store := sessionoutadapter.NewFileSessionStore(cfg.StorePath, logger)
	detector := sessionoutadapter.NewPlatformDetector(cfg.DetectorTimeout, logger)
	manager, err := sessionservice.NewSessionManager(ctx, clock.SystemClock{}, id.UUID{}, store, detector, logger,
		sessionservice.WithStopRunningActivity(cfg.StopRunningActivity))
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("new session manager: %w", err)
	}

	app := &App{Logger: logger}

	// The index is a projection; without it every command except report and
	// reindex still works.
	var index sessionout.StatsIndex
	sqliteIndex, err := sessionoutadapter.NewSQLiteStatsIndex(cfg.IndexPath)
	if err != nil {
		logger.Warn("stats index unavailable", zap.String("path", cfg.IndexPath), zap.Error(err))
	} else {
		index = sqliteIndex
		app.closers = append(app.closers, sqliteIndex)
	}

	sessionUC := sessionusecase.NewInteractor(manager, index, sessionoutadapter.NewMarkdownNoteExporter(cfg.ExportDir), logger)
	app.SessionCLI = sessioninadapter.NewCLIHandler(sessionUC)
	return app, nil
}

// Close releases the stats index and flushes the logger.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}

// RunWatch runs the terminal view. A session still auto-tracked on quit gets
// its running activity stopped.
func RunWatch(ctx context.Context, app *App, interval time.Duration) error {
	model := uiapp.NewModel(app.SessionCLI, interval)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := program.Run()
	if m, ok := final.(uiapp.Model); ok && m.Tracking() != "" {
		if _, stopErr := app.SessionCLI.StopRunningActivity(context.Background(), m.Tracking()); stopErr != nil {
			app.Logger.Warn("stop tracked activity", zap.String("session_id", m.Tracking()), zap.Error(stopErr))
		}
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

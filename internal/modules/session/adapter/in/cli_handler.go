package in

import (
	"context"
	"time"

	sessiondto "timetrack/internal/modules/session/dto"
	sessionin "timetrack/internal/modules/session/port/in"
)

type CLIHandler struct {
	usecase sessionin.Usecase
}

func NewCLIHandler(usecase sessionin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Start(ctx context.Context, name string) (sessiondto.SessionOutput, error) {
	return h.usecase.StartSession(ctx, name)
}

func (h CLIHandler) Stop(ctx context.Context, sessionID string) (bool, error) {
	return h.usecase.StopSession(ctx, sessionID)
}

func (h CLIHandler) Restart(ctx context.Context, sessionID string) (bool, error) {
	return h.usecase.RestartSession(ctx, sessionID)
}

func (h CLIHandler) Remove(ctx context.Context, sessionID string) (bool, error) {
	return h.usecase.RemoveSession(ctx, sessionID)
}

func (h CLIHandler) Show(ctx context.Context, sessionID string) (sessiondto.SessionOutput, error) {
	return h.usecase.GetSession(ctx, sessionID)
}

func (h CLIHandler) List(ctx context.Context, all bool) ([]sessiondto.SessionOutput, error) {
	return h.usecase.ListSessions(ctx, all)
}

func (h CLIHandler) StartActivity(ctx context.Context, sessionID string) (sessiondto.ActivityOutput, error) {
	return h.usecase.StartActivity(ctx, sessionID)
}

func (h CLIHandler) StopActivity(ctx context.Context, sessionID, activityID string) (bool, error) {
	return h.usecase.StopActivity(ctx, sessionID, activityID)
}

func (h CLIHandler) StopRunningActivity(ctx context.Context, sessionID string) (bool, error) {
	return h.usecase.StopRunningActivity(ctx, sessionID)
}

func (h CLIHandler) SwitchActivity(ctx context.Context, sessionID string) (sessiondto.SwitchOutput, error) {
	return h.usecase.SwitchActivity(ctx, sessionID)
}

func (h CLIHandler) Activities(ctx context.Context, sessionID string) ([]sessiondto.ActivityOutput, error) {
	return h.usecase.ListActivities(ctx, sessionID)
}

func (h CLIHandler) Stats(ctx context.Context, sessionID string) (sessiondto.StatisticsOutput, error) {
	return h.usecase.Statistics(ctx, sessionID)
}

func (h CLIHandler) Export(ctx context.Context, sessionID string) (sessiondto.ExportOutput, error) {
	return h.usecase.Export(ctx, sessiondto.ExportInput{SessionID: sessionID})
}

func (h CLIHandler) Reindex(ctx context.Context) (sessiondto.ReindexOutput, error) {
	return h.usecase.Reindex(ctx)
}

func (h CLIHandler) Report(ctx context.Context, since time.Time) (sessiondto.ReportOutput, error) {
	return h.usecase.Report(ctx, sessiondto.ReportInput{Since: since})
}

func (h CLIHandler) PersistErr() error {
	return h.usecase.PersistErr()
}

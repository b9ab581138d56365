package in

import (
	"context"

	"timetrack/internal/modules/session/dto"
)

type Usecase interface {
	StartSession(ctx context.Context, name string) (dto.SessionOutput, error)
	StopSession(ctx context.Context, sessionID string) (bool, error)
	RestartSession(ctx context.Context, sessionID string) (bool, error)
	RemoveSession(ctx context.Context, sessionID string) (bool, error)
	GetSession(ctx context.Context, sessionID string) (dto.SessionOutput, error)
	ListSessions(ctx context.Context, includeInactive bool) ([]dto.SessionOutput, error)

	StartActivity(ctx context.Context, sessionID string) (dto.ActivityOutput, error)
	StopActivity(ctx context.Context, sessionID, activityID string) (bool, error)
	SwitchActivity(ctx context.Context, sessionID string) (dto.SwitchOutput, error)
	StopRunningActivity(ctx context.Context, sessionID string) (bool, error)
	ListActivities(ctx context.Context, sessionID string) ([]dto.ActivityOutput, error)

	Statistics(ctx context.Context, sessionID string) (dto.StatisticsOutput, error)
	Export(ctx context.Context, input dto.ExportInput) (dto.ExportOutput, error)
	Reindex(ctx context.Context) (dto.ReindexOutput, error)
	Report(ctx context.Context, input dto.ReportInput) (dto.ReportOutput, error)

	// PersistErr returns the last snapshot write failure, if any.
	PersistErr() error
}

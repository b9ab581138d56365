package out

import (
	"context"
	"time"

	"timetrack/internal/modules/session/domain"
)

// SessionStore persists the full ordered set of sessions as one snapshot.
type SessionStore interface {
	Load(ctx context.Context) ([]domain.Session, error)
	Save(ctx context.Context, sessions []domain.Session) error
}

// ActivityDetector reports the focused application and file. It never fails;
// anything it cannot determine comes back as domain.Unknown.
type ActivityDetector interface {
	CurrentActivity(ctx context.Context) (applicationName, filePath string)
}

type StatsIndex interface {
	Reset(ctx context.Context) error
	UpsertSession(ctx context.Context, session domain.Session) error
	DeleteSession(ctx context.Context, sessionID string) error
	ApplicationTotals(ctx context.Context, since, now time.Time) ([]domain.Total, error)
	FileTotals(ctx context.Context, since, now time.Time) ([]domain.Total, error)
}

type NoteExporter interface {
	Export(ctx context.Context, session domain.Session, now time.Time) (string, error)
}

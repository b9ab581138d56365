package out

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"timetrack/internal/modules/session/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStatsIndex is a query-side projection of the snapshot used for
// cross-session reports. It can always be rebuilt from the JSON store.
type SQLiteStatsIndex struct {
	db *sql.DB
}

func NewSQLiteStatsIndex(dbPath string) (*SQLiteStatsIndex, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	index := &SQLiteStatsIndex{db: db}
	if err := index.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return index, nil
}

func (s *SQLiteStatsIndex) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  start_ms INTEGER NOT NULL,
  end_ms INTEGER,
  is_active INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS activities (
  id TEXT NOT NULL,
  session_id TEXT NOT NULL,
  application_name TEXT NOT NULL,
  file_path TEXT NOT NULL,
  start_ms INTEGER NOT NULL,
  end_ms INTEGER,
  PRIMARY KEY (session_id, id)
);
CREATE INDEX IF NOT EXISTS activities_start_idx ON activities(start_ms);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create stats tables: %w", err)
	}
	return nil
}

func (s *SQLiteStatsIndex) Close() error {
	return s.db.Close()
}

func (s *SQLiteStatsIndex) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM activities; DELETE FROM sessions;`); err != nil {
		return fmt.Errorf("reset stats index: %w", err)
	}
	return nil
}

func (s *SQLiteStatsIndex) UpsertSession(ctx context.Context, session domain.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert session: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
INSERT INTO sessions (id, name, start_ms, end_ms, is_active)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  name=excluded.name,
  start_ms=excluded.start_ms,
  end_ms=excluded.end_ms,
  is_active=excluded.is_active;
`
	if _, err := tx.ExecContext(ctx, upsert, session.ID, session.Name, session.StartTime.UnixMilli(), nullableMillis(session.EndTime), session.IsActive); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE session_id = ?`, session.ID); err != nil {
		return fmt.Errorf("clear session activities: %w", err)
	}
	const insert = `
INSERT INTO activities (id, session_id, application_name, file_path, start_ms, end_ms)
VALUES (?, ?, ?, ?, ?, ?);
`
	for _, a := range session.Activities {
		if _, err := tx.ExecContext(ctx, insert, a.ID, session.ID, a.ApplicationName, a.FilePath, a.StartTime.UnixMilli(), nullableMillis(a.EndTime)); err != nil {
			return fmt.Errorf("insert activity %s: %w", a.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert session: %w", err)
	}
	return nil
}

func (s *SQLiteStatsIndex) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete session: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session activities: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStatsIndex) ApplicationTotals(ctx context.Context, since, now time.Time) ([]domain.Total, error) {
	return s.totals(ctx, "application_name", since, now)
}

func (s *SQLiteStatsIndex) FileTotals(ctx context.Context, since, now time.Time) ([]domain.Total, error) {
	return s.totals(ctx, "file_path", since, now)
}

// totals clips each activity to [since, now]; running activities end at now.
func (s *SQLiteStatsIndex) totals(ctx context.Context, column string, since, now time.Time) ([]domain.Total, error) {
	query := fmt.Sprintf(`
SELECT %[1]s AS bucket,
       SUM(MAX(0, COALESCE(end_ms, ?1) - MAX(start_ms, ?2))) AS total_ms,
       COUNT(*) AS n
FROM activities
WHERE COALESCE(end_ms, ?1) > ?2
GROUP BY %[1]s
ORDER BY total_ms DESC, bucket ASC;
`, column)
	sinceMS := int64(0)
	if !since.IsZero() {
		sinceMS = since.UnixMilli()
	}
	rows, err := s.db.QueryContext(ctx, query, now.UnixMilli(), sinceMS)
	if err != nil {
		return nil, fmt.Errorf("query %s totals: %w", column, err)
	}
	defer rows.Close()

	out := []domain.Total{}
	for rows.Next() {
		var (
			key     string
			totalMS int64
			count   int
		)
		if err := rows.Scan(&key, &totalMS, &count); err != nil {
			return nil, fmt.Errorf("scan %s totals: %w", column, err)
		}
		out = append(out, domain.Total{Key: key, Duration: time.Duration(totalMS) * time.Millisecond, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s totals: %w", column, err)
	}
	return out, nil
}

func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

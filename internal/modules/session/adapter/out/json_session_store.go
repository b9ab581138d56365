package out

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"timetrack/internal/modules/session/domain"
	sessionout "timetrack/internal/modules/session/port/out"
	apperrors "timetrack/internal/platform/errors"
	"timetrack/internal/platform/fsutil"
)

var errCorrupted = errors.New("corrupted session store")

// FileSessionStore keeps the whole snapshot in one JSON document.
type FileSessionStore struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

func NewFileSessionStore(path string, logger *zap.Logger) sessionout.SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSessionStore{path: path, logger: logger.Named("session-store")}
}

type snapshotDocument struct {
	SchemaVersion int             `json:"schema_version"`
	Sessions      []sessionRecord `json:"sessions"`
}

type sessionRecord struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	StartTime  timestamp        `json:"start_time"`
	EndTime    *timestamp       `json:"end_time"`
	IsActive   bool             `json:"is_active"`
	Activities []activityRecord `json:"activities"`
}

type activityRecord struct {
	ID              string     `json:"id"`
	ApplicationName string     `json:"application_name"`
	FilePath        string     `json:"file_path"`
	StartTime       timestamp  `json:"start_time"`
	EndTime         *timestamp `json:"end_time"`
}

// Records written by the earlier tool use PascalCase keys. encoding/json matches
// keys case-insensitively, so "Id" and "Name" already land in the snake_case
// fields; only the multi-word keys need their own slots.
type legacySessionFields struct {
	StartTime *timestamp `json:"StartTime"`
	EndTime   *timestamp `json:"EndTime"`
	IsActive  *bool      `json:"IsActive"`
}

type legacyActivityFields struct {
	ApplicationName *string    `json:"ApplicationName"`
	FilePath        *string    `json:"FilePath"`
	StartTime       *timestamp `json:"StartTime"`
	EndTime         *timestamp `json:"EndTime"`
}

func (r *sessionRecord) UnmarshalJSON(b []byte) error {
	type plain sessionRecord
	var rec plain
	if err := json.Unmarshal(b, &rec); err != nil {
		return err
	}
	var legacy legacySessionFields
	if err := json.Unmarshal(b, &legacy); err != nil {
		return err
	}
	if legacy.StartTime != nil {
		rec.StartTime = *legacy.StartTime
	}
	if legacy.EndTime != nil {
		rec.EndTime = legacy.EndTime
	}
	if legacy.IsActive != nil {
		rec.IsActive = *legacy.IsActive
	}
	*r = sessionRecord(rec)
	return nil
}

func (r *activityRecord) UnmarshalJSON(b []byte) error {
	type plain activityRecord
	var rec plain
	if err := json.Unmarshal(b, &rec); err != nil {
		return err
	}
	var legacy legacyActivityFields
	if err := json.Unmarshal(b, &legacy); err != nil {
		return err
	}
	if legacy.ApplicationName != nil {
		rec.ApplicationName = *legacy.ApplicationName
	}
	if legacy.FilePath != nil {
		rec.FilePath = *legacy.FilePath
	}
	if legacy.StartTime != nil {
		rec.StartTime = *legacy.StartTime
	}
	if legacy.EndTime != nil {
		rec.EndTime = legacy.EndTime
	}
	*r = activityRecord(rec)
	return nil
}

func (s *FileSessionStore) Load(ctx context.Context) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("session store missing, creating empty store", zap.String("path", s.path))
			return []domain.Session{}, s.write(nil)
		}
		return nil, fmt.Errorf("read session store %s: %w: %w", s.path, apperrors.ErrPersistence, err)
	}

	sessions, err := decodeSnapshot(payload)
	if err == nil {
		return sessions, nil
	}
	if !errors.Is(err, errCorrupted) {
		return nil, err
	}

	s.logger.Error("session store corrupted, starting empty", zap.String("path", s.path), zap.Error(err))
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove corrupted session store: %w: %w", apperrors.ErrPersistence, err)
	}
	return []domain.Session{}, s.write(nil)
}

func (s *FileSessionStore) Save(_ context.Context, sessions []domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(sessions)
}

func (s *FileSessionStore) write(sessions []domain.Session) error {
	doc := snapshotDocument{SchemaVersion: domain.SchemaVersion, Sessions: make([]sessionRecord, 0, len(sessions))}
	for _, session := range sessions {
		doc.Sessions = append(doc.Sessions, toRecord(session))
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions: %w: %w", apperrors.ErrPersistence, err)
	}
	if err := fsutil.WriteFileAtomic(s.path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write session store %s: %w: %w", s.path, apperrors.ErrPersistence, err)
	}
	return nil
}

// decodeSnapshot accepts the canonical document, a bare list of records, and an
// id-keyed object of records. Object key order is kept.
func decodeSnapshot(payload []byte) ([]domain.Session, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty file", errCorrupted)
	}

	var records []sessionRecord
	switch payload[0] {
	case '[':
		if err := json.Unmarshal(payload, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", errCorrupted, err)
		}
	case '{':
		members, err := orderedMembers(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errCorrupted, err)
		}
		if isCanonical(members) {
			var doc snapshotDocument
			if err := json.Unmarshal(payload, &doc); err != nil {
				return nil, fmt.Errorf("%w: %v", errCorrupted, err)
			}
			if doc.SchemaVersion > domain.SchemaVersion {
				return nil, fmt.Errorf("session store schema version %d is newer than supported %d: %w", doc.SchemaVersion, domain.SchemaVersion, apperrors.ErrPersistence)
			}
			records = doc.Sessions
			break
		}
		for _, m := range members {
			var rec sessionRecord
			if err := json.Unmarshal(m.value, &rec); err != nil {
				return nil, fmt.Errorf("%w: session %s: %v", errCorrupted, m.key, err)
			}
			if rec.ID == "" {
				rec.ID = m.key
			}
			records = append(records, rec)
		}
	default:
		return nil, fmt.Errorf("%w: unexpected leading byte %q", errCorrupted, payload[0])
	}

	sessions := make([]domain.Session, 0, len(records))
	for i, rec := range records {
		session := rec.toDomain()
		if !session.Valid() {
			return nil, fmt.Errorf("%w: record %d (%q) violates session invariants", errCorrupted, i, rec.ID)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

type member struct {
	key   string
	value json.RawMessage
}

func orderedMembers(payload []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		members = append(members, member{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after document")
	}
	return members, nil
}

func isCanonical(members []member) bool {
	for _, m := range members {
		if m.key == "schema_version" || m.key == "sessions" {
			return true
		}
	}
	return false
}

func toRecord(s domain.Session) sessionRecord {
	rec := sessionRecord{
		ID:         s.ID,
		Name:       s.Name,
		StartTime:  timestamp(s.StartTime),
		EndTime:    toTimestamp(s.EndTime),
		IsActive:   s.IsActive,
		Activities: make([]activityRecord, 0, len(s.Activities)),
	}
	for _, a := range s.Activities {
		rec.Activities = append(rec.Activities, activityRecord{
			ID:              a.ID,
			ApplicationName: a.ApplicationName,
			FilePath:        a.FilePath,
			StartTime:       timestamp(a.StartTime),
			EndTime:         toTimestamp(a.EndTime),
		})
	}
	return rec
}

func (r sessionRecord) toDomain() domain.Session {
	s := domain.Session{
		ID:         r.ID,
		Name:       r.Name,
		StartTime:  time.Time(r.StartTime),
		EndTime:    fromTimestamp(r.EndTime),
		IsActive:   r.IsActive,
		Activities: make([]domain.Activity, 0, len(r.Activities)),
	}
	for _, a := range r.Activities {
		s.Activities = append(s.Activities, domain.Activity{
			ID:              a.ID,
			ApplicationName: a.ApplicationName,
			FilePath:        a.FilePath,
			StartTime:       time.Time(a.StartTime),
			EndTime:         fromTimestamp(a.EndTime),
		})
	}
	return s
}

// timestamp marshals as RFC3339Nano and also reads offset-less local times.
type timestamp time.Time

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
}

func (t timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(time.RFC3339Nano))
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			*t = timestamp(parsed)
			return nil
		}
	}
	return fmt.Errorf("parse time %q", raw)
}

func toTimestamp(t *time.Time) *timestamp {
	if t == nil {
		return nil
	}
	v := timestamp(*t)
	return &v
}

func fromTimestamp(t *timestamp) *time.Time {
	if t == nil {
		return nil
	}
	v := time.Time(*t)
	return &v
}

package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"timetrack/internal/modules/session/domain"
	sessionout "timetrack/internal/modules/session/port/out"
	"timetrack/internal/platform/clock"
	apperrors "timetrack/internal/platform/errors"
	"timetrack/internal/platform/id"
)

type Option func(*SessionManager)

// WithStopRunningActivity controls whether stopping a session also closes its
// running activity at the same instant. Enabled by default.
func WithStopRunningActivity(enabled bool) Option {
	return func(m *SessionManager) { m.stopRunning = enabled }
}

// SessionManager owns every session in the process. Callers only ever receive
// deep copies; each mutation is followed by a full snapshot save.
type SessionManager struct {
	mu       sync.Mutex
	clock    clock.Clock
	idGen    id.Generator
	store    sessionout.SessionStore
	detector sessionout.ActivityDetector
	logger   *zap.Logger

	stopRunning bool
	sessions    map[string]*domain.Session
	order       []string
	persistErr  error
}

func NewSessionManager(ctx context.Context, clock clock.Clock, idGen id.Generator, store sessionout.SessionStore, detector sessionout.ActivityDetector, logger *zap.Logger, opts ...Option) (*SessionManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &SessionManager{
		clock:       clock,
		idGen:       idGen,
		store:       store,
		detector:    detector,
		logger:      logger.Named("session-manager"),
		stopRunning: true,
		sessions:    map[string]*domain.Session{},
	}
	for _, opt := range opts {
		opt(m)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	for _, s := range loaded {
		if _, dup := m.sessions[s.ID]; dup {
			m.logger.Warn("duplicate session id in snapshot, keeping first", zap.String("session_id", s.ID))
			continue
		}
		clone := s.Clone()
		m.sessions[s.ID] = &clone
		m.order = append(m.order, s.ID)
	}
	m.logger.Info("sessions loaded", zap.Int("count", len(m.order)))
	return m, nil
}

func (m *SessionManager) StartSession(ctx context.Context, name string) (domain.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Session{}, fmt.Errorf("session name is required: %w", apperrors.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := &domain.Session{
		ID:         m.idGen.New(),
		Name:       name,
		StartTime:  m.clock.Now(),
		IsActive:   true,
		Activities: []domain.Activity{},
	}
	m.sessions[s.ID] = s
	m.order = append(m.order, s.ID)
	m.logger.Info("session started", zap.String("session_id", s.ID), zap.String("name", name))
	m.save(ctx)
	return s.Clone(), nil
}

func (m *SessionManager) StopSession(ctx context.Context, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || !s.IsActive {
		return false
	}
	now := m.clock.Now()
	s.EndTime = &now
	s.IsActive = false
	if m.stopRunning {
		if i := s.RunningActivity(); i >= 0 {
			end := now
			s.Activities[i].EndTime = &end
		}
	}
	m.logger.Info("session stopped", zap.String("session_id", sessionID))
	m.save(ctx)
	return true
}

// RestartSession reopens a stopped session from now, keeping its activities.
func (m *SessionManager) RestartSession(ctx context.Context, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.IsActive {
		return false
	}
	s.StartTime = m.clock.Now()
	s.EndTime = nil
	s.IsActive = true
	m.logger.Info("session restarted", zap.String("session_id", sessionID))
	m.save(ctx)
	return true
}

func (m *SessionManager) RemoveSession(ctx context.Context, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return false
	}
	delete(m.sessions, sessionID)
	for i, sid := range m.order {
		if sid == sessionID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.logger.Info("session removed", zap.String("session_id", sessionID))
	m.save(ctx)
	return true
}

func (m *SessionManager) GetSession(sessionID string) (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return domain.Session{}, false
	}
	return s.Clone(), true
}

func (m *SessionManager) ListActiveSessions() []domain.Session {
	return m.list(func(s *domain.Session) bool { return s.IsActive })
}

func (m *SessionManager) ListAllSessions() []domain.Session {
	return m.list(func(*domain.Session) bool { return true })
}

func (m *SessionManager) list(keep func(*domain.Session) bool) []domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Session, 0, len(m.order))
	for _, sid := range m.order {
		if s := m.sessions[sid]; keep(s) {
			out = append(out, s.Clone())
		}
	}
	return out
}

func (m *SessionManager) StartActivity(ctx context.Context, sessionID string) (domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.activeSession(sessionID)
	if err != nil {
		return domain.Activity{}, err
	}
	if s.RunningActivity() >= 0 {
		return domain.Activity{}, fmt.Errorf("session %s already has a running activity: %w", sessionID, apperrors.ErrInvalidState)
	}
	app, file := m.detector.CurrentActivity(ctx)
	a := m.appendActivity(s, app, file, m.clock.Now())
	m.save(ctx)
	return a, nil
}

func (m *SessionManager) StopActivity(ctx context.Context, sessionID, activityID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	i := s.Activity(activityID)
	if i < 0 || !s.Activities[i].Running() {
		return false
	}
	now := m.clock.Now()
	s.Activities[i].EndTime = &now
	m.logger.Info("activity stopped", zap.String("session_id", sessionID), zap.String("activity_id", activityID))
	m.save(ctx)
	return true
}

// StopRunningActivity closes whichever activity is running in the session.
func (m *SessionManager) StopRunningActivity(ctx context.Context, sessionID string) (domain.Activity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return domain.Activity{}, false
	}
	i := s.RunningActivity()
	if i < 0 {
		return domain.Activity{}, false
	}
	now := m.clock.Now()
	s.Activities[i].EndTime = &now
	m.logger.Info("activity stopped", zap.String("session_id", sessionID), zap.String("activity_id", s.Activities[i].ID))
	m.save(ctx)
	return s.Activities[i].Clone(), true
}

// SwitchActivity is one polling step of automatic tracking. A running activity
// that matches the focused window is kept; otherwise it is closed and a new one
// begins at the same instant. The bool reports whether a new activity began.
func (m *SessionManager) SwitchActivity(ctx context.Context, sessionID string) (domain.Activity, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.activeSession(sessionID)
	if err != nil {
		return domain.Activity{}, false, err
	}
	app, file := m.detector.CurrentActivity(ctx)
	now := m.clock.Now()
	if i := s.RunningActivity(); i >= 0 {
		if s.Activities[i].Matches(app, file) {
			return s.Activities[i].Clone(), false, nil
		}
		end := now
		s.Activities[i].EndTime = &end
		m.logger.Debug("activity switched", zap.String("session_id", sessionID), zap.String("from_activity_id", s.Activities[i].ID))
	}
	a := m.appendActivity(s, app, file, now)
	m.save(ctx)
	return a, true, nil
}

func (m *SessionManager) RunningActivity(sessionID string) (domain.Activity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return domain.Activity{}, false
	}
	i := s.RunningActivity()
	if i < 0 {
		return domain.Activity{}, false
	}
	return s.Activities[i].Clone(), true
}

func (m *SessionManager) GetSessionActivities(sessionID string) []domain.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return []domain.Activity{}
	}
	return s.Clone().Activities
}

func (m *SessionManager) GetApplicationStatistics(sessionID string) map[string]time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return map[string]time.Duration{}
	}
	return s.ApplicationTotals(m.clock.Now())
}

func (m *SessionManager) GetFileStatistics(sessionID string) map[string]time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return map[string]time.Duration{}
	}
	return s.FileTotals(m.clock.Now())
}

func (m *SessionManager) GetTotalActiveTime(sessionID string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return 0
	}
	return s.TotalActiveTime(m.clock.Now())
}

// Now exposes the manager's clock so callers compute durations consistently.
func (m *SessionManager) Now() time.Time {
	return m.clock.Now()
}

// PersistErr returns the most recent snapshot write failure. It stays set once
// a save has failed.
func (m *SessionManager) PersistErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistErr
}

func (m *SessionManager) activeSession(sessionID string) (*domain.Session, error) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, apperrors.ErrNotFound)
	}
	if !s.IsActive {
		return nil, fmt.Errorf("session %s is not active: %w", sessionID, apperrors.ErrInvalidState)
	}
	return s, nil
}

func (m *SessionManager) appendActivity(s *domain.Session, app, file string, now time.Time) domain.Activity {
	a := domain.Activity{
		ID:              m.idGen.New(),
		ApplicationName: app,
		FilePath:        file,
		StartTime:       now,
	}
	s.Activities = append(s.Activities, a)
	m.logger.Info("activity started",
		zap.String("session_id", s.ID),
		zap.String("activity_id", a.ID),
		zap.String("application", app),
		zap.String("file", file),
	)
	return a.Clone()
}

// save must be called with mu held.
func (m *SessionManager) save(ctx context.Context) {
	snapshot := make([]domain.Session, 0, len(m.order))
	for _, sid := range m.order {
		snapshot = append(snapshot, m.sessions[sid].Clone())
	}
	if err := m.store.Save(ctx, snapshot); err != nil {
		m.persistErr = err
		m.logger.Error("save sessions", zap.Error(err))
	}
}

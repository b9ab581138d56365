package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"timetrack/internal/modules/session/domain"
	sessiondto "timetrack/internal/modules/session/dto"
	sessionin "timetrack/internal/modules/session/port/in"
	sessionout "timetrack/internal/modules/session/port/out"
	"timetrack/internal/modules/session/service"
	apperrors "timetrack/internal/platform/errors"
	"timetrack/internal/platform/id"
)

type Interactor struct {
	manager  *service.SessionManager
	index    sessionout.StatsIndex
	exporter sessionout.NoteExporter
	logger   *zap.Logger
}

func NewInteractor(manager *service.SessionManager, index sessionout.StatsIndex, exporter sessionout.NoteExporter, logger *zap.Logger) sessionin.Usecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interactor{manager: manager, index: index, exporter: exporter, logger: logger.Named("session-usecase")}
}

func (i *Interactor) StartSession(ctx context.Context, name string) (sessiondto.SessionOutput, error) {
	session, err := i.manager.StartSession(ctx, name)
	if err != nil {
		return sessiondto.SessionOutput{}, err
	}
	i.project(ctx, session.ID)
	return toSessionOutput(session, i.manager.Now()), nil
}

func (i *Interactor) StopSession(ctx context.Context, sessionID string) (bool, error) {
	sid, err := parseID("session", sessionID)
	if err != nil {
		return false, err
	}
	ok := i.manager.StopSession(ctx, sid)
	if ok {
		i.project(ctx, sid)
	}
	return ok, nil
}

func (i *Interactor) RestartSession(ctx context.Context, sessionID string) (bool, error) {
	sid, err := parseID("session", sessionID)
	if err != nil {
		return false, err
	}
	ok := i.manager.RestartSession(ctx, sid)
	if ok {
		i.project(ctx, sid)
	}
	return ok, nil
}

func (i *Interactor) RemoveSession(ctx context.Context, sessionID string) (bool, error) {
	sid, err := parseID("session", sessionID)
	if err != nil {
		return false, err
	}
	ok := i.manager.RemoveSession(ctx, sid)
	if ok && i.index != nil {
		if err := i.index.DeleteSession(ctx, sid); err != nil {
			i.logger.Warn("drop session from stats index", zap.String("session_id", sid), zap.Error(err))
		}
	}
	return ok, nil
}

func (i *Interactor) GetSession(_ context.Context, sessionID string) (sessiondto.SessionOutput, error) {
	session, err := i.lookup(sessionID)
	if err != nil {
		return sessiondto.SessionOutput{}, err
	}
	return toSessionOutput(session, i.manager.Now()), nil
}

func (i *Interactor) ListSessions(_ context.Context, includeInactive bool) ([]sessiondto.SessionOutput, error) {
	var sessions []domain.Session
	if includeInactive {
		sessions = i.manager.ListAllSessions()
	} else {
		sessions = i.manager.ListActiveSessions()
	}
	now := i.manager.Now()
	out := make([]sessiondto.SessionOutput, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionOutput(s, now))
	}
	return out, nil
}

func (i *Interactor) StartActivity(ctx context.Context, sessionID string) (sessiondto.ActivityOutput, error) {
	sid, err := parseID("session", sessionID)
	if err != nil {
		return sessiondto.ActivityOutput{}, err
	}
	activity, err := i.manager.StartActivity(ctx, sid)
	if err != nil {
		return sessiondto.ActivityOutput{}, err
	}
	i.project(ctx, sid)
	return toActivityOutput(activity, i.manager.Now()), nil
}

func (i *Interactor) StopActivity(ctx context.Context, sessionID, activityID string) (bool, error) {
	sid, err := parseID("session", sessionID)
	if err != nil {
		return false, err
	}
	aid, err := parseID("activity", activityID)
	if err != nil {
		return false, err
	}
	ok := i.manager.StopActivity(ctx, sid, aid)
	if ok {
		i.project(ctx, sid)
	}
	return ok, nil
}

func (i *Interactor) SwitchActivity(ctx context.Context, sessionID string) (sessiondto.SwitchOutput, error) {
	sid, err := parseID("session", sessionID)
	if err != nil {
		return sessiondto.SwitchOutput{}, err
	}
	activity, switched, err := i.manager.SwitchActivity(ctx, sid)
	if err != nil {
		return sessiondto.SwitchOutput{}, err
	}
	if switched {
		i.project(ctx, sid)
	}
	return sessiondto.SwitchOutput{Activity: toActivityOutput(activity, i.manager.Now()), Switched: switched}, nil
}

func (i *Interactor) StopRunningActivity(ctx context.Context, sessionID string) (bool, error) {
	sid, err := parseID("session", sessionID)
	if err != nil {
		return false, err
	}
	_, ok := i.manager.StopRunningActivity(ctx, sid)
	if ok {
		i.project(ctx, sid)
	}
	return ok, nil
}

func (i *Interactor) ListActivities(_ context.Context, sessionID string) ([]sessiondto.ActivityOutput, error) {
	session, err := i.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	now := i.manager.Now()
	activities := i.manager.GetSessionActivities(session.ID)
	out := make([]sessiondto.ActivityOutput, 0, len(activities))
	for _, a := range activities {
		out = append(out, toActivityOutput(a, now))
	}
	return out, nil
}

func (i *Interactor) Statistics(_ context.Context, sessionID string) (sessiondto.StatisticsOutput, error) {
	session, err := i.lookup(sessionID)
	if err != nil {
		return sessiondto.StatisticsOutput{}, err
	}
	return sessiondto.StatisticsOutput{
		SessionID:    session.ID,
		Applications: toTotalOutputs(domain.SortedTotals(i.manager.GetApplicationStatistics(session.ID))),
		Files:        toTotalOutputs(domain.SortedTotals(i.manager.GetFileStatistics(session.ID))),
		TotalActive:  i.manager.GetTotalActiveTime(session.ID),
	}, nil
}

func (i *Interactor) Export(ctx context.Context, input sessiondto.ExportInput) (sessiondto.ExportOutput, error) {
	if i.exporter == nil {
		return sessiondto.ExportOutput{}, fmt.Errorf("note exporter is not configured")
	}
	session, err := i.lookup(input.SessionID)
	if err != nil {
		return sessiondto.ExportOutput{}, err
	}
	path, err := i.exporter.Export(ctx, session, i.manager.Now())
	if err != nil {
		return sessiondto.ExportOutput{}, err
	}
	i.logger.Info("session exported", zap.String("session_id", session.ID), zap.String("path", path))
	return sessiondto.ExportOutput{SessionID: session.ID, Path: path}, nil
}

// Reindex rebuilds the stats index from the in-memory snapshot.
func (i *Interactor) Reindex(ctx context.Context) (sessiondto.ReindexOutput, error) {
	if i.index == nil {
		return sessiondto.ReindexOutput{}, fmt.Errorf("stats index is not configured")
	}
	if err := i.index.Reset(ctx); err != nil {
		return sessiondto.ReindexOutput{}, err
	}
	out := sessiondto.ReindexOutput{}
	for _, s := range i.manager.ListAllSessions() {
		if err := i.index.UpsertSession(ctx, s); err != nil {
			return out, err
		}
		out.Sessions++
		out.Activities += len(s.Activities)
	}
	return out, nil
}

func (i *Interactor) Report(ctx context.Context, input sessiondto.ReportInput) (sessiondto.ReportOutput, error) {
	if i.index == nil {
		return sessiondto.ReportOutput{}, fmt.Errorf("stats index is not configured")
	}
	now := i.manager.Now()
	apps, err := i.index.ApplicationTotals(ctx, input.Since, now)
	if err != nil {
		return sessiondto.ReportOutput{}, err
	}
	files, err := i.index.FileTotals(ctx, input.Since, now)
	if err != nil {
		return sessiondto.ReportOutput{}, err
	}
	return sessiondto.ReportOutput{Since: input.Since, Applications: toTotalOutputs(apps), Files: toTotalOutputs(files)}, nil
}

func (i *Interactor) PersistErr() error {
	return i.manager.PersistErr()
}

func (i *Interactor) lookup(sessionID string) (domain.Session, error) {
	sid, err := parseID("session", sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	session, ok := i.manager.GetSession(sid)
	if !ok {
		return domain.Session{}, fmt.Errorf("session %s: %w", sid, apperrors.ErrNotFound)
	}
	return session, nil
}

// project mirrors the session into the stats index. The snapshot stays the
// source of truth, so failures only warn.
func (i *Interactor) project(ctx context.Context, sessionID string) {
	if i.index == nil {
		return
	}
	session, ok := i.manager.GetSession(sessionID)
	if !ok {
		return
	}
	if err := i.index.UpsertSession(ctx, session); err != nil {
		i.logger.Warn("update stats index", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func parseID(kind, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%s id is required: %w", kind, apperrors.ErrInvalidArgument)
	}
	normalized, ok := id.Normalize(raw)
	if !ok {
		return "", fmt.Errorf("%s id %q is not a valid uuid: %w", kind, raw, apperrors.ErrInvalidArgument)
	}
	return normalized, nil
}

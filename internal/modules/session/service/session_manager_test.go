package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"timetrack/internal/modules/session/domain"
	"timetrack/internal/modules/session/service"
	apperrors "timetrack/internal/platform/errors"
	"timetrack/internal/platform/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type seqID struct {
	mu sync.Mutex
	n  int
}

func (s *seqID) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

type memoryStore struct {
	mu      sync.Mutex
	initial []domain.Session
	saved   []domain.Session
	saves   int
	loadErr error
	saveErr error
}

func (m *memoryStore) Load(context.Context) ([]domain.Session, error) {
	return m.initial, m.loadErr
}

func (m *memoryStore) Save(_ context.Context, sessions []domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = sessions
	return nil
}

type fakeDetector struct {
	mu   sync.Mutex
	app  string
	file string
}

func (f *fakeDetector) CurrentActivity(context.Context) (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.app, f.file
}

func (f *fakeDetector) Focus(app, file string) {
	f.mu.Lock()
	f.app, f.file = app, file
	f.mu.Unlock()
}

type fixture struct {
	clock    *fakeClock
	store    *memoryStore
	detector *fakeDetector
	manager  *service.SessionManager
}

func newFixture(t *testing.T, opts ...service.Option) fixture {
	t.Helper()
	f := fixture{
		clock:    newClock(),
		store:    &memoryStore{},
		detector: &fakeDetector{app: "Code", file: "main.go"},
	}
	m, err := service.NewSessionManager(context.Background(), f.clock, &seqID{}, f.store, f.detector, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	f.manager = m
	return f
}

func TestStartSessionIsActiveWithoutEndTime(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.manager.StartSession(ctx, "writing")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	got, ok := f.manager.GetSession(started.ID)
	if !ok {
		t.Fatalf("session %s not found", started.ID)
	}
	if !got.IsActive || got.EndTime != nil || got.Name != "writing" || len(got.Activities) != 0 {
		t.Fatalf("unexpected session %+v", got)
	}
	if f.store.saves != 1 || len(f.store.saved) != 1 {
		t.Fatalf("expected one save with one session, got %d saves", f.store.saves)
	}

	for _, name := range []string{"", "   "} {
		if _, err := f.manager.StartSession(ctx, name); !errors.Is(err, apperrors.ErrInvalidArgument) {
			t.Fatalf("expected invalid argument for %q, got %v", name, err)
		}
	}
}

func TestStopAndRestartTransitions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	s, _ := f.manager.StartSession(ctx, "deep work")
	f.clock.Advance(10 * time.Minute)
	if !f.manager.StopSession(ctx, s.ID) {
		t.Fatalf("stop should succeed")
	}
	stopped, _ := f.manager.GetSession(s.ID)
	if stopped.IsActive || stopped.EndTime == nil {
		t.Fatalf("stopped session must be inactive with end time: %+v", stopped)
	}
	endBefore := *stopped.EndTime

	f.clock.Advance(time.Minute)
	if f.manager.StopSession(ctx, s.ID) {
		t.Fatalf("second stop must return false")
	}
	again, _ := f.manager.GetSession(s.ID)
	if !again.EndTime.Equal(endBefore) {
		t.Fatalf("second stop must not alter end time")
	}
	if got := again.Duration(f.clock.Now()); got != 10*time.Minute {
		t.Fatalf("expected frozen 10m duration, got %s", got)
	}

	active, _ := f.manager.StartSession(ctx, "other")
	if f.manager.RestartSession(ctx, active.ID) {
		t.Fatalf("restart of an active session must return false")
	}
	if f.manager.RestartSession(ctx, "missing") || f.manager.StopSession(ctx, "missing") {
		t.Fatalf("unknown ids must return false")
	}
}

func TestRestartPreservesActivities(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	s, _ := f.manager.StartSession(ctx, "review")
	a, err := f.manager.StartActivity(ctx, s.ID)
	if err != nil {
		t.Fatalf("start activity: %v", err)
	}
	f.clock.Advance(time.Minute)
	f.manager.StopSession(ctx, s.ID)
	f.clock.Advance(time.Hour)

	if !f.manager.RestartSession(ctx, s.ID) {
		t.Fatalf("restart should succeed")
	}
	got, _ := f.manager.GetSession(s.ID)
	if !got.IsActive || got.EndTime != nil || !got.StartTime.Equal(f.clock.Now()) {
		t.Fatalf("restart must reopen the session from now: %+v", got)
	}
	if len(got.Activities) != 1 || got.Activities[0].ID != a.ID {
		t.Fatalf("restart must keep activities, got %+v", got.Activities)
	}
}

func TestRemoveSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first, _ := f.manager.StartSession(ctx, "one")
	second, _ := f.manager.StartSession(ctx, "two")
	if !f.manager.RemoveSession(ctx, first.ID) {
		t.Fatalf("remove should succeed")
	}
	if _, ok := f.manager.GetSession(first.ID); ok {
		t.Fatalf("removed session must not be found")
	}
	if f.manager.RemoveSession(ctx, first.ID) {
		t.Fatalf("second remove must return false")
	}
	all := f.manager.ListAllSessions()
	if len(all) != 1 || all[0].ID != second.ID {
		t.Fatalf("unexpected remaining sessions %+v", all)
	}
	if len(f.store.saved) != 1 {
		t.Fatalf("snapshot must drop the removed session")
	}
}

func TestListKeepsInsertionOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	store := &memoryStore{initial: []domain.Session{
		{ID: "z-loaded", Name: "z", StartTime: start, IsActive: true},
		{ID: "a-loaded", Name: "a", StartTime: start, EndTime: &end},
	}}
	m, err := service.NewSessionManager(ctx, newClock(), &seqID{}, store, &fakeDetector{}, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	created, _ := m.StartSession(ctx, "new")

	all := m.ListAllSessions()
	want := []string{"z-loaded", "a-loaded", created.ID}
	if len(all) != len(want) {
		t.Fatalf("expected %d sessions, got %d", len(want), len(all))
	}
	for i, s := range all {
		if s.ID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], s.ID)
		}
	}
	activeSessions := m.ListActiveSessions()
	if len(activeSessions) != 2 || activeSessions[0].ID != "z-loaded" || activeSessions[1].ID != created.ID {
		t.Fatalf("unexpected active sessions %+v", activeSessions)
	}
}

func TestReturnedSessionsAreCopies(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	s, _ := f.manager.StartSession(ctx, "focus")
	if _, err := f.manager.StartActivity(ctx, s.ID); err != nil {
		t.Fatalf("start activity: %v", err)
	}
	got, _ := f.manager.GetSession(s.ID)
	got.Name = "mutated"
	got.Activities[0].ApplicationName = "mutated"
	acts := f.manager.GetSessionActivities(s.ID)
	acts[0].FilePath = "mutated"

	fresh, _ := f.manager.GetSession(s.ID)
	if fresh.Name != "focus" || fresh.Activities[0].ApplicationName != "Code" || fresh.Activities[0].FilePath != "main.go" {
		t.Fatalf("callers must not mutate manager state: %+v", fresh)
	}
}

func TestActivityLifecycleAndDurations(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	s, _ := f.manager.StartSession(ctx, "coding")
	a, err := f.manager.StartActivity(ctx, s.ID)
	if err != nil {
		t.Fatalf("start activity: %v", err)
	}
	if a.ApplicationName != "Code" || a.FilePath != "main.go" || !a.Running() {
		t.Fatalf("unexpected activity %+v", a)
	}

	f.clock.Advance(2 * time.Second)
	if running, ok := f.manager.RunningActivity(s.ID); !ok || running.Duration(f.clock.Now()) != 2*time.Second {
		t.Fatalf("running activity must grow with the clock")
	}
	if !f.manager.StopActivity(ctx, s.ID, a.ID) {
		t.Fatalf("stop activity should succeed")
	}
	if f.manager.StopActivity(ctx, s.ID, a.ID) {
		t.Fatalf("second stop must return false")
	}
	f.clock.Advance(time.Minute)
	for i := 0; i < 2; i++ {
		acts := f.manager.GetSessionActivities(s.ID)
		if got := acts[0].Duration(f.clock.Now()); got != 2*time.Second {
			t.Fatalf("stopped activity must stay at 2s, got %s", got)
		}
	}

	if f.manager.StopActivity(ctx, "missing", a.ID) || f.manager.StopActivity(ctx, s.ID, "missing") {
		t.Fatalf("unknown ids must return false")
	}
	if acts := f.manager.GetSessionActivities("missing"); acts == nil || len(acts) != 0 {
		t.Fatalf("unknown session must yield an empty slice")
	}
}

func TestStartActivityErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.manager.StartActivity(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	s, _ := f.manager.StartSession(ctx, "s")
	if _, err := f.manager.StartActivity(ctx, s.ID); err != nil {
		t.Fatalf("start activity: %v", err)
	}
	if _, err := f.manager.StartActivity(ctx, s.ID); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected invalid state for a second running activity, got %v", err)
	}
	f.manager.StopSession(ctx, s.ID)
	if _, err := f.manager.StartActivity(ctx, s.ID); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected invalid state on a stopped session, got %v", err)
	}
}

func TestStartActivityAcceptsUnknownDetection(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.detector.Focus(domain.Unknown, domain.Unknown)

	s, _ := f.manager.StartSession(ctx, "s")
	a, err := f.manager.StartActivity(ctx, s.ID)
	if err != nil {
		t.Fatalf("start activity: %v", err)
	}
	if a.ApplicationName != domain.Unknown || a.FilePath != domain.Unknown {
		t.Fatalf("unknown detection must be recorded as-is, got %+v", a)
	}
}

func TestConcurrentStartActivityKeepsSingleRunning(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s, _ := f.manager.StartSession(ctx, "race")

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.StartActivity(ctx, s.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, apperrors.ErrInvalidState):
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful start, got %d", succeeded)
	}
	acts := f.manager.GetSessionActivities(s.ID)
	if len(acts) != 1 || !acts[0].Running() {
		t.Fatalf("the first activity must remain running, got %+v", acts)
	}
}

func TestApplicationStatistics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s, _ := f.manager.StartSession(ctx, "stats")

	run := func(app string, d time.Duration) {
		t.Helper()
		f.detector.Focus(app, app+".txt")
		a, err := f.manager.StartActivity(ctx, s.ID)
		if err != nil {
			t.Fatalf("start activity: %v", err)
		}
		f.clock.Advance(d)
		if !f.manager.StopActivity(ctx, s.ID, a.ID) {
			t.Fatalf("stop activity %s", a.ID)
		}
	}
	run("A", time.Second)
	run("B", 2*time.Second)
	stats := f.manager.GetApplicationStatistics(s.ID)
	if len(stats) != 2 || stats["A"] != time.Second || stats["B"] != 2*time.Second {
		t.Fatalf("unexpected stats %v", stats)
	}
	run("A", time.Second)
	stats = f.manager.GetApplicationStatistics(s.ID)
	if stats["A"] != 2*time.Second || stats["B"] != 2*time.Second {
		t.Fatalf("unexpected stats after third activity %v", stats)
	}
	files := f.manager.GetFileStatistics(s.ID)
	if files["A.txt"] != 2*time.Second || files["B.txt"] != 2*time.Second {
		t.Fatalf("unexpected file stats %v", files)
	}
	if total := f.manager.GetTotalActiveTime(s.ID); total != 4*time.Second {
		t.Fatalf("expected 4s total, got %s", total)
	}

	if len(f.manager.GetApplicationStatistics("missing")) != 0 || len(f.manager.GetFileStatistics("missing")) != 0 || f.manager.GetTotalActiveTime("missing") != 0 {
		t.Fatalf("unknown session must yield empty statistics")
	}
}

func TestStopSessionRunningActivityPolicy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("stops running activity by default", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		s, _ := f.manager.StartSession(ctx, "s")
		a, _ := f.manager.StartActivity(ctx, s.ID)
		f.clock.Advance(time.Minute)
		f.manager.StopSession(ctx, s.ID)

		got, _ := f.manager.GetSession(s.ID)
		if got.Activities[0].Running() || !got.Activities[0].EndTime.Equal(*got.EndTime) {
			t.Fatalf("activity %s must end with the session", a.ID)
		}
	})

	t.Run("leaves running activity when disabled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, service.WithStopRunningActivity(false))
		s, _ := f.manager.StartSession(ctx, "s")
		a, _ := f.manager.StartActivity(ctx, s.ID)
		f.manager.StopSession(ctx, s.ID)

		got, _ := f.manager.GetSession(s.ID)
		if !got.Activities[0].Running() {
			t.Fatalf("activity must keep running")
		}
		if !f.manager.StopActivity(ctx, s.ID, a.ID) {
			t.Fatalf("a leftover activity must be stoppable on an inactive session")
		}
	})
}

func TestSwitchActivity(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	s, _ := f.manager.StartSession(ctx, "auto")

	first, switched, err := f.manager.SwitchActivity(ctx, s.ID)
	if err != nil || !switched {
		t.Fatalf("first switch must start an activity: %v %v", switched, err)
	}
	saves := f.store.saves
	f.clock.Advance(time.Minute)
	same, switched, err := f.manager.SwitchActivity(ctx, s.ID)
	if err != nil || switched || same.ID != first.ID {
		t.Fatalf("matching window must keep the running activity")
	}
	if f.store.saves != saves {
		t.Fatalf("an unchanged poll must not save")
	}

	f.detector.Focus("Firefox", domain.Unknown)
	next, switched, err := f.manager.SwitchActivity(ctx, s.ID)
	if err != nil || !switched || next.ApplicationName != "Firefox" {
		t.Fatalf("a changed window must rotate the activity: %+v %v", next, err)
	}
	if f.store.saves != saves+1 {
		t.Fatalf("rotation must save exactly once, got %d", f.store.saves-saves)
	}
	acts := f.manager.GetSessionActivities(s.ID)
	if len(acts) != 2 || acts[0].Running() || !acts[0].EndTime.Equal(next.StartTime) {
		t.Fatalf("previous activity must end when the next begins: %+v", acts)
	}

	if stopped, ok := f.manager.StopRunningActivity(ctx, s.ID); !ok || stopped.ID != next.ID {
		t.Fatalf("stop running activity must close %s", next.ID)
	}
	if _, ok := f.manager.StopRunningActivity(ctx, s.ID); ok {
		t.Fatalf("nothing left to stop")
	}

	f.manager.StopSession(ctx, s.ID)
	if _, _, err := f.manager.SwitchActivity(ctx, s.ID); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if _, _, err := f.manager.SwitchActivity(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSaveFailureKeepsResultAndIsRemembered(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.store.saveErr = fmt.Errorf("disk full: %w", apperrors.ErrPersistence)

	s, err := f.manager.StartSession(ctx, "unsaved")
	if err != nil {
		t.Fatalf("save failure must not fail the operation: %v", err)
	}
	if _, ok := f.manager.GetSession(s.ID); !ok {
		t.Fatalf("in-memory state must keep the session")
	}
	if !errors.Is(f.manager.PersistErr(), apperrors.ErrPersistence) {
		t.Fatalf("expected remembered persistence error, got %v", f.manager.PersistErr())
	}
}

func TestLoadFailureFailsConstruction(t *testing.T) {
	t.Parallel()
	store := &memoryStore{loadErr: fmt.Errorf("permission denied: %w", apperrors.ErrPersistence)}
	_, err := service.NewSessionManager(context.Background(), newClock(), &seqID{}, store, &fakeDetector{}, logging.NewNop())
	if !errors.Is(err, apperrors.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

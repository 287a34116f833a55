package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/stagetrack/internal/events"
	"github.com/aristath/stagetrack/internal/persistence"
	"github.com/aristath/stagetrack/internal/stages"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

// fakeSource is an in-memory TaskSource.
type fakeSource struct {
	mu       sync.Mutex
	projects []*persistence.Project
	tasks    map[string][]stages.Task
	failFor  map[string]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		tasks:   make(map[string][]stages.Task),
		failFor: make(map[string]error),
	}
}

func (s *fakeSource) ListProjects(ctx context.Context) ([]*persistence.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*persistence.Project(nil), s.projects...), nil
}

func (s *fakeSource) ListProjectTasks(ctx context.Context, projectID string) ([]stages.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFor[projectID]; err != nil {
		return nil, err
	}
	return append([]stages.Task(nil), s.tasks[projectID]...), nil
}

func (s *fakeSource) addProject(id string, tasks ...stages.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = append(s.projects, &persistence.Project{ID: id, Name: "Project " + id})
	s.tasks[id] = tasks
}

func (s *fakeSource) setTasks(id string, tasks ...stages.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = tasks
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func done(id string, seq int, at time.Time) stages.Task {
	return stages.Task{ID: id, Status: stages.TaskCompleted, Sequence: seq, CompletedAt: &at}
}

func open(id string, seq int) stages.Task {
	return stages.Task{ID: id, Status: stages.TaskPending, Sequence: seq}
}

func newTestMonitor(source TaskSource, clock *testClock) (*Monitor, *events.EventBus) {
	bus := events.NewEventBus()
	m := New(Config{
		Concurrency: 2,
		Retry:       fastRetry(),
		Clock:       clock.Now,
	}, source, bus)
	return m, bus
}

// drain collects every event currently buffered on ch.
func drain(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func ofType(evs []events.Event, eventType string) []events.Event {
	var out []events.Event
	for _, ev := range evs {
		if ev.EventType() == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func TestRefreshComputesSnapshots(t *testing.T) {
	source := newFakeSource()
	source.addProject("p1", done("a", 1, t0), done("b", 2, t0), done("c", 3, t0), open("d", 4))
	source.addProject("p2")

	clock := &testClock{now: t0.Add(3 * day)}
	m, bus := newTestMonitor(source, clock)
	defer bus.Close()
	sub := bus.SubscribeAll(64)

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	snap, ok := m.Snapshot("p1")
	if !ok {
		t.Fatal("no snapshot for p1")
	}
	if len(snap.Stages) != 6 {
		t.Fatalf("snapshot has %d stages, want 6", len(snap.Stages))
	}
	pop := snap.Stages[1]
	if pop.Countdown.Status != stages.CountdownInProgress || *pop.Countdown.DaysLeft != 5 {
		t.Errorf("pop = %s with %d days left, want in_progress with 5", pop.Countdown.Status, *pop.Countdown.DaysLeft)
	}
	if !snap.ComputedAt.Equal(clock.Now()) {
		t.Errorf("ComputedAt = %v, want %v", snap.ComputedAt, clock.Now())
	}

	if len(m.Snapshots()) != 2 {
		t.Errorf("expected 2 snapshots, got %d", len(m.Snapshots()))
	}

	evs := drain(sub)
	if got := len(ofType(evs, events.EventTypeProjectProgress)); got != 2 {
		t.Errorf("expected 2 progress events, got %d", got)
	}
	// First observation has no history to compare against.
	if got := len(ofType(evs, events.EventTypeStageUnlocked)); got != 0 {
		t.Errorf("expected no unlock events on first refresh, got %d", got)
	}
}

func TestRefreshPublishesTransitions(t *testing.T) {
	source := newFakeSource()
	source.addProject("p1", done("a", 1, t0), open("b", 2), open("d", 4))

	clock := &testClock{now: t0}
	m, bus := newTestMonitor(source, clock)
	defer bus.Close()
	sub := bus.Subscribe(events.TopicStage, 64)

	ctx := context.Background()
	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	drain(sub)

	// Client meeting completes: stage 1 completed, pop unlocked.
	source.setTasks("p1", done("a", 1, t0), done("b", 2, t0.Add(time.Hour)), open("d", 4))
	clock.Advance(day)
	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	evs := drain(sub)
	completed := ofType(evs, events.EventTypeStageCompleted)
	if len(completed) != 1 || completed[0].(events.StageCompletedEvent).StageID != "client_meeting" {
		t.Fatalf("expected client_meeting completed event, got %v", evs)
	}
	unlocked := ofType(evs, events.EventTypeStageUnlocked)
	if len(unlocked) != 1 {
		t.Fatalf("expected 1 unlock event, got %d", len(unlocked))
	}
	u := unlocked[0].(events.StageUnlockedEvent)
	if u.StageID != "pop" || !u.StartedAt.Equal(t0.Add(time.Hour)) || u.DaysLeft != 8 {
		t.Errorf("unexpected unlock event: %+v", u)
	}

	// Nothing changes: no stage events.
	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if evs := drain(sub); len(evs) != 0 {
		t.Errorf("expected no events for unchanged pipeline, got %d", len(evs))
	}

	// Pop runs out of time.
	clock.Advance(9 * day)
	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	overdue := ofType(drain(sub), events.EventTypeStageOverdue)
	if len(overdue) != 1 || overdue[0].(events.StageOverdueEvent).StageID != "pop" {
		t.Fatalf("expected pop overdue event, got %v", overdue)
	}

	// Pop finishes late.
	source.setTasks("p1", done("a", 1, t0), done("b", 2, t0.Add(time.Hour)), done("d", 4, clock.Now()))
	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	evs = drain(sub)
	completed = ofType(evs, events.EventTypeStageCompleted)
	if len(completed) != 1 {
		t.Fatalf("expected 1 completed event, got %d", len(completed))
	}
	c := completed[0].(events.StageCompletedEvent)
	if c.StageID != "pop" || !c.WasOverdue {
		t.Errorf("unexpected completed event: %+v", c)
	}
	if got := ofType(evs, events.EventTypeStageUnlocked); len(got) != 1 || got[0].(events.StageUnlockedEvent).StageID != "furniture" {
		t.Errorf("expected furniture unlock, got %v", got)
	}
}

func TestRefreshReportsUnmappedTasksOnce(t *testing.T) {
	source := newFakeSource()
	source.addProject("p1", open("a", 1), open("stray", 40))

	m, bus := newTestMonitor(source, &testClock{now: t0})
	defer bus.Close()
	sub := bus.Subscribe(events.TopicProject, 64)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := m.Refresh(ctx); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
	}

	unmapped := ofType(drain(sub), events.EventTypeTasksUnmapped)
	if len(unmapped) != 1 {
		t.Fatalf("expected 1 unmapped event, got %d", len(unmapped))
	}
	ids := unmapped[0].(events.TasksUnmappedEvent).TaskIDs
	if len(ids) != 1 || ids[0] != "stray" {
		t.Errorf("unexpected unmapped tasks: %v", ids)
	}

	snap, _ := m.Snapshot("p1")
	if len(snap.Unmapped) != 1 {
		t.Errorf("snapshot should list unmapped task, got %d", len(snap.Unmapped))
	}
}

func TestRefreshReportsTasksMovedOutOfRangeAgain(t *testing.T) {
	source := newFakeSource()
	source.addProject("p1", open("a", 1), open("stray", 40))

	m, bus := newTestMonitor(source, &testClock{now: t0})
	defer bus.Close()
	sub := bus.Subscribe(events.TopicProject, 64)

	ctx := context.Background()
	refresh := func() {
		t.Helper()
		if err := m.Refresh(ctx); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
	}

	refresh()
	source.setTasks("p1", open("a", 1), open("stray", 5))
	refresh()
	source.setTasks("p1", open("a", 1), open("stray", 41))
	refresh()

	if got := len(ofType(drain(sub), events.EventTypeTasksUnmapped)); got != 2 {
		t.Errorf("expected 2 unmapped events, got %d", got)
	}

	source.mu.Lock()
	source.projects = nil
	source.mu.Unlock()
	refresh()

	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.reported) != 0 {
		t.Errorf("reported tasks of deleted projects should be pruned, got %v", m.reported)
	}
}

// cancellingSource cancels the refresh while tasks are being loaded.
type cancellingSource struct {
	*fakeSource
	cancel context.CancelFunc
}

func (s cancellingSource) ListProjectTasks(ctx context.Context, projectID string) ([]stages.Task, error) {
	s.cancel()
	return s.fakeSource.ListProjectTasks(ctx, projectID)
}

func TestRefreshReturnsCancellation(t *testing.T) {
	source := newFakeSource()
	source.addProject("p1", open("a", 1))
	source.addProject("p2", open("b", 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, bus := newTestMonitor(cancellingSource{fakeSource: source, cancel: cancel}, &testClock{now: t0})
	defer bus.Close()

	if err := m.Refresh(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRefreshIsolatesProjectFailures(t *testing.T) {
	source := newFakeSource()
	source.addProject("good", open("a", 1))
	source.addProject("bad", open("b", 1))
	source.failFor["bad"] = errors.New("corrupt page")

	cfg := fastRetry()
	cfg.MaxElapsedTime = 20 * time.Millisecond
	bus := events.NewEventBus()
	defer bus.Close()
	m := New(Config{Retry: cfg, Clock: (&testClock{now: t0}).Now}, source, bus)

	err := m.Refresh(context.Background())
	if err == nil {
		t.Fatal("expected error for failing project")
	}

	if _, ok := m.Snapshot("good"); !ok {
		t.Error("healthy project should still be refreshed")
	}
	if _, ok := m.Snapshot("bad"); ok {
		t.Error("failing project should have no snapshot")
	}
}

func TestRefreshPrunesDeletedProjects(t *testing.T) {
	source := newFakeSource()
	source.addProject("p1")
	source.addProject("p2")

	m, bus := newTestMonitor(source, &testClock{now: t0})
	defer bus.Close()

	ctx := context.Background()
	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	source.mu.Lock()
	source.projects = source.projects[:1]
	source.mu.Unlock()

	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, ok := m.Snapshot("p2"); ok {
		t.Error("deleted project snapshot should be pruned")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	source := newFakeSource()
	source.addProject("p1", open("a", 1))

	bus := events.NewEventBus()
	defer bus.Close()
	sub := bus.Subscribe(events.TopicProject, 64)

	m := New(Config{Interval: 10 * time.Millisecond, Retry: fastRetry(), Clock: (&testClock{now: t0}).Now}, source, bus)

	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan error, 1)
	go func() {
		doneCh <- m.Run(ctx)
	}()

	// Wait for at least two refreshes
	for i := 0; i < 2; i++ {
		select {
		case <-sub:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for refresh")
		}
	}

	cancel()

	select {
	case err := <-doneCh:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestMonitorWithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := persistence.NewMemoryStore(ctx)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	if err := store.SaveProject(ctx, &persistence.Project{ID: "p1", Name: "Villa"}); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}
	for seq := 1; seq <= 3; seq++ {
		task := &stages.Task{ID: string(rune('a' + seq)), ProjectID: "p1", Name: "meeting", Status: stages.TaskPending, Sequence: seq}
		if err := store.SaveTask(ctx, task); err != nil {
			t.Fatalf("SaveTask: %v", err)
		}
		if err := store.UpdateTaskStatus(ctx, task.ID, stages.TaskCompleted, t0); err != nil {
			t.Fatalf("UpdateTaskStatus: %v", err)
		}
	}

	m, bus := newTestMonitor(store, &testClock{now: t0.Add(10 * day)})
	defer bus.Close()

	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	snap, ok := m.Snapshot("p1")
	if !ok {
		t.Fatal("no snapshot")
	}
	if snap.Stages[1].Countdown.Status != stages.CountdownOverdue {
		t.Errorf("pop status = %s, want overdue", snap.Stages[1].Countdown.Status)
	}
}

func TestTransitionsIgnoresMismatchedLength(t *testing.T) {
	after := stages.ProjectStages(nil, t0)
	if evs := transitions("p1", nil, after, t0); len(evs) != 0 {
		t.Errorf("expected no events without history, got %d", len(evs))
	}
}

package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/stagetrack/internal/events"
	"github.com/aristath/stagetrack/internal/persistence"
	"github.com/aristath/stagetrack/internal/stages"
)

// TaskSource is the read side of the task store the monitor needs.
type TaskSource interface {
	ListProjects(ctx context.Context) ([]*persistence.Project, error)
	ListProjectTasks(ctx context.Context, projectID string) ([]stages.Task, error)
}

// Config configures the monitor.
type Config struct {
	Interval    time.Duration    // Time between refreshes (default 1m)
	Concurrency int              // Projects evaluated in parallel (default 4)
	Retry       RetryConfig      // Store read retries
	Catalog     *stages.Catalog  // Stage catalog (default built-in)
	Clock       func() time.Time // Reference time source (default time.Now)
}

// Snapshot is the last computed pipeline for a project.
type Snapshot struct {
	Project    persistence.Project
	Stages     []stages.PhaseStatus
	Unmapped   []stages.Task
	ComputedAt time.Time
}

// Monitor periodically recomputes every project's stage pipeline and
// publishes events when stages unlock, run overdue, or complete.
type Monitor struct {
	cfg     Config
	source  TaskSource
	bus     *events.EventBus
	breaker *gobreaker.CircuitBreaker

	kick chan struct{} // Pending out-of-band refresh request

	mu        sync.RWMutex
	snapshots map[string]*Snapshot
	reported  map[string]map[string]bool // projectID -> unmapped task IDs seen on the last refresh
}

// New creates a monitor reading from source and publishing to bus.
func New(cfg Config, source TaskSource, bus *events.EventBus) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Catalog == nil {
		cfg.Catalog = stages.DefaultCatalog()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	cfg.Retry = cfg.Retry.withDefaults()

	return &Monitor{
		cfg:       cfg,
		source:    source,
		bus:       bus,
		breaker:   newStoreBreaker("task-store"),
		kick:      make(chan struct{}, 1),
		snapshots: make(map[string]*Snapshot),
		reported:  make(map[string]map[string]bool),
	}
}

// Run refreshes immediately and then on every interval, or sooner when
// Trigger is called, until ctx is done. Refresh failures are logged; the
// loop keeps going.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := m.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("ERROR: stage refresh failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-m.kick:
			ticker.Reset(m.cfg.Interval)
		}
	}
}

// Trigger requests a refresh ahead of the next tick. Requests made while
// one is already pending are merged.
func (m *Monitor) Trigger() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Refresh recomputes all projects once. All projects share one reference time.
// Errors from individual projects are joined; other projects still refresh.
// Cancelling ctx aborts the refresh and returns the context error.
func (m *Monitor) Refresh(ctx context.Context) error {
	projects, err := loadWithRetry(ctx, m.breaker, m.cfg.Retry, m.source.ListProjects)
	if err != nil {
		return fmt.Errorf("listing projects: %w", err)
	}

	now := m.cfg.Clock()
	errs := make([]error, len(projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)

	for i, p := range projects {
		g.Go(func() error {
			if err := m.refreshProject(gctx, p, now); err != nil {
				errs[i] = fmt.Errorf("project %s: %w", p.ID, err)
			}
			// Only cancellation stops the other projects
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.prune(projects)
	return errors.Join(errs...)
}

func (m *Monitor) refreshProject(ctx context.Context, project *persistence.Project, now time.Time) error {
	tasks, err := loadWithRetry(ctx, m.breaker, m.cfg.Retry, func(ctx context.Context) ([]stages.Task, error) {
		return m.source.ListProjectTasks(ctx, project.ID)
	})
	if err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	}

	current := &Snapshot{
		Project:    *project,
		Stages:     m.cfg.Catalog.ProjectStages(tasks, now),
		Unmapped:   m.cfg.Catalog.Unmapped(tasks),
		ComputedAt: now,
	}

	m.mu.Lock()
	previous := m.snapshots[project.ID]
	m.snapshots[project.ID] = current
	fresh := m.markUnreported(project.ID, current.Unmapped)
	m.mu.Unlock()

	if previous != nil {
		for _, ev := range transitions(project.ID, previous.Stages, current.Stages, now) {
			m.bus.Publish(events.TopicStage, ev)
		}
	}

	m.bus.Publish(events.TopicProject, events.ProjectProgressEvent{
		Project:   project.ID,
		Name:      project.Name,
		Stages:    current.Stages,
		Timestamp: now,
	})

	if len(fresh) > 0 {
		first, last := m.cfg.Catalog.Span()
		for _, t := range fresh {
			log.Printf("WARNING: project %q task %q has sequence %d outside stage range [%d,%d]; ignored", project.ID, t.ID, t.Sequence, first, last)
		}
		ids := make([]string, len(fresh))
		for i, t := range fresh {
			ids[i] = t.ID
		}
		m.bus.Publish(events.TopicProject, events.TasksUnmappedEvent{
			Project:   project.ID,
			TaskIDs:   ids,
			Timestamp: now,
		})
	}

	return nil
}

// markUnreported returns the unmapped tasks that were not unmapped on the
// project's previous refresh, and remembers the current set. A task brought
// back into range and later moved out again is reported again. Caller holds m.mu.
func (m *Monitor) markUnreported(projectID string, tasks []stages.Task) []stages.Task {
	seen := m.reported[projectID]
	current := make(map[string]bool, len(tasks))

	var fresh []stages.Task
	for _, t := range tasks {
		current[t.ID] = true
		if !seen[t.ID] {
			fresh = append(fresh, t)
		}
	}

	if len(current) == 0 {
		delete(m.reported, projectID)
	} else {
		m.reported[projectID] = current
	}
	return fresh
}

// prune drops state kept for projects that no longer exist.
func (m *Monitor) prune(projects []*persistence.Project) {
	keep := make(map[string]bool, len(projects))
	for _, p := range projects {
		keep[p.ID] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.snapshots {
		if !keep[id] {
			delete(m.snapshots, id)
		}
	}
	for id := range m.reported {
		if !keep[id] {
			delete(m.reported, id)
		}
	}
}

// Snapshot returns the last computed pipeline for a project.
func (m *Monitor) Snapshot(projectID string) (*Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[projectID]
	return s, ok
}

// Snapshots returns the last computed pipelines of all projects.
func (m *Monitor) Snapshots() []*Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s)
	}
	return out
}

// transitions compares two pipelines of the same catalog and returns the stage events between them.
func transitions(projectID string, before, after []stages.PhaseStatus, now time.Time) []events.Event {
	var out []events.Event
	for i := range after {
		if i >= len(before) {
			break
		}
		prev, cur := before[i].Countdown.Status, after[i].Countdown.Status
		if prev == cur {
			continue
		}
		st := after[i]

		switch cur {
		case stages.CountdownCompleted:
			out = append(out, events.StageCompletedEvent{
				Project:     projectID,
				StageID:     st.Stage.ID,
				StageName:   st.Stage.Name,
				CompletedAt: st.CompletedAt,
				WasOverdue:  prev == stages.CountdownOverdue,
				Timestamp:   now,
			})

		case stages.CountdownInProgress, stages.CountdownOverdue:
			if prev == stages.CountdownNotStarted {
				out = append(out, events.StageUnlockedEvent{
					Project:   projectID,
					StageID:   st.Stage.ID,
					StageName: st.Stage.Name,
					StartedAt: *st.Countdown.StartedAt,
					DaysLeft:  *st.Countdown.DaysLeft,
					Timestamp: now,
				})
			}
			if cur == stages.CountdownOverdue {
				out = append(out, events.StageOverdueEvent{
					Project:   projectID,
					StageID:   st.Stage.ID,
					StageName: st.Stage.Name,
					StartedAt: *st.Countdown.StartedAt,
					Timestamp: now,
				})
			}
		}
	}
	return out
}

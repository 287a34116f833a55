package events

import (
	"time"

	"github.com/aristath/stagetrack/internal/stages"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	ProjectID() string
}

// Topic constants
const (
	TopicStage   = "stage"
	TopicProject = "project"
)

// Event type constants
const (
	EventTypeStageUnlocked   = "stage.unlocked"
	EventTypeStageOverdue    = "stage.overdue"
	EventTypeStageCompleted  = "stage.completed"
	EventTypeProjectProgress = "project.progress"
	EventTypeTasksUnmapped   = "project.unmapped"
)

// StageUnlockedEvent is published when a stage's countdown starts.
type StageUnlockedEvent struct {
	Project   string
	StageID   string
	StageName string
	StartedAt time.Time
	DaysLeft  int
	Timestamp time.Time
}

func (e StageUnlockedEvent) EventType() string { return EventTypeStageUnlocked }
func (e StageUnlockedEvent) ProjectID() string { return e.Project }

// StageOverdueEvent is published when a stage runs out of allotted days.
type StageOverdueEvent struct {
	Project   string
	StageID   string
	StageName string
	StartedAt time.Time
	Timestamp time.Time
}

func (e StageOverdueEvent) EventType() string { return EventTypeStageOverdue }
func (e StageOverdueEvent) ProjectID() string { return e.Project }

// StageCompletedEvent is published when every task in a stage is completed.
type StageCompletedEvent struct {
	Project     string
	StageID     string
	StageName   string
	CompletedAt *time.Time // Nil when no task recorded a completion time
	WasOverdue  bool
	Timestamp   time.Time
}

func (e StageCompletedEvent) EventType() string { return EventTypeStageCompleted }
func (e StageCompletedEvent) ProjectID() string { return e.Project }

// ProjectProgressEvent carries a project's full stage pipeline after each refresh.
type ProjectProgressEvent struct {
	Project   string
	Name      string
	Stages    []stages.PhaseStatus
	Timestamp time.Time
}

func (e ProjectProgressEvent) EventType() string { return EventTypeProjectProgress }
func (e ProjectProgressEvent) ProjectID() string { return e.Project }

// TasksUnmappedEvent reports tasks whose sequence position matches no stage.
type TasksUnmappedEvent struct {
	Project   string
	TaskIDs   []string
	Timestamp time.Time
}

func (e TasksUnmappedEvent) EventType() string { return EventTypeTasksUnmapped }
func (e TasksUnmappedEvent) ProjectID() string { return e.Project }

package stages

import "time"

// TaskStatus is the lifecycle state of a project task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// ParseTaskStatus maps a stored status string to a TaskStatus.
// Unknown values are treated as pending so they can never complete a stage.
func ParseTaskStatus(s string) TaskStatus {
	switch TaskStatus(s) {
	case TaskInProgress:
		return TaskInProgress
	case TaskCompleted:
		return TaskCompleted
	default:
		return TaskPending
	}
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	return s == TaskPending || s == TaskInProgress || s == TaskCompleted
}

// Task is a single unit of project work, placed into a stage by Sequence.
type Task struct {
	ID          string
	ProjectID   string
	Name        string
	Status      TaskStatus
	Sequence    int        // Position in the execution order
	CompletedAt *time.Time // Nil until the task is completed
	UpdatedAt   time.Time
}

package stages

import (
	"time"
)

// CountdownStatus is the timeline state of a stage.
type CountdownStatus string

const (
	CountdownNoTimeline CountdownStatus = "no_timeline"
	CountdownNotStarted CountdownStatus = "not_started"
	CountdownInProgress CountdownStatus = "in_progress"
	CountdownCompleted  CountdownStatus = "completed"
	CountdownOverdue    CountdownStatus = "overdue"
)

const day = 24 * time.Hour

// Countdown is the remaining-days view of a stage.
type Countdown struct {
	DaysLeft  *int       // Nil for stages without a timeline
	StartedAt *time.Time // Completion time of the previous stage, once unlocked
	IsOverdue bool
	Status    CountdownStatus
}

// PhaseStatus is the derived state of one stage for one project.
// It is recomputed from the task list on every evaluation.
type PhaseStatus struct {
	Stage       Definition
	Tasks       []Task
	IsCompleted bool
	CompletedAt *time.Time // Latest task completion, only when IsCompleted
	IsActive    bool
	Countdown   Countdown
}

// Unlocked reports whether the next stage may start its countdown.
// A completed stage without any completion timestamp does not unlock its successor.
func (p PhaseStatus) Unlocked() bool {
	return p.IsCompleted && p.CompletedAt != nil
}

// Evaluate derives the status of stage from the project's tasks.
// prev is the status of the preceding stage in catalog order, or nil for
// the first stage. now is the reference time for elapsed-day arithmetic.
func Evaluate(stage Definition, tasks []Task, prev *PhaseStatus, now time.Time) PhaseStatus {
	var stageTasks []Task
	for _, t := range tasks {
		if stage.Contains(t.Sequence) {
			stageTasks = append(stageTasks, t)
		}
	}

	completed := len(stageTasks) > 0
	for _, t := range stageTasks {
		if t.Status != TaskCompleted {
			completed = false
			break
		}
	}

	var completedAt *time.Time
	if completed {
		for _, t := range stageTasks {
			if t.CompletedAt == nil {
				continue
			}
			if completedAt == nil || t.CompletedAt.After(*completedAt) {
				ts := *t.CompletedAt
				completedAt = &ts
			}
		}
	}

	status := PhaseStatus{
		Stage:       stage,
		Tasks:       stageTasks,
		IsCompleted: completed,
		CompletedAt: completedAt,
	}

	if !stage.HasTimeline() {
		status.IsActive = !completed
		status.Countdown = Countdown{Status: CountdownNoTimeline}
		if completed {
			status.Countdown.Status = CountdownCompleted
		}
		return status
	}

	daysLeft := stage.Days
	status.Countdown = Countdown{Status: CountdownNotStarted}

	switch {
	case completed:
		daysLeft = 0
		status.Countdown.Status = CountdownCompleted

	case prev != nil && prev.Unlocked():
		startedAt := *prev.CompletedAt
		status.IsActive = true
		status.Countdown.StartedAt = &startedAt

		daysLeft = max(0, stage.Days-daysBetween(startedAt, now))
		if daysLeft <= 0 {
			status.Countdown.Status = CountdownOverdue
			status.Countdown.IsOverdue = true
		} else {
			status.Countdown.Status = CountdownInProgress
		}
	}

	status.Countdown.DaysLeft = &daysLeft
	return status
}

// daysBetween returns the whole days from start to end, floored.
func daysBetween(start, end time.Time) int {
	elapsed := end.Sub(start)
	days := int(elapsed / day)
	if elapsed < 0 && elapsed%day != 0 {
		days--
	}
	return days
}

package stages

import (
	"reflect"
	"testing"
	"time"
)

func clientMeetingDone(ts time.Time) []Task {
	return []Task{
		completedTask("cm1", 1, at(ts.Add(-2*day))),
		completedTask("cm2", 2, at(ts.Add(-time.Hour))),
		completedTask("cm3", 3, at(ts)),
	}
}

func TestProjectStagesNoTasks(t *testing.T) {
	statuses := ProjectStages(nil, t0)
	if len(statuses) != 6 {
		t.Fatalf("got %d statuses, want 6", len(statuses))
	}

	if statuses[0].Countdown.Status != CountdownNoTimeline {
		t.Errorf("stage 1 status = %s, want no_timeline", statuses[0].Countdown.Status)
	}

	wantDays := []int{8, 25, 30, 15, 12}
	for i, st := range statuses {
		if st.IsCompleted {
			t.Errorf("stage %q completed with no tasks", st.Stage.ID)
		}
		if i == 0 {
			continue
		}
		if st.Countdown.Status != CountdownNotStarted {
			t.Errorf("stage %q status = %s, want not_started", st.Stage.ID, st.Countdown.Status)
		}
		if got := daysLeft(t, st); got != wantDays[i-1] {
			t.Errorf("stage %q DaysLeft = %d, want %d", st.Stage.ID, got, wantDays[i-1])
		}
		if st.IsActive {
			t.Errorf("stage %q active with no tasks", st.Stage.ID)
		}
	}
}

func TestProjectStagesUnlocksSecondStage(t *testing.T) {
	statuses := ProjectStages(clientMeetingDone(t0), t0.Add(3*day))

	first := statuses[0]
	if !first.IsCompleted || first.CompletedAt == nil || !first.CompletedAt.Equal(t0) {
		t.Fatalf("stage 1 = completed %v at %v, want completed at %v", first.IsCompleted, first.CompletedAt, t0)
	}
	if first.Countdown.Status != CountdownCompleted {
		t.Errorf("stage 1 status = %s, want completed", first.Countdown.Status)
	}

	pop := statuses[1]
	if !pop.IsActive {
		t.Error("pop should be active")
	}
	if pop.Countdown.StartedAt == nil || !pop.Countdown.StartedAt.Equal(t0) {
		t.Errorf("pop StartedAt = %v, want %v", pop.Countdown.StartedAt, t0)
	}
	if got := daysLeft(t, pop); got != 5 {
		t.Errorf("pop DaysLeft = %d, want 5", got)
	}
	if pop.Countdown.Status != CountdownInProgress {
		t.Errorf("pop status = %s, want in_progress", pop.Countdown.Status)
	}

	for _, st := range statuses[2:] {
		if st.IsActive || st.Countdown.Status != CountdownNotStarted {
			t.Errorf("stage %q = active %v status %s, want not_started", st.Stage.ID, st.IsActive, st.Countdown.Status)
		}
	}
}

func TestProjectStagesOverdue(t *testing.T) {
	statuses := ProjectStages(clientMeetingDone(t0), t0.Add(10*day))

	pop := statuses[1]
	if got := daysLeft(t, pop); got != 0 {
		t.Errorf("pop DaysLeft = %d, want 0", got)
	}
	if pop.Countdown.Status != CountdownOverdue || !pop.Countdown.IsOverdue {
		t.Errorf("pop status = %s overdue %v, want overdue", pop.Countdown.Status, pop.Countdown.IsOverdue)
	}
	if !pop.IsActive {
		t.Error("overdue stage should still be active")
	}
}

func TestProjectStagesLateCompletion(t *testing.T) {
	t1 := t0.Add(15 * day)
	tasks := clientMeetingDone(t0)
	for seq := 4; seq <= 9; seq++ {
		tasks = append(tasks, completedTask("pop", seq, at(t1.Add(-time.Duration(9-seq)*time.Hour))))
	}

	statuses := ProjectStages(tasks, t1.Add(day))

	pop := statuses[1]
	if !pop.IsCompleted || pop.Countdown.Status != CountdownCompleted {
		t.Fatalf("pop = completed %v status %s, want completed", pop.IsCompleted, pop.Countdown.Status)
	}
	if got := daysLeft(t, pop); got != 0 {
		t.Errorf("pop DaysLeft = %d, want 0", got)
	}
	if pop.CompletedAt == nil || !pop.CompletedAt.Equal(t1) {
		t.Errorf("pop CompletedAt = %v, want %v", pop.CompletedAt, t1)
	}

	furniture := statuses[2]
	if !furniture.IsActive || furniture.Countdown.StartedAt == nil || !furniture.Countdown.StartedAt.Equal(t1) {
		t.Errorf("furniture should start at %v, got active %v started %v", t1, furniture.IsActive, furniture.Countdown.StartedAt)
	}
	if got := daysLeft(t, furniture); got != 24 {
		t.Errorf("furniture DaysLeft = %d, want 24", got)
	}
}

func TestProjectStagesIgnoresUnmappedTasks(t *testing.T) {
	tasks := clientMeetingDone(t0)
	tasks = append(tasks, pendingTask("stray", 40))

	statuses := ProjectStages(tasks, t0.Add(day))
	if !statuses[0].IsCompleted {
		t.Error("stray task affected stage 1")
	}
	for _, st := range statuses {
		for _, task := range st.Tasks {
			if task.ID == "stray" {
				t.Errorf("stray task placed in stage %q", st.Stage.ID)
			}
		}
	}
	if statuses[5].IsCompleted {
		t.Error("stray task completed the last stage")
	}
}

// TestProjectStagesSequentialUnlock verifies a stage is active only when its predecessor unlocked it.
func TestProjectStagesSequentialUnlock(t *testing.T) {
	// Furniture done but pop not started: furniture completes, laminate stays locked.
	tasks := []Task{
		pendingTask("cm", 1),
		pendingTask("pop", 4),
	}
	for seq := 10; seq <= 17; seq++ {
		tasks = append(tasks, completedTask("f", seq, at(t0)))
	}
	tasks = append(tasks, pendingTask("lam", 18))

	statuses := ProjectStages(tasks, t0.Add(2*day))

	for i := 1; i < len(statuses); i++ {
		prev, cur := statuses[i-1], statuses[i]
		if cur.Stage.HasTimeline() && cur.IsActive && !prev.Unlocked() {
			t.Errorf("stage %q active although %q has not unlocked it", cur.Stage.ID, prev.Stage.ID)
		}
	}

	if !statuses[2].IsCompleted {
		t.Error("furniture should report completed")
	}
	if !statuses[3].IsActive {
		t.Error("laminate should be unlocked by completed furniture")
	}
	if statuses[1].IsActive {
		t.Error("pop should stay locked while client meeting is open")
	}
}

func TestProjectStagesUnsortedInput(t *testing.T) {
	tasks := clientMeetingDone(t0)
	sorted := ProjectStages(tasks, t0.Add(day))

	reversed := []Task{tasks[2], tasks[1], tasks[0]}
	got := ProjectStages(reversed, t0.Add(day))

	for i := range got {
		if got[i].Countdown.Status != sorted[i].Countdown.Status || got[i].IsCompleted != sorted[i].IsCompleted {
			t.Errorf("stage %q differs for unsorted input", got[i].Stage.ID)
		}
	}
}

func TestProjectStagesIdempotent(t *testing.T) {
	tasks := clientMeetingDone(t0)
	tasks = append(tasks, pendingTask("pop", 5), completedTask("f", 12, at(t0)))
	now := t0.Add(4 * day)

	a := ProjectStages(tasks, now)
	b := ProjectStages(tasks, now)
	if !reflect.DeepEqual(a, b) {
		t.Error("ProjectStages is not deterministic for identical input")
	}
}

func TestCatalogProjectStagesCustom(t *testing.T) {
	c, err := NewCatalog([]Definition{
		{ID: "brief", Min: 1, Max: 1, Days: NoTimeline},
		{ID: "fitout", Min: 2, Max: 3, Days: 4},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	statuses := c.ProjectStages([]Task{completedTask("b", 1, at(t0)), pendingTask("f", 2)}, t0.Add(day))
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
	if got := daysLeft(t, statuses[1]); got != 3 {
		t.Errorf("fitout DaysLeft = %d, want 3", got)
	}
}

func TestSummarize(t *testing.T) {
	statuses := ProjectStages(clientMeetingDone(t0), t0.Add(9*day))
	s := Summarize(statuses)

	if s.Total != 6 {
		t.Errorf("Total = %d, want 6", s.Total)
	}
	if s.Completed != 1 {
		t.Errorf("Completed = %d, want 1", s.Completed)
	}
	if s.Overdue != 1 {
		t.Errorf("Overdue = %d, want 1", s.Overdue)
	}
	if s.Current == nil || s.Current.Stage.ID != "pop" {
		t.Errorf("Current = %v, want pop", s.Current)
	}
	if s.AllCompleted {
		t.Error("AllCompleted should be false")
	}

	empty := Summarize(nil)
	if empty.AllCompleted || empty.Current != nil {
		t.Error("empty summary should have no current stage and not be complete")
	}
}

package stages

import "time"

// ProjectStages evaluates every catalog stage in order, feeding each result
// into the evaluation of the next. One status is returned per stage.
func (c *Catalog) ProjectStages(tasks []Task, now time.Time) []PhaseStatus {
	statuses := make([]PhaseStatus, 0, len(c.defs))

	var prev *PhaseStatus
	for _, def := range c.defs {
		status := Evaluate(def, tasks, prev, now)
		statuses = append(statuses, status)
		prev = &statuses[len(statuses)-1]
	}

	return statuses
}

// ProjectStages evaluates tasks against the default catalog.
func ProjectStages(tasks []Task, now time.Time) []PhaseStatus {
	return defaultCatalog.ProjectStages(tasks, now)
}

// Summary condenses a pipeline result for list views.
type Summary struct {
	Current      *PhaseStatus // First active stage, nil when none is active
	Completed    int
	Overdue      int
	Total        int
	AllCompleted bool
}

// Summarize builds a Summary from pipeline output.
func Summarize(statuses []PhaseStatus) Summary {
	s := Summary{Total: len(statuses)}
	for i := range statuses {
		st := &statuses[i]
		if st.IsCompleted {
			s.Completed++
		}
		if st.Countdown.IsOverdue {
			s.Overdue++
		}
		if s.Current == nil && st.IsActive {
			s.Current = st
		}
	}
	s.AllCompleted = s.Total > 0 && s.Completed == s.Total
	return s
}

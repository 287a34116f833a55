package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/stagetrack/internal/events"
	"github.com/aristath/stagetrack/internal/stages"
)

// ProjectState is the latest pipeline reported for one project.
type ProjectState struct {
	ID        string
	Name      string
	Stages    []stages.PhaseStatus
	UpdatedAt time.Time
	Unmapped  int
}

// Summary condenses the project's pipeline.
func (p *ProjectState) Summary() stages.Summary {
	return stages.Summarize(p.Stages)
}

// ProjectPaneModel lists projects and tracks the selection.
type ProjectPaneModel struct {
	projects    map[string]*ProjectState // projectID -> state
	order       []string                 // sorted by name for display
	selectedIdx int
	width       int
	height      int
	focused     bool
}

// NewProjectPaneModel creates an empty project list.
func NewProjectPaneModel() ProjectPaneModel {
	return ProjectPaneModel{
		projects: make(map[string]*ProjectState),
	}
}

// Update handles messages for the project pane.
func (m ProjectPaneModel) Update(msg tea.Msg) (ProjectPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
			}
		}

	case events.ProjectProgressEvent:
		selected := m.SelectedID()
		state, exists := m.projects[msg.Project]
		if !exists {
			state = &ProjectState{ID: msg.Project}
			m.projects[msg.Project] = state
		}
		renamed := state.Name != msg.Name
		state.Name = msg.Name
		state.Stages = msg.Stages
		state.UpdatedAt = msg.Timestamp
		if !exists || renamed {
			m.reorder(selected)
		}

	case events.TasksUnmappedEvent:
		if state, ok := m.projects[msg.Project]; ok {
			state.Unmapped += len(msg.TaskIDs)
		}
	}

	return m, nil
}

// reorder sorts projects by name and keeps the selection on the same project.
func (m *ProjectPaneModel) reorder(selected string) {
	m.order = m.order[:0]
	for id := range m.projects {
		m.order = append(m.order, id)
	}
	sort.Slice(m.order, func(i, j int) bool {
		a, b := m.projects[m.order[i]], m.projects[m.order[j]]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})

	m.selectedIdx = 0
	for i, id := range m.order {
		if id == selected {
			m.selectedIdx = i
			break
		}
	}
}

// SelectedID returns the ID of the selected project, or "".
func (m ProjectPaneModel) SelectedID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

// Selected returns the selected project's state, or nil.
func (m ProjectPaneModel) Selected() *ProjectState {
	return m.projects[m.SelectedID()]
}

// View renders the project pane.
func (m ProjectPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	inner := m.width - 4

	var b strings.Builder
	title := StyleTitle.Render("Projects")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(inner, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting for first refresh..."))
	}

	for i, id := range m.order {
		p := m.projects[id]
		sum := p.Summary()

		status := stages.CountdownCompleted
		stage := "done"
		if sum.Current != nil {
			status = sum.Current.Countdown.Status
			stage = sum.Current.Stage.Name
		} else if !sum.AllCompleted {
			status = stages.CountdownNotStarted
			stage = "idle"
		}

		name := truncate(p.Name, inner-12)
		line := fmt.Sprintf("%s %s %d/%d", StatusIcon(status), name, sum.Completed, sum.Total)
		if i == m.selectedIdx {
			line = StyleSelected.Render(fmt.Sprintf("> %s %d/%d", name, sum.Completed, sum.Total))
		}
		b.WriteString(line)
		b.WriteString("\n")
		b.WriteString(StyleHelp.Render("  " + truncate(stage, inner-2)))
		if p.Unmapped > 0 {
			b.WriteString(StyleStatusOverdue.Render(fmt.Sprintf(" (%d unmapped)", p.Unmapped)))
		}
		b.WriteString("\n")
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ProjectPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ProjectPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func truncate(s string, width int) string {
	if width < 4 {
		width = 4
	}
	if len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}

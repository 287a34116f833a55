package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/aristath/stagetrack/internal/stages"
)

// StagePaneModel shows the stage pipeline of the selected project.
type StagePaneModel struct {
	project *ProjectState
	width   int
	height  int
	focused bool
}

// NewStagePaneModel creates a new stage pane model.
func NewStagePaneModel() StagePaneModel {
	return StagePaneModel{}
}

// Update handles messages for the stage pane.
func (m StagePaneModel) Update(msg tea.Msg) (StagePaneModel, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

// SetProject selects the project to display. nil clears the pane.
func (m *StagePaneModel) SetProject(p *ProjectState) {
	m.project = p
}

// View renders the stage pane.
func (m StagePaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	heading := "Stages"
	if m.project != nil {
		heading = "Stages: " + m.project.Name
	}
	title := StyleTitle.Render(heading)
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if m.project == nil {
		b.WriteString(StyleStatusPending.Render("No project selected"))
	} else {
		barWidth := min(m.width-6, 40)
		for _, st := range m.project.Stages {
			b.WriteString(m.renderStage(st, barWidth))
			b.WriteString("\n")
		}
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

// renderStage renders the header line and progress bar of one stage.
func (m StagePaneModel) renderStage(st stages.PhaseStatus, barWidth int) string {
	name := lipgloss.NewStyle().Foreground(lipgloss.Color(st.Stage.Color)).Bold(true).Render(st.Stage.Name)
	header := fmt.Sprintf("%s %s  %s", StatusIcon(st.Countdown.Status), name, CountdownBadge(st.Countdown))

	if st.Countdown.StartedAt != nil && !st.IsCompleted {
		header += StyleHelp.Render("  started " + humanize.RelTime(*st.Countdown.StartedAt, m.project.UpdatedAt, "ago", "from now"))
	}
	if st.CompletedAt != nil {
		header += StyleHelp.Render("  finished " + humanize.RelTime(*st.CompletedAt, m.project.UpdatedAt, "ago", "from now"))
	}

	bar := progress.New(
		progress.WithSolidFill(st.Stage.Color),
		progress.WithWidth(max(barWidth, 10)),
	)

	return header + "\n  " + bar.ViewAs(StageProgress(st)) + "\n"
}

// CountdownBadge is the short countdown label shown next to a stage name.
func CountdownBadge(c stages.Countdown) string {
	style := StatusStyle(c.Status)
	switch c.Status {
	case stages.CountdownCompleted:
		return style.Render("[done]")
	case stages.CountdownOverdue:
		return style.Render("[OVERDUE]")
	case stages.CountdownInProgress:
		return style.Render(fmt.Sprintf("[%s left]", pluralDays(*c.DaysLeft)))
	case stages.CountdownNotStarted:
		return style.Render(fmt.Sprintf("[%s budget]", pluralDays(*c.DaysLeft)))
	default:
		return style.Render("[no timeline]")
	}
}

// StageProgress returns the fill fraction for a stage's progress bar.
// Timelined running stages show elapsed budget; others show task completion.
func StageProgress(st stages.PhaseStatus) float64 {
	switch st.Countdown.Status {
	case stages.CountdownCompleted, stages.CountdownOverdue:
		return 1
	case stages.CountdownInProgress:
		if st.Stage.Days > 0 {
			used := st.Stage.Days - *st.Countdown.DaysLeft
			return clampFraction(float64(used) / float64(st.Stage.Days))
		}
	}

	if len(st.Tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range st.Tasks {
		if t.Status == stages.TaskCompleted {
			done++
		}
	}
	return float64(done) / float64(len(st.Tasks))
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func pluralDays(n int) string {
	return humanize.Comma(int64(n)) + " " + pluralWord(n, "day", "days")
}

func pluralWord(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// SetSize updates the pane dimensions.
func (m *StagePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *StagePaneModel) SetFocused(focused bool) {
	m.focused = focused
}

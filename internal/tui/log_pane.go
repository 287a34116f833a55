package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/aristath/stagetrack/internal/events"
)

// maxLogLines bounds the event log kept in memory.
const maxLogLines = 500

// LogPaneModel is a scrollable log of stage transitions.
type LogPaneModel struct {
	lines     []string
	names     map[string]string // projectID -> display name
	viewport  viewport.Model
	width     int
	height    int
	focused   bool
	dropped   int64 // Deliveries the bus skipped because the dashboard fell behind
	updateTag int   // for debouncing
}

// NewLogPaneModel creates a new event log pane.
func NewLogPaneModel() LogPaneModel {
	vp := viewport.New(0, 0)
	vp.SetContent("Waiting for stage events...")
	return LogPaneModel{
		names:    make(map[string]string),
		viewport: vp,
	}
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

// Update handles messages for the log pane.
func (m LogPaneModel) Update(msg tea.Msg) (LogPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if m.focused {
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.ProjectProgressEvent:
		m.names[msg.Project] = msg.Name

	case events.StageUnlockedEvent, events.StageOverdueEvent, events.StageCompletedEvent, events.TasksUnmappedEvent:
		m.append(m.FormatEvent(msg.(events.Event)))
		m.updateTag++
		tag := m.updateTag
		return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
			return tickMsg{tag: tag}
		})

	case tickMsg:
		// Only update if this tick matches the current tag (debouncing)
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

func (m *LogPaneModel) append(line string) {
	m.lines = append(m.lines, line)
	if over := len(m.lines) - maxLogLines; over > 0 {
		m.lines = append(m.lines[:0], m.lines[over:]...)
	}
}

// FormatEvent renders one log line for a stage or project event.
func (m LogPaneModel) FormatEvent(ev events.Event) string {
	project := ev.ProjectID()
	if name, ok := m.names[project]; ok && name != "" {
		project = name
	}

	switch e := ev.(type) {
	case events.StageUnlockedEvent:
		return fmt.Sprintf("%s %s: %s unlocked, %s left",
			stamp(e.Timestamp), project, e.StageName, pluralDays(e.DaysLeft))
	case events.StageOverdueEvent:
		return fmt.Sprintf("%s %s: %s %s",
			stamp(e.Timestamp), project, e.StageName, StyleStatusOverdue.Render("is overdue"))
	case events.StageCompletedEvent:
		suffix := ""
		if e.WasOverdue {
			suffix = StyleStatusOverdue.Render(" (late)")
		}
		return fmt.Sprintf("%s %s: %s %s%s",
			stamp(e.Timestamp), project, e.StageName, StyleStatusComplete.Render("completed"), suffix)
	case events.TasksUnmappedEvent:
		return fmt.Sprintf("%s %s: %d task(s) outside every stage range: %s",
			stamp(e.Timestamp), project, len(e.TaskIDs), strings.Join(e.TaskIDs, ", "))
	default:
		return fmt.Sprintf("%s: %s", project, ev.EventType())
	}
}

func stamp(t time.Time) string {
	return StyleHelp.Render(t.Local().Format("Jan 02 15:04"))
}

// Lines returns the log lines in order.
func (m LogPaneModel) Lines() []string {
	return m.lines
}

// View renders the log pane.
func (m LogPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	title := StyleTitle.Render("Events")
	if m.dropped > 0 {
		title += StyleStatusOverdue.Render(fmt.Sprintf("  %s dropped", humanize.Comma(m.dropped)))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, title, m.viewport.View())

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// updateViewportContent refreshes the viewport and scrolls to the newest line.
func (m *LogPaneModel) updateViewportContent() {
	if len(m.lines) == 0 {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// resizeViewport resizes the viewport based on pane dimensions.
func (m *LogPaneModel) resizeViewport() {
	w := m.width - 4
	h := m.height - 3 // borders and title
	if w < 10 {
		w = 10
	}
	if h < 3 {
		h = 3
	}
	m.viewport.Width = w
	m.viewport.Height = h
}

// SetSize updates the pane dimensions.
func (m *LogPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetDropped records how many events never reached the dashboard.
func (m *LogPaneModel) SetDropped(n int64) {
	m.dropped = n
}

// SetFocused updates the focus state.
func (m *LogPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

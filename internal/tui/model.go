package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/stagetrack/internal/config"
	"github.com/aristath/stagetrack/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneProjects PaneID = iota
	PaneStages
	PaneLog
)

const paneCount = 3

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	projectPane  ProjectPaneModel
	stagePane    StagePaneModel
	logPane      LogPaneModel
	settingsPane SettingsPaneModel
	focusedPane  PaneID
	bus          *events.EventBus
	eventSub     <-chan events.Event
	width        int
	height       int
	quitting     bool
	showSettings bool
}

// New creates a new dashboard model.
// It subscribes to all events from the event bus using SubscribeAll.
func New(eventBus *events.EventBus, cfg *config.Config, globalPath, projectPath string) Model {
	m := Model{
		projectPane:  NewProjectPaneModel(),
		stagePane:    NewStagePaneModel(),
		logPane:      NewLogPaneModel(),
		settingsPane: NewSettingsPaneModel(cfg, globalPath, projectPath),
		focusedPane:  PaneProjects,
		bus:          eventBus,
		eventSub:     eventBus.SubscribeAll(256),
	}
	m.updateFocusStates()
	return m
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// If settings panel is open, route all keys to it (modal behavior)
		if m.showSettings {
			var cmd tea.Cmd
			m.settingsPane, cmd = m.settingsPane.Update(msg)
			cmds = append(cmds, cmd)

			// Check if settings pane closed itself (after save or esc)
			if !m.settingsPane.IsVisible() {
				m.showSettings = false
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			m.bus.Unsubscribe(m.eventSub)
			return m, tea.Quit

		case KeySettings:
			m.showSettings = true
			m.settingsPane.SetVisible(true)
			cmds = append(cmds, m.settingsPane.Init())

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneProjects
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneStages
			m.updateFocusStates()

		case KeyPane3:
			m.focusedPane = PaneLog
			m.updateFocusStates()

		default:
			// Delegate to focused pane
			var cmd tea.Cmd
			switch m.focusedPane {
			case PaneProjects:
				m.projectPane, cmd = m.projectPane.Update(msg)
				m.stagePane.SetProject(m.projectPane.Selected())
			case PaneStages:
				m.stagePane, cmd = m.stagePane.Update(msg)
			case PaneLog:
				m.logPane, cmd = m.logPane.Update(msg)
			}
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settingsPane.SetSize(msg.Width, msg.Height)

	case events.ProjectProgressEvent, events.TasksUnmappedEvent:
		m.projectPane, _ = m.projectPane.Update(msg)
		m.stagePane.SetProject(m.projectPane.Selected())
		m.logPane.SetDropped(m.bus.Dropped())
		var cmd tea.Cmd
		m.logPane, cmd = m.logPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.StageUnlockedEvent, events.StageOverdueEvent, events.StageCompletedEvent:
		m.logPane.SetDropped(m.bus.Dropped())
		var cmd tea.Cmd
		m.logPane, cmd = m.logPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case tickMsg:
		var cmd tea.Cmd
		m.logPane, cmd = m.logPane.Update(msg)
		cmds = append(cmds, cmd)

	default:
		// Forward to the form while it is open (cursor blink etc.)
		if m.showSettings {
			var cmd tea.Cmd
			m.settingsPane, cmd = m.settingsPane.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showSettings {
		return m.settingsPane.View()
	}

	rightPane := lipgloss.JoinVertical(lipgloss.Left, m.stagePane.View(), m.logPane.View())
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, m.projectPane.View(), rightPane)

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, HelpView())
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 30) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1 // reserve 1 line for help bar
	rightTopHeight := (availableHeight * 65) / 100
	rightBottomHeight := availableHeight - rightTopHeight

	m.projectPane.SetSize(leftWidth, availableHeight)
	m.stagePane.SetSize(rightWidth, rightTopHeight)
	m.logPane.SetSize(rightWidth, rightBottomHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.projectPane.SetFocused(m.focusedPane == PaneProjects)
	m.stagePane.SetFocused(m.focusedPane == PaneStages)
	m.logPane.SetFocused(m.focusedPane == PaneLog)
}

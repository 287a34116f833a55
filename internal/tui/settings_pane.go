package tui

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/stagetrack/internal/config"
)

// SettingsPaneModel manages the settings form overlay.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.Config
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings live behind a pointer so the form keeps writing
	// to the same values as the model is copied through Update.
	fields *settingsFields
}

// settingsFields holds the string values bound to the Huh form.
type settingsFields struct {
	saveTarget      string
	refreshInterval string
	concurrency     string
	databasePath    string
}

// NewSettingsPaneModel creates a new settings pane.
func NewSettingsPaneModel(cfg *config.Config, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
		fields:      &settingsFields{},
	}
	m.loadFields()
	m.buildForm()
	return m
}

// loadFields initializes form field values from config.
func (m *SettingsPaneModel) loadFields() {
	m.fields.saveTarget = "global"
	m.fields.refreshInterval = time.Duration(m.config.Monitor.RefreshInterval).String()
	m.fields.concurrency = strconv.Itoa(m.config.Monitor.Concurrency)
	m.fields.databasePath = m.config.Database.Path
}

// buildForm constructs the Huh form with all settings fields.
func (m *SettingsPaneModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Global (~/.stagetrack/config.json)", "global"),
					huh.NewOption("Project (.stagetrack/config.json)", "project"),
				).
				Value(&m.fields.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewInput().
				Key("refreshInterval").
				Title("Refresh Interval").
				Description("How often stage countdowns are recomputed").
				Value(&m.fields.refreshInterval).
				Placeholder("1m").
				Validate(validateInterval),

			huh.NewInput().
				Key("concurrency").
				Title("Concurrency").
				Description("Projects evaluated in parallel").
				Value(&m.fields.concurrency).
				Placeholder("4").
				Validate(validateConcurrency),

			huh.NewInput().
				Key("databasePath").
				Title("Database Path").
				Value(&m.fields.databasePath).
				Placeholder("~/.stagetrack/stagetrack.db"),
		).Title("Monitor Settings"),
	)
}

func validateInterval(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("not a duration: %q", s)
	}
	if d < time.Second {
		return errors.New("interval must be at least 1s")
	}
	return nil
}

func validateConcurrency(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return errors.New("concurrency must be a positive integer")
	}
	return nil
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == KeyEsc {
		// Cancel without saving
		m.visible = false
		m.saved = false
		return m, nil
	}

	// Delegate to form
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.err = m.save()
		m.saved = m.err == nil

		// Hide form after successful save
		if m.saved {
			m.visible = false
		}
	}

	return m, cmd
}

// save copies form values into the config and writes it to the chosen target.
func (m *SettingsPaneModel) save() error {
	if err := m.applyFormToConfig(); err != nil {
		return err
	}
	if err := m.config.Validate(); err != nil {
		return err
	}

	targetPath := m.globalPath
	if m.fields.saveTarget == "project" {
		targetPath = m.projectPath
	}
	return config.Save(m.config, targetPath)
}

// applyFormToConfig copies form field values back to the config struct.
func (m *SettingsPaneModel) applyFormToConfig() error {
	interval, err := time.ParseDuration(m.fields.refreshInterval)
	if err != nil {
		return fmt.Errorf("refresh interval: %w", err)
	}
	concurrency, err := strconv.Atoi(m.fields.concurrency)
	if err != nil {
		return fmt.Errorf("concurrency: %w", err)
	}

	m.config.Monitor.RefreshInterval = config.Duration(interval)
	m.config.Monitor.Concurrency = concurrency
	if m.fields.databasePath != "" {
		m.config.Database.Path = m.fields.databasePath
	}
	return nil
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string
	if m.err != nil {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true).
			Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	} else {
		content = m.form.View()
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings (changes apply on restart)")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil

	// Rebuild form to reset state when showing
	if v {
		m.loadFields()
		m.buildForm()
		if m.width > 0 {
			m.form.WithWidth(m.width - 8).WithHeight(m.height - 8)
		}
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}

// Saved reports whether the last submission was written successfully.
func (m SettingsPaneModel) Saved() bool {
	return m.saved
}

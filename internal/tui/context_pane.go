package tui

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sorvik/scheduler/internal/config"
	"github.com/sorvik/scheduler/internal/scheduler"
)

// ApplyContextFunc delivers an edited context patch to the scheduler.
type ApplyContextFunc func(scheduler.ContextPatch)

// ContextPaneModel manages the scheduling-context form overlay. Edited
// factors are applied to the live scheduler and can optionally be persisted
// to a config file.
type ContextPaneModel struct {
	form        *huh.Form
	config      *config.SchedulerConfig
	onApply     ApplyContextFunc
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	applied     bool
	err         error

	// Form field bindings (strings for Huh)
	saveTarget      string
	urgency         string
	importance      string
	userExpectation string
	systemLoad      string
}

// NewContextPaneModel creates a new context pane.
func NewContextPaneModel(cfg *config.SchedulerConfig, onApply ApplyContextFunc, globalPath, projectPath string) ContextPaneModel {
	m := ContextPaneModel{
		config:      cfg,
		onApply:     onApply,
		globalPath:  globalPath,
		projectPath: projectPath,

		saveTarget:      "apply",
		urgency:         formatFactor(cfg.Context.Urgency),
		importance:      formatFactor(cfg.Context.Importance),
		userExpectation: formatFactor(cfg.Context.UserExpectation),
		systemLoad:      formatFactor(cfg.Context.SystemLoad),
	}

	m.buildForm()
	return m
}

// buildForm constructs the Huh form with all context fields.
func (m *ContextPaneModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("urgency").
				Title("Urgency").
				Value(&m.urgency).
				Placeholder("0.5").
				Validate(validateFactor),

			huh.NewInput().
				Key("importance").
				Title("Importance").
				Value(&m.importance).
				Placeholder("0.5").
				Validate(validateFactor),

			huh.NewInput().
				Key("userExpectation").
				Title("User Expectation").
				Value(&m.userExpectation).
				Placeholder("0.5").
				Validate(validateFactor),

			huh.NewInput().
				Key("systemLoad").
				Title("System Load").
				Value(&m.systemLoad).
				Placeholder("0.0").
				Validate(validateFactor),
		).Title("Scheduling Context (0..1)"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Persist").
				Options(
					huh.NewOption("Apply only", "apply"),
					huh.NewOption("Apply and save to project (.scheduler/config.json)", "project"),
					huh.NewOption("Apply and save globally (~/.scheduler/config.json)", "global"),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),
	)
}

// Init initializes the context pane.
func (m ContextPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the context pane.
func (m ContextPaneModel) Update(msg tea.Msg) (ContextPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			// Cancel without applying
			m.visible = false
			m.applied = false
			return m, nil
		}
	}

	// Delegate to form
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	// Check if form is completed
	if m.form.State == huh.StateCompleted {
		patch, err := m.parsePatch()
		if err != nil {
			m.err = err
			m.applied = false
			return m, cmd
		}

		if m.onApply != nil {
			m.onApply(patch)
		}
		m.applied = true
		m.err = nil

		// Persist to the chosen config file, if any
		if m.saveTarget != "apply" {
			m.config.Context = config.ContextConfig{
				Urgency:         *patch.Urgency,
				Importance:      *patch.Importance,
				UserExpectation: *patch.UserExpectation,
				SystemLoad:      *patch.SystemLoad,
			}
			targetPath := m.globalPath
			if m.saveTarget == "project" {
				targetPath = m.projectPath
			}
			if err := config.Save(m.config, targetPath); err != nil {
				m.err = err
			}
		}

		if m.err == nil {
			m.visible = false
		}
	}

	return m, cmd
}

// parsePatch converts the form field strings into a full context patch.
func (m *ContextPaneModel) parsePatch() (scheduler.ContextPatch, error) {
	var patch scheduler.ContextPatch
	fields := []struct {
		raw  string
		name string
		dst  **float64
	}{
		{m.urgency, "urgency", &patch.Urgency},
		{m.importance, "importance", &patch.Importance},
		{m.userExpectation, "user expectation", &patch.UserExpectation},
		{m.systemLoad, "system load", &patch.SystemLoad},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return scheduler.ContextPatch{}, fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		value := v
		*f.dst = &value
	}
	return patch, nil
}

// View renders the context pane.
func (m ContextPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string
	if m.err != nil {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true).
			Render(fmt.Sprintf("✗ %v", m.err))
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
		Render("⚙ Scheduling Context")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the context pane.
func (m *ContextPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the context pane.
func (m *ContextPaneModel) SetVisible(v bool) {
	m.visible = v
	m.applied = false
	m.err = nil

	// Rebuild form to reset state when showing
	if v && m.form != nil {
		m.buildForm()
	}
}

// IsVisible returns whether the context pane is currently visible.
func (m ContextPaneModel) IsVisible() bool {
	return m.visible
}

func formatFactor(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func validateFactor(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if v < 0 || v > 1 {
		return fmt.Errorf("must be between 0 and 1")
	}
	return nil
}

package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sorvik/scheduler/internal/config"
	"github.com/sorvik/scheduler/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTasks PaneID = iota
	PaneQueue
)

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	taskPane    TaskPaneModel
	queuePane   QueuePaneModel
	contextPane ContextPaneModel
	focusedPane PaneID
	eventSub    <-chan events.Event
	width       int
	height      int
	quitting    bool
	showContext bool
}

// New creates a new TUI model.
// It subscribes to all events from the event bus using SubscribeAll.
func New(bus *events.Bus, cfg *config.SchedulerConfig, onApply ApplyContextFunc, globalPath, projectPath string) Model {
	return Model{
		taskPane:    NewTaskPaneModel(),
		queuePane:   NewQueuePaneModel(),
		contextPane: NewContextPaneModel(cfg, onApply, globalPath, projectPath),
		focusedPane: PaneTasks,
		eventSub:    bus.SubscribeAll(256).C,
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the bus.
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
		// If the context panel is open, route all keys to it (modal behavior)
		if m.showContext {
			switch msg.String() {
			case "esc":
				m.showContext = false
				m.contextPane.SetVisible(false)
			default:
				var cmd tea.Cmd
				m.contextPane, cmd = m.contextPane.Update(msg)
				cmds = append(cmds, cmd)

				// Check if the pane closed itself (after apply)
				if !m.contextPane.IsVisible() {
					m.showContext = false
				}
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeyContext:
			m.showContext = true
			m.contextPane.SetVisible(true)
			cmds = append(cmds, m.contextPane.Init())

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % 2
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + 1) % 2
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneTasks
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneQueue
			m.updateFocusStates()

		default:
			// Delegate to focused pane
			switch m.focusedPane {
			case PaneTasks:
				var cmd tea.Cmd
				m.taskPane, cmd = m.taskPane.Update(msg)
				cmds = append(cmds, cmd)
			case PaneQueue:
				var cmd tea.Cmd
				m.queuePane, cmd = m.queuePane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.contextPane.SetSize(msg.Width, msg.Height)

	case events.TaskScheduledEvent, events.TaskStartedEvent, events.TaskRequeuedEvent,
		events.TaskCompletedEvent, events.TaskFailedEvent, events.TaskCanceledEvent:
		// Forward task lifecycle events to the task pane
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.QueueProgressEvent, events.ContextUpdatedEvent:
		// Forward queue and context events to the queue pane
		var cmd tea.Cmd
		m.queuePane, cmd = m.queuePane.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	// If the context panel is visible, render it full-screen
	if m.showContext {
		return m.contextPane.View()
	}

	leftPane := m.taskPane.View()
	rightPane := m.queuePane.View()

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)
	helpBar := HelpView()

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, helpBar)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 60) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1 // reserve 1 line for help bar

	m.taskPane.SetSize(leftWidth, availableHeight)
	m.queuePane.SetSize(rightWidth, availableHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.taskPane.SetFocused(m.focusedPane == PaneTasks)
	m.queuePane.SetFocused(m.focusedPane == PaneQueue)
}

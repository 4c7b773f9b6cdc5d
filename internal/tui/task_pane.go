package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sorvik/scheduler/internal/events"
)

// TaskState tracks the lifecycle of one task for display.
type TaskState struct {
	TaskID    string
	Name      string
	Kind      string
	Status    string // "scheduled", "running", "completed", "failed", "canceled"
	Weight    float64
	Log       []string
	StartTime time.Time
	Duration  time.Duration
}

// TaskPaneModel shows the task list with a per-task event log viewport.
type TaskPaneModel struct {
	tasks       map[string]*TaskState // taskID -> state
	taskOrder   []string              // insertion order for display
	selectedIdx int                   // which task is selected in the list
	viewport    viewport.Model        // scrollable log viewport
	width       int
	height      int
	focused     bool
}

// NewTaskPaneModel creates a new task pane model.
func NewTaskPaneModel() TaskPaneModel {
	vp := viewport.New(0, 0)
	return TaskPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: vp,
	}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.taskOrder)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			// Delegate other keys to viewport for scrolling
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskScheduledEvent:
		if _, exists := m.tasks[msg.ID]; !exists {
			m.tasks[msg.ID] = &TaskState{
				TaskID: msg.ID,
				Name:   msg.Name,
				Kind:   msg.Kind,
				Status: "scheduled",
				Weight: msg.Weight,
				Log:    []string{fmt.Sprintf("scheduled with weight %.1f", msg.Weight)},
			}
			m.taskOrder = append(m.taskOrder, msg.ID)
			// Auto-select first task
			if len(m.taskOrder) == 1 {
				m.selectedIdx = 0
			}
			m.updateViewportContent()
		}

	case events.TaskStartedEvent:
		state := m.ensure(msg.ID, msg.Name, msg.Kind)
		state.Status = "running"
		state.Weight = msg.Weight
		state.StartTime = msg.Timestamp
		m.appendLog(msg.ID, fmt.Sprintf("started at weight %.1f", msg.Weight))

	case events.TaskRequeuedEvent:
		m.appendLog(msg.ID, fmt.Sprintf("retry attempt %d", msg.Attempt))

	case events.TaskCompletedEvent:
		if state, exists := m.tasks[msg.ID]; exists {
			state.Status = "completed"
			state.Duration = msg.Duration
		}
		m.appendLog(msg.ID, fmt.Sprintf("completed in %v", msg.Duration.Round(time.Millisecond)))

	case events.TaskFailedEvent:
		if state, exists := m.tasks[msg.ID]; exists {
			state.Status = "failed"
			state.Duration = msg.Duration
		}
		m.appendLog(msg.ID, fmt.Sprintf("failed: %v", msg.Err))

	case events.TaskCanceledEvent:
		if state, exists := m.tasks[msg.ID]; exists {
			state.Status = "canceled"
		}
		m.appendLog(msg.ID, fmt.Sprintf("canceled: %s", msg.Reason))
	}

	return m, cmd
}

// ensure returns the state for a task, creating it if an earlier event was missed.
func (m *TaskPaneModel) ensure(id, name, kind string) *TaskState {
	if state, exists := m.tasks[id]; exists {
		return state
	}
	state := &TaskState{TaskID: id, Name: name, Kind: kind}
	m.tasks[id] = state
	m.taskOrder = append(m.taskOrder, id)
	return state
}

func (m *TaskPaneModel) appendLog(id, line string) {
	state, exists := m.tasks[id]
	if !exists {
		return
	}
	state.Log = append(state.Log, line)
	if m.selectedTaskID() == id {
		m.updateViewportContent()
	}
}

func (m *TaskPaneModel) selectedTaskID() string {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.taskOrder) {
		return ""
	}
	return m.taskOrder[m.selectedIdx]
}

// updateViewportContent refreshes the viewport with the selected task's log.
func (m *TaskPaneModel) updateViewportContent() {
	id := m.selectedTaskID()
	state, exists := m.tasks[id]
	if !exists {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(strings.Join(state.Log, "\n"))
	m.viewport.GotoBottom()
}

// View renders the task pane: list on top, selected task log below.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("no tasks yet"))
		b.WriteString("\n")
	}

	listHeight := m.listHeight()
	start := 0
	if m.selectedIdx >= listHeight {
		start = m.selectedIdx - listHeight + 1
	}
	for i := start; i < len(m.taskOrder) && i < start+listHeight; i++ {
		state := m.tasks[m.taskOrder[i]]
		cursor := "  "
		if i == m.selectedIdx {
			cursor = "> "
		}
		b.WriteString(cursor)
		b.WriteString(renderStatus(state.Status))
		b.WriteString(" ")
		b.WriteString(fmt.Sprintf("%s (%s)", state.Name, state.Kind))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.viewport.View())

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// renderStatus returns a colored single-word status marker.
func renderStatus(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("[run ]")
	case "completed":
		return StyleStatusComplete.Render("[done]")
	case "failed":
		return StyleStatusFailed.Render("[fail]")
	case "canceled":
		return StyleStatusBlocked.Render("[cncl]")
	default:
		return StyleStatusPending.Render("[wait]")
	}
}

// listHeight is how many list rows fit above the viewport.
func (m TaskPaneModel) listHeight() int {
	h := (m.height - 6) / 2
	if h < 3 {
		h = 3
	}
	return h
}

// resizeViewport recomputes the viewport dimensions from the pane size.
func (m *TaskPaneModel) resizeViewport() {
	vpHeight := m.height - m.listHeight() - 6
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = m.width - 4
	m.viewport.Height = vpHeight
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

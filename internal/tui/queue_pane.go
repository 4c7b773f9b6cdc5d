package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sorvik/scheduler/internal/events"
	"github.com/sorvik/scheduler/internal/scheduler"
)

// QueuePaneModel shows queue progress counts and the current scheduling context.
type QueuePaneModel struct {
	total     int
	ready     int
	blocked   int
	running   int
	completed int
	failed    int
	canceled  int
	ctx       scheduler.Context
	hasCtx    bool
	width     int
	height    int
	focused   bool
}

// NewQueuePaneModel creates a new queue pane model.
func NewQueuePaneModel() QueuePaneModel {
	return QueuePaneModel{}
}

// Update handles messages for the queue pane.
func (m QueuePaneModel) Update(msg tea.Msg) (QueuePaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.QueueProgressEvent:
		m.total = msg.Total
		m.ready = msg.Ready
		m.blocked = msg.Blocked
		m.running = msg.Running
		m.completed = msg.Completed
		m.failed = msg.Failed
		m.canceled = msg.Canceled

	case events.ContextUpdatedEvent:
		m.ctx = msg.Context
		m.hasCtx = true
	}

	return m, nil
}

// View renders the queue pane.
func (m QueuePaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Queue")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Total:     %d\n", m.total))
	b.WriteString(fmt.Sprintf("Ready:     %d\n", m.ready))
	b.WriteString(fmt.Sprintf("Blocked:   %s\n", StyleStatusBlocked.Render(fmt.Sprintf("%d", m.blocked))))
	b.WriteString(fmt.Sprintf("Running:   %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", m.running))))
	b.WriteString(fmt.Sprintf("Completed: %s\n", StyleStatusComplete.Render(fmt.Sprintf("%d", m.completed))))
	b.WriteString(fmt.Sprintf("Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.failed))))
	b.WriteString(fmt.Sprintf("Canceled:  %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.canceled))))

	b.WriteString("\n")

	// Progress bar over terminal outcomes
	if m.total > 0 {
		barWidth := min(m.width-4, 40)
		completedWidth := (m.completed * barWidth) / m.total
		failedWidth := (m.failed * barWidth) / m.total
		runningWidth := (m.running * barWidth) / m.total
		remainingWidth := barWidth - completedWidth - failedWidth - runningWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, remainingWidth)))

		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, m.completed, m.total))
	}

	if m.hasCtx {
		b.WriteString("\n")
		b.WriteString(StyleTitle.Render("Context"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("urgency %.2f  importance %.2f\n", m.ctx.Urgency, m.ctx.Importance))
		b.WriteString(fmt.Sprintf("expectation %.2f  load %.2f\n", m.ctx.UserExpectation, m.ctx.SystemLoad))
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
func (m *QueuePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *QueuePaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

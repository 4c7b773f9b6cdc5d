package events

import (
	"time"

	"github.com/sorvik/scheduler/internal/scheduler"
)

// Event is the base interface for all scheduler events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask    = "task"
	TopicQueue   = "queue"
	TopicContext = "context"
)

// Event type constants
const (
	EventTypeTaskScheduled  = "task.scheduled"
	EventTypeTaskStarted    = "task.started"
	EventTypeTaskCompleted  = "task.completed"
	EventTypeTaskFailed     = "task.failed"
	EventTypeTaskCanceled   = "task.canceled"
	EventTypeTaskRequeued   = "task.requeued"
	EventTypeQueueProgress  = "queue.progress"
	EventTypeContextUpdated = "context.updated"
)

// TaskScheduledEvent is published when a task is accepted by the scheduler.
type TaskScheduledEvent struct {
	ID        string
	Name      string
	Kind      string
	Weight    float64
	Timestamp time.Time
}

func (e TaskScheduledEvent) EventType() string { return EventTypeTaskScheduled }
func (e TaskScheduledEvent) TaskID() string    { return e.ID }

// TaskStartedEvent is published when the runner begins executing a task.
type TaskStartedEvent struct {
	ID        string
	Name      string
	Kind      string
	Weight    float64
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task finishes successfully.
type TaskCompletedEvent struct {
	ID        string
	Result    any
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task fails permanently.
type TaskFailedEvent struct {
	ID        string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskCanceledEvent is published when the host withdraws a task, including
// cascade cancellation of dependents of a failed task.
type TaskCanceledEvent struct {
	ID        string
	Reason    string
	Timestamp time.Time
}

func (e TaskCanceledEvent) EventType() string { return EventTypeTaskCanceled }
func (e TaskCanceledEvent) TaskID() string    { return e.ID }

// TaskRequeuedEvent is published when a failed execution is retried.
type TaskRequeuedEvent struct {
	ID        string
	Attempt   int
	Timestamp time.Time
}

func (e TaskRequeuedEvent) EventType() string { return EventTypeTaskRequeued }
func (e TaskRequeuedEvent) TaskID() string    { return e.ID }

// QueueProgressEvent is published when queue counts change.
type QueueProgressEvent struct {
	Total     int
	Ready     int
	Blocked   int
	Running   int
	Completed int
	Failed    int
	Canceled  int
	Timestamp time.Time
}

func (e QueueProgressEvent) EventType() string { return EventTypeQueueProgress }
func (e QueueProgressEvent) TaskID() string    { return "" }

// ContextUpdatedEvent is published after the scheduling context changes and
// all task weights have been recomputed.
type ContextUpdatedEvent struct {
	Context   scheduler.Context
	Timestamp time.Time
}

func (e ContextUpdatedEvent) EventType() string { return EventTypeContextUpdated }
func (e ContextUpdatedEvent) TaskID() string    { return "" }

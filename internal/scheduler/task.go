package scheduler

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus int

const (
	TaskPending   TaskStatus = iota // Queued, waiting to be picked up
	TaskRunning                     // Claimed by an execution engine
	TaskCompleted                   // Finished successfully
	TaskFailed                      // Finished with error
	TaskCanceled                    // Withdrawn before completion
)

// String returns the lowercase name of the status.
func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	case TaskCanceled:
		return "canceled"
	}
	return "unknown"
}

// IsTerminal returns true if this status represents a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCanceled
}

// PriorityLevel is the ordinal base priority of a task.
type PriorityLevel int

const (
	PriorityBackground PriorityLevel = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// String returns the lowercase name of the priority level.
func (p PriorityLevel) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return "unknown"
}

// DependencyKind distinguishes blocking from advisory dependencies.
type DependencyKind int

const (
	// DependencyHard must be satisfied before the dependent may be scheduled.
	DependencyHard DependencyKind = iota
	// DependencySoft is an ordering hint only and never blocks.
	DependencySoft
)

// Condition evaluates a dependency's recorded execution result. The result
// is nil when the dependency failed or was canceled.
type Condition func(result any) bool

// Dependency references another task by ID. Dangling references (tasks not
// present in the queue) are valid and simply stay unresolved.
type Dependency struct {
	TaskID    string
	Kind      DependencyKind
	Condition Condition // Optional; evaluated against the recorded result
}

// DeadlineKind distinguishes absolute from relative deadlines.
type DeadlineKind int

const (
	DeadlineAbsolute DeadlineKind = iota
	DeadlineRelative
)

// Deadline describes when a task should be finished. Deadlines only affect
// priority weight; the scheduler never expires or cancels a task itself.
type Deadline struct {
	Kind        DeadlineKind
	At          time.Time     // Used when Kind == DeadlineAbsolute
	In          time.Duration // Used when Kind == DeadlineRelative
	Critical    bool          // Critical deadlines boost urgency by 1.5x
	Flexibility float64       // 0 = fully urgent weighting, 1 = no boost
}

// Resolve returns the absolute deadline instant relative to now.
func (d Deadline) Resolve(now time.Time) time.Time {
	if d.Kind == DeadlineAbsolute {
		return d.At
	}
	return now.Add(d.In)
}

// Task is a unit of work submitted for scheduling. ID is immutable for the
// task's lifetime in a queue; the scheduling fields may be patched.
type Task struct {
	ID                string
	Name              string
	Kind              string // Handler selector for the execution engine
	Priority          PriorityLevel
	Weight            float64 // Computed by the priority calculator; always >= 1
	Dependencies      []Dependency
	Resources         []string // Opaque resource identifiers; count penalizes weight
	Deadline          *Deadline
	EstimatedDuration time.Duration
	Status            TaskStatus
	InsertedAt        time.Time // Tie-break for equal weights (earlier wins)
	Payload           any       // Opaque to the scheduler
}

// HardDependsOn reports whether the task has a hard dependency on the given ID.
func (t *Task) HardDependsOn(id string) bool {
	for _, dep := range t.Dependencies {
		if dep.TaskID == id && dep.Kind == DependencyHard {
			return true
		}
	}
	return false
}

// Patch describes a partial update to a task. Nil fields are left unchanged.
type Patch struct {
	Name              *string
	Kind              *string
	Priority          *PriorityLevel
	Dependencies      []Dependency // Nil = unchanged; empty slice clears
	Resources         []string     // Nil = unchanged; empty slice clears
	Deadline          *Deadline
	ClearDeadline     bool
	EstimatedDuration *time.Duration
	Payload           any
}

// AffectsWeight reports whether applying the patch can change the computed
// priority weight. Used to skip needless recomputation.
func (p Patch) AffectsWeight() bool {
	return p.Priority != nil ||
		p.Dependencies != nil ||
		p.Resources != nil ||
		p.Deadline != nil ||
		p.ClearDeadline ||
		p.EstimatedDuration != nil
}

// apply mutates the task in place according to the patch.
func (p Patch) apply(t *Task) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Kind != nil {
		t.Kind = *p.Kind
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Dependencies != nil {
		t.Dependencies = append([]Dependency(nil), p.Dependencies...)
	}
	if p.Resources != nil {
		t.Resources = append([]string(nil), p.Resources...)
	}
	if p.ClearDeadline {
		t.Deadline = nil
	} else if p.Deadline != nil {
		d := *p.Deadline
		t.Deadline = &d
	}
	if p.EstimatedDuration != nil {
		t.EstimatedDuration = *p.EstimatedDuration
	}
	if p.Payload != nil {
		t.Payload = p.Payload
	}
}

// cloneTask returns a deep-enough copy of a task so callers never observe
// internal state mutations.
func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.Dependencies != nil {
		cp.Dependencies = append([]Dependency(nil), task.Dependencies...)
	}
	if task.Resources != nil {
		cp.Resources = append([]string(nil), task.Resources...)
	}
	if task.Deadline != nil {
		d := *task.Deadline
		cp.Deadline = &d
	}
	return &cp
}

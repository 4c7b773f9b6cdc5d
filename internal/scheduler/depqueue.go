package scheduler

import (
	"fmt"
	"sort"
	"sync"
)

// executionResult is a recorded terminal outcome for a task ID. value is nil
// for failed or canceled tasks; completed distinguishes success.
type executionResult struct {
	value     any
	completed bool
}

// DependencyQueue is a task queue that understands inter-task dependencies.
// It owns a dependency graph over the task store plus a cache of execution
// results, and produces a dependency-respecting candidate order.
//
// All methods are safe for concurrent use via an internal mutex. Returned
// tasks are snapshot copies; callers never receive internal references.
type DependencyQueue struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	graph   *depGraph
	results map[string]executionResult
	order   []string // Cached execution order; nil when invalidated
}

// NewDependencyQueue creates an empty queue.
func NewDependencyQueue() *DependencyQueue {
	return &DependencyQueue{
		tasks:   make(map[string]*Task),
		graph:   newDepGraph(),
		results: make(map[string]executionResult),
	}
}

// Enqueue adds a task. Returns ErrDuplicateTask if the ID is already present.
func (q *DependencyQueue) Enqueue(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, task.ID)
	}

	q.tasks[task.ID] = cloneTask(task)
	q.graph.setTask(task.ID, task.Dependencies)
	q.order = nil
	return nil
}

// Update applies a partial patch to a task. Returns ErrTaskNotFound for an
// unknown ID so callers can treat "already removed" as a no-op.
func (q *DependencyQueue) Update(id string, patch Patch) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}

	patch.apply(task)
	if patch.Dependencies != nil {
		q.graph.setTask(id, task.Dependencies)
		q.order = nil
	}
	return nil
}

// Remove deletes a task from the queue. Its recorded execution result, if
// any, is kept so dependents can still resolve. Dependencies other tasks
// hold on the removed ID become dangling references.
func (q *DependencyQueue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.tasks[id]; !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}

	delete(q.tasks, id)
	q.graph.clearTask(id)
	q.order = nil
	return nil
}

// GetByID returns a copy of the task with the given ID.
func (q *DependencyQueue) GetByID(id string) (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return nil, false
	}
	return cloneTask(task), true
}

// GetAll returns copies of all queued tasks, ordered by insertion time.
func (q *DependencyQueue) GetAll() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	all := make([]*Task, 0, len(q.tasks))
	for _, task := range q.tasks {
		all = append(all, cloneTask(task))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].InsertedAt.Equal(all[j].InsertedAt) {
			return all[i].InsertedAt.Before(all[j].InsertedAt)
		}
		return all[i].ID < all[j].ID
	})
	return all
}

// Size returns the number of queued tasks.
func (q *DependencyQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// IsEmpty returns true when no tasks are queued.
func (q *DependencyQueue) IsEmpty() bool {
	return q.Size() == 0
}

// GetDependents returns the IDs of tasks that depend on the given ID.
func (q *DependencyQueue) GetDependents(id string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.graph.dependents(id)
}

// GetDependencies returns the IDs the given task depends on.
func (q *DependencyQueue) GetDependencies(id string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.graph.dependencies(id)
}

// IsBlocked reports whether the task has an unsatisfied hard dependency.
// Soft dependencies never block. A hard dependency on an ID with no recorded
// result (including IDs absent from the store) is unsatisfied; so is a
// conditioned dependency whose predicate rejects the recorded result.
//
// Dependents of a failed or canceled task stay blocked indefinitely unless
// their dependency carries a condition accepting the nil result. Cascading
// cancellation is deliberately left to the caller.
func (q *DependencyQueue) IsBlocked(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return false
	}
	return q.isBlocked(task)
}

// IsReadyToExecute reports whether the task exists and is not blocked.
func (q *DependencyQueue) IsReadyToExecute(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return false
	}
	return !q.isBlocked(task)
}

// isBlocked is the blocking rule. Callers must hold q.mu.
func (q *DependencyQueue) isBlocked(task *Task) bool {
	for _, dep := range task.Dependencies {
		if dep.Kind != DependencyHard {
			continue
		}
		res, ok := q.results[dep.TaskID]
		if !ok {
			return true
		}
		if dep.Condition != nil {
			if !dep.Condition(res.value) {
				return true
			}
			continue
		}
		if !res.completed {
			return true
		}
	}
	return false
}

// UpdateTaskStatus records a task's status change. For terminal statuses the
// outcome is stored in the result cache: the provided result for
// TaskCompleted, nil for TaskFailed and TaskCanceled. Results are recorded
// even when the task has already been dequeued, so dependents of consumed
// tasks can still unblock.
//
// Returns ErrTaskNotFound when a non-terminal status is reported for an
// unknown ID.
func (q *DependencyQueue) UpdateTaskStatus(id string, status TaskStatus, result any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if ok {
		task.Status = status
	}

	switch status {
	case TaskCompleted:
		q.results[id] = executionResult{value: result, completed: true}
	case TaskFailed, TaskCanceled:
		q.results[id] = executionResult{value: nil, completed: false}
	default:
		if !ok {
			return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
		}
	}
	return nil
}

// Result returns the recorded execution result for a task ID, if any.
func (q *DependencyQueue) Result(id string) (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	res, ok := q.results[id]
	if !ok {
		return nil, false
	}
	return res.value, true
}

// PruneResult drops the recorded result for an ID. Results are never removed
// automatically; hosts prune once no dependent can need them.
func (q *DependencyQueue) PruneResult(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.results, id)
}

// OptimizeExecutionOrder returns copies of all tasks in dependency-respecting
// order. The order is cached and recomputed lazily after structural changes.
// Cycles degrade to the deterministic fallback grouping; they never error.
func (q *DependencyQueue) OptimizeExecutionOrder() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ensureOrder()
	out := make([]*Task, 0, len(q.order))
	for _, id := range q.order {
		if task, ok := q.tasks[id]; ok {
			out = append(out, cloneTask(task))
		}
	}
	return out
}

// Dequeue removes and returns the first ready task in execution order.
// Blocking state is dynamic, so tasks found blocked (or not pending) at call
// time are skipped and requeued at the tail of the cached order. Returns nil
// when every remaining task is blocked or the queue is empty.
func (q *DependencyQueue) Dequeue() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ensureOrder()

	var skipped []string
	for i, id := range q.order {
		task, ok := q.tasks[id]
		if !ok {
			continue // Stale cache entry; drop it
		}
		if task.Status != TaskPending || q.isBlocked(task) {
			skipped = append(skipped, id)
			continue
		}

		delete(q.tasks, id)
		q.graph.clearTask(id)
		rest := make([]string, 0, len(q.order)-i-1+len(skipped))
		rest = append(rest, q.order[i+1:]...)
		rest = append(rest, skipped...)
		q.order = rest
		return cloneTask(task)
	}

	q.order = skipped
	return nil
}

// Peek returns the first ready task in execution order without removing it.
func (q *DependencyQueue) Peek() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ensureOrder()
	for _, id := range q.order {
		task, ok := q.tasks[id]
		if !ok {
			continue
		}
		if task.Status != TaskPending || q.isBlocked(task) {
			continue
		}
		return cloneTask(task)
	}
	return nil
}

// ensureOrder recomputes the cached execution order if it was invalidated.
// Callers must hold q.mu.
func (q *DependencyQueue) ensureOrder() {
	if q.order == nil {
		q.order = q.graph.order(q.tasks)
	}
}

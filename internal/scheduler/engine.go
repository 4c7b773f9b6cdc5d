package scheduler

import "sync"

// Engine combines dependency-aware blocking with weighted prioritization:
// dependency state filters the candidate set, weights order it. It is the
// sole writer of both underlying queues, which share task records by value.
//
// The engine is a passive decision structure. It never executes tasks, never
// transitions a task to TaskRunning, and never blocks: Next and Peek
// returning nil is a normal outcome, and the host is responsible for polling
// or for signaling on task completion.
type Engine struct {
	mu   sync.Mutex
	deps *DependencyQueue
	svc  *Service
}

// NewEngine creates an empty scheduler engine.
func NewEngine() *Engine {
	return &Engine{
		deps: NewDependencyQueue(),
		svc:  NewService(),
	}
}

// Submit computes the task's weight, assigns an ID if absent, and enqueues
// it in both queues. Returns the task's ID.
func (e *Engine) Submit(task *Task) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.svc.AddTask(task)
	if err != nil {
		return "", err
	}
	if err := e.deps.Enqueue(task); err != nil {
		// Keep the stores consistent; the priority-queue insert is undone.
		_ = e.svc.RemoveTask(id)
		return "", err
	}
	return id, nil
}

// UpdateTask applies a partial patch to the task in both queues, recomputing
// its weight when the patch touches a weight-affecting field.
func (e *Engine) UpdateTask(id string, patch Patch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.deps.Update(id, patch); err != nil {
		return err
	}
	return e.svc.UpdateTask(id, patch)
}

// UpdateTaskPriority changes a task's priority level and recomputes its weight.
func (e *Engine) UpdateTaskPriority(id string, level PriorityLevel) error {
	return e.UpdateTask(id, Patch{Priority: &level})
}

// Remove deletes a task from both queues.
func (e *Engine) Remove(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.deps.Remove(id); err != nil {
		return err
	}
	return e.svc.RemoveTask(id)
}

// UpdateTaskStatus records a task's status. Terminal statuses feed the
// execution-result cache: TaskCompleted stores the provided result and
// unblocks dependents whose conditions accept it; TaskFailed and TaskCanceled
// store nil, leaving unconditioned hard dependents blocked until the host
// decides what to do with them.
func (e *Engine) UpdateTaskStatus(id string, status TaskStatus, result any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.deps.UpdateTaskStatus(id, status, result); err != nil {
		return err
	}
	// Mirror the status into the priority store when the task is still queued.
	_ = e.svc.queue.SetStatus(id, status)
	return nil
}

// Next removes and returns the ready task with the highest weight. Returns
// nil when the queue is empty or every pending task is blocked.
func (e *Engine) Next() *Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pick(true)
}

// Peek returns the ready task with the highest weight without removing it.
func (e *Engine) Peek() *Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pick(false)
}

// pick scans tasks in weight order for the first unblocked pending task.
// Callers must hold e.mu.
func (e *Engine) pick(consume bool) *Task {
	for _, ranked := range e.svc.GetAllTasks() {
		task, ok := e.deps.GetByID(ranked.ID)
		if !ok {
			continue
		}
		if task.Status != TaskPending || e.deps.IsBlocked(task.ID) {
			continue
		}

		task.Weight = ranked.Weight
		if consume {
			_ = e.deps.Remove(task.ID)
			_ = e.svc.RemoveTask(task.ID)
		}
		return task
	}
	return nil
}

// OptimizeExecutionOrder returns all tasks in dependency-respecting order.
func (e *Engine) OptimizeExecutionOrder() []*Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deps.OptimizeExecutionOrder()
}

// IsBlocked reports whether a task has an unsatisfied hard dependency.
func (e *Engine) IsBlocked(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deps.IsBlocked(id)
}

// GetDependents returns the IDs of tasks depending on the given ID.
func (e *Engine) GetDependents(id string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deps.GetDependents(id)
}

// GetDependencies returns the IDs the given task depends on.
func (e *Engine) GetDependencies(id string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deps.GetDependencies(id)
}

// GetTask returns a copy of the task with current status and weight.
func (e *Engine) GetTask(id string) (*Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.deps.GetByID(id)
	if !ok {
		return nil, false
	}
	if ranked, ok := e.svc.GetTask(id); ok {
		task.Weight = ranked.Weight
	}
	return task, true
}

// GetAllTasks returns copies of all tasks sorted by weight descending.
func (e *Engine) GetAllTasks() []*Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.svc.GetAllTasks()
}

// Result returns the recorded execution result for a task ID, if any.
func (e *Engine) Result(id string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deps.Result(id)
}

// UpdateContext merges external scheduling signals and recomputes all weights.
func (e *Engine) UpdateContext(patch ContextPatch) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.svc.UpdateContext(patch)
}

// GetContext returns the current scheduling context.
func (e *Engine) GetContext() Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.svc.GetContext()
}

// SetPriorityWeights replaces the base weight table; see Service.
func (e *Engine) SetPriorityWeights(weights Weights) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.svc.SetPriorityWeights(weights)
}

// SetCalculator replaces the weight calculator; see Service.
func (e *Engine) SetCalculator(calc Calculator) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.svc.SetCalculator(calc)
}

// Size returns the number of queued tasks.
func (e *Engine) Size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deps.Size()
}

// IsEmpty returns true when no tasks are queued.
func (e *Engine) IsEmpty() bool {
	return e.Size() == 0
}

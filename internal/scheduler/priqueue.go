package scheduler

import (
	"fmt"
	"sort"
	"sync"
)

// PriorityQueue orders tasks by computed weight, highest first, with
// insertion time as a deterministic tie-break (earlier submissions win).
//
// Sorting is lazy: mutations only mark the index dirty, and the sorted index
// is rebuilt when the next Dequeue or Peek needs it. This amortizes resort
// cost across bursts of mutations.
type PriorityQueue struct {
	mu     sync.Mutex
	tasks  map[string]*Task
	sorted []string // Task IDs ordered by weight desc; valid when !dirty
	dirty  bool
}

// NewPriorityQueue creates an empty priority queue.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{
		tasks: make(map[string]*Task),
	}
}

// Enqueue adds a task. Returns ErrDuplicateTask if the ID is already present.
func (q *PriorityQueue) Enqueue(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, task.ID)
	}
	q.tasks[task.ID] = cloneTask(task)
	q.dirty = true
	return nil
}

// Dequeue removes and returns the highest-weight task, or nil when empty.
func (q *PriorityQueue) Dequeue() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ensureSorted()
	if len(q.sorted) == 0 {
		return nil
	}

	id := q.sorted[0]
	task := q.tasks[id]
	delete(q.tasks, id)
	q.sorted = q.sorted[1:]
	return cloneTask(task)
}

// Peek returns the highest-weight task without removing it, or nil when empty.
func (q *PriorityQueue) Peek() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ensureSorted()
	if len(q.sorted) == 0 {
		return nil
	}
	return cloneTask(q.tasks[q.sorted[0]])
}

// Update applies a partial patch to a task and marks the index dirty.
func (q *PriorityQueue) Update(id string, patch Patch) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	patch.apply(task)
	q.dirty = true
	return nil
}

// SetWeight replaces a task's computed weight.
func (q *PriorityQueue) SetWeight(id string, weight float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	task.Weight = weight
	q.dirty = true
	return nil
}

// SetStatus replaces a task's status. Status does not affect ordering, so
// the index stays clean.
func (q *PriorityQueue) SetStatus(id string, status TaskStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	task.Status = status
	return nil
}

// Remove deletes a task. Returns ErrTaskNotFound for an unknown ID.
func (q *PriorityQueue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.tasks[id]; !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	delete(q.tasks, id)
	q.dirty = true
	return nil
}

// GetByID returns a copy of the task with the given ID.
func (q *PriorityQueue) GetByID(id string) (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return nil, false
	}
	return cloneTask(task), true
}

// GetAll returns copies of all tasks sorted by weight descending. The result
// is computed from a snapshot and does not touch the lazy index.
func (q *PriorityQueue) GetAll() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	all := make([]*Task, 0, len(q.tasks))
	for _, task := range q.tasks {
		all = append(all, cloneTask(task))
	}
	sort.Slice(all, func(i, j int) bool {
		return taskLess(all[i], all[j])
	})
	return all
}

// Each calls fn with every queued task under the queue lock. fn may mutate
// the task; the index is marked dirty afterwards.
func (q *PriorityQueue) Each(fn func(*Task)) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, task := range q.tasks {
		fn(task)
	}
	q.dirty = true
}

// Size returns the number of queued tasks.
func (q *PriorityQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// IsEmpty returns true when no tasks are queued.
func (q *PriorityQueue) IsEmpty() bool {
	return q.Size() == 0
}

// ensureSorted rebuilds the sorted index if dirty. Callers must hold q.mu.
func (q *PriorityQueue) ensureSorted() {
	if !q.dirty && q.sorted != nil {
		return
	}

	q.sorted = make([]string, 0, len(q.tasks))
	for id := range q.tasks {
		q.sorted = append(q.sorted, id)
	}
	sort.Slice(q.sorted, func(i, j int) bool {
		return taskLess(q.tasks[q.sorted[i]], q.tasks[q.sorted[j]])
	})
	q.dirty = false
}

// taskLess is the queue ordering: weight descending, then insertion time
// ascending, then ID for full determinism.
func taskLess(a, b *Task) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	if !a.InsertedAt.Equal(b.InsertedAt) {
		return a.InsertedAt.Before(b.InsertedAt)
	}
	return a.ID < b.ID
}

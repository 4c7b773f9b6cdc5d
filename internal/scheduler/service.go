package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service is the dynamic prioritization layer: it owns a priority queue, the
// current scheduling context, and the calculator producing task weights. Any
// change to the context, the base weight table, or the calculator triggers a
// full recomputation pass so every task's relative ranking stays current.
//
// Construct instances explicitly and pass them by handle; there is no
// process-wide singleton.
type Service struct {
	queue   *PriorityQueue
	calc    Calculator
	weights Weights
	ctx     Context
	custom  bool // True when a caller-supplied calculator is active
	now     func() time.Time
}

// NewService creates a prioritization service with the default weight table
// and calculator, and a zeroed scheduling context.
func NewService() *Service {
	weights := DefaultWeights()
	return &Service{
		queue:   NewPriorityQueue(),
		calc:    NewDefaultCalculator(weights),
		weights: weights,
		now:     time.Now,
	}
}

// AddTask computes the task's initial weight and enqueues it. A task without
// an ID is assigned a generated one. InsertedAt is stamped here; the caller
// provided value is ignored. Returns the task's ID.
func (s *Service) AddTask(task *Task) (string, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.InsertedAt = s.now()
	task.Status = TaskPending
	task.Weight = s.computeWeight(task)

	if err := s.queue.Enqueue(task); err != nil {
		return "", err
	}
	return task.ID, nil
}

// UpdateTaskPriority changes a task's priority level and recomputes its weight.
func (s *Service) UpdateTaskPriority(id string, level PriorityLevel) error {
	if err := s.queue.Update(id, Patch{Priority: &level}); err != nil {
		return err
	}
	return s.recomputeOne(id)
}

// UpdateTask applies a partial patch. The task's weight is recomputed only
// when the patch touches a weight-affecting field.
func (s *Service) UpdateTask(id string, patch Patch) error {
	if err := s.queue.Update(id, patch); err != nil {
		return err
	}
	if patch.AffectsWeight() {
		return s.recomputeOne(id)
	}
	return nil
}

// RemoveTask deletes a task. Returns ErrTaskNotFound for an unknown ID.
func (s *Service) RemoveTask(id string) error {
	return s.queue.Remove(id)
}

// UpdateContext merges the patch into the scheduling context and recomputes
// the weight of every queued task. Context changes are rare relative to
// dequeues, so the O(n) pass is acceptable; every task's ranking can shift.
func (s *Service) UpdateContext(patch ContextPatch) {
	patch.apply(&s.ctx)
	s.recomputeAll()
}

// GetContext returns the current scheduling context.
func (s *Service) GetContext() Context {
	return s.ctx
}

// GetNextTask removes and returns the highest-weight task, or nil when empty.
func (s *Service) GetNextTask() *Task {
	return s.queue.Dequeue()
}

// PeekNextTask returns the highest-weight task without removing it.
func (s *Service) PeekNextTask() *Task {
	return s.queue.Peek()
}

// GetTask returns a copy of the task with the given ID.
func (s *Service) GetTask(id string) (*Task, bool) {
	return s.queue.GetByID(id)
}

// GetAllTasks returns copies of all tasks sorted by weight descending.
func (s *Service) GetAllTasks() []*Task {
	return s.queue.GetAll()
}

// Size returns the number of queued tasks.
func (s *Service) Size() int {
	return s.queue.Size()
}

// IsEmpty returns true when no tasks are queued.
func (s *Service) IsEmpty() bool {
	return s.queue.IsEmpty()
}

// SetPriorityWeights replaces the base weight table. The table must cover
// every priority level with a positive weight; an invalid table is rejected
// and the prior configuration stays in effect. When the default calculator
// is active it is rebuilt on the new table, and all weights are recomputed
// immediately so the override is not limited to future inserts.
func (s *Service) SetPriorityWeights(weights Weights) error {
	if !weights.Valid() {
		return fmt.Errorf("%w: table must assign a positive weight to every level", ErrInvalidWeights)
	}
	s.weights = weights.clone()
	if !s.custom {
		s.calc = NewDefaultCalculator(s.weights)
	}
	s.recomputeAll()
	return nil
}

// SetCalculator replaces the weight calculator and recomputes all weights
// immediately. Passing nil is rejected and restores nothing.
func (s *Service) SetCalculator(calc Calculator) error {
	if calc == nil {
		return ErrNilCalculator
	}
	s.calc = calc
	s.custom = true
	s.recomputeAll()
	return nil
}

// ResetCalculator restores the default calculator over the current weight
// table and recomputes all weights.
func (s *Service) ResetCalculator() {
	s.calc = NewDefaultCalculator(s.weights)
	s.custom = false
	s.recomputeAll()
}

// computeWeight runs the calculator and enforces the floor of 1 even for
// caller-supplied calculators.
func (s *Service) computeWeight(task *Task) float64 {
	w := s.calc(task, s.ctx, s.now())
	if w < minWeight {
		w = minWeight
	}
	return w
}

// recomputeOne refreshes a single task's weight.
func (s *Service) recomputeOne(id string) error {
	task, ok := s.queue.GetByID(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	return s.queue.SetWeight(id, s.computeWeight(task))
}

// recomputeAll refreshes every task's weight in one pass.
func (s *Service) recomputeAll() {
	now := s.now()
	s.queue.Each(func(task *Task) {
		w := s.calc(task, s.ctx, now)
		if w < minWeight {
			w = minWeight
		}
		task.Weight = w
	})
}

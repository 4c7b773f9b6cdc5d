package scheduler

import (
	"errors"
	"testing"
	"time"
)

func pendingTask(id string, deps ...Dependency) *Task {
	return &Task{
		ID:           id,
		Status:       TaskPending,
		Dependencies: deps,
		InsertedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func hard(id string) Dependency {
	return Dependency{TaskID: id, Kind: DependencyHard}
}

func soft(id string) Dependency {
	return Dependency{TaskID: id, Kind: DependencySoft}
}

func TestDependencyQueueEnqueueDuplicate(t *testing.T) {
	q := NewDependencyQueue()

	if err := q.Enqueue(pendingTask("a")); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}
	err := q.Enqueue(pendingTask("a"))
	if !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("duplicate enqueue error = %v, want ErrDuplicateTask", err)
	}
}

func TestDependencyQueueUnknownID(t *testing.T) {
	q := NewDependencyQueue()

	if err := q.Remove("ghost"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Remove error = %v, want ErrTaskNotFound", err)
	}
	if err := q.Update("ghost", Patch{}); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Update error = %v, want ErrTaskNotFound", err)
	}
	if err := q.UpdateTaskStatus("ghost", TaskRunning, nil); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("UpdateTaskStatus error = %v, want ErrTaskNotFound", err)
	}
}

func TestDependencyQueueBlocking(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(q *DependencyQueue)
		id      string
		blocked bool
	}{
		{
			name: "no dependencies",
			setup: func(q *DependencyQueue) {
				q.Enqueue(pendingTask("a"))
			},
			id:      "a",
			blocked: false,
		},
		{
			name: "hard dependency without result",
			setup: func(q *DependencyQueue) {
				q.Enqueue(pendingTask("a"))
				q.Enqueue(pendingTask("b", hard("a")))
			},
			id:      "b",
			blocked: true,
		},
		{
			name: "hard dependency completed",
			setup: func(q *DependencyQueue) {
				q.Enqueue(pendingTask("a"))
				q.Enqueue(pendingTask("b", hard("a")))
				q.UpdateTaskStatus("a", TaskCompleted, "done")
			},
			id:      "b",
			blocked: false,
		},
		{
			name: "soft dependency never blocks",
			setup: func(q *DependencyQueue) {
				q.Enqueue(pendingTask("a"))
				q.Enqueue(pendingTask("b", soft("a")))
			},
			id:      "b",
			blocked: false,
		},
		{
			name: "dangling hard dependency blocks",
			setup: func(q *DependencyQueue) {
				q.Enqueue(pendingTask("b", hard("never-enqueued")))
			},
			id:      "b",
			blocked: true,
		},
		{
			name: "failed dependency keeps dependent blocked",
			setup: func(q *DependencyQueue) {
				q.Enqueue(pendingTask("a"))
				q.Enqueue(pendingTask("b", hard("a")))
				q.UpdateTaskStatus("a", TaskFailed, nil)
			},
			id:      "b",
			blocked: true,
		},
		{
			name: "canceled dependency keeps dependent blocked",
			setup: func(q *DependencyQueue) {
				q.Enqueue(pendingTask("a"))
				q.Enqueue(pendingTask("b", hard("a")))
				q.UpdateTaskStatus("a", TaskCanceled, nil)
			},
			id:      "b",
			blocked: true,
		},
		{
			name: "condition rejects recorded result",
			setup: func(q *DependencyQueue) {
				q.Enqueue(pendingTask("a"))
				q.Enqueue(pendingTask("b", Dependency{
					TaskID: "a",
					Kind:   DependencyHard,
					Condition: func(result any) bool {
						s, ok := result.(string)
						return ok && s == "approved"
					},
				}))
				q.UpdateTaskStatus("a", TaskCompleted, "rejected")
			},
			id:      "b",
			blocked: true,
		},
		{
			name: "condition accepts recorded result",
			setup: func(q *DependencyQueue) {
				q.Enqueue(pendingTask("a"))
				q.Enqueue(pendingTask("b", Dependency{
					TaskID: "a",
					Kind:   DependencyHard,
					Condition: func(result any) bool {
						s, ok := result.(string)
						return ok && s == "approved"
					},
				}))
				q.UpdateTaskStatus("a", TaskCompleted, "approved")
			},
			id:      "b",
			blocked: false,
		},
		{
			name: "condition may accept a failure result",
			setup: func(q *DependencyQueue) {
				q.Enqueue(pendingTask("a"))
				q.Enqueue(pendingTask("b", Dependency{
					TaskID:    "a",
					Kind:      DependencyHard,
					Condition: func(result any) bool { return result == nil },
				}))
				q.UpdateTaskStatus("a", TaskFailed, nil)
			},
			id:      "b",
			blocked: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewDependencyQueue()
			tt.setup(q)

			if got := q.IsBlocked(tt.id); got != tt.blocked {
				t.Errorf("IsBlocked(%q) = %v, want %v", tt.id, got, tt.blocked)
			}
			if got := q.IsReadyToExecute(tt.id); got != !tt.blocked {
				t.Errorf("IsReadyToExecute(%q) = %v, want %v", tt.id, got, !tt.blocked)
			}
		})
	}
}

func TestDependencyQueueDequeueScenario(t *testing.T) {
	// B critically depends on A: dequeue must surface A first, skip B while
	// A's result is unrecorded, and release B after A completes.
	q := NewDependencyQueue()
	q.Enqueue(pendingTask("A"))
	q.Enqueue(pendingTask("B", hard("A")))

	first := q.Dequeue()
	if first == nil || first.ID != "A" {
		t.Fatalf("first dequeue = %v, want task A", first)
	}

	if got := q.Peek(); got != nil {
		t.Fatalf("peek before A completes = %v, want nil (B is blocked)", got)
	}
	if got := q.Dequeue(); got != nil {
		t.Fatalf("dequeue before A completes = %v, want nil", got)
	}

	if err := q.UpdateTaskStatus("A", TaskCompleted, map[string]any{}); err != nil {
		t.Fatalf("recording A's result failed: %v", err)
	}

	second := q.Dequeue()
	if second == nil || second.ID != "B" {
		t.Fatalf("dequeue after A completes = %v, want task B", second)
	}
	if !q.IsEmpty() {
		t.Errorf("queue should be empty, has %d tasks", q.Size())
	}
}

func TestDependencyQueueDequeueSkipsNonPending(t *testing.T) {
	q := NewDependencyQueue()
	q.Enqueue(pendingTask("a"))
	q.Enqueue(pendingTask("b"))
	q.UpdateTaskStatus("a", TaskRunning, nil)

	got := q.Dequeue()
	if got == nil || got.ID != "b" {
		t.Fatalf("dequeue = %v, want task b (a is running)", got)
	}
}

func TestDependencyQueueOptimizeExecutionOrder(t *testing.T) {
	q := NewDependencyQueue()
	q.Enqueue(pendingTask("c", hard("b")))
	q.Enqueue(pendingTask("b", hard("a")))
	q.Enqueue(pendingTask("a"))

	order := q.OptimizeExecutionOrder()
	if len(order) != 3 {
		t.Fatalf("order has %d tasks, want 3", len(order))
	}
	ids := []string{order[0].ID, order[1].ID, order[2].ID}
	if !equalStrings(ids, []string{"a", "b", "c"}) {
		t.Errorf("order = %v, want [a b c]", ids)
	}
}

func TestDependencyQueueCycleNeverDeadlocks(t *testing.T) {
	q := NewDependencyQueue()
	q.Enqueue(pendingTask("a", hard("c")))
	q.Enqueue(pendingTask("b", hard("a")))
	q.Enqueue(pendingTask("c", hard("b")))

	order := q.OptimizeExecutionOrder()
	if len(order) != 3 {
		t.Fatalf("cycle order has %d tasks, want all 3 exactly once", len(order))
	}
	seen := map[string]bool{}
	for _, task := range order {
		if seen[task.ID] {
			t.Fatalf("task %q appears twice in cycle order", task.ID)
		}
		seen[task.ID] = true
	}

	// Every task in the cycle is hard-blocked; dequeue must return nil
	// rather than hang or error.
	if got := q.Dequeue(); got != nil {
		t.Errorf("dequeue on fully cyclic queue = %v, want nil", got)
	}
}

func TestDependencyQueueOrderInvalidation(t *testing.T) {
	q := NewDependencyQueue()
	q.Enqueue(pendingTask("a"))
	q.Enqueue(pendingTask("b", hard("a")))

	// Prime the cached order.
	_ = q.OptimizeExecutionOrder()

	// A structural update must invalidate it: flip the dependency around.
	if err := q.Update("b", Patch{Dependencies: []Dependency{}}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := q.Update("a", Patch{Dependencies: []Dependency{hard("b")}}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	order := q.OptimizeExecutionOrder()
	ids := []string{order[0].ID, order[1].ID}
	if !equalStrings(ids, []string{"b", "a"}) {
		t.Errorf("order after dependency rewrite = %v, want [b a]", ids)
	}
}

func TestDependencyQueueRemoveLeavesDanglingDependents(t *testing.T) {
	q := NewDependencyQueue()
	q.Enqueue(pendingTask("a"))
	q.Enqueue(pendingTask("b", hard("a")))

	if err := q.Remove("a"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	// b's dependency now dangles: no result can ever be recorded by "a"
	// unless a task with that ID is processed, so b stays blocked.
	if !q.IsBlocked("b") {
		t.Error("b should stay blocked on removed dependency")
	}
	if got := q.Dequeue(); got != nil {
		t.Errorf("dequeue = %v, want nil", got)
	}
}

func TestDependencyQueueResultSurvivesDequeue(t *testing.T) {
	// The normal engine flow: dequeue a task, execute it, then report the
	// outcome. The result must still unblock dependents.
	q := NewDependencyQueue()
	q.Enqueue(pendingTask("a"))
	q.Enqueue(pendingTask("b", hard("a")))

	got := q.Dequeue()
	if got == nil || got.ID != "a" {
		t.Fatalf("dequeue = %v, want a", got)
	}

	if err := q.UpdateTaskStatus("a", TaskCompleted, 42); err != nil {
		t.Fatalf("status update after dequeue failed: %v", err)
	}

	result, ok := q.Result("a")
	if !ok || result != 42 {
		t.Errorf("Result(a) = %v, %v; want 42, true", result, ok)
	}
	if q.IsBlocked("b") {
		t.Error("b should be unblocked by a's recorded result")
	}
}

func TestDependencyQueueDependentsAndDependencies(t *testing.T) {
	q := NewDependencyQueue()
	q.Enqueue(pendingTask("a"))
	q.Enqueue(pendingTask("b", hard("a")))
	q.Enqueue(pendingTask("c", hard("a"), soft("b")))

	if got := q.GetDependents("a"); !equalStrings(got, []string{"b", "c"}) {
		t.Errorf("GetDependents(a) = %v, want [b c]", got)
	}
	if got := q.GetDependencies("c"); !equalStrings(got, []string{"a", "b"}) {
		t.Errorf("GetDependencies(c) = %v, want [a b]", got)
	}
}

func TestDependencyQueueSnapshotIsolation(t *testing.T) {
	q := NewDependencyQueue()
	q.Enqueue(pendingTask("a"))

	snap, _ := q.GetByID("a")
	snap.Status = TaskFailed
	snap.Dependencies = append(snap.Dependencies, hard("x"))

	fresh, _ := q.GetByID("a")
	if fresh.Status != TaskPending {
		t.Error("mutating a returned task leaked into the queue")
	}
	if len(fresh.Dependencies) != 0 {
		t.Error("mutating a returned dependency slice leaked into the queue")
	}
}

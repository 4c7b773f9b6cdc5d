package scheduler

import (
	"errors"
	"testing"
	"time"
)

func weighted(id string, weight float64, insertedAt time.Time) *Task {
	return &Task{
		ID:         id,
		Status:     TaskPending,
		Weight:     weight,
		InsertedAt: insertedAt,
	}
}

func TestPriorityQueueOrdering(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	q := NewPriorityQueue()
	q.Enqueue(weighted("low", 10, base))
	q.Enqueue(weighted("high", 90, base.Add(time.Second)))
	q.Enqueue(weighted("mid", 50, base.Add(2*time.Second)))

	want := []string{"high", "mid", "low"}
	for _, id := range want {
		got := q.Dequeue()
		if got == nil || got.ID != id {
			t.Fatalf("dequeue = %v, want %q", got, id)
		}
	}
	if got := q.Dequeue(); got != nil {
		t.Errorf("dequeue on empty queue = %v, want nil", got)
	}
}

func TestPriorityQueueTieBreak(t *testing.T) {
	// C and D tie on weight; C was inserted earlier and must win. E trails.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	q := NewPriorityQueue()
	q.Enqueue(weighted("C", 100, base))
	q.Enqueue(weighted("D", 100, base.Add(time.Millisecond)))
	q.Enqueue(weighted("E", 50, base.Add(2*time.Millisecond)))

	all := q.GetAll()
	ids := []string{all[0].ID, all[1].ID, all[2].ID}
	if !equalStrings(ids, []string{"C", "D", "E"}) {
		t.Errorf("GetAll order = %v, want [C D E]", ids)
	}

	if got := q.Dequeue(); got.ID != "C" {
		t.Errorf("first dequeue = %q, want C", got.ID)
	}
	if got := q.Dequeue(); got.ID != "D" {
		t.Errorf("second dequeue = %q, want D", got.ID)
	}
}

func TestPriorityQueueLazyResort(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	q := NewPriorityQueue()
	q.Enqueue(weighted("a", 10, base))
	q.Enqueue(weighted("b", 20, base))

	if got := q.Peek(); got.ID != "b" {
		t.Fatalf("peek = %q, want b", got.ID)
	}

	// Mutating a weight after the index was built must dirty it so the next
	// read resorts.
	if err := q.SetWeight("a", 30); err != nil {
		t.Fatalf("SetWeight failed: %v", err)
	}
	if got := q.Peek(); got.ID != "a" {
		t.Errorf("peek after reweight = %q, want a", got.ID)
	}
}

func TestPriorityQueueUpdateUnknown(t *testing.T) {
	q := NewPriorityQueue()

	if err := q.Update("ghost", Patch{}); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Update error = %v, want ErrTaskNotFound", err)
	}
	if err := q.Remove("ghost"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Remove error = %v, want ErrTaskNotFound", err)
	}
	if err := q.SetWeight("ghost", 1); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("SetWeight error = %v, want ErrTaskNotFound", err)
	}
}

func TestPriorityQueueRemoveThenDequeue(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	q := NewPriorityQueue()
	q.Enqueue(weighted("a", 10, base))
	q.Enqueue(weighted("b", 20, base))

	if err := q.Remove("b"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if got := q.Dequeue(); got == nil || got.ID != "a" {
		t.Fatalf("dequeue = %v, want a", got)
	}
	if !q.IsEmpty() {
		t.Error("queue should be empty")
	}
}

func TestPriorityQueueEachMarksDirty(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	q := NewPriorityQueue()
	q.Enqueue(weighted("a", 10, base))
	q.Enqueue(weighted("b", 20, base))
	_ = q.Peek() // build the index

	q.Each(func(task *Task) {
		if task.ID == "a" {
			task.Weight = 100
		}
	})

	if got := q.Peek(); got.ID != "a" {
		t.Errorf("peek after Each reweight = %q, want a", got.ID)
	}
}

func TestPriorityQueueDuplicate(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	q := NewPriorityQueue()
	if err := q.Enqueue(weighted("a", 10, base)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := q.Enqueue(weighted("a", 20, base)); !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("duplicate enqueue error = %v, want ErrDuplicateTask", err)
	}
}

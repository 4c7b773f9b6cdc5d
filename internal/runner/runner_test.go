package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sorvik/scheduler/internal/config"
	"github.com/sorvik/scheduler/internal/events"
	"github.com/sorvik/scheduler/internal/scheduler"
)

func newTestRunner(t *testing.T, cfg Config) (*Runner, *scheduler.Engine) {
	t.Helper()
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = fastRetryConfig()
	}
	engine := scheduler.NewEngine()
	return New(cfg, engine, nil), engine
}

// orderRecorder registers handlers that record execution order.
type orderRecorder struct {
	mu    sync.Mutex
	order []string
}

func (o *orderRecorder) handler() Handler {
	return HandlerFunc(func(ctx context.Context, task *scheduler.Task) (any, error) {
		o.mu.Lock()
		o.order = append(o.order, task.ID)
		o.mu.Unlock()
		return task.ID + "-done", nil
	})
}

func (o *orderRecorder) recorded() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.order...)
}

func TestRunnerExecutesDependencyOrder(t *testing.T) {
	r, engine := newTestRunner(t, Config{Concurrency: 4})
	rec := &orderRecorder{}
	r.Register("work", rec.handler())

	submit := func(id string, deps ...string) {
		task := &scheduler.Task{ID: id, Name: id, Kind: "work"}
		for _, dep := range deps {
			task.Dependencies = append(task.Dependencies, scheduler.Dependency{
				TaskID: dep, Kind: scheduler.DependencyHard,
			})
		}
		if _, err := r.Submit(task); err != nil {
			t.Fatalf("submitting %q: %v", id, err)
		}
	}
	submit("a")
	submit("b", "a")
	submit("c", "b")

	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, res := range results {
		if !res.Success {
			t.Errorf("task %q failed: %v", res.TaskID, res.Err)
		}
	}

	order := rec.recorded()
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("execution order = %v, want [a b c]", order)
	}
	if !engine.IsEmpty() {
		t.Errorf("engine should be drained, %d tasks remain", engine.Size())
	}
}

func TestRunnerFailureLeavesDependentBlocked(t *testing.T) {
	r, engine := newTestRunner(t, Config{Concurrency: 2})
	r.Register("flaky", HandlerFunc(func(ctx context.Context, task *scheduler.Task) (any, error) {
		return nil, fmt.Errorf("boom")
	}))
	r.Register("work", HandlerFunc(func(ctx context.Context, task *scheduler.Task) (any, error) {
		return "ok", nil
	}))

	if _, err := r.Submit(&scheduler.Task{ID: "a", Kind: "flaky"}); err != nil {
		t.Fatalf("submit a: %v", err)
	}
	if _, err := r.Submit(&scheduler.Task{
		ID:   "b",
		Kind: "work",
		Dependencies: []scheduler.Dependency{
			{TaskID: "a", Kind: scheduler.DependencyHard},
		},
	}); err != nil {
		t.Fatalf("submit b: %v", err)
	}

	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (only the failed task ran)", len(results))
	}
	if results[0].TaskID != "a" || results[0].Success {
		t.Errorf("result = %+v, want failed task a", results[0])
	}

	// b stays queued and blocked: its hard dependency never completed
	if engine.Size() != 1 {
		t.Fatalf("engine size = %d, want 1", engine.Size())
	}
	if !engine.IsBlocked("b") {
		t.Error("b should remain blocked after a failed")
	}
}

func TestRunnerNoHandlerFailsTask(t *testing.T) {
	r, _ := newTestRunner(t, Config{Concurrency: 1})

	if _, err := r.Submit(&scheduler.Task{ID: "a", Kind: "unknown"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 1 || results[0].Success {
		t.Fatalf("results = %+v, want one failure", results)
	}
	if results[0].Err == nil {
		t.Error("missing handler should surface an error")
	}
}

func TestRunnerConcurrencyLimit(t *testing.T) {
	r, _ := newTestRunner(t, Config{Concurrency: 1})

	var active, maxActive atomic.Int32
	r.Register("work", HandlerFunc(func(ctx context.Context, task *scheduler.Task) (any, error) {
		n := active.Add(1)
		if m := maxActive.Load(); n > m {
			maxActive.Store(n)
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return nil, nil
	}))

	for i := 0; i < 4; i++ {
		if _, err := r.Submit(&scheduler.Task{ID: fmt.Sprintf("t%d", i), Kind: "work"}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if maxActive.Load() > 1 {
		t.Errorf("max concurrent executions = %d, want 1", maxActive.Load())
	}
}

func TestRunnerSharedResourceSerializes(t *testing.T) {
	r, _ := newTestRunner(t, Config{Concurrency: 4})

	var active, maxActive atomic.Int32
	r.Register("work", HandlerFunc(func(ctx context.Context, task *scheduler.Task) (any, error) {
		n := active.Add(1)
		if m := maxActive.Load(); n > m {
			maxActive.Store(n)
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return nil, nil
	}))

	for i := 0; i < 4; i++ {
		if _, err := r.Submit(&scheduler.Task{
			ID:        fmt.Sprintf("t%d", i),
			Kind:      "work",
			Resources: []string{"db"},
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if maxActive.Load() > 1 {
		t.Errorf("tasks sharing a resource ran %d-way concurrent", maxActive.Load())
	}
}

func TestRunnerContextCanceled(t *testing.T) {
	r, engine := newTestRunner(t, Config{Concurrency: 1})
	r.Register("work", HandlerFunc(func(ctx context.Context, task *scheduler.Task) (any, error) {
		return nil, nil
	}))

	if _, err := r.Submit(&scheduler.Task{ID: "a", Kind: "work"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	// Task was never drained
	if engine.Size() != 1 {
		t.Errorf("engine size = %d, want 1", engine.Size())
	}
}

func TestRunnerChainsEndToEnd(t *testing.T) {
	chains := map[string]config.ChainConfig{
		"pipeline": {Steps: []config.ChainStepConfig{{Kind: "build"}, {Kind: "test"}}},
	}
	r, engine := newTestRunner(t, Config{Concurrency: 2, Chains: chains})
	rec := &orderRecorder{}
	r.Register("build", rec.handler())
	r.Register("test", rec.handler())

	if _, err := r.Submit(&scheduler.Task{ID: "job", Name: "job", Kind: "build"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (build + spawned test)", len(results))
	}
	order := rec.recorded()
	if len(order) != 2 || order[0] != "job" || order[1] != "job-test" {
		t.Errorf("execution order = %v, want [job job-test]", order)
	}
	if !engine.IsEmpty() {
		t.Errorf("engine should be drained, %d tasks remain", engine.Size())
	}
}

func TestRunnerPublishesEvents(t *testing.T) {
	bus := events.NewBus()
	engine := scheduler.NewEngine()
	r := New(Config{Concurrency: 1, Retry: fastRetryConfig()}, engine, bus)
	r.Register("work", HandlerFunc(func(ctx context.Context, task *scheduler.Task) (any, error) {
		return "done", nil
	}))

	sub := bus.SubscribeAll(64)

	if _, err := r.Submit(&scheduler.Task{ID: "a", Name: "a", Kind: "work"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	r.UpdateContext(scheduler.ContextPatch{})

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	bus.Close()

	seen := map[string]bool{}
	for event := range sub.C {
		seen[event.EventType()] = true
	}

	for _, want := range []string{
		events.EventTypeTaskScheduled,
		events.EventTypeContextUpdated,
		events.EventTypeTaskStarted,
		events.EventTypeTaskCompleted,
		events.EventTypeQueueProgress,
	} {
		if !seen[want] {
			t.Errorf("event %q was not published", want)
		}
	}
}

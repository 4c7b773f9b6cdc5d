package runner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sorvik/scheduler/internal/config"
	"github.com/sorvik/scheduler/internal/events"
	"github.com/sorvik/scheduler/internal/scheduler"
)

// Handler executes tasks of one kind. Implementations must be safe for
// concurrent use; the runner may run several tasks of the same kind at once.
type Handler interface {
	Run(ctx context.Context, task *scheduler.Task) (any, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, task *scheduler.Task) (any, error)

func (f HandlerFunc) Run(ctx context.Context, task *scheduler.Task) (any, error) {
	return f(ctx, task)
}

// TaskResult records the outcome of one task execution.
type TaskResult struct {
	TaskID   string
	Kind     string
	Success  bool
	Value    any
	Err      error
	Duration time.Duration
}

// Config configures the runner.
type Config struct {
	Concurrency int                           // Max concurrent tasks (default 4)
	Retry       RetryConfig                   // Backoff policy for failed executions
	Chains      map[string]config.ChainConfig // Follow-up chains keyed by chain name
}

// ConfigFrom builds a runner config from the loaded application config.
func ConfigFrom(cfg *config.SchedulerConfig) Config {
	return Config{
		Concurrency: cfg.Runner.Concurrency,
		Retry:       retryConfigFrom(cfg.Runner.Retry),
		Chains:      cfg.Chains,
	}
}

// Runner drains ready tasks from the scheduler engine and executes them with
// bounded concurrency. It runs in waves: all currently ready tasks are
// dispatched together, and when the wave finishes, completions recorded in the
// engine may have unblocked the next wave.
type Runner struct {
	config   Config
	engine   *scheduler.Engine
	bus      *events.Bus
	handlers map[string]Handler
	breakers *BreakerRegistry
	locks    *ResourceLocks
	chains   *ChainRunner

	mu        sync.Mutex
	running   int
	completed int
	failed    int
	canceled  int
	results   []TaskResult
}

// New creates a runner over the given engine. The bus may be nil, in which
// case no events are published.
func New(cfg Config, engine *scheduler.Engine, bus *events.Bus) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}

	r := &Runner{
		config:   cfg,
		engine:   engine,
		bus:      bus,
		handlers: make(map[string]Handler),
		breakers: NewBreakerRegistry(),
		locks:    NewResourceLocks(),
		results:  []TaskResult{},
	}
	if len(cfg.Chains) > 0 {
		r.chains = NewChainRunner(engine, cfg.Chains)
	}
	return r
}

// Register installs the handler for a task kind, replacing any previous one.
func (r *Runner) Register(kind string, h Handler) {
	r.handlers[kind] = h
}

// Submit adds a task to the engine and announces it on the bus.
func (r *Runner) Submit(task *scheduler.Task) (string, error) {
	id, err := r.engine.Submit(task)
	if err != nil {
		return "", err
	}
	r.publishScheduled(task)
	return id, nil
}

// UpdateContext merges scheduling signals into the engine and announces the
// resulting context.
func (r *Runner) UpdateContext(patch scheduler.ContextPatch) {
	r.engine.UpdateContext(patch)
	r.publish(events.TopicContext, events.ContextUpdatedEvent{
		Context:   r.engine.GetContext(),
		Timestamp: time.Now(),
	})
}

// Run executes tasks until the engine has nothing left to offer or the
// context is canceled. Returns all recorded results. Tasks that remain
// blocked when no execution can unblock them are left in the engine.
func (r *Runner) Run(ctx context.Context) ([]TaskResult, error) {
	for {
		if err := ctx.Err(); err != nil {
			return r.Results(), err
		}

		wave := r.drainReady()
		if len(wave) == 0 {
			// Nothing ready and nothing running: either the engine is empty
			// or every remaining task is permanently blocked.
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.config.Concurrency)
		for _, task := range wave {
			t := task
			g.Go(func() error {
				r.executeTask(gctx, t)
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return r.Results(), err
		}
		r.publishProgress()
	}

	if n := r.engine.Size(); n > 0 {
		log.Printf("WARNING: %d tasks remain blocked with no runnable dependency", n)
	}
	return r.Results(), nil
}

// Results returns a copy of all recorded results so far.
func (r *Runner) Results() []TaskResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TaskResult, len(r.results))
	copy(out, r.results)
	return out
}

// drainReady consumes every currently ready task from the engine, highest
// weight first.
func (r *Runner) drainReady() []*scheduler.Task {
	var wave []*scheduler.Task
	for {
		task := r.engine.Next()
		if task == nil {
			return wave
		}
		wave = append(wave, task)
	}
}

// executeTask runs one task through its handler with resource locks, retry,
// and circuit breaking, then reports the terminal status back to the engine.
func (r *Runner) executeTask(ctx context.Context, task *scheduler.Task) {
	if err := ctx.Err(); err != nil {
		_ = r.engine.UpdateTaskStatus(task.ID, scheduler.TaskCanceled, nil)
		r.publish(events.TopicTask, events.TaskCanceledEvent{
			ID:        task.ID,
			Reason:    "context canceled before execution",
			Timestamp: time.Now(),
		})
		r.record(TaskResult{TaskID: task.ID, Kind: task.Kind, Err: err}, scheduler.TaskCanceled)
		return
	}

	h, ok := r.handlers[task.Kind]
	if !ok {
		err := fmt.Errorf("no handler registered for kind %q", task.Kind)
		r.fail(task, err, 0)
		return
	}

	task.Status = scheduler.TaskRunning
	r.setRunning(+1)
	defer r.setRunning(-1)

	r.publish(events.TopicTask, events.TaskStartedEvent{
		ID:        task.ID,
		Name:      task.Name,
		Kind:      task.Kind,
		Weight:    task.Weight,
		Timestamp: time.Now(),
	})

	// Per-resource mutual exclusion across concurrent tasks
	r.locks.AcquireAll(task.Resources)
	defer r.locks.ReleaseAll(task.Resources)

	start := time.Now()
	cb := r.breakers.Get(task.Kind)
	value, err := runWithRetry(ctx, h, task, cb, r.config.Retry, r.retryNotifier(task.ID))
	elapsed := time.Since(start)

	if err != nil {
		r.fail(task, err, elapsed)
		return
	}

	_ = r.engine.UpdateTaskStatus(task.ID, scheduler.TaskCompleted, value)
	r.publish(events.TopicTask, events.TaskCompletedEvent{
		ID:        task.ID,
		Result:    value,
		Duration:  elapsed,
		Timestamp: time.Now(),
	})
	r.record(TaskResult{
		TaskID:   task.ID,
		Kind:     task.Kind,
		Success:  true,
		Value:    value,
		Duration: elapsed,
	}, scheduler.TaskCompleted)

	if r.chains != nil {
		spawned, err := r.chains.OnTaskCompleted(task, value)
		if err != nil {
			log.Printf("WARNING: follow-up for task %q: %v", task.ID, err)
		}
		for _, follow := range spawned {
			r.publishScheduled(follow)
		}
	}
}

// fail records a permanent execution failure.
func (r *Runner) fail(task *scheduler.Task, err error, elapsed time.Duration) {
	_ = r.engine.UpdateTaskStatus(task.ID, scheduler.TaskFailed, nil)
	r.publish(events.TopicTask, events.TaskFailedEvent{
		ID:        task.ID,
		Err:       err,
		Duration:  elapsed,
		Timestamp: time.Now(),
	})
	r.record(TaskResult{
		TaskID:   task.ID,
		Kind:     task.Kind,
		Err:      err,
		Duration: elapsed,
	}, scheduler.TaskFailed)
}

// retryNotifier publishes a requeue event per retry attempt.
func (r *Runner) retryNotifier(taskID string) func(error, time.Duration) {
	attempt := 0
	return func(err error, next time.Duration) {
		attempt++
		r.publish(events.TopicTask, events.TaskRequeuedEvent{
			ID:        taskID,
			Attempt:   attempt,
			Timestamp: time.Now(),
		})
	}
}

func (r *Runner) record(result TaskResult, status scheduler.TaskStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	switch status {
	case scheduler.TaskCompleted:
		r.completed++
	case scheduler.TaskFailed:
		r.failed++
	case scheduler.TaskCanceled:
		r.canceled++
	}
}

func (r *Runner) setRunning(delta int) {
	r.mu.Lock()
	r.running += delta
	r.mu.Unlock()
}

func (r *Runner) publishProgress() {
	queued := r.engine.GetAllTasks()
	ready, blocked := 0, 0
	for _, task := range queued {
		if r.engine.IsBlocked(task.ID) {
			blocked++
		} else {
			ready++
		}
	}

	r.mu.Lock()
	event := events.QueueProgressEvent{
		Total:     len(queued) + r.completed + r.failed + r.canceled,
		Ready:     ready,
		Blocked:   blocked,
		Running:   r.running,
		Completed: r.completed,
		Failed:    r.failed,
		Canceled:  r.canceled,
		Timestamp: time.Now(),
	}
	r.mu.Unlock()

	r.publish(events.TopicQueue, event)
}

func (r *Runner) publishScheduled(task *scheduler.Task) {
	weight := task.Weight
	if queued, ok := r.engine.GetTask(task.ID); ok {
		weight = queued.Weight
	}
	r.publish(events.TopicTask, events.TaskScheduledEvent{
		ID:        task.ID,
		Name:      task.Name,
		Kind:      task.Kind,
		Weight:    weight,
		Timestamp: time.Now(),
	})
}

func (r *Runner) publish(topic string, event events.Event) {
	if r.bus != nil {
		r.bus.Publish(topic, event)
	}
}

package runner

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/sorvik/scheduler/internal/config"
	"github.com/sorvik/scheduler/internal/scheduler"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// retryConfigFrom converts the millisecond-based config section, filling
// defaults for unset fields.
func retryConfigFrom(cfg config.RetryConfig) RetryConfig {
	out := DefaultRetryConfig()
	if cfg.InitialIntervalMS > 0 {
		out.InitialInterval = time.Duration(cfg.InitialIntervalMS) * time.Millisecond
	}
	if cfg.MaxIntervalMS > 0 {
		out.MaxInterval = time.Duration(cfg.MaxIntervalMS) * time.Millisecond
	}
	if cfg.MaxElapsedMS > 0 {
		out.MaxElapsedTime = time.Duration(cfg.MaxElapsedMS) * time.Millisecond
	}
	if cfg.Multiplier > 0 {
		out.Multiplier = cfg.Multiplier
	}
	if cfg.RandomizationFactor > 0 {
		out.RandomizationFactor = cfg.RandomizationFactor
	}
	return out
}

// BreakerRegistry manages per-task-kind circuit breakers.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry creates a new circuit breaker registry.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for the given task kind.
// Creates a new one if it doesn't exist.
func (r *BreakerRegistry) Get(kind string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[kind]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        kind,
		MaxRequests: 3, // Allow 3 test requests in half-open state
		Interval:    0, // Don't clear counts automatically
		Timeout:     30 * time.Second, // Stay open for 30s before testing recovery
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip circuit after 5 consecutive failures
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Don't count cancellation as a handler failure
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	r.breakers[kind] = cb
	return cb
}

// runWithRetry runs the task through its handler with exponential backoff
// retry and circuit breaker protection. notify, if non-nil, is called before
// each retry attempt.
func runWithRetry(ctx context.Context, h Handler, task *scheduler.Task, cb *gobreaker.CircuitBreaker, retryCfg RetryConfig, notify backoff.Notify) (any, error) {
	var value any

	operation := func() error {
		// Check context first - fail fast if cancelled
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		// Execute through circuit breaker
		result, err := cb.Execute(func() (interface{}, error) {
			return h.Run(ctx, task)
		})

		if err != nil {
			// Circuit is open - don't retry
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}

			// Context cancelled - stop retrying
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}

			// Other errors will be retried
			return err
		}

		value = result
		return nil
	}

	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.InitialInterval = retryCfg.InitialInterval
	backoffPolicy.MaxInterval = retryCfg.MaxInterval
	backoffPolicy.MaxElapsedTime = retryCfg.MaxElapsedTime
	backoffPolicy.Multiplier = retryCfg.Multiplier
	backoffPolicy.RandomizationFactor = retryCfg.RandomizationFactor

	// Wrap with context to respect cancellation
	backoffWithContext := backoff.WithContext(backoffPolicy, ctx)

	if notify == nil {
		notify = func(error, time.Duration) {}
	}
	err := backoff.RetryNotify(operation, backoffWithContext, notify)
	return value, err
}

package config

// ContextConfig holds the initial scheduling context factors.
// All values are normalized to [0, 1].
type ContextConfig struct {
	Urgency         float64 `json:"urgency"`
	Importance      float64 `json:"importance"`
	UserExpectation float64 `json:"user_expectation"`
	SystemLoad      float64 `json:"system_load"`
}

// RetryConfig configures the exponential backoff retry policy used by the
// execution engine. Intervals are expressed in milliseconds so configs stay
// plain JSON numbers.
type RetryConfig struct {
	InitialIntervalMS   int     `json:"initial_interval_ms,omitempty"`
	MaxIntervalMS       int     `json:"max_interval_ms,omitempty"`
	MaxElapsedMS        int     `json:"max_elapsed_ms,omitempty"`
	Multiplier          float64 `json:"multiplier,omitempty"`
	RandomizationFactor float64 `json:"randomization_factor,omitempty"`
}

// RunnerConfig configures the execution engine.
type RunnerConfig struct {
	Concurrency int         `json:"concurrency,omitempty"` // Max concurrent tasks (default 4)
	Retry       RetryConfig `json:"retry,omitempty"`
}

// ChainStepConfig defines one step in a follow-up chain.
type ChainStepConfig struct {
	Kind string `json:"kind"` // Task kind handled by a registered handler
}

// ChainConfig defines a pipeline of task kinds: when a task whose kind matches
// a step completes, the next step is spawned as a dependent follow-up task.
type ChainConfig struct {
	Steps []ChainStepConfig `json:"steps"`
}

// SchedulerConfig is the top-level configuration.
type SchedulerConfig struct {
	Weights map[string]float64     `json:"weights"` // Priority level name -> base weight
	Context ContextConfig          `json:"context"`
	Runner  RunnerConfig           `json:"runner"`
	Chains  map[string]ChainConfig `json:"chains"`
}

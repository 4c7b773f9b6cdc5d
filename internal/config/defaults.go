package config

// DefaultConfig returns the default configuration with the built-in priority
// weights, a neutral scheduling context, and runner defaults.
func DefaultConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Weights: map[string]float64{
			"critical":   100,
			"high":       80,
			"medium":     60,
			"low":        40,
			"background": 20,
		},
		Context: ContextConfig{
			Urgency:         0.5,
			Importance:      0.5,
			UserExpectation: 0.5,
			SystemLoad:      0,
		},
		Runner: RunnerConfig{
			Concurrency: 4,
			Retry: RetryConfig{
				InitialIntervalMS:   100,
				MaxIntervalMS:       10_000,
				MaxElapsedMS:        120_000,
				Multiplier:          2.0,
				RandomizationFactor: 0.5,
			},
		},
		Chains: map[string]ChainConfig{},
	}
}

package scheduler

import "time"

// Calculator computes a task's priority weight from the task and the current
// scheduling context. Implementations must be pure: no mutation of the task,
// same inputs produce the same weight. The returned weight is always >= 1.
type Calculator func(task *Task, ctx Context, now time.Time) float64

// Weights maps priority levels to base weights for the default calculator.
type Weights map[PriorityLevel]float64

// DefaultWeights returns the standard base weight table.
func DefaultWeights() Weights {
	return Weights{
		PriorityCritical:   100,
		PriorityHigh:       80,
		PriorityMedium:     60,
		PriorityLow:        40,
		PriorityBackground: 20,
	}
}

// Valid reports whether the table covers every priority level with a
// positive weight.
func (w Weights) Valid() bool {
	levels := []PriorityLevel{
		PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, PriorityBackground,
	}
	for _, level := range levels {
		v, ok := w[level]
		if !ok || v <= 0 {
			return false
		}
	}
	return true
}

// clone returns a copy so later mutations of the argument don't leak in.
func (w Weights) clone() Weights {
	cp := make(Weights, len(w))
	for k, v := range w {
		cp[k] = v
	}
	return cp
}

// Tuning knobs for the default calculator. Boosts compound against the
// running weight, not the base, so their order of application matters.
const (
	criticalDeadlineBoost = 1.5
	urgencyBoostFactor    = 0.2
	importanceBoostFactor = 0.2
	expectationFactor     = 0.1
	loadPenaltyFactor     = 0.1
	dependencyPenalty     = 0.05
	resourcePenalty       = 0.02
	minWeight             = 1.0
)

// NewDefaultCalculator returns the default weighted-priority formula using
// the given base weight table.
//
// The formula starts from the base weight for the task's priority level and
// applies, in order: deadline urgency boost, context urgency/importance/
// user-expectation boosts, system load penalty (skipped for critical tasks),
// dependency count penalty, resource count penalty, and finally a floor of 1.
// Each step scales the running total, so earlier boosts amplify later ones.
func NewDefaultCalculator(weights Weights) Calculator {
	weights = weights.clone()

	return func(task *Task, ctx Context, now time.Time) float64 {
		weight := weights[task.Priority]

		// Deadline urgency: how much of the remaining time the task's
		// estimated duration would consume, dampened by flexibility.
		if task.Deadline != nil {
			due := task.Deadline.Resolve(now)
			remaining := float64(due.Sub(now).Milliseconds())
			if remaining < 1 {
				remaining = 1
			}
			urgency := clamp01(float64(task.EstimatedDuration.Milliseconds()) / remaining)
			boost := 1.0
			if task.Deadline.Critical {
				boost = criticalDeadlineBoost
			}
			weight += weight * urgency * boost * (1 - task.Deadline.Flexibility)
		}

		// Context boosts compound against the running total.
		weight += weight * urgencyBoostFactor * ctx.Urgency
		weight += weight * importanceBoostFactor * ctx.Importance
		weight += weight * expectationFactor * ctx.UserExpectation

		// Load penalty: critical tasks are exempt so they keep their rank
		// under pressure.
		if task.Priority != PriorityCritical {
			weight -= weight * loadPenaltyFactor * ctx.SystemLoad
		}

		weight -= weight * dependencyPenalty * float64(len(task.Dependencies))
		weight -= weight * resourcePenalty * float64(len(task.Resources))

		if weight < minWeight {
			weight = minWeight
		}
		return weight
	}
}

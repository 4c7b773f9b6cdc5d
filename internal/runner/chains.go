package runner

import (
	"fmt"

	"github.com/sorvik/scheduler/internal/config"
	"github.com/sorvik/scheduler/internal/scheduler"
)

// ChainRunner spawns follow-up tasks based on chain configuration. When a
// task completes, it checks whether the task's kind is a step in any
// configured chain, and if so, submits the next step's task to the engine
// with a hard dependency on the completed task.
type ChainRunner struct {
	engine *scheduler.Engine
	chains map[string]config.ChainConfig // chain name -> config
}

// NewChainRunner creates a ChainRunner.
func NewChainRunner(engine *scheduler.Engine, chains map[string]config.ChainConfig) *ChainRunner {
	return &ChainRunner{
		engine: engine,
		chains: chains,
	}
}

// OnTaskCompleted is the hook called after a task completes successfully.
// It finds which chain(s) the completed task's kind participates in and
// submits follow-up tasks for the next step(s). The follow-up inherits the
// completed task's priority and resources and carries its result as payload.
// Because the completed task's result is already recorded, the hard
// dependency is immediately satisfied.
func (c *ChainRunner) OnTaskCompleted(completed *scheduler.Task, result any) ([]*scheduler.Task, error) {
	var spawned []*scheduler.Task

	for chainName, chain := range c.chains {
		stepIndex := findStepIndex(chain, completed.Kind)
		if stepIndex == -1 {
			// This chain doesn't contain the completed task's kind
			continue
		}
		if stepIndex >= len(chain.Steps)-1 {
			// Last step in the chain, no follow-up needed
			continue
		}

		nextKind := chain.Steps[stepIndex+1].Kind
		follow := &scheduler.Task{
			ID:       fmt.Sprintf("%s-%s", completed.ID, nextKind),
			Name:     fmt.Sprintf("Follow-up: %s after %s", nextKind, completed.Name),
			Kind:     nextKind,
			Priority: completed.Priority,
			Dependencies: []scheduler.Dependency{
				{TaskID: completed.ID, Kind: scheduler.DependencyHard},
			},
			Resources: append([]string(nil), completed.Resources...),
			Payload:   result,
		}

		if _, err := c.engine.Submit(follow); err != nil {
			return spawned, fmt.Errorf("submitting follow-up for chain %q: %w", chainName, err)
		}
		spawned = append(spawned, follow)
	}

	return spawned, nil
}

// findStepIndex finds the index of a step with the given kind in a chain.
// Returns -1 if not found.
func findStepIndex(chain config.ChainConfig, kind string) int {
	for i, step := range chain.Steps {
		if step.Kind == kind {
			return i
		}
	}
	return -1
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sorvik/scheduler/internal/scheduler"
)

// DependencySpec declares a dependency edge in a workload file.
// Kind is "hard" (default) or "soft".
type DependencySpec struct {
	TaskID string `json:"task_id"`
	Kind   string `json:"kind,omitempty"`
}

// DeadlineSpec declares a deadline in a workload file. Exactly one of At
// (RFC 3339) or InMS (relative, milliseconds) should be set.
type DeadlineSpec struct {
	At          string  `json:"at,omitempty"`
	InMS        int     `json:"in_ms,omitempty"`
	Critical    bool    `json:"critical,omitempty"`
	Flexibility float64 `json:"flexibility,omitempty"`
}

// TaskSpec declares one task in a workload file.
type TaskSpec struct {
	ID          string           `json:"id,omitempty"`
	Name        string           `json:"name"`
	Kind        string           `json:"kind"`
	Priority    string           `json:"priority,omitempty"` // "background".."critical", default "medium"
	DependsOn   []DependencySpec `json:"depends_on,omitempty"`
	Resources   []string         `json:"resources,omitempty"`
	Deadline    *DeadlineSpec    `json:"deadline,omitempty"`
	EstimatedMS int              `json:"estimated_ms,omitempty"`
	Payload     json.RawMessage  `json:"payload,omitempty"`
}

// Workload is a batch of tasks to submit on startup.
type Workload struct {
	Tasks []TaskSpec `json:"tasks"`
}

// LoadWorkload reads a workload file and converts it to scheduler tasks,
// preserving file order.
func LoadWorkload(path string) ([]*scheduler.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload %s: %w", path, err)
	}

	var wl Workload
	if err := json.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("parsing workload %s: %w", path, err)
	}

	tasks := make([]*scheduler.Task, 0, len(wl.Tasks))
	for i, spec := range wl.Tasks {
		task, err := spec.Task()
		if err != nil {
			return nil, fmt.Errorf("workload %s task %d: %w", path, i, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Task converts the spec into a scheduler task.
func (s TaskSpec) Task() (*scheduler.Task, error) {
	priority, err := ParsePriority(s.Priority)
	if err != nil {
		return nil, err
	}

	task := &scheduler.Task{
		ID:                s.ID,
		Name:              s.Name,
		Kind:              s.Kind,
		Priority:          priority,
		Resources:         append([]string(nil), s.Resources...),
		EstimatedDuration: time.Duration(s.EstimatedMS) * time.Millisecond,
	}
	if len(s.Payload) > 0 {
		task.Payload = s.Payload
	}

	for _, dep := range s.DependsOn {
		kind := scheduler.DependencyHard
		switch dep.Kind {
		case "", "hard":
		case "soft":
			kind = scheduler.DependencySoft
		default:
			return nil, fmt.Errorf("unknown dependency kind %q", dep.Kind)
		}
		task.Dependencies = append(task.Dependencies, scheduler.Dependency{
			TaskID: dep.TaskID,
			Kind:   kind,
		})
	}

	if s.Deadline != nil {
		dl := &scheduler.Deadline{
			Critical:    s.Deadline.Critical,
			Flexibility: s.Deadline.Flexibility,
		}
		switch {
		case s.Deadline.At != "":
			at, err := time.Parse(time.RFC3339, s.Deadline.At)
			if err != nil {
				return nil, fmt.Errorf("parsing deadline %q: %w", s.Deadline.At, err)
			}
			dl.Kind = scheduler.DeadlineAbsolute
			dl.At = at
		case s.Deadline.InMS > 0:
			dl.Kind = scheduler.DeadlineRelative
			dl.In = time.Duration(s.Deadline.InMS) * time.Millisecond
		default:
			return nil, fmt.Errorf("deadline needs either at or in_ms")
		}
		task.Deadline = dl
	}

	return task, nil
}

// ParsePriority maps a priority name to its level. Empty means medium.
func ParsePriority(name string) (scheduler.PriorityLevel, error) {
	switch name {
	case "", "medium":
		return scheduler.PriorityMedium, nil
	case "background":
		return scheduler.PriorityBackground, nil
	case "low":
		return scheduler.PriorityLow, nil
	case "high":
		return scheduler.PriorityHigh, nil
	case "critical":
		return scheduler.PriorityCritical, nil
	}
	return 0, fmt.Errorf("unknown priority %q", name)
}

// PriorityWeights converts the named weight table to scheduler weights.
// Unknown level names are an error; missing levels keep their defaults.
func (c *SchedulerConfig) PriorityWeights() (scheduler.Weights, error) {
	weights := scheduler.DefaultWeights()
	for name, weight := range c.Weights {
		level, err := ParsePriority(name)
		if err != nil {
			return nil, err
		}
		weights[level] = weight
	}
	return weights, nil
}

// SchedulingContext converts the context section to a scheduler context.
func (c *SchedulerConfig) SchedulingContext() scheduler.Context {
	return scheduler.Context{
		Urgency:         c.Context.Urgency,
		Importance:      c.Context.Importance,
		UserExpectation: c.Context.UserExpectation,
		SystemLoad:      c.Context.SystemLoad,
	}
}

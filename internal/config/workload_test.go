package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sorvik/scheduler/internal/scheduler"
)

func TestLoadWorkload(t *testing.T) {
	content := `{
		"tasks": [
			{
				"id": "fetch",
				"name": "Fetch dataset",
				"kind": "fetch",
				"priority": "high",
				"resources": ["net"],
				"estimated_ms": 2000
			},
			{
				"name": "Transform dataset",
				"kind": "transform",
				"depends_on": [
					{"task_id": "fetch"},
					{"task_id": "warmup", "kind": "soft"}
				],
				"deadline": {"in_ms": 60000, "critical": true, "flexibility": 0.2},
				"payload": {"rows": 100}
			}
		]
	}`

	path := writeWorkloadFile(t, content)
	tasks, err := LoadWorkload(path)
	if err != nil {
		t.Fatalf("LoadWorkload failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}

	fetch := tasks[0]
	if fetch.ID != "fetch" || fetch.Kind != "fetch" {
		t.Errorf("fetch task = %+v", fetch)
	}
	if fetch.Priority != scheduler.PriorityHigh {
		t.Errorf("fetch priority = %v, want high", fetch.Priority)
	}
	if fetch.EstimatedDuration != 2*time.Second {
		t.Errorf("fetch estimate = %v, want 2s", fetch.EstimatedDuration)
	}

	transform := tasks[1]
	if transform.ID != "" {
		t.Errorf("transform should have no declared id, got %q", transform.ID)
	}
	if transform.Priority != scheduler.PriorityMedium {
		t.Errorf("default priority = %v, want medium", transform.Priority)
	}
	if len(transform.Dependencies) != 2 {
		t.Fatalf("transform deps = %+v", transform.Dependencies)
	}
	if transform.Dependencies[0].Kind != scheduler.DependencyHard {
		t.Errorf("first dep should default to hard")
	}
	if transform.Dependencies[1].Kind != scheduler.DependencySoft {
		t.Errorf("second dep should be soft")
	}
	if transform.Deadline == nil {
		t.Fatal("transform deadline missing")
	}
	if transform.Deadline.Kind != scheduler.DeadlineRelative || transform.Deadline.In != time.Minute {
		t.Errorf("deadline = %+v", transform.Deadline)
	}
	if !transform.Deadline.Critical || transform.Deadline.Flexibility != 0.2 {
		t.Errorf("deadline flags = %+v", transform.Deadline)
	}
	if transform.Payload == nil {
		t.Error("payload should be preserved")
	}
}

func TestLoadWorkloadAbsoluteDeadline(t *testing.T) {
	content := `{
		"tasks": [
			{
				"name": "Report",
				"kind": "report",
				"deadline": {"at": "2026-09-01T12:00:00Z"}
			}
		]
	}`

	tasks, err := LoadWorkload(writeWorkloadFile(t, content))
	if err != nil {
		t.Fatalf("LoadWorkload failed: %v", err)
	}

	dl := tasks[0].Deadline
	if dl == nil || dl.Kind != scheduler.DeadlineAbsolute {
		t.Fatalf("deadline = %+v", dl)
	}
	want := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	if !dl.At.Equal(want) {
		t.Errorf("deadline at = %v, want %v", dl.At, want)
	}
}

func TestLoadWorkloadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "unknown priority",
			content: `{"tasks": [{"name": "a", "kind": "a", "priority": "urgent"}]}`,
		},
		{
			name:    "unknown dependency kind",
			content: `{"tasks": [{"name": "a", "kind": "a", "depends_on": [{"task_id": "b", "kind": "maybe"}]}]}`,
		},
		{
			name:    "empty deadline",
			content: `{"tasks": [{"name": "a", "kind": "a", "deadline": {}}]}`,
		},
		{
			name:    "bad deadline timestamp",
			content: `{"tasks": [{"name": "a", "kind": "a", "deadline": {"at": "tomorrow"}}]}`,
		},
		{
			name:    "malformed json",
			content: `{"tasks": [`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadWorkload(writeWorkloadFile(t, tt.content)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestPriorityWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights["medium"] = 65

	weights, err := cfg.PriorityWeights()
	if err != nil {
		t.Fatalf("PriorityWeights failed: %v", err)
	}
	if weights[scheduler.PriorityMedium] != 65 {
		t.Errorf("medium = %v, want 65", weights[scheduler.PriorityMedium])
	}
	if weights[scheduler.PriorityCritical] != 100 {
		t.Errorf("critical = %v, want 100", weights[scheduler.PriorityCritical])
	}

	cfg.Weights["urgent"] = 5
	if _, err := cfg.PriorityWeights(); err == nil {
		t.Fatal("expected error for unknown level name")
	}
}

func writeWorkloadFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workload.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing workload: %v", err)
	}
	return path
}

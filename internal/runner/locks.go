package runner

import (
	"sort"
	"sync"
)

// ResourceLocks provides per-resource mutual exclusion for concurrent task
// execution. Uses a keyed mutex pattern: each resource identifier gets its own
// mutex, allowing tasks over disjoint resources to run concurrently while
// serializing tasks that share one.
type ResourceLocks struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-resource mutexes
}

// NewResourceLocks creates an empty lock set.
func NewResourceLocks() *ResourceLocks {
	return &ResourceLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// Acquire takes the mutex for the given resource, creating it on first use.
func (r *ResourceLocks) Acquire(resource string) {
	r.mu.Lock()
	lock, exists := r.locks[resource]
	if !exists {
		lock = &sync.Mutex{}
		r.locks[resource] = lock
	}
	r.mu.Unlock()

	// Acquire outside the map lock to avoid contention
	lock.Lock()
}

// Release drops the mutex for the given resource.
func (r *ResourceLocks) Release(resource string) {
	r.mu.Lock()
	lock, exists := r.locks[resource]
	r.mu.Unlock()

	if exists {
		lock.Unlock()
	}
}

// AcquireAll takes the mutexes for ALL given resources.
// CRITICAL: acquires in sorted order to prevent deadlocks between tasks that
// share overlapping resource sets. Duplicate entries are collapsed.
func (r *ResourceLocks) AcquireAll(resources []string) {
	for _, resource := range dedupSorted(resources) {
		r.Acquire(resource)
	}
}

// ReleaseAll drops the mutexes for all given resources, in reverse sorted
// order for symmetry with AcquireAll.
func (r *ResourceLocks) ReleaseAll(resources []string) {
	sorted := dedupSorted(resources)
	for i := len(sorted) - 1; i >= 0; i-- {
		r.Release(sorted[i])
	}
}

// dedupSorted returns a sorted copy of resources with duplicates removed.
func dedupSorted(resources []string) []string {
	if len(resources) == 0 {
		return nil
	}

	sorted := make([]string, len(resources))
	copy(sorted, resources)
	sort.Strings(sorted)

	out := sorted[:1]
	for _, resource := range sorted[1:] {
		if resource != out[len(out)-1] {
			out = append(out, resource)
		}
	}
	return out
}

// Package pending tracks warm jobs that are queued or in flight so the
// same snapshot is never computed twice concurrently.
package pending

import (
	"context"
	"sync"
	"sync/atomic"
)

// Tracker records pending warm-job keys.
type Tracker interface {
	// Begin atomically checks whether key is already pending and records it
	// if not. Returns true if the job was newly admitted, false if a job
	// with the same key is already queued or running.
	Begin(ctx context.Context, key string) bool

	// Done removes a key, allowing the same job to be scheduled again.
	// Call it after the job finishes, whether it succeeded or failed.
	Done(ctx context.Context, key string)

	Size() int64
}

// inMemoryTracker implements Tracker with a bounded map. When the bound is
// reached the most recently admitted key is evicted, on the theory that a
// tracker this full is already misbehaving and old entries are more likely
// to represent jobs that are genuinely still running.
type inMemoryTracker struct {
	mu      sync.Mutex
	keys    map[string]struct{}
	order   []string
	maxSize int
	size    atomic.Int64
}

// NewInMemoryTracker creates a new in-memory tracker with configuration
// options.
func NewInMemoryTracker(opts ...Option) Tracker {
	t := &inMemoryTracker{
		maxSize: 4096,
	}

	for _, opt := range opts {
		opt(t)
	}

	t.keys = make(map[string]struct{})
	if t.maxSize > 0 {
		t.order = make([]string, 0, t.maxSize)
	}

	return t
}

func (t *inMemoryTracker) Begin(ctx context.Context, key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.keys[key]; exists {
		return false
	}

	if t.maxSize > 0 && len(t.keys) >= t.maxSize {
		last := t.order[len(t.order)-1]
		t.order = t.order[:len(t.order)-1]
		delete(t.keys, last)
		t.size.Add(-1)
	}

	t.keys[key] = struct{}{}
	if t.maxSize > 0 {
		t.order = append(t.order, key)
	}
	t.size.Add(1)

	return true
}

func (t *inMemoryTracker) Done(ctx context.Context, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.keys[key]; !exists {
		return
	}

	delete(t.keys, key)
	if t.maxSize > 0 {
		for i, k := range t.order {
			if k == key {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
	t.size.Add(-1)
}

// Size returns the current number of pending keys.
func (t *inMemoryTracker) Size() int64 {
	return t.size.Load()
}

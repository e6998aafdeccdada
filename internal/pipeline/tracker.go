package pipeline

import (
	"sort"
	"sync"
)

// Tracker is an Observer that remembers the latest event of every task.
type Tracker struct {
	mu     sync.RWMutex
	latest map[string]Event
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{latest: make(map[string]Event)}
}

// Observe implements Observer.
func (t *Tracker) Observe(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest[ev.Task] = ev
}

// Snapshot returns the latest event per task, sorted by start time.
func (t *Tracker) Snapshot() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Event, 0, len(t.latest))
	for _, ev := range t.latest {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Started.Equal(out[j].Started) {
			return out[i].Task < out[j].Task
		}
		return out[i].Started.Before(out[j].Started)
	})
	return out
}

package pipeline

import (
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/conneroisu/assetpipe/internal/errors"
)

// Registry maps names to runnables so tasks and pipelines can be invoked
// from the command line.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Runnable
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Runnable)}
}

// Register adds r under its name. Registering a second runnable with the
// same name is an error.
func (reg *Registry) Register(r Runnable) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.entries[r.Name()]; exists {
		return fmt.Errorf("runnable %q already registered", r.Name())
	}
	reg.entries[r.Name()] = r
	reg.order = append(reg.order, r.Name())
	return nil
}

// MustRegister is Register that panics.
func (reg *Registry) MustRegister(rs ...Runnable) {
	for _, r := range rs {
		if err := reg.Register(r); err != nil {
			panic(err)
		}
	}
}

// Get looks up a runnable by name.
func (reg *Registry) Get(name string) (Runnable, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.entries[name]
	return r, ok
}

// Lookup resolves names into a Sequence, in the order given.
func (reg *Registry) Lookup(names ...string) (Runnable, error) {
	items := make([]Runnable, 0, len(names))
	for _, name := range names {
		r, ok := reg.Get(name)
		if !ok {
			return nil, apperrors.NewCompositionError(name, fmt.Sprintf("unknown task (available: %v)", reg.Names()))
		}
		items = append(items, r)
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return Sequence("run", items...), nil
}

// Names returns every registered name in registration order.
func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return append([]string(nil), reg.order...)
}

// Sorted returns every registered runnable sorted by name.
func (reg *Registry) Sorted() []Runnable {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]Runnable, 0, len(reg.entries))
	for _, r := range reg.entries {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

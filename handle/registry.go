package handle

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Entry is the registry's view of one table. Table[T] satisfies it for any T.
type Entry interface {
	Len() int
	Drop() int
}

// Registry tracks the tables of a single bridge instance, one per resource
// kind. It is constructed and injected explicitly so tests run against fresh
// instances instead of ambient process state.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]Entry)}
}

func (r *Registry) Register(kind string, entry Entry) error {
	if entry == nil {
		return fmt.Errorf("handle: table entry is nil")
	}
	name := strings.TrimSpace(kind)
	if name == "" {
		return fmt.Errorf("handle: resource kind is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tables[name]; exists {
		return fmt.Errorf("handle: resource kind already registered: %s", name)
	}
	r.tables[name] = entry
	return nil
}

// Kinds returns registered resource kinds in deterministic order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	kinds := make([]string, 0, len(r.tables))
	for kind := range r.tables {
		kinds = append(kinds, kind)
	}
	r.mu.RUnlock()
	sort.Strings(kinds)
	return kinds
}

// Counts reports live resources per kind.
func (r *Registry) Counts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int, len(r.tables))
	for kind, entry := range r.tables {
		counts[kind] = entry.Len()
	}
	return counts
}

// Reset drops every entry in every table and returns the total removed.
// Used at bridge teardown and between tests.
func (r *Registry) Reset() int {
	r.mu.RLock()
	entries := make([]Entry, 0, len(r.tables))
	for _, entry := range r.tables {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	total := 0
	for _, entry := range entries {
		total += entry.Drop()
	}
	return total
}

var _ Entry = (*Table[struct{}])(nil)

package rhi

import (
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// RegistryEntry describes one live object of a device.
type RegistryEntry struct {
	ID     uuid.UUID
	Kind   string
	Name   string
	Object Object
}

// Registry tracks the live objects of one device. Objects are added when
// created and removed when destroyed; whatever is left when the device is
// destroyed is reported as leaked.
type Registry struct {
	mu      sync.Mutex
	objects map[uuid.UUID]RegistryEntry
}

func NewRegistry() *Registry {
	return &Registry{objects: make(map[uuid.UUID]RegistryEntry)}
}

// Add registers obj. An empty name is replaced by kind plus a short id.
func (r *Registry) Add(kind, name string, obj Object) uuid.UUID {
	id := uuid.New()
	if name == "" {
		name = kind + "-" + id.String()[:8]
	}
	r.mu.Lock()
	r.objects[id] = RegistryEntry{ID: id, Kind: kind, Name: name, Object: obj}
	r.mu.Unlock()
	return id
}

func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.objects, id)
	r.mu.Unlock()
}

func (r *Registry) Lookup(id uuid.UUID) (RegistryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.objects[id]
	return e, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objects)
}

// Count returns the number of live objects of the given kind.
func (r *Registry) Count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.objects {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Live returns the live objects sorted by kind and name.
func (r *Registry) Live() []RegistryEntry {
	r.mu.Lock()
	live := make([]RegistryEntry, 0, len(r.objects))
	for _, e := range r.objects {
		live = append(live, e)
	}
	r.mu.Unlock()
	sort.Slice(live, func(i, j int) bool {
		if live[i].Kind != live[j].Kind {
			return live[i].Kind < live[j].Kind
		}
		return live[i].Name < live[j].Name
	})
	return live
}

// ReportLeaks logs one warning per live object and returns how many there are.
func (r *Registry) ReportLeaks(logger *log.Logger) int {
	live := r.Live()
	for _, e := range live {
		logger.Warn("leaked object", "kind", e.Kind, "name", e.Name, "id", e.ID)
	}
	return len(live)
}

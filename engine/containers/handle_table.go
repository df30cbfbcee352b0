package containers

import (
	"sync"

	"github.com/spaghettifunk/rhi/engine/core"
)

// HandleTable maps opaque non-zero handles to objects. Handles of removed
// objects are reused. It is safe for concurrent use.
type HandleTable struct {
	mu   sync.RWMutex
	pool *core.IdentifierPool
}

func NewHandleTable() *HandleTable {
	return &HandleTable{pool: core.NewIdentifierPool(64)}
}

func (t *HandleTable) Add(obj interface{}) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint64(t.pool.Acquire(obj)) + 1
}

// Get returns nil for zero or unknown handles.
func (t *HandleTable) Get(h uint64) interface{} {
	if h == 0 {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pool.Owner(uint32(h - 1))
}

// Remove returns the object the handle referred to, or nil.
func (t *HandleTable) Remove(h uint64) interface{} {
	if h == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	obj := t.pool.Owner(uint32(h - 1))
	if obj != nil {
		t.pool.Release(uint32(h - 1))
	}
	return obj
}

func (t *HandleTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pool.Live()
}

// Lookup returns the object behind h if it has type T.
func Lookup[T any](t *HandleTable, h uint64) (T, bool) {
	v, ok := t.Get(h).(T)
	return v, ok
}

package dx12

import (
	"sync"

	"github.com/spaghettifunk/rhi/engine/core"
)

type pendingAllocator struct {
	alloc handle
	value uint64
}

type AllocatorStats struct {
	Created   int
	InUse     int
	Pending   int
	Available int
}

// CommandAllocatorManager recycles the ID3D12CommandAllocators of one
// recording worker. An allocator returned with a submission value is reset
// and handed out again only once that value completed.
type CommandAllocatorManager struct {
	mu        sync.Mutex
	drv       driver
	available []handle
	inUse     map[handle]struct{}
	pending   []pendingAllocator
	created   int
}

func newCommandAllocatorManager(drv driver) *CommandAllocatorManager {
	return &CommandAllocatorManager{drv: drv, inUse: make(map[handle]struct{})}
}

// Get hands out a reset allocator, creating one when none is available.
func (m *CommandAllocatorManager) Get() (handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.available); n > 0 {
		a := m.available[n-1]
		m.available = m.available[:n-1]
		if err := m.drv.resetCommandAllocator(a); err != nil {
			m.drv.destroyCommandAllocator(a)
			return 0, err
		}
		m.inUse[a] = struct{}{}
		return a, nil
	}
	a, err := m.drv.createCommandAllocator()
	if err != nil {
		core.LogError("failed to create command allocator: %s", err)
		return 0, err
	}
	m.created++
	m.inUse[a] = struct{}{}
	return a, nil
}

// Return parks a submitted allocator until value completed.
func (m *CommandAllocatorManager) Return(a handle, value uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inUse[a]; !ok {
		core.LogWarn("command allocator %d returned but not in use", a)
		return
	}
	delete(m.inUse, a)
	m.pending = append(m.pending, pendingAllocator{alloc: a, value: value})
}

// Recycle makes an allocator that was never submitted available right away.
func (m *CommandAllocatorManager) Recycle(a handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inUse[a]; !ok {
		return
	}
	delete(m.inUse, a)
	m.available = append(m.available, a)
}

// Reclaim makes the allocators whose submission completed available and
// returns how many moved.
func (m *CommandAllocatorManager) Reclaim(completed uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.pending[:0]
	n := 0
	for _, p := range m.pending {
		if p.value <= completed {
			m.available = append(m.available, p.alloc)
			n++
			continue
		}
		kept = append(kept, p)
	}
	m.pending = kept
	return n
}

func (m *CommandAllocatorManager) Stats() AllocatorStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return AllocatorStats{
		Created:   m.created,
		InUse:     len(m.inUse),
		Pending:   len(m.pending),
		Available: len(m.available),
	}
}

// destroy releases every allocator. The queue must be idle.
func (m *CommandAllocatorManager) destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.available {
		m.drv.destroyCommandAllocator(a)
	}
	for _, p := range m.pending {
		m.drv.destroyCommandAllocator(p.alloc)
	}
	for a := range m.inUse {
		m.drv.destroyCommandAllocator(a)
	}
	m.available, m.pending = nil, nil
	m.inUse = make(map[handle]struct{})
}

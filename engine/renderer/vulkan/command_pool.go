package vulkan

import (
	"sync"

	"github.com/spaghettifunk/rhi/engine/core"
)

// poolEntry is a command pool with the one command buffer allocated from it.
// Resetting the pool resets the buffer.
type poolEntry struct {
	pool handle
	cmd  handle
}

type pendingEntry struct {
	entry *poolEntry
	value uint64
}

type PoolStats struct {
	Created   int
	InUse     int
	Pending   int
	Available int
}

// CommandPoolManager recycles the command pools of one recording worker.
// A pool returned with a submission value is reused once that value
// completed.
type CommandPoolManager struct {
	mu        sync.Mutex
	drv       driver
	available []*poolEntry
	inUse     map[*poolEntry]struct{}
	pending   []pendingEntry
	created   int
}

func newCommandPoolManager(drv driver) *CommandPoolManager {
	return &CommandPoolManager{drv: drv, inUse: make(map[*poolEntry]struct{})}
}

// Get hands out a reset pool, creating one when none is available.
func (m *CommandPoolManager) Get() (*poolEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.available); n > 0 {
		e := m.available[n-1]
		m.available = m.available[:n-1]
		if err := m.drv.resetCommandPool(e.pool); err != nil {
			m.drv.destroyCommandPool(e.pool)
			return nil, err
		}
		m.inUse[e] = struct{}{}
		return e, nil
	}
	pool, err := m.drv.createCommandPool()
	if err != nil {
		return nil, err
	}
	cmd, err := m.drv.allocateCommandBuffer(pool)
	if err != nil {
		m.drv.destroyCommandPool(pool)
		return nil, err
	}
	e := &poolEntry{pool: pool, cmd: cmd}
	m.created++
	m.inUse[e] = struct{}{}
	return e, nil
}

// Return parks a submitted pool until value completed.
func (m *CommandPoolManager) Return(e *poolEntry, value uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inUse[e]; !ok {
		core.LogWarn("command pool %d returned twice", e.pool)
		return
	}
	delete(m.inUse, e)
	m.pending = append(m.pending, pendingEntry{entry: e, value: value})
}

// Recycle makes a pool that was never submitted available right away.
func (m *CommandPoolManager) Recycle(e *poolEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inUse[e]; !ok {
		return
	}
	delete(m.inUse, e)
	m.available = append(m.available, e)
}

// Reclaim moves the pools whose submission completed back to the available
// list and returns how many moved.
func (m *CommandPoolManager) Reclaim(completed uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.pending[:0]
	n := 0
	for _, p := range m.pending {
		if p.value <= completed {
			m.available = append(m.available, p.entry)
			n++
			continue
		}
		kept = append(kept, p)
	}
	m.pending = kept
	return n
}

func (m *CommandPoolManager) Stats() PoolStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PoolStats{
		Created:   m.created,
		InUse:     len(m.inUse),
		Pending:   len(m.pending),
		Available: len(m.available),
	}
}

// destroy releases every pool. The queue must be idle.
func (m *CommandPoolManager) destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.available {
		m.drv.destroyCommandPool(e.pool)
	}
	for _, p := range m.pending {
		m.drv.destroyCommandPool(p.entry.pool)
	}
	for e := range m.inUse {
		m.drv.destroyCommandPool(e.pool)
	}
	m.available, m.pending = nil, nil
	m.inUse = make(map[*poolEntry]struct{})
}

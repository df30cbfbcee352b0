package dx12

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/rhi/engine/containers"
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// DescriptorHeap is a fixed size ID3D12DescriptorHeap with a free list of
// slots. Handles are computed without locking.
type DescriptorHeap struct {
	drv           driver
	kind          heapKind
	info          heapInfo
	shaderVisible bool

	mu    sync.Mutex
	slots *containers.FreeList
}

func newDescriptorHeap(drv driver, kind heapKind, capacity uint32, shaderVisible bool) (*DescriptorHeap, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("%w: %s heap without slots", rhi.ErrInvalidArgument, kind)
	}
	info, err := drv.createDescriptorHeap(kind, capacity, shaderVisible)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s descriptor heap: %w", kind, err)
	}
	return &DescriptorHeap{
		drv:           drv,
		kind:          kind,
		info:          info,
		shaderVisible: shaderVisible,
		slots:         containers.NewFreeList(capacity),
	}, nil
}

// Allocate returns a free slot, or rhi.InvalidDescriptorIndex and
// rhi.ErrHeapExhausted when every slot is taken.
func (h *DescriptorHeap) Allocate() (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i, err := h.slots.Allocate()
	if err != nil {
		return rhi.InvalidDescriptorIndex, fmt.Errorf("%w: %s heap of %d", rhi.ErrHeapExhausted, h.kind, h.slots.Capacity())
	}
	return i, nil
}

// Free returns a slot. Freeing a slot twice is logged and ignored.
func (h *DescriptorHeap) Free(index uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.slots.Free(index); err != nil {
		core.LogWarn("%s heap: free of slot %d ignored: %s", h.kind, index, err)
	}
}

func (h *DescriptorHeap) CPUHandle(index uint32) cpuDescriptor {
	return h.info.cpuStart + cpuDescriptor(uint64(index)*uint64(h.info.increment))
}

// GPUHandle is only meaningful for shader visible heaps.
func (h *DescriptorHeap) GPUHandle(index uint32) gpuDescriptor {
	return h.info.gpuStart + gpuDescriptor(uint64(index)*uint64(h.info.increment))
}

func (h *DescriptorHeap) Capacity() uint32 { return h.slots.Capacity() }

func (h *DescriptorHeap) InUse() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slots.InUse()
}

func (h *DescriptorHeap) destroy() {
	h.drv.destroyDescriptorHeap(h.info.handle)
}

type retiredBlock struct {
	block uint32
	value uint64
}

// tableArena hands out fixed size blocks of a shader visible heap. Command
// buffers bump allocate their descriptor tables inside a block and retire
// the blocks with the submission value; a block is reused once that value
// completed.
type tableArena struct {
	heap      *DescriptorHeap
	blockSize uint32

	mu      sync.Mutex
	blocks  *containers.FreeList
	retired []retiredBlock
}

func newTableArena(drv driver, kind heapKind, capacity, blockSize uint32) (*tableArena, error) {
	if blockSize > capacity {
		blockSize = capacity
	}
	heap, err := newDescriptorHeap(drv, kind, capacity, true)
	if err != nil {
		return nil, err
	}
	return &tableArena{
		heap:      heap,
		blockSize: blockSize,
		blocks:    containers.NewFreeList(capacity / blockSize),
	}, nil
}

func (a *tableArena) acquire() (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, err := a.blocks.Allocate()
	if err != nil {
		return 0, fmt.Errorf("%w: every %s table block is in flight", rhi.ErrHeapExhausted, a.heap.kind)
	}
	return b, nil
}

// release returns blocks that were never submitted.
func (a *tableArena) release(blocks []uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, b := range blocks {
		if err := a.blocks.Free(b); err != nil {
			core.LogWarn("%s table block %d released twice", a.heap.kind, b)
		}
	}
}

func (a *tableArena) retire(blocks []uint32, value uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, b := range blocks {
		a.retired = append(a.retired, retiredBlock{block: b, value: value})
	}
}

// reclaim frees the blocks whose submission completed.
func (a *tableArena) reclaim(completed uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.retired[:0]
	for _, r := range a.retired {
		if r.value <= completed {
			a.blocks.Free(r.block)
			continue
		}
		kept = append(kept, r)
	}
	a.retired = kept
}

func (a *tableArena) inFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blocks.InUse()
}

func (a *tableArena) destroy() { a.heap.destroy() }

// tableCursor is the per command buffer allocation state of one arena.
type tableCursor struct {
	arena  *tableArena
	blocks []uint32
	used   uint32
}

// allocate reserves n consecutive slots and returns the first one.
func (c *tableCursor) allocate(n uint32) (uint32, error) {
	if n > c.arena.blockSize {
		return 0, fmt.Errorf("%w: table of %d descriptors, blocks hold %d", rhi.ErrHeapExhausted, n, c.arena.blockSize)
	}
	if len(c.blocks) == 0 || c.used+n > c.arena.blockSize {
		b, err := c.arena.acquire()
		if err != nil {
			return 0, err
		}
		c.blocks = append(c.blocks, b)
		c.used = 0
	}
	first := c.blocks[len(c.blocks)-1]*c.arena.blockSize + c.used
	c.used += n
	return first, nil
}

func (c *tableCursor) retire(value uint64) {
	if len(c.blocks) > 0 {
		c.arena.retire(c.blocks, value)
	}
	c.blocks, c.used = nil, 0
}

func (c *tableCursor) release() {
	if len(c.blocks) > 0 {
		c.arena.release(c.blocks)
	}
	c.blocks, c.used = nil, 0
}

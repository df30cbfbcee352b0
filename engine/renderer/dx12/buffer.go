package dx12

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// constantBufferAlignment is D3D12_CONSTANT_BUFFER_DATA_PLACEMENT_ALIGNMENT.
const constantBufferAlignment = 256

// Buffer is a committed resource. Upload and readback buffers stay in the
// fixed state of their heap; default heap buffers follow their layout.
type Buffer struct {
	dev      *Device
	desc     rhi.BufferDesc
	id       uuid.UUID
	resource handle
	heap     memoryHeap
	layout   atomic.Int32
	valid    atomic.Bool
	mapped   atomic.Bool
}

func (d *Device) CreateBuffer(desc rhi.BufferDesc) (rhi.Buffer, error) {
	return d.createBuffer(desc, true)
}

func (d *Device) createBuffer(desc rhi.BufferDesc, register bool) (*Buffer, error) {
	if desc.Size == 0 {
		return nil, d.fail(fmt.Errorf("%w: buffer %q has no size", rhi.ErrInvalidArgument, desc.Name))
	}
	heap, state := memoryHeapOf(desc.Memory)
	size := desc.Size
	if desc.Usage&rhi.BufferUsageUniform != 0 {
		// Constant buffer views cover whole 256 byte blocks.
		size = core.AlignUp(size, constantBufferAlignment)
	}
	var flags resourceFlags
	if desc.Usage&rhi.BufferUsageStorage != 0 {
		flags |= allowUnorderedAccess
	}
	h, err := d.drv.createCommittedResource(resourceInfo{
		dimension:        dimensionBuffer,
		dxgi:             formatUnknown,
		width:            size,
		height:           1,
		depthOrArraySize: 1,
		mips:             1,
		flags:            flags,
		heap:             heap,
		state:            state,
	})
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create buffer %q: %w", desc.Name, err))
	}
	b := &Buffer{dev: d, desc: desc, resource: h, heap: heap}
	b.valid.Store(true)
	if register {
		b.id = d.registry.Add("Buffer", desc.Name, b)
	}
	d.stats.bufferMem.Add(int64(desc.Size))
	return b, nil
}

func (b *Buffer) IsValid() bool { return b != nil && b.valid.Load() }

func (b *Buffer) Destroy() {
	if b == nil || !b.valid.CompareAndSwap(true, false) {
		return
	}
	d, h := b.dev, b.resource
	d.registry.Remove(b.id)
	d.stats.bufferMem.Add(-int64(b.desc.Size))
	if b.mapped.Load() {
		d.drv.unmapResource(h)
	}
	d.release(func() { d.drv.destroyResource(h) })
}

func (b *Buffer) Desc() rhi.BufferDesc   { return b.desc }
func (b *Buffer) Size() uint64           { return b.desc.Size }
func (b *Buffer) Usage() rhi.BufferUsage { return b.desc.Usage }
func (b *Buffer) IsMappable() bool       { return b.desc.Memory.Mappable() }

func (b *Buffer) CurrentLayout() rhi.ResourceLayout {
	return rhi.ResourceLayout(b.layout.Load())
}

func (b *Buffer) setLayout(l rhi.ResourceLayout) { b.layout.Store(int32(l)) }

// state is the native state of the buffer in layout l.
func (b *Buffer) state(l rhi.ResourceLayout) resourceStates {
	if b.heap != heapDefault {
		_, fixed := memoryHeapOf(b.desc.Memory)
		return fixed
	}
	return bufferState(l, b.desc.Usage)
}

// Map returns the first Size bytes of the resource.
func (b *Buffer) Map() ([]byte, error) {
	if !b.IsValid() {
		return nil, fmt.Errorf("%w: buffer", rhi.ErrDestroyed)
	}
	if !b.IsMappable() {
		return nil, b.dev.fail(fmt.Errorf("%w: %q", rhi.ErrNotMappable, b.desc.Name))
	}
	data, err := b.dev.drv.mapResource(b.resource)
	if err != nil {
		return nil, b.dev.fail(err)
	}
	b.mapped.Store(true)
	return data[:b.desc.Size], nil
}

func (b *Buffer) Unmap() {
	if b.IsValid() && b.mapped.CompareAndSwap(true, false) {
		b.dev.drv.unmapResource(b.resource)
	}
}

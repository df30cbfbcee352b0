package vulkan

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// Buffer is a VkBuffer with its own memory. Mappable buffers are host
// visible and coherent.
type Buffer struct {
	dev    *Device
	desc   rhi.BufferDesc
	id     uuid.UUID
	buf    handle
	layout atomic.Int32
	valid  atomic.Bool
	mapped atomic.Bool
}

func (d *Device) CreateBuffer(desc rhi.BufferDesc) (rhi.Buffer, error) {
	return d.createBuffer(desc, true)
}

func (d *Device) createBuffer(desc rhi.BufferDesc, register bool) (*Buffer, error) {
	if desc.Size == 0 {
		return nil, d.fail(fmt.Errorf("%w: buffer %q has no size", rhi.ErrInvalidArgument, desc.Name))
	}
	h, err := d.drv.createBuffer(bufferInfo{
		size:        desc.Size,
		usage:       bufferUsage(desc.Usage),
		hostVisible: desc.Memory.Mappable(),
	})
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create buffer %q: %w", desc.Name, err))
	}
	b := &Buffer{dev: d, desc: desc, buf: h}
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
	d, h := b.dev, b.buf
	d.registry.Remove(b.id)
	d.stats.bufferMem.Add(-int64(b.desc.Size))
	if b.mapped.Load() {
		d.drv.unmapBuffer(h)
	}
	d.release(func() { d.drv.destroyBuffer(h) })
}

func (b *Buffer) Desc() rhi.BufferDesc   { return b.desc }
func (b *Buffer) Size() uint64           { return b.desc.Size }
func (b *Buffer) Usage() rhi.BufferUsage { return b.desc.Usage }
func (b *Buffer) IsMappable() bool       { return b.desc.Memory.Mappable() }

func (b *Buffer) CurrentLayout() rhi.ResourceLayout {
	return rhi.ResourceLayout(b.layout.Load())
}

func (b *Buffer) setLayout(l rhi.ResourceLayout) { b.layout.Store(int32(l)) }

func (b *Buffer) Map() ([]byte, error) {
	if !b.IsValid() {
		return nil, fmt.Errorf("%w: buffer", rhi.ErrDestroyed)
	}
	if !b.IsMappable() {
		return nil, b.dev.fail(fmt.Errorf("%w: %q", rhi.ErrNotMappable, b.desc.Name))
	}
	data, err := b.dev.drv.mapBuffer(b.buf)
	if err != nil {
		return nil, b.dev.fail(err)
	}
	b.mapped.Store(true)
	return data, nil
}

func (b *Buffer) Unmap() {
	if b.IsValid() && b.mapped.CompareAndSwap(true, false) {
		b.dev.drv.unmapBuffer(b.buf)
	}
}

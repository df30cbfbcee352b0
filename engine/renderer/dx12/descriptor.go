package dx12

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// bindingSlot places one binding inside the descriptor tables of a set.
type bindingSlot struct {
	binding rhi.DescriptorBinding
	heap    heapKind
	offset  uint32
	count   uint32
}

// DescriptorSetLayout maps bindings onto two descriptor tables, one of
// CBV/SRV/UAV descriptors and one of samplers. Binding n is register n of
// the range type its descriptor type needs.
type DescriptorSetLayout struct {
	dev       *Device
	desc      rhi.DescriptorSetLayoutDesc
	id        uuid.UUID
	slots     []bindingSlot
	resources []descriptorRange
	samplers  []descriptorRange
	// resourceCount and samplerCount are the table sizes.
	resourceCount uint32
	samplerCount  uint32
	valid         atomic.Bool
}

func rangeOf(t rhi.DescriptorType) (rangeType, heapKind) {
	switch t {
	case rhi.DescriptorUniformBuffer:
		return rangeCBV, heapCbvSrvUav
	case rhi.DescriptorStorageBuffer, rhi.DescriptorStorageTexture:
		return rangeUAV, heapCbvSrvUav
	case rhi.DescriptorSampler:
		return rangeSampler, heapSampler
	}
	return rangeSRV, heapCbvSrvUav
}

func (d *Device) CreateDescriptorSetLayout(desc rhi.DescriptorSetLayoutDesc) (rhi.DescriptorSetLayout, error) {
	l := &DescriptorSetLayout{dev: d}
	seen := make(map[uint32]bool, len(desc.Bindings))
	for _, b := range desc.Bindings {
		if seen[b.Binding] {
			return nil, d.fail(fmt.Errorf("%w: binding %d declared twice", rhi.ErrInvalidArgument, b.Binding))
		}
		seen[b.Binding] = true
		count := b.Count
		if count == 0 {
			count = 1
		}
		kind, heap := rangeOf(b.Type)
		r := descriptorRange{kind: kind, count: count, register: b.Binding}
		slot := bindingSlot{binding: b, heap: heap, count: count}
		if heap == heapSampler {
			slot.offset, r.offset = l.samplerCount, l.samplerCount
			l.samplerCount += count
			l.samplers = append(l.samplers, r)
		} else {
			slot.offset, r.offset = l.resourceCount, l.resourceCount
			l.resourceCount += count
			l.resources = append(l.resources, r)
		}
		l.slots = append(l.slots, slot)
	}
	if l.resourceCount > resourceTableBlock || l.samplerCount > samplerTableBlock {
		return nil, d.fail(fmt.Errorf("%w: set tables of %d resources and %d samplers exceed %d and %d",
			rhi.ErrInvalidArgument, l.resourceCount, l.samplerCount, resourceTableBlock, samplerTableBlock))
	}
	desc.Bindings = append([]rhi.DescriptorBinding(nil), desc.Bindings...)
	l.desc = desc
	l.valid.Store(true)
	l.id = d.registry.Add("DescriptorSetLayout", "", l)
	return l, nil
}

func (l *DescriptorSetLayout) IsValid() bool                     { return l != nil && l.valid.Load() }
func (l *DescriptorSetLayout) Desc() rhi.DescriptorSetLayoutDesc { return l.desc }

func (l *DescriptorSetLayout) Destroy() {
	if l == nil || !l.valid.CompareAndSwap(true, false) {
		return
	}
	l.dev.registry.Remove(l.id)
}

func (l *DescriptorSetLayout) slot(n uint32) (bindingSlot, bool) {
	for _, s := range l.slots {
		if s.binding.Binding == n {
			return s, true
		}
	}
	return bindingSlot{}, false
}

// DescriptorSet stages its descriptors in the CPU heaps. Binding it copies
// them into the shader visible tables of the command buffer.
type DescriptorSet struct {
	dev      *Device
	layout   *DescriptorSetLayout
	id       uuid.UUID
	resource []uint32
	sampler  []uint32
	valid    atomic.Bool
}

func (d *Device) CreateDescriptorSet(desc rhi.DescriptorSetDesc) (rhi.DescriptorSet, error) {
	l, err := cast[*DescriptorSetLayout](desc.Layout, "descriptor set layout")
	if err != nil {
		return nil, d.fail(err)
	}
	s := &DescriptorSet{dev: d, layout: l}
	if s.resource, err = d.allocateSlots(heapCbvSrvUav, l.resourceCount); err != nil {
		return nil, d.fail(err)
	}
	if s.sampler, err = d.allocateSlots(heapSampler, l.samplerCount); err != nil {
		s.freeSlots(func(kind heapKind, slot uint32) { d.heaps[kind].Free(slot) })
		return nil, d.fail(err)
	}
	s.valid.Store(true)
	s.id = d.registry.Add("DescriptorSet", "", s)
	return s, nil
}

// allocateSlots takes n slots or none.
func (d *Device) allocateSlots(kind heapKind, n uint32) ([]uint32, error) {
	slots := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		slot, err := d.heaps[kind].Allocate()
		if err != nil {
			for _, s := range slots {
				d.heaps[kind].Free(s)
			}
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func (s *DescriptorSet) freeSlots(free func(kind heapKind, slot uint32)) {
	for _, slot := range s.resource {
		free(heapCbvSrvUav, slot)
	}
	for _, slot := range s.sampler {
		free(heapSampler, slot)
	}
}

func (s *DescriptorSet) IsValid() bool                   { return s != nil && s.valid.Load() }
func (s *DescriptorSet) Layout() rhi.DescriptorSetLayout { return s.layout }

func (s *DescriptorSet) Destroy() {
	if s == nil || !s.valid.CompareAndSwap(true, false) {
		return
	}
	s.dev.registry.Remove(s.id)
	s.freeSlots(s.dev.freeSlot)
}

// handle is the CPU descriptor of the first element of a binding.
func (s *DescriptorSet) handle(b bindingSlot) cpuDescriptor {
	if b.heap == heapSampler {
		return s.dev.heaps[heapSampler].CPUHandle(s.sampler[b.offset])
	}
	return s.dev.heaps[heapCbvSrvUav].CPUHandle(s.resource[b.offset])
}

func (s *DescriptorSet) lookup(n uint32, want ...rhi.DescriptorType) (bindingSlot, error) {
	if !s.IsValid() {
		return bindingSlot{}, fmt.Errorf("%w: descriptor set", rhi.ErrDestroyed)
	}
	b, ok := s.layout.slot(n)
	if !ok {
		return b, s.dev.fail(fmt.Errorf("%w: binding %d is not in the layout", rhi.ErrInvalidArgument, n))
	}
	for _, t := range want {
		if b.binding.Type == t {
			return b, nil
		}
	}
	return b, s.dev.fail(fmt.Errorf("%w: binding %d has type %d", rhi.ErrInvalidArgument, n, b.binding.Type))
}

func (s *DescriptorSet) WriteBuffer(binding uint32, buf rhi.Buffer, offset, size uint64) error {
	b, err := s.lookup(binding, rhi.DescriptorUniformBuffer, rhi.DescriptorStorageBuffer)
	if err != nil {
		return err
	}
	bb, err := cast[*Buffer](buf, "buffer")
	if err != nil {
		return s.dev.fail(err)
	}
	info := viewInfo{kind: viewCBV, resource: bb.resource, offset: offset, stride: bb.desc.Stride}
	need := rhi.BufferUsageUniform
	if b.binding.Type == rhi.DescriptorStorageBuffer {
		need = rhi.BufferUsageStorage
		info.kind = viewUAV
	}
	if bb.desc.Usage&need == 0 {
		return s.dev.fail(fmt.Errorf("%w: %q bound to binding %d", rhi.ErrInvalidUsage, bb.desc.Name, binding))
	}
	if size == 0 {
		size = bb.desc.Size - offset
	}
	if offset >= bb.desc.Size || offset+size > bb.desc.Size {
		return s.dev.fail(fmt.Errorf("%w: %d bytes at %d of %q", rhi.ErrOutOfRange, size, offset, bb.desc.Name))
	}
	if info.kind == viewCBV && offset%constantBufferAlignment != 0 {
		return s.dev.fail(fmt.Errorf("%w: constant buffer offset %d is not a multiple of %d", rhi.ErrInvalidArgument, offset, constantBufferAlignment))
	}
	info.size = size
	s.dev.drv.createView(info, s.handle(b))
	return nil
}

func (s *DescriptorSet) WriteTexture(binding uint32, tex rhi.Texture) error {
	b, err := s.lookup(binding, rhi.DescriptorSampledTexture, rhi.DescriptorStorageTexture)
	if err != nil {
		return err
	}
	t, err := cast[*Texture](tex, "texture")
	if err != nil {
		return s.dev.fail(err)
	}
	src := t.srv
	if b.binding.Type == rhi.DescriptorStorageTexture {
		src = t.uav
	}
	if src == rhi.InvalidDescriptorIndex {
		return s.dev.fail(fmt.Errorf("%w: %q bound to binding %d", rhi.ErrInvalidUsage, t.desc.Name, binding))
	}
	s.dev.drv.copyDescriptors(heapCbvSrvUav, s.handle(b), s.dev.heaps[heapCbvSrvUav].CPUHandle(src), 1)
	return nil
}

func (s *DescriptorSet) WriteSampler(binding uint32, smp rhi.Sampler) error {
	b, err := s.lookup(binding, rhi.DescriptorSampler)
	if err != nil {
		return err
	}
	sm, err := cast[*Sampler](smp, "sampler")
	if err != nil {
		return s.dev.fail(err)
	}
	s.dev.drv.copyDescriptors(heapSampler, s.handle(b), s.dev.heaps[heapSampler].CPUHandle(sm.slot), 1)
	return nil
}

// copyTables copies the staged descriptors of s into freshly allocated table
// ranges and returns their shader visible starts.
func (s *DescriptorSet) copyTables(resources, samplers *tableCursor) (res, smp gpuDescriptor, err error) {
	d := s.dev
	if n := uint32(len(s.resource)); n > 0 {
		first, err := resources.allocate(n)
		if err != nil {
			return 0, 0, err
		}
		heap := resources.arena.heap
		for i, slot := range s.resource {
			d.drv.copyDescriptors(heapCbvSrvUav, heap.CPUHandle(first+uint32(i)), d.heaps[heapCbvSrvUav].CPUHandle(slot), 1)
		}
		res = heap.GPUHandle(first)
	}
	if n := uint32(len(s.sampler)); n > 0 {
		first, err := samplers.allocate(n)
		if err != nil {
			return 0, 0, err
		}
		heap := samplers.arena.heap
		for i, slot := range s.sampler {
			d.drv.copyDescriptors(heapSampler, heap.CPUHandle(first+uint32(i)), d.heaps[heapSampler].CPUHandle(slot), 1)
		}
		smp = heap.GPUHandle(first)
	}
	return res, smp, nil
}

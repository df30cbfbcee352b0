package vulkan

import (
	"fmt"
	"sync"
	"sync/atomic"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

type DescriptorSetLayout struct {
	dev    *Device
	desc   rhi.DescriptorSetLayoutDesc
	id     uuid.UUID
	handle handle
	valid  atomic.Bool
}

func (d *Device) CreateDescriptorSetLayout(desc rhi.DescriptorSetLayoutDesc) (rhi.DescriptorSetLayout, error) {
	seen := make(map[uint32]bool, len(desc.Bindings))
	bindings := make([]layoutBinding, 0, len(desc.Bindings))
	for _, b := range desc.Bindings {
		if seen[b.Binding] {
			return nil, d.fail(fmt.Errorf("%w: binding %d declared twice", rhi.ErrInvalidArgument, b.Binding))
		}
		seen[b.Binding] = true
		count := b.Count
		if count == 0 {
			count = 1
		}
		bindings = append(bindings, layoutBinding{
			binding: b.Binding,
			kind:    descriptorType(b.Type),
			count:   count,
			stages:  shaderStages(b.Stages),
		})
	}
	h, err := d.drv.createDescriptorSetLayout(bindings)
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create descriptor set layout: %w", err))
	}
	desc.Bindings = append([]rhi.DescriptorBinding(nil), desc.Bindings...)
	l := &DescriptorSetLayout{dev: d, desc: desc, handle: h}
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
	d, h := l.dev, l.handle
	d.registry.Remove(l.id)
	d.release(func() { d.drv.destroyDescriptorSetLayout(h) })
}

func (l *DescriptorSetLayout) binding(n uint32) (rhi.DescriptorBinding, bool) {
	for _, b := range l.desc.Bindings {
		if b.Binding == n {
			return b, true
		}
	}
	return rhi.DescriptorBinding{}, false
}

// descriptorPoolBank allocates sets from a growing list of equally sized
// pools. A new pool is created once every pool reports it is full.
type descriptorPoolBank struct {
	mu    sync.Mutex
	drv   driver
	info  poolInfo
	pools []handle
	live  int
}

func newDescriptorPoolBank(drv driver, info poolInfo) *descriptorPoolBank {
	return &descriptorPoolBank{drv: drv, info: info}
}

func (b *descriptorPoolBank) allocate(layout handle) (pool, set handle, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.pools {
		set, res := b.drv.allocateDescriptorSet(p, layout)
		switch res {
		case vk.Success:
			b.live++
			return p, set, nil
		case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
			continue
		default:
			return 0, 0, fmt.Errorf("descriptor set allocation failed: %s", VulkanResultString(res, true))
		}
	}
	p, err := b.drv.createDescriptorPool(b.info)
	if err != nil {
		return 0, 0, err
	}
	b.pools = append(b.pools, p)
	set, res := b.drv.allocateDescriptorSet(p, layout)
	if res != vk.Success {
		return 0, 0, fmt.Errorf("descriptor set allocation from a new pool failed: %s", VulkanResultString(res, true))
	}
	b.live++
	return p, set, nil
}

func (b *descriptorPoolBank) free(pool, set handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drv.freeDescriptorSet(pool, set)
	b.live--
}

func (b *descriptorPoolBank) inUse() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

func (b *descriptorPoolBank) poolCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pools)
}

func (b *descriptorPoolBank) destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.pools {
		b.drv.destroyDescriptorPool(p)
	}
	b.pools = nil
	b.live = 0
}

type DescriptorSet struct {
	dev    *Device
	layout *DescriptorSetLayout
	id     uuid.UUID
	pool   handle
	handle handle
	valid  atomic.Bool
}

func (d *Device) CreateDescriptorSet(desc rhi.DescriptorSetDesc) (rhi.DescriptorSet, error) {
	l, err := cast[*DescriptorSetLayout](desc.Layout, "descriptor set layout")
	if err != nil {
		return nil, d.fail(err)
	}
	pool, set, err := d.descriptors.allocate(l.handle)
	if err != nil {
		return nil, d.fail(err)
	}
	s := &DescriptorSet{dev: d, layout: l, pool: pool, handle: set}
	s.valid.Store(true)
	s.id = d.registry.Add("DescriptorSet", "", s)
	return s, nil
}

func (s *DescriptorSet) IsValid() bool                   { return s != nil && s.valid.Load() }
func (s *DescriptorSet) Layout() rhi.DescriptorSetLayout { return s.layout }

func (s *DescriptorSet) Destroy() {
	if s == nil || !s.valid.CompareAndSwap(true, false) {
		return
	}
	d, pool, set := s.dev, s.pool, s.handle
	d.registry.Remove(s.id)
	d.release(func() { d.descriptors.free(pool, set) })
}

func (s *DescriptorSet) lookup(n uint32, want ...rhi.DescriptorType) (rhi.DescriptorBinding, error) {
	if !s.IsValid() {
		return rhi.DescriptorBinding{}, fmt.Errorf("%w: descriptor set", rhi.ErrDestroyed)
	}
	b, ok := s.layout.binding(n)
	if !ok {
		return b, s.dev.fail(fmt.Errorf("%w: binding %d is not in the layout", rhi.ErrInvalidArgument, n))
	}
	for _, t := range want {
		if b.Type == t {
			return b, nil
		}
	}
	return b, s.dev.fail(fmt.Errorf("%w: binding %d has type %d", rhi.ErrInvalidArgument, n, b.Type))
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
	need := rhi.BufferUsageUniform
	if b.Type == rhi.DescriptorStorageBuffer {
		need = rhi.BufferUsageStorage
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
	s.dev.drv.writeDescriptor(descriptorWrite{
		set:     s.handle,
		binding: binding,
		kind:    descriptorType(b.Type),
		buffer:  bb.buf,
		offset:  offset,
		size:    size,
	})
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
	layout := vk.ImageLayoutShaderReadOnlyOptimal
	ok := t.HasSRVUsage()
	if b.Type == rhi.DescriptorStorageTexture {
		layout = vk.ImageLayoutGeneral
		ok = t.HasUAVUsage()
	} else if t.desc.Format.IsDepth() {
		layout = vk.ImageLayoutDepthStencilReadOnlyOptimal
	}
	if !ok {
		return s.dev.fail(fmt.Errorf("%w: %q bound to binding %d", rhi.ErrInvalidUsage, t.desc.Name, binding))
	}
	s.dev.drv.writeDescriptor(descriptorWrite{
		set:     s.handle,
		binding: binding,
		kind:    descriptorType(b.Type),
		view:    t.view,
		layout:  layout,
	})
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
	s.dev.drv.writeDescriptor(descriptorWrite{
		set:     s.handle,
		binding: binding,
		kind:    descriptorType(b.Type),
		sampler: sm.handle,
	})
	return nil
}

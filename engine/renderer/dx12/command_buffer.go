package dx12

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// CommandBuffer is one graphics command list. Begin takes an allocator from
// the manager of its worker and resets the list onto it; the allocator goes
// back on submit keyed by the fence value, while the list itself can be
// reset again right away. Descriptor tables are bump allocated from blocks
// of the shader visible heaps that retire with the same value.
type CommandBuffer struct {
	dev     *Device
	desc    rhi.CommandBufferDesc
	id      uuid.UUID
	manager *CommandAllocatorManager
	alloc   handle
	list    handle
	state   rhi.CommandBufferState
	valid   bool

	resources tableCursor
	samplers  tableCursor

	pass        *RenderPass
	framebuffer *Framebuffer
	pipeline    *GraphicsPipeline
}

func (d *Device) CreateCommandBuffer(desc rhi.CommandBufferDesc) (rhi.CommandBuffer, error) {
	if desc.Queue != rhi.QueueGraphics {
		return nil, d.fail(fmt.Errorf("%w: only the direct queue is supported", rhi.ErrInvalidArgument))
	}
	if desc.Worker < 0 {
		return nil, d.fail(fmt.Errorf("%w: negative worker %d", rhi.ErrInvalidArgument, desc.Worker))
	}
	cb := d.newCommandBuffer(desc)
	cb.id = d.registry.Add("CommandBuffer", desc.Name, cb)
	return cb, nil
}

func (d *Device) newCommandBuffer(desc rhi.CommandBufferDesc) *CommandBuffer {
	return &CommandBuffer{
		dev:       d,
		desc:      desc,
		manager:   d.allocatorManager(desc.Worker),
		valid:     true,
		resources: tableCursor{arena: d.resourceTables},
		samplers:  tableCursor{arena: d.samplerTables},
	}
}

func (c *CommandBuffer) IsValid() bool { return c != nil && c.valid }

func (c *CommandBuffer) Destroy() {
	if !c.IsValid() {
		return
	}
	c.recycle()
	c.valid = false
	c.dev.registry.Remove(c.id)
	if list := c.list; list != 0 {
		d := c.dev
		d.release(func() { d.drv.destroyCommandList(list) })
		c.list = 0
	}
}

// recycle gives back an allocator and table blocks that were never
// submitted.
func (c *CommandBuffer) recycle() {
	if c.alloc != 0 {
		c.manager.Recycle(c.alloc)
		c.alloc = 0
	}
	c.resources.release()
	c.samplers.release()
}

func (c *CommandBuffer) State() rhi.CommandBufferState { return c.state }
func (c *CommandBuffer) IsRenderPassActive() bool      { return c.pass != nil }

func (c *CommandBuffer) Begin() error {
	if c.state == rhi.CommandBufferRecording {
		return c.dev.fail(fmt.Errorf("%w: %q", rhi.ErrAlreadyRecording, c.desc.Name))
	}
	d := c.dev
	if c.alloc == 0 {
		d.collect()
		a, err := c.manager.Get()
		if err != nil {
			return d.fail(err)
		}
		c.alloc = a
	} else if err := d.drv.resetCommandAllocator(c.alloc); err != nil {
		// Executable and never submitted: record again into the same
		// allocator.
		return d.fail(err)
	}
	c.resources.release()
	c.samplers.release()
	if c.list == 0 {
		list, err := d.drv.createCommandList(c.alloc)
		if err != nil {
			return d.fail(fmt.Errorf("failed to create command list %q: %w", c.desc.Name, err))
		}
		c.list = list
	} else if err := d.drv.resetCommandList(c.list, c.alloc); err != nil {
		return d.fail(err)
	}
	d.drv.setDescriptorHeaps(c.list, []handle{d.resourceTables.heap.info.handle, d.samplerTables.heap.info.handle})
	c.state = rhi.CommandBufferRecording
	c.pass, c.framebuffer, c.pipeline = nil, nil, nil
	return nil
}

func (c *CommandBuffer) End() error {
	if c.state != rhi.CommandBufferRecording {
		return c.dev.fail(fmt.Errorf("%w: %q is %s", rhi.ErrNotRecording, c.desc.Name, c.state))
	}
	if c.pass != nil {
		c.dev.log.Warn("render pass still active at End, ending it", "cmd", c.desc.Name)
		if err := c.EndRenderPass(); err != nil {
			return err
		}
	}
	if err := c.dev.drv.closeCommandList(c.list); err != nil {
		return c.dev.fail(err)
	}
	c.state = rhi.CommandBufferExecutable
	return nil
}

// Reset returns a recorded but unsubmitted allocator to the manager. It is
// legal from Initial and Executable.
func (c *CommandBuffer) Reset() error {
	if c.state == rhi.CommandBufferRecording {
		return c.dev.fail(fmt.Errorf("%w: cannot reset %q while recording", rhi.ErrAlreadyRecording, c.desc.Name))
	}
	c.recycle()
	c.state = rhi.CommandBufferInitial
	return nil
}

// submitted hands the allocator and the table blocks back until value
// completed.
func (c *CommandBuffer) submitted(value uint64) {
	c.manager.Return(c.alloc, value)
	c.alloc = 0
	c.resources.retire(value)
	c.samplers.retire(value)
	c.state = rhi.CommandBufferInitial
}

func (c *CommandBuffer) recording() error {
	if !c.IsValid() {
		return fmt.Errorf("%w: command buffer", rhi.ErrDestroyed)
	}
	if c.state != rhi.CommandBufferRecording {
		return c.dev.fail(fmt.Errorf("%w: %q is %s", rhi.ErrNotRecording, c.desc.Name, c.state))
	}
	return nil
}

// outsidePass is recording plus no active render pass, which copies and
// standalone clears need.
func (c *CommandBuffer) outsidePass() error {
	if err := c.recording(); err != nil {
		return err
	}
	if c.pass != nil {
		return c.dev.fail(fmt.Errorf("%w: copies and clears are recorded outside render passes", rhi.ErrRenderPassActive))
	}
	return nil
}

// transitionTexture moves t to layout and returns the layout it left.
// Layouts with the same resource state only update the tracked one.
func (c *CommandBuffer) transitionTexture(t *Texture, layout rhi.ResourceLayout) rhi.ResourceLayout {
	from := t.CurrentLayout()
	if from == layout {
		return from
	}
	before, after := textureState(from), textureState(layout)
	if before != after {
		c.dev.drv.resourceBarrier(c.list, []transition{{
			resource:    t.resource,
			before:      before,
			after:       after,
			subresource: allSubresources,
		}})
		c.dev.stats.barriers.Add(1)
	}
	t.setLayout(layout)
	return from
}

// restoreTexture puts t back to the layout a copy or clear found it in.
// Undefined contents were just written, so the new layout stays.
func (c *CommandBuffer) restoreTexture(t *Texture, prior rhi.ResourceLayout) {
	if prior != rhi.LayoutUndefined {
		c.transitionTexture(t, prior)
	}
}

func (c *CommandBuffer) transitionBuffer(b *Buffer, layout rhi.ResourceLayout) rhi.ResourceLayout {
	from := b.CurrentLayout()
	if from == layout {
		return from
	}
	before, after := b.state(from), b.state(layout)
	if before != after {
		c.dev.drv.resourceBarrier(c.list, []transition{{
			resource:    b.resource,
			before:      before,
			after:       after,
			subresource: allSubresources,
		}})
		c.dev.stats.barriers.Add(1)
	}
	b.setLayout(layout)
	return from
}

func (c *CommandBuffer) restoreBuffer(b *Buffer, prior rhi.ResourceLayout) {
	if prior != rhi.LayoutUndefined {
		c.transitionBuffer(b, prior)
	}
}

func (c *CommandBuffer) ResourceBarrier(b rhi.BarrierDesc) error {
	if err := c.recording(); err != nil {
		return err
	}
	if (b.Texture == nil) == (b.Buffer == nil) {
		return c.dev.fail(fmt.Errorf("%w: a barrier names exactly one texture or buffer", rhi.ErrInvalidArgument))
	}
	// The tracked layout decides whether a transition is needed, so an
	// OldLayout equal to NewLayout is not a no-op on its own.
	if b.Texture != nil {
		t, err := cast[*Texture](b.Texture, "texture")
		if err != nil {
			return c.dev.fail(err)
		}
		if cur := t.CurrentLayout(); cur != b.OldLayout {
			c.dev.log.Warn("barrier old layout does not match the tracked layout",
				"texture", t.desc.Name, "claimed", b.OldLayout, "tracked", cur)
		}
		c.transitionTexture(t, b.NewLayout)
		return nil
	}
	buf, err := cast[*Buffer](b.Buffer, "buffer")
	if err != nil {
		return c.dev.fail(err)
	}
	if cur := buf.CurrentLayout(); cur != b.OldLayout {
		c.dev.log.Warn("barrier old layout does not match the tracked layout",
			"buffer", buf.desc.Name, "claimed", b.OldLayout, "tracked", cur)
	}
	c.transitionBuffer(buf, b.NewLayout)
	return nil
}

func (c *CommandBuffer) BeginRenderPass(pass rhi.RenderPass, fb rhi.Framebuffer, clears []rhi.ClearValue) error {
	if err := c.recording(); err != nil {
		return err
	}
	if c.pass != nil {
		return c.dev.fail(fmt.Errorf("%w: %q", rhi.ErrRenderPassActive, c.desc.Name))
	}
	p, err := cast[*RenderPass](pass, "render pass")
	if err != nil {
		return c.dev.fail(err)
	}
	f, err := cast[*Framebuffer](fb, "framebuffer")
	if err != nil {
		return c.dev.fail(err)
	}
	if err := p.compatible(f); err != nil {
		return c.dev.fail(err)
	}
	values := make([]rhi.ClearValue, len(f.colors)+1)
	copy(values, clears)

	f.transitionToRenderTargetState(c)
	d, list := c.dev, c.list
	rtvs := make([]cpuDescriptor, len(f.colors))
	for i, t := range f.colors {
		rtvs[i] = t.rtvHandle()
	}
	var dsv cpuDescriptor
	if f.depth != nil {
		dsv = f.depth.dsvHandle()
	}
	d.drv.setRenderTargets(list, rtvs, dsv, f.depth != nil)
	d.drv.setViewport(list, viewport{width: float32(f.width), height: float32(f.height), maxDepth: 1})
	d.drv.setScissor(list, rect{right: int32(f.width), bottom: int32(f.height)})
	for i := range f.colors {
		if p.ShouldClearColor(i) {
			d.drv.clearRenderTarget(list, rtvs[i], values[i].Color)
			d.stats.clears.Add(1)
		}
	}
	if f.depth != nil {
		var flags uint32
		if p.ShouldClearDepthStencil() {
			flags |= clearFlagDepth
		}
		if p.ShouldClearStencil() {
			flags |= clearFlagStencil
		}
		if flags != 0 {
			v := values[len(f.colors)]
			d.drv.clearDepthStencil(list, dsv, flags, v.Depth, uint8(v.Stencil))
			d.stats.clears.Add(1)
		}
	}
	c.pass, c.framebuffer = p, f
	return nil
}

func (c *CommandBuffer) EndRenderPass() error {
	if err := c.recording(); err != nil {
		return err
	}
	if c.pass == nil {
		return c.dev.fail(fmt.Errorf("%w: %q", rhi.ErrNoRenderPass, c.desc.Name))
	}
	c.framebuffer.transitionToResourceState(c, &c.pass.desc)
	c.pass, c.framebuffer = nil, nil
	return nil
}

func (c *CommandBuffer) SetPipeline(p rhi.GraphicsPipeline) error {
	if err := c.recording(); err != nil {
		return err
	}
	gp, err := cast[*GraphicsPipeline](p, "pipeline")
	if err != nil {
		return c.dev.fail(err)
	}
	c.dev.drv.setPipelineState(c.list, gp.handle)
	c.dev.drv.setRootSignature(c.list, gp.rootSignature)
	c.dev.drv.setPrimitiveTopology(c.list, gp.topology)
	c.pipeline = gp
	return nil
}

func (c *CommandBuffer) SetViewport(v rhi.Viewport) error {
	if err := c.recording(); err != nil {
		return err
	}
	c.dev.drv.setViewport(c.list, viewport{
		x:        v.X,
		y:        v.Y,
		width:    v.Width,
		height:   v.Height,
		minDepth: v.MinDepth,
		maxDepth: v.MaxDepth,
	})
	return nil
}

func (c *CommandBuffer) SetScissor(r rhi.Rect) error {
	if err := c.recording(); err != nil {
		return err
	}
	c.dev.drv.setScissor(c.list, rect{
		left:   r.X,
		top:    r.Y,
		right:  r.X + int32(r.Width),
		bottom: r.Y + int32(r.Height),
	})
	return nil
}

// vertexStride is the stride the bound pipeline declares for slot, falling
// back to the stride of the buffer.
func (c *CommandBuffer) vertexStride(slot uint32, b *Buffer) uint32 {
	if c.pipeline != nil {
		for _, vb := range c.pipeline.desc.VertexBindings {
			if vb.Binding == slot {
				return vb.Stride
			}
		}
	}
	return b.desc.Stride
}

func (c *CommandBuffer) BindVertexBuffer(slot uint32, buf rhi.Buffer, offset uint64) error {
	if err := c.recording(); err != nil {
		return err
	}
	b, err := cast[*Buffer](buf, "buffer")
	if err != nil {
		return c.dev.fail(err)
	}
	if b.desc.Usage&rhi.BufferUsageVertex == 0 {
		return c.dev.fail(fmt.Errorf("%w: %q is not a vertex buffer", rhi.ErrInvalidUsage, b.desc.Name))
	}
	if offset >= b.desc.Size {
		return c.dev.fail(fmt.Errorf("%w: offset %d in %q", rhi.ErrOutOfRange, offset, b.desc.Name))
	}
	c.dev.drv.setVertexBuffer(c.list, slot, b.resource, offset, uint32(b.desc.Size-offset), c.vertexStride(slot, b))
	return nil
}

func (c *CommandBuffer) BindIndexBuffer(buf rhi.Buffer, offset uint64, t rhi.IndexType) error {
	if err := c.recording(); err != nil {
		return err
	}
	b, err := cast[*Buffer](buf, "buffer")
	if err != nil {
		return c.dev.fail(err)
	}
	if b.desc.Usage&rhi.BufferUsageIndex == 0 {
		return c.dev.fail(fmt.Errorf("%w: %q is not an index buffer", rhi.ErrInvalidUsage, b.desc.Name))
	}
	if offset%t.Size() != 0 || offset >= b.desc.Size {
		return c.dev.fail(fmt.Errorf("%w: index offset %d in %q", rhi.ErrOutOfRange, offset, b.desc.Name))
	}
	c.dev.drv.setIndexBuffer(c.list, b.resource, offset, uint32(b.desc.Size-offset), indexFormat(t))
	return nil
}

func (c *CommandBuffer) BindDescriptorSet(index uint32, set rhi.DescriptorSet) error {
	if err := c.recording(); err != nil {
		return err
	}
	if c.pipeline == nil {
		return c.dev.fail(fmt.Errorf("%w: descriptor sets bind against the root signature", rhi.ErrNoPipeline))
	}
	s, err := cast[*DescriptorSet](set, "descriptor set")
	if err != nil {
		return c.dev.fail(err)
	}
	if int(index) >= len(c.pipeline.sets) {
		return c.dev.fail(fmt.Errorf("%w: set %d, pipeline has %d", rhi.ErrOutOfRange, index, len(c.pipeline.sets)))
	}
	want := c.pipeline.layouts[index]
	if s.layout.resourceCount != want.resourceCount || s.layout.samplerCount != want.samplerCount {
		return c.dev.fail(fmt.Errorf("%w: set %d does not match the layout of the pipeline", rhi.ErrInvalidArgument, index))
	}
	res, smp, err := s.copyTables(&c.resources, &c.samplers)
	if err != nil {
		return c.dev.fail(err)
	}
	params := c.pipeline.sets[index]
	if params.resources >= 0 {
		c.dev.drv.setRootDescriptorTable(c.list, uint32(params.resources), res)
	}
	if params.samplers >= 0 {
		c.dev.drv.setRootDescriptorTable(c.list, uint32(params.samplers), smp)
	}
	return nil
}

func (c *CommandBuffer) drawable() error {
	if err := c.recording(); err != nil {
		return err
	}
	if c.pass == nil {
		return c.dev.fail(fmt.Errorf("%w: draw outside a render pass", rhi.ErrNoRenderPass))
	}
	if c.pipeline == nil {
		return c.dev.fail(fmt.Errorf("%w: %q", rhi.ErrNoPipeline, c.desc.Name))
	}
	return nil
}

func (c *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	if err := c.drawable(); err != nil {
		return err
	}
	c.dev.drv.drawInstanced(c.list, vertexCount, instanceCount, firstVertex, firstInstance)
	c.dev.stats.draws.Add(1)
	return nil
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error {
	if err := c.drawable(); err != nil {
		return err
	}
	c.dev.drv.drawIndexedInstanced(c.list, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	c.dev.stats.draws.Add(1)
	return nil
}

// transferDst reports whether a texture can be the destination of a copy.
// Anything the GPU writes or reads qualifies.
func transferDst(u rhi.TextureUsage) bool {
	return u&(rhi.TextureUsageTransferDst|rhi.TextureUsageSampled|rhi.TextureUsageColorAttachment|rhi.TextureUsageDepthStencil) != 0
}

func (c *CommandBuffer) CopyBuffer(src rhi.Buffer, srcOffset uint64, dst rhi.Buffer, dstOffset uint64, size uint64) error {
	if err := c.outsidePass(); err != nil {
		return err
	}
	s, err := cast[*Buffer](src, "buffer")
	if err != nil {
		return c.dev.fail(err)
	}
	d, err := cast[*Buffer](dst, "buffer")
	if err != nil {
		return c.dev.fail(err)
	}
	if s.desc.Usage&rhi.BufferUsageTransferSrc == 0 || d.desc.Usage&rhi.BufferUsageTransferDst == 0 {
		return c.dev.fail(fmt.Errorf("%w: copy from %q to %q", rhi.ErrInvalidUsage, s.desc.Name, d.desc.Name))
	}
	if size == 0 || !rhi.InRange(srcOffset, size, s.desc.Size) || !rhi.InRange(dstOffset, size, d.desc.Size) {
		return c.dev.fail(fmt.Errorf("%w: copy of %d bytes", rhi.ErrOutOfRange, size))
	}
	if s == d {
		// CopyBufferRegion cannot have one resource in two states.
		return c.dev.fail(fmt.Errorf("%w: copy within %q", rhi.ErrInvalidArgument, s.desc.Name))
	}
	priorSrc := c.transitionBuffer(s, rhi.LayoutTransferSrc)
	priorDst := c.transitionBuffer(d, rhi.LayoutTransferDst)
	c.dev.drv.copyBufferRegion(c.list, d.resource, dstOffset, s.resource, srcOffset, size)
	c.dev.stats.copies.Add(1)
	c.restoreBuffer(s, priorSrc)
	c.restoreBuffer(d, priorDst)
	return nil
}

// checkSubresource validates a placed footprint of t at offset in b and
// returns it.
func (c *CommandBuffer) checkSubresource(b *Buffer, t *Texture, mip, layer uint32, offset uint64) (rhi.Footprint, error) {
	if mip >= t.desc.MipLevels || layer >= t.desc.ArrayLayers {
		return rhi.Footprint{}, c.dev.fail(fmt.Errorf("%w: mip %d layer %d of %q", rhi.ErrOutOfRange, mip, layer, t.desc.Name))
	}
	if offset%textureDataPlacementAlignment != 0 {
		return rhi.Footprint{}, c.dev.fail(fmt.Errorf("%w: buffer offset %d is not aligned to %d", rhi.ErrInvalidArgument, offset, textureDataPlacementAlignment))
	}
	f := rhi.PitchedFootprint(t.desc, mip, offset, textureDataPitchAlignment, textureDataPlacementAlignment)
	if !rhi.InRange(f.Offset, f.Size, b.desc.Size) {
		return f, c.dev.fail(fmt.Errorf("%w: %d bytes at %d exceed %q", rhi.ErrOutOfRange, f.Size, f.Offset, b.desc.Name))
	}
	return f, nil
}

func (c *CommandBuffer) CopyBufferToTexture(src rhi.Buffer, srcOffset uint64, dst rhi.Texture, mip, layer uint32) error {
	if err := c.outsidePass(); err != nil {
		return err
	}
	b, err := cast[*Buffer](src, "buffer")
	if err != nil {
		return c.dev.fail(err)
	}
	t, err := cast[*Texture](dst, "texture")
	if err != nil {
		return c.dev.fail(err)
	}
	if b.desc.Usage&rhi.BufferUsageTransferSrc == 0 || !transferDst(t.desc.Usage) {
		return c.dev.fail(fmt.Errorf("%w: copy from %q to %q", rhi.ErrInvalidUsage, b.desc.Name, t.desc.Name))
	}
	f, err := c.checkSubresource(b, t, mip, layer, srcOffset)
	if err != nil {
		return err
	}
	priorSrc := c.transitionBuffer(b, rhi.LayoutTransferSrc)
	priorDst := c.transitionTexture(t, rhi.LayoutTransferDst)
	c.dev.drv.copyBufferToTexture(c.list, b.resource, placedFootprintOf(t, f), t.resource, subresource(t.desc, mip, layer))
	c.dev.stats.copies.Add(1)
	c.restoreBuffer(b, priorSrc)
	c.restoreTexture(t, priorDst)
	return nil
}

func (c *CommandBuffer) CopyTextureToBuffer(src rhi.Texture, mip, layer uint32, dst rhi.Buffer, dstOffset uint64) error {
	if err := c.outsidePass(); err != nil {
		return err
	}
	t, err := cast[*Texture](src, "texture")
	if err != nil {
		return c.dev.fail(err)
	}
	b, err := cast[*Buffer](dst, "buffer")
	if err != nil {
		return c.dev.fail(err)
	}
	if t.desc.Usage&rhi.TextureUsageTransferSrc == 0 || b.desc.Usage&rhi.BufferUsageTransferDst == 0 {
		return c.dev.fail(fmt.Errorf("%w: copy from %q to %q", rhi.ErrInvalidUsage, t.desc.Name, b.desc.Name))
	}
	f, err := c.checkSubresource(b, t, mip, layer, dstOffset)
	if err != nil {
		return err
	}
	priorSrc := c.transitionTexture(t, rhi.LayoutTransferSrc)
	priorDst := c.transitionBuffer(b, rhi.LayoutTransferDst)
	c.dev.drv.copyTextureToBuffer(c.list, t.resource, subresource(t.desc, mip, layer), b.resource, placedFootprintOf(t, f))
	c.dev.stats.copies.Add(1)
	c.restoreTexture(t, priorSrc)
	c.restoreBuffer(b, priorDst)
	return nil
}

func (c *CommandBuffer) CopyTexture(src, dst rhi.Texture) error {
	if err := c.outsidePass(); err != nil {
		return err
	}
	s, err := cast[*Texture](src, "texture")
	if err != nil {
		return c.dev.fail(err)
	}
	d, err := cast[*Texture](dst, "texture")
	if err != nil {
		return c.dev.fail(err)
	}
	if s == d {
		return c.dev.fail(fmt.Errorf("%w: copy of %q onto itself", rhi.ErrInvalidArgument, s.desc.Name))
	}
	if s.desc.Usage&rhi.TextureUsageTransferSrc == 0 || !transferDst(d.desc.Usage) {
		return c.dev.fail(fmt.Errorf("%w: copy from %q to %q", rhi.ErrInvalidUsage, s.desc.Name, d.desc.Name))
	}
	sd, dd := s.desc, d.desc
	if sd.Format != dd.Format || sd.Width != dd.Width || sd.Height != dd.Height || sd.Depth != dd.Depth ||
		sd.MipLevels != dd.MipLevels || sd.ArrayLayers != dd.ArrayLayers {
		return c.dev.fail(fmt.Errorf("%w: %q and %q differ in format or extent", rhi.ErrInvalidArgument, sd.Name, dd.Name))
	}
	priorSrc := c.transitionTexture(s, rhi.LayoutTransferSrc)
	priorDst := c.transitionTexture(d, rhi.LayoutTransferDst)
	c.dev.drv.copyResource(c.list, d.resource, s.resource)
	c.dev.stats.copies.Add(1)
	c.restoreTexture(s, priorSrc)
	c.restoreTexture(d, priorDst)
	return nil
}

// ClearColor clears through the render target view, which needs the
// texture in RENDER_TARGET.
func (c *CommandBuffer) ClearColor(tex rhi.Texture, color [4]float32) error {
	if err := c.outsidePass(); err != nil {
		return err
	}
	t, err := cast[*Texture](tex, "texture")
	if err != nil {
		return c.dev.fail(err)
	}
	if !t.HasRTVUsage() {
		return c.dev.fail(fmt.Errorf("%w: %q has no render target view", rhi.ErrInvalidUsage, t.desc.Name))
	}
	prior := c.transitionTexture(t, rhi.LayoutColorAttachment)
	c.dev.drv.clearRenderTarget(c.list, t.rtvHandle(), color)
	c.dev.stats.clears.Add(1)
	c.restoreTexture(t, prior)
	return nil
}

func (c *CommandBuffer) ClearDepthStencil(tex rhi.Texture, depth float32, stencil uint32) error {
	if err := c.outsidePass(); err != nil {
		return err
	}
	t, err := cast[*Texture](tex, "texture")
	if err != nil {
		return c.dev.fail(err)
	}
	if !t.HasDSVUsage() {
		return c.dev.fail(fmt.Errorf("%w: %q has no depth stencil view", rhi.ErrInvalidUsage, t.desc.Name))
	}
	flags := clearFlagDepth
	if t.desc.Format.HasStencil() {
		flags |= clearFlagStencil
	}
	prior := c.transitionTexture(t, rhi.LayoutDepthStencilAttachment)
	c.dev.drv.clearDepthStencil(c.list, t.dsvHandle(), flags, depth, uint8(stencil))
	c.dev.stats.clears.Add(1)
	c.restoreTexture(t, prior)
	return nil
}

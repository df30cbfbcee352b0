package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// CommandBuffer records into a command pool taken from the manager of its
// worker on Begin. The pool goes back to the manager on submit, keyed by the
// submission value, so it is only reset once the GPU is done with it.
type CommandBuffer struct {
	dev     *Device
	desc    rhi.CommandBufferDesc
	id      uuid.UUID
	manager *CommandPoolManager
	entry   *poolEntry
	state   rhi.CommandBufferState
	valid   bool

	pass        *RenderPass
	framebuffer *Framebuffer
	pipeline    *GraphicsPipeline
}

func (d *Device) CreateCommandBuffer(desc rhi.CommandBufferDesc) (rhi.CommandBuffer, error) {
	if desc.Queue != rhi.QueueGraphics {
		return nil, d.fail(fmt.Errorf("%w: only the graphics queue is supported", rhi.ErrInvalidArgument))
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
		dev:     d,
		desc:    desc,
		manager: d.poolManager(desc.Worker),
		valid:   true,
	}
}

func (c *CommandBuffer) IsValid() bool { return c != nil && c.valid }

func (c *CommandBuffer) Destroy() {
	if !c.IsValid() {
		return
	}
	if c.entry != nil {
		c.manager.Recycle(c.entry)
		c.entry = nil
	}
	c.valid = false
	c.dev.registry.Remove(c.id)
}

func (c *CommandBuffer) State() rhi.CommandBufferState { return c.state }
func (c *CommandBuffer) IsRenderPassActive() bool      { return c.pass != nil }

func (c *CommandBuffer) Begin() error {
	if c.state == rhi.CommandBufferRecording {
		return c.dev.fail(fmt.Errorf("%w: %q", rhi.ErrAlreadyRecording, c.desc.Name))
	}
	if c.entry == nil {
		c.dev.collect()
		e, err := c.manager.Get()
		if err != nil {
			return c.dev.fail(err)
		}
		c.entry = e
	} else if err := c.dev.drv.resetCommandPool(c.entry.pool); err != nil {
		// Executable and never submitted: record again into the same pool.
		return c.dev.fail(err)
	}
	if err := c.dev.drv.beginCommandBuffer(c.entry.cmd); err != nil {
		return c.dev.fail(err)
	}
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
	if err := c.dev.drv.endCommandBuffer(c.entry.cmd); err != nil {
		return c.dev.fail(err)
	}
	c.state = rhi.CommandBufferExecutable
	return nil
}

// Reset returns a recorded but unsubmitted pool to the manager. It is legal
// from Initial and Executable.
func (c *CommandBuffer) Reset() error {
	if c.state == rhi.CommandBufferRecording {
		return c.dev.fail(fmt.Errorf("%w: cannot reset %q while recording", rhi.ErrAlreadyRecording, c.desc.Name))
	}
	if c.entry != nil {
		c.manager.Recycle(c.entry)
		c.entry = nil
	}
	c.state = rhi.CommandBufferInitial
	return nil
}

// submitted hands the pool back to the manager until value completed.
func (c *CommandBuffer) submitted(value uint64) {
	c.manager.Return(c.entry, value)
	c.entry = nil
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

// outsidePass is recording plus no active render pass, which transfer
// commands need.
func (c *CommandBuffer) outsidePass() error {
	if err := c.recording(); err != nil {
		return err
	}
	if c.pass != nil {
		return c.dev.fail(fmt.Errorf("%w: transfer commands are recorded outside render passes", rhi.ErrRenderPassActive))
	}
	return nil
}

// transitionTexture moves t to layout and returns the layout it left. Layouts
// with the same native layout only update the tracked one.
func (c *CommandBuffer) transitionTexture(t *Texture, layout rhi.ResourceLayout) rhi.ResourceLayout {
	from := t.CurrentLayout()
	if from == layout {
		return from
	}
	src, dst := layoutState(from), layoutState(layout)
	if src.layout != dst.layout {
		c.dev.drv.cmdPipelineBarrier(c.entry.cmd, src.stages, dst.stages, []imageBarrier{{
			image:     t.image,
			oldLayout: src.layout,
			newLayout: dst.layout,
			srcAccess: src.access,
			dstAccess: dst.access,
			aspect:    aspectMask(t.desc.Format),
			mips:      t.desc.MipLevels,
			layers:    t.desc.ArrayLayers,
		}}, nil)
		c.dev.stats.barriers.Add(1)
	}
	t.setLayout(layout)
	return from
}

// restoreTexture puts t back to the layout a transfer command found it in.
// Undefined contents were just written, so the transfer layout stays.
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
	srcAccess, srcStages := bufferAccess(from, b.desc.Usage)
	dstAccess, dstStages := bufferAccess(layout, b.desc.Usage)
	if srcAccess != dstAccess {
		c.dev.drv.cmdPipelineBarrier(c.entry.cmd, srcStages, dstStages, nil, []bufferBarrier{{
			buffer:    b.buf,
			srcAccess: srcAccess,
			dstAccess: dstAccess,
			size:      b.desc.Size,
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

	// The native pass starts from the attachment layouts; get there first.
	n := len(f.colors)
	if f.depth != nil {
		n++
	}
	values := make([]rhi.ClearValue, n)
	copy(values, clears)
	for _, t := range f.colors {
		c.transitionTexture(t, rhi.LayoutColorAttachment)
	}
	if f.depth != nil {
		c.transitionTexture(f.depth, rhi.LayoutDepthStencilAttachment)
	}
	c.dev.drv.cmdBeginRenderPass(c.entry.cmd, beginRenderPassInfo{
		renderPass:  p.handle,
		framebuffer: f.handle,
		width:       f.width,
		height:      f.height,
		clears:      values,
	})
	for i := range f.colors {
		if p.ShouldClearColor(i) {
			c.dev.stats.clears.Add(1)
		}
	}
	if p.ShouldClearDepthStencil() {
		c.dev.stats.clears.Add(1)
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
	c.dev.drv.cmdEndRenderPass(c.entry.cmd)
	// The native pass performed the final transitions.
	for i, t := range c.framebuffer.colors {
		t.setLayout(c.pass.desc.ColorAttachments[i].ResolvedFinalLayout())
	}
	if c.framebuffer.depth != nil {
		c.framebuffer.depth.setLayout(c.pass.desc.DepthStencilAttachment.ResolvedFinalLayout())
	}
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
	c.dev.drv.cmdBindPipeline(c.entry.cmd, gp.handle)
	c.pipeline = gp
	return nil
}

func (c *CommandBuffer) SetViewport(v rhi.Viewport) error {
	if err := c.recording(); err != nil {
		return err
	}
	c.dev.drv.cmdSetViewport(c.entry.cmd, vk.Viewport{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	})
	return nil
}

func (c *CommandBuffer) SetScissor(r rhi.Rect) error {
	if err := c.recording(); err != nil {
		return err
	}
	c.dev.drv.cmdSetScissor(c.entry.cmd, vk.Rect2D{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Width, Height: r.Height},
	})
	return nil
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
	c.dev.drv.cmdBindVertexBuffer(c.entry.cmd, slot, b.buf, offset)
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
	c.dev.drv.cmdBindIndexBuffer(c.entry.cmd, b.buf, offset, indexType(t))
	return nil
}

func (c *CommandBuffer) BindDescriptorSet(index uint32, set rhi.DescriptorSet) error {
	if err := c.recording(); err != nil {
		return err
	}
	if c.pipeline == nil {
		return c.dev.fail(fmt.Errorf("%w: descriptor sets bind against the pipeline layout", rhi.ErrNoPipeline))
	}
	s, err := cast[*DescriptorSet](set, "descriptor set")
	if err != nil {
		return c.dev.fail(err)
	}
	if int(index) >= len(c.pipeline.desc.DescriptorSetLayouts) {
		return c.dev.fail(fmt.Errorf("%w: set %d, pipeline has %d", rhi.ErrOutOfRange, index, len(c.pipeline.desc.DescriptorSetLayouts)))
	}
	c.dev.drv.cmdBindDescriptorSet(c.entry.cmd, c.pipeline.layout, index, s.handle)
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
	c.dev.drv.cmdDraw(c.entry.cmd, vertexCount, instanceCount, firstVertex, firstInstance)
	c.dev.stats.draws.Add(1)
	return nil
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error {
	if err := c.drawable(); err != nil {
		return err
	}
	c.dev.drv.cmdDrawIndexed(c.entry.cmd, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	c.dev.stats.draws.Add(1)
	return nil
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
	if s == d && srcOffset < dstOffset+size && dstOffset < srcOffset+size {
		return c.dev.fail(fmt.Errorf("%w: overlapping copy within %q", rhi.ErrInvalidArgument, s.desc.Name))
	}
	priorSrc := c.transitionBuffer(s, rhi.LayoutTransferSrc)
	priorDst := c.transitionBuffer(d, rhi.LayoutTransferDst)
	c.dev.drv.cmdCopyBuffer(c.entry.cmd, s.buf, d.buf, vk.BufferCopy{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(dstOffset),
		Size:      vk.DeviceSize(size),
	})
	c.dev.stats.copies.Add(1)
	c.restoreBuffer(s, priorSrc)
	c.restoreBuffer(d, priorDst)
	return nil
}

// bufferImageRegion describes one tightly packed subresource at offset.
func bufferImageRegion(t *Texture, mip, layer uint32, offset uint64) vk.BufferImageCopy {
	w, h, d := rhi.MipSize(t.desc, mip)
	return vk.BufferImageCopy{
		BufferOffset: vk.DeviceSize(offset),
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     copyAspect(t.desc.Format),
			MipLevel:       mip,
			BaseArrayLayer: layer,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{Width: w, Height: h, Depth: d},
	}
}

// copyAspect is the aspect buffer copies address: depth only for depth
// formats.
func copyAspect(f rhi.Format) vk.ImageAspectFlags {
	if f.IsDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func (c *CommandBuffer) checkSubresource(b *Buffer, t *Texture, mip, layer uint32, offset uint64) error {
	if mip >= t.desc.MipLevels || layer >= t.desc.ArrayLayers {
		return c.dev.fail(fmt.Errorf("%w: mip %d layer %d of %q", rhi.ErrOutOfRange, mip, layer, t.desc.Name))
	}
	texel := uint64(t.desc.Format.BytesPerPixel())
	if offset%4 != 0 || offset%texel != 0 {
		return c.dev.fail(fmt.Errorf("%w: buffer offset %d is not aligned to 4 and %d", rhi.ErrInvalidArgument, offset, texel))
	}
	f := rhi.PitchedFootprint(t.desc, mip, offset, 0, 0)
	if !rhi.InRange(f.Offset, f.Size, b.desc.Size) {
		return c.dev.fail(fmt.Errorf("%w: %d bytes at %d exceed %q", rhi.ErrOutOfRange, f.Size, f.Offset, b.desc.Name))
	}
	return nil
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
	if err := c.checkSubresource(b, t, mip, layer, srcOffset); err != nil {
		return err
	}
	priorSrc := c.transitionBuffer(b, rhi.LayoutTransferSrc)
	priorDst := c.transitionTexture(t, rhi.LayoutTransferDst)
	c.dev.drv.cmdCopyBufferToImage(c.entry.cmd, b.buf, t.image, bufferImageRegion(t, mip, layer, srcOffset))
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
	if err := c.checkSubresource(b, t, mip, layer, dstOffset); err != nil {
		return err
	}
	priorSrc := c.transitionTexture(t, rhi.LayoutTransferSrc)
	priorDst := c.transitionBuffer(b, rhi.LayoutTransferDst)
	c.dev.drv.cmdCopyImageToBuffer(c.entry.cmd, t.image, b.buf, bufferImageRegion(t, mip, layer, dstOffset))
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
	regions := make([]vk.ImageCopy, 0, sd.MipLevels)
	for mip := uint32(0); mip < sd.MipLevels; mip++ {
		w, h, depth := rhi.MipSize(sd, mip)
		sub := vk.ImageSubresourceLayers{
			AspectMask: aspectMask(sd.Format),
			MipLevel:   mip,
			LayerCount: sd.ArrayLayers,
		}
		regions = append(regions, vk.ImageCopy{
			SrcSubresource: sub,
			DstSubresource: sub,
			Extent:         vk.Extent3D{Width: w, Height: h, Depth: depth},
		})
	}
	priorSrc := c.transitionTexture(s, rhi.LayoutTransferSrc)
	priorDst := c.transitionTexture(d, rhi.LayoutTransferDst)
	c.dev.drv.cmdCopyImage(c.entry.cmd, s.image, d.image, regions)
	c.dev.stats.copies.Add(1)
	c.restoreTexture(s, priorSrc)
	c.restoreTexture(d, priorDst)
	return nil
}

func (c *CommandBuffer) ClearColor(tex rhi.Texture, color [4]float32) error {
	if err := c.outsidePass(); err != nil {
		return err
	}
	t, err := cast[*Texture](tex, "texture")
	if err != nil {
		return c.dev.fail(err)
	}
	if !t.HasRTVUsage() {
		return c.dev.fail(fmt.Errorf("%w: %q is not a color attachment", rhi.ErrInvalidUsage, t.desc.Name))
	}
	prior := c.transitionTexture(t, rhi.LayoutTransferDst)
	c.dev.drv.cmdClearColorImage(c.entry.cmd, t.image, color)
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
		return c.dev.fail(fmt.Errorf("%w: %q is not a depth stencil attachment", rhi.ErrInvalidUsage, t.desc.Name))
	}
	prior := c.transitionTexture(t, rhi.LayoutTransferDst)
	c.dev.drv.cmdClearDepthStencilImage(c.entry.cmd, t.image, depth, stencil)
	c.dev.stats.clears.Add(1)
	c.restoreTexture(t, prior)
	return nil
}

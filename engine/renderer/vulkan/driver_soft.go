package vulkan

import (
	"fmt"
	"sync"
	"sync/atomic"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rhi/engine/containers"
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
	"github.com/spaghettifunk/rhi/engine/renderer/softgpu"
)

type softBuffer struct {
	buf         *softgpu.Buffer
	hostVisible bool
}

// softImage tracks the layout each recorded command leaves the image in, so
// the driver can check the layouts the backend claims in barriers.
type softImage struct {
	img    *softgpu.Image
	info   imageInfo
	layout vk.ImageLayout
}

type softView struct {
	image handle
}

type softCommandBuffer struct {
	list *softgpu.CommandList
	// pass is the render pass being recorded, at record time.
	pass *softPassState
}

type softPassState struct {
	pass        *softRenderPass
	framebuffer *softFramebuffer
}

type softCommandPool struct {
	cmds    []*softCommandBuffer
	handles []handle
}

type softRenderPass struct {
	info renderPassInfo
}

type softFramebuffer struct {
	info   framebufferInfo
	images []handle
}

type softDescriptorPool struct {
	maxSets uint32
	used    uint32
}

type softDescriptorSet struct {
	pool   handle
	layout handle
	writes map[uint32]descriptorWrite
}

type softFence struct {
	timeline *softgpu.Fence
	mu       sync.Mutex
	target   uint64
}

type softSemaphore struct {
	timeline *softgpu.Fence
	mu       sync.Mutex
	signals  uint64
	waits    uint64
}

type softSwapchain struct {
	surface *softgpu.Surface
	images  []handle
}

// softObject stands for native objects without observable state.
type softObject struct {
	kind string
}

// softDriver executes the driver interface on an in-memory GPU.
type softDriver struct {
	queue   *softgpu.Queue
	objects *containers.HandleTable

	mu           sync.Mutex
	layoutErrors atomic.Int64
	// failSubmit makes the n-th following queueSubmit fail, like a lost
	// device would.
	failSubmit atomic.Int64
}

func newSoftDriver() *softDriver {
	return &softDriver{
		queue:   softgpu.NewQueue(),
		objects: containers.NewHandleTable(),
	}
}

func (d *softDriver) name() string { return "headless" }

func (d *softDriver) destroy() {
	d.queue.WaitIdle()
	d.queue.Close()
}

func (d *softDriver) waitIdle() { d.queue.WaitIdle() }

func (d *softDriver) add(obj interface{}) handle {
	return handle(d.objects.Add(obj))
}

func (d *softDriver) remove(h handle) {
	d.objects.Remove(uint64(h))
}

func lookup[T any](d *softDriver, h handle) T {
	v, _ := containers.Lookup[T](d.objects, uint64(h))
	return v
}

// expectLayout checks the recorded layout of an image and moves it on.
func (d *softDriver) expectLayout(h handle, want, next vk.ImageLayout) {
	img := lookup[*softImage](d, h)
	if img == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if want != vk.ImageLayoutUndefined && img.layout != want {
		d.layoutErrors.Add(1)
		core.LogWarn("headless vulkan: image %d is in layout %d, command expects %d", h, img.layout, want)
	}
	img.layout = next
}

func (d *softDriver) imageLayout(h handle) vk.ImageLayout {
	img := lookup[*softImage](d, h)
	if img == nil {
		return vk.ImageLayoutUndefined
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return img.layout
}

func (d *softDriver) createBuffer(info bufferInfo) (handle, error) {
	if info.size == 0 {
		return 0, fmt.Errorf("%w: zero sized buffer", rhi.ErrInvalidArgument)
	}
	return d.add(&softBuffer{buf: softgpu.NewBuffer(info.size), hostVisible: info.hostVisible}), nil
}

func (d *softDriver) destroyBuffer(h handle) { d.remove(h) }

func (d *softDriver) mapBuffer(h handle) ([]byte, error) {
	b := lookup[*softBuffer](d, h)
	if b == nil {
		return nil, rhi.ErrDestroyed
	}
	if !b.hostVisible {
		return nil, rhi.ErrNotMappable
	}
	return b.buf.Data, nil
}

func (d *softDriver) unmapBuffer(h handle) {}

func (d *softDriver) createImage(info imageInfo) (handle, error) {
	if info.width == 0 || info.format.BytesPerPixel() == 0 {
		return 0, fmt.Errorf("%w: image %dx%d of format %s", rhi.ErrInvalidArgument, info.width, info.height, info.format)
	}
	img := softgpu.NewImage(info.format, info.width, info.height, info.depth, info.mips, info.layers)
	return d.add(&softImage{img: img, info: info, layout: vk.ImageLayoutUndefined}), nil
}

func (d *softDriver) destroyImage(h handle) { d.remove(h) }

func (d *softDriver) createImageView(info viewInfo) (handle, error) {
	if lookup[*softImage](d, info.image) == nil {
		return 0, fmt.Errorf("%w: view of unknown image", rhi.ErrInvalidArgument)
	}
	return d.add(&softView{image: info.image}), nil
}

func (d *softDriver) destroyImageView(h handle) { d.remove(h) }

func (d *softDriver) createSampler(info samplerInfo) (handle, error) {
	return d.add(&softObject{kind: "sampler"}), nil
}

func (d *softDriver) destroySampler(h handle) { d.remove(h) }

func (d *softDriver) createShaderModule(code []byte) (handle, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, fmt.Errorf("%w: SPIR-V size must be a non-zero multiple of 4, got %d", rhi.ErrInvalidArgument, len(code))
	}
	return d.add(&softObject{kind: "shader"}), nil
}

func (d *softDriver) destroyShaderModule(h handle) { d.remove(h) }

func (d *softDriver) createDescriptorSetLayout(bindings []layoutBinding) (handle, error) {
	return d.add(&softObject{kind: "set layout"}), nil
}

func (d *softDriver) destroyDescriptorSetLayout(h handle) { d.remove(h) }

func (d *softDriver) createDescriptorPool(info poolInfo) (handle, error) {
	return d.add(&softDescriptorPool{maxSets: info.maxSets}), nil
}

func (d *softDriver) destroyDescriptorPool(h handle) { d.remove(h) }

func (d *softDriver) allocateDescriptorSet(pool, layout handle) (handle, vk.Result) {
	p := lookup[*softDescriptorPool](d, pool)
	if p == nil {
		return 0, vk.ErrorInitializationFailed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.used >= p.maxSets {
		return 0, vk.ErrorOutOfPoolMemory
	}
	p.used++
	return d.add(&softDescriptorSet{pool: pool, layout: layout, writes: make(map[uint32]descriptorWrite)}), vk.Success
}

func (d *softDriver) freeDescriptorSet(pool, set handle) {
	if p := lookup[*softDescriptorPool](d, pool); p != nil {
		d.mu.Lock()
		p.used--
		d.mu.Unlock()
	}
	d.remove(set)
}

func (d *softDriver) writeDescriptor(w descriptorWrite) {
	if s := lookup[*softDescriptorSet](d, w.set); s != nil {
		d.mu.Lock()
		s.writes[w.binding] = w
		d.mu.Unlock()
	}
}

func (d *softDriver) createPipelineLayout(setLayouts []handle, pushConstantSize uint32) (handle, error) {
	return d.add(&softObject{kind: "pipeline layout"}), nil
}

func (d *softDriver) destroyPipelineLayout(h handle) { d.remove(h) }

func (d *softDriver) createGraphicsPipeline(info pipelineInfo) (handle, error) {
	if lookup[*softObject](d, info.vertex) == nil {
		return 0, fmt.Errorf("%w: pipeline without vertex shader", rhi.ErrInvalidArgument)
	}
	return d.add(&softObject{kind: "pipeline"}), nil
}

func (d *softDriver) destroyPipeline(h handle) { d.remove(h) }

func (d *softDriver) createRenderPass(info renderPassInfo) (handle, error) {
	return d.add(&softRenderPass{info: info}), nil
}

func (d *softDriver) destroyRenderPass(h handle) { d.remove(h) }

func (d *softDriver) createFramebuffer(info framebufferInfo) (handle, error) {
	fb := &softFramebuffer{info: info}
	for _, v := range info.views {
		view := lookup[*softView](d, v)
		if view == nil {
			return 0, fmt.Errorf("%w: framebuffer with unknown view", rhi.ErrInvalidArgument)
		}
		fb.images = append(fb.images, view.image)
	}
	return d.add(fb), nil
}

func (d *softDriver) destroyFramebuffer(h handle) { d.remove(h) }

func (d *softDriver) createCommandPool() (handle, error) {
	return d.add(&softCommandPool{}), nil
}

func (d *softDriver) resetCommandPool(h handle) error {
	p := lookup[*softCommandPool](d, h)
	if p == nil {
		return rhi.ErrDestroyed
	}
	for _, c := range p.cmds {
		c.list.Reset()
		c.pass = nil
	}
	return nil
}

func (d *softDriver) destroyCommandPool(h handle) {
	if p, ok := d.objects.Remove(uint64(h)).(*softCommandPool); ok {
		for _, c := range p.handles {
			d.remove(c)
		}
	}
}

func (d *softDriver) allocateCommandBuffer(pool handle) (handle, error) {
	p := lookup[*softCommandPool](d, pool)
	if p == nil {
		return 0, rhi.ErrDestroyed
	}
	c := &softCommandBuffer{list: softgpu.NewCommandList()}
	h := d.add(c)
	p.cmds = append(p.cmds, c)
	p.handles = append(p.handles, h)
	return h, nil
}

func (d *softDriver) beginCommandBuffer(cmd handle) error {
	c := lookup[*softCommandBuffer](d, cmd)
	if c == nil {
		return rhi.ErrDestroyed
	}
	c.list.Reset()
	c.pass = nil
	return nil
}

func (d *softDriver) endCommandBuffer(cmd handle) error {
	c := lookup[*softCommandBuffer](d, cmd)
	if c == nil {
		return rhi.ErrDestroyed
	}
	return c.list.Close()
}

func (d *softDriver) record(cmd handle, op int, fn func()) {
	c := lookup[*softCommandBuffer](d, cmd)
	if c == nil {
		core.LogError("headless vulkan: recording into unknown command buffer %d", cmd)
		return
	}
	if err := c.list.Record(op, fn); err != nil {
		core.LogError("headless vulkan: %s", err)
	}
}

func (d *softDriver) cmdPipelineBarrier(cmd handle, srcStages, dstStages vk.PipelineStageFlags, images []imageBarrier, buffers []bufferBarrier) {
	for _, b := range images {
		d.expectLayout(b.image, b.oldLayout, b.newLayout)
	}
	d.record(cmd, softgpu.OpBarrier, func() {})
}

func (d *softDriver) cmdBeginRenderPass(cmd handle, info beginRenderPassInfo) {
	c := lookup[*softCommandBuffer](d, cmd)
	pass := lookup[*softRenderPass](d, info.renderPass)
	fb := lookup[*softFramebuffer](d, info.framebuffer)
	if c == nil || pass == nil || fb == nil {
		core.LogError("headless vulkan: render pass begun with unknown objects")
		return
	}
	c.pass = &softPassState{pass: pass, framebuffer: fb}

	attachments := append([]attachmentInfo(nil), pass.info.colors...)
	if pass.info.hasDepth {
		attachments = append(attachments, pass.info.depth)
	}
	for i, a := range attachments {
		if i >= len(fb.images) {
			break
		}
		h := fb.images[i]
		d.expectLayout(h, a.initialLayout, a.initialLayout)
		if a.loadOp != vk.AttachmentLoadOpClear || i >= len(info.clears) {
			continue
		}
		img := lookup[*softImage](d, h)
		clear := info.clears[i]
		var texel []byte
		if a.format.IsDepth() {
			texel = softgpu.EncodeDepthStencil(a.format, clear.Depth, clear.Stencil)
		} else {
			texel = softgpu.EncodeColor(a.format, clear.Color)
		}
		d.record(cmd, softgpu.OpClear, func() { img.img.Fill(0, 0, texel) })
	}
}

func (d *softDriver) cmdEndRenderPass(cmd handle) {
	c := lookup[*softCommandBuffer](d, cmd)
	if c == nil || c.pass == nil {
		core.LogError("headless vulkan: no render pass to end")
		return
	}
	p := c.pass
	c.pass = nil
	attachments := append([]attachmentInfo(nil), p.pass.info.colors...)
	if p.pass.info.hasDepth {
		attachments = append(attachments, p.pass.info.depth)
	}
	for i, a := range attachments {
		if i < len(p.framebuffer.images) {
			d.expectLayout(p.framebuffer.images[i], vk.ImageLayoutUndefined, a.finalLayout)
		}
	}
	d.record(cmd, softgpu.OpOther, func() {})
}

func (d *softDriver) cmdBindPipeline(cmd, pipeline handle) {
	d.record(cmd, softgpu.OpOther, func() {})
}

func (d *softDriver) cmdSetViewport(cmd handle, v vk.Viewport) {
	d.record(cmd, softgpu.OpOther, func() {})
}

func (d *softDriver) cmdSetScissor(cmd handle, r vk.Rect2D) {
	d.record(cmd, softgpu.OpOther, func() {})
}

func (d *softDriver) cmdBindVertexBuffer(cmd handle, slot uint32, buf handle, offset uint64) {
	d.record(cmd, softgpu.OpOther, func() {})
}

func (d *softDriver) cmdBindIndexBuffer(cmd handle, buf handle, offset uint64, t vk.IndexType) {
	d.record(cmd, softgpu.OpOther, func() {})
}

func (d *softDriver) cmdBindDescriptorSet(cmd handle, layout handle, index uint32, set handle) {
	d.record(cmd, softgpu.OpOther, func() {})
}

func (d *softDriver) cmdDraw(cmd handle, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.record(cmd, softgpu.OpDraw, func() {})
}

func (d *softDriver) cmdDrawIndexed(cmd handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.record(cmd, softgpu.OpDraw, func() {})
}

func (d *softDriver) cmdCopyBuffer(cmd handle, src, dst handle, region vk.BufferCopy) {
	s, t := lookup[*softBuffer](d, src), lookup[*softBuffer](d, dst)
	if s == nil || t == nil {
		core.LogError("headless vulkan: copy between unknown buffers")
		return
	}
	so, do, n := uint64(region.SrcOffset), uint64(region.DstOffset), uint64(region.Size)
	d.record(cmd, softgpu.OpCopy, func() {
		copy(t.buf.Data[do:do+n], s.buf.Data[so:so+n])
	})
}

// regionFootprint is the buffer layout a copy region describes.
func regionFootprint(r vk.BufferImageCopy, format rhi.Format) rhi.Footprint {
	rowLength, imageHeight := r.BufferRowLength, r.BufferImageHeight
	if rowLength == 0 {
		rowLength = r.ImageExtent.Width
	}
	if imageHeight == 0 {
		imageHeight = r.ImageExtent.Height
	}
	pitch := uint64(rowLength) * uint64(format.BytesPerPixel())
	slice := pitch * uint64(imageHeight)
	row := uint64(r.ImageExtent.Width) * uint64(format.BytesPerPixel())
	return rhi.Footprint{
		Offset:     uint64(r.BufferOffset),
		Width:      r.ImageExtent.Width,
		Height:     r.ImageExtent.Height,
		Depth:      r.ImageExtent.Depth,
		RowPitch:   pitch,
		Rows:       r.ImageExtent.Height,
		SlicePitch: slice,
		Size:       slice*uint64(r.ImageExtent.Depth-1) + pitch*uint64(r.ImageExtent.Height-1) + row,
	}
}

func (d *softDriver) cmdCopyBufferToImage(cmd handle, src, dst handle, region vk.BufferImageCopy) {
	b, img := lookup[*softBuffer](d, src), lookup[*softImage](d, dst)
	if b == nil || img == nil {
		core.LogError("headless vulkan: buffer to image copy with unknown objects")
		return
	}
	d.expectLayout(dst, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferDstOptimal)
	f := regionFootprint(region, img.info.format)
	if f.Offset+f.Size > uint64(len(b.buf.Data)) {
		core.LogError("headless vulkan: copy region exceeds buffer of %d bytes", len(b.buf.Data))
		return
	}
	sub := region.ImageSubresource
	d.record(cmd, softgpu.OpCopy, func() {
		img.img.CopyFromBuffer(b.buf.Data, f, sub.MipLevel, sub.BaseArrayLayer)
	})
}

func (d *softDriver) cmdCopyImageToBuffer(cmd handle, src, dst handle, region vk.BufferImageCopy) {
	img, b := lookup[*softImage](d, src), lookup[*softBuffer](d, dst)
	if b == nil || img == nil {
		core.LogError("headless vulkan: image to buffer copy with unknown objects")
		return
	}
	d.expectLayout(src, vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutTransferSrcOptimal)
	f := regionFootprint(region, img.info.format)
	if f.Offset+f.Size > uint64(len(b.buf.Data)) {
		core.LogError("headless vulkan: copy region exceeds buffer of %d bytes", len(b.buf.Data))
		return
	}
	sub := region.ImageSubresource
	d.record(cmd, softgpu.OpCopy, func() {
		img.img.CopyToBuffer(b.buf.Data, f, sub.MipLevel, sub.BaseArrayLayer)
	})
}

func (d *softDriver) cmdCopyImage(cmd handle, src, dst handle, regions []vk.ImageCopy) {
	s, t := lookup[*softImage](d, src), lookup[*softImage](d, dst)
	if s == nil || t == nil {
		core.LogError("headless vulkan: copy between unknown images")
		return
	}
	d.expectLayout(src, vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutTransferSrcOptimal)
	d.expectLayout(dst, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferDstOptimal)
	d.record(cmd, softgpu.OpCopy, func() { softgpu.CopyImage(t.img, s.img) })
}

func (d *softDriver) fillAll(img *softgpu.Image, texel []byte) {
	for layer := uint32(0); layer < img.ArrayLayers; layer++ {
		for mip := uint32(0); mip < img.MipLevels; mip++ {
			img.Fill(mip, layer, texel)
		}
	}
}

func (d *softDriver) cmdClearColorImage(cmd handle, image handle, color [4]float32) {
	img := lookup[*softImage](d, image)
	if img == nil {
		core.LogError("headless vulkan: clear of unknown image")
		return
	}
	d.expectLayout(image, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferDstOptimal)
	texel := softgpu.EncodeColor(img.info.format, color)
	d.record(cmd, softgpu.OpClear, func() { d.fillAll(img.img, texel) })
}

func (d *softDriver) cmdClearDepthStencilImage(cmd handle, image handle, depth float32, stencil uint32) {
	img := lookup[*softImage](d, image)
	if img == nil {
		core.LogError("headless vulkan: clear of unknown image")
		return
	}
	d.expectLayout(image, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferDstOptimal)
	texel := softgpu.EncodeDepthStencil(img.info.format, depth, stencil)
	d.record(cmd, softgpu.OpClear, func() { d.fillAll(img.img, texel) })
}

func (d *softDriver) createFence(signaled bool) (handle, error) {
	f := &softFence{timeline: softgpu.NewFence(0), target: 1}
	if signaled {
		f.target = 0
	}
	return d.add(f), nil
}

func (d *softDriver) destroyFence(h handle) { d.remove(h) }

func (d *softDriver) waitFence(h handle, timeoutNs uint64) vk.Result {
	f := lookup[*softFence](d, h)
	if f == nil {
		return vk.ErrorDeviceLost
	}
	f.mu.Lock()
	target := f.target
	f.mu.Unlock()
	if !f.timeline.Wait(target, softgpu.NanosToTimeout(timeoutNs)) {
		return vk.Timeout
	}
	return vk.Success
}

func (d *softDriver) fenceStatus(h handle) vk.Result {
	f := lookup[*softFence](d, h)
	if f == nil {
		return vk.ErrorDeviceLost
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timeline.Completed() >= f.target {
		return vk.Success
	}
	return vk.NotReady
}

func (d *softDriver) resetFence(h handle) error {
	f := lookup[*softFence](d, h)
	if f == nil {
		return rhi.ErrDestroyed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if c := f.timeline.Completed(); c >= f.target {
		f.target = c + 1
	}
	return nil
}

func (d *softDriver) createSemaphore() (handle, error) {
	return d.add(&softSemaphore{timeline: softgpu.NewFence(0)}), nil
}

func (d *softDriver) destroySemaphore(h handle) { d.remove(h) }

func (d *softDriver) signalSemaphore(h handle) error {
	s := lookup[*softSemaphore](d, h)
	if s == nil {
		return fmt.Errorf("%w: unknown semaphore", rhi.ErrInvalidArgument)
	}
	s.mu.Lock()
	s.signals++
	v := s.signals
	s.mu.Unlock()
	return d.queue.Signal(s.timeline, v)
}

func (d *softDriver) waitSemaphore(h handle) error {
	s := lookup[*softSemaphore](d, h)
	if s == nil {
		return fmt.Errorf("%w: unknown semaphore", rhi.ErrInvalidArgument)
	}
	s.mu.Lock()
	s.waits++
	v := s.waits
	s.mu.Unlock()
	return d.queue.Wait(s.timeline, v)
}

func (d *softDriver) queueSubmit(s submission) error {
	if d.failSubmit.Load() > 0 && d.failSubmit.Add(-1) == 0 {
		return fmt.Errorf("%w: injected submit failure", rhi.ErrDeviceLost)
	}
	lists := make([]*softgpu.CommandList, 0, len(s.cmds))
	for _, h := range s.cmds {
		c := lookup[*softCommandBuffer](d, h)
		if c == nil {
			return fmt.Errorf("%w: unknown command buffer", rhi.ErrInvalidArgument)
		}
		lists = append(lists, c.list)
	}
	for _, w := range s.wait {
		if err := d.waitSemaphore(w); err != nil {
			return err
		}
	}
	if len(lists) > 0 {
		if err := d.queue.Submit(lists...); err != nil {
			return err
		}
	}
	for _, sig := range s.signal {
		if err := d.signalSemaphore(sig); err != nil {
			return err
		}
	}
	if s.fence != 0 {
		f := lookup[*softFence](d, s.fence)
		if f == nil {
			return fmt.Errorf("%w: unknown fence", rhi.ErrInvalidArgument)
		}
		f.mu.Lock()
		target := f.target
		f.mu.Unlock()
		return d.queue.Signal(f.timeline, target)
	}
	return nil
}

// createSwapchain presents into a softgpu.Surface: the one passed as window,
// the one of the old swapchain, or a new one.
func (d *softDriver) createSwapchain(info swapchainInfo) (swapchainImages, error) {
	var surface *softgpu.Surface
	if old := lookup[*softSwapchain](d, info.old); old != nil {
		surface = old.surface
	} else if s, ok := info.window.(*softgpu.Surface); ok {
		surface = s
	} else if info.window == nil {
		format := info.format
		if format == rhi.FormatUndefined {
			format = rhi.FormatBGRA8Unorm
		}
		surface = softgpu.NewSurface(format, info.width, info.height, info.count)
	} else {
		return swapchainImages{}, fmt.Errorf("%w: headless driver needs a *softgpu.Surface, got %T", rhi.ErrNoSurface, info.window)
	}
	images := surface.Resize(info.width, info.height, info.count)
	sc := &softSwapchain{surface: surface}
	out := swapchainImages{format: images[0].Format, width: info.width, height: info.height}
	for _, img := range images {
		h := d.add(&softImage{
			img: img,
			info: imageInfo{
				format:    img.Format,
				vkFormat:  vkFormat(img.Format),
				imageType: vk.ImageType2d,
				width:     img.Width,
				height:    img.Height,
				depth:     1,
				mips:      1,
				layers:    1,
				usage:     vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit | vk.ImageUsageTransferSrcBit),
			},
			layout: vk.ImageLayoutUndefined,
		})
		sc.images = append(sc.images, h)
	}
	out.images = append(out.images, sc.images...)
	out.swapchain = d.add(sc)
	return out, nil
}

func (d *softDriver) destroySwapchain(h handle) {
	if sc, ok := d.objects.Remove(uint64(h)).(*softSwapchain); ok {
		for _, img := range sc.images {
			d.remove(img)
		}
	}
}

func (d *softDriver) acquireNextImage(swapchain handle, timeoutNs uint64, signal handle) (uint32, vk.Result) {
	sc := lookup[*softSwapchain](d, swapchain)
	if sc == nil {
		return 0, vk.ErrorSurfaceLost
	}
	index, ok := sc.surface.Acquire()
	if !ok {
		return 0, vk.ErrorOutOfDate
	}
	if signal != 0 {
		if err := d.signalSemaphore(signal); err != nil {
			return 0, vk.ErrorUnknown
		}
	}
	return index, vk.Success
}

func (d *softDriver) queuePresent(swapchain handle, index uint32, wait handle) vk.Result {
	sc := lookup[*softSwapchain](d, swapchain)
	if sc == nil {
		return vk.ErrorSurfaceLost
	}
	if sc.surface.OutOfDate() {
		return vk.ErrorOutOfDate
	}
	if int(index) >= len(sc.images) {
		return vk.ErrorUnknown
	}
	if l := d.imageLayout(sc.images[index]); l != vk.ImageLayoutPresentSrc {
		d.layoutErrors.Add(1)
		core.LogWarn("headless vulkan: presenting image %d in layout %d", index, l)
	}
	if wait != 0 {
		if err := d.waitSemaphore(wait); err != nil {
			return vk.ErrorUnknown
		}
	}
	surface := sc.surface
	d.queue.Do(func() {
		surface.Present(index)
		d.queue.Stats.Presents.Add(1)
	})
	return vk.Success
}

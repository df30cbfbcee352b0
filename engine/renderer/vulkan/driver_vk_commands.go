package vulkan

import (
	"fmt"
	"math"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

func (d *vulkanDriver) createCommandPool() (handle, error) {
	createInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.device, &createInfo, nil, &pool); res != vk.Success {
		return 0, resultError("vkCreateCommandPool", res)
	}
	return d.add(pool), nil
}

func (d *vulkanDriver) resetCommandPool(h handle) error {
	pool := native[vk.CommandPool](d, h)
	if pool == nil {
		return fmt.Errorf("reset of unknown command pool %d", h)
	}
	if res := vk.ResetCommandPool(d.device, pool, 0); res != vk.Success {
		return resultError("vkResetCommandPool", res)
	}
	return nil
}

// destroyCommandPool frees the pool and the buffers allocated from it.
func (d *vulkanDriver) destroyCommandPool(h handle) {
	pool, ok := take[vk.CommandPool](d, h)
	if !ok {
		return
	}
	vk.DestroyCommandPool(d.device, pool, nil)
}

func (d *vulkanDriver) allocateCommandBuffer(pool handle) (handle, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        native[vk.CommandPool](d, pool),
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cmds := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(d.device, &allocInfo, cmds); res != vk.Success {
		return 0, resultError("vkAllocateCommandBuffers", res)
	}
	return d.add(cmds[0]), nil
}

func (d *vulkanDriver) cmd(h handle) vk.CommandBuffer {
	return native[vk.CommandBuffer](d, h)
}

func (d *vulkanDriver) beginCommandBuffer(h handle) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(d.cmd(h), beginInfo); res != vk.Success {
		return resultError("vkBeginCommandBuffer", res)
	}
	return nil
}

func (d *vulkanDriver) endCommandBuffer(h handle) error {
	if res := vk.EndCommandBuffer(d.cmd(h)); res != vk.Success {
		return resultError("vkEndCommandBuffer", res)
	}
	return nil
}

func (d *vulkanDriver) cmdPipelineBarrier(cmd handle, srcStages, dstStages vk.PipelineStageFlags, images []imageBarrier, buffers []bufferBarrier) {
	imageBarriers := make([]vk.ImageMemoryBarrier, 0, len(images))
	for _, b := range images {
		img := native[*vkImage](d, b.image)
		if img == nil {
			core.LogError("barrier on unknown image %d", b.image)
			continue
		}
		imageBarriers = append(imageBarriers, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       b.srcAccess,
			DstAccessMask:       b.dstAccess,
			OldLayout:           b.oldLayout,
			NewLayout:           b.newLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img.image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: b.aspect,
				LevelCount: b.mips,
				LayerCount: b.layers,
			},
		})
	}
	bufferBarriers := make([]vk.BufferMemoryBarrier, 0, len(buffers))
	for _, b := range buffers {
		buf := native[*vkBuffer](d, b.buffer)
		if buf == nil {
			core.LogError("barrier on unknown buffer %d", b.buffer)
			continue
		}
		bufferBarriers = append(bufferBarriers, vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       b.srcAccess,
			DstAccessMask:       b.dstAccess,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              buf.buffer,
			Size:                vk.DeviceSize(buf.size),
		})
	}
	vk.CmdPipelineBarrier(d.cmd(cmd), srcStages, dstStages, 0,
		0, nil,
		uint32(len(bufferBarriers)), bufferBarriers,
		uint32(len(imageBarriers)), imageBarriers)
}

func (d *vulkanDriver) cmdBeginRenderPass(cmd handle, info beginRenderPassInfo) {
	pass := native[*vkRenderPass](d, info.renderPass)
	if pass == nil {
		core.LogError("begin of unknown render pass %d", info.renderPass)
		return
	}
	clearValues := make([]vk.ClearValue, len(info.clears))
	for i, c := range info.clears {
		if i == pass.depth {
			clearValues[i].SetDepthStencil(c.Depth, c.Stencil)
		} else {
			clearValues[i].SetColor(c.Color[:])
		}
	}
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass.pass,
		Framebuffer: native[vk.Framebuffer](d, info.framebuffer),
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: info.width, Height: info.height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(d.cmd(cmd), &beginInfo, vk.SubpassContentsInline)
}

func (d *vulkanDriver) cmdEndRenderPass(cmd handle) {
	vk.CmdEndRenderPass(d.cmd(cmd))
}

func (d *vulkanDriver) cmdBindPipeline(cmd, pipeline handle) {
	vk.CmdBindPipeline(d.cmd(cmd), vk.PipelineBindPointGraphics, native[vk.Pipeline](d, pipeline))
}

func (d *vulkanDriver) cmdSetViewport(cmd handle, v vk.Viewport) {
	vk.CmdSetViewport(d.cmd(cmd), 0, 1, []vk.Viewport{v})
}

func (d *vulkanDriver) cmdSetScissor(cmd handle, r vk.Rect2D) {
	vk.CmdSetScissor(d.cmd(cmd), 0, 1, []vk.Rect2D{r})
}

func (d *vulkanDriver) cmdBindVertexBuffer(cmd handle, slot uint32, buf handle, offset uint64) {
	b := native[*vkBuffer](d, buf)
	if b == nil {
		core.LogError("bind of unknown vertex buffer %d", buf)
		return
	}
	vk.CmdBindVertexBuffers(d.cmd(cmd), slot, 1, []vk.Buffer{b.buffer}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (d *vulkanDriver) cmdBindIndexBuffer(cmd handle, buf handle, offset uint64, t vk.IndexType) {
	b := native[*vkBuffer](d, buf)
	if b == nil {
		core.LogError("bind of unknown index buffer %d", buf)
		return
	}
	vk.CmdBindIndexBuffer(d.cmd(cmd), b.buffer, vk.DeviceSize(offset), t)
}

func (d *vulkanDriver) cmdBindDescriptorSet(cmd handle, layout handle, index uint32, set handle) {
	vk.CmdBindDescriptorSets(d.cmd(cmd), vk.PipelineBindPointGraphics, native[vk.PipelineLayout](d, layout),
		index, 1, []vk.DescriptorSet{native[vk.DescriptorSet](d, set)}, 0, nil)
}

func (d *vulkanDriver) cmdDraw(cmd handle, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(d.cmd(cmd), vertexCount, instanceCount, firstVertex, firstInstance)
}

func (d *vulkanDriver) cmdDrawIndexed(cmd handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(d.cmd(cmd), indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (d *vulkanDriver) cmdCopyBuffer(cmd handle, src, dst handle, region vk.BufferCopy) {
	s, t := native[*vkBuffer](d, src), native[*vkBuffer](d, dst)
	if s == nil || t == nil {
		core.LogError("copy between unknown buffers %d and %d", src, dst)
		return
	}
	vk.CmdCopyBuffer(d.cmd(cmd), s.buffer, t.buffer, 1, []vk.BufferCopy{region})
}

func (d *vulkanDriver) cmdCopyBufferToImage(cmd handle, src, dst handle, region vk.BufferImageCopy) {
	s, t := native[*vkBuffer](d, src), native[*vkImage](d, dst)
	if s == nil || t == nil {
		core.LogError("copy from unknown buffer %d to image %d", src, dst)
		return
	}
	vk.CmdCopyBufferToImage(d.cmd(cmd), s.buffer, t.image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (d *vulkanDriver) cmdCopyImageToBuffer(cmd handle, src, dst handle, region vk.BufferImageCopy) {
	s, t := native[*vkImage](d, src), native[*vkBuffer](d, dst)
	if s == nil || t == nil {
		core.LogError("copy from unknown image %d to buffer %d", src, dst)
		return
	}
	vk.CmdCopyImageToBuffer(d.cmd(cmd), s.image, vk.ImageLayoutTransferSrcOptimal, t.buffer, 1, []vk.BufferImageCopy{region})
}

func (d *vulkanDriver) cmdCopyImage(cmd handle, src, dst handle, regions []vk.ImageCopy) {
	s, t := native[*vkImage](d, src), native[*vkImage](d, dst)
	if s == nil || t == nil {
		core.LogError("copy between unknown images %d and %d", src, dst)
		return
	}
	vk.CmdCopyImage(d.cmd(cmd), s.image, vk.ImageLayoutTransferSrcOptimal, t.image, vk.ImageLayoutTransferDstOptimal,
		uint32(len(regions)), regions)
}

func (d *vulkanDriver) cmdClearColorImage(cmd handle, image handle, color [4]float32) {
	img := native[*vkImage](d, image)
	if img == nil {
		core.LogError("clear of unknown image %d", image)
		return
	}
	var value vk.ClearColorValue
	*(*[4]float32)(unsafe.Pointer(&value)) = color
	vk.CmdClearColorImage(d.cmd(cmd), img.image, vk.ImageLayoutTransferDstOptimal, &value, 1, []vk.ImageSubresourceRange{{
		AspectMask: img.aspect,
		LevelCount: img.mips,
		LayerCount: img.layers,
	}})
}

func (d *vulkanDriver) cmdClearDepthStencilImage(cmd handle, image handle, depth float32, stencil uint32) {
	img := native[*vkImage](d, image)
	if img == nil {
		core.LogError("clear of unknown image %d", image)
		return
	}
	value := vk.ClearDepthStencilValue{Depth: depth, Stencil: stencil}
	vk.CmdClearDepthStencilImage(d.cmd(cmd), img.image, vk.ImageLayoutTransferDstOptimal, &value, 1, []vk.ImageSubresourceRange{{
		AspectMask: img.aspect,
		LevelCount: img.mips,
		LayerCount: img.layers,
	}})
}

func (d *vulkanDriver) createFence(signaled bool) (handle, error) {
	createInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		createInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if res := vk.CreateFence(d.device, &createInfo, nil, &fence); res != vk.Success {
		return 0, resultError("vkCreateFence", res)
	}
	return d.add(fence), nil
}

func (d *vulkanDriver) destroyFence(h handle) {
	if f, ok := take[vk.Fence](d, h); ok {
		vk.DestroyFence(d.device, f, nil)
	}
}

func (d *vulkanDriver) waitFence(h handle, timeoutNs uint64) vk.Result {
	return vk.WaitForFences(d.device, 1, []vk.Fence{native[vk.Fence](d, h)}, vk.True, timeoutNs)
}

func (d *vulkanDriver) fenceStatus(h handle) vk.Result {
	return vk.GetFenceStatus(d.device, native[vk.Fence](d, h))
}

func (d *vulkanDriver) resetFence(h handle) error {
	if res := vk.ResetFences(d.device, 1, []vk.Fence{native[vk.Fence](d, h)}); res != vk.Success {
		return resultError("vkResetFences", res)
	}
	return nil
}

func (d *vulkanDriver) createSemaphore() (handle, error) {
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var sem vk.Semaphore
	if res := vk.CreateSemaphore(d.device, &createInfo, nil, &sem); res != vk.Success {
		return 0, resultError("vkCreateSemaphore", res)
	}
	return d.add(sem), nil
}

func (d *vulkanDriver) destroySemaphore(h handle) {
	if s, ok := take[vk.Semaphore](d, h); ok {
		vk.DestroySemaphore(d.device, s, nil)
	}
}

func (d *vulkanDriver) queueSubmit(s submission) error {
	info := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   uint32(len(s.cmds)),
		WaitSemaphoreCount:   uint32(len(s.wait)),
		SignalSemaphoreCount: uint32(len(s.signal)),
	}
	if len(s.cmds) > 0 {
		info.PCommandBuffers = make([]vk.CommandBuffer, len(s.cmds))
		for i, h := range s.cmds {
			info.PCommandBuffers[i] = d.cmd(h)
		}
	}
	if len(s.wait) > 0 {
		info.PWaitSemaphores = make([]vk.Semaphore, len(s.wait))
		for i, h := range s.wait {
			info.PWaitSemaphores[i] = native[vk.Semaphore](d, h)
		}
		info.PWaitDstStageMask = s.waitStages
	}
	if len(s.signal) > 0 {
		info.PSignalSemaphores = make([]vk.Semaphore, len(s.signal))
		for i, h := range s.signal {
			info.PSignalSemaphores[i] = native[vk.Semaphore](d, h)
		}
	}
	fence := vk.NullFence
	if s.fence != 0 {
		fence = native[vk.Fence](d, s.fence)
	}
	return d.locks.SafeQueueCall(d.queueFamily, func() error {
		if res := vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{info}, fence); res != vk.Success {
			return resultError("vkQueueSubmit", res)
		}
		return nil
	})
}

// surfaceSupport is what the surface allows for a new swapchain.
type surfaceSupport struct {
	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
}

func (d *vulkanDriver) querySurfaceSupport() (surfaceSupport, error) {
	var s surfaceSupport
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevice, d.surface, &s.capabilities); res != vk.Success {
		return s, resultError("vkGetPhysicalDeviceSurfaceCapabilities", res)
	}
	s.capabilities.Deref()
	s.capabilities.CurrentExtent.Deref()
	s.capabilities.MinImageExtent.Deref()
	s.capabilities.MaxImageExtent.Deref()

	var count uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.surface, &count, nil); res != vk.Success {
		return s, resultError("vkGetPhysicalDeviceSurfaceFormats", res)
	}
	s.formats = make([]vk.SurfaceFormat, count)
	if res := vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.surface, &count, s.formats); res != vk.Success {
		return s, resultError("vkGetPhysicalDeviceSurfaceFormats", res)
	}
	for i := range s.formats {
		s.formats[i].Deref()
	}

	if res := vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, d.surface, &count, nil); res != vk.Success {
		return s, resultError("vkGetPhysicalDeviceSurfacePresentModes", res)
	}
	s.presentModes = make([]vk.PresentMode, count)
	if res := vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, d.surface, &count, s.presentModes); res != vk.Success {
		return s, resultError("vkGetPhysicalDeviceSurfacePresentModes", res)
	}
	if len(s.formats) == 0 || len(s.presentModes) == 0 {
		return s, fmt.Errorf("%w: surface has no formats or present modes", rhi.ErrNoSurface)
	}
	return s, nil
}

// chooseFormat takes the requested format, else B8G8R8A8 UNORM in sRGB
// nonlinear, else the first format the backend knows.
func (s surfaceSupport) chooseFormat(want rhi.Format) (vk.SurfaceFormat, error) {
	preferred := []vk.Format{vkFormat(want), vk.FormatB8g8r8a8Unorm}
	for _, p := range preferred {
		for _, f := range s.formats {
			if f.Format == p && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
				return f, nil
			}
		}
	}
	for _, f := range s.formats {
		if rhiFormat(f.Format) != rhi.FormatUndefined {
			return f, nil
		}
	}
	return vk.SurfaceFormat{}, fmt.Errorf("%w: no supported surface format", rhi.ErrNoSurface)
}

func (s surfaceSupport) choosePresentMode(vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	for _, m := range s.presentModes {
		if m == vk.PresentModeMailbox {
			return m
		}
	}
	return vk.PresentModeFifo
}

func (s surfaceSupport) chooseExtent(width, height uint32) vk.Extent2D {
	c := s.capabilities
	if c.CurrentExtent.Width != math.MaxUint32 {
		return c.CurrentExtent
	}
	clamp := func(v, lo, hi uint32) uint32 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	return vk.Extent2D{
		Width:  clamp(width, c.MinImageExtent.Width, c.MaxImageExtent.Width),
		Height: clamp(height, c.MinImageExtent.Height, c.MaxImageExtent.Height),
	}
}

func (d *vulkanDriver) createSwapchain(info swapchainInfo) (swapchainImages, error) {
	if d.surface == vk.NullSurface {
		return swapchainImages{}, fmt.Errorf("%w: device was opened without a window", rhi.ErrNoSurface)
	}
	support, err := d.querySurfaceSupport()
	if err != nil {
		return swapchainImages{}, err
	}
	format, err := support.chooseFormat(info.format)
	if err != nil {
		return swapchainImages{}, err
	}
	extent := support.chooseExtent(info.width, info.height)

	count := info.count
	if count < support.capabilities.MinImageCount {
		count = support.capabilities.MinImageCount
	}
	if limit := support.capabilities.MaxImageCount; limit > 0 && count > limit {
		count = limit
	}

	var old vk.Swapchain = vk.NullSwapchain
	if prev := native[*vkSwapchain](d, info.old); prev != nil {
		old = prev.swapchain
	}
	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    count,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit |
			vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     support.capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      support.choosePresentMode(info.vsync),
		Clipped:          vk.True,
		OldSwapchain:     old,
	}

	var swapchain vk.Swapchain
	err = d.locks.SafeCall(SwapchainManagement, func() error {
		if res := vk.CreateSwapchain(d.device, &createInfo, nil, &swapchain); res != vk.Success {
			return resultError("vkCreateSwapchain", res)
		}
		return nil
	})
	if err != nil {
		return swapchainImages{}, err
	}

	var imageCount uint32
	if res := vk.GetSwapchainImages(d.device, swapchain, &imageCount, nil); res != vk.Success {
		vk.DestroySwapchain(d.device, swapchain, nil)
		return swapchainImages{}, resultError("vkGetSwapchainImages", res)
	}
	images := make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(d.device, swapchain, &imageCount, images); res != vk.Success {
		vk.DestroySwapchain(d.device, swapchain, nil)
		return swapchainImages{}, resultError("vkGetSwapchainImages", res)
	}

	var acquired vk.Fence
	fenceInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if res := vk.CreateFence(d.device, &fenceInfo, nil, &acquired); res != vk.Success {
		vk.DestroySwapchain(d.device, swapchain, nil)
		return swapchainImages{}, resultError("vkCreateFence", res)
	}

	sc := &vkSwapchain{swapchain: swapchain, acquired: acquired}
	for _, img := range images {
		sc.images = append(sc.images, d.add(&vkImage{
			image:  img,
			aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			mips:   1,
			layers: 1,
		}))
	}
	core.LogInfo("Swapchain created: %dx%d, %d images.", extent.Width, extent.Height, imageCount)
	return swapchainImages{
		swapchain: d.add(sc),
		images:    sc.images,
		format:    rhiFormat(format.Format),
		width:     extent.Width,
		height:    extent.Height,
	}, nil
}

// destroySwapchain drops the image handles; the images belong to the
// swapchain.
func (d *vulkanDriver) destroySwapchain(h handle) {
	sc, ok := take[*vkSwapchain](d, h)
	if !ok {
		return
	}
	for _, img := range sc.images {
		d.destroyImage(img)
	}
	vk.DestroyFence(d.device, sc.acquired, nil)
	d.locks.SafeCall(SwapchainManagement, func() error {
		vk.DestroySwapchain(d.device, sc.swapchain, nil)
		return nil
	})
}

func (d *vulkanDriver) acquireNextImage(swapchain handle, timeoutNs uint64, signal handle) (uint32, vk.Result) {
	sc := native[*vkSwapchain](d, swapchain)
	if sc == nil {
		return 0, vk.ErrorSurfaceLost
	}
	var index uint32
	sem, fence := vk.NullSemaphore, vk.NullFence
	if signal != 0 {
		sem = native[vk.Semaphore](d, signal)
	} else {
		fence = sc.acquired
	}
	res := vk.AcquireNextImage(d.device, sc.swapchain, timeoutNs, sem, fence, &index)
	if fence != vk.NullFence && (res == vk.Success || res == vk.Suboptimal) {
		vk.WaitForFences(d.device, 1, []vk.Fence{fence}, vk.True, timeoutNs)
		vk.ResetFences(d.device, 1, []vk.Fence{fence})
	}
	return index, res
}

// queuePresent presents image index. Without a semaphore the queue is
// drained first so the image is complete.
func (d *vulkanDriver) queuePresent(swapchain handle, index uint32, wait handle) vk.Result {
	sc := native[*vkSwapchain](d, swapchain)
	if sc == nil {
		return vk.ErrorSurfaceLost
	}
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc.swapchain},
		PImageIndices:  []uint32{index},
	}
	if wait != 0 {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{native[vk.Semaphore](d, wait)}
	}
	var res vk.Result
	d.locks.SafeQueueCall(d.queueFamily, func() error {
		if wait == 0 {
			vk.QueueWaitIdle(d.queue)
		}
		res = vk.QueuePresent(d.queue, &presentInfo)
		return nil
	})
	return res
}

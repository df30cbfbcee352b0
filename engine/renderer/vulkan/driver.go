package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// handle names a native object of the driver. Zero is the null handle.
type handle uint64

type bufferInfo struct {
	size        uint64
	usage       vk.BufferUsageFlags
	hostVisible bool
}

type imageInfo struct {
	// format is kept next to the native format: the headless driver stores
	// texels per rhi format.
	format    rhi.Format
	vkFormat  vk.Format
	imageType vk.ImageType
	width     uint32
	height    uint32
	depth     uint32
	mips      uint32
	layers    uint32
	usage     vk.ImageUsageFlags
	cube      bool
}

type viewInfo struct {
	image    handle
	viewType vk.ImageViewType
	format   vk.Format
	aspect   vk.ImageAspectFlags
	mips     uint32
	layers   uint32
}

type samplerInfo struct {
	minFilter, magFilter vk.Filter
	mipmapMode           vk.SamplerMipmapMode
	addressU             vk.SamplerAddressMode
	addressV             vk.SamplerAddressMode
	addressW             vk.SamplerAddressMode
	maxAnisotropy        float32
	compareEnable        bool
	compareOp            vk.CompareOp
	minLod, maxLod       float32
}

type layoutBinding struct {
	binding uint32
	kind    vk.DescriptorType
	count   uint32
	stages  vk.ShaderStageFlags
}

type poolInfo struct {
	maxSets uint32
	sizes   map[vk.DescriptorType]uint32
}

// descriptorWrite updates one binding of a set. Exactly one of buffer, view
// and sampler is set.
type descriptorWrite struct {
	set     handle
	binding uint32
	kind    vk.DescriptorType
	buffer  handle
	offset  uint64
	size    uint64
	view    handle
	layout  vk.ImageLayout
	sampler handle
}

type attachmentInfo struct {
	format         rhi.Format
	vkFormat       vk.Format
	loadOp         vk.AttachmentLoadOp
	storeOp        vk.AttachmentStoreOp
	stencilLoadOp  vk.AttachmentLoadOp
	stencilStoreOp vk.AttachmentStoreOp
	initialLayout  vk.ImageLayout
	finalLayout    vk.ImageLayout
}

type renderPassInfo struct {
	colors   []attachmentInfo
	depth    attachmentInfo
	hasDepth bool
}

type framebufferInfo struct {
	renderPass handle
	// views holds the color views followed by the depth view, if any.
	views  []handle
	width  uint32
	height uint32
}

type pipelineInfo struct {
	vertex, fragment handle
	vertexEntry      string
	fragmentEntry    string
	layout           handle
	renderPass       handle
	colorCount       int
	bindings         []vk.VertexInputBindingDescription
	attributes       []vk.VertexInputAttributeDescription
	topology         vk.PrimitiveTopology
	cullMode         vk.CullModeFlags
	frontFace        vk.FrontFace
	polygonMode      vk.PolygonMode
	depthTest        bool
	depthWrite       bool
	depthCompare     vk.CompareOp
	blend            bool
}

type imageBarrier struct {
	image     handle
	oldLayout vk.ImageLayout
	newLayout vk.ImageLayout
	srcAccess vk.AccessFlags
	dstAccess vk.AccessFlags
	aspect    vk.ImageAspectFlags
	mips      uint32
	layers    uint32
}

type bufferBarrier struct {
	buffer    handle
	srcAccess vk.AccessFlags
	dstAccess vk.AccessFlags
	size      uint64
}

type beginRenderPassInfo struct {
	renderPass  handle
	framebuffer handle
	width       uint32
	height      uint32
	// clears holds one value per attachment, colors first.
	clears []rhi.ClearValue
}

type submission struct {
	cmds       []handle
	wait       []handle
	waitStages []vk.PipelineStageFlags
	signal     []handle
	fence      handle
}

type swapchainInfo struct {
	window any
	width  uint32
	height uint32
	count  uint32
	format rhi.Format
	vsync  bool
	old    handle
}

type swapchainImages struct {
	swapchain handle
	images    []handle
	format    rhi.Format
	width     uint32
	height    uint32
}

// driver issues native Vulkan calls on handles. The backend layer owns all
// RHI semantics and only reaches the API through this interface, which is
// implemented on goki/vulkan and by the headless driver.
type driver interface {
	name() string
	destroy()
	waitIdle()

	createBuffer(info bufferInfo) (handle, error)
	destroyBuffer(h handle)
	mapBuffer(h handle) ([]byte, error)
	unmapBuffer(h handle)

	createImage(info imageInfo) (handle, error)
	destroyImage(h handle)
	createImageView(info viewInfo) (handle, error)
	destroyImageView(h handle)
	createSampler(info samplerInfo) (handle, error)
	destroySampler(h handle)
	createShaderModule(code []byte) (handle, error)
	destroyShaderModule(h handle)

	createDescriptorSetLayout(bindings []layoutBinding) (handle, error)
	destroyDescriptorSetLayout(h handle)
	createDescriptorPool(info poolInfo) (handle, error)
	destroyDescriptorPool(h handle)
	// allocateDescriptorSet reports a full pool with vk.ErrorOutOfPoolMemory.
	allocateDescriptorSet(pool, layout handle) (handle, vk.Result)
	freeDescriptorSet(pool, set handle)
	writeDescriptor(w descriptorWrite)

	createPipelineLayout(setLayouts []handle, pushConstantSize uint32) (handle, error)
	destroyPipelineLayout(h handle)
	createGraphicsPipeline(info pipelineInfo) (handle, error)
	destroyPipeline(h handle)
	createRenderPass(info renderPassInfo) (handle, error)
	destroyRenderPass(h handle)
	createFramebuffer(info framebufferInfo) (handle, error)
	destroyFramebuffer(h handle)

	createCommandPool() (handle, error)
	resetCommandPool(h handle) error
	destroyCommandPool(h handle)
	allocateCommandBuffer(pool handle) (handle, error)
	beginCommandBuffer(cmd handle) error
	endCommandBuffer(cmd handle) error

	cmdPipelineBarrier(cmd handle, srcStages, dstStages vk.PipelineStageFlags, images []imageBarrier, buffers []bufferBarrier)
	cmdBeginRenderPass(cmd handle, info beginRenderPassInfo)
	cmdEndRenderPass(cmd handle)
	cmdBindPipeline(cmd, pipeline handle)
	cmdSetViewport(cmd handle, v vk.Viewport)
	cmdSetScissor(cmd handle, r vk.Rect2D)
	cmdBindVertexBuffer(cmd handle, slot uint32, buf handle, offset uint64)
	cmdBindIndexBuffer(cmd handle, buf handle, offset uint64, t vk.IndexType)
	cmdBindDescriptorSet(cmd handle, layout handle, index uint32, set handle)
	cmdDraw(cmd handle, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	cmdDrawIndexed(cmd handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	// Copies expect the source in TRANSFER_SRC_OPTIMAL and the destination
	// in TRANSFER_DST_OPTIMAL.
	cmdCopyBuffer(cmd handle, src, dst handle, region vk.BufferCopy)
	cmdCopyBufferToImage(cmd handle, src, dst handle, region vk.BufferImageCopy)
	cmdCopyImageToBuffer(cmd handle, src, dst handle, region vk.BufferImageCopy)
	cmdCopyImage(cmd handle, src, dst handle, regions []vk.ImageCopy)
	// The clears cover every subresource of the image, which must be in
	// TRANSFER_DST_OPTIMAL.
	cmdClearColorImage(cmd handle, image handle, color [4]float32)
	cmdClearDepthStencilImage(cmd handle, image handle, depth float32, stencil uint32)

	createFence(signaled bool) (handle, error)
	destroyFence(h handle)
	// waitFence returns vk.Success, vk.Timeout or an error result.
	waitFence(h handle, timeoutNs uint64) vk.Result
	// fenceStatus returns vk.Success when signaled and vk.NotReady otherwise.
	fenceStatus(h handle) vk.Result
	resetFence(h handle) error
	createSemaphore() (handle, error)
	destroySemaphore(h handle)
	queueSubmit(s submission) error

	createSwapchain(info swapchainInfo) (swapchainImages, error)
	destroySwapchain(h handle)
	acquireNextImage(swapchain handle, timeoutNs uint64, signal handle) (uint32, vk.Result)
	queuePresent(swapchain handle, index uint32, wait handle) vk.Result
}

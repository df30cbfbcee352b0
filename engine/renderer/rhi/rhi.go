// Package rhi is the backend agnostic render hardware interface. Higher level
// rendering code records GPU work through these interfaces; the vulkan and dx12
// packages provide the implementations and register themselves on import.
package rhi

// Object is implemented by every RHI object.
type Object interface {
	// IsValid reports whether the object still owns its native resource.
	IsValid() bool
	// Destroy releases the object. Native resources that may still be used by
	// submitted work are released once that work completes.
	Destroy()
}

type Device interface {
	Backend() Backend

	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreateTexture(desc TextureDesc) (Texture, error)
	CreateSampler(desc SamplerDesc) (Sampler, error)
	CreateShader(desc ShaderDesc) (Shader, error)
	CreateDescriptorSetLayout(desc DescriptorSetLayoutDesc) (DescriptorSetLayout, error)
	CreateDescriptorSet(desc DescriptorSetDesc) (DescriptorSet, error)
	CreateGraphicsPipeline(desc GraphicsPipelineDesc) (GraphicsPipeline, error)
	CreateRenderPass(desc RenderPassDesc) (RenderPass, error)
	CreateFramebuffer(desc FramebufferDesc) (Framebuffer, error)
	CreateCommandBuffer(desc CommandBufferDesc) (CommandBuffer, error)
	CreateFence(desc FenceDesc) (Fence, error)
	CreateSemaphore() (Semaphore, error)
	CreateSwapChain(desc SwapchainDesc) (SwapChain, error)

	// GetOrCreate* return the cached object for an equal description,
	// creating it on the first request. Cached objects are owned by the
	// device and must not be destroyed by the caller.
	GetOrCreateSampler(desc SamplerDesc) (Sampler, error)
	GetOrCreateRenderPass(desc RenderPassDesc) (RenderPass, error)
	GetOrCreateGraphicsPipeline(desc GraphicsPipelineDesc) (GraphicsPipeline, error)

	// UpdateBuffer writes data at offset. Buffers that are not host visible
	// go through a staging buffer and a blocking submission.
	UpdateBuffer(buf Buffer, data []byte, offset uint64) error
	// UpdateTexture uploads one subresource. data is tightly packed rows.
	UpdateTexture(tex Texture, data []byte, mip, layer uint32) error
	// TextureFootprint returns the buffer layout the backend uses to copy the
	// given mip of tex to or from a buffer.
	TextureFootprint(tex Texture, mip uint32) Footprint

	SubmitCommandBuffer(cmd CommandBuffer, info SubmitInfo) error
	Present(sc SwapChain, wait Semaphore) bool
	// Flush submits pending work and reclaims what already completed. It
	// never blocks.
	Flush()
	// WaitIdle blocks until the GPU is idle and reclaims everything.
	WaitIdle()

	FrameIndex() uint32
	FrameCount() uint64
	FramesInFlight() uint32

	Registry() *Registry
	Stats() Stats

	Destroy()
}

type Buffer interface {
	Object
	Desc() BufferDesc
	Size() uint64
	Usage() BufferUsage
	IsMappable() bool
	// Map returns the whole buffer contents as a byte slice valid until Unmap.
	Map() ([]byte, error)
	Unmap()
	CurrentLayout() ResourceLayout
}

type Texture interface {
	Object
	Desc() TextureDesc
	Type() TextureType
	Format() Format
	Width() uint32
	Height() uint32
	Depth() uint32
	MipLevels() uint32
	ArrayLayers() uint32
	Usage() TextureUsage
	// CurrentLayout is the layout set by the last recorded transition.
	CurrentLayout() ResourceLayout
	HasSRVUsage() bool
	HasUAVUsage() bool
	HasRTVUsage() bool
	HasDSVUsage() bool
}

type Sampler interface {
	Object
	Desc() SamplerDesc
}

type Shader interface {
	Object
	Desc() ShaderDesc
	Stage() ShaderStage
	// Reinitialize replaces the bytecode. Pipelines created afterwards use
	// the new code.
	Reinitialize(code []byte) error
}

type DescriptorSetLayout interface {
	Object
	Desc() DescriptorSetLayoutDesc
}

type DescriptorSet interface {
	Object
	Layout() DescriptorSetLayout
	WriteBuffer(binding uint32, buf Buffer, offset, size uint64) error
	WriteTexture(binding uint32, tex Texture) error
	WriteSampler(binding uint32, s Sampler) error
}

type GraphicsPipeline interface {
	Object
	Desc() GraphicsPipelineDesc
}

type RenderPass interface {
	Object
	Desc() RenderPassDesc
	ShouldClearColor(attachment int) bool
	ShouldClearDepthStencil() bool
	ShouldClearStencil() bool
}

type Framebuffer interface {
	Object
	RenderPass() RenderPass
	ColorAttachmentCount() int
	ColorAttachment(i int) Texture
	HasDSV() bool
	DepthStencilAttachment() Texture
	Width() uint32
	Height() uint32
}

// CommandBuffer records GPU commands. It is not safe for concurrent use.
type CommandBuffer interface {
	Object
	Begin() error
	End() error
	Reset() error
	State() CommandBufferState
	IsRenderPassActive() bool

	SetPipeline(p GraphicsPipeline) error
	SetViewport(v Viewport) error
	SetScissor(r Rect) error
	BindVertexBuffer(slot uint32, buf Buffer, offset uint64) error
	BindIndexBuffer(buf Buffer, offset uint64, t IndexType) error
	BindDescriptorSet(index uint32, set DescriptorSet) error
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error

	ResourceBarrier(b BarrierDesc) error
	BeginRenderPass(pass RenderPass, fb Framebuffer, clears []ClearValue) error
	EndRenderPass() error

	CopyBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64) error
	CopyBufferToTexture(src Buffer, srcOffset uint64, dst Texture, mip, layer uint32) error
	CopyTextureToBuffer(src Texture, mip, layer uint32, dst Buffer, dstOffset uint64) error
	CopyTexture(src, dst Texture) error
	ClearColor(tex Texture, color [4]float32) error
	ClearDepthStencil(tex Texture, depth float32, stencil uint32) error
}

type Fence interface {
	Object
	// Wait blocks until the fence signals or timeoutNs elapses. It returns
	// false on timeout and leaves the fence untouched.
	Wait(timeoutNs uint64) bool
	IsSignaled() bool
	Reset()
	// Value is the last value the fence was asked to signal.
	Value() uint64
}

type Semaphore interface {
	Object
}

type SwapChain interface {
	Object
	// AcquireNextImage returns the index of the next back buffer. It returns
	// false when the swapchain is out of date and must be resized.
	AcquireNextImage(signal Semaphore) (uint32, bool)
	// Present returns false when the swapchain is out of date, suboptimal or
	// a resize was requested.
	Present(wait Semaphore) bool
	// Resize recreates every image from scratch. Back buffers obtained before
	// the call are no longer valid.
	Resize(width, height uint32) error
	// RequestResize makes the next Present fail so the owner resizes.
	RequestResize(width, height uint32)
	BufferCount() uint32
	CurrentImageIndex() uint32
	BackBuffer(i uint32) Texture
	Width() uint32
	Height() uint32
	Format() Format
}

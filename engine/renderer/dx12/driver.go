package dx12

import "github.com/spaghettifunk/rhi/engine/renderer/rhi"

// handle names a native object of the driver. Zero is the null handle.
type handle uint64

// cpuDescriptor and gpuDescriptor are D3D12_CPU_DESCRIPTOR_HANDLE and
// D3D12_GPU_DESCRIPTOR_HANDLE values.
type (
	cpuDescriptor uint64
	gpuDescriptor uint64
)

// resourceStates is D3D12_RESOURCE_STATES.
type resourceStates uint32

const (
	stateCommon                  resourceStates = 0
	stateVertexAndConstantBuffer resourceStates = 0x1
	stateIndexBuffer             resourceStates = 0x2
	stateRenderTarget            resourceStates = 0x4
	stateUnorderedAccess         resourceStates = 0x8
	stateDepthWrite              resourceStates = 0x10
	stateDepthRead               resourceStates = 0x20
	stateNonPixelShaderResource  resourceStates = 0x40
	statePixelShaderResource     resourceStates = 0x80
	stateCopyDest                resourceStates = 0x400
	stateCopySource              resourceStates = 0x800
	stateGenericRead             resourceStates = 0xAC3
	statePresent                 resourceStates = 0
)

// allSubresources is D3D12_RESOURCE_BARRIER_ALL_SUBRESOURCES.
const allSubresources = 0xffffffff

// D3D12_CLEAR_FLAGS.
const (
	clearFlagDepth   uint32 = 0x1
	clearFlagStencil uint32 = 0x2
)

// dxgiFormat is DXGI_FORMAT.
type dxgiFormat uint32

type heapKind int

const (
	heapCbvSrvUav heapKind = iota
	heapSampler
	heapRTV
	heapDSV
)

func (k heapKind) String() string {
	switch k {
	case heapCbvSrvUav:
		return "CBV_SRV_UAV"
	case heapSampler:
		return "SAMPLER"
	case heapRTV:
		return "RTV"
	case heapDSV:
		return "DSV"
	}
	return "UNKNOWN"
}

// memoryHeap is D3D12_HEAP_TYPE.
type memoryHeap int

const (
	heapDefault  memoryHeap = 1
	heapUpload   memoryHeap = 2
	heapReadback memoryHeap = 3
)

// resourceDimension is D3D12_RESOURCE_DIMENSION.
type resourceDimension int

const (
	dimensionBuffer    resourceDimension = 1
	dimensionTexture1D resourceDimension = 2
	dimensionTexture2D resourceDimension = 3
	dimensionTexture3D resourceDimension = 4
)

// resourceFlags is D3D12_RESOURCE_FLAGS.
type resourceFlags uint32

const (
	allowRenderTarget    resourceFlags = 0x1
	allowDepthStencil    resourceFlags = 0x2
	allowUnorderedAccess resourceFlags = 0x4
)

type resourceInfo struct {
	dimension resourceDimension
	// format is kept next to the native one: the headless driver stores
	// texels per rhi format.
	format           rhi.Format
	dxgi             dxgiFormat
	width            uint64
	height           uint32
	depthOrArraySize uint32
	mips             uint32
	flags            resourceFlags
	heap             memoryHeap
	state            resourceStates
	// clear is the optimized clear value of render and depth targets.
	clear    rhi.ClearValue
	hasClear bool
}

type heapInfo struct {
	handle    handle
	cpuStart  cpuDescriptor
	gpuStart  gpuDescriptor
	increment uint32
}

type viewKind int

const (
	viewRTV viewKind = iota
	viewDSV
	viewSRV
	viewUAV
	viewCBV
)

// viewInfo describes one descriptor. Buffer views use offset, size and
// stride; texture views cover every mip and layer.
type viewInfo struct {
	kind        viewKind
	resource    handle
	format      dxgiFormat
	textureType rhi.TextureType
	mips        uint32
	layers      uint32
	offset      uint64
	size        uint64
	stride      uint32
}

type samplerInfo struct {
	filter         uint32
	addressU       uint32
	addressV       uint32
	addressW       uint32
	maxAnisotropy  uint32
	comparison     uint32
	minLod, maxLod float32
}

// rangeType is D3D12_DESCRIPTOR_RANGE_TYPE.
type rangeType int

const (
	rangeSRV     rangeType = 0
	rangeUAV     rangeType = 1
	rangeCBV     rangeType = 2
	rangeSampler rangeType = 3
)

type descriptorRange struct {
	kind     rangeType
	count    uint32
	register uint32
	space    uint32
	offset   uint32
}

type rootTable struct {
	ranges []descriptorRange
}

type rootSignatureInfo struct {
	tables []rootTable
	// constants is the number of 32 bit root constants, bound at register
	// b0 of constantsSpace.
	constants      uint32
	constantsSpace uint32
}

type inputElement struct {
	semantic    string
	index       uint32
	format      dxgiFormat
	slot        uint32
	offset      uint32
	perInstance bool
}

type pipelineInfo struct {
	rootSignature handle
	vs, ps        []byte
	inputs        []inputElement
	topologyType  uint32
	cullMode      uint32
	frontCCW      bool
	wireframe     bool
	depthTest     bool
	depthWrite    bool
	depthFunc     uint32
	blend         bool
	rtvFormats    []dxgiFormat
	dsvFormat     dxgiFormat
}

type transition struct {
	resource    handle
	before      resourceStates
	after       resourceStates
	subresource uint32
}

// placedFootprint is D3D12_PLACED_SUBRESOURCE_FOOTPRINT.
type placedFootprint struct {
	offset   uint64
	format   dxgiFormat
	width    uint32
	height   uint32
	depth    uint32
	rowPitch uint32
}

type viewport struct {
	x, y, width, height float32
	minDepth, maxDepth  float32
}

type rect struct {
	left, top, right, bottom int32
}

type swapchainInfo struct {
	window any
	width  uint32
	height uint32
	count  uint32
	format rhi.Format
	vsync  bool
}

type swapchainBuffers struct {
	swapchain handle
	// buffers hold one reference each; destroyResource drops it.
	buffers []handle
	format  rhi.Format
	width   uint32
	height  uint32
}

// driver issues native Direct3D 12 calls on handles. The backend layer owns
// all RHI semantics and only reaches the API through this interface, which
// is implemented on gogpu's d3d12 bindings and by the headless driver.
type driver interface {
	name() string
	destroy()
	waitIdle()

	createCommittedResource(info resourceInfo) (handle, error)
	destroyResource(h handle)
	mapResource(h handle) ([]byte, error)
	unmapResource(h handle)

	createDescriptorHeap(kind heapKind, capacity uint32, shaderVisible bool) (heapInfo, error)
	destroyDescriptorHeap(h handle)
	createView(info viewInfo, dst cpuDescriptor)
	createSampler(info samplerInfo, dst cpuDescriptor)
	copyDescriptors(kind heapKind, dst, src cpuDescriptor, n uint32)

	createRootSignature(info rootSignatureInfo) (handle, error)
	destroyRootSignature(h handle)
	createGraphicsPipelineState(info pipelineInfo) (handle, error)
	destroyPipelineState(h handle)

	createCommandAllocator() (handle, error)
	resetCommandAllocator(h handle) error
	destroyCommandAllocator(h handle)
	// createCommandList returns a list that is open for recording.
	createCommandList(alloc handle) (handle, error)
	resetCommandList(list, alloc handle) error
	closeCommandList(list handle) error
	destroyCommandList(list handle)

	resourceBarrier(list handle, barriers []transition)
	setRenderTargets(list handle, rtvs []cpuDescriptor, dsv cpuDescriptor, hasDSV bool)
	clearRenderTarget(list handle, rtv cpuDescriptor, color [4]float32)
	// clearDepthStencil takes a mask of clearFlagDepth and clearFlagStencil.
	clearDepthStencil(list handle, dsv cpuDescriptor, flags uint32, depth float32, stencil uint8)
	setPipelineState(list, pso handle)
	setRootSignature(list, root handle)
	setDescriptorHeaps(list handle, heaps []handle)
	setRootDescriptorTable(list handle, index uint32, base gpuDescriptor)
	setViewport(list handle, v viewport)
	setScissor(list handle, r rect)
	setPrimitiveTopology(list handle, topology uint32)
	setVertexBuffer(list handle, slot uint32, buf handle, offset uint64, size, stride uint32)
	setIndexBuffer(list handle, buf handle, offset uint64, size uint32, format dxgiFormat)
	drawInstanced(list handle, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	drawIndexedInstanced(list handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	// Copies expect the source in COPY_SOURCE and the destination in
	// COPY_DEST. Upload and readback buffers never leave their heap state.
	copyBufferRegion(list handle, dst handle, dstOffset uint64, src handle, srcOffset, size uint64)
	copyBufferToTexture(list handle, src handle, footprint placedFootprint, dst handle, subresource uint32)
	copyTextureToBuffer(list handle, src handle, subresource uint32, dst handle, footprint placedFootprint)
	copyResource(list handle, dst, src handle)

	executeCommandLists(lists []handle) error
	queueSignal(fence handle, value uint64) error
	queueWait(fence handle, value uint64) error

	createFence(initial uint64) (handle, error)
	destroyFence(h handle)
	completedValue(h handle) uint64
	// waitForValue blocks until the fence reaches value or timeoutNs
	// elapsed and reports whether it reached it.
	waitForValue(h handle, value, timeoutNs uint64) bool

	createSwapChain(info swapchainInfo) (swapchainBuffers, error)
	// resizeSwapChain needs every buffer reference dropped first.
	resizeSwapChain(h handle, width, height, count uint32) (swapchainBuffers, error)
	destroySwapChain(h handle)
	currentBackBufferIndex(h handle) (uint32, error)
	// present returns rhi.ErrOutOfDate when the window no longer matches
	// the buffers.
	present(h handle, vsync bool) error
}

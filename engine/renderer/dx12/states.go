package dx12

import "github.com/spaghettifunk/rhi/engine/renderer/rhi"

// textureState is the resource state a layout maps to. Undefined and
// PresentSrc both map to COMMON, so moving between them records nothing.
func textureState(l rhi.ResourceLayout) resourceStates {
	switch l {
	case rhi.LayoutGeneral:
		return stateUnorderedAccess
	case rhi.LayoutColorAttachment:
		return stateRenderTarget
	case rhi.LayoutDepthStencilAttachment:
		return stateDepthWrite
	case rhi.LayoutDepthStencilReadOnly:
		return stateDepthRead | stateNonPixelShaderResource | statePixelShaderResource
	case rhi.LayoutShaderReadOnly:
		return stateNonPixelShaderResource | statePixelShaderResource
	case rhi.LayoutTransferSrc:
		return stateCopySource
	case rhi.LayoutTransferDst:
		return stateCopyDest
	case rhi.LayoutPresentSrc:
		return statePresent
	}
	return stateCommon
}

// bufferState is the state of a default heap buffer in layout l. Shader
// reads pick the states of the buffer usage.
func bufferState(l rhi.ResourceLayout, usage rhi.BufferUsage) resourceStates {
	switch l {
	case rhi.LayoutGeneral:
		return stateUnorderedAccess
	case rhi.LayoutTransferSrc:
		return stateCopySource
	case rhi.LayoutTransferDst:
		return stateCopyDest
	case rhi.LayoutShaderReadOnly:
		s := stateNonPixelShaderResource | statePixelShaderResource
		if usage&(rhi.BufferUsageVertex|rhi.BufferUsageUniform) != 0 {
			s |= stateVertexAndConstantBuffer
		}
		if usage&rhi.BufferUsageIndex != 0 {
			s |= stateIndexBuffer
		}
		return s
	}
	return stateCommon
}

// memoryHeapOf picks the heap of a buffer. Upload and readback resources
// live in one fixed state for their whole lifetime.
func memoryHeapOf(m rhi.MemoryType) (memoryHeap, resourceStates) {
	switch m {
	case rhi.MemoryCPUToGPU:
		return heapUpload, stateGenericRead
	case rhi.MemoryGPUToCPU:
		return heapReadback, stateCopyDest
	}
	return heapDefault, stateCommon
}

const (
	formatUnknown            dxgiFormat = 0
	formatR32G32B32A32Float  dxgiFormat = 2
	formatR32G32B32Float     dxgiFormat = 6
	formatR16G16B16A16Float  dxgiFormat = 10
	formatR32G32Float        dxgiFormat = 16
	formatR32G8X24Typeless   dxgiFormat = 19
	formatD32FloatS8X24Uint  dxgiFormat = 20
	formatR32FloatX8X24      dxgiFormat = 21
	formatR8G8B8A8Unorm      dxgiFormat = 28
	formatR8G8B8A8UnormSrgb  dxgiFormat = 29
	formatR32Typeless        dxgiFormat = 39
	formatD32Float           dxgiFormat = 40
	formatR32Float           dxgiFormat = 41
	formatR32Uint            dxgiFormat = 42
	formatR24G8Typeless      dxgiFormat = 44
	formatD24UnormS8Uint     dxgiFormat = 45
	formatR24UnormX8Typeless dxgiFormat = 46
	formatR8G8Unorm          dxgiFormat = 49
	formatR16Typeless        dxgiFormat = 53
	formatR16Float           dxgiFormat = 54
	formatD16Unorm           dxgiFormat = 55
	formatR16Unorm           dxgiFormat = 56
	formatR16Uint            dxgiFormat = 57
	formatR8Unorm            dxgiFormat = 61
	formatB8G8R8A8Unorm      dxgiFormat = 87
	formatB8G8R8A8UnormSrgb  dxgiFormat = 91
)

func toDXGIFormat(f rhi.Format) dxgiFormat {
	switch f {
	case rhi.FormatR8Unorm:
		return formatR8Unorm
	case rhi.FormatRG8Unorm:
		return formatR8G8Unorm
	case rhi.FormatRGBA8Unorm:
		return formatR8G8B8A8Unorm
	case rhi.FormatRGBA8Srgb:
		return formatR8G8B8A8UnormSrgb
	case rhi.FormatBGRA8Unorm:
		return formatB8G8R8A8Unorm
	case rhi.FormatBGRA8Srgb:
		return formatB8G8R8A8UnormSrgb
	case rhi.FormatR16Float:
		return formatR16Float
	case rhi.FormatRGBA16Float:
		return formatR16G16B16A16Float
	case rhi.FormatR32Float:
		return formatR32Float
	case rhi.FormatRG32Float:
		return formatR32G32Float
	case rhi.FormatRGB32Float:
		return formatR32G32B32Float
	case rhi.FormatRGBA32Float:
		return formatR32G32B32A32Float
	case rhi.FormatR32Uint:
		return formatR32Uint
	case rhi.FormatD16Unorm:
		return formatD16Unorm
	case rhi.FormatD24UnormS8Uint:
		return formatD24UnormS8Uint
	case rhi.FormatD32Float:
		return formatD32Float
	case rhi.FormatD32FloatS8Uint:
		return formatD32FloatS8X24Uint
	}
	return formatUnknown
}

// resourceFormat is the format a texture is created with. Depth textures
// that are also sampled need the typeless family so both views fit.
func resourceFormat(f rhi.Format, usage rhi.TextureUsage) dxgiFormat {
	if !f.IsDepth() || usage&rhi.TextureUsageSampled == 0 {
		return toDXGIFormat(f)
	}
	switch f {
	case rhi.FormatD16Unorm:
		return formatR16Typeless
	case rhi.FormatD24UnormS8Uint:
		return formatR24G8Typeless
	case rhi.FormatD32Float:
		return formatR32Typeless
	case rhi.FormatD32FloatS8Uint:
		return formatR32G8X24Typeless
	}
	return toDXGIFormat(f)
}

// shaderFormat is the format shaders read a texture through. For depth it
// is the depth plane.
func shaderFormat(f rhi.Format) dxgiFormat {
	switch f {
	case rhi.FormatD16Unorm:
		return formatR16Unorm
	case rhi.FormatD24UnormS8Uint:
		return formatR24UnormX8Typeless
	case rhi.FormatD32Float:
		return formatR32Float
	case rhi.FormatD32FloatS8Uint:
		return formatR32FloatX8X24
	}
	return toDXGIFormat(f)
}

func resourceDimensionOf(t rhi.TextureType) resourceDimension {
	switch t {
	case rhi.Texture1D:
		return dimensionTexture1D
	case rhi.Texture3D:
		return dimensionTexture3D
	}
	return dimensionTexture2D
}

func textureFlags(usage rhi.TextureUsage) resourceFlags {
	var f resourceFlags
	if usage&rhi.TextureUsageColorAttachment != 0 {
		f |= allowRenderTarget
	}
	if usage&rhi.TextureUsageDepthStencil != 0 {
		f |= allowDepthStencil
	}
	if usage&rhi.TextureUsageStorage != 0 {
		f |= allowUnorderedAccess
	}
	return f
}

func vertexFormat(f rhi.VertexFormat) dxgiFormat {
	switch f {
	case rhi.VertexFloat32:
		return formatR32Float
	case rhi.VertexFloat32x2:
		return formatR32G32Float
	case rhi.VertexFloat32x3:
		return formatR32G32B32Float
	case rhi.VertexFloat32x4:
		return formatR32G32B32A32Float
	case rhi.VertexUint32:
		return formatR32Uint
	}
	return formatUnknown
}

func indexFormat(t rhi.IndexType) dxgiFormat {
	if t == rhi.IndexTypeUint16 {
		return formatR16Uint
	}
	return formatR32Uint
}

// D3D_PRIMITIVE_TOPOLOGY and D3D12_PRIMITIVE_TOPOLOGY_TYPE.
func topology(t rhi.PrimitiveTopology) (primitive, kind uint32) {
	switch t {
	case rhi.TopologyTriangleStrip:
		return 5, 3
	case rhi.TopologyLineList:
		return 2, 2
	case rhi.TopologyPointList:
		return 1, 1
	}
	return 4, 3
}

// cullMode is D3D12_CULL_MODE.
func cullMode(c rhi.CullMode) uint32 {
	switch c {
	case rhi.CullModeFront:
		return 2
	case rhi.CullModeBack:
		return 3
	}
	return 1
}

// comparisonFunc is D3D12_COMPARISON_FUNC, which starts at NEVER = 1.
func comparisonFunc(op rhi.CompareOp) uint32 {
	return uint32(op) + 1
}

// addressMode is D3D12_TEXTURE_ADDRESS_MODE.
func addressMode(m rhi.AddressMode) uint32 {
	switch m {
	case rhi.AddressModeMirroredRepeat:
		return 2
	case rhi.AddressModeClampToEdge:
		return 3
	case rhi.AddressModeClampToBorder:
		return 4
	}
	return 1
}

// samplerFilter builds D3D12_FILTER from its min, mag and mip bits.
func samplerFilter(desc rhi.SamplerDesc) uint32 {
	var f uint32
	if desc.MaxAnisotropy > 1 {
		f = 0x55
	} else {
		if desc.MinFilter == rhi.FilterLinear {
			f |= 0x10
		}
		if desc.MagFilter == rhi.FilterLinear {
			f |= 0x4
		}
		if desc.MipFilter == rhi.FilterLinear {
			f |= 0x1
		}
	}
	if desc.CompareEnable {
		f |= 0x80
	}
	return f
}

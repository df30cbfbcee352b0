package rhi

import "fmt"

type Backend int

const (
	BackendVulkan Backend = iota
	BackendDX12
)

func (b Backend) String() string {
	switch b {
	case BackendVulkan:
		return "vulkan"
	case BackendDX12:
		return "dx12"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// ParseBackend accepts the names used in the config file.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "vulkan", "vk":
		return BackendVulkan, nil
	case "dx12", "d3d12":
		return BackendDX12, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

// ResourceLayout is the abstract access mode of a resource. Every backend maps
// it to its native image layout or resource state.
type ResourceLayout int

const (
	LayoutUndefined ResourceLayout = iota
	LayoutGeneral
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutDepthStencilReadOnly
	LayoutShaderReadOnly
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresentSrc
)

var layoutNames = [...]string{
	LayoutUndefined:              "Undefined",
	LayoutGeneral:                "General",
	LayoutColorAttachment:        "ColorAttachment",
	LayoutDepthStencilAttachment: "DepthStencilAttachment",
	LayoutDepthStencilReadOnly:   "DepthStencilReadOnly",
	LayoutShaderReadOnly:         "ShaderReadOnly",
	LayoutTransferSrc:            "TransferSrc",
	LayoutTransferDst:            "TransferDst",
	LayoutPresentSrc:             "PresentSrc",
}

func (l ResourceLayout) String() string {
	if l >= 0 && int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return fmt.Sprintf("ResourceLayout(%d)", int(l))
}

type Format int

const (
	FormatUndefined Format = iota
	FormatR8Unorm
	FormatRG8Unorm
	FormatRGBA8Unorm
	FormatRGBA8Srgb
	FormatBGRA8Unorm
	FormatBGRA8Srgb
	FormatR16Float
	FormatRGBA16Float
	FormatR32Float
	FormatRG32Float
	FormatRGB32Float
	FormatRGBA32Float
	FormatR32Uint
	FormatD16Unorm
	FormatD24UnormS8Uint
	FormatD32Float
	FormatD32FloatS8Uint
)

type formatInfo struct {
	name    string
	size    uint32
	depth   bool
	stencil bool
}

var formats = [...]formatInfo{
	FormatUndefined:      {"Undefined", 0, false, false},
	FormatR8Unorm:        {"R8Unorm", 1, false, false},
	FormatRG8Unorm:       {"RG8Unorm", 2, false, false},
	FormatRGBA8Unorm:     {"RGBA8Unorm", 4, false, false},
	FormatRGBA8Srgb:      {"RGBA8Srgb", 4, false, false},
	FormatBGRA8Unorm:     {"BGRA8Unorm", 4, false, false},
	FormatBGRA8Srgb:      {"BGRA8Srgb", 4, false, false},
	FormatR16Float:       {"R16Float", 2, false, false},
	FormatRGBA16Float:    {"RGBA16Float", 8, false, false},
	FormatR32Float:       {"R32Float", 4, false, false},
	FormatRG32Float:      {"RG32Float", 8, false, false},
	FormatRGB32Float:     {"RGB32Float", 12, false, false},
	FormatRGBA32Float:    {"RGBA32Float", 16, false, false},
	FormatR32Uint:        {"R32Uint", 4, false, false},
	FormatD16Unorm:       {"D16Unorm", 2, true, false},
	FormatD24UnormS8Uint: {"D24UnormS8Uint", 4, true, true},
	FormatD32Float:       {"D32Float", 4, true, false},
	FormatD32FloatS8Uint: {"D32FloatS8Uint", 8, true, true},
}

func (f Format) info() formatInfo {
	if f >= 0 && int(f) < len(formats) {
		return formats[f]
	}
	return formatInfo{name: fmt.Sprintf("Format(%d)", int(f))}
}

func (f Format) String() string { return f.info().name }

// BytesPerPixel is the size of one texel, 0 for FormatUndefined.
func (f Format) BytesPerPixel() uint32 { return f.info().size }

func (f Format) IsDepth() bool { return f.info().depth }

func (f Format) HasStencil() bool { return f.info().stencil }

type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageTransferSrc
	BufferUsageTransferDst
)

type TextureUsage uint32

const (
	TextureUsageSampled TextureUsage = 1 << iota
	TextureUsageStorage
	TextureUsageColorAttachment
	TextureUsageDepthStencil
	TextureUsageTransferSrc
	TextureUsageTransferDst
)

// MemoryType selects where a buffer lives. Only CPUToGPU and GPUToCPU buffers
// can be mapped.
type MemoryType int

const (
	MemoryGPUOnly MemoryType = iota
	MemoryCPUToGPU
	MemoryGPUToCPU
)

func (m MemoryType) Mappable() bool { return m != MemoryGPUOnly }

type TextureType int

const (
	Texture1D TextureType = iota
	Texture2D
	Texture3D
	TextureCube
)

type LoadOp int

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

type StoreOp int

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
	ShaderStageCompute
	ShaderStageAllGraphics = ShaderStageVertex | ShaderStageFragment
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	case ShaderStageCompute:
		return "compute"
	}
	return fmt.Sprintf("ShaderStage(%#x)", uint32(s))
}

type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
)

type AddressMode int

const (
	AddressModeRepeat AddressMode = iota
	AddressModeMirroredRepeat
	AddressModeClampToEdge
	AddressModeClampToBorder
)

type CompareOp int

const (
	CompareOpNever CompareOp = iota
	CompareOpLess
	CompareOpEqual
	CompareOpLessOrEqual
	CompareOpGreater
	CompareOpNotEqual
	CompareOpGreaterOrEqual
	CompareOpAlways
)

type PrimitiveTopology int

const (
	TopologyTriangleList PrimitiveTopology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyPointList
)

type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

type IndexType int

const (
	IndexTypeUint16 IndexType = iota
	IndexTypeUint32
)

func (t IndexType) Size() uint64 {
	if t == IndexTypeUint16 {
		return 2
	}
	return 4
}

type DescriptorType int

const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorStorageBuffer
	DescriptorSampledTexture
	DescriptorStorageTexture
	DescriptorSampler
)

type VertexFormat int

const (
	VertexFloat32 VertexFormat = iota
	VertexFloat32x2
	VertexFloat32x3
	VertexFloat32x4
	VertexUint32
)

// CommandBufferState is the recording state of a command buffer. An active
// render pass is tracked separately.
type CommandBufferState int

const (
	CommandBufferInitial CommandBufferState = iota
	CommandBufferRecording
	CommandBufferExecutable
)

func (s CommandBufferState) String() string {
	switch s {
	case CommandBufferInitial:
		return "Initial"
	case CommandBufferRecording:
		return "Recording"
	case CommandBufferExecutable:
		return "Executable"
	}
	return fmt.Sprintf("CommandBufferState(%d)", int(s))
}

type QueueType int

const (
	QueueGraphics QueueType = iota
	QueueCompute
	QueueCopy
)

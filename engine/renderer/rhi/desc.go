package rhi

// Descriptions are plain values consumed once when an object is created. The
// ones used as cache keys (SamplerDesc, RenderPassDesc, GraphicsPipelineDesc)
// avoid pointers other than RHI objects, so equal content hashes equally.

type BufferDesc struct {
	Name   string
	Size   uint64
	Usage  BufferUsage
	Memory MemoryType
	// Stride of one element for vertex and structured buffers.
	Stride uint32
}

type TextureDesc struct {
	Name          string
	Type          TextureType
	Format        Format
	Width         uint32
	Height        uint32
	Depth         uint32
	MipLevels     uint32
	ArrayLayers   uint32
	Usage         TextureUsage
	InitialLayout ResourceLayout
}

// Normalized fills the zero extents and counts with 1.
func (d TextureDesc) Normalized() TextureDesc {
	if d.Height == 0 {
		d.Height = 1
	}
	if d.Depth == 0 {
		d.Depth = 1
	}
	if d.MipLevels == 0 {
		d.MipLevels = 1
	}
	if d.ArrayLayers == 0 {
		d.ArrayLayers = 1
		if d.Type == TextureCube {
			d.ArrayLayers = 6
		}
	}
	return d
}

type SamplerDesc struct {
	MinFilter     Filter
	MagFilter     Filter
	MipFilter     Filter
	AddressU      AddressMode
	AddressV      AddressMode
	AddressW      AddressMode
	MaxAnisotropy float32
	CompareEnable bool
	Compare       CompareOp
	MinLod        float32
	MaxLod        float32
}

type ShaderDesc struct {
	Name       string
	Stage      ShaderStage
	EntryPoint string
	// SPIR-V for Vulkan, DXIL or DXBC for DX12.
	Code []byte
}

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

type DescriptorSetLayoutDesc struct {
	Bindings []DescriptorBinding
}

type DescriptorSetDesc struct {
	Layout DescriptorSetLayout
}

type VertexBinding struct {
	Binding     uint32
	Stride      uint32
	PerInstance bool
}

type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   VertexFormat
	Offset   uint32
}

type GraphicsPipelineDesc struct {
	Name                 string
	VertexShader         Shader
	FragmentShader       Shader
	VertexBindings       []VertexBinding
	VertexAttributes     []VertexAttribute
	Topology             PrimitiveTopology
	CullMode             CullMode
	FrontCounterClock    bool
	Wireframe            bool
	DepthTest            bool
	DepthWrite           bool
	DepthCompare         CompareOp
	BlendEnable          bool
	DescriptorSetLayouts []DescriptorSetLayout
	PushConstantSize     uint32
	RenderPass           RenderPass
}

type AttachmentDesc struct {
	Format         Format
	LoadOp         LoadOp
	StoreOp        StoreOp
	StencilLoadOp  LoadOp
	StencilStoreOp StoreOp
	// FinalLayout is the layout EndRenderPass leaves the attachment in.
	// LayoutUndefined selects ShaderReadOnly for color attachments and
	// DepthStencilReadOnly for depth attachments.
	FinalLayout ResourceLayout
}

// ResolvedFinalLayout applies the default of FinalLayout.
func (a AttachmentDesc) ResolvedFinalLayout() ResourceLayout {
	if a.FinalLayout != LayoutUndefined {
		return a.FinalLayout
	}
	if a.Format.IsDepth() {
		return LayoutDepthStencilReadOnly
	}
	return LayoutShaderReadOnly
}

type RenderPassDesc struct {
	ColorAttachments       []AttachmentDesc
	HasDepthStencil        bool
	DepthStencilAttachment AttachmentDesc
}

type FramebufferDesc struct {
	RenderPass             RenderPass
	ColorAttachments       []Texture
	DepthStencilAttachment Texture
	Width                  uint32
	Height                 uint32
}

type SwapchainDesc struct {
	// Window is the platform window. Native drivers need a surface provider
	// (glfw window or a Win32 handle); headless drivers accept nil.
	Window      any
	Width       uint32
	Height      uint32
	Format      Format
	BufferCount uint32
	VSync       bool
}

type CommandBufferDesc struct {
	Name  string
	Queue QueueType
	// Worker identifies the recording goroutine. Command buffers recorded
	// concurrently must use distinct workers.
	Worker int
}

type FenceDesc struct {
	Signaled bool
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

type Rect struct {
	X, Y          int32
	Width, Height uint32
}

// BarrierDesc describes a transition of one texture or buffer. OldLayout is
// advisory: the tracked layout of the resource is the source of truth.
type BarrierDesc struct {
	Texture   Texture
	Buffer    Buffer
	OldLayout ResourceLayout
	NewLayout ResourceLayout
}

type SubmitInfo struct {
	SignalFence      Fence
	WaitSemaphores   []Semaphore
	SignalSemaphores []Semaphore
}

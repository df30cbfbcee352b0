package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// imageState is the native state a ResourceLayout maps to: the image layout
// plus the access and pipeline stages a barrier has to synchronize.
type imageState struct {
	layout vk.ImageLayout
	access vk.AccessFlags
	stages vk.PipelineStageFlags
}

func layoutState(l rhi.ResourceLayout) imageState {
	switch l {
	case rhi.LayoutGeneral:
		return imageState{
			vk.ImageLayoutGeneral,
			vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		}
	case rhi.LayoutColorAttachment:
		return imageState{
			vk.ImageLayoutColorAttachmentOptimal,
			vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		}
	case rhi.LayoutDepthStencilAttachment:
		return imageState{
			vk.ImageLayoutDepthStencilAttachmentOptimal,
			vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit),
		}
	case rhi.LayoutDepthStencilReadOnly:
		return imageState{
			vk.ImageLayoutDepthStencilReadOnlyOptimal,
			vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessShaderReadBit),
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageFragmentShaderBit),
		}
	case rhi.LayoutShaderReadOnly:
		return imageState{
			vk.ImageLayoutShaderReadOnlyOptimal,
			vk.AccessFlags(vk.AccessShaderReadBit),
			vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit | vk.PipelineStageFragmentShaderBit),
		}
	case rhi.LayoutTransferSrc:
		return imageState{
			vk.ImageLayoutTransferSrcOptimal,
			vk.AccessFlags(vk.AccessTransferReadBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		}
	case rhi.LayoutTransferDst:
		return imageState{
			vk.ImageLayoutTransferDstOptimal,
			vk.AccessFlags(vk.AccessTransferWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		}
	case rhi.LayoutPresentSrc:
		return imageState{
			vk.ImageLayoutPresentSrc,
			0,
			vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
		}
	}
	return imageState{vk.ImageLayoutUndefined, 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)}
}

// bufferAccess is what a buffer barrier synchronizes for a layout. Buffers
// have no layout of their own, so layouts with equal access need no barrier.
func bufferAccess(l rhi.ResourceLayout, usage rhi.BufferUsage) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch l {
	case rhi.LayoutTransferSrc:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case rhi.LayoutTransferDst:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case rhi.LayoutGeneral:
		return vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit), vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	case rhi.LayoutShaderReadOnly:
		var access vk.AccessFlagBits
		if usage&rhi.BufferUsageVertex != 0 {
			access |= vk.AccessVertexAttributeReadBit
		}
		if usage&rhi.BufferUsageIndex != 0 {
			access |= vk.AccessIndexReadBit
		}
		if usage&rhi.BufferUsageUniform != 0 {
			access |= vk.AccessUniformReadBit
		}
		if usage&rhi.BufferUsageStorage != 0 || access == 0 {
			access |= vk.AccessShaderReadBit
		}
		return vk.AccessFlags(access), vk.PipelineStageFlags(vk.PipelineStageVertexInputBit | vk.PipelineStageVertexShaderBit | vk.PipelineStageFragmentShaderBit)
	}
	return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
}

var formats = map[rhi.Format]vk.Format{
	rhi.FormatUndefined:      vk.FormatUndefined,
	rhi.FormatR8Unorm:        vk.FormatR8Unorm,
	rhi.FormatRG8Unorm:       vk.FormatR8g8Unorm,
	rhi.FormatRGBA8Unorm:     vk.FormatR8g8b8a8Unorm,
	rhi.FormatRGBA8Srgb:      vk.FormatR8g8b8a8Srgb,
	rhi.FormatBGRA8Unorm:     vk.FormatB8g8r8a8Unorm,
	rhi.FormatBGRA8Srgb:      vk.FormatB8g8r8a8Srgb,
	rhi.FormatR16Float:       vk.FormatR16Sfloat,
	rhi.FormatRGBA16Float:    vk.FormatR16g16b16a16Sfloat,
	rhi.FormatR32Float:       vk.FormatR32Sfloat,
	rhi.FormatRG32Float:      vk.FormatR32g32Sfloat,
	rhi.FormatRGB32Float:     vk.FormatR32g32b32Sfloat,
	rhi.FormatRGBA32Float:    vk.FormatR32g32b32a32Sfloat,
	rhi.FormatR32Uint:        vk.FormatR32Uint,
	rhi.FormatD16Unorm:       vk.FormatD16Unorm,
	rhi.FormatD24UnormS8Uint: vk.FormatD24UnormS8Uint,
	rhi.FormatD32Float:       vk.FormatD32Sfloat,
	rhi.FormatD32FloatS8Uint: vk.FormatD32SfloatS8Uint,
}

func vkFormat(f rhi.Format) vk.Format {
	if v, ok := formats[f]; ok {
		return v
	}
	return vk.FormatUndefined
}

// rhiFormat is the inverse of vkFormat; surface formats come back from the
// driver as native values.
func rhiFormat(f vk.Format) rhi.Format {
	for k, v := range formats {
		if v == f {
			return k
		}
	}
	return rhi.FormatUndefined
}

func aspectMask(f rhi.Format) vk.ImageAspectFlags {
	if !f.IsDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	mask := vk.ImageAspectDepthBit
	if f.HasStencil() {
		mask |= vk.ImageAspectStencilBit
	}
	return vk.ImageAspectFlags(mask)
}

func bufferUsage(u rhi.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if u&rhi.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if u&rhi.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if u&rhi.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if u&rhi.BufferUsageStorage != 0 {
		flags |= vk.BufferUsageStorageBufferBit
	}
	if u&rhi.BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	if u&rhi.BufferUsageTransferDst != 0 {
		flags |= vk.BufferUsageTransferDstBit
	}
	return vk.BufferUsageFlags(flags)
}

// imageUsage maps texture usage. Sampled textures are uploaded and
// attachments cleared outside a render pass, which both need TRANSFER_DST.
func imageUsage(u rhi.TextureUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if u&rhi.TextureUsageSampled != 0 {
		flags |= vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit
	}
	if u&rhi.TextureUsageStorage != 0 {
		flags |= vk.ImageUsageStorageBit
	}
	if u&rhi.TextureUsageColorAttachment != 0 {
		flags |= vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit
	}
	if u&rhi.TextureUsageDepthStencil != 0 {
		flags |= vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageTransferDstBit
	}
	if u&rhi.TextureUsageTransferSrc != 0 {
		flags |= vk.ImageUsageTransferSrcBit
	}
	if u&rhi.TextureUsageTransferDst != 0 {
		flags |= vk.ImageUsageTransferDstBit
	}
	return vk.ImageUsageFlags(flags)
}

func imageType(t rhi.TextureType) vk.ImageType {
	switch t {
	case rhi.Texture1D:
		return vk.ImageType1d
	case rhi.Texture3D:
		return vk.ImageType3d
	}
	return vk.ImageType2d
}

func viewType(t rhi.TextureType, layers uint32) vk.ImageViewType {
	switch t {
	case rhi.Texture1D:
		return vk.ImageViewType1d
	case rhi.Texture3D:
		return vk.ImageViewType3d
	case rhi.TextureCube:
		return vk.ImageViewTypeCube
	}
	if layers > 1 {
		return vk.ImageViewType2dArray
	}
	return vk.ImageViewType2d
}

func loadOp(op rhi.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case rhi.LoadOpClear:
		return vk.AttachmentLoadOpClear
	case rhi.LoadOpDontCare:
		return vk.AttachmentLoadOpDontCare
	}
	return vk.AttachmentLoadOpLoad
}

func storeOp(op rhi.StoreOp) vk.AttachmentStoreOp {
	if op == rhi.StoreOpDontCare {
		return vk.AttachmentStoreOpDontCare
	}
	return vk.AttachmentStoreOpStore
}

func filter(f rhi.Filter) vk.Filter {
	if f == rhi.FilterLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

func mipmapMode(f rhi.Filter) vk.SamplerMipmapMode {
	if f == rhi.FilterLinear {
		return vk.SamplerMipmapModeLinear
	}
	return vk.SamplerMipmapModeNearest
}

func addressMode(m rhi.AddressMode) vk.SamplerAddressMode {
	switch m {
	case rhi.AddressModeMirroredRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	case rhi.AddressModeClampToEdge:
		return vk.SamplerAddressModeClampToEdge
	case rhi.AddressModeClampToBorder:
		return vk.SamplerAddressModeClampToBorder
	}
	return vk.SamplerAddressModeRepeat
}

func compareOp(op rhi.CompareOp) vk.CompareOp {
	switch op {
	case rhi.CompareOpLess:
		return vk.CompareOpLess
	case rhi.CompareOpEqual:
		return vk.CompareOpEqual
	case rhi.CompareOpLessOrEqual:
		return vk.CompareOpLessOrEqual
	case rhi.CompareOpGreater:
		return vk.CompareOpGreater
	case rhi.CompareOpNotEqual:
		return vk.CompareOpNotEqual
	case rhi.CompareOpGreaterOrEqual:
		return vk.CompareOpGreaterOrEqual
	case rhi.CompareOpAlways:
		return vk.CompareOpAlways
	}
	return vk.CompareOpNever
}

func topology(t rhi.PrimitiveTopology) vk.PrimitiveTopology {
	switch t {
	case rhi.TopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case rhi.TopologyLineList:
		return vk.PrimitiveTopologyLineList
	case rhi.TopologyPointList:
		return vk.PrimitiveTopologyPointList
	}
	return vk.PrimitiveTopologyTriangleList
}

func cullMode(c rhi.CullMode) vk.CullModeFlags {
	switch c {
	case rhi.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case rhi.CullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

func indexType(t rhi.IndexType) vk.IndexType {
	if t == rhi.IndexTypeUint16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

func descriptorType(t rhi.DescriptorType) vk.DescriptorType {
	switch t {
	case rhi.DescriptorStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case rhi.DescriptorSampledTexture:
		return vk.DescriptorTypeSampledImage
	case rhi.DescriptorStorageTexture:
		return vk.DescriptorTypeStorageImage
	case rhi.DescriptorSampler:
		return vk.DescriptorTypeSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func shaderStages(s rhi.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if s&rhi.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if s&rhi.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	if s&rhi.ShaderStageCompute != 0 {
		flags |= vk.ShaderStageComputeBit
	}
	return vk.ShaderStageFlags(flags)
}

func vertexFormat(f rhi.VertexFormat) vk.Format {
	switch f {
	case rhi.VertexFloat32x2:
		return vk.FormatR32g32Sfloat
	case rhi.VertexFloat32x3:
		return vk.FormatR32g32b32Sfloat
	case rhi.VertexFloat32x4:
		return vk.FormatR32g32b32a32Sfloat
	case rhi.VertexUint32:
		return vk.FormatR32Uint
	}
	return vk.FormatR32Sfloat
}

// transferDst reports whether imageUsage gives the texture TRANSFER_DST.
func transferDst(u rhi.TextureUsage) bool {
	return u&(rhi.TextureUsageSampled|rhi.TextureUsageColorAttachment|rhi.TextureUsageDepthStencil|rhi.TextureUsageTransferDst) != 0
}

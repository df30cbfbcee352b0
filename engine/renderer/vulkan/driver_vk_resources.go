package vulkan

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rhi/engine/core"
)

func (d *vulkanDriver) createBuffer(info bufferInfo) (handle, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(info.size),
		Usage:       info.usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var buf vk.Buffer
	if res := vk.CreateBuffer(d.device, &createInfo, nil, &buf); res != vk.Success {
		return 0, resultError("vkCreateBuffer", res)
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buf, &req)
	mem, err := d.allocate(req, info.hostVisible)
	if err != nil {
		vk.DestroyBuffer(d.device, buf, nil)
		return 0, err
	}
	if res := vk.BindBufferMemory(d.device, buf, mem, 0); res != vk.Success {
		vk.FreeMemory(d.device, mem, nil)
		vk.DestroyBuffer(d.device, buf, nil)
		return 0, resultError("vkBindBufferMemory", res)
	}
	return d.add(&vkBuffer{buffer: buf, memory: mem, size: info.size, hostVisible: info.hostVisible}), nil
}

func (d *vulkanDriver) destroyBuffer(h handle) {
	b, ok := take[*vkBuffer](d, h)
	if !ok {
		return
	}
	if b.mapped != nil {
		vk.UnmapMemory(d.device, b.memory)
	}
	vk.DestroyBuffer(d.device, b.buffer, nil)
	vk.FreeMemory(d.device, b.memory, nil)
}

// mapBuffer maps the whole buffer once; later calls return the same bytes.
func (d *vulkanDriver) mapBuffer(h handle) ([]byte, error) {
	b := native[*vkBuffer](d, h)
	if b == nil {
		return nil, fmt.Errorf("map of unknown buffer %d", h)
	}
	if !b.hostVisible {
		return nil, fmt.Errorf("buffer %d is device local", h)
	}
	if b.mapped != nil {
		return b.mapped, nil
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(d.device, b.memory, 0, vk.DeviceSize(b.size), 0, &ptr); res != vk.Success {
		return nil, resultError("vkMapMemory", res)
	}
	b.mapped = unsafe.Slice((*byte)(ptr), b.size)
	return b.mapped, nil
}

func (d *vulkanDriver) unmapBuffer(h handle) {
	b := native[*vkBuffer](d, h)
	if b == nil || b.mapped == nil {
		return
	}
	vk.UnmapMemory(d.device, b.memory)
	b.mapped = nil
}

func (d *vulkanDriver) createImage(info imageInfo) (handle, error) {
	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: info.imageType,
		Format:    info.vkFormat,
		Extent: vk.Extent3D{
			Width:  info.width,
			Height: info.height,
			Depth:  info.depth,
		},
		MipLevels:     info.mips,
		ArrayLayers:   info.layers,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         info.usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if info.cube {
		createInfo.Flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}
	var img vk.Image
	if res := vk.CreateImage(d.device, &createInfo, nil, &img); res != vk.Success {
		return 0, resultError("vkCreateImage", res)
	}
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, img, &req)
	mem, err := d.allocate(req, false)
	if err != nil {
		vk.DestroyImage(d.device, img, nil)
		return 0, err
	}
	if res := vk.BindImageMemory(d.device, img, mem, 0); res != vk.Success {
		vk.FreeMemory(d.device, mem, nil)
		vk.DestroyImage(d.device, img, nil)
		return 0, resultError("vkBindImageMemory", res)
	}
	return d.add(&vkImage{
		image:  img,
		memory: mem,
		aspect: aspectMask(info.format),
		mips:   info.mips,
		layers: info.layers,
	}), nil
}

// destroyImage frees owned images. Swapchain images only drop their handle.
func (d *vulkanDriver) destroyImage(h handle) {
	img, ok := take[*vkImage](d, h)
	if !ok || img.memory == nil {
		return
	}
	vk.DestroyImage(d.device, img.image, nil)
	vk.FreeMemory(d.device, img.memory, nil)
}

func (d *vulkanDriver) createImageView(info viewInfo) (handle, error) {
	img := native[*vkImage](d, info.image)
	if img == nil {
		return 0, fmt.Errorf("view of unknown image %d", info.image)
	}
	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.image,
		ViewType: info.viewType,
		Format:   info.format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: info.aspect,
			LevelCount: info.mips,
			LayerCount: info.layers,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(d.device, &createInfo, nil, &view); res != vk.Success {
		return 0, resultError("vkCreateImageView", res)
	}
	return d.add(view), nil
}

func (d *vulkanDriver) destroyImageView(h handle) {
	if view, ok := take[vk.ImageView](d, h); ok {
		vk.DestroyImageView(d.device, view, nil)
	}
}

func (d *vulkanDriver) createSampler(info samplerInfo) (handle, error) {
	createInfo := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    info.magFilter,
		MinFilter:    info.minFilter,
		MipmapMode:   info.mipmapMode,
		AddressModeU: info.addressU,
		AddressModeV: info.addressV,
		AddressModeW: info.addressW,
		CompareOp:    info.compareOp,
		MinLod:       info.minLod,
		MaxLod:       info.maxLod,
		BorderColor:  vk.BorderColorFloatOpaqueBlack,
	}
	if info.maxAnisotropy > 1 && d.anisotropy {
		createInfo.AnisotropyEnable = vk.True
		createInfo.MaxAnisotropy = info.maxAnisotropy
	}
	if info.compareEnable {
		createInfo.CompareEnable = vk.True
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(d.device, &createInfo, nil, &sampler); res != vk.Success {
		return 0, resultError("vkCreateSampler", res)
	}
	return d.add(sampler), nil
}

func (d *vulkanDriver) destroySampler(h handle) {
	if s, ok := take[vk.Sampler](d, h); ok {
		vk.DestroySampler(d.device, s, nil)
	}
}

// spirvWords repacks SPIR-V bytes into the words the create info takes.
func spirvWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}

func (d *vulkanDriver) createShaderModule(code []byte) (handle, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    spirvWords(code),
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(d.device, &createInfo, nil, &module); res != vk.Success {
		return 0, resultError("vkCreateShaderModule", res)
	}
	return d.add(module), nil
}

func (d *vulkanDriver) destroyShaderModule(h handle) {
	if m, ok := take[vk.ShaderModule](d, h); ok {
		vk.DestroyShaderModule(d.device, m, nil)
	}
}

func (d *vulkanDriver) createDescriptorSetLayout(bindings []layoutBinding) (handle, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.binding,
			DescriptorType:  b.kind,
			DescriptorCount: b.count,
			StageFlags:      b.stages,
		}
	}
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.device, &createInfo, nil, &layout); res != vk.Success {
		return 0, resultError("vkCreateDescriptorSetLayout", res)
	}
	return d.add(layout), nil
}

func (d *vulkanDriver) destroyDescriptorSetLayout(h handle) {
	if l, ok := take[vk.DescriptorSetLayout](d, h); ok {
		vk.DestroyDescriptorSetLayout(d.device, l, nil)
	}
}

func (d *vulkanDriver) createDescriptorPool(info poolInfo) (handle, error) {
	sizes := make([]vk.DescriptorPoolSize, 0, len(info.sizes))
	for kind, n := range info.sizes {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: kind, DescriptorCount: n})
	}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       info.maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.device, &createInfo, nil, &pool); res != vk.Success {
		return 0, resultError("vkCreateDescriptorPool", res)
	}
	return d.add(pool), nil
}

func (d *vulkanDriver) destroyDescriptorPool(h handle) {
	if p, ok := take[vk.DescriptorPool](d, h); ok {
		vk.DestroyDescriptorPool(d.device, p, nil)
	}
}

func (d *vulkanDriver) allocateDescriptorSet(pool, layout handle) (handle, vk.Result) {
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     native[vk.DescriptorPool](d, pool),
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{native[vk.DescriptorSetLayout](d, layout)},
	}
	var set vk.DescriptorSet
	var res vk.Result
	d.locks.SafeCall(DescriptorManagement, func() error {
		res = vk.AllocateDescriptorSets(d.device, &allocInfo, &set)
		return nil
	})
	if res != vk.Success {
		return 0, res
	}
	return d.add(set), vk.Success
}

func (d *vulkanDriver) freeDescriptorSet(pool, set handle) {
	s, ok := take[vk.DescriptorSet](d, set)
	if !ok {
		return
	}
	d.locks.SafeCall(DescriptorManagement, func() error {
		vk.FreeDescriptorSets(d.device, native[vk.DescriptorPool](d, pool), 1, &s)
		return nil
	})
}

func (d *vulkanDriver) writeDescriptor(w descriptorWrite) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          native[vk.DescriptorSet](d, w.set),
		DstBinding:      w.binding,
		DescriptorCount: 1,
		DescriptorType:  w.kind,
	}
	switch {
	case w.buffer != 0:
		b := native[*vkBuffer](d, w.buffer)
		if b == nil {
			core.LogError("descriptor write of unknown buffer %d", w.buffer)
			return
		}
		write.PBufferInfo = []vk.DescriptorBufferInfo{{
			Buffer: b.buffer,
			Offset: vk.DeviceSize(w.offset),
			Range:  vk.DeviceSize(w.size),
		}}
	case w.view != 0:
		write.PImageInfo = []vk.DescriptorImageInfo{{
			ImageView:   native[vk.ImageView](d, w.view),
			ImageLayout: w.layout,
		}}
	case w.sampler != 0:
		write.PImageInfo = []vk.DescriptorImageInfo{{
			Sampler: native[vk.Sampler](d, w.sampler),
		}}
	}
	d.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(d.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
		return nil
	})
}

func (d *vulkanDriver) createPipelineLayout(setLayouts []handle, pushConstantSize uint32) (handle, error) {
	layouts := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, h := range setLayouts {
		layouts[i] = native[vk.DescriptorSetLayout](d, h)
	}
	createInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(layouts)),
		PSetLayouts:    layouts,
	}
	if pushConstantSize > 0 {
		createInfo.PushConstantRangeCount = 1
		createInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
			Size:       pushConstantSize,
		}}
	}
	var layout vk.PipelineLayout
	err := d.locks.SafeCall(PipelineManagement, func() error {
		if res := vk.CreatePipelineLayout(d.device, &createInfo, nil, &layout); !VulkanResultIsSuccess(res) {
			return resultError("vkCreatePipelineLayout", res)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return d.add(layout), nil
}

func (d *vulkanDriver) destroyPipelineLayout(h handle) {
	if l, ok := take[vk.PipelineLayout](d, h); ok {
		vk.DestroyPipelineLayout(d.device, l, nil)
	}
}

func (d *vulkanDriver) createGraphicsPipeline(info pipelineInfo) (handle, error) {
	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: native[vk.ShaderModule](d, info.vertex),
			PName:  VulkanSafeString(info.vertexEntry),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: native[vk.ShaderModule](d, info.fragment),
			PName:  VulkanSafeString(info.fragmentEntry),
		},
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(info.bindings)),
		PVertexBindingDescriptions:      info.bindings,
		VertexAttributeDescriptionCount: uint32(len(info.attributes)),
		PVertexAttributeDescriptions:    info.attributes,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               info.topology,
		PrimitiveRestartEnable: vk.False,
	}
	// Viewport and scissor are dynamic.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             info.polygonMode,
		CullMode:                info.cullMode,
		FrontFace:               info.frontFace,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}
	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.False,
		DepthWriteEnable: vk.False,
		DepthCompareOp:   info.depthCompare,
	}
	if info.depthTest {
		depthStencil.DepthTestEnable = vk.True
	}
	if info.depthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}

	writeMask := vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
		vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit)
	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, info.colorCount)
	for i := range blendAttachments {
		blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:    vk.False,
			ColorWriteMask: writeMask,
		}
		if info.blend {
			blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
				BlendEnable:         vk.True,
				SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
				DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
				ColorBlendOp:        vk.BlendOpAdd,
				SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
				DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
				AlphaBlendOp:        vk.BlendOpAdd,
				ColorWriteMask:      writeMask,
			}
		}
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              native[vk.PipelineLayout](d, info.layout),
		RenderPass:          d.renderPass(info.renderPass),
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	err := d.locks.SafeCall(PipelineManagement, func() error {
		res := vk.CreateGraphicsPipelines(d.device, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, nil, pipelines)
		if !VulkanResultIsSuccess(res) {
			return resultError("vkCreateGraphicsPipelines", res)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return d.add(pipelines[0]), nil
}

func (d *vulkanDriver) destroyPipeline(h handle) {
	if p, ok := take[vk.Pipeline](d, h); ok {
		vk.DestroyPipeline(d.device, p, nil)
	}
}

func (d *vulkanDriver) createRenderPass(info renderPassInfo) (handle, error) {
	attachments := make([]vk.AttachmentDescription, 0, len(info.colors)+1)
	colorRefs := make([]vk.AttachmentReference, 0, len(info.colors))
	describe := func(a attachmentInfo) vk.AttachmentDescription {
		return vk.AttachmentDescription{
			Format:         a.vkFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         a.loadOp,
			StoreOp:        a.storeOp,
			StencilLoadOp:  a.stencilLoadOp,
			StencilStoreOp: a.stencilStoreOp,
			InitialLayout:  a.initialLayout,
			FinalLayout:    a.finalLayout,
		}
	}
	for i, c := range info.colors {
		attachments = append(attachments, describe(c))
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(i),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}
	stages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	access := vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	if info.hasDepth {
		attachments = append(attachments, describe(info.depth))
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(len(info.colors)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		stages |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		access |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stages,
		DstStageMask:  stages,
		DstAccessMask: access,
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	pass := &vkRenderPass{depth: -1}
	if info.hasDepth {
		pass.depth = len(info.colors)
	}
	if res := vk.CreateRenderPass(d.device, &createInfo, nil, &pass.pass); res != vk.Success {
		return 0, resultError("vkCreateRenderPass", res)
	}
	return d.add(pass), nil
}

func (d *vulkanDriver) renderPass(h handle) vk.RenderPass {
	if p := native[*vkRenderPass](d, h); p != nil {
		return p.pass
	}
	return vk.NullRenderPass
}

func (d *vulkanDriver) destroyRenderPass(h handle) {
	if p, ok := take[*vkRenderPass](d, h); ok {
		vk.DestroyRenderPass(d.device, p.pass, nil)
	}
}

func (d *vulkanDriver) createFramebuffer(info framebufferInfo) (handle, error) {
	views := make([]vk.ImageView, len(info.views))
	for i, h := range info.views {
		views[i] = native[vk.ImageView](d, h)
	}
	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      d.renderPass(info.renderPass),
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           info.width,
		Height:          info.height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if res := vk.CreateFramebuffer(d.device, &createInfo, nil, &fb); res != vk.Success {
		return 0, resultError("vkCreateFramebuffer", res)
	}
	return d.add(fb), nil
}

func (d *vulkanDriver) destroyFramebuffer(h handle) {
	if fb, ok := take[vk.Framebuffer](d, h); ok {
		vk.DestroyFramebuffer(d.device, fb, nil)
	}
}

package vulkan

import (
	"fmt"
	"sync/atomic"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// GraphicsPipeline owns its VkPipeline and the VkPipelineLayout built from
// the descriptor set layouts and push constant range of its description.
type GraphicsPipeline struct {
	dev    *Device
	desc   rhi.GraphicsPipelineDesc
	id     uuid.UUID
	handle handle
	layout handle
	cached bool
	valid  atomic.Bool
}

// pipelineKey identifies a cached pipeline. Shader generations make a
// reinitialized shader produce a new pipeline.
type pipelineKey struct {
	desc               rhi.GraphicsPipelineDesc
	vertexGen, fragGen uint64
}

func (d *Device) CreateGraphicsPipeline(desc rhi.GraphicsPipelineDesc) (rhi.GraphicsPipeline, error) {
	p, err := d.createGraphicsPipeline(desc)
	if err != nil {
		return nil, err
	}
	p.id = d.registry.Add("GraphicsPipeline", desc.Name, p)
	return p, nil
}

func (d *Device) GetOrCreateGraphicsPipeline(desc rhi.GraphicsPipelineDesc) (rhi.GraphicsPipeline, error) {
	key := pipelineKey{desc: desc}
	if vs, ok := desc.VertexShader.(*Shader); ok && vs != nil {
		_, key.vertexGen, _ = vs.current()
	}
	if fs, ok := desc.FragmentShader.(*Shader); ok && fs != nil {
		_, key.fragGen, _ = fs.current()
	}
	p, err := d.pipelines.GetOrCreate(key, func() (*GraphicsPipeline, error) {
		p, err := d.createGraphicsPipeline(desc)
		if err == nil {
			p.cached = true
		}
		return p, err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Device) createGraphicsPipeline(desc rhi.GraphicsPipelineDesc) (*GraphicsPipeline, error) {
	vs, err := cast[*Shader](desc.VertexShader, "vertex shader")
	if err != nil {
		return nil, d.fail(err)
	}
	if vs.Stage() != rhi.ShaderStageVertex {
		return nil, d.fail(fmt.Errorf("%w: %q is not a vertex shader", rhi.ErrInvalidArgument, vs.desc.Name))
	}
	info := pipelineInfo{
		topology:     topology(desc.Topology),
		cullMode:     cullMode(desc.CullMode),
		frontFace:    vk.FrontFaceClockwise,
		polygonMode:  vk.PolygonModeFill,
		depthTest:    desc.DepthTest,
		depthWrite:   desc.DepthWrite,
		depthCompare: compareOp(desc.DepthCompare),
		blend:        desc.BlendEnable,
	}
	if desc.FrontCounterClock {
		info.frontFace = vk.FrontFaceCounterClockwise
	}
	if desc.Wireframe {
		info.polygonMode = vk.PolygonModeLine
	}
	info.vertex, _, info.vertexEntry = vs.current()
	if desc.FragmentShader != nil {
		fs, err := cast[*Shader](desc.FragmentShader, "fragment shader")
		if err != nil {
			return nil, d.fail(err)
		}
		if fs.Stage() != rhi.ShaderStageFragment {
			return nil, d.fail(fmt.Errorf("%w: %q is not a fragment shader", rhi.ErrInvalidArgument, fs.desc.Name))
		}
		info.fragment, _, info.fragmentEntry = fs.current()
	}

	pass, err := cast[*RenderPass](desc.RenderPass, "render pass")
	if err != nil {
		return nil, d.fail(err)
	}
	info.renderPass = pass.handle
	info.colorCount = len(pass.desc.ColorAttachments)

	for _, b := range desc.VertexBindings {
		rate := vk.VertexInputRateVertex
		if b.PerInstance {
			rate = vk.VertexInputRateInstance
		}
		info.bindings = append(info.bindings, vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: rate,
		})
	}
	for _, a := range desc.VertexAttributes {
		info.attributes = append(info.attributes, vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   vertexFormat(a.Format),
			Offset:   a.Offset,
		})
	}

	setLayouts := make([]handle, 0, len(desc.DescriptorSetLayouts))
	for _, l := range desc.DescriptorSetLayouts {
		sl, err := cast[*DescriptorSetLayout](l, "descriptor set layout")
		if err != nil {
			return nil, d.fail(err)
		}
		setLayouts = append(setLayouts, sl.handle)
	}
	if desc.PushConstantSize%4 != 0 || desc.PushConstantSize > 128 {
		return nil, d.fail(fmt.Errorf("%w: push constant size %d", rhi.ErrInvalidArgument, desc.PushConstantSize))
	}
	layout, err := d.drv.createPipelineLayout(setLayouts, desc.PushConstantSize)
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create pipeline layout of %q: %w", desc.Name, err))
	}
	info.layout = layout
	h, err := d.drv.createGraphicsPipeline(info)
	if err != nil {
		d.drv.destroyPipelineLayout(layout)
		return nil, d.fail(fmt.Errorf("failed to create pipeline %q: %w", desc.Name, err))
	}
	desc.VertexBindings = append([]rhi.VertexBinding(nil), desc.VertexBindings...)
	desc.VertexAttributes = append([]rhi.VertexAttribute(nil), desc.VertexAttributes...)
	desc.DescriptorSetLayouts = append([]rhi.DescriptorSetLayout(nil), desc.DescriptorSetLayouts...)
	p := &GraphicsPipeline{dev: d, desc: desc, handle: h, layout: layout}
	p.valid.Store(true)
	return p, nil
}

func (p *GraphicsPipeline) IsValid() bool                  { return p != nil && p.valid.Load() }
func (p *GraphicsPipeline) Desc() rhi.GraphicsPipelineDesc { return p.desc }

func (p *GraphicsPipeline) Destroy() {
	if p == nil || p.cached {
		return
	}
	p.destroy()
}

func (p *GraphicsPipeline) destroy() {
	if !p.valid.CompareAndSwap(true, false) {
		return
	}
	d, h, layout := p.dev, p.handle, p.layout
	d.registry.Remove(p.id)
	d.release(func() {
		d.drv.destroyPipeline(h)
		d.drv.destroyPipelineLayout(layout)
	})
}

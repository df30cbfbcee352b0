package dx12

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// maxRootConstants is the push constant budget in bytes; root signatures
// hold 64 DWORDs and the tables take one each.
const maxRootConstants = 128

// setParameters are the root parameter indices of the tables of one set,
// -1 when the set has no table of that kind.
type setParameters struct {
	resources int
	samplers  int
}

// GraphicsPipeline owns its pipeline state and the root signature built
// from the descriptor set layouts: set i is register space i, each set with
// a resource table and a sampler table. Push constants are root constants
// at b0 of the space after the last set.
type GraphicsPipeline struct {
	dev           *Device
	desc          rhi.GraphicsPipelineDesc
	id            uuid.UUID
	handle        handle
	rootSignature handle
	sets          []setParameters
	layouts       []*DescriptorSetLayout
	topology      uint32
	cached        bool
	valid         atomic.Bool
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
		_, key.vertexGen = vs.current()
	}
	if fs, ok := desc.FragmentShader.(*Shader); ok && fs != nil {
		_, key.fragGen = fs.current()
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

// rootSignatureOf lays out the root parameters of layouts.
func rootSignatureOf(layouts []*DescriptorSetLayout, pushConstants uint32) (rootSignatureInfo, []setParameters) {
	info := rootSignatureInfo{
		constants:      pushConstants / 4,
		constantsSpace: uint32(len(layouts)),
	}
	sets := make([]setParameters, len(layouts))
	for i, l := range layouts {
		sets[i] = setParameters{resources: -1, samplers: -1}
		space := uint32(i)
		if len(l.resources) > 0 {
			sets[i].resources = len(info.tables)
			info.tables = append(info.tables, rootTable{ranges: inSpace(l.resources, space)})
		}
		if len(l.samplers) > 0 {
			sets[i].samplers = len(info.tables)
			info.tables = append(info.tables, rootTable{ranges: inSpace(l.samplers, space)})
		}
	}
	return info, sets
}

func inSpace(ranges []descriptorRange, space uint32) []descriptorRange {
	out := make([]descriptorRange, len(ranges))
	for i, r := range ranges {
		r.space = space
		out[i] = r
	}
	return out
}

func (d *Device) createGraphicsPipeline(desc rhi.GraphicsPipelineDesc) (*GraphicsPipeline, error) {
	vs, err := cast[*Shader](desc.VertexShader, "vertex shader")
	if err != nil {
		return nil, d.fail(err)
	}
	if vs.Stage() != rhi.ShaderStageVertex {
		return nil, d.fail(fmt.Errorf("%w: %q is not a vertex shader", rhi.ErrInvalidArgument, vs.desc.Name))
	}
	primitive, kind := topology(desc.Topology)
	info := pipelineInfo{
		topologyType: kind,
		cullMode:     cullMode(desc.CullMode),
		frontCCW:     desc.FrontCounterClock,
		wireframe:    desc.Wireframe,
		depthTest:    desc.DepthTest,
		depthWrite:   desc.DepthWrite,
		depthFunc:    comparisonFunc(desc.DepthCompare),
		blend:        desc.BlendEnable,
	}
	info.vs, _ = vs.current()
	if desc.FragmentShader != nil {
		fs, err := cast[*Shader](desc.FragmentShader, "fragment shader")
		if err != nil {
			return nil, d.fail(err)
		}
		if fs.Stage() != rhi.ShaderStageFragment {
			return nil, d.fail(fmt.Errorf("%w: %q is not a fragment shader", rhi.ErrInvalidArgument, fs.desc.Name))
		}
		info.ps, _ = fs.current()
	}

	pass, err := cast[*RenderPass](desc.RenderPass, "render pass")
	if err != nil {
		return nil, d.fail(err)
	}
	for _, a := range pass.desc.ColorAttachments {
		info.rtvFormats = append(info.rtvFormats, toDXGIFormat(a.Format))
	}
	if pass.desc.HasDepthStencil {
		info.dsvFormat = toDXGIFormat(pass.desc.DepthStencilAttachment.Format)
	}

	perInstance := make(map[uint32]bool, len(desc.VertexBindings))
	for _, b := range desc.VertexBindings {
		perInstance[b.Binding] = b.PerInstance
	}
	for _, a := range desc.VertexAttributes {
		// Attributes are matched to HLSL inputs by TEXCOORDn, n being the
		// location.
		info.inputs = append(info.inputs, inputElement{
			semantic:    "TEXCOORD",
			index:       a.Location,
			format:      vertexFormat(a.Format),
			slot:        a.Binding,
			offset:      a.Offset,
			perInstance: perInstance[a.Binding],
		})
	}

	layouts := make([]*DescriptorSetLayout, 0, len(desc.DescriptorSetLayouts))
	for _, l := range desc.DescriptorSetLayouts {
		sl, err := cast[*DescriptorSetLayout](l, "descriptor set layout")
		if err != nil {
			return nil, d.fail(err)
		}
		layouts = append(layouts, sl)
	}
	if desc.PushConstantSize%4 != 0 || desc.PushConstantSize > maxRootConstants {
		return nil, d.fail(fmt.Errorf("%w: push constant size %d", rhi.ErrInvalidArgument, desc.PushConstantSize))
	}
	rootInfo, sets := rootSignatureOf(layouts, desc.PushConstantSize)
	root, err := d.drv.createRootSignature(rootInfo)
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create root signature of %q: %w", desc.Name, err))
	}
	info.rootSignature = root
	h, err := d.drv.createGraphicsPipelineState(info)
	if err != nil {
		d.drv.destroyRootSignature(root)
		return nil, d.fail(fmt.Errorf("failed to create pipeline %q: %w", desc.Name, err))
	}
	desc.VertexBindings = append([]rhi.VertexBinding(nil), desc.VertexBindings...)
	desc.VertexAttributes = append([]rhi.VertexAttribute(nil), desc.VertexAttributes...)
	desc.DescriptorSetLayouts = append([]rhi.DescriptorSetLayout(nil), desc.DescriptorSetLayouts...)
	p := &GraphicsPipeline{
		dev:           d,
		desc:          desc,
		handle:        h,
		rootSignature: root,
		sets:          sets,
		layouts:       layouts,
		topology:      primitive,
	}
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
	d, h, root := p.dev, p.handle, p.rootSignature
	d.registry.Remove(p.id)
	d.release(func() {
		d.drv.destroyPipelineState(h)
		d.drv.destroyRootSignature(root)
	})
}

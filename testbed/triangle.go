package testbed

import (
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// trianglePass draws a fullscreen triangle over the cleared back buffer. The
// vertex shader generates the positions, so no buffers are bound.
type trianglePass struct {
	device   rhi.Device
	vs       rhi.Shader
	fs       rhi.Shader
	pass     rhi.RenderPass
	pipeline rhi.GraphicsPipeline
	// One framebuffer per back buffer; dropped when the swapchain is resized.
	framebuffers map[rhi.Texture]rhi.Framebuffer
}

func newTrianglePass(device rhi.Device, format rhi.Format, vsCode, fsCode []byte) (*trianglePass, error) {
	p := &trianglePass{device: device, framebuffers: make(map[rhi.Texture]rhi.Framebuffer)}
	var err error
	if p.vs, err = device.CreateShader(rhi.ShaderDesc{Name: "triangle.vert", Stage: rhi.ShaderStageVertex, EntryPoint: "main", Code: vsCode}); err != nil {
		return nil, err
	}
	if p.fs, err = device.CreateShader(rhi.ShaderDesc{Name: "triangle.frag", Stage: rhi.ShaderStageFragment, EntryPoint: "main", Code: fsCode}); err != nil {
		p.destroy()
		return nil, err
	}
	p.pass, err = device.GetOrCreateRenderPass(rhi.RenderPassDesc{
		ColorAttachments: []rhi.AttachmentDesc{{
			Format:      format,
			LoadOp:      rhi.LoadOpLoad,
			StoreOp:     rhi.StoreOpStore,
			FinalLayout: rhi.LayoutPresentSrc,
		}},
	})
	if err != nil {
		p.destroy()
		return nil, err
	}
	if err := p.rebuild(); err != nil {
		p.destroy()
		return nil, err
	}
	return p, nil
}

// rebuild creates the pipeline from the current shader code. Pipelines are
// not taken from the device cache: the description of a reloaded shader does
// not change.
func (p *trianglePass) rebuild() error {
	pipeline, err := p.device.CreateGraphicsPipeline(rhi.GraphicsPipelineDesc{
		Name:           "triangle",
		VertexShader:   p.vs,
		FragmentShader: p.fs,
		Topology:       rhi.TopologyTriangleList,
		CullMode:       rhi.CullModeNone,
		RenderPass:     p.pass,
	})
	if err != nil {
		return err
	}
	if p.pipeline != nil {
		p.pipeline.Destroy()
	}
	p.pipeline = pipeline
	return nil
}

// reload swaps the code of the shader with the given name and rebuilds the
// pipeline.
func (p *trianglePass) reload(name string, code []byte) error {
	var s rhi.Shader
	switch name {
	case p.vs.Desc().Name:
		s = p.vs
	case p.fs.Desc().Name:
		s = p.fs
	default:
		return nil
	}
	if err := s.Reinitialize(code); err != nil {
		return err
	}
	core.LogInfo("shader %s reloaded (%d bytes)", name, len(code))
	return p.rebuild()
}

func (p *trianglePass) framebuffer(bb rhi.Texture) (rhi.Framebuffer, error) {
	for tex, fb := range p.framebuffers {
		if !tex.IsValid() {
			fb.Destroy()
			delete(p.framebuffers, tex)
		}
	}
	if fb, ok := p.framebuffers[bb]; ok {
		return fb, nil
	}
	fb, err := p.device.CreateFramebuffer(rhi.FramebufferDesc{
		RenderPass:       p.pass,
		ColorAttachments: []rhi.Texture{bb},
		Width:            bb.Width(),
		Height:           bb.Height(),
	})
	if err != nil {
		return nil, err
	}
	p.framebuffers[bb] = fb
	return fb, nil
}

func (p *trianglePass) record(f *rhi.Frame) error {
	bb := f.BackBuffer
	fb, err := p.framebuffer(bb)
	if err != nil {
		return err
	}
	cmd := f.Cmd
	if err := cmd.BeginRenderPass(p.pass, fb, nil); err != nil {
		return err
	}
	if err := cmd.SetPipeline(p.pipeline); err != nil {
		return err
	}
	w, h := bb.Width(), bb.Height()
	cmd.SetViewport(rhi.Viewport{Width: float32(w), Height: float32(h), MaxDepth: 1})
	cmd.SetScissor(rhi.Rect{Width: w, Height: h})
	if err := cmd.Draw(3, 1, 0, 0); err != nil {
		return err
	}
	return cmd.EndRenderPass()
}

func (p *trianglePass) destroy() {
	for _, fb := range p.framebuffers {
		fb.Destroy()
	}
	p.framebuffers = nil
	if p.pipeline != nil {
		p.pipeline.Destroy()
	}
	// The render pass belongs to the device cache.
	if p.fs != nil {
		p.fs.Destroy()
	}
	if p.vs != nil {
		p.vs.Destroy()
	}
}

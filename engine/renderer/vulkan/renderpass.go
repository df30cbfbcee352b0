package vulkan

import (
	"fmt"
	"sync/atomic"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// RenderPass is a single subpass VkRenderPass. Attachments enter in their
// attachment optimal layout, which BeginRenderPass transitions to, and leave
// in their resolved final layout.
type RenderPass struct {
	dev    *Device
	desc   rhi.RenderPassDesc
	id     uuid.UUID
	handle handle
	cached bool
	valid  atomic.Bool
}

func attachment(a rhi.AttachmentDesc, initial rhi.ResourceLayout) attachmentInfo {
	return attachmentInfo{
		format:         a.Format,
		vkFormat:       vkFormat(a.Format),
		loadOp:         loadOp(a.LoadOp),
		storeOp:        storeOp(a.StoreOp),
		stencilLoadOp:  loadOp(a.StencilLoadOp),
		stencilStoreOp: storeOp(a.StencilStoreOp),
		initialLayout:  layoutState(initial).layout,
		finalLayout:    layoutState(a.ResolvedFinalLayout()).layout,
	}
}

func (d *Device) CreateRenderPass(desc rhi.RenderPassDesc) (rhi.RenderPass, error) {
	p, err := d.createRenderPass(desc)
	if err != nil {
		return nil, err
	}
	p.id = d.registry.Add("RenderPass", "", p)
	return p, nil
}

func (d *Device) GetOrCreateRenderPass(desc rhi.RenderPassDesc) (rhi.RenderPass, error) {
	p, err := d.renderPasses.GetOrCreate(desc, func() (*RenderPass, error) {
		p, err := d.createRenderPass(desc)
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

func (d *Device) createRenderPass(desc rhi.RenderPassDesc) (*RenderPass, error) {
	if len(desc.ColorAttachments) == 0 && !desc.HasDepthStencil {
		return nil, d.fail(fmt.Errorf("%w: render pass without attachments", rhi.ErrInvalidArgument))
	}
	info := renderPassInfo{hasDepth: desc.HasDepthStencil}
	for i, a := range desc.ColorAttachments {
		if a.Format.IsDepth() || vkFormat(a.Format) == vk.FormatUndefined {
			return nil, d.fail(fmt.Errorf("%w: color attachment %d has format %s", rhi.ErrInvalidArgument, i, a.Format))
		}
		info.colors = append(info.colors, attachment(a, rhi.LayoutColorAttachment))
	}
	if desc.HasDepthStencil {
		if !desc.DepthStencilAttachment.Format.IsDepth() {
			return nil, d.fail(fmt.Errorf("%w: depth attachment has format %s", rhi.ErrInvalidArgument, desc.DepthStencilAttachment.Format))
		}
		info.depth = attachment(desc.DepthStencilAttachment, rhi.LayoutDepthStencilAttachment)
	}
	h, err := d.drv.createRenderPass(info)
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create render pass: %w", err))
	}
	desc.ColorAttachments = append([]rhi.AttachmentDesc(nil), desc.ColorAttachments...)
	p := &RenderPass{dev: d, desc: desc, handle: h}
	p.valid.Store(true)
	return p, nil
}

func (p *RenderPass) IsValid() bool            { return p != nil && p.valid.Load() }
func (p *RenderPass) Desc() rhi.RenderPassDesc { return p.desc }

func (p *RenderPass) Destroy() {
	if p == nil || p.cached {
		return
	}
	p.destroy()
}

func (p *RenderPass) destroy() {
	if !p.valid.CompareAndSwap(true, false) {
		return
	}
	d, h := p.dev, p.handle
	d.registry.Remove(p.id)
	d.release(func() { d.drv.destroyRenderPass(h) })
}

func (p *RenderPass) ShouldClearColor(i int) bool {
	return i >= 0 && i < len(p.desc.ColorAttachments) && p.desc.ColorAttachments[i].LoadOp == rhi.LoadOpClear
}

func (p *RenderPass) ShouldClearDepthStencil() bool {
	return p.desc.HasDepthStencil && p.desc.DepthStencilAttachment.LoadOp == rhi.LoadOpClear
}

func (p *RenderPass) ShouldClearStencil() bool {
	a := p.desc.DepthStencilAttachment
	return p.desc.HasDepthStencil && a.Format.HasStencil() && a.StencilLoadOp == rhi.LoadOpClear
}

// compatible checks that f has the attachments p expects.
func (p *RenderPass) compatible(f *Framebuffer) error {
	if len(f.colors) != len(p.desc.ColorAttachments) || (f.depth != nil) != p.desc.HasDepthStencil {
		return fmt.Errorf("%w: framebuffer attachments do not match the render pass", rhi.ErrInvalidArgument)
	}
	for i, t := range f.colors {
		if t.desc.Format != p.desc.ColorAttachments[i].Format {
			return fmt.Errorf("%w: color attachment %d is %s, pass expects %s", rhi.ErrInvalidArgument, i, t.desc.Format, p.desc.ColorAttachments[i].Format)
		}
	}
	if f.depth != nil && f.depth.desc.Format != p.desc.DepthStencilAttachment.Format {
		return fmt.Errorf("%w: depth attachment is %s, pass expects %s", rhi.ErrInvalidArgument, f.depth.desc.Format, p.desc.DepthStencilAttachment.Format)
	}
	for _, t := range f.attachments() {
		if !t.IsValid() {
			return fmt.Errorf("%w: framebuffer attachment %q", rhi.ErrDestroyed, t.desc.Name)
		}
	}
	return nil
}

package vulkan

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

type Framebuffer struct {
	dev    *Device
	pass   *RenderPass
	id     uuid.UUID
	handle handle
	colors []*Texture
	depth  *Texture
	width  uint32
	height uint32
	valid  atomic.Bool
}

func (d *Device) CreateFramebuffer(desc rhi.FramebufferDesc) (rhi.Framebuffer, error) {
	pass, err := cast[*RenderPass](desc.RenderPass, "render pass")
	if err != nil {
		return nil, d.fail(err)
	}
	f := &Framebuffer{dev: d, pass: pass, width: desc.Width, height: desc.Height}
	for i, a := range desc.ColorAttachments {
		t, err := cast[*Texture](a, "texture")
		if err != nil {
			return nil, d.fail(err)
		}
		if !t.HasRTVUsage() {
			return nil, d.fail(fmt.Errorf("%w: color attachment %d %q", rhi.ErrInvalidUsage, i, t.desc.Name))
		}
		f.colors = append(f.colors, t)
	}
	if desc.DepthStencilAttachment != nil {
		t, err := cast[*Texture](desc.DepthStencilAttachment, "texture")
		if err != nil {
			return nil, d.fail(err)
		}
		if !t.HasDSVUsage() {
			return nil, d.fail(fmt.Errorf("%w: depth attachment %q", rhi.ErrInvalidUsage, t.desc.Name))
		}
		f.depth = t
	}
	if err := pass.compatible(f); err != nil {
		return nil, d.fail(err)
	}
	views := make([]handle, 0, len(f.colors)+1)
	for _, t := range f.attachments() {
		if f.width == 0 {
			f.width, f.height = t.desc.Width, t.desc.Height
		}
		if t.desc.Width < f.width || t.desc.Height < f.height {
			return nil, d.fail(fmt.Errorf("%w: attachment %q is smaller than %dx%d", rhi.ErrInvalidArgument, t.desc.Name, f.width, f.height))
		}
		views = append(views, t.view)
	}
	h, err := d.drv.createFramebuffer(framebufferInfo{
		renderPass: pass.handle,
		views:      views,
		width:      f.width,
		height:     f.height,
	})
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create framebuffer: %w", err))
	}
	f.handle = h
	f.valid.Store(true)
	f.id = d.registry.Add("Framebuffer", "", f)
	return f, nil
}

// attachments returns the colors followed by the depth attachment.
func (f *Framebuffer) attachments() []*Texture {
	all := append([]*Texture(nil), f.colors...)
	if f.depth != nil {
		all = append(all, f.depth)
	}
	return all
}

func (f *Framebuffer) IsValid() bool { return f != nil && f.valid.Load() }

func (f *Framebuffer) Destroy() {
	if f == nil || !f.valid.CompareAndSwap(true, false) {
		return
	}
	d, h := f.dev, f.handle
	d.registry.Remove(f.id)
	d.release(func() { d.drv.destroyFramebuffer(h) })
}

func (f *Framebuffer) RenderPass() rhi.RenderPass        { return f.pass }
func (f *Framebuffer) ColorAttachmentCount() int         { return len(f.colors) }
func (f *Framebuffer) ColorAttachment(i int) rhi.Texture { return f.colors[i] }
func (f *Framebuffer) HasDSV() bool                      { return f.depth != nil }
func (f *Framebuffer) Width() uint32                     { return f.width }
func (f *Framebuffer) Height() uint32                    { return f.height }

func (f *Framebuffer) DepthStencilAttachment() rhi.Texture {
	if f.depth == nil {
		return nil
	}
	return f.depth
}

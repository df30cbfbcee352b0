package vulkan

import (
	"fmt"
	"sync/atomic"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// Texture is a VkImage with one view over all its subresources. Swapchain
// back buffers are textures that do not own their image.
type Texture struct {
	dev    *Device
	desc   rhi.TextureDesc
	id     uuid.UUID
	image  handle
	view   handle
	owned  bool
	bytes  uint64
	layout atomic.Int32
	valid  atomic.Bool
}

func validateTexture(desc rhi.TextureDesc) error {
	switch {
	case desc.Width == 0 || desc.Height == 0 || desc.Depth == 0:
		return fmt.Errorf("%w: texture %q has a zero extent", rhi.ErrInvalidArgument, desc.Name)
	case desc.Format == rhi.FormatUndefined || vkFormat(desc.Format) == vk.FormatUndefined:
		return fmt.Errorf("%w: texture %q has no format", rhi.ErrInvalidArgument, desc.Name)
	case desc.Usage == 0:
		return fmt.Errorf("%w: texture %q has no usage", rhi.ErrInvalidUsage, desc.Name)
	case desc.Format.IsDepth() && desc.Usage&(rhi.TextureUsageColorAttachment|rhi.TextureUsageStorage) != 0:
		return fmt.Errorf("%w: depth texture %q used as color or storage", rhi.ErrInvalidUsage, desc.Name)
	case !desc.Format.IsDepth() && desc.Usage&rhi.TextureUsageDepthStencil != 0:
		return fmt.Errorf("%w: color texture %q used as depth stencil", rhi.ErrInvalidUsage, desc.Name)
	case desc.Type == rhi.TextureCube && (desc.Width != desc.Height || desc.ArrayLayers%6 != 0):
		return fmt.Errorf("%w: cube texture %q must be square with six faces per layer", rhi.ErrInvalidArgument, desc.Name)
	case desc.Type != rhi.Texture3D && desc.Depth != 1:
		return fmt.Errorf("%w: only 3D textures have depth", rhi.ErrInvalidArgument)
	}
	if limit := maxMips(desc); desc.MipLevels > limit {
		return fmt.Errorf("%w: %d mips requested, %q has at most %d", rhi.ErrInvalidArgument, desc.MipLevels, desc.Name, limit)
	}
	return nil
}

func maxMips(desc rhi.TextureDesc) uint32 {
	size := desc.Width
	if desc.Height > size {
		size = desc.Height
	}
	if desc.Depth > size {
		size = desc.Depth
	}
	n := uint32(1)
	for size > 1 {
		size >>= 1
		n++
	}
	return n
}

// textureBytes is the tightly packed size of every subresource.
func textureBytes(desc rhi.TextureDesc) uint64 {
	var total uint64
	for mip := uint32(0); mip < desc.MipLevels; mip++ {
		total += rhi.TightFootprint(desc, mip).Size
	}
	return total * uint64(desc.ArrayLayers)
}

func (d *Device) CreateTexture(desc rhi.TextureDesc) (rhi.Texture, error) {
	desc = desc.Normalized()
	if err := validateTexture(desc); err != nil {
		return nil, d.fail(err)
	}
	image, err := d.drv.createImage(imageInfo{
		format:    desc.Format,
		vkFormat:  vkFormat(desc.Format),
		imageType: imageType(desc.Type),
		width:     desc.Width,
		height:    desc.Height,
		depth:     desc.Depth,
		mips:      desc.MipLevels,
		layers:    desc.ArrayLayers,
		usage:     imageUsage(desc.Usage),
		cube:      desc.Type == rhi.TextureCube,
	})
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create texture %q: %w", desc.Name, err))
	}
	t, err := d.wrapImage(desc, image, true)
	if err != nil {
		d.drv.destroyImage(image)
		return nil, err
	}
	t.id = d.registry.Add("Texture", desc.Name, t)
	d.stats.textureMem.Add(int64(t.bytes))

	// Images are created undefined.
	if desc.InitialLayout != rhi.LayoutUndefined {
		err := d.submitImmediate("initial-layout", func(cb *CommandBuffer) error {
			cb.transitionTexture(t, desc.InitialLayout)
			return nil
		})
		if err != nil {
			t.Destroy()
			return nil, err
		}
	}
	return t, nil
}

// wrapImage creates the view of image and the texture around it.
func (d *Device) wrapImage(desc rhi.TextureDesc, image handle, owned bool) (*Texture, error) {
	aspect := aspectMask(desc.Format)
	if desc.Format.IsDepth() {
		// Sampling reads depth only.
		aspect = copyAspect(desc.Format)
	}
	view, err := d.drv.createImageView(viewInfo{
		image:    image,
		viewType: viewType(desc.Type, desc.ArrayLayers),
		format:   vkFormat(desc.Format),
		aspect:   aspect,
		mips:     desc.MipLevels,
		layers:   desc.ArrayLayers,
	})
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create view of %q: %w", desc.Name, err))
	}
	t := &Texture{dev: d, desc: desc, image: image, view: view, owned: owned}
	if owned {
		t.bytes = textureBytes(desc)
	}
	t.valid.Store(true)
	return t, nil
}

func (t *Texture) IsValid() bool { return t != nil && t.valid.Load() }

func (t *Texture) Destroy() {
	if t == nil || !t.valid.CompareAndSwap(true, false) {
		return
	}
	d, image, view, owned := t.dev, t.image, t.view, t.owned
	d.registry.Remove(t.id)
	d.stats.textureMem.Add(-int64(t.bytes))
	d.release(func() {
		d.drv.destroyImageView(view)
		if owned {
			d.drv.destroyImage(image)
		}
	})
}

func (t *Texture) Desc() rhi.TextureDesc   { return t.desc }
func (t *Texture) Type() rhi.TextureType   { return t.desc.Type }
func (t *Texture) Format() rhi.Format      { return t.desc.Format }
func (t *Texture) Width() uint32           { return t.desc.Width }
func (t *Texture) Height() uint32          { return t.desc.Height }
func (t *Texture) Depth() uint32           { return t.desc.Depth }
func (t *Texture) MipLevels() uint32       { return t.desc.MipLevels }
func (t *Texture) ArrayLayers() uint32     { return t.desc.ArrayLayers }
func (t *Texture) Usage() rhi.TextureUsage { return t.desc.Usage }
func (t *Texture) HasSRVUsage() bool       { return t.desc.Usage&rhi.TextureUsageSampled != 0 }
func (t *Texture) HasUAVUsage() bool       { return t.desc.Usage&rhi.TextureUsageStorage != 0 }
func (t *Texture) HasRTVUsage() bool       { return t.desc.Usage&rhi.TextureUsageColorAttachment != 0 }
func (t *Texture) HasDSVUsage() bool       { return t.desc.Usage&rhi.TextureUsageDepthStencil != 0 }

func (t *Texture) setLayout(l rhi.ResourceLayout) { t.layout.Store(int32(l)) }

func (t *Texture) CurrentLayout() rhi.ResourceLayout {
	return rhi.ResourceLayout(t.layout.Load())
}

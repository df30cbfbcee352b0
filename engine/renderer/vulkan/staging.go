package vulkan

import (
	"fmt"

	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// TextureFootprint is tightly packed: Vulkan copies address rows by texel
// count, so no pitch alignment is needed.
func (d *Device) TextureFootprint(tex rhi.Texture, mip uint32) rhi.Footprint {
	return rhi.TightFootprint(tex.Desc(), mip)
}

// stagingBuffer creates a host visible buffer holding data.
func (d *Device) stagingBuffer(name string, size uint64, fill func([]byte)) (*Buffer, error) {
	staging, err := d.createBuffer(rhi.BufferDesc{
		Name:   name,
		Size:   size,
		Usage:  rhi.BufferUsageTransferSrc,
		Memory: rhi.MemoryCPUToGPU,
	}, false)
	if err != nil {
		return nil, err
	}
	mapped, err := staging.Map()
	if err != nil {
		staging.Destroy()
		return nil, err
	}
	fill(mapped)
	staging.Unmap()
	d.stats.staged.Add(size)
	return staging, nil
}

func (d *Device) UpdateBuffer(buf rhi.Buffer, data []byte, offset uint64) error {
	b, err := cast[*Buffer](buf, "buffer")
	if err != nil {
		return d.fail(err)
	}
	if len(data) == 0 {
		return nil
	}
	if !rhi.InRange(offset, uint64(len(data)), b.desc.Size) {
		return d.fail(fmt.Errorf("%w: %d bytes at %d of %q", rhi.ErrOutOfRange, len(data), offset, b.desc.Name))
	}
	if b.IsMappable() {
		mapped, err := b.Map()
		if err != nil {
			return err
		}
		copy(mapped[offset:], data)
		b.Unmap()
		return nil
	}
	if b.desc.Usage&rhi.BufferUsageTransferDst == 0 {
		return d.fail(fmt.Errorf("%w: %q is device local without transfer destination usage", rhi.ErrInvalidUsage, b.desc.Name))
	}
	staging, err := d.stagingBuffer("staging-buffer", uint64(len(data)), func(m []byte) { copy(m, data) })
	if err != nil {
		return err
	}
	defer staging.Destroy()
	return d.submitImmediate("update-buffer", func(cb *CommandBuffer) error {
		return cb.CopyBuffer(staging, 0, b, offset, uint64(len(data)))
	})
}

// UpdateTexture leaves sampled textures that had no contents in
// ShaderReadOnly; otherwise the texture keeps its layout.
func (d *Device) UpdateTexture(tex rhi.Texture, data []byte, mip, layer uint32) error {
	t, err := cast[*Texture](tex, "texture")
	if err != nil {
		return d.fail(err)
	}
	if mip >= t.desc.MipLevels || layer >= t.desc.ArrayLayers {
		return d.fail(fmt.Errorf("%w: mip %d layer %d of %q", rhi.ErrOutOfRange, mip, layer, t.desc.Name))
	}
	f := d.TextureFootprint(t, mip)
	if uint64(len(data)) != f.Size {
		return d.fail(fmt.Errorf("%w: %q mip %d takes %d bytes, got %d", rhi.ErrInvalidArgument, t.desc.Name, mip, f.Size, len(data)))
	}
	staging, err := d.stagingBuffer("staging-texture", f.Size, func(m []byte) {
		rhi.PackRows(m, data, f, t.desc.Format)
	})
	if err != nil {
		return err
	}
	defer staging.Destroy()
	return d.submitImmediate("update-texture", func(cb *CommandBuffer) error {
		prior := t.CurrentLayout()
		if err := cb.CopyBufferToTexture(staging, 0, t, mip, layer); err != nil {
			return err
		}
		if prior == rhi.LayoutUndefined && t.HasSRVUsage() {
			cb.transitionTexture(t, rhi.LayoutShaderReadOnly)
		}
		return nil
	})
}

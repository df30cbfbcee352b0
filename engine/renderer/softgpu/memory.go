// Package softgpu is an in-memory GPU used by the headless drivers. It keeps
// real buffer and image contents and executes recorded commands in order on
// a queue goroutine, so copies, clears and presentation produce the same
// bytes a GPU would. It does not rasterize: draws are only counted.
package softgpu

import (
	"encoding/binary"
	"math"

	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

type Buffer struct {
	Data []byte
}

func NewBuffer(size uint64) *Buffer {
	return &Buffer{Data: make([]byte, size)}
}

// Image stores every subresource as a tightly packed byte slice. Subresource
// i holds mip i%MipLevels of layer i/MipLevels.
type Image struct {
	Format      rhi.Format
	Width       uint32
	Height      uint32
	Depth       uint32
	MipLevels   uint32
	ArrayLayers uint32

	subresources [][]byte
}

func NewImage(format rhi.Format, width, height, depth, mips, layers uint32) *Image {
	img := &Image{
		Format:      format,
		Width:       width,
		Height:      core.Max(height, 1),
		Depth:       core.Max(depth, 1),
		MipLevels:   core.Max(mips, 1),
		ArrayLayers: core.Max(layers, 1),
	}
	img.subresources = make([][]byte, img.MipLevels*img.ArrayLayers)
	for layer := uint32(0); layer < img.ArrayLayers; layer++ {
		for mip := uint32(0); mip < img.MipLevels; mip++ {
			w, h, d := img.MipExtent(mip)
			img.subresources[mip+layer*img.MipLevels] = make([]byte, uint64(w)*uint64(h)*uint64(d)*uint64(format.BytesPerPixel()))
		}
	}
	return img
}

func (img *Image) MipExtent(mip uint32) (width, height, depth uint32) {
	return core.MipExtent(img.Width, mip), core.MipExtent(img.Height, mip), core.MipExtent(img.Depth, mip)
}

// Subresource returns nil when mip or layer is out of range.
func (img *Image) Subresource(mip, layer uint32) []byte {
	if mip >= img.MipLevels || layer >= img.ArrayLayers {
		return nil
	}
	return img.subresources[mip+layer*img.MipLevels]
}

func (img *Image) Size() uint64 {
	var n uint64
	for _, s := range img.subresources {
		n += uint64(len(s))
	}
	return n
}

// Texel returns the bytes of one texel of mip 0, layer 0.
func (img *Image) Texel(x, y uint32) []byte {
	bpp := uint64(img.Format.BytesPerPixel())
	off := (uint64(y)*uint64(img.Width) + uint64(x)) * bpp
	return img.subresources[0][off : off+bpp]
}

// Fill writes texel over every texel of one subresource.
func (img *Image) Fill(mip, layer uint32, texel []byte) {
	sub := img.Subresource(mip, layer)
	for i := 0; i+len(texel) <= len(sub); i += len(texel) {
		copy(sub[i:], texel)
	}
}

// Clone returns a deep copy.
func (img *Image) Clone() *Image {
	c := *img
	c.subresources = make([][]byte, len(img.subresources))
	for i, s := range img.subresources {
		c.subresources[i] = append([]byte(nil), s...)
	}
	return &c
}

// CopyFromBuffer copies one subresource from buf laid out per f.
func (img *Image) CopyFromBuffer(buf []byte, f rhi.Footprint, mip, layer uint32) {
	if sub := img.Subresource(mip, layer); sub != nil {
		rhi.UnpackRows(sub, buf, f, img.Format)
	}
}

// CopyToBuffer copies one subresource into buf laid out per f.
func (img *Image) CopyToBuffer(buf []byte, f rhi.Footprint, mip, layer uint32) {
	if sub := img.Subresource(mip, layer); sub != nil {
		rhi.PackRows(buf, sub, f, img.Format)
	}
}

// CopyImage copies every subresource both images have in common.
func CopyImage(dst, src *Image) {
	for layer := uint32(0); layer < core.Min(dst.ArrayLayers, src.ArrayLayers); layer++ {
		for mip := uint32(0); mip < core.Min(dst.MipLevels, src.MipLevels); mip++ {
			copy(dst.Subresource(mip, layer), src.Subresource(mip, layer))
		}
	}
}

// EncodeColor converts a float color to one texel of format. sRGB formats are
// stored without transfer function.
func EncodeColor(format rhi.Format, c [4]float32) []byte {
	unorm := func(v float32) byte {
		return byte(math.Round(float64(core.Clamp(v, 0, 1)) * 255))
	}
	out := make([]byte, format.BytesPerPixel())
	switch format {
	case rhi.FormatR8Unorm:
		out[0] = unorm(c[0])
	case rhi.FormatRG8Unorm:
		out[0], out[1] = unorm(c[0]), unorm(c[1])
	case rhi.FormatRGBA8Unorm, rhi.FormatRGBA8Srgb:
		for i := range out {
			out[i] = unorm(c[i])
		}
	case rhi.FormatBGRA8Unorm, rhi.FormatBGRA8Srgb:
		out[0], out[1], out[2], out[3] = unorm(c[2]), unorm(c[1]), unorm(c[0]), unorm(c[3])
	case rhi.FormatR16Float:
		binary.LittleEndian.PutUint16(out, float16(c[0]))
	case rhi.FormatRGBA16Float:
		for i := 0; i < 4; i++ {
			binary.LittleEndian.PutUint16(out[i*2:], float16(c[i]))
		}
	case rhi.FormatR32Float, rhi.FormatRG32Float, rhi.FormatRGB32Float, rhi.FormatRGBA32Float:
		for i := 0; i*4 < len(out); i++ {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(c[i]))
		}
	case rhi.FormatR32Uint:
		binary.LittleEndian.PutUint32(out, uint32(c[0]))
	}
	return out
}

// EncodeDepthStencil converts a depth/stencil clear value to one texel.
func EncodeDepthStencil(format rhi.Format, depth float32, stencil uint32) []byte {
	out := make([]byte, format.BytesPerPixel())
	depth = core.Clamp(depth, 0, 1)
	switch format {
	case rhi.FormatD16Unorm:
		binary.LittleEndian.PutUint16(out, uint16(math.Round(float64(depth)*0xffff)))
	case rhi.FormatD24UnormS8Uint:
		d := uint32(math.Round(float64(depth) * 0xffffff))
		binary.LittleEndian.PutUint32(out, d|(stencil&0xff)<<24)
	case rhi.FormatD32Float:
		binary.LittleEndian.PutUint32(out, math.Float32bits(depth))
	case rhi.FormatD32FloatS8Uint:
		binary.LittleEndian.PutUint32(out, math.Float32bits(depth))
		out[4] = byte(stencil)
	}
	return out
}

func float16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23&0xff) - 127 + 15
	mant := bits & 0x7fffff
	switch {
	case bits&0x7fffffff == 0:
		return sign
	case exp <= 0:
		// Too small for a normal half; flush to zero.
		return sign
	case exp >= 0x1f:
		return sign | 0x7c00
	}
	return sign | uint16(exp)<<10 | uint16(mant>>13)
}

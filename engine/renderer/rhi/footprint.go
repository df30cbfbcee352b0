package rhi

import "github.com/spaghettifunk/rhi/engine/core"

// Footprint is the layout of one texture subresource inside a buffer.
type Footprint struct {
	Offset     uint64
	Width      uint32
	Height     uint32
	Depth      uint32
	RowPitch   uint64
	Rows       uint32
	SlicePitch uint64
	// Size is the number of bytes from Offset covered by the subresource.
	Size uint64
}

// RowSize is the number of meaningful bytes in one row.
func (f Footprint) RowSize(format Format) uint64 {
	return uint64(f.Width) * uint64(format.BytesPerPixel())
}

// MipSize returns the extents of the given mip level.
func MipSize(desc TextureDesc, mip uint32) (width, height, depth uint32) {
	d := desc.Normalized()
	return core.MipExtent(d.Width, mip), core.MipExtent(d.Height, mip), core.MipExtent(d.Depth, mip)
}

// InRange reports whether size bytes at offset fit in limit bytes. It does
// not overflow for any input.
func InRange(offset, size, limit uint64) bool {
	return offset <= limit && size <= limit-offset
}

// PitchedFootprint computes the footprint of a mip with the row pitch aligned
// to rowAlign and the offset aligned to offsetAlign. Alignments of 0 or 1
// give a tightly packed footprint.
func PitchedFootprint(desc TextureDesc, mip uint32, offset, rowAlign, offsetAlign uint64) Footprint {
	w, h, d := MipSize(desc, mip)
	row := uint64(w) * uint64(desc.Format.BytesPerPixel())
	pitch := row
	if rowAlign > 1 {
		pitch = core.AlignUp(row, rowAlign)
	}
	if offsetAlign > 1 {
		offset = core.AlignUp(offset, offsetAlign)
	}
	slice := pitch * uint64(h)
	return Footprint{
		Offset:     offset,
		Width:      w,
		Height:     h,
		Depth:      d,
		RowPitch:   pitch,
		Rows:       h,
		SlicePitch: slice,
		// The last row does not need padding.
		Size: slice*uint64(d-1) + pitch*uint64(h-1) + row,
	}
}

// TightFootprint is the footprint without any padding.
func TightFootprint(desc TextureDesc, mip uint32) Footprint {
	return PitchedFootprint(desc, mip, 0, 0, 0)
}

// PackRows copies tightly packed rows from src into dst laid out per f.
func PackRows(dst []byte, src []byte, f Footprint, format Format) {
	row := f.RowSize(format)
	for z := uint64(0); z < uint64(f.Depth); z++ {
		for y := uint64(0); y < uint64(f.Rows); y++ {
			s := (z*uint64(f.Rows) + y) * row
			d := f.Offset + z*f.SlicePitch + y*f.RowPitch
			copy(dst[d:d+row], src[s:s+row])
		}
	}
}

// UnpackRows is the inverse of PackRows.
func UnpackRows(dst []byte, src []byte, f Footprint, format Format) {
	row := f.RowSize(format)
	for z := uint64(0); z < uint64(f.Depth); z++ {
		for y := uint64(0); y < uint64(f.Rows); y++ {
			d := (z*uint64(f.Rows) + y) * row
			s := f.Offset + z*f.SlicePitch + y*f.RowPitch
			copy(dst[d:d+row], src[s:s+row])
		}
	}
}

package dx12

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// Texture is a committed resource with one descriptor per view its usage
// allows. Views live in the CPU heaps of the device; unused views hold
// rhi.InvalidDescriptorIndex. Swapchain back buffers are textures over the
// buffers of the swap chain.
type Texture struct {
	dev      *Device
	desc     rhi.TextureDesc
	id       uuid.UUID
	resource handle
	rtv      uint32
	dsv      uint32
	srv      uint32
	uav      uint32
	owned    bool
	bytes    uint64
	layout   atomic.Int32
	valid    atomic.Bool
}

func validateTexture(desc rhi.TextureDesc) error {
	switch {
	case desc.Width == 0 || desc.Height == 0 || desc.Depth == 0:
		return fmt.Errorf("%w: texture %q has a zero extent", rhi.ErrInvalidArgument, desc.Name)
	case desc.Format == rhi.FormatUndefined || toDXGIFormat(desc.Format) == formatUnknown:
		return fmt.Errorf("%w: texture %q has no format", rhi.ErrInvalidArgument, desc.Name)
	case desc.Usage == 0:
		return fmt.Errorf("%w: texture %q has no usage", rhi.ErrInvalidUsage, desc.Name)
	case desc.Format.IsDepth() && desc.Usage&(rhi.TextureUsageColorAttachment|rhi.TextureUsageStorage) != 0:
		return fmt.Errorf("%w: depth texture %q used as render target or UAV", rhi.ErrInvalidUsage, desc.Name)
	case !desc.Format.IsDepth() && desc.Usage&rhi.TextureUsageDepthStencil != 0:
		return fmt.Errorf("%w: color texture %q used as depth stencil", rhi.ErrInvalidUsage, desc.Name)
	case desc.Type == rhi.TextureCube && (desc.Width != desc.Height || desc.ArrayLayers%6 != 0):
		return fmt.Errorf("%w: cube texture %q must be square with six faces per layer", rhi.ErrInvalidArgument, desc.Name)
	case desc.Type != rhi.Texture3D && desc.Depth != 1:
		return fmt.Errorf("%w: only 3D textures have depth", rhi.ErrInvalidArgument)
	case desc.Type == rhi.Texture3D && desc.ArrayLayers != 1:
		return fmt.Errorf("%w: 3D texture %q cannot have layers", rhi.ErrInvalidArgument, desc.Name)
	}
	if limit := maxMips(desc); desc.MipLevels > limit {
		return fmt.Errorf("%w: %d mips requested, %q has at most %d", rhi.ErrInvalidArgument, desc.MipLevels, desc.Name, limit)
	}
	return nil
}

func maxMips(desc rhi.TextureDesc) uint32 {
	size := max(desc.Width, desc.Height, desc.Depth)
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

// subresource is D3D12CalcSubresource without planes.
func subresource(desc rhi.TextureDesc, mip, layer uint32) uint32 {
	return mip + layer*desc.MipLevels
}

func (d *Device) CreateTexture(desc rhi.TextureDesc) (rhi.Texture, error) {
	desc = desc.Normalized()
	if err := validateTexture(desc); err != nil {
		return nil, d.fail(err)
	}
	info := resourceInfo{
		dimension:        resourceDimensionOf(desc.Type),
		format:           desc.Format,
		dxgi:             resourceFormat(desc.Format, desc.Usage),
		width:            uint64(desc.Width),
		height:           desc.Height,
		depthOrArraySize: desc.ArrayLayers,
		mips:             desc.MipLevels,
		flags:            textureFlags(desc.Usage),
		heap:             heapDefault,
		state:            stateCommon,
	}
	if desc.Type == rhi.Texture3D {
		info.depthOrArraySize = desc.Depth
	}
	if desc.Usage&(rhi.TextureUsageColorAttachment|rhi.TextureUsageDepthStencil) != 0 {
		info.hasClear = true
		info.clear = rhi.ClearValue{Depth: 1}
	}
	res, err := d.drv.createCommittedResource(info)
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create texture %q: %w", desc.Name, err))
	}
	t, err := d.wrapResource(desc, res, true)
	if err != nil {
		d.drv.destroyResource(res)
		return nil, err
	}
	t.id = d.registry.Add("Texture", desc.Name, t)
	d.stats.textureMem.Add(int64(t.bytes))

	// Committed resources start in COMMON.
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

// wrapResource creates the views of res and the texture around it. The
// texture takes over the reference to res.
func (d *Device) wrapResource(desc rhi.TextureDesc, res handle, owned bool) (*Texture, error) {
	t := &Texture{
		dev:      d,
		desc:     desc,
		resource: res,
		rtv:      rhi.InvalidDescriptorIndex,
		dsv:      rhi.InvalidDescriptorIndex,
		srv:      rhi.InvalidDescriptorIndex,
		uav:      rhi.InvalidDescriptorIndex,
		owned:    owned,
	}
	view := func(kind viewKind, heap heapKind, format dxgiFormat) (uint32, error) {
		slot, err := d.heaps[heap].Allocate()
		if err != nil {
			return slot, d.fail(fmt.Errorf("view of %q: %w", desc.Name, err))
		}
		d.drv.createView(viewInfo{
			kind:        kind,
			resource:    res,
			format:      format,
			textureType: desc.Type,
			mips:        desc.MipLevels,
			layers:      desc.ArrayLayers,
		}, d.heaps[heap].CPUHandle(slot))
		return slot, nil
	}
	var err error
	if t.HasRTVUsage() {
		t.rtv, err = view(viewRTV, heapRTV, toDXGIFormat(desc.Format))
	}
	if err == nil && t.HasDSVUsage() {
		t.dsv, err = view(viewDSV, heapDSV, toDXGIFormat(desc.Format))
	}
	if err == nil && t.HasSRVUsage() {
		t.srv, err = view(viewSRV, heapCbvSrvUav, shaderFormat(desc.Format))
	}
	if err == nil && t.HasUAVUsage() {
		t.uav, err = view(viewUAV, heapCbvSrvUav, toDXGIFormat(desc.Format))
	}
	if err != nil {
		t.freeViews(func(kind heapKind, slot uint32) {
			if slot != rhi.InvalidDescriptorIndex {
				d.heaps[kind].Free(slot)
			}
		})
		return nil, err
	}
	if owned {
		t.bytes = textureBytes(desc)
	}
	t.valid.Store(true)
	return t, nil
}

func (t *Texture) freeViews(free func(kind heapKind, slot uint32)) {
	free(heapRTV, t.rtv)
	free(heapDSV, t.dsv)
	free(heapCbvSrvUav, t.srv)
	free(heapCbvSrvUav, t.uav)
}

func (t *Texture) IsValid() bool { return t != nil && t.valid.Load() }

func (t *Texture) Destroy() {
	if t == nil || !t.valid.CompareAndSwap(true, false) {
		return
	}
	d, res := t.dev, t.resource
	d.registry.Remove(t.id)
	d.stats.textureMem.Add(-int64(t.bytes))
	t.freeViews(d.freeSlot)
	d.release(func() { d.drv.destroyResource(res) })
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

func (t *Texture) rtvHandle() cpuDescriptor { return t.dev.heaps[heapRTV].CPUHandle(t.rtv) }
func (t *Texture) dsvHandle() cpuDescriptor { return t.dev.heaps[heapDSV].CPUHandle(t.dsv) }

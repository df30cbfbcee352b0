package vulkan

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// lodClampNone is VK_LOD_CLAMP_NONE.
const lodClampNone = 1000.0

type Sampler struct {
	dev    *Device
	desc   rhi.SamplerDesc
	id     uuid.UUID
	handle handle
	cached bool
	valid  atomic.Bool
}

func (d *Device) CreateSampler(desc rhi.SamplerDesc) (rhi.Sampler, error) {
	s, err := d.createSampler(desc)
	if err != nil {
		return nil, err
	}
	s.id = d.registry.Add("Sampler", "", s)
	return s, nil
}

// GetOrCreateSampler returns the device owned sampler for desc.
func (d *Device) GetOrCreateSampler(desc rhi.SamplerDesc) (rhi.Sampler, error) {
	s, err := d.samplers.GetOrCreate(desc, func() (*Sampler, error) {
		s, err := d.createSampler(desc)
		if err == nil {
			s.cached = true
		}
		return s, err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Device) createSampler(desc rhi.SamplerDesc) (*Sampler, error) {
	if desc.MaxAnisotropy < 0 || desc.MaxLod < desc.MinLod && desc.MaxLod != 0 {
		return nil, d.fail(fmt.Errorf("%w: sampler anisotropy or lod range", rhi.ErrInvalidArgument))
	}
	maxLod := desc.MaxLod
	if maxLod == 0 {
		maxLod = lodClampNone
	}
	h, err := d.drv.createSampler(samplerInfo{
		minFilter:     filter(desc.MinFilter),
		magFilter:     filter(desc.MagFilter),
		mipmapMode:    mipmapMode(desc.MipFilter),
		addressU:      addressMode(desc.AddressU),
		addressV:      addressMode(desc.AddressV),
		addressW:      addressMode(desc.AddressW),
		maxAnisotropy: desc.MaxAnisotropy,
		compareEnable: desc.CompareEnable,
		compareOp:     compareOp(desc.Compare),
		minLod:        desc.MinLod,
		maxLod:        maxLod,
	})
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create sampler: %w", err))
	}
	s := &Sampler{dev: d, desc: desc, handle: h}
	s.valid.Store(true)
	return s, nil
}

func (s *Sampler) IsValid() bool         { return s != nil && s.valid.Load() }
func (s *Sampler) Desc() rhi.SamplerDesc { return s.desc }

// Destroy is a no-op for cached samplers; the device releases them.
func (s *Sampler) Destroy() {
	if s == nil || s.cached {
		return
	}
	s.destroy()
}

func (s *Sampler) destroy() {
	if !s.valid.CompareAndSwap(true, false) {
		return
	}
	d, h := s.dev, s.handle
	d.registry.Remove(s.id)
	d.release(func() { d.drv.destroySampler(h) })
}

package dx12

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// Sampler owns one slot of the CPU sampler heap.
type Sampler struct {
	dev    *Device
	desc   rhi.SamplerDesc
	id     uuid.UUID
	slot   uint32
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
	if desc.MaxAnisotropy < 0 || desc.MaxAnisotropy > 16 || desc.MaxLod < desc.MinLod && desc.MaxLod != 0 {
		return nil, d.fail(fmt.Errorf("%w: sampler anisotropy or lod range", rhi.ErrInvalidArgument))
	}
	maxLod := desc.MaxLod
	if maxLod == 0 {
		maxLod = math.MaxFloat32
	}
	slot, err := d.heaps[heapSampler].Allocate()
	if err != nil {
		return nil, d.fail(err)
	}
	info := samplerInfo{
		filter:        samplerFilter(desc),
		addressU:      addressMode(desc.AddressU),
		addressV:      addressMode(desc.AddressV),
		addressW:      addressMode(desc.AddressW),
		maxAnisotropy: uint32(max(desc.MaxAnisotropy, 1)),
		minLod:        desc.MinLod,
		maxLod:        maxLod,
	}
	if desc.CompareEnable {
		info.comparison = comparisonFunc(desc.Compare)
	}
	d.drv.createSampler(info, d.heaps[heapSampler].CPUHandle(slot))
	s := &Sampler{dev: d, desc: desc, slot: slot}
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
	s.dev.registry.Remove(s.id)
	s.dev.freeSlot(heapSampler, s.slot)
}

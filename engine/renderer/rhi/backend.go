package rhi

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spaghettifunk/rhi/engine/core"
)

type HeapSizes struct {
	RTV       uint32
	DSV       uint32
	CbvSrvUav uint32
	Sampler   uint32
}

type DescriptorPoolSizes struct {
	MaxSets        uint32
	UniformBuffers uint32
	StorageBuffers uint32
	SampledImages  uint32
	Samplers       uint32
	StorageImages  uint32
}

// DeviceConfig carries everything a backend needs to open a device.
type DeviceConfig struct {
	Backend         Backend
	ApplicationName string
	// Headless selects the in-memory driver of the backend.
	Headless bool
	// Window is the platform window the device presents to. Vulkan needs it
	// at open time to pick a queue that can present; nil opens a device
	// without presentation support.
	Window         any
	Debug          bool
	FramesInFlight uint32
	Heaps          HeapSizes
	DescriptorPool DescriptorPoolSizes
}

// DeviceConfigFrom derives the device configuration from the engine config.
func DeviceConfigFrom(cfg *core.Config) (DeviceConfig, error) {
	b, err := ParseBackend(cfg.Renderer.Backend)
	if err != nil {
		return DeviceConfig{}, err
	}
	r := cfg.Renderer
	return DeviceConfig{
		Backend:         b,
		ApplicationName: cfg.Application.Name,
		Headless:        r.Headless,
		Debug:           r.Debug,
		FramesInFlight:  r.FramesInFlight,
		Heaps: HeapSizes{
			RTV:       r.Heaps.RTV,
			DSV:       r.Heaps.DSV,
			CbvSrvUav: r.Heaps.CbvSrvUav,
			Sampler:   r.Heaps.Sampler,
		},
		DescriptorPool: DescriptorPoolSizes{
			MaxSets:        r.DescriptorPool.MaxSets,
			UniformBuffers: r.DescriptorPool.UniformBuffers,
			StorageBuffers: r.DescriptorPool.StorageBuffers,
			SampledImages:  r.DescriptorPool.SampledImages,
			Samplers:       r.DescriptorPool.Samplers,
			StorageImages:  r.DescriptorPool.StorageImages,
		},
	}, nil
}

// DefaultDeviceConfig is the device configuration of core.DefaultConfig.
func DefaultDeviceConfig(b Backend, headless bool) DeviceConfig {
	cfg, _ := DeviceConfigFrom(core.DefaultConfig())
	cfg.Backend = b
	cfg.Headless = headless
	return cfg
}

// OpenFunc opens a device of one backend.
type OpenFunc func(cfg DeviceConfig) (Device, error)

var (
	mu       sync.Mutex
	backends = make(map[Backend]OpenFunc)
)

// Register makes a backend available to Open. Backend packages call it from
// init; registering a backend again replaces it.
func Register(b Backend, open OpenFunc) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := backends[b]; ok {
		core.LogWarn("backend '%s' replaced", b)
	}
	backends[b] = open
}

// Backends returns the registered backends.
func Backends() []Backend {
	mu.Lock()
	defer mu.Unlock()
	bs := make([]Backend, 0, len(backends))
	for b := range backends {
		bs = append(bs, b)
	}
	sort.Slice(bs, func(i, j int) bool { return bs[i] < bs[j] })
	return bs
}

// Open opens a device on the backend named in cfg.
func Open(cfg DeviceConfig) (Device, error) {
	mu.Lock()
	open, ok := backends[cfg.Backend]
	mu.Unlock()
	if !ok {
		err := fmt.Errorf("%w: %s is not registered", ErrUnknownBackend, cfg.Backend)
		core.LogError("%s", err)
		return nil, err
	}
	if cfg.FramesInFlight == 0 {
		cfg.FramesInFlight = 2
	}
	return open(cfg)
}

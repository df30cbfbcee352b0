package core

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type ApplicationSection struct {
	Name      string `toml:"name"`
	PosX      uint32 `toml:"pos_x"`
	PosY      uint32 `toml:"pos_y"`
	Width     uint32 `toml:"width"`
	Height    uint32 `toml:"height"`
	LogLevel  string `toml:"log_level"`
	ShaderDir string `toml:"shader_dir"`
}

// HeapSection holds the fixed capacities of the DX12 CPU descriptor heaps.
type HeapSection struct {
	RTV       uint32 `toml:"rtv"`
	DSV       uint32 `toml:"dsv"`
	CbvSrvUav uint32 `toml:"cbv_srv_uav"`
	Sampler   uint32 `toml:"sampler"`
}

// DescriptorPoolSection sizes each Vulkan descriptor pool of the pool bank.
type DescriptorPoolSection struct {
	MaxSets        uint32 `toml:"max_sets"`
	UniformBuffers uint32 `toml:"uniform_buffers"`
	StorageBuffers uint32 `toml:"storage_buffers"`
	SampledImages  uint32 `toml:"sampled_images"`
	Samplers       uint32 `toml:"samplers"`
	StorageImages  uint32 `toml:"storage_images"`
}

type RendererSection struct {
	Backend          string                `toml:"backend"`
	Headless         bool                  `toml:"headless"`
	Debug            bool                  `toml:"debug"`
	VSync            bool                  `toml:"vsync"`
	FramesInFlight   uint32                `toml:"frames_in_flight"`
	SwapchainBuffers uint32                `toml:"swapchain_buffers"`
	Heaps            HeapSection           `toml:"heaps"`
	DescriptorPool   DescriptorPoolSection `toml:"descriptor_pool"`
}

type Config struct {
	Application ApplicationSection `toml:"application"`
	Renderer    RendererSection    `toml:"renderer"`
}

const (
	MaxFramesInFlight   uint32 = 4
	MaxSwapchainBuffers uint32 = 8
)

func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationSection{
			Name:      "RHI Testbed",
			PosX:      100,
			PosY:      100,
			Width:     1280,
			Height:    720,
			LogLevel:  "info",
			ShaderDir: "shaders",
		},
		Renderer: RendererSection{
			Backend:          "vulkan",
			Headless:         false,
			Debug:            false,
			VSync:            true,
			FramesInFlight:   2,
			SwapchainBuffers: 3,
			Heaps: HeapSection{
				RTV:       256,
				DSV:       64,
				CbvSrvUav: 4096,
				Sampler:   256,
			},
			DescriptorPool: DescriptorPoolSection{
				MaxSets:        512,
				UniformBuffers: 1024,
				StorageBuffers: 256,
				SampledImages:  1024,
				Samplers:       256,
				StorageImages:  128,
			},
		},
	}
}

// LoadConfig reads a TOML file on top of the defaults, so a file only needs
// to carry the keys it wants to change.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		err = fmt.Errorf("%w: %s", ErrInvalidConfig, err)
		LogError("%s", err)
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		LogError("%s", err)
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Renderer.Backend {
	case "vulkan", "dx12":
	default:
		return fmt.Errorf("%w: backend %q", ErrUnknownBackend, c.Renderer.Backend)
	}
	if c.Renderer.FramesInFlight == 0 || c.Renderer.FramesInFlight > MaxFramesInFlight {
		return fmt.Errorf("%w: frames_in_flight must be in [1, %d], got %d", ErrInvalidConfig, MaxFramesInFlight, c.Renderer.FramesInFlight)
	}
	if c.Renderer.SwapchainBuffers < 2 || c.Renderer.SwapchainBuffers > MaxSwapchainBuffers {
		return fmt.Errorf("%w: swapchain_buffers must be in [2, %d], got %d", ErrInvalidConfig, MaxSwapchainBuffers, c.Renderer.SwapchainBuffers)
	}
	h := c.Renderer.Heaps
	if h.RTV == 0 || h.DSV == 0 || h.CbvSrvUav == 0 || h.Sampler == 0 {
		return fmt.Errorf("%w: descriptor heap capacities must be non-zero", ErrInvalidConfig)
	}
	if c.Renderer.DescriptorPool.MaxSets == 0 {
		return fmt.Errorf("%w: descriptor_pool.max_sets must be non-zero", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

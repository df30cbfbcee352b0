package vulkan

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// Shader owns a VkShaderModule built from SPIR-V. Reinitialize swaps the
// module and bumps the generation, which is part of the pipeline cache key.
type Shader struct {
	dev   *Device
	id    uuid.UUID
	valid atomic.Bool

	mu         sync.Mutex
	desc       rhi.ShaderDesc
	module     handle
	generation uint64
}

func checkSPIRV(code []byte) error {
	if len(code) == 0 || len(code)%4 != 0 {
		return fmt.Errorf("%w: SPIR-V size %d is not a positive multiple of 4", rhi.ErrInvalidArgument, len(code))
	}
	return nil
}

func (d *Device) CreateShader(desc rhi.ShaderDesc) (rhi.Shader, error) {
	switch desc.Stage {
	case rhi.ShaderStageVertex, rhi.ShaderStageFragment, rhi.ShaderStageCompute:
	default:
		return nil, d.fail(fmt.Errorf("%w: shader %q has stage %s", rhi.ErrInvalidArgument, desc.Name, desc.Stage))
	}
	if err := checkSPIRV(desc.Code); err != nil {
		return nil, d.fail(err)
	}
	if desc.EntryPoint == "" {
		desc.EntryPoint = "main"
	}
	module, err := d.drv.createShaderModule(desc.Code)
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create shader module %q: %w", desc.Name, err))
	}
	desc.Code = append([]byte(nil), desc.Code...)
	s := &Shader{dev: d, desc: desc, module: module}
	s.valid.Store(true)
	s.id = d.registry.Add("Shader", desc.Name, s)
	return s, nil
}

func (s *Shader) IsValid() bool { return s != nil && s.valid.Load() }

func (s *Shader) Destroy() {
	if s == nil || !s.valid.CompareAndSwap(true, false) {
		return
	}
	s.mu.Lock()
	d, h := s.dev, s.module
	s.mu.Unlock()
	d.registry.Remove(s.id)
	d.release(func() { d.drv.destroyShaderModule(h) })
}

func (s *Shader) Desc() rhi.ShaderDesc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc
}

func (s *Shader) Stage() rhi.ShaderStage { return s.desc.Stage }

func (s *Shader) Reinitialize(code []byte) error {
	if !s.IsValid() {
		return fmt.Errorf("%w: shader", rhi.ErrDestroyed)
	}
	if err := checkSPIRV(code); err != nil {
		return s.dev.fail(err)
	}
	module, err := s.dev.drv.createShaderModule(code)
	if err != nil {
		return s.dev.fail(fmt.Errorf("failed to rebuild shader %q: %w", s.desc.Name, err))
	}
	s.mu.Lock()
	old := s.module
	s.module = module
	s.desc.Code = append([]byte(nil), code...)
	s.generation++
	s.mu.Unlock()

	d := s.dev
	d.release(func() { d.drv.destroyShaderModule(old) })
	d.log.Debug("shader reinitialized", "shader", s.desc.Name, "bytes", len(code))
	return nil
}

// current returns the module pipelines are built from now.
func (s *Shader) current() (handle, uint64, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.module, s.generation, s.desc.EntryPoint
}

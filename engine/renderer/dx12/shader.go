package dx12

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// containerMagic starts both DXBC and DXIL containers.
var containerMagic = []byte("DXBC")

// Shader keeps a copy of its bytecode; D3D12 takes shaders by value when a
// pipeline state is created, so there is no native shader object.
type Shader struct {
	dev   *Device
	id    uuid.UUID
	valid atomic.Bool

	mu         sync.Mutex
	desc       rhi.ShaderDesc
	generation uint64
}

func checkBytecode(code []byte) error {
	if !bytes.HasPrefix(code, containerMagic) {
		return fmt.Errorf("%w: shader bytecode is not a DXBC or DXIL container", rhi.ErrInvalidArgument)
	}
	return nil
}

func (d *Device) CreateShader(desc rhi.ShaderDesc) (rhi.Shader, error) {
	switch desc.Stage {
	case rhi.ShaderStageVertex, rhi.ShaderStageFragment, rhi.ShaderStageCompute:
	default:
		return nil, d.fail(fmt.Errorf("%w: shader %q has stage %s", rhi.ErrInvalidArgument, desc.Name, desc.Stage))
	}
	if err := checkBytecode(desc.Code); err != nil {
		return nil, d.fail(err)
	}
	if desc.EntryPoint == "" {
		desc.EntryPoint = "main"
	}
	desc.Code = append([]byte(nil), desc.Code...)
	s := &Shader{dev: d, desc: desc}
	s.valid.Store(true)
	s.id = d.registry.Add("Shader", desc.Name, s)
	return s, nil
}

func (s *Shader) IsValid() bool { return s != nil && s.valid.Load() }

func (s *Shader) Destroy() {
	if s == nil || !s.valid.CompareAndSwap(true, false) {
		return
	}
	s.dev.registry.Remove(s.id)
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
	if err := checkBytecode(code); err != nil {
		return s.dev.fail(err)
	}
	s.mu.Lock()
	s.desc.Code = append([]byte(nil), code...)
	s.generation++
	s.mu.Unlock()
	s.dev.log.Debug("shader reinitialized", "shader", s.desc.Name, "bytes", len(code))
	return nil
}

// current returns the bytecode pipelines are built from now.
func (s *Shader) current() ([]byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc.Code, s.generation
}

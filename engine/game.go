package engine

import (
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	// Renderer and Events are set by the engine before FnInitialize.
	Renderer     *renderer.Renderer
	Events       *core.EventSystem
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type Render func(packet *renderer.RenderPacket, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error

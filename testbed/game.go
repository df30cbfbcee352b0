package testbed

import (
	"errors"
	"io/fs"
	"math"

	"github.com/spaghettifunk/rhi/engine"
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/platform"
	"github.com/spaghettifunk/rhi/engine/renderer"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	elapsed float64

	// ScreenshotDir receives a BMP on F12 and, for headless runs, one of the
	// last frame at shutdown.
	screenshotDir       string
	screenshotRequested bool
	screenshots         int

	triangle *trianglePass
	watcher  *shaderWatcher
}

func NewTestGame(configPath string, maxFrames uint64) (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				ConfigPath: configPath,
				MaxFrames:  maxFrames,
			},
			State: &gameState{screenshotDir: "screenshots"},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() error {
	core.LogInfo("initializing testbed...")
	g.Events.Register(core.EVENT_CODE_KEY_PRESSED, g, g.onKey)

	cfg := g.ApplicationConfig.Config
	device := g.Renderer.Device()
	dir := cfg.Application.ShaderDir
	vsCode, vsErr := readShader(dir, "triangle.vert", device.Backend())
	fsCode, fsErr := readShader(dir, "triangle.frag", device.Backend())
	if err := errors.Join(vsErr, fsErr); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			core.LogWarn("no compiled shaders in %s, only clearing (run mage build:shaders)", dir)
			return nil
		}
		return err
	}

	s := g.state()
	tri, err := newTrianglePass(device, g.Renderer.SwapChain().Format(), vsCode, fsCode)
	if err != nil {
		return err
	}
	s.triangle = tri
	if s.watcher, err = watchShaders(dir, device.Backend()); err != nil {
		core.LogWarn("shader hot reload disabled: %s", err)
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	s := g.state()
	s.elapsed += deltaTime

	if s.watcher != nil && s.triangle != nil {
		for _, c := range s.watcher.pending() {
			// A broken shader keeps the previous pipeline.
			if err := s.triangle.reload(c.name, c.code); err != nil {
				core.LogError("failed to reload %s: %s", c.name, err)
			}
		}
	}
	if s.screenshotRequested {
		s.screenshotRequested = false
		g.screenshot()
	}
	return nil
}

func (g *TestGame) Render(packet *renderer.RenderPacket, deltaTime float64) error {
	s := g.state()
	packet.ClearColor = clearColor(s.elapsed)
	if s.triangle != nil {
		packet.Passes = append(packet.Passes, s.triangle.record)
	}
	return nil
}

// clearColor cycles the hue once every six seconds.
func clearColor(t float64) [4]float32 {
	phase := t / 6 * 2 * math.Pi
	c := [4]float32{1, 1, 1, 1}
	for i := 0; i < 3; i++ {
		c[i] = float32(0.5 + 0.5*math.Sin(phase+float64(i)*2*math.Pi/3))
	}
	return c
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	core.LogDebug("testbed resized to %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	s := g.state()
	if g.ApplicationConfig.Config.Renderer.Headless {
		g.screenshot()
	}
	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
		s.watcher = nil
	}
	if s.triangle != nil {
		g.Renderer.Device().WaitIdle()
		s.triangle.destroy()
		s.triangle = nil
	}
	return err
}

func (g *TestGame) screenshot() {
	s := g.state()
	img, err := g.Renderer.Capture()
	if err != nil {
		core.LogError("screenshot failed: %s", err)
		return
	}
	path, err := writeBMP(s.screenshotDir, s.screenshots, img)
	if err != nil {
		core.LogError("screenshot failed: %s", err)
		return
	}
	s.screenshots++
	core.LogInfo("screenshot written to %s", path)
}

func (g *TestGame) onKey(code core.SystemEventCode, sender, listener interface{}, context core.EventContext) bool {
	if context.Data.U16[0] == platform.KeyF12 {
		g.state().screenshotRequested = true
		return true
	}
	return false
}

package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/platform"
	"github.com/spaghettifunk/rhi/engine/renderer"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *core.Config
	isRunning    atomic.Bool
	isSuspended  bool
	// platform is nil for headless runs.
	platform *platform.Platform
	renderer *renderer.Renderer
	events   *core.EventSystem
	clock    *core.Clock
	metrics  *core.Metrics
	width    uint32
	height   uint32
	lastTime float64
	frames   uint64
}

func New(g *Game) (*Engine, error) {
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = &ApplicationConfig{}
	}
	ac := g.ApplicationConfig
	cfg := ac.Config
	if cfg == nil {
		var err error
		if cfg, err = loadConfig(ac.ConfigPath); err != nil {
			return nil, err
		}
		ac.Config = cfg
	}
	core.SetLogLevel(cfg.Application.LogLevel)

	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		config:       cfg,
		renderer:     renderer.New(cfg),
		events:       core.NewEventSystem(),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		width:        cfg.Application.Width,
		height:       cfg.Application.Height,
	}
	if !cfg.Renderer.Headless {
		e.platform = platform.New(e.events)
	}
	e.currentStage = EngineStageBootComplete
	return e, nil
}

func loadConfig(path string) (*core.Config, error) {
	if path == "" {
		return core.DefaultConfig(), nil
	}
	cfg, err := core.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		core.LogWarn("config file %s not found, using the defaults", path)
		return core.DefaultConfig(), nil
	}
	return cfg, err
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("engine initialized in stage %d", e.currentStage)
	}
	e.currentStage = EngineStageInitializing

	// register some events
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	var window any
	if e.platform != nil {
		app := e.config.Application
		if err := e.platform.Startup(app.Name, app.PosX, app.PosY, app.Width, app.Height); err != nil {
			return err
		}
		window = e.platform
		e.width, e.height = e.platform.FramebufferSize()
	}
	if err := e.renderer.Initialize(window, e.width, e.height); err != nil {
		core.LogError("failed to initialize the renderer: %s", err)
		return err
	}

	g := e.gameInstance
	g.Renderer = e.renderer
	g.Events = e.events
	if g.FnInitialize != nil {
		if err := g.FnInitialize(); err != nil {
			core.LogError("failed to initialize the game: %s", err)
			return err
		}
	}
	e.isRunning.Store(true)
	e.currentStage = EngineStageInitialized
	return nil
}

// Run drives frames until the application quits, then shuts down.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine run in stage %d", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	g := e.gameInstance
	maxFrames := g.ApplicationConfig.MaxFrames
	var runErr error
	for e.isRunning.Load() {
		if e.platform != nil {
			e.platform.PumpMessages()
		}
		if e.isSuspended {
			// Nothing to present to while minimized.
			time.Sleep(10 * time.Millisecond)
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := currentTime

		if g.FnUpdate != nil {
			if err := g.FnUpdate(delta); err != nil {
				core.LogError("Game update failed, shutting down: %s", err)
				runErr = err
				break
			}
		}
		packet := &renderer.RenderPacket{DeltaTime: delta}
		if g.FnRender != nil {
			if err := g.FnRender(packet, delta); err != nil {
				core.LogError("Game render failed, shutting down: %s", err)
				runErr = err
				break
			}
		}
		if err := e.renderer.DrawFrame(packet); err != nil {
			runErr = err
			break
		}

		e.clock.Update()
		e.metrics.Update(e.clock.Elapsed() - frameStartTime)
		e.lastTime = currentTime
		e.frames++
		if maxFrames > 0 && e.frames >= maxFrames {
			e.isRunning.Store(false)
		}
	}
	core.LogInfo("ran %d frames, %.1f fps, %.3f ms/frame", e.metrics.TotalFrames(), e.metrics.FPS(), e.metrics.FrameTime())

	if err := e.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Quit stops the loop after the current frame. It is safe to call from any
// goroutine.
func (e *Engine) Quit() {
	e.isRunning.Store(false)
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	var errs []error
	if g := e.gameInstance; g.FnShutdown != nil {
		errs = append(errs, g.FnShutdown())
	}
	errs = append(errs, e.renderer.Shutdown())
	e.events.Shutdown()
	if e.platform != nil {
		errs = append(errs, e.platform.Shutdown())
	}
	return errors.Join(errs...)
}

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) Frames() uint64 {
	return e.frames
}

func (e *Engine) onEvent(code core.SystemEventCode, sender, listener interface{}, context core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.Quit()
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender, listener interface{}, context core.EventContext) bool {
	if context.Data.U16[0] == platform.KeyEscape {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		// Block anything else from processing this.
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender, listener interface{}, context core.EventContext) bool {
	width, height := context.Data.U32[0], context.Data.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if g := e.gameInstance; g.FnOnResize != nil {
		if err := g.FnOnResize(width, height); err != nil {
			core.LogError("%s", err)
		}
	}
	e.renderer.OnResize(width, height)
	return true
}

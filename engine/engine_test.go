package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer"
)

func headlessGame(backend string, maxFrames uint64) *Game {
	cfg := core.DefaultConfig()
	cfg.Application.Width, cfg.Application.Height = 32, 16
	cfg.Renderer.Backend = backend
	cfg.Renderer.Headless = true
	return &Game{ApplicationConfig: &ApplicationConfig{Config: cfg, MaxFrames: maxFrames}}
}

func TestHeadlessRun(t *testing.T) {
	for _, backend := range []string{"vulkan", "dx12"} {
		t.Run(backend, func(t *testing.T) {
			g := headlessGame(backend, 3)
			var updates, renders, shutdowns int
			g.FnInitialize = func() error {
				if g.Renderer == nil || g.Events == nil {
					t.Error("FnInitialize: renderer or events not set")
				}
				return nil
			}
			g.FnUpdate = func(float64) error { updates++; return nil }
			g.FnRender = func(p *renderer.RenderPacket, _ float64) error {
				renders++
				p.ClearColor = [4]float32{0, 1, 0, 1}
				return nil
			}
			g.FnShutdown = func() error { shutdowns++; return nil }

			e, err := New(g)
			if err != nil {
				t.Fatal(err)
			}
			if err := e.Initialize(); err != nil {
				t.Fatal(err)
			}
			if err := e.Run(); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if updates != 3 || renders != 3 || shutdowns != 1 {
				t.Fatalf("callbacks:\nhave %d updates, %d renders, %d shutdowns\nwant 3, 3, 1", updates, renders, shutdowns)
			}
			if have := e.Frames(); have != 3 {
				t.Fatalf("Frames:\nhave %d\nwant 3", have)
			}
			if err := e.Run(); err == nil {
				t.Fatal("Run after shutdown: have nil error\nwant an error")
			}
		})
	}
}

func TestQuitEventStopsTheLoop(t *testing.T) {
	g := headlessGame("dx12", 0)
	e, err := New(g)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	g.FnUpdate = func(float64) error {
		g.Events.Fire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
		return nil
	}
	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	// The frame that saw the event still completes.
	if have := e.Frames(); have != 1 {
		t.Fatalf("Frames:\nhave %d\nwant 1", have)
	}
}

func TestRunReturnsGameErrors(t *testing.T) {
	errUpdate := errors.New("update failed")
	g := headlessGame("dx12", 10)
	g.FnUpdate = func(float64) error { return errUpdate }
	e, err := New(g)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.Run(); !errors.Is(err, errUpdate) {
		t.Fatalf("Run:\nhave %v\nwant %v", err, errUpdate)
	}
}

func TestResizeEvents(t *testing.T) {
	g := headlessGame("dx12", 1)
	var resized [2]uint32
	g.FnOnResize = func(w, h uint32) error {
		resized = [2]uint32{w, h}
		return nil
	}
	e, err := New(g)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	fire := func(w, h uint32) {
		var ctx core.EventContext
		ctx.Data.U32[0], ctx.Data.U32[1] = w, h
		e.events.Fire(core.EVENT_CODE_RESIZED, nil, ctx)
	}
	fire(0, 0)
	if !e.isSuspended {
		t.Fatal("minimized: isSuspended have false\nwant true")
	}
	fire(48, 24)
	if e.isSuspended {
		t.Fatal("restored: isSuspended have true\nwant false")
	}
	if resized != [2]uint32{48, 24} {
		t.Fatalf("FnOnResize:\nhave %v\nwant [48 24]", resized)
	}
	if w, h := e.GetFramebufferSize(); w != 48 || h != 24 {
		t.Fatalf("GetFramebufferSize:\nhave %dx%d\nwant 48x24", w, h)
	}
	if err := e.renderer.DrawFrame(&renderer.RenderPacket{}); err != nil {
		t.Fatal(err)
	}
	if sc := e.renderer.SwapChain(); sc.Width() != 48 || sc.Height() != 24 {
		t.Fatalf("swapchain:\nhave %dx%d\nwant 48x24", sc.Width(), sc.Height())
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := []byte("[application]\nwidth = 64\nheight = 48\n\n[renderer]\nbackend = \"dx12\"\nheadless = true\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	e, err := New(&Game{ApplicationConfig: &ApplicationConfig{ConfigPath: path}})
	if err != nil {
		t.Fatal(err)
	}
	if e.config.Renderer.Backend != "dx12" || e.width != 64 || e.height != 48 || e.platform != nil {
		t.Fatalf("config:\nhave %s %dx%d\nwant dx12 64x48 headless", e.config.Renderer.Backend, e.width, e.height)
	}

	missing, err := New(&Game{ApplicationConfig: &ApplicationConfig{ConfigPath: filepath.Join(t.TempDir(), "none.toml")}})
	if err != nil {
		t.Fatalf("missing config file: %v", err)
	}
	if have := missing.config.Renderer.Backend; have != core.DefaultConfig().Renderer.Backend {
		t.Fatalf("backend with a missing file:\nhave %s\nwant the default", have)
	}
	if _, err := New(&Game{ApplicationConfig: &ApplicationConfig{ConfigPath: t.TempDir()}}); err == nil {
		t.Fatal("directory as config file: have nil error\nwant an error")
	}
}

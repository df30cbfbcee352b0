package testbed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/rhi/engine"
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// Both headless drivers accept these: SPIR-V is only checked for its size
// and DX12 containers for their magic.
var fakeShaders = map[rhi.Backend][]byte{
	rhi.BackendVulkan: {0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00},
	rhi.BackendDX12:   []byte("DXBC\x00\x01\x02\x03"),
}

func writeShaders(t *testing.T, dir string, b rhi.Backend) {
	t.Helper()
	for _, name := range []string{"triangle.vert", "triangle.frag"} {
		if err := os.WriteFile(filepath.Join(dir, name+shaderExt(b)), fakeShaders[b], 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newHeadlessGame(t *testing.T, backend, shaderDir string, frames uint64) (*TestGame, *engine.Engine) {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Application.Width, cfg.Application.Height = 16, 16
	cfg.Application.ShaderDir = shaderDir
	cfg.Renderer.Backend = backend
	cfg.Renderer.Headless = true

	tg, err := NewTestGame("", frames)
	if err != nil {
		t.Fatal(err)
	}
	tg.ApplicationConfig.Config = cfg
	tg.state().screenshotDir = filepath.Join(t.TempDir(), "shots")
	e, err := engine.New(tg.Game)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return tg, e
}

func TestTestbedRunsHeadless(t *testing.T) {
	for _, b := range []rhi.Backend{rhi.BackendVulkan, rhi.BackendDX12} {
		t.Run(b.String(), func(t *testing.T) {
			dir := t.TempDir()
			writeShaders(t, dir, b)
			tg, e := newHeadlessGame(t, b.String(), dir, 4)
			s := tg.state()
			if s.triangle == nil {
				t.Fatal("triangle pass was not created")
			}
			if err := e.Run(); err != nil {
				t.Fatalf("Run: %v", err)
			}
			shot := filepath.Join(s.screenshotDir, "screenshot-000.bmp")
			if _, err := os.Stat(shot); err != nil {
				t.Fatalf("headless screenshot: %v", err)
			}
		})
	}
}

func TestTestbedWithoutShadersOnlyClears(t *testing.T) {
	tg, e := newHeadlessGame(t, "dx12", t.TempDir(), 2)
	if tg.state().triangle != nil {
		t.Fatal("triangle pass without shader files")
	}
	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	if have := tg.state().screenshots; have != 1 {
		t.Fatalf("screenshots:\nhave %d\nwant 1", have)
	}
}

func TestShaderReload(t *testing.T) {
	dir := t.TempDir()
	writeShaders(t, dir, rhi.BackendDX12)
	tg, e := newHeadlessGame(t, "dx12", dir, 1)
	defer e.Shutdown()
	s := tg.state()
	if s.watcher == nil {
		t.Fatal("no shader watcher")
	}

	before := s.triangle.pipeline
	code := []byte("DXBC\x10\x11\x12\x13\x14\x15\x16\x17")
	if err := os.WriteFile(filepath.Join(dir, "triangle.frag.dxil"), code, 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for s.triangle.pipeline == before {
		if time.Now().After(deadline) {
			t.Fatal("pipeline was not rebuilt after the shader changed")
		}
		time.Sleep(10 * time.Millisecond)
		if err := tg.Update(0.01); err != nil {
			t.Fatal(err)
		}
	}
	if before.IsValid() {
		t.Fatal("old pipeline: IsValid have true\nwant false")
	}
	if have := string(s.triangle.fs.Desc().Code); have != string(code) {
		t.Fatalf("fragment shader code:\nhave %q\nwant %q", have, code)
	}

	// Broken code keeps the current pipeline.
	current := s.triangle.pipeline
	if err := s.triangle.reload("triangle.vert", []byte("SPIR")); err == nil {
		t.Fatal("reload with bad code: have nil error\nwant an error")
	}
	if s.triangle.pipeline != current || !current.IsValid() {
		t.Fatal("pipeline changed after a failed reload")
	}
}

func TestClearColorCycles(t *testing.T) {
	a, b := clearColor(0), clearColor(3)
	if a == b {
		t.Fatalf("clear color did not change over time: %v", a)
	}
	if c := clearColor(6); c != a {
		for i := 0; i < 3; i++ {
			if d := c[i] - a[i]; d > 1e-5 || d < -1e-5 {
				t.Fatalf("clear color after one period:\nhave %v\nwant %v", c, a)
			}
		}
	}
	for _, v := range a {
		if v < 0 || v > 1 {
			t.Fatalf("clear color component out of range: %v", a)
		}
	}
}

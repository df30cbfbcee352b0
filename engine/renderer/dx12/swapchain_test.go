package dx12

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
	"github.com/spaghettifunk/rhi/engine/renderer/softgpu"
)

func newSurfaceSwapChain(t *testing.T, d *Device, surface *softgpu.Surface) rhi.SwapChain {
	t.Helper()
	w, h := surface.Size()
	sc, err := d.CreateSwapChain(rhi.SwapchainDesc{Window: surface, Width: w, Height: h})
	if err != nil {
		t.Fatalf("CreateSwapChain: %v", err)
	}
	t.Cleanup(sc.Destroy)
	return sc
}

// drawFrame clears the current back buffer and moves it to PRESENT.
func drawFrame(t *testing.T, d *Device, cb rhi.CommandBuffer, sc rhi.SwapChain, color [4]float32, info rhi.SubmitInfo) {
	t.Helper()
	bb := sc.BackBuffer(sc.CurrentImageIndex())
	if err := cb.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := cb.ClearColor(bb, color); err != nil {
		t.Fatal(err)
	}
	if err := cb.ResourceBarrier(rhi.BarrierDesc{Texture: bb, OldLayout: bb.CurrentLayout(), NewLayout: rhi.LayoutPresentSrc}); err != nil {
		t.Fatal(err)
	}
	if err := d.SubmitCommandBuffer(cb, info); err != nil {
		t.Fatal(err)
	}
}

func TestSwapChainPresentsToSurface(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	surface := softgpu.NewSurface(rhi.FormatBGRA8Unorm, 8, 8, 1)
	sc := newSurfaceSwapChain(t, d, surface)
	if have := sc.BufferCount(); have != 3 {
		t.Fatalf("BufferCount:\nhave %d\nwant 3", have)
	}
	if sc.Format() != rhi.FormatBGRA8Unorm || sc.Width() != 8 || sc.Height() != 8 {
		t.Fatalf("swapchain:\nhave %s %dx%d\nwant BGRA8Unorm 8x8", sc.Format(), sc.Width(), sc.Height())
	}
	cb := mustCommandBuffer(t, d, 0)
	defer cb.Destroy()

	for i, color := range [][4]float32{{1, 0, 0, 1}, {0, 0, 1, 1}} {
		index, ok := sc.AcquireNextImage(nil)
		if !ok {
			t.Fatal("AcquireNextImage: have false\nwant true")
		}
		if index != uint32(i) {
			t.Fatalf("back buffer index:\nhave %d\nwant %d", index, i)
		}
		drawFrame(t, d, cb, sc, color, rhi.SubmitInfo{})
		if !d.Present(sc, nil) {
			t.Fatal("Present: have false\nwant true")
		}
		d.WaitIdle()

		want := softgpu.EncodeColor(rhi.FormatBGRA8Unorm, color)
		if have := surface.Front().Texel(7, 7); !bytes.Equal(have, want) {
			t.Fatalf("front buffer after frame %d:\nhave %v\nwant %v", i, have, want)
		}
	}
	if have := d.FrameCount(); have != 2 {
		t.Fatalf("FrameCount:\nhave %d\nwant 2", have)
	}
	// Back buffers belong to the swap chain, not to the texture budget.
	if have := d.Stats().TextureMemory; have != 0 {
		t.Fatalf("TextureMemory:\nhave %d\nwant 0", have)
	}
}

func TestSwapChainWithSemaphores(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	surface := softgpu.NewSurface(rhi.FormatRGBA8Unorm, 4, 4, 1)
	sc := newSurfaceSwapChain(t, d, surface)
	acquired, _ := d.CreateSemaphore()
	defer acquired.Destroy()
	rendered, _ := d.CreateSemaphore()
	defer rendered.Destroy()
	cb := mustCommandBuffer(t, d, 0)
	defer cb.Destroy()

	for frame := 0; frame < 4; frame++ {
		if _, ok := sc.AcquireNextImage(acquired); !ok {
			t.Fatalf("frame %d: AcquireNextImage failed", frame)
		}
		drawFrame(t, d, cb, sc, [4]float32{0, 1, 0, 1}, rhi.SubmitInfo{
			WaitSemaphores:   []rhi.Semaphore{acquired},
			SignalSemaphores: []rhi.Semaphore{rendered},
		})
		if !d.Present(sc, rendered) {
			t.Fatalf("frame %d: Present failed", frame)
		}
	}
	d.WaitIdle()
	if have := surface.Presented(); have != 4 {
		t.Fatalf("Presented:\nhave %d\nwant 4", have)
	}
}

func TestSwapChainOutOfDateAndResize(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{FramesInFlight: 2})
	surface := softgpu.NewSurface(rhi.FormatBGRA8Unorm, 8, 8, 1)
	sc := newSurfaceSwapChain(t, d, surface)
	old := sc.BackBuffer(0)

	surface.Invalidate()
	if _, ok := sc.AcquireNextImage(nil); ok {
		t.Fatal("AcquireNextImage on an invalidated surface: have true\nwant false")
	}
	if err := sc.Resize(16, 4); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if old.IsValid() {
		t.Fatal("back buffer from before Resize: IsValid have true\nwant false")
	}
	if sc.Width() != 16 || sc.Height() != 4 {
		t.Fatalf("size after Resize:\nhave %dx%d\nwant 16x4", sc.Width(), sc.Height())
	}
	bb := sc.BackBuffer(0)
	if bb.Width() != 16 || bb.CurrentLayout() != rhi.LayoutUndefined {
		t.Fatalf("new back buffer:\nhave width %d layout %s\nwant width 16 layout Undefined", bb.Width(), bb.CurrentLayout())
	}
	if sc.BackBuffer(sc.BufferCount()) != nil {
		t.Fatal("BackBuffer past the end: have a texture\nwant nil")
	}

	cb := mustCommandBuffer(t, d, 0)
	defer cb.Destroy()
	if _, ok := sc.AcquireNextImage(nil); !ok {
		t.Fatal("AcquireNextImage after Resize: have false\nwant true")
	}
	drawFrame(t, d, cb, sc, [4]float32{1, 1, 1, 1}, rhi.SubmitInfo{})
	sc.RequestResize(32, 32)
	if d.Present(sc, nil) {
		t.Fatal("Present after RequestResize: have true\nwant false")
	}
	if err := sc.Resize(32, 32); err != nil {
		t.Fatal(err)
	}
	sc.AcquireNextImage(nil)
	drawFrame(t, d, cb, sc, [4]float32{1, 1, 1, 1}, rhi.SubmitInfo{})
	if !d.Present(sc, nil) {
		t.Fatal("Present after Resize: have false\nwant true")
	}
	if err := sc.Resize(0, 32); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("Resize(0, 32):\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}
}

func TestSwapChainRejectsForeignWindow(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	if _, err := d.CreateSwapChain(rhi.SwapchainDesc{Window: "window", Width: 4, Height: 4}); !errors.Is(err, rhi.ErrNoSurface) {
		t.Fatalf("CreateSwapChain(string window):\nhave %v\nwant %v", err, rhi.ErrNoSurface)
	}
	for _, n := range []uint32{1, maxSwapChainBuffers + 1} {
		if _, err := d.CreateSwapChain(rhi.SwapchainDesc{Width: 4, Height: 4, BufferCount: n}); !errors.Is(err, rhi.ErrInvalidArgument) {
			t.Fatalf("CreateSwapChain(%d buffers):\nhave %v\nwant %v", n, err, rhi.ErrInvalidArgument)
		}
	}
	sc, err := d.CreateSwapChain(rhi.SwapchainDesc{Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("CreateSwapChain(nil window): %v", err)
	}
	defer sc.Destroy()
	if have := sc.Format(); have != rhi.FormatBGRA8Unorm {
		t.Fatalf("default format:\nhave %s\nwant BGRA8Unorm", have)
	}
}

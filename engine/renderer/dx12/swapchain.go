package dx12

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// maxSwapChainBuffers is DXGI_MAX_SWAP_CHAIN_BUFFERS.
const maxSwapChainBuffers = 16

// SwapChain is a flip model DXGI swap chain. Its back buffers are textures
// over the swap chain buffers; Resize destroys all of them before
// ResizeBuffers and wraps the new ones.
type SwapChain struct {
	dev   *Device
	desc  rhi.SwapchainDesc
	id    uuid.UUID
	valid atomic.Bool

	mu      sync.Mutex
	handle  handle
	images  []*Texture
	format  rhi.Format
	width   uint32
	height  uint32
	current uint32

	resizeRequested atomic.Bool
}

func (d *Device) CreateSwapChain(desc rhi.SwapchainDesc) (rhi.SwapChain, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, d.fail(fmt.Errorf("%w: swapchain of %dx%d", rhi.ErrInvalidArgument, desc.Width, desc.Height))
	}
	if desc.BufferCount == 0 {
		desc.BufferCount = d.cfg.FramesInFlight + 1
	}
	if desc.BufferCount < 2 || desc.BufferCount > maxSwapChainBuffers {
		return nil, d.fail(fmt.Errorf("%w: flip model swap chains take 2 to %d buffers, got %d", rhi.ErrInvalidArgument, maxSwapChainBuffers, desc.BufferCount))
	}
	out, err := d.drv.createSwapChain(swapchainInfo{
		window: desc.Window,
		width:  desc.Width,
		height: desc.Height,
		count:  desc.BufferCount,
		format: desc.Format,
		vsync:  desc.VSync,
	})
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create swapchain: %w", err))
	}
	sc := &SwapChain{dev: d, desc: desc, handle: out.swapchain}
	if err := sc.wrap(out); err != nil {
		d.drv.destroySwapChain(out.swapchain)
		return nil, err
	}
	sc.valid.Store(true)
	sc.id = d.registry.Add("SwapChain", "", sc)
	return sc, nil
}

// wrap creates the back buffer textures of out. The caller holds mu or owns
// sc exclusively.
func (sc *SwapChain) wrap(out swapchainBuffers) error {
	d := sc.dev
	images := make([]*Texture, 0, len(out.buffers))
	for i, buf := range out.buffers {
		t, err := d.wrapResource(rhi.TextureDesc{
			Name:        fmt.Sprintf("backbuffer-%d", i),
			Type:        rhi.Texture2D,
			Format:      out.format,
			Width:       out.width,
			Height:      out.height,
			Depth:       1,
			MipLevels:   1,
			ArrayLayers: 1,
			Usage:       rhi.TextureUsageColorAttachment | rhi.TextureUsageTransferSrc | rhi.TextureUsageTransferDst,
		}, buf, false)
		if err != nil {
			for _, t := range images {
				t.Destroy()
			}
			for _, rest := range out.buffers[i:] {
				d.drv.destroyResource(rest)
			}
			return err
		}
		images = append(images, t)
	}
	sc.images = images
	sc.format, sc.width, sc.height = out.format, out.width, out.height
	sc.current = 0
	d.log.Debug("swapchain buffers wrapped", "width", out.width, "height", out.height, "buffers", len(images), "format", out.format)
	return nil
}

func (sc *SwapChain) IsValid() bool { return sc != nil && sc.valid.Load() }

func (sc *SwapChain) Destroy() {
	if sc == nil || !sc.valid.CompareAndSwap(true, false) {
		return
	}
	d := sc.dev
	d.registry.Remove(sc.id)
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for _, t := range sc.images {
		t.Destroy()
	}
	h := sc.handle
	sc.images, sc.handle = nil, 0
	d.release(func() { d.drv.destroySwapChain(h) })
}

// AcquireNextImage reads the current back buffer index. Flip model swap
// chains hand out buffers in order, so nothing blocks; the semaphore is
// signaled on the queue right away.
func (sc *SwapChain) AcquireNextImage(signal rhi.Semaphore) (uint32, bool) {
	var sem *Semaphore
	if signal != nil {
		s, err := cast[*Semaphore](signal, "semaphore")
		if err != nil {
			sc.dev.fail(err)
			return 0, false
		}
		sem = s
	}
	sc.mu.Lock()
	index, err := sc.dev.drv.currentBackBufferIndex(sc.handle)
	if err == nil {
		sc.current = index
	}
	sc.mu.Unlock()
	if errors.Is(err, rhi.ErrOutOfDate) {
		return 0, false
	}
	if err != nil {
		sc.dev.log.Error("failed to acquire swapchain buffer", "err", err)
		return 0, false
	}
	if sem != nil {
		d := sc.dev
		d.queueMu.Lock()
		err := sem.signal()
		d.queueMu.Unlock()
		if err != nil {
			d.log.Error("failed to signal semaphore", "err", err)
			return 0, false
		}
	}
	return index, true
}

// Present waits for the semaphore on the CPU; DXGI presents from the queue
// the swap chain was created on and offers no GPU wait.
func (sc *SwapChain) Present(wait rhi.Semaphore) bool {
	if wait != nil {
		s, err := cast[*Semaphore](wait, "semaphore")
		if err != nil {
			sc.dev.fail(err)
			return false
		}
		if !s.waitCPU() {
			sc.dev.log.Error("present wait failed")
			return false
		}
	}
	sc.mu.Lock()
	err := sc.dev.drv.present(sc.handle, sc.desc.VSync)
	sc.mu.Unlock()
	switch {
	case err == nil:
		return !sc.resizeRequested.Load()
	case errors.Is(err, rhi.ErrOutOfDate):
		return false
	}
	sc.dev.log.Error("failed to present swapchain buffer", "err", err)
	return false
}

func (sc *SwapChain) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return sc.dev.fail(fmt.Errorf("%w: swapchain of %dx%d", rhi.ErrInvalidArgument, width, height))
	}
	d := sc.dev
	d.WaitIdle()
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for _, t := range sc.images {
		t.Destroy()
	}
	sc.images = nil
	// ResizeBuffers fails while any buffer reference is alive.
	d.WaitIdle()
	out, err := d.drv.resizeSwapChain(sc.handle, width, height, sc.desc.BufferCount)
	if err != nil {
		return d.fail(fmt.Errorf("failed to resize swapchain: %w", err))
	}
	if err := sc.wrap(out); err != nil {
		return err
	}
	sc.resizeRequested.Store(false)
	return nil
}

func (sc *SwapChain) RequestResize(width, height uint32) {
	sc.resizeRequested.Store(true)
}

func (sc *SwapChain) BufferCount() uint32 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return uint32(len(sc.images))
}

func (sc *SwapChain) CurrentImageIndex() uint32 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.current
}

func (sc *SwapChain) BackBuffer(i uint32) rhi.Texture {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if int(i) >= len(sc.images) {
		return nil
	}
	return sc.images[i]
}

func (sc *SwapChain) Width() uint32 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.width
}

func (sc *SwapChain) Height() uint32 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.height
}

func (sc *SwapChain) Format() rhi.Format { return sc.format }

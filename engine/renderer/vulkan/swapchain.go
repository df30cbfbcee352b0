package vulkan

import (
	"fmt"
	"sync"
	"sync/atomic"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// SwapChain owns the presentable images of one window. Its back buffers are
// textures without their own memory; Resize replaces all of them.
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
	if desc.BufferCount < 2 {
		return nil, d.fail(fmt.Errorf("%w: swapchains need at least two buffers", rhi.ErrInvalidArgument))
	}
	sc := &SwapChain{dev: d, desc: desc}
	if err := sc.build(desc.Width, desc.Height); err != nil {
		return nil, err
	}
	sc.valid.Store(true)
	sc.id = d.registry.Add("SwapChain", "", sc)
	return sc, nil
}

// build creates the native swapchain, replacing the current one. The caller
// holds mu or owns sc exclusively.
func (sc *SwapChain) build(width, height uint32) error {
	d := sc.dev
	out, err := d.drv.createSwapchain(swapchainInfo{
		window: sc.desc.Window,
		width:  width,
		height: height,
		count:  sc.desc.BufferCount,
		format: sc.desc.Format,
		vsync:  sc.desc.VSync,
		old:    sc.handle,
	})
	if err != nil {
		return d.fail(fmt.Errorf("failed to create swapchain: %w", err))
	}
	images := make([]*Texture, 0, len(out.images))
	for i, img := range out.images {
		t, err := d.wrapImage(rhi.TextureDesc{
			Name:        fmt.Sprintf("backbuffer-%d", i),
			Type:        rhi.Texture2D,
			Format:      out.format,
			Width:       out.width,
			Height:      out.height,
			Depth:       1,
			MipLevels:   1,
			ArrayLayers: 1,
			Usage:       rhi.TextureUsageColorAttachment | rhi.TextureUsageTransferSrc | rhi.TextureUsageTransferDst,
		}, img, false)
		if err != nil {
			for _, t := range images {
				t.Destroy()
			}
			d.drv.destroySwapchain(out.swapchain)
			return err
		}
		images = append(images, t)
	}
	old, oldImages := sc.handle, sc.images
	sc.handle, sc.images = out.swapchain, images
	sc.format, sc.width, sc.height = out.format, out.width, out.height
	sc.current = 0
	for _, t := range oldImages {
		t.Destroy()
	}
	if old != 0 {
		d.release(func() { d.drv.destroySwapchain(old) })
	}
	d.log.Debug("swapchain built", "width", out.width, "height", out.height, "images", len(images), "format", out.format)
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
	d.release(func() { d.drv.destroySwapchain(h) })
}

func (sc *SwapChain) AcquireNextImage(signal rhi.Semaphore) (uint32, bool) {
	var sem handle
	if signal != nil {
		s, err := cast[*Semaphore](signal, "semaphore")
		if err != nil {
			sc.dev.fail(err)
			return 0, false
		}
		sem = s.handle
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	index, res := sc.dev.drv.acquireNextImage(sc.handle, vk.MaxUint64, sem)
	switch res {
	case vk.Success, vk.Suboptimal:
		sc.current = index
		return index, true
	case vk.ErrorOutOfDate:
		return 0, false
	}
	sc.dev.log.Error("failed to acquire swapchain image", "result", VulkanResultString(res, true))
	return 0, false
}

func (sc *SwapChain) Present(wait rhi.Semaphore) bool {
	var sem handle
	if wait != nil {
		s, err := cast[*Semaphore](wait, "semaphore")
		if err != nil {
			sc.dev.fail(err)
			return false
		}
		sem = s.handle
	}
	sc.mu.Lock()
	res := sc.dev.drv.queuePresent(sc.handle, sc.current, sem)
	sc.mu.Unlock()
	switch res {
	case vk.Success:
		return !sc.resizeRequested.Load()
	case vk.Suboptimal, vk.ErrorOutOfDate:
		return false
	}
	sc.dev.log.Error("failed to present swapchain image", "result", VulkanResultString(res, true))
	return false
}

func (sc *SwapChain) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return sc.dev.fail(fmt.Errorf("%w: swapchain of %dx%d", rhi.ErrInvalidArgument, width, height))
	}
	sc.dev.WaitIdle()
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if err := sc.build(width, height); err != nil {
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

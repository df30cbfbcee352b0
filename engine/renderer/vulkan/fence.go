package vulkan

import (
	"fmt"
	"sync/atomic"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// Fence wraps a VkFence. Its value is the submission value of the last
// submission asked to signal it.
type Fence struct {
	dev    *Device
	id     uuid.UUID
	handle handle
	value  atomic.Uint64
	valid  atomic.Bool
}

func (d *Device) CreateFence(desc rhi.FenceDesc) (rhi.Fence, error) {
	h, err := d.drv.createFence(desc.Signaled)
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create fence: %w", err))
	}
	f := &Fence{dev: d, handle: h}
	f.valid.Store(true)
	f.id = d.registry.Add("Fence", "", f)
	return f, nil
}

func (f *Fence) IsValid() bool { return f != nil && f.valid.Load() }

func (f *Fence) Destroy() {
	if f == nil || !f.valid.CompareAndSwap(true, false) {
		return
	}
	d, h := f.dev, f.handle
	d.registry.Remove(f.id)
	d.release(func() { d.drv.destroyFence(h) })
}

func (f *Fence) Wait(timeoutNs uint64) bool {
	if !f.IsValid() {
		return false
	}
	switch res := f.dev.drv.waitFence(f.handle, timeoutNs); res {
	case vk.Success:
		return true
	case vk.Timeout:
		return false
	case vk.ErrorDeviceLost:
		f.dev.log.Error("fence wait - VK_ERROR_DEVICE_LOST.")
	case vk.ErrorOutOfHostMemory:
		f.dev.log.Error("fence wait - VK_ERROR_OUT_OF_HOST_MEMORY.")
	case vk.ErrorOutOfDeviceMemory:
		f.dev.log.Error("fence wait - VK_ERROR_OUT_OF_DEVICE_MEMORY.")
	default:
		f.dev.log.Error("fence wait - An unknown error has occurred.", "result", VulkanResultString(res, true))
	}
	return false
}

func (f *Fence) IsSignaled() bool {
	return f.IsValid() && f.dev.drv.fenceStatus(f.handle) == vk.Success
}

func (f *Fence) Reset() {
	if !f.IsValid() {
		return
	}
	if err := f.dev.drv.resetFence(f.handle); err != nil {
		f.dev.log.Error("failed to reset fence", "err", err)
	}
}

func (f *Fence) Value() uint64 { return f.value.Load() }

type Semaphore struct {
	dev    *Device
	id     uuid.UUID
	handle handle
	valid  atomic.Bool
}

func (d *Device) CreateSemaphore() (rhi.Semaphore, error) {
	h, err := d.drv.createSemaphore()
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create semaphore: %w", err))
	}
	s := &Semaphore{dev: d, handle: h}
	s.valid.Store(true)
	s.id = d.registry.Add("Semaphore", "", s)
	return s, nil
}

func (s *Semaphore) IsValid() bool { return s != nil && s.valid.Load() }

func (s *Semaphore) Destroy() {
	if s == nil || !s.valid.CompareAndSwap(true, false) {
		return
	}
	d, h := s.dev, s.handle
	d.registry.Remove(s.id)
	d.release(func() { d.drv.destroySemaphore(h) })
}

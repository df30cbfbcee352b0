package dx12

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// Fence is an ID3D12Fence used as a binary fence: it is signaled once the
// completed value reached target. Submissions signal it with their
// submission value and Reset moves target past the completed value.
type Fence struct {
	dev    *Device
	id     uuid.UUID
	handle handle
	target atomic.Uint64
	value  atomic.Uint64
	valid  atomic.Bool
}

func (d *Device) CreateFence(desc rhi.FenceDesc) (rhi.Fence, error) {
	h, err := d.drv.createFence(0)
	if err != nil {
		return nil, d.fail(fmt.Errorf("failed to create fence: %w", err))
	}
	f := &Fence{dev: d, handle: h}
	if !desc.Signaled {
		f.target.Store(1)
	}
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

// signalled records that the queue signals value next.
func (f *Fence) signalled(value uint64) {
	f.value.Store(value)
	f.target.Store(value)
}

func (f *Fence) Wait(timeoutNs uint64) bool {
	if !f.IsValid() {
		return false
	}
	target := f.target.Load()
	if f.dev.drv.completedValue(f.handle) >= target {
		return true
	}
	return f.dev.drv.waitForValue(f.handle, target, timeoutNs)
}

func (f *Fence) IsSignaled() bool {
	return f.IsValid() && f.dev.drv.completedValue(f.handle) >= f.target.Load()
}

// Reset is a no-op while the fence waits for a submission.
func (f *Fence) Reset() {
	if !f.IsValid() {
		return
	}
	completed := f.dev.drv.completedValue(f.handle)
	if completed >= f.target.Load() {
		f.target.Store(completed + 1)
	}
}

func (f *Fence) Value() uint64 { return f.value.Load() }

// Semaphore orders GPU work on the one queue through a fence and a counter:
// signaling bumps the counter and signals its value, waiting waits for the
// current one.
type Semaphore struct {
	dev    *Device
	id     uuid.UUID
	handle handle
	value  atomic.Uint64
	valid  atomic.Bool
}

func (d *Device) CreateSemaphore() (rhi.Semaphore, error) {
	h, err := d.drv.createFence(0)
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
	d.release(func() { d.drv.destroyFence(h) })
}

// signal makes the queue signal the next value. The caller holds queueMu.
func (s *Semaphore) signal() error {
	return s.dev.drv.queueSignal(s.handle, s.value.Add(1))
}

// waitCPU blocks until the last signal completed.
func (s *Semaphore) waitCPU() bool {
	v := s.value.Load()
	if v == 0 {
		return true
	}
	return s.dev.drv.waitForValue(s.handle, v, rhi.InfiniteTimeout)
}

package softgpu

import (
	"sync"
	"time"
)

// Fence is a timeline: a monotonically increasing completed value that the
// queue or the CPU signals and either side can wait on.
type Fence struct {
	mu    sync.Mutex
	cond  *sync.Cond
	value uint64
}

func NewFence(initial uint64) *Fence {
	f := &Fence{value: initial}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *Fence) Completed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Signal raises the completed value. Lower values are ignored.
func (f *Fence) Signal(value uint64) {
	f.mu.Lock()
	if value > f.value {
		f.value = value
	}
	f.mu.Unlock()
	f.cond.Broadcast()
}

// Wait blocks until the completed value reaches value. A negative timeout
// waits forever. It returns false if the timeout expired first.
func (f *Fence) Wait(value uint64, timeout time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.value >= value {
		return true
	}
	if timeout == 0 {
		return false
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
		t := time.AfterFunc(timeout, func() {
			f.mu.Lock()
			f.cond.Broadcast()
			f.mu.Unlock()
		})
		defer t.Stop()
	}
	for f.value < value {
		if timeout > 0 && !time.Now().Before(deadline) {
			return false
		}
		f.cond.Wait()
	}
	return true
}

// NanosToTimeout converts a Vulkan style timeout where the maximum value means
// infinite.
func NanosToTimeout(ns uint64) time.Duration {
	if ns >= uint64(1<<63-1) {
		return -1
	}
	return time.Duration(ns)
}

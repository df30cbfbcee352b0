package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rhi/engine/core"
)

type inflight struct {
	value uint64
	fence handle
}

// submissionTracker gives every queue submission a monotonically increasing
// value backed by an internal fence. A value is completed once its fence and
// the fences of all earlier submissions signaled.
type submissionTracker struct {
	mu        sync.Mutex
	drv       driver
	submitted uint64
	completed uint64
	inflight  []inflight
	free      []handle
}

func newSubmissionTracker(drv driver) *submissionTracker {
	return &submissionTracker{drv: drv}
}

// fence returns an unsignaled fence for the next submission.
func (t *submissionTracker) fence() (handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.free); n > 0 {
		f := t.free[n-1]
		t.free = t.free[:n-1]
		return f, nil
	}
	return t.drv.createFence(false)
}

// commit records a successful submission signaling f and returns its value.
func (t *submissionTracker) commit(f handle) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.submitted++
	t.inflight = append(t.inflight, inflight{value: t.submitted, fence: f})
	return t.submitted
}

// release gives back a fence whose submission failed.
func (t *submissionTracker) release(f handle) {
	t.mu.Lock()
	t.free = append(t.free, f)
	t.mu.Unlock()
}

// poll retires the signaled submissions in order without blocking and
// returns the completed value.
func (t *submissionTracker) poll() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.inflight) > 0 {
		next := t.inflight[0]
		if t.drv.fenceStatus(next.fence) != vk.Success {
			break
		}
		if err := t.drv.resetFence(next.fence); err != nil {
			core.LogWarn("failed to reset submission fence: %s", err)
			t.drv.destroyFence(next.fence)
		} else {
			t.free = append(t.free, next.fence)
		}
		t.completed = next.value
		t.inflight = t.inflight[1:]
	}
	return t.completed
}

// wait blocks until value completed.
func (t *submissionTracker) wait(value uint64) bool {
	for {
		t.mu.Lock()
		if t.completed >= value || len(t.inflight) == 0 {
			t.mu.Unlock()
			return t.completed >= value
		}
		next := t.inflight[0].fence
		t.mu.Unlock()

		switch res := t.drv.waitFence(next, vk.MaxUint64); res {
		case vk.Success:
		case vk.ErrorDeviceLost:
			core.LogError("submission wait - VK_ERROR_DEVICE_LOST.")
			return false
		default:
			core.LogError("submission wait failed: %s", VulkanResultString(res, false))
			return false
		}
		t.poll()
	}
}

func (t *submissionTracker) lastSubmitted() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.submitted
}

func (t *submissionTracker) lastCompleted() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// destroy releases every fence. The queue must be idle.
func (t *submissionTracker) destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range t.inflight {
		t.drv.destroyFence(f.fence)
	}
	for _, f := range t.free {
		t.drv.destroyFence(f)
	}
	t.inflight, t.free = nil, nil
}

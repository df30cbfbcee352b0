package dx12

import (
	"sync"

	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// submissionTracker numbers queue submissions with the values of one
// ID3D12Fence: submission n signals the fence with n, so the completed value
// of the fence is the completed submission.
type submissionTracker struct {
	mu        sync.Mutex
	drv       driver
	fence     handle
	submitted uint64
	completed uint64
}

func newSubmissionTracker(drv driver) (*submissionTracker, error) {
	f, err := drv.createFence(0)
	if err != nil {
		return nil, err
	}
	return &submissionTracker{drv: drv, fence: f}, nil
}

// next is the value the coming submission signals. The caller serializes
// submissions.
func (t *submissionTracker) next() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.submitted + 1
}

// signal makes the queue signal value and records the submission.
func (t *submissionTracker) signal(value uint64) error {
	if err := t.drv.queueSignal(t.fence, value); err != nil {
		return err
	}
	t.mu.Lock()
	t.submitted = value
	t.mu.Unlock()
	return nil
}

// poll reads the completed value without blocking.
func (t *submissionTracker) poll() uint64 {
	v := t.drv.completedValue(t.fence)
	t.mu.Lock()
	defer t.mu.Unlock()
	if v > t.submitted {
		// A removed device reports UINT64_MAX.
		v = t.submitted
	}
	if v > t.completed {
		t.completed = v
	}
	return t.completed
}

// wait blocks until value completed.
func (t *submissionTracker) wait(value uint64) bool {
	if value > t.lastSubmitted() {
		return false
	}
	if !t.drv.waitForValue(t.fence, value, rhi.InfiniteTimeout) {
		core.LogError("submission wait for %d failed", value)
		return false
	}
	return t.poll() >= value
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

func (t *submissionTracker) destroy() {
	t.drv.destroyFence(t.fence)
}

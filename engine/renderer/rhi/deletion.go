package rhi

import (
	"sync"

	"github.com/spaghettifunk/rhi/engine/containers"
)

type deletion struct {
	value   uint64
	release func()
}

// DeletionQueue defers the release of native objects until the submission
// that last used them completed. Values must be pushed in non-decreasing
// order, which holds when they are read from a monotonic submission counter.
type DeletionQueue struct {
	mu sync.Mutex
	q  *containers.RingQueue[deletion]
}

func NewDeletionQueue() *DeletionQueue {
	return &DeletionQueue{q: containers.NewGrowableRingQueue[deletion](64)}
}

// Push schedules release once value completed.
func (d *DeletionQueue) Push(value uint64, release func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// Growable queues never report full.
	_ = d.q.Enqueue(deletion{value: value, release: release})
}

// Collect runs, in push order, every release whose value is at most
// completed and returns how many ran.
func (d *DeletionQueue) Collect(completed uint64) int {
	var ready []func()
	d.mu.Lock()
	for !d.q.IsEmpty() {
		next, _ := d.q.Peek()
		if next.value > completed {
			break
		}
		d.q.Dequeue()
		ready = append(ready, next.release)
	}
	d.mu.Unlock()
	// Releases run unlocked: they may push again.
	for _, release := range ready {
		release()
	}
	return len(ready)
}

func (d *DeletionQueue) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.q.Len()
}

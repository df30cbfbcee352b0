package softgpu

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrListClosed    = errors.New("softgpu: command list is closed")
	ErrListNotClosed = errors.New("softgpu: command list is still open")
	ErrQueueClosed   = errors.New("softgpu: queue is closed")
)

// Command classes counted by Stats.
const (
	OpOther = iota
	OpBarrier
	OpDraw
	OpCopy
	OpClear
)

// Stats count executed commands.
type Stats struct {
	Barriers  atomic.Uint64
	Draws     atomic.Uint64
	Copies    atomic.Uint64
	Clears    atomic.Uint64
	Submits   atomic.Uint64
	Presents  atomic.Uint64
	Executed  atomic.Uint64
	GPUWaits  atomic.Uint64
	FenceSigs atomic.Uint64
}

func (s *Stats) count(op int) {
	switch op {
	case OpBarrier:
		s.Barriers.Add(1)
	case OpDraw:
		s.Draws.Add(1)
	case OpCopy:
		s.Copies.Add(1)
	case OpClear:
		s.Clears.Add(1)
	}
	s.Executed.Add(1)
}

type command struct {
	op int
	fn func()
}

// CommandList records commands for later execution on a Queue.
type CommandList struct {
	cmds   []command
	closed bool
}

func NewCommandList() *CommandList {
	return &CommandList{}
}

// Record appends a command. fn runs on the queue goroutine.
func (l *CommandList) Record(op int, fn func()) error {
	if l.closed {
		return ErrListClosed
	}
	l.cmds = append(l.cmds, command{op: op, fn: fn})
	return nil
}

func (l *CommandList) Close() error {
	if l.closed {
		return ErrListClosed
	}
	l.closed = true
	return nil
}

// Reset empties the list and reopens it.
func (l *CommandList) Reset() {
	l.cmds = nil
	l.closed = false
}

func (l *CommandList) Len() int     { return len(l.cmds) }
func (l *CommandList) Closed() bool { return l.closed }

// Queue executes submitted work in order on its own goroutine.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []command
	busy    bool
	paused  bool
	closed  bool

	Stats Stats
}

func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *Queue) run() {
	for {
		q.mu.Lock()
		for !q.closed && (len(q.pending) == 0 || q.paused) {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		cmd := q.pending[0]
		q.pending[0] = command{}
		q.pending = q.pending[1:]
		q.busy = true
		q.mu.Unlock()

		cmd.fn()
		q.Stats.count(cmd.op)

		q.mu.Lock()
		q.busy = false
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (q *Queue) push(cmds ...command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.pending = append(q.pending, cmds...)
	q.cond.Broadcast()
	return nil
}

// Submit schedules a closed command list. The list can be reset right away.
func (q *Queue) Submit(lists ...*CommandList) error {
	var cmds []command
	for _, l := range lists {
		if !l.closed {
			return ErrListNotClosed
		}
		cmds = append(cmds, l.cmds...)
	}
	q.Stats.Submits.Add(1)
	return q.push(cmds...)
}

// Signal makes the queue signal f with value once prior work completed.
func (q *Queue) Signal(f *Fence, value uint64) error {
	return q.push(command{fn: func() {
		q.Stats.FenceSigs.Add(1)
		f.Signal(value)
	}})
}

// Wait makes the queue stall until f reaches value.
func (q *Queue) Wait(f *Fence, value uint64) error {
	return q.push(command{fn: func() {
		q.Stats.GPUWaits.Add(1)
		f.Wait(value, -1)
	}})
}

// Do schedules fn after prior work.
func (q *Queue) Do(fn func()) error {
	return q.push(command{fn: fn})
}

// Pause stops execution after the current command. Work can still be
// submitted.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.cond.Broadcast()
	q.mu.Unlock()
}

// WaitIdle blocks until every submitted command has executed. A paused queue
// is only idle once resumed and drained.
func (q *Queue) WaitIdle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.closed && (len(q.pending) > 0 || q.busy) {
		q.cond.Wait()
	}
}

// Idle reports whether nothing is pending or running.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0 && !q.busy
}

func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

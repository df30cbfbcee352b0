package rhi

import (
	"errors"
	"math"
)

// InvalidDescriptorIndex is returned by descriptor heaps that ran out of slots.
const InvalidDescriptorIndex uint32 = math.MaxUint32

// InfiniteTimeout makes Fence.Wait block until the fence signals.
const InfiniteTimeout uint64 = math.MaxUint64

var (
	ErrUnknownBackend   = errors.New("rhi: unknown backend")
	ErrNotRecording     = errors.New("rhi: command buffer is not recording")
	ErrAlreadyRecording = errors.New("rhi: command buffer is already recording")
	ErrNotExecutable    = errors.New("rhi: command buffer is not executable")
	ErrNoRenderPass     = errors.New("rhi: no active render pass")
	ErrRenderPassActive = errors.New("rhi: render pass already active")
	ErrNoPipeline       = errors.New("rhi: no pipeline bound")
	ErrInvalidUsage     = errors.New("rhi: resource usage does not allow the operation")
	ErrInvalidArgument  = errors.New("rhi: invalid argument")
	ErrWrongBackend     = errors.New("rhi: object belongs to another backend")
	ErrHeapExhausted    = errors.New("rhi: descriptor heap exhausted")
	ErrNotMappable      = errors.New("rhi: buffer is not host visible")
	ErrOutOfRange       = errors.New("rhi: range exceeds resource bounds")
	ErrDestroyed        = errors.New("rhi: object was destroyed")
	ErrDeviceLost       = errors.New("rhi: device lost")
	ErrOutOfDate        = errors.New("rhi: swapchain out of date")
	ErrNoSurface        = errors.New("rhi: window does not provide a surface")
)

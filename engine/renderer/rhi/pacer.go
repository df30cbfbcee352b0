package rhi

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/rhi/engine/core"
)

type frameSlot struct {
	fence          Fence
	imageAvailable Semaphore
	renderFinished Semaphore
	cmd            CommandBuffer
}

// Frame is the state handed to the renderer between BeginFrame and EndFrame.
type Frame struct {
	// Slot is the frame-in-flight index.
	Slot       uint32
	ImageIndex uint32
	BackBuffer Texture
	Cmd        CommandBuffer
}

// FramePacer drives a swapchain with a bounded number of frames in flight.
// Each slot owns a fence, two semaphores and a command buffer; the slot fence
// is waited on before its command buffer is recorded again.
type FramePacer struct {
	device    Device
	swapchain SwapChain
	slots     []frameSlot
	current   uint32
	frame     *Frame
	// imagesInFlight is the fence of the last frame that rendered into each
	// swapchain image.
	imagesInFlight []Fence

	resizePending bool
	width         uint32
	height        uint32
	recreations   int
}

func NewFramePacer(device Device, swapchain SwapChain) (*FramePacer, error) {
	n := device.FramesInFlight()
	p := &FramePacer{
		device:         device,
		swapchain:      swapchain,
		slots:          make([]frameSlot, n),
		imagesInFlight: make([]Fence, swapchain.BufferCount()),
		width:          swapchain.Width(),
		height:         swapchain.Height(),
	}
	for i := range p.slots {
		if err := p.createSlot(&p.slots[i], i); err != nil {
			p.Destroy()
			return nil, err
		}
	}
	return p, nil
}

func (p *FramePacer) createSlot(s *frameSlot, i int) error {
	var err error
	// Signaled so the first wait of every slot passes.
	if s.fence, err = p.device.CreateFence(FenceDesc{Signaled: true}); err != nil {
		return err
	}
	if s.imageAvailable, err = p.device.CreateSemaphore(); err != nil {
		return err
	}
	if s.renderFinished, err = p.device.CreateSemaphore(); err != nil {
		return err
	}
	if s.cmd == nil {
		if s.cmd, err = p.device.CreateCommandBuffer(CommandBufferDesc{Name: fmt.Sprintf("frame-%d", i)}); err != nil {
			return err
		}
	}
	return nil
}

// BeginFrame waits for the current slot, acquires a back buffer and starts
// recording. It returns nil when the swapchain had to be recreated; the
// caller skips the frame.
func (p *FramePacer) BeginFrame() (*Frame, error) {
	if p.frame != nil {
		return nil, fmt.Errorf("%w: frame already begun", ErrInvalidArgument)
	}
	if p.resizePending {
		return nil, p.recreate()
	}
	s := &p.slots[p.current]
	if !s.fence.Wait(InfiniteTimeout) {
		return nil, fmt.Errorf("%w: frame fence wait failed", ErrDeviceLost)
	}
	index, ok := p.swapchain.AcquireNextImage(s.imageAvailable)
	if !ok {
		return nil, p.recreate()
	}
	f := &Frame{
		Slot:       p.current,
		ImageIndex: index,
		BackBuffer: p.swapchain.BackBuffer(index),
		Cmd:        s.cmd,
	}
	// With as many frames in flight as images, an earlier slot may still be
	// rendering into this image.
	if int(index) < len(p.imagesInFlight) {
		if prev := p.imagesInFlight[index]; prev != nil && prev != s.fence && !prev.Wait(InfiniteTimeout) {
			p.abandon(f)
			return nil, fmt.Errorf("%w: image %d fence wait failed", ErrDeviceLost, index)
		}
		p.imagesInFlight[index] = s.fence
	}
	if err := s.cmd.Reset(); err != nil {
		p.abandon(f)
		return nil, err
	}
	if err := s.cmd.Begin(); err != nil {
		p.abandon(f)
		return nil, err
	}
	p.frame = f
	return f, nil
}

// EndFrame transitions the back buffer for presentation, submits and presents.
// It returns false when presentation failed and the swapchain was recreated.
//
// The frame is submitted even when a pass closed or submitted the command
// buffer itself, so the slot fence and semaphores always complete; that
// misuse is still reported as ErrNotRecording.
func (p *FramePacer) EndFrame() (bool, error) {
	f := p.frame
	if f == nil {
		return false, fmt.Errorf("%w: no frame begun", ErrInvalidArgument)
	}
	p.frame = nil
	s := &p.slots[f.Slot]

	var misuse error
	if state := f.Cmd.State(); state != CommandBufferRecording {
		misuse = fmt.Errorf("%w: frame command buffer is %s at EndFrame", ErrNotRecording, state)
		core.LogError("%s", misuse)
	}
	if err := p.submit(f, s); err != nil {
		p.abandon(f)
		return false, errors.Join(misuse, err)
	}
	p.current = (p.current + 1) % uint32(len(p.slots))
	if !p.device.Present(p.swapchain, s.renderFinished) {
		return false, errors.Join(misuse, p.recreate())
	}
	return true, misuse
}

// submit ends the frame's recording with the back buffer in PresentSrc and
// submits it with the slot's synchronization.
func (p *FramePacer) submit(f *Frame, s *frameSlot) error {
	waits := []Semaphore{s.imageAvailable}
	if f.Cmd.State() == CommandBufferExecutable {
		if f.BackBuffer.CurrentLayout() == LayoutPresentSrc {
			return p.signal(f.Cmd, s, waits)
		}
		// Run what was recorded, then record the present transition.
		if err := p.device.SubmitCommandBuffer(f.Cmd, SubmitInfo{WaitSemaphores: waits}); err != nil {
			return err
		}
		waits = nil
	}
	if f.Cmd.State() != CommandBufferRecording {
		if err := f.Cmd.Begin(); err != nil {
			return err
		}
	}
	// A render pass left open would move the back buffer to its final layout
	// on End, after the present transition.
	if f.Cmd.IsRenderPassActive() {
		if err := f.Cmd.EndRenderPass(); err != nil {
			return err
		}
	}
	if err := f.Cmd.ResourceBarrier(BarrierDesc{
		Texture:   f.BackBuffer,
		OldLayout: f.BackBuffer.CurrentLayout(),
		NewLayout: LayoutPresentSrc,
	}); err != nil {
		return err
	}
	return p.signal(f.Cmd, s, waits)
}

func (p *FramePacer) signal(cmd CommandBuffer, s *frameSlot, waits []Semaphore) error {
	// Reset only right before the submission that signals it again.
	s.fence.Reset()
	return p.device.SubmitCommandBuffer(cmd, SubmitInfo{
		SignalFence:      s.fence,
		WaitSemaphores:   waits,
		SignalSemaphores: []Semaphore{s.renderFinished},
	})
}

// abandon recovers a slot whose frame could not be submitted. The slot gets
// fresh synchronization objects, since the old ones may wait on work that
// never runs, and the swapchain is recreated to release the acquired image.
func (p *FramePacer) abandon(f *Frame) {
	s := &p.slots[f.Slot]
	core.LogWarn("abandoning frame on slot %d, image %d", f.Slot, f.ImageIndex)
	p.device.WaitIdle()
	if s.cmd.State() == CommandBufferRecording {
		s.cmd.End()
	}
	s.cmd.Reset()
	for i, fence := range p.imagesInFlight {
		if fence == s.fence {
			p.imagesInFlight[i] = nil
		}
	}
	s.fence.Destroy()
	s.imageAvailable.Destroy()
	s.renderFinished.Destroy()
	s.fence, s.imageAvailable, s.renderFinished = nil, nil, nil
	if err := p.createSlot(s, int(f.Slot)); err != nil {
		core.LogError("failed to recreate frame slot %d: %s", f.Slot, err)
	}
	p.resizePending = true
}

// Resize schedules a swapchain recreation with the new size.
func (p *FramePacer) Resize(width, height uint32) {
	p.width, p.height = width, height
	p.resizePending = true
	p.swapchain.RequestResize(width, height)
}

func (p *FramePacer) recreate() error {
	if p.width == 0 || p.height == 0 {
		// Minimized. Try again on the next frame.
		return nil
	}
	p.device.WaitIdle()
	if err := p.swapchain.Resize(p.width, p.height); err != nil {
		return err
	}
	p.imagesInFlight = make([]Fence, p.swapchain.BufferCount())
	p.resizePending = false
	p.recreations++
	core.LogDebug("swapchain recreated at %dx%d", p.width, p.height)
	return nil
}

// Recreations counts how many times the swapchain was recreated.
func (p *FramePacer) Recreations() int {
	return p.recreations
}

func (p *FramePacer) Destroy() {
	p.device.WaitIdle()
	for i := range p.slots {
		s := &p.slots[i]
		if s.cmd != nil {
			s.cmd.Destroy()
		}
		if s.renderFinished != nil {
			s.renderFinished.Destroy()
		}
		if s.imageAvailable != nil {
			s.imageAvailable.Destroy()
		}
		if s.fence != nil {
			s.fence.Destroy()
		}
	}
	p.slots = nil
}

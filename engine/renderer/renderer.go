package renderer

import (
	"errors"
	"fmt"
	"image"

	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// RenderPass records into the frame after the back buffer was cleared.
type RenderPass func(frame *rhi.Frame) error

// RenderPacket is everything the renderer needs to draw one frame.
type RenderPacket struct {
	DeltaTime  float64
	ClearColor [4]float32
	Passes     []RenderPass
}

type Renderer struct {
	cfg       *core.Config
	device    rhi.Device
	swapchain rhi.SwapChain
	pacer     *rhi.FramePacer
	frame     *rhi.Frame

	// presented is the back buffer of the last frame that reached Present,
	// -1 before the first one.
	presented int
}

func New(cfg *core.Config) *Renderer {
	return &Renderer{cfg: cfg, presented: -1}
}

// Initialize opens the device of the configured backend and creates the
// swapchain for window. Headless renderers accept a nil window or a
// *softgpu.Surface.
func (r *Renderer) Initialize(window any, width, height uint32) error {
	device, err := openDevice(r.cfg, window)
	if err != nil {
		return err
	}
	sc, err := device.CreateSwapChain(rhi.SwapchainDesc{
		Window:      window,
		Width:       width,
		Height:      height,
		BufferCount: r.cfg.Renderer.SwapchainBuffers,
		VSync:       r.cfg.Renderer.VSync,
	})
	if err != nil {
		device.Destroy()
		return err
	}
	pacer, err := rhi.NewFramePacer(device, sc)
	if err != nil {
		sc.Destroy()
		device.Destroy()
		return err
	}
	r.device, r.swapchain, r.pacer = device, sc, pacer
	core.LogInfo("renderer initialized: %s %dx%d, %d buffers, %d frames in flight",
		sc.Format(), sc.Width(), sc.Height(), sc.BufferCount(), device.FramesInFlight())
	return nil
}

func (r *Renderer) Shutdown() error {
	if r.device == nil {
		return core.ErrNotInitialized
	}
	r.pacer.Destroy()
	r.swapchain.Destroy()
	core.LogInfo("renderer stats: %s", r.device.Stats())
	r.device.Destroy()
	r.device, r.swapchain, r.pacer = nil, nil, nil
	return nil
}

// BeginFrame returns a nil frame when the swapchain was recreated instead;
// the caller skips the frame.
func (r *Renderer) BeginFrame(deltaTime float64) (*rhi.Frame, error) {
	if r.device == nil {
		return nil, core.ErrNotInitialized
	}
	f, err := r.pacer.BeginFrame()
	if err != nil {
		return nil, err
	}
	if f == nil {
		r.presented = -1
	}
	r.frame = f
	return f, nil
}

func (r *Renderer) EndFrame(deltaTime float64) error {
	f := r.frame
	if f == nil {
		return fmt.Errorf("%w: no frame begun", rhi.ErrInvalidArgument)
	}
	r.frame = nil
	presented, err := r.pacer.EndFrame()
	if presented {
		r.presented = int(f.ImageIndex)
	} else {
		// Recreated or abandoned: the old back buffers are gone.
		r.presented = -1
	}
	return err
}

func (r *Renderer) OnResize(width, height uint32) {
	if r.pacer == nil {
		return
	}
	r.pacer.Resize(width, height)
}

// DrawFrame clears the back buffer, runs the passes of the packet and
// presents.
func (r *Renderer) DrawFrame(packet *RenderPacket) error {
	f, err := r.BeginFrame(packet.DeltaTime)
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	if f == nil {
		return nil
	}
	if err := f.Cmd.ClearColor(f.BackBuffer, packet.ClearColor); err != nil {
		return r.abort(err)
	}
	for _, pass := range packet.Passes {
		if err := pass(f); err != nil {
			return r.abort(err)
		}
	}
	if err := r.EndFrame(packet.DeltaTime); err != nil {
		core.LogError("RendererEndFrame failed. Application shutting down...")
		return err
	}
	return nil
}

// abort still ends the frame so the pacer does not stay mid frame.
func (r *Renderer) abort(err error) error {
	core.LogError("%s", err)
	if endErr := r.EndFrame(0); endErr != nil {
		return errors.Join(err, endErr)
	}
	return err
}

func (r *Renderer) Device() rhi.Device       { return r.device }
func (r *Renderer) SwapChain() rhi.SwapChain { return r.swapchain }

// Capture reads back the last presented image.
func (r *Renderer) Capture() (*image.RGBA, error) {
	if r.device == nil {
		return nil, core.ErrNotInitialized
	}
	if r.presented < 0 {
		return nil, errors.New("nothing presented yet")
	}
	d := r.device
	d.WaitIdle()
	bb := r.swapchain.BackBuffer(uint32(r.presented))
	f := d.TextureFootprint(bb, 0)
	readback, err := d.CreateBuffer(rhi.BufferDesc{
		Name:   "capture",
		Size:   f.Offset + f.Size,
		Usage:  rhi.BufferUsageTransferDst,
		Memory: rhi.MemoryGPUToCPU,
	})
	if err != nil {
		return nil, err
	}
	defer readback.Destroy()

	cmd, err := d.CreateCommandBuffer(rhi.CommandBufferDesc{Name: "capture"})
	if err != nil {
		return nil, err
	}
	defer cmd.Destroy()
	fence, err := d.CreateFence(rhi.FenceDesc{})
	if err != nil {
		return nil, err
	}
	defer fence.Destroy()

	if err := cmd.Begin(); err != nil {
		return nil, err
	}
	if err := cmd.CopyTextureToBuffer(bb, 0, 0, readback, f.Offset); err != nil {
		cmd.End()
		return nil, err
	}
	if err := d.SubmitCommandBuffer(cmd, rhi.SubmitInfo{SignalFence: fence}); err != nil {
		return nil, err
	}
	if !fence.Wait(rhi.InfiniteTimeout) {
		return nil, fmt.Errorf("%w: capture did not complete", rhi.ErrDeviceLost)
	}

	data, err := readback.Map()
	if err != nil {
		return nil, err
	}
	defer readback.Unmap()
	return toRGBA(data, f, bb.Format())
}

func toRGBA(data []byte, f rhi.Footprint, format rhi.Format) (*image.RGBA, error) {
	swap := false
	switch format {
	case rhi.FormatRGBA8Unorm, rhi.FormatRGBA8Srgb:
	case rhi.FormatBGRA8Unorm, rhi.FormatBGRA8Srgb:
		swap = true
	default:
		return nil, fmt.Errorf("%w: cannot capture %s", rhi.ErrInvalidArgument, format)
	}
	img := image.NewRGBA(image.Rect(0, 0, int(f.Width), int(f.Height)))
	rhi.UnpackRows(img.Pix, data, f, format)
	if swap {
		for i := 0; i+3 < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
		}
	}
	return img, nil
}

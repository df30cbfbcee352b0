package vulkan

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

func init() {
	rhi.Register(rhi.BackendVulkan, Open)
}

// immediateWorker is the worker of the command buffers the device records
// for uploads and initial transitions.
const immediateWorker = -1

type counters struct {
	submissions atomic.Uint64
	barriers    atomic.Uint64
	draws       atomic.Uint64
	copies      atomic.Uint64
	clears      atomic.Uint64
	staged      atomic.Uint64
	bufferMem   atomic.Int64
	textureMem  atomic.Int64
}

// Device is the Vulkan implementation of rhi.Device.
type Device struct {
	cfg rhi.DeviceConfig
	drv driver
	log *log.Logger

	registry  *rhi.Registry
	deletions *rhi.DeletionQueue
	submits   *submissionTracker
	// queueMu keeps submission values in queue order.
	queueMu sync.Mutex

	poolsMu sync.Mutex
	pools   map[int]*CommandPoolManager

	descriptors *descriptorPoolBank

	samplers     *rhi.Cache[*Sampler]
	renderPasses *rhi.Cache[*RenderPass]
	pipelines    *rhi.Cache[*GraphicsPipeline]

	frameCount atomic.Uint64
	stats      counters
	destroyed  atomic.Bool
}

// Open opens a Vulkan device. Headless configurations run on the in-memory
// driver.
func Open(cfg rhi.DeviceConfig) (rhi.Device, error) {
	var (
		drv driver
		err error
	)
	if cfg.Headless {
		drv = newSoftDriver()
	} else if drv, err = newVulkanDriver(cfg); err != nil {
		return nil, err
	}
	return newDevice(cfg, drv), nil
}

func newDevice(cfg rhi.DeviceConfig, drv driver) *Device {
	if cfg.FramesInFlight == 0 {
		cfg.FramesInFlight = 2
	}
	d := &Device{
		cfg:          cfg,
		drv:          drv,
		log:          core.Logger().With("backend", "vulkan", "driver", drv.name()),
		registry:     rhi.NewRegistry(),
		deletions:    rhi.NewDeletionQueue(),
		submits:      newSubmissionTracker(drv),
		pools:        make(map[int]*CommandPoolManager),
		descriptors:  newDescriptorPoolBank(drv, descriptorPoolInfo(cfg.DescriptorPool)),
		samplers:     rhi.NewCache[*Sampler](),
		renderPasses: rhi.NewCache[*RenderPass](),
		pipelines:    rhi.NewCache[*GraphicsPipeline](),
	}
	d.log.Info("device opened", "frames_in_flight", cfg.FramesInFlight)
	return d
}

func (d *Device) Backend() rhi.Backend { return rhi.BackendVulkan }

// fail logs a contract violation and returns it.
func (d *Device) fail(err error) error {
	d.log.Error(err.Error())
	return err
}

// release schedules fn once everything submitted so far completed.
func (d *Device) release(fn func()) {
	if d.destroyed.Load() {
		fn()
		return
	}
	d.deletions.Push(d.submits.lastSubmitted(), fn)
}

func (d *Device) poolManager(worker int) *CommandPoolManager {
	d.poolsMu.Lock()
	defer d.poolsMu.Unlock()
	m, ok := d.pools[worker]
	if !ok {
		m = newCommandPoolManager(d.drv)
		d.pools[worker] = m
	}
	return m
}

// collect reclaims the pools and deletions of completed submissions. It
// never blocks.
func (d *Device) collect() uint64 {
	completed := d.submits.poll()
	d.poolsMu.Lock()
	managers := make([]*CommandPoolManager, 0, len(d.pools))
	for _, m := range d.pools {
		managers = append(managers, m)
	}
	d.poolsMu.Unlock()
	for _, m := range managers {
		m.Reclaim(completed)
	}
	d.deletions.Collect(completed)
	return completed
}

func (d *Device) SubmitCommandBuffer(cmd rhi.CommandBuffer, info rhi.SubmitInfo) error {
	_, err := d.submit(cmd, info)
	return err
}

func (d *Device) submit(cmd rhi.CommandBuffer, info rhi.SubmitInfo) (uint64, error) {
	cb, err := cast[*CommandBuffer](cmd, "command buffer")
	if err != nil {
		return 0, d.fail(err)
	}
	if cb.state == rhi.CommandBufferRecording {
		if err := cb.End(); err != nil {
			return 0, err
		}
	}
	if cb.state != rhi.CommandBufferExecutable || cb.entry == nil {
		return 0, d.fail(fmt.Errorf("%w: %q is %s", rhi.ErrNotExecutable, cb.desc.Name, cb.state))
	}

	s := submission{cmds: []handle{cb.entry.cmd}}
	for _, w := range info.WaitSemaphores {
		sem, err := cast[*Semaphore](w, "semaphore")
		if err != nil {
			return 0, d.fail(err)
		}
		s.wait = append(s.wait, sem.handle)
		s.waitStages = append(s.waitStages, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit|vk.PipelineStageTransferBit))
	}
	for _, sig := range info.SignalSemaphores {
		sem, err := cast[*Semaphore](sig, "semaphore")
		if err != nil {
			return 0, d.fail(err)
		}
		s.signal = append(s.signal, sem.handle)
	}
	var user *Fence
	if info.SignalFence != nil {
		if user, err = cast[*Fence](info.SignalFence, "fence"); err != nil {
			return 0, d.fail(err)
		}
	}

	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	internal, err := d.submits.fence()
	if err != nil {
		return 0, d.fail(err)
	}
	if user != nil {
		// The user fence goes with the work, the internal one with an empty
		// submission right behind it.
		s.fence = user.handle
		if err = d.drv.queueSubmit(s); err == nil {
			if err = d.drv.queueSubmit(submission{fence: internal}); err != nil {
				// The work is queued but untracked. Drain the queue so the
				// pool can be recycled right away.
				d.drv.waitIdle()
				d.submits.release(internal)
				cb.Reset()
				return 0, d.fail(fmt.Errorf("queue submit of %q failed: %w", cb.desc.Name, err))
			}
		}
	} else {
		s.fence = internal
		err = d.drv.queueSubmit(s)
	}
	if err != nil {
		d.submits.release(internal)
		return 0, d.fail(fmt.Errorf("queue submit of %q failed: %w", cb.desc.Name, err))
	}
	value := d.submits.commit(internal)
	if user != nil {
		user.value.Store(value)
	}
	d.stats.submissions.Add(1)
	cb.submitted(value)
	return value, nil
}

// submitImmediate records, submits and waits for a one shot command buffer.
func (d *Device) submitImmediate(name string, record func(cb *CommandBuffer) error) error {
	cb := d.newCommandBuffer(rhi.CommandBufferDesc{Name: name, Worker: immediateWorker})
	defer cb.Destroy()
	if err := cb.Begin(); err != nil {
		return err
	}
	if err := record(cb); err != nil {
		// Close the list so Destroy can recycle its pool.
		cb.End()
		return err
	}
	value, err := d.submit(cb, rhi.SubmitInfo{})
	if err != nil {
		return err
	}
	if !d.submits.wait(value) {
		return d.fail(fmt.Errorf("%w: %s did not complete", rhi.ErrDeviceLost, name))
	}
	d.collect()
	return nil
}

func (d *Device) Present(sc rhi.SwapChain, wait rhi.Semaphore) bool {
	swapchain, err := cast[*SwapChain](sc, "swapchain")
	if err != nil {
		d.fail(err)
		return false
	}
	ok := swapchain.Present(wait)
	d.frameCount.Add(1)
	return ok
}

func (d *Device) Flush() {
	d.collect()
}

func (d *Device) WaitIdle() {
	d.drv.waitIdle()
	completed := d.collect()
	// Releases can schedule more releases.
	for d.deletions.Collect(completed) > 0 {
	}
}

func (d *Device) FrameIndex() uint32 {
	return uint32(d.frameCount.Load() % uint64(d.cfg.FramesInFlight))
}

func (d *Device) FrameCount() uint64      { return d.frameCount.Load() }
func (d *Device) FramesInFlight() uint32  { return d.cfg.FramesInFlight }
func (d *Device) Registry() *rhi.Registry { return d.registry }

func (d *Device) Stats() rhi.Stats {
	s := rhi.Stats{
		Submissions:        d.stats.submissions.Load(),
		Barriers:           d.stats.barriers.Load(),
		Draws:              d.stats.draws.Load(),
		Copies:             d.stats.copies.Load(),
		Clears:             d.stats.clears.Load(),
		PendingDeletions:   d.deletions.Len(),
		LiveObjects:        d.registry.Len(),
		BufferMemory:       uint64(d.stats.bufferMem.Load()),
		TextureMemory:      uint64(d.stats.textureMem.Load()),
		LastSubmitted:      d.submits.lastSubmitted(),
		LastCompleted:      d.submits.lastCompleted(),
		DescriptorsInUse:   d.descriptors.inUse(),
		CachedObjects:      d.samplers.Len() + d.renderPasses.Len() + d.pipelines.Len(),
		StagingUploadBytes: d.stats.staged.Load(),
	}
	d.poolsMu.Lock()
	for _, m := range d.pools {
		ms := m.Stats()
		s.CommandAllocators += ms.Created
		s.AllocatorsInUse += ms.InUse
		s.AllocatorsPending += ms.Pending
		s.AllocatorsIdle += ms.Available
	}
	d.poolsMu.Unlock()
	return s
}

// Destroy waits for the GPU, releases the cached objects and reports every
// object the application did not destroy.
func (d *Device) Destroy() {
	if d.destroyed.Load() {
		return
	}
	d.WaitIdle()
	d.pipelines.Drain(func(p *GraphicsPipeline) { p.destroy() })
	d.renderPasses.Drain(func(p *RenderPass) { p.destroy() })
	d.samplers.Drain(func(s *Sampler) { s.destroy() })
	if leaks := d.registry.ReportLeaks(d.log); leaks > 0 {
		d.log.Warn("device destroyed with live objects", "count", leaks)
	}
	d.WaitIdle()
	d.destroyed.Store(true)

	d.poolsMu.Lock()
	for _, m := range d.pools {
		m.destroy()
	}
	d.pools = nil
	d.poolsMu.Unlock()
	d.descriptors.destroy()
	d.submits.destroy()
	d.drv.destroy()
	d.log.Info("device destroyed")
}

// cast checks that o is a live object of this backend.
func cast[T rhi.Object](o rhi.Object, kind string) (T, error) {
	var zero T
	if o == nil {
		return zero, fmt.Errorf("%w: nil %s", rhi.ErrInvalidArgument, kind)
	}
	v, ok := o.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T is not a vulkan %s", rhi.ErrWrongBackend, o, kind)
	}
	if !v.IsValid() {
		return zero, fmt.Errorf("%w: %s", rhi.ErrDestroyed, kind)
	}
	return v, nil
}

func descriptorPoolInfo(s rhi.DescriptorPoolSizes) poolInfo {
	orDefault := func(v, def uint32) uint32 {
		if v == 0 {
			return def
		}
		return v
	}
	return poolInfo{
		maxSets: orDefault(s.MaxSets, 256),
		sizes: map[vk.DescriptorType]uint32{
			vk.DescriptorTypeUniformBuffer: orDefault(s.UniformBuffers, 256),
			vk.DescriptorTypeStorageBuffer: orDefault(s.StorageBuffers, 64),
			vk.DescriptorTypeSampledImage:  orDefault(s.SampledImages, 256),
			vk.DescriptorTypeSampler:       orDefault(s.Samplers, 64),
			vk.DescriptorTypeStorageImage:  orDefault(s.StorageImages, 64),
		},
	}
}

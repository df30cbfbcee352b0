package dx12

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

func init() {
	rhi.Register(rhi.BackendDX12, Open)
}

// immediateWorker is the worker of the command buffers the device records
// for uploads and initial transitions.
const immediateWorker = -1

const (
	resourceTableBlock = 64
	samplerTableBlock  = 16
	// maxSamplerTables is D3D12_MAX_SHADER_VISIBLE_SAMPLER_HEAP_SIZE.
	maxSamplerTables = 2048
)

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

// Device is the Direct3D 12 implementation of rhi.Device. It owns one
// direct queue, the CPU descriptor heaps every view lives in and the two
// shader visible heaps descriptor tables are copied into at bind time.
type Device struct {
	cfg rhi.DeviceConfig
	drv driver
	log *log.Logger

	registry  *rhi.Registry
	deletions *rhi.DeletionQueue
	submits   *submissionTracker
	// queueMu keeps fence values in queue order.
	queueMu sync.Mutex

	poolsMu sync.Mutex
	pools   map[int]*CommandAllocatorManager

	heaps          [heapDSV + 1]*DescriptorHeap
	resourceTables *tableArena
	samplerTables  *tableArena

	samplers     *rhi.Cache[*Sampler]
	renderPasses *rhi.Cache[*RenderPass]
	pipelines    *rhi.Cache[*GraphicsPipeline]

	frameCount atomic.Uint64
	stats      counters
	destroyed  atomic.Bool
}

// Open opens a Direct3D 12 device. Headless configurations run on the
// in-memory driver.
func Open(cfg rhi.DeviceConfig) (rhi.Device, error) {
	var (
		drv driver
		err error
	)
	if cfg.Headless {
		drv = newSoftDriver()
	} else if drv, err = newD3D12Driver(cfg); err != nil {
		core.LogError("failed to open the dx12 driver: %s", err)
		return nil, err
	}
	d, err := newDevice(cfg, drv)
	if err != nil {
		drv.destroy()
		return nil, err
	}
	return d, nil
}

func orDefault(v, def uint32) uint32 {
	if v == 0 {
		return def
	}
	return v
}

func newDevice(cfg rhi.DeviceConfig, drv driver) (*Device, error) {
	if cfg.FramesInFlight == 0 {
		cfg.FramesInFlight = 2
	}
	cfg.Heaps = rhi.HeapSizes{
		RTV:       orDefault(cfg.Heaps.RTV, 256),
		DSV:       orDefault(cfg.Heaps.DSV, 64),
		CbvSrvUav: orDefault(cfg.Heaps.CbvSrvUav, 4096),
		Sampler:   orDefault(cfg.Heaps.Sampler, 256),
	}
	d := &Device{
		cfg:          cfg,
		drv:          drv,
		log:          core.Logger().With("backend", "dx12", "driver", drv.name()),
		registry:     rhi.NewRegistry(),
		deletions:    rhi.NewDeletionQueue(),
		pools:        make(map[int]*CommandAllocatorManager),
		samplers:     rhi.NewCache[*Sampler](),
		renderPasses: rhi.NewCache[*RenderPass](),
		pipelines:    rhi.NewCache[*GraphicsPipeline](),
	}
	var err error
	if d.submits, err = newSubmissionTracker(drv); err != nil {
		return nil, fmt.Errorf("failed to create the device fence: %w", err)
	}
	sizes := [...]uint32{
		heapCbvSrvUav: cfg.Heaps.CbvSrvUav,
		heapSampler:   cfg.Heaps.Sampler,
		heapRTV:       cfg.Heaps.RTV,
		heapDSV:       cfg.Heaps.DSV,
	}
	for kind, n := range sizes {
		if d.heaps[kind], err = newDescriptorHeap(drv, heapKind(kind), n, false); err != nil {
			d.destroyHeaps()
			return nil, err
		}
	}
	if d.resourceTables, err = newTableArena(drv, heapCbvSrvUav, cfg.Heaps.CbvSrvUav, resourceTableBlock); err != nil {
		d.destroyHeaps()
		return nil, err
	}
	if d.samplerTables, err = newTableArena(drv, heapSampler, min(cfg.Heaps.Sampler, maxSamplerTables), samplerTableBlock); err != nil {
		d.destroyHeaps()
		return nil, err
	}
	d.log.Info("device opened",
		"frames_in_flight", cfg.FramesInFlight,
		"rtv", cfg.Heaps.RTV, "dsv", cfg.Heaps.DSV,
		"cbv_srv_uav", cfg.Heaps.CbvSrvUav, "sampler", cfg.Heaps.Sampler)
	return d, nil
}

func (d *Device) destroyHeaps() {
	for i, h := range d.heaps {
		if h != nil {
			h.destroy()
			d.heaps[i] = nil
		}
	}
	if d.resourceTables != nil {
		d.resourceTables.destroy()
	}
	if d.samplerTables != nil {
		d.samplerTables.destroy()
	}
	if d.submits != nil {
		d.submits.destroy()
	}
}

func (d *Device) Backend() rhi.Backend { return rhi.BackendDX12 }

// heap returns the CPU descriptor heap of the given kind.
func (d *Device) heap(kind heapKind) *DescriptorHeap { return d.heaps[kind] }

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

// freeSlot returns a descriptor slot once the GPU is done with it.
func (d *Device) freeSlot(kind heapKind, slot uint32) {
	if slot == rhi.InvalidDescriptorIndex {
		return
	}
	h := d.heaps[kind]
	d.release(func() { h.Free(slot) })
}

func (d *Device) allocatorManager(worker int) *CommandAllocatorManager {
	d.poolsMu.Lock()
	defer d.poolsMu.Unlock()
	m, ok := d.pools[worker]
	if !ok {
		m = newCommandAllocatorManager(d.drv)
		d.pools[worker] = m
	}
	return m
}

// collect reclaims the allocators, descriptor tables and deletions of
// completed submissions. It never blocks.
func (d *Device) collect() uint64 {
	completed := d.submits.poll()
	d.poolsMu.Lock()
	managers := make([]*CommandAllocatorManager, 0, len(d.pools))
	for _, m := range d.pools {
		managers = append(managers, m)
	}
	d.poolsMu.Unlock()
	for _, m := range managers {
		m.Reclaim(completed)
	}
	d.resourceTables.reclaim(completed)
	d.samplerTables.reclaim(completed)
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
	if cb.state != rhi.CommandBufferExecutable || cb.alloc == 0 {
		return 0, d.fail(fmt.Errorf("%w: %q is %s", rhi.ErrNotExecutable, cb.desc.Name, cb.state))
	}
	waits := make([]*Semaphore, 0, len(info.WaitSemaphores))
	for _, w := range info.WaitSemaphores {
		sem, err := cast[*Semaphore](w, "semaphore")
		if err != nil {
			return 0, d.fail(err)
		}
		waits = append(waits, sem)
	}
	signals := make([]*Semaphore, 0, len(info.SignalSemaphores))
	for _, s := range info.SignalSemaphores {
		sem, err := cast[*Semaphore](s, "semaphore")
		if err != nil {
			return 0, d.fail(err)
		}
		signals = append(signals, sem)
	}
	var user *Fence
	if info.SignalFence != nil {
		if user, err = cast[*Fence](info.SignalFence, "fence"); err != nil {
			return 0, d.fail(err)
		}
	}

	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	for _, sem := range waits {
		if v := sem.value.Load(); v > 0 {
			if err := d.drv.queueWait(sem.handle, v); err != nil {
				return 0, d.fail(fmt.Errorf("queue wait of %q failed: %w", cb.desc.Name, err))
			}
		}
	}
	if err := d.drv.executeCommandLists([]handle{cb.list}); err != nil {
		return 0, d.fail(fmt.Errorf("%w: execute of %q failed: %s", rhi.ErrDeviceLost, cb.desc.Name, err))
	}
	value := d.submits.next()
	if err := d.submits.signal(value); err != nil {
		// The lists are executing without a tracked value. Drain the queue so
		// the allocator can be recycled right away.
		d.drv.waitIdle()
		cb.Reset()
		return 0, d.fail(fmt.Errorf("%w: fence signal failed: %s", rhi.ErrDeviceLost, err))
	}
	if user != nil {
		// Submission values only grow, so they are valid values for the
		// user fence as well.
		if err := d.drv.queueSignal(user.handle, value); err != nil {
			d.log.Error("failed to signal fence", "err", err)
		}
		user.signalled(value)
	}
	for _, sem := range signals {
		if err := sem.signal(); err != nil {
			d.log.Error("failed to signal semaphore", "err", err)
		}
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
	if v := d.submits.lastSubmitted(); v > 0 {
		d.submits.wait(v)
	}
	completed := d.collect()
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
		CachedObjects:      d.samplers.Len() + d.renderPasses.Len() + d.pipelines.Len(),
		StagingUploadBytes: d.stats.staged.Load(),
	}
	for _, h := range d.heaps {
		s.DescriptorsInUse += h.InUse()
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
	d.destroyHeaps()
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
		return zero, fmt.Errorf("%w: %T is not a dx12 %s", rhi.ErrWrongBackend, o, kind)
	}
	if !v.IsValid() {
		return zero, fmt.Errorf("%w: %s", rhi.ErrDestroyed, kind)
	}
	return v, nil
}

package dx12

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/rhi/engine/containers"
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
	"github.com/spaghettifunk/rhi/engine/renderer/softgpu"
)

// errAllocatorInUse is what ID3D12CommandAllocator::Reset fails with while
// the GPU still executes lists recorded into it.
var errAllocatorInUse = errors.New("command allocator is still in use by the GPU")

// softDescriptorIncrement is the handle increment of every soft heap.
const softDescriptorIncrement = 32

// softResource is a committed resource: a buffer or an image. state is the
// state the recorded commands leave it in.
type softResource struct {
	info  resourceInfo
	buf   *softgpu.Buffer
	img   *softgpu.Image
	state resourceStates
}

type softDescriptor struct {
	view    viewInfo
	sampler samplerInfo
	written bool
}

type softHeap struct {
	kind          heapKind
	shaderVisible bool
	slots         []softDescriptor
}

type softAllocator struct {
	// open is the list recording into the allocator.
	open     *softList
	inFlight atomic.Int32
}

type softList struct {
	list  *softgpu.CommandList
	alloc *softAllocator
	open  bool
}

type softSwapChain struct {
	surface *softgpu.Surface
	buffers []handle
	// next is the buffer the next present flips, counted on the CPU.
	next uint32
}

// softObject stands for native objects without observable state.
type softObject struct {
	kind string
}

// softDriver executes the driver interface on an in-memory GPU. It tracks
// the state of every resource across recorded barriers and counts commands
// that find a resource in the wrong state.
type softDriver struct {
	queue   *softgpu.Queue
	objects *containers.HandleTable

	mu           sync.Mutex
	layoutErrors atomic.Int64
	// failSignal makes the n-th following queueSignal fail, like a lost
	// device would.
	failSignal atomic.Int64
	// depthClears holds the flags of the last depth stencil clear.
	depthClears atomic.Uint32
}

func newSoftDriver() *softDriver {
	return &softDriver{
		queue:   softgpu.NewQueue(),
		objects: containers.NewHandleTable(),
	}
}

func (d *softDriver) name() string { return "headless" }

func (d *softDriver) destroy() {
	d.queue.WaitIdle()
	d.queue.Close()
}

func (d *softDriver) waitIdle() { d.queue.WaitIdle() }

func (d *softDriver) add(obj interface{}) handle {
	return handle(d.objects.Add(obj))
}

func (d *softDriver) remove(h handle) {
	d.objects.Remove(uint64(h))
}

func lookup[T any](d *softDriver, h handle) T {
	v, _ := containers.Lookup[T](d.objects, uint64(h))
	return v
}

// expectState checks that a command finds h with every bit of want set.
func (d *softDriver) expectState(h handle, want resourceStates, what string) {
	r := lookup[*softResource](d, h)
	if r == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if r.state&want != want || (want == stateCommon && r.state != stateCommon) {
		d.layoutErrors.Add(1)
		core.LogWarn("headless dx12: %s finds resource %d in state %#x, expects %#x", what, h, r.state, want)
	}
}

func (d *softDriver) resourceState(h handle) resourceStates {
	r := lookup[*softResource](d, h)
	if r == nil {
		return stateCommon
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return r.state
}

func (d *softDriver) createCommittedResource(info resourceInfo) (handle, error) {
	r := &softResource{info: info, state: info.state}
	switch info.dimension {
	case dimensionBuffer:
		if info.width == 0 {
			return 0, fmt.Errorf("%w: zero sized buffer", rhi.ErrInvalidArgument)
		}
		r.buf = softgpu.NewBuffer(info.width)
	case dimensionTexture1D, dimensionTexture2D, dimensionTexture3D:
		if info.width == 0 || info.format.BytesPerPixel() == 0 {
			return 0, fmt.Errorf("%w: texture %dx%d of format %s", rhi.ErrInvalidArgument, info.width, info.height, info.format)
		}
		depth, layers := uint32(1), info.depthOrArraySize
		if info.dimension == dimensionTexture3D {
			depth, layers = info.depthOrArraySize, 1
		}
		r.img = softgpu.NewImage(info.format, uint32(info.width), info.height, depth, info.mips, layers)
	default:
		return 0, fmt.Errorf("%w: resource dimension %d", rhi.ErrInvalidArgument, info.dimension)
	}
	return d.add(r), nil
}

func (d *softDriver) destroyResource(h handle) { d.remove(h) }

func (d *softDriver) mapResource(h handle) ([]byte, error) {
	r := lookup[*softResource](d, h)
	if r == nil {
		return nil, rhi.ErrDestroyed
	}
	if r.buf == nil || r.info.heap == heapDefault {
		return nil, rhi.ErrNotMappable
	}
	return r.buf.Data, nil
}

func (d *softDriver) unmapResource(h handle) {}

// Descriptor handles carry the heap handle in the upper half and the slot
// times the increment in the lower half.
func (d *softDriver) descriptor(h uint64) (*softHeap, uint32) {
	heap := lookup[*softHeap](d, handle(h>>32))
	if heap == nil {
		return nil, 0
	}
	i := uint32(h&0xffffffff) / softDescriptorIncrement
	if int(i) >= len(heap.slots) {
		return nil, 0
	}
	return heap, i
}

func (d *softDriver) createDescriptorHeap(kind heapKind, capacity uint32, shaderVisible bool) (heapInfo, error) {
	if shaderVisible && (kind == heapRTV || kind == heapDSV) {
		return heapInfo{}, fmt.Errorf("%w: %s heaps cannot be shader visible", rhi.ErrInvalidArgument, kind)
	}
	h := d.add(&softHeap{kind: kind, shaderVisible: shaderVisible, slots: make([]softDescriptor, capacity)})
	info := heapInfo{
		handle:    h,
		cpuStart:  cpuDescriptor(uint64(h) << 32),
		increment: softDescriptorIncrement,
	}
	if shaderVisible {
		info.gpuStart = gpuDescriptor(uint64(h) << 32)
	}
	return info, nil
}

func (d *softDriver) destroyDescriptorHeap(h handle) { d.remove(h) }

func (d *softDriver) createView(info viewInfo, dst cpuDescriptor) {
	heap, i := d.descriptor(uint64(dst))
	if heap == nil {
		core.LogError("headless dx12: view written to unknown descriptor %#x", dst)
		return
	}
	d.mu.Lock()
	heap.slots[i] = softDescriptor{view: info, written: true}
	d.mu.Unlock()
}

func (d *softDriver) createSampler(info samplerInfo, dst cpuDescriptor) {
	heap, i := d.descriptor(uint64(dst))
	if heap == nil || heap.kind != heapSampler {
		core.LogError("headless dx12: sampler written to descriptor %#x", dst)
		return
	}
	d.mu.Lock()
	heap.slots[i] = softDescriptor{sampler: info, written: true}
	d.mu.Unlock()
}

func (d *softDriver) copyDescriptors(kind heapKind, dst, src cpuDescriptor, n uint32) {
	dh, di := d.descriptor(uint64(dst))
	sh, si := d.descriptor(uint64(src))
	if dh == nil || sh == nil || dh.kind != kind || sh.kind != kind {
		core.LogError("headless dx12: %s descriptor copy between unknown heaps", kind)
		return
	}
	if int(di+n) > len(dh.slots) || int(si+n) > len(sh.slots) {
		core.LogError("headless dx12: %s descriptor copy of %d overruns a heap", kind, n)
		return
	}
	d.mu.Lock()
	copy(dh.slots[di:di+n], sh.slots[si:si+n])
	d.mu.Unlock()
}

// view returns the descriptor behind a CPU handle.
func (d *softDriver) view(h cpuDescriptor) (softDescriptor, bool) {
	heap, i := d.descriptor(uint64(h))
	if heap == nil {
		return softDescriptor{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return heap.slots[i], heap.slots[i].written
}

func (d *softDriver) createRootSignature(info rootSignatureInfo) (handle, error) {
	if len(info.tables)+int(info.constants) > 64 {
		return 0, fmt.Errorf("%w: root signature of %d DWORDs", rhi.ErrInvalidArgument, len(info.tables)+int(info.constants))
	}
	return d.add(&softObject{kind: "root signature"}), nil
}

func (d *softDriver) destroyRootSignature(h handle) { d.remove(h) }

func (d *softDriver) createGraphicsPipelineState(info pipelineInfo) (handle, error) {
	if len(info.vs) == 0 {
		return 0, fmt.Errorf("%w: pipeline without vertex shader", rhi.ErrInvalidArgument)
	}
	if lookup[*softObject](d, info.rootSignature) == nil {
		return 0, fmt.Errorf("%w: pipeline without root signature", rhi.ErrInvalidArgument)
	}
	return d.add(&softObject{kind: "pipeline state"}), nil
}

func (d *softDriver) destroyPipelineState(h handle) { d.remove(h) }

func (d *softDriver) createCommandAllocator() (handle, error) {
	return d.add(&softAllocator{}), nil
}

func (d *softDriver) resetCommandAllocator(h handle) error {
	a := lookup[*softAllocator](d, h)
	if a == nil {
		return rhi.ErrDestroyed
	}
	if a.inFlight.Load() > 0 {
		return errAllocatorInUse
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if a.open != nil {
		return fmt.Errorf("%w: a command list is recording into the allocator", rhi.ErrInvalidArgument)
	}
	return nil
}

func (d *softDriver) destroyCommandAllocator(h handle) { d.remove(h) }

func (d *softDriver) createCommandList(alloc handle) (handle, error) {
	a := lookup[*softAllocator](d, alloc)
	if a == nil {
		return 0, rhi.ErrDestroyed
	}
	l := &softList{list: softgpu.NewCommandList(), alloc: a, open: true}
	d.mu.Lock()
	defer d.mu.Unlock()
	if a.open != nil {
		return 0, fmt.Errorf("%w: a command list is recording into the allocator", rhi.ErrInvalidArgument)
	}
	a.open = l
	return d.add(l), nil
}

func (d *softDriver) resetCommandList(list, alloc handle) error {
	l, a := lookup[*softList](d, list), lookup[*softAllocator](d, alloc)
	if l == nil || a == nil {
		return rhi.ErrDestroyed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if l.open {
		return fmt.Errorf("%w: command list reset while open", rhi.ErrInvalidArgument)
	}
	if a.open != nil {
		return fmt.Errorf("%w: a command list is recording into the allocator", rhi.ErrInvalidArgument)
	}
	l.list.Reset()
	l.alloc, l.open = a, true
	a.open = l
	return nil
}

func (d *softDriver) closeCommandList(list handle) error {
	l := lookup[*softList](d, list)
	if l == nil {
		return rhi.ErrDestroyed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !l.open {
		return fmt.Errorf("%w: command list closed twice", rhi.ErrInvalidArgument)
	}
	l.open = false
	if l.alloc.open == l {
		l.alloc.open = nil
	}
	return l.list.Close()
}

func (d *softDriver) destroyCommandList(list handle) {
	if l, ok := d.objects.Remove(uint64(list)).(*softList); ok {
		d.mu.Lock()
		if l.open && l.alloc.open == l {
			l.alloc.open = nil
		}
		d.mu.Unlock()
	}
}

func (d *softDriver) record(list handle, op int, fn func()) {
	l := lookup[*softList](d, list)
	if l == nil {
		core.LogError("headless dx12: recording into unknown command list %d", list)
		return
	}
	if err := l.list.Record(op, fn); err != nil {
		core.LogError("headless dx12: %s", err)
	}
}

func (d *softDriver) resourceBarrier(list handle, barriers []transition) {
	for _, b := range barriers {
		r := lookup[*softResource](d, b.resource)
		if r == nil {
			core.LogError("headless dx12: barrier on unknown resource %d", b.resource)
			continue
		}
		d.mu.Lock()
		if r.state != b.before {
			d.layoutErrors.Add(1)
			core.LogWarn("headless dx12: barrier claims resource %d is in %#x, it is in %#x", b.resource, b.before, r.state)
		}
		r.state = b.after
		d.mu.Unlock()
	}
	d.record(list, softgpu.OpBarrier, func() {})
}

func (d *softDriver) setRenderTargets(list handle, rtvs []cpuDescriptor, dsv cpuDescriptor, hasDSV bool) {
	for _, rtv := range rtvs {
		if v, ok := d.view(rtv); ok {
			d.expectState(v.view.resource, stateRenderTarget, "render target binding")
		}
	}
	if hasDSV {
		if v, ok := d.view(dsv); ok {
			d.expectState(v.view.resource, stateDepthWrite, "depth target binding")
		}
	}
	d.record(list, softgpu.OpOther, func() {})
}

func (d *softDriver) fillAll(img *softgpu.Image, texel []byte) {
	for layer := uint32(0); layer < img.ArrayLayers; layer++ {
		for mip := uint32(0); mip < img.MipLevels; mip++ {
			img.Fill(mip, layer, texel)
		}
	}
}

func (d *softDriver) clearRenderTarget(list handle, rtv cpuDescriptor, color [4]float32) {
	v, ok := d.view(rtv)
	r := lookup[*softResource](d, v.view.resource)
	if !ok || v.view.kind != viewRTV || r == nil || r.img == nil {
		core.LogError("headless dx12: clear of unknown render target view %#x", rtv)
		return
	}
	d.expectState(v.view.resource, stateRenderTarget, "render target clear")
	texel := softgpu.EncodeColor(r.info.format, color)
	d.record(list, softgpu.OpClear, func() { d.fillAll(r.img, texel) })
}

func (d *softDriver) clearDepthStencil(list handle, dsv cpuDescriptor, flags uint32, depth float32, stencil uint8) {
	v, ok := d.view(dsv)
	r := lookup[*softResource](d, v.view.resource)
	if !ok || v.view.kind != viewDSV || r == nil || r.img == nil {
		core.LogError("headless dx12: clear of unknown depth stencil view %#x", dsv)
		return
	}
	if flags == 0 || flags&^(clearFlagDepth|clearFlagStencil) != 0 {
		core.LogError("headless dx12: invalid depth clear flags %#x", flags)
		d.layoutErrors.Add(1)
		return
	}
	d.depthClears.Store(flags)
	d.expectState(v.view.resource, stateDepthWrite, "depth clear")
	texel := softgpu.EncodeDepthStencil(r.info.format, depth, uint32(stencil))
	d.record(list, softgpu.OpClear, func() { d.fillAll(r.img, texel) })
}

func (d *softDriver) setPipelineState(list, pso handle) {
	d.record(list, softgpu.OpOther, func() {})
}

func (d *softDriver) setRootSignature(list, root handle) {
	d.record(list, softgpu.OpOther, func() {})
}

func (d *softDriver) setDescriptorHeaps(list handle, heaps []handle) {
	for _, h := range heaps {
		if heap := lookup[*softHeap](d, h); heap == nil || !heap.shaderVisible {
			core.LogError("headless dx12: descriptor heap %d is not shader visible", h)
		}
	}
	d.record(list, softgpu.OpOther, func() {})
}

func (d *softDriver) setRootDescriptorTable(list handle, index uint32, base gpuDescriptor) {
	if heap, _ := d.descriptor(uint64(base)); heap == nil || !heap.shaderVisible {
		core.LogError("headless dx12: root table %d points outside the shader visible heaps", index)
	}
	d.record(list, softgpu.OpOther, func() {})
}

func (d *softDriver) setViewport(list handle, v viewport) {
	d.record(list, softgpu.OpOther, func() {})
}

func (d *softDriver) setScissor(list handle, r rect) {
	d.record(list, softgpu.OpOther, func() {})
}

func (d *softDriver) setPrimitiveTopology(list handle, topology uint32) {
	d.record(list, softgpu.OpOther, func() {})
}

func (d *softDriver) setVertexBuffer(list handle, slot uint32, buf handle, offset uint64, size, stride uint32) {
	d.record(list, softgpu.OpOther, func() {})
}

func (d *softDriver) setIndexBuffer(list handle, buf handle, offset uint64, size uint32, format dxgiFormat) {
	d.record(list, softgpu.OpOther, func() {})
}

func (d *softDriver) drawInstanced(list handle, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.record(list, softgpu.OpDraw, func() {})
}

func (d *softDriver) drawIndexedInstanced(list handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.record(list, softgpu.OpDraw, func() {})
}

func (d *softDriver) copyBufferRegion(list handle, dst handle, dstOffset uint64, src handle, srcOffset, size uint64) {
	s, t := lookup[*softResource](d, src), lookup[*softResource](d, dst)
	if s == nil || t == nil || s.buf == nil || t.buf == nil {
		core.LogError("headless dx12: copy between unknown buffers")
		return
	}
	d.expectState(src, stateCopySource, "buffer copy source")
	d.expectState(dst, stateCopyDest, "buffer copy destination")
	d.record(list, softgpu.OpCopy, func() {
		copy(t.buf.Data[dstOffset:dstOffset+size], s.buf.Data[srcOffset:srcOffset+size])
	})
}

// footprintOf is the buffer layout a placed footprint describes.
func footprintOf(p placedFootprint, format rhi.Format) rhi.Footprint {
	pitch := uint64(p.rowPitch)
	slice := pitch * uint64(p.height)
	row := uint64(p.width) * uint64(format.BytesPerPixel())
	return rhi.Footprint{
		Offset:     p.offset,
		Width:      p.width,
		Height:     p.height,
		Depth:      p.depth,
		RowPitch:   pitch,
		Rows:       p.height,
		SlicePitch: slice,
		Size:       slice*uint64(p.depth-1) + pitch*uint64(p.height-1) + row,
	}
}

// checkPlaced validates a footprint the way the debug layer does.
func checkPlaced(p placedFootprint, f rhi.Footprint, buf *softgpu.Buffer) error {
	switch {
	case p.offset%textureDataPlacementAlignment != 0:
		return fmt.Errorf("footprint offset %d is not aligned to %d", p.offset, textureDataPlacementAlignment)
	case p.rowPitch%textureDataPitchAlignment != 0:
		return fmt.Errorf("row pitch %d is not aligned to %d", p.rowPitch, textureDataPitchAlignment)
	case f.Offset+f.Size > uint64(len(buf.Data)):
		return fmt.Errorf("footprint of %d bytes at %d exceeds a buffer of %d", f.Size, f.Offset, len(buf.Data))
	}
	return nil
}

func (d *softDriver) copyBufferToTexture(list handle, src handle, footprint placedFootprint, dst handle, subresource uint32) {
	b, t := lookup[*softResource](d, src), lookup[*softResource](d, dst)
	if b == nil || t == nil || b.buf == nil || t.img == nil {
		core.LogError("headless dx12: buffer to texture copy with unknown resources")
		return
	}
	f := footprintOf(footprint, t.info.format)
	if err := checkPlaced(footprint, f, b.buf); err != nil {
		core.LogError("headless dx12: %s", err)
		return
	}
	d.expectState(src, stateCopySource, "texture upload source")
	d.expectState(dst, stateCopyDest, "texture upload destination")
	mip, layer := subresource%t.info.mips, subresource/t.info.mips
	d.record(list, softgpu.OpCopy, func() {
		t.img.CopyFromBuffer(b.buf.Data, f, mip, layer)
	})
}

func (d *softDriver) copyTextureToBuffer(list handle, src handle, subresource uint32, dst handle, footprint placedFootprint) {
	t, b := lookup[*softResource](d, src), lookup[*softResource](d, dst)
	if b == nil || t == nil || b.buf == nil || t.img == nil {
		core.LogError("headless dx12: texture to buffer copy with unknown resources")
		return
	}
	f := footprintOf(footprint, t.info.format)
	if err := checkPlaced(footprint, f, b.buf); err != nil {
		core.LogError("headless dx12: %s", err)
		return
	}
	d.expectState(src, stateCopySource, "texture readback source")
	d.expectState(dst, stateCopyDest, "texture readback destination")
	mip, layer := subresource%t.info.mips, subresource/t.info.mips
	d.record(list, softgpu.OpCopy, func() {
		t.img.CopyToBuffer(b.buf.Data, f, mip, layer)
	})
}

func (d *softDriver) copyResource(list handle, dst, src handle) {
	s, t := lookup[*softResource](d, src), lookup[*softResource](d, dst)
	if s == nil || t == nil {
		core.LogError("headless dx12: copy between unknown resources")
		return
	}
	d.expectState(src, stateCopySource, "resource copy source")
	d.expectState(dst, stateCopyDest, "resource copy destination")
	switch {
	case s.img != nil && t.img != nil:
		d.record(list, softgpu.OpCopy, func() { softgpu.CopyImage(t.img, s.img) })
	case s.buf != nil && t.buf != nil:
		d.record(list, softgpu.OpCopy, func() { copy(t.buf.Data, s.buf.Data) })
	default:
		core.LogError("headless dx12: CopyResource between a buffer and a texture")
	}
}

func (d *softDriver) executeCommandLists(lists []handle) error {
	soft := make([]*softgpu.CommandList, 0, len(lists))
	allocs := make([]*softAllocator, 0, len(lists))
	d.mu.Lock()
	for _, h := range lists {
		l := lookup[*softList](d, h)
		if l == nil {
			d.mu.Unlock()
			return fmt.Errorf("%w: unknown command list", rhi.ErrInvalidArgument)
		}
		if l.open {
			d.mu.Unlock()
			return fmt.Errorf("%w: command list executed while open", rhi.ErrInvalidArgument)
		}
		soft = append(soft, l.list)
		allocs = append(allocs, l.alloc)
	}
	d.mu.Unlock()
	for _, a := range allocs {
		a.inFlight.Add(1)
	}
	if err := d.queue.Submit(soft...); err != nil {
		for _, a := range allocs {
			a.inFlight.Add(-1)
		}
		return err
	}
	return d.queue.Do(func() {
		for _, a := range allocs {
			a.inFlight.Add(-1)
		}
	})
}

func (d *softDriver) queueSignal(fence handle, value uint64) error {
	if d.failSignal.Load() > 0 && d.failSignal.Add(-1) == 0 {
		return fmt.Errorf("%w: injected signal failure", rhi.ErrDeviceLost)
	}
	f := lookup[*softgpu.Fence](d, fence)
	if f == nil {
		return fmt.Errorf("%w: unknown fence", rhi.ErrInvalidArgument)
	}
	return d.queue.Signal(f, value)
}

func (d *softDriver) queueWait(fence handle, value uint64) error {
	f := lookup[*softgpu.Fence](d, fence)
	if f == nil {
		return fmt.Errorf("%w: unknown fence", rhi.ErrInvalidArgument)
	}
	return d.queue.Wait(f, value)
}

func (d *softDriver) createFence(initial uint64) (handle, error) {
	return d.add(softgpu.NewFence(initial)), nil
}

func (d *softDriver) destroyFence(h handle) { d.remove(h) }

func (d *softDriver) completedValue(h handle) uint64 {
	f := lookup[*softgpu.Fence](d, h)
	if f == nil {
		// A removed device reports UINT64_MAX.
		return ^uint64(0)
	}
	return f.Completed()
}

func (d *softDriver) waitForValue(h handle, value, timeoutNs uint64) bool {
	f := lookup[*softgpu.Fence](d, h)
	if f == nil {
		return false
	}
	return f.Wait(value, softgpu.NanosToTimeout(timeoutNs))
}

// createSwapChain presents into the softgpu.Surface passed as window or a
// new one.
func (d *softDriver) createSwapChain(info swapchainInfo) (swapchainBuffers, error) {
	var surface *softgpu.Surface
	if s, ok := info.window.(*softgpu.Surface); ok {
		surface = s
	} else if info.window == nil {
		format := info.format
		if format == rhi.FormatUndefined {
			format = rhi.FormatBGRA8Unorm
		}
		surface = softgpu.NewSurface(format, info.width, info.height, info.count)
	} else {
		return swapchainBuffers{}, fmt.Errorf("%w: headless driver needs a *softgpu.Surface, got %T", rhi.ErrNoSurface, info.window)
	}
	sc := &softSwapChain{surface: surface}
	h := d.add(sc)
	return d.wrapSurface(h, sc, info.width, info.height, info.count), nil
}

func (d *softDriver) wrapSurface(h handle, sc *softSwapChain, width, height, count uint32) swapchainBuffers {
	images := sc.surface.Resize(width, height, count)
	out := swapchainBuffers{swapchain: h, format: images[0].Format, width: width, height: height}
	sc.buffers, sc.next = nil, 0
	for _, img := range images {
		b := d.add(&softResource{
			img: img,
			info: resourceInfo{
				dimension:        dimensionTexture2D,
				format:           img.Format,
				dxgi:             toDXGIFormat(img.Format),
				width:            uint64(img.Width),
				height:           img.Height,
				depthOrArraySize: 1,
				mips:             1,
				flags:            allowRenderTarget,
				heap:             heapDefault,
				state:            statePresent,
			},
			state: statePresent,
		})
		sc.buffers = append(sc.buffers, b)
	}
	out.buffers = append(out.buffers, sc.buffers...)
	return out
}

func (d *softDriver) resizeSwapChain(h handle, width, height, count uint32) (swapchainBuffers, error) {
	sc := lookup[*softSwapChain](d, h)
	if sc == nil {
		return swapchainBuffers{}, rhi.ErrDestroyed
	}
	for _, b := range sc.buffers {
		if lookup[*softResource](d, b) != nil {
			return swapchainBuffers{}, fmt.Errorf("%w: back buffer %d is still referenced", rhi.ErrInvalidArgument, b)
		}
	}
	return d.wrapSurface(h, sc, width, height, count), nil
}

func (d *softDriver) destroySwapChain(h handle) { d.remove(h) }

func (d *softDriver) currentBackBufferIndex(h handle) (uint32, error) {
	sc := lookup[*softSwapChain](d, h)
	if sc == nil {
		return 0, rhi.ErrDestroyed
	}
	if sc.surface.OutOfDate() {
		return 0, rhi.ErrOutOfDate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return sc.next, nil
}

func (d *softDriver) present(h handle, vsync bool) error {
	sc := lookup[*softSwapChain](d, h)
	if sc == nil {
		return rhi.ErrDestroyed
	}
	if sc.surface.OutOfDate() {
		return rhi.ErrOutOfDate
	}
	d.mu.Lock()
	index := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.buffers))
	buffer := sc.buffers[index]
	d.mu.Unlock()
	if s := d.resourceState(buffer); s != statePresent {
		d.layoutErrors.Add(1)
		core.LogWarn("headless dx12: presenting buffer %d in state %#x", index, s)
	}
	surface := sc.surface
	return d.queue.Do(func() {
		surface.Present(index)
		d.queue.Stats.Presents.Add(1)
	})
}

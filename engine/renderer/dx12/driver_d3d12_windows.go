//go:build windows

package dx12

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/gogpu/wgpu/hal/dx12/d3d12"
	"github.com/gogpu/wgpu/hal/dx12/dxgi"
	"github.com/spaghettifunk/rhi/engine/containers"
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
	"golang.org/x/sys/windows"
)

// win32Window is the part of a platform window the driver needs.
type win32Window interface {
	Win32Handle() uintptr
}

// hwndOf accepts a raw HWND or a window that exposes one.
func hwndOf(w any) (uintptr, bool) {
	switch v := w.(type) {
	case uintptr:
		return v, v != 0
	case windows.HWND:
		return uintptr(v), v != 0
	case win32Window:
		h := v.Win32Handle()
		return h, h != 0
	}
	return 0, false
}

type d3dResource struct {
	resource *d3d12.ID3D12Resource
	size     uint64
	mapped   []byte
}

type d3dHeap struct {
	heap *d3d12.ID3D12DescriptorHeap
}

type d3dSwapChain struct {
	swapchain *dxgi.IDXGISwapChain4
	hwnd      uintptr
	format    rhi.Format
	native    dxgi.DXGI_FORMAT
}

// d3d12Driver runs the driver interface on gogpu's d3d12 and dxgi
// bindings. COM objects live in a handle table so the backend only ever
// sees handles.
type d3d12Driver struct {
	lib     *d3d12.D3D12Lib
	factory *dxgi.IDXGIFactory4
	device  *d3d12.ID3D12Device
	queue   *d3d12.ID3D12CommandQueue

	// idle is signaled by waitIdle only.
	idle      *d3d12.ID3D12Fence
	idleValue uint64

	window     uintptr
	increments [heapDSV + 1]uint32
	objects    *containers.HandleTable
}

func newD3D12Driver(cfg rhi.DeviceConfig) (driver, error) {
	d := &d3d12Driver{objects: containers.NewHandleTable()}
	if cfg.Window != nil {
		hwnd, ok := hwndOf(cfg.Window)
		if !ok {
			return nil, fmt.Errorf("%w: %T has no HWND", rhi.ErrNoSurface, cfg.Window)
		}
		d.window = hwnd
	}

	lib, err := d3d12.LoadD3D12()
	if err != nil {
		return nil, fmt.Errorf("failed to load d3d12.dll: %w", err)
	}
	d.lib = lib
	if cfg.Debug {
		if dbg, err := lib.GetDebugInterface(); err == nil {
			dbg.EnableDebugLayer()
			dbg.Release()
			core.LogDebug("D3D12 debug layer enabled.")
		} else {
			core.LogWarn("D3D12 debug layer unavailable: %s", err)
		}
	}

	dxgiLib, err := dxgi.LoadDXGI()
	if err != nil {
		return nil, fmt.Errorf("failed to load dxgi.dll: %w", err)
	}
	if d.factory, err = dxgiLib.CreateFactory4(0); err != nil {
		return nil, fmt.Errorf("failed to create the DXGI factory: %w", err)
	}
	if d.device, err = lib.CreateDevice(nil, d3d12.D3D_FEATURE_LEVEL_11_0); err != nil {
		d.destroy()
		return nil, fmt.Errorf("failed to create the D3D12 device: %w", err)
	}
	d.queue, err = d.device.CreateCommandQueue(&d3d12.D3D12_COMMAND_QUEUE_DESC{Type: d3d12.D3D12_COMMAND_LIST_TYPE_DIRECT})
	if err != nil {
		d.destroy()
		return nil, fmt.Errorf("failed to create the direct queue: %w", err)
	}
	if d.idle, err = d.device.CreateFence(0, d3d12.D3D12_FENCE_FLAG_NONE); err != nil {
		d.destroy()
		return nil, fmt.Errorf("failed to create the idle fence: %w", err)
	}
	for k := heapCbvSrvUav; k <= heapDSV; k++ {
		d.increments[k] = d.device.GetDescriptorHandleIncrementSize(d3d12.D3D12_DESCRIPTOR_HEAP_TYPE(k))
	}
	core.LogDebug("D3D12 device created.")
	return d, nil
}

func (d *d3d12Driver) name() string { return "d3d12" }

func (d *d3d12Driver) add(obj interface{}) handle {
	return handle(d.objects.Add(obj))
}

func native[T any](d *d3d12Driver, h handle) T {
	v, _ := containers.Lookup[T](d.objects, uint64(h))
	return v
}

func take[T any](d *d3d12Driver, h handle) (T, bool) {
	v, ok := containers.Lookup[T](d.objects, uint64(h))
	if ok {
		d.objects.Remove(uint64(h))
	}
	return v, ok
}

func resourceOf(d *d3d12Driver, h handle) *d3d12.ID3D12Resource {
	if r := native[*d3dResource](d, h); r != nil {
		return r.resource
	}
	return nil
}

func (d *d3d12Driver) waitIdle() {
	if d.queue == nil {
		return
	}
	d.idleValue++
	if err := d.queue.Signal(d.idle, d.idleValue); err != nil {
		core.LogError("failed to signal the idle fence: %s", err)
		return
	}
	if !waitFence(d.idle, d.idleValue, rhi.InfiniteTimeout) {
		core.LogError("idle fence wait failed")
	}
}

func (d *d3d12Driver) destroy() {
	if d.queue != nil {
		d.waitIdle()
	}
	if n := d.objects.Len(); n > 0 {
		core.LogWarn("d3d12 driver destroyed with %d native objects alive", n)
	}
	if d.idle != nil {
		d.idle.Release()
		d.idle = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		core.LogDebug("Destroying D3D12 device...")
		d.device.Release()
		d.device = nil
	}
	if d.factory != nil {
		d.factory.Release()
		d.factory = nil
	}
}

// waitFence blocks on a fresh event until f reaches value. One event per
// wait keeps concurrent waiters apart.
func waitFence(f *d3d12.ID3D12Fence, value, timeoutNs uint64) bool {
	if f.GetCompletedValue() >= value {
		return true
	}
	if timeoutNs == 0 {
		return false
	}
	event, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		core.LogError("failed to create a fence event: %s", err)
		return false
	}
	defer windows.CloseHandle(event)
	if err := f.SetEventOnCompletion(value, uintptr(event)); err != nil {
		core.LogError("failed to arm the fence event: %s", err)
		return false
	}
	ms := uint32(windows.INFINITE)
	if timeoutNs != rhi.InfiniteTimeout {
		ms = uint32(min(timeoutNs/1_000_000, uint64(windows.INFINITE-1)))
	}
	ev, err := windows.WaitForSingleObject(event, ms)
	if err != nil {
		core.LogError("fence wait failed: %s", err)
		return false
	}
	return ev == windows.WAIT_OBJECT_0 || f.GetCompletedValue() >= value
}

func (d *d3d12Driver) createCommittedResource(info resourceInfo) (handle, error) {
	props := d3d12.D3D12_HEAP_PROPERTIES{Type: d3d12.D3D12_HEAP_TYPE(info.heap)}
	desc := d3d12.D3D12_RESOURCE_DESC{
		Dimension:        d3d12.D3D12_RESOURCE_DIMENSION(info.dimension),
		Width:            info.width,
		Height:           info.height,
		DepthOrArraySize: uint16(info.depthOrArraySize),
		MipLevels:        uint16(info.mips),
		Format:           d3d12.DXGI_FORMAT(info.dxgi),
		SampleDesc:       d3d12.DXGI_SAMPLE_DESC{Count: 1},
		Flags:            d3d12.D3D12_RESOURCE_FLAGS(info.flags),
	}
	if info.dimension == dimensionBuffer {
		desc.Layout = d3d12.D3D12_TEXTURE_LAYOUT_ROW_MAJOR
	}
	var clear *d3d12.D3D12_CLEAR_VALUE
	if info.hasClear {
		// The clear value names the view format, not the typeless one.
		cv := d3d12.D3D12_CLEAR_VALUE{Format: d3d12.DXGI_FORMAT(toDXGIFormat(info.format))}
		if info.format.IsDepth() {
			cv.SetDepthStencil(info.clear.Depth, uint8(info.clear.Stencil))
		} else {
			cv.SetColor(info.clear.Color)
		}
		clear = &cv
	}
	res, err := d.device.CreateCommittedResource(&props, d3d12.D3D12_HEAP_FLAG_NONE, &desc, d3d12.D3D12_RESOURCE_STATES(info.state), clear)
	if err != nil {
		return 0, err
	}
	return d.add(&d3dResource{resource: res, size: info.width}), nil
}

func (d *d3d12Driver) destroyResource(h handle) {
	r, ok := take[*d3dResource](d, h)
	if !ok {
		return
	}
	if r.mapped != nil {
		r.resource.Unmap(0, nil)
	}
	r.resource.Release()
}

func (d *d3d12Driver) mapResource(h handle) ([]byte, error) {
	r := native[*d3dResource](d, h)
	if r == nil {
		return nil, rhi.ErrDestroyed
	}
	if r.mapped != nil {
		return r.mapped, nil
	}
	p, err := r.resource.Map(0, nil)
	if err != nil {
		return nil, err
	}
	r.mapped = unsafe.Slice((*byte)(p), r.size)
	return r.mapped, nil
}

func (d *d3d12Driver) unmapResource(h handle) {
	r := native[*d3dResource](d, h)
	if r == nil || r.mapped == nil {
		return
	}
	r.resource.Unmap(0, nil)
	r.mapped = nil
}

func (d *d3d12Driver) createDescriptorHeap(kind heapKind, capacity uint32, shaderVisible bool) (heapInfo, error) {
	desc := d3d12.D3D12_DESCRIPTOR_HEAP_DESC{
		Type:           d3d12.D3D12_DESCRIPTOR_HEAP_TYPE(kind),
		NumDescriptors: capacity,
	}
	if shaderVisible {
		desc.Flags = d3d12.D3D12_DESCRIPTOR_HEAP_FLAG_SHADER_VISIBLE
	}
	heap, err := d.device.CreateDescriptorHeap(&desc)
	if err != nil {
		return heapInfo{}, err
	}
	info := heapInfo{
		handle:    d.add(&d3dHeap{heap: heap}),
		cpuStart:  cpuDescriptor(heap.GetCPUDescriptorHandleForHeapStart().Ptr),
		increment: d.increments[kind],
	}
	if shaderVisible {
		info.gpuStart = gpuDescriptor(heap.GetGPUDescriptorHandleForHeapStart().Ptr)
	}
	return info, nil
}

func (d *d3d12Driver) destroyDescriptorHeap(h handle) {
	if heap, ok := take[*d3dHeap](d, h); ok {
		heap.heap.Release()
	}
}

// uavDesc is D3D12_UNORDERED_ACCESS_VIEW_DESC with the full union. The
// binding's union stops short of the buffer view's counter offset and
// flags.
type uavDesc struct {
	format    d3d12.DXGI_FORMAT
	dimension d3d12.D3D12_UAV_DIMENSION
	union     [4]uint64
}

// dsvDesc is D3D12_DEPTH_STENCIL_VIEW_DESC with room for a 2D array view.
type dsvDesc struct {
	format    d3d12.DXGI_FORMAT
	dimension d3d12.D3D12_DSV_DIMENSION
	flags     d3d12.D3D12_DSV_FLAGS
	union     [3]uint32
}

// bufferUAVRaw is D3D12_BUFFER_UAV_FLAG_RAW.
const bufferUAVRaw = 1

func (d *d3d12Driver) createView(info viewInfo, dst cpuDescriptor) {
	res := resourceOf(d, info.resource)
	if res == nil {
		core.LogError("d3d12: view of unknown resource %d", info.resource)
		return
	}
	to := d3d12.D3D12_CPU_DESCRIPTOR_HANDLE{Ptr: uintptr(dst)}
	format := d3d12.DXGI_FORMAT(info.format)
	arrayed := info.layers > 1
	switch info.kind {
	case viewCBV:
		d.device.CreateConstantBufferView(&d3d12.D3D12_CONSTANT_BUFFER_VIEW_DESC{
			BufferLocation: res.GetGPUVirtualAddress() + info.offset,
			SizeInBytes:    uint32(core.AlignUp(info.size, 256)),
		}, to)
	case viewRTV:
		desc := d3d12.D3D12_RENDER_TARGET_VIEW_DESC{Format: format}
		switch {
		case info.textureType == rhi.Texture1D:
			desc.SetTexture1D(0)
		case info.textureType == rhi.Texture3D:
			desc.SetTexture3D(0, 0, ^uint32(0))
		case arrayed || info.textureType == rhi.TextureCube:
			desc.SetTexture2DArray(0, 0, info.layers, 0)
		default:
			desc.SetTexture2D(0, 0)
		}
		d.device.CreateRenderTargetView(res, &desc, to)
	case viewDSV:
		desc := dsvDesc{format: format, dimension: d3d12.D3D12_DSV_DIMENSION_TEXTURE2D}
		if arrayed || info.textureType == rhi.TextureCube {
			desc.dimension = d3d12.D3D12_DSV_DIMENSION_TEXTURE2DARRAY
			desc.union = [3]uint32{0, 0, info.layers}
		}
		d.device.CreateDepthStencilView(res, (*d3d12.D3D12_DEPTH_STENCIL_VIEW_DESC)(unsafe.Pointer(&desc)), to)
	case viewSRV:
		desc := d3d12.D3D12_SHADER_RESOURCE_VIEW_DESC{
			Format:                  format,
			Shader4ComponentMapping: d3d12.D3D12_DEFAULT_SHADER_4_COMPONENT_MAPPING,
		}
		switch {
		case info.textureType == rhi.Texture1D:
			desc.SetTexture1D(0, info.mips, 0)
		case info.textureType == rhi.Texture3D:
			desc.SetTexture3D(0, info.mips, 0)
		case info.textureType == rhi.TextureCube:
			desc.SetTextureCube(0, info.mips, 0)
		case arrayed:
			desc.SetTexture2DArray(0, info.mips, 0, info.layers, 0, 0)
		default:
			desc.SetTexture2D(0, info.mips, 0, 0)
		}
		d.device.CreateShaderResourceView(res, &desc, to)
	case viewUAV:
		var desc uavDesc
		switch {
		case info.size > 0 && info.stride > 0:
			desc.dimension = d3d12.D3D12_UAV_DIMENSION_BUFFER
			desc.union[0] = info.offset / uint64(info.stride)
			desc.union[1] = info.size/uint64(info.stride) | uint64(info.stride)<<32
		case info.size > 0:
			desc.format = d3d12.DXGI_FORMAT_R32_TYPELESS
			desc.dimension = d3d12.D3D12_UAV_DIMENSION_BUFFER
			desc.union[0] = info.offset / 4
			desc.union[1] = info.size / 4
			desc.union[3] = bufferUAVRaw
		case info.textureType == rhi.Texture1D:
			desc.format = format
			desc.dimension = d3d12.D3D12_UAV_DIMENSION_TEXTURE1D
		case info.textureType == rhi.Texture3D:
			desc.format = format
			desc.dimension = d3d12.D3D12_UAV_DIMENSION_TEXTURE3D
			desc.union[1] = uint64(^uint32(0))
		case arrayed || info.textureType == rhi.TextureCube:
			desc.format = format
			desc.dimension = d3d12.D3D12_UAV_DIMENSION_TEXTURE2DARRAY
			desc.union[1] = uint64(info.layers)
		default:
			desc.format = format
			desc.dimension = d3d12.D3D12_UAV_DIMENSION_TEXTURE2D
		}
		d.device.CreateUnorderedAccessView(res, nil, (*d3d12.D3D12_UNORDERED_ACCESS_VIEW_DESC)(unsafe.Pointer(&desc)), to)
	}
}

func (d *d3d12Driver) createSampler(info samplerInfo, dst cpuDescriptor) {
	cmp := d3d12.D3D12_COMPARISON_FUNC(info.comparison)
	if cmp == 0 {
		cmp = d3d12.D3D12_COMPARISON_FUNC_NEVER
	}
	d.device.CreateSampler(&d3d12.D3D12_SAMPLER_DESC{
		Filter:         d3d12.D3D12_FILTER(info.filter),
		AddressU:       d3d12.D3D12_TEXTURE_ADDRESS_MODE(info.addressU),
		AddressV:       d3d12.D3D12_TEXTURE_ADDRESS_MODE(info.addressV),
		AddressW:       d3d12.D3D12_TEXTURE_ADDRESS_MODE(info.addressW),
		MaxAnisotropy:  info.maxAnisotropy,
		ComparisonFunc: cmp,
		MinLOD:         info.minLod,
		MaxLOD:         info.maxLod,
	}, d3d12.D3D12_CPU_DESCRIPTOR_HANDLE{Ptr: uintptr(dst)})
}

func (d *d3d12Driver) copyDescriptors(kind heapKind, dst, src cpuDescriptor, n uint32) {
	d.device.CopyDescriptorsSimple(n,
		d3d12.D3D12_CPU_DESCRIPTOR_HANDLE{Ptr: uintptr(dst)},
		d3d12.D3D12_CPU_DESCRIPTOR_HANDLE{Ptr: uintptr(src)},
		d3d12.D3D12_DESCRIPTOR_HEAP_TYPE(kind))
}

func (d *d3d12Driver) createRootSignature(info rootSignatureInfo) (handle, error) {
	params := make([]d3d12.D3D12_ROOT_PARAMETER, 0, len(info.tables)+1)
	ranges := make([][]d3d12.D3D12_DESCRIPTOR_RANGE, len(info.tables))
	for i, t := range info.tables {
		ranges[i] = make([]d3d12.D3D12_DESCRIPTOR_RANGE, len(t.ranges))
		for j, r := range t.ranges {
			ranges[i][j] = d3d12.D3D12_DESCRIPTOR_RANGE{
				RangeType:                         d3d12.D3D12_DESCRIPTOR_RANGE_TYPE(r.kind),
				NumDescriptors:                    r.count,
				BaseShaderRegister:                r.register,
				RegisterSpace:                     r.space,
				OffsetInDescriptorsFromTableStart: r.offset,
			}
		}
		p := d3d12.D3D12_ROOT_PARAMETER{
			ParameterType:    d3d12.D3D12_ROOT_PARAMETER_TYPE_DESCRIPTOR_TABLE,
			ShaderVisibility: d3d12.D3D12_SHADER_VISIBILITY_ALL,
		}
		table := (*d3d12.D3D12_ROOT_DESCRIPTOR_TABLE)(unsafe.Pointer(&p.Union[0]))
		table.NumDescriptorRanges = uint32(len(ranges[i]))
		if len(ranges[i]) > 0 {
			table.DescriptorRanges = &ranges[i][0]
		}
		params = append(params, p)
	}
	if info.constants > 0 {
		p := d3d12.D3D12_ROOT_PARAMETER{
			ParameterType:    d3d12.D3D12_ROOT_PARAMETER_TYPE_32BIT_CONSTANTS,
			ShaderVisibility: d3d12.D3D12_SHADER_VISIBILITY_ALL,
		}
		*(*d3d12.D3D12_ROOT_CONSTANTS)(unsafe.Pointer(&p.Union[0])) = d3d12.D3D12_ROOT_CONSTANTS{
			RegisterSpace:  info.constantsSpace,
			Num32BitValues: info.constants,
		}
		params = append(params, p)
	}
	desc := d3d12.D3D12_ROOT_SIGNATURE_DESC{
		NumParameters: uint32(len(params)),
		Flags:         d3d12.D3D12_ROOT_SIGNATURE_FLAG_ALLOW_INPUT_ASSEMBLER_INPUT_LAYOUT,
	}
	if len(params) > 0 {
		desc.Parameters = &params[0]
	}
	blob, errBlob, err := d.lib.SerializeRootSignature(&desc, d3d12.D3D_ROOT_SIGNATURE_VERSION_1_0)
	runtime.KeepAlive(ranges)
	if err != nil {
		if errBlob != nil {
			msg := unsafe.String((*byte)(errBlob.GetBufferPointer()), int(errBlob.GetBufferSize()))
			errBlob.Release()
			return 0, fmt.Errorf("failed to serialize root signature: %w: %s", err, msg)
		}
		return 0, fmt.Errorf("failed to serialize root signature: %w", err)
	}
	defer blob.Release()
	root, err := d.device.CreateRootSignature(0, blob.GetBufferPointer(), blob.GetBufferSize())
	if err != nil {
		return 0, err
	}
	return d.add(root), nil
}

func (d *d3d12Driver) destroyRootSignature(h handle) {
	if root, ok := take[*d3d12.ID3D12RootSignature](d, h); ok {
		root.Release()
	}
}

func bytecode(code []byte) d3d12.D3D12_SHADER_BYTECODE {
	if len(code) == 0 {
		return d3d12.D3D12_SHADER_BYTECODE{}
	}
	return d3d12.D3D12_SHADER_BYTECODE{ShaderBytecode: unsafe.Pointer(&code[0]), BytecodeLength: uintptr(len(code))}
}

func boolean(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (d *d3d12Driver) createGraphicsPipelineState(info pipelineInfo) (handle, error) {
	root := native[*d3d12.ID3D12RootSignature](d, info.rootSignature)
	if root == nil {
		return 0, fmt.Errorf("%w: root signature %d", rhi.ErrDestroyed, info.rootSignature)
	}
	names := make([][]byte, len(info.inputs))
	elements := make([]d3d12.D3D12_INPUT_ELEMENT_DESC, len(info.inputs))
	for i, e := range info.inputs {
		names[i] = append([]byte(e.semantic), 0)
		elements[i] = d3d12.D3D12_INPUT_ELEMENT_DESC{
			SemanticName:      &names[i][0],
			SemanticIndex:     e.index,
			Format:            d3d12.DXGI_FORMAT(e.format),
			InputSlot:         e.slot,
			AlignedByteOffset: e.offset,
		}
		if e.perInstance {
			elements[i].InputSlotClass = d3d12.D3D12_INPUT_CLASSIFICATION_PER_INSTANCE_DATA
			elements[i].InstanceDataStepRate = 1
		}
	}

	desc := d3d12.D3D12_GRAPHICS_PIPELINE_STATE_DESC{
		RootSignature: root,
		VS:            bytecode(info.vs),
		PS:            bytecode(info.ps),
		SampleMask:    0xffffffff,
		RasterizerState: d3d12.D3D12_RASTERIZER_DESC{
			FillMode:              d3d12.D3D12_FILL_MODE_SOLID,
			CullMode:              d3d12.D3D12_CULL_MODE(info.cullMode),
			FrontCounterClockwise: boolean(info.frontCCW),
			DepthClipEnable:       1,
			ConservativeRaster:    d3d12.D3D12_CONSERVATIVE_RASTERIZATION_MODE_OFF,
		},
		DepthStencilState: d3d12.D3D12_DEPTH_STENCIL_DESC{
			DepthEnable:    boolean(info.depthTest),
			DepthWriteMask: d3d12.D3D12_DEPTH_WRITE_MASK_ZERO,
			DepthFunc:      d3d12.D3D12_COMPARISON_FUNC(info.depthFunc),
		},
		PrimitiveTopologyType: d3d12.D3D12_PRIMITIVE_TOPOLOGY_TYPE(info.topologyType),
		NumRenderTargets:      uint32(len(info.rtvFormats)),
		DSVFormat:             d3d12.DXGI_FORMAT(info.dsvFormat),
		SampleDesc:            d3d12.DXGI_SAMPLE_DESC{Count: 1},
	}
	if info.wireframe {
		desc.RasterizerState.FillMode = d3d12.D3D12_FILL_MODE_WIREFRAME
	}
	if info.depthWrite {
		desc.DepthStencilState.DepthWriteMask = d3d12.D3D12_DEPTH_WRITE_MASK_ALL
	}
	if desc.DepthStencilState.DepthFunc == 0 {
		desc.DepthStencilState.DepthFunc = d3d12.D3D12_COMPARISON_FUNC_ALWAYS
	}
	keep := d3d12.D3D12_DEPTH_STENCILOP_DESC{
		StencilFailOp:      d3d12.D3D12_STENCIL_OP_KEEP,
		StencilDepthFailOp: d3d12.D3D12_STENCIL_OP_KEEP,
		StencilPassOp:      d3d12.D3D12_STENCIL_OP_KEEP,
		StencilFunc:        d3d12.D3D12_COMPARISON_FUNC_ALWAYS,
	}
	desc.DepthStencilState.FrontFace, desc.DepthStencilState.BackFace = keep, keep
	if len(elements) > 0 {
		desc.InputLayout = d3d12.D3D12_INPUT_LAYOUT_DESC{InputElementDescs: &elements[0], NumElements: uint32(len(elements))}
	}
	for i, f := range info.rtvFormats {
		desc.RTVFormats[i] = d3d12.DXGI_FORMAT(f)
		desc.BlendState.RenderTarget[i] = d3d12.D3D12_RENDER_TARGET_BLEND_DESC{
			BlendEnable:           boolean(info.blend),
			SrcBlend:              d3d12.D3D12_BLEND_SRC_ALPHA,
			DestBlend:             d3d12.D3D12_BLEND_INV_SRC_ALPHA,
			BlendOp:               d3d12.D3D12_BLEND_OP_ADD,
			SrcBlendAlpha:         d3d12.D3D12_BLEND_ONE,
			DestBlendAlpha:        d3d12.D3D12_BLEND_INV_SRC_ALPHA,
			BlendOpAlpha:          d3d12.D3D12_BLEND_OP_ADD,
			LogicOp:               d3d12.D3D12_LOGIC_OP_NOOP,
			RenderTargetWriteMask: uint8(d3d12.D3D12_COLOR_WRITE_ENABLE_ALL),
		}
	}

	pso, err := d.device.CreateGraphicsPipelineState(&desc)
	runtime.KeepAlive(names)
	runtime.KeepAlive(info.vs)
	runtime.KeepAlive(info.ps)
	if err != nil {
		return 0, err
	}
	return d.add(pso), nil
}

func (d *d3d12Driver) destroyPipelineState(h handle) {
	if pso, ok := take[*d3d12.ID3D12PipelineState](d, h); ok {
		pso.Release()
	}
}

func (d *d3d12Driver) createCommandAllocator() (handle, error) {
	alloc, err := d.device.CreateCommandAllocator(d3d12.D3D12_COMMAND_LIST_TYPE_DIRECT)
	if err != nil {
		return 0, err
	}
	return d.add(alloc), nil
}

func (d *d3d12Driver) resetCommandAllocator(h handle) error {
	alloc := native[*d3d12.ID3D12CommandAllocator](d, h)
	if alloc == nil {
		return rhi.ErrDestroyed
	}
	return alloc.Reset()
}

func (d *d3d12Driver) destroyCommandAllocator(h handle) {
	if alloc, ok := take[*d3d12.ID3D12CommandAllocator](d, h); ok {
		alloc.Release()
	}
}

func (d *d3d12Driver) createCommandList(alloc handle) (handle, error) {
	a := native[*d3d12.ID3D12CommandAllocator](d, alloc)
	if a == nil {
		return 0, rhi.ErrDestroyed
	}
	list, err := d.device.CreateCommandList(0, d3d12.D3D12_COMMAND_LIST_TYPE_DIRECT, a, nil)
	if err != nil {
		return 0, err
	}
	return d.add(list), nil
}

func (d *d3d12Driver) resetCommandList(list, alloc handle) error {
	l := native[*d3d12.ID3D12GraphicsCommandList](d, list)
	a := native[*d3d12.ID3D12CommandAllocator](d, alloc)
	if l == nil || a == nil {
		return rhi.ErrDestroyed
	}
	return l.Reset(a, nil)
}

func (d *d3d12Driver) closeCommandList(list handle) error {
	l := native[*d3d12.ID3D12GraphicsCommandList](d, list)
	if l == nil {
		return rhi.ErrDestroyed
	}
	return l.Close()
}

func (d *d3d12Driver) destroyCommandList(list handle) {
	if l, ok := take[*d3d12.ID3D12GraphicsCommandList](d, list); ok {
		l.Release()
	}
}

func (d *d3d12Driver) executeCommandLists(lists []handle) error {
	if len(lists) == 0 {
		return nil
	}
	ls := make([]*d3d12.ID3D12GraphicsCommandList, len(lists))
	for i, h := range lists {
		if ls[i] = native[*d3d12.ID3D12GraphicsCommandList](d, h); ls[i] == nil {
			return fmt.Errorf("%w: command list %d", rhi.ErrDestroyed, h)
		}
	}
	d.queue.ExecuteCommandLists(uint32(len(ls)), &ls[0])
	if err := d.device.GetDeviceRemovedReason(); err != nil {
		return fmt.Errorf("%w: %s", rhi.ErrDeviceLost, err)
	}
	return nil
}

func (d *d3d12Driver) queueSignal(fence handle, value uint64) error {
	f := native[*d3d12.ID3D12Fence](d, fence)
	if f == nil {
		return rhi.ErrDestroyed
	}
	return d.queue.Signal(f, value)
}

func (d *d3d12Driver) queueWait(fence handle, value uint64) error {
	f := native[*d3d12.ID3D12Fence](d, fence)
	if f == nil {
		return rhi.ErrDestroyed
	}
	return d.queue.Wait(f, value)
}

func (d *d3d12Driver) createFence(initial uint64) (handle, error) {
	f, err := d.device.CreateFence(initial, d3d12.D3D12_FENCE_FLAG_NONE)
	if err != nil {
		return 0, err
	}
	return d.add(f), nil
}

func (d *d3d12Driver) destroyFence(h handle) {
	if f, ok := take[*d3d12.ID3D12Fence](d, h); ok {
		f.Release()
	}
}

func (d *d3d12Driver) completedValue(h handle) uint64 {
	f := native[*d3d12.ID3D12Fence](d, h)
	if f == nil {
		return ^uint64(0)
	}
	return f.GetCompletedValue()
}

func (d *d3d12Driver) waitForValue(h handle, value, timeoutNs uint64) bool {
	f := native[*d3d12.ID3D12Fence](d, h)
	if f == nil {
		return true
	}
	return waitFence(f, value, timeoutNs)
}

// linearFormat is the buffer format of a flip model swap chain; sRGB only
// exists on the render target views.
func linearFormat(f dxgiFormat) dxgiFormat {
	switch f {
	case formatR8G8B8A8UnormSrgb:
		return formatR8G8B8A8Unorm
	case formatB8G8R8A8UnormSrgb:
		return formatB8G8R8A8Unorm
	}
	return f
}

func (d *d3d12Driver) createSwapChain(info swapchainInfo) (swapchainBuffers, error) {
	hwnd, ok := hwndOf(info.window)
	if !ok {
		if info.window != nil || d.window == 0 {
			return swapchainBuffers{}, fmt.Errorf("%w: %T has no HWND", rhi.ErrNoSurface, info.window)
		}
		hwnd = d.window
	}
	format := info.format
	if format == rhi.FormatUndefined {
		format = rhi.FormatBGRA8Unorm
	}
	sc := &d3dSwapChain{
		hwnd:   hwnd,
		format: format,
		native: dxgi.DXGI_FORMAT(linearFormat(toDXGIFormat(format))),
	}
	sc1, err := d.factory.CreateSwapChainForHwnd(unsafe.Pointer(d.queue), hwnd, &dxgi.DXGI_SWAP_CHAIN_DESC1{
		Width:       info.width,
		Height:      info.height,
		Format:      sc.native,
		SampleDesc:  dxgi.DXGI_SAMPLE_DESC{Count: 1},
		BufferUsage: dxgi.DXGI_USAGE_RENDER_TARGET_OUTPUT,
		BufferCount: info.count,
		Scaling:     dxgi.DXGI_SCALING_STRETCH,
		SwapEffect:  dxgi.DXGI_SWAP_EFFECT_FLIP_DISCARD,
		AlphaMode:   dxgi.DXGI_ALPHA_MODE_UNSPECIFIED,
	}, nil, nil)
	if err != nil {
		return swapchainBuffers{}, err
	}
	if err := d.factory.MakeWindowAssociation(hwnd, dxgi.DXGI_MWA_NO_ALT_ENTER); err != nil {
		core.LogWarn("failed to disable alt+enter: %s", err)
	}
	sc.swapchain, err = sc1.QueryInterface()
	sc1.Release()
	if err != nil {
		return swapchainBuffers{}, fmt.Errorf("IDXGISwapChain4 unavailable: %w", err)
	}
	h := d.add(sc)
	out, err := d.buffers(h, sc, info.width, info.height, info.count)
	if err != nil {
		d.destroySwapChain(h)
		return swapchainBuffers{}, err
	}
	return out, nil
}

func (d *d3d12Driver) buffers(h handle, sc *d3dSwapChain, width, height, count uint32) (swapchainBuffers, error) {
	out := swapchainBuffers{swapchain: h, format: sc.format, width: width, height: height}
	iid := dxgi.GUID(d3d12.IID_ID3D12Resource)
	for i := uint32(0); i < count; i++ {
		p, err := sc.swapchain.GetBuffer(i, &iid)
		if err != nil {
			for _, b := range out.buffers {
				d.destroyResource(b)
			}
			return swapchainBuffers{}, fmt.Errorf("failed to get swapchain buffer %d: %w", i, err)
		}
		out.buffers = append(out.buffers, d.add(&d3dResource{resource: (*d3d12.ID3D12Resource)(p)}))
	}
	return out, nil
}

func (d *d3d12Driver) resizeSwapChain(h handle, width, height, count uint32) (swapchainBuffers, error) {
	sc := native[*d3dSwapChain](d, h)
	if sc == nil {
		return swapchainBuffers{}, rhi.ErrDestroyed
	}
	if err := sc.swapchain.ResizeBuffers(count, width, height, sc.native, 0); err != nil {
		if dxgi.IsDeviceRemovedError(err) {
			return swapchainBuffers{}, fmt.Errorf("%w: %s", rhi.ErrDeviceLost, err)
		}
		return swapchainBuffers{}, err
	}
	return d.buffers(h, sc, width, height, count)
}

func (d *d3d12Driver) destroySwapChain(h handle) {
	if sc, ok := take[*d3dSwapChain](d, h); ok {
		sc.swapchain.Release()
	}
}

func (d *d3d12Driver) currentBackBufferIndex(h handle) (uint32, error) {
	sc := native[*d3dSwapChain](d, h)
	if sc == nil {
		return 0, rhi.ErrDestroyed
	}
	return sc.swapchain.GetCurrentBackBufferIndex(), nil
}

func (d *d3d12Driver) present(h handle, vsync bool) error {
	sc := native[*d3dSwapChain](d, h)
	if sc == nil {
		return rhi.ErrDestroyed
	}
	var interval uint32
	if vsync {
		interval = 1
	}
	err := sc.swapchain.Present(interval, 0)
	switch {
	case err == nil, dxgi.IsOccluded(err):
		return nil
	case dxgi.IsDeviceRemovedError(err):
		return fmt.Errorf("%w: %s", rhi.ErrDeviceLost, err)
	}
	return err
}

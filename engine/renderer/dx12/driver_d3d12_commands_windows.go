//go:build windows

package dx12

import (
	"github.com/gogpu/wgpu/hal/dx12/d3d12"
	"github.com/spaghettifunk/rhi/engine/core"
)

func (d *d3d12Driver) list(h handle) *d3d12.ID3D12GraphicsCommandList {
	l := native[*d3d12.ID3D12GraphicsCommandList](d, h)
	if l == nil {
		core.LogError("d3d12: command recorded on unknown list %d", h)
	}
	return l
}

func cpuHandle(h cpuDescriptor) d3d12.D3D12_CPU_DESCRIPTOR_HANDLE {
	return d3d12.D3D12_CPU_DESCRIPTOR_HANDLE{Ptr: uintptr(h)}
}

func (d *d3d12Driver) resourceBarrier(list handle, barriers []transition) {
	l := d.list(list)
	if l == nil || len(barriers) == 0 {
		return
	}
	out := make([]d3d12.D3D12_RESOURCE_BARRIER, 0, len(barriers))
	for _, b := range barriers {
		res := resourceOf(d, b.resource)
		if res == nil {
			core.LogError("d3d12: barrier on unknown resource %d", b.resource)
			continue
		}
		out = append(out, d3d12.NewTransitionBarrier(res,
			d3d12.D3D12_RESOURCE_STATES(b.before),
			d3d12.D3D12_RESOURCE_STATES(b.after),
			b.subresource))
	}
	if len(out) > 0 {
		l.ResourceBarrier(uint32(len(out)), &out[0])
	}
}

func (d *d3d12Driver) setRenderTargets(list handle, rtvs []cpuDescriptor, dsv cpuDescriptor, hasDSV bool) {
	l := d.list(list)
	if l == nil {
		return
	}
	handles := make([]d3d12.D3D12_CPU_DESCRIPTOR_HANDLE, len(rtvs))
	for i, h := range rtvs {
		handles[i] = cpuHandle(h)
	}
	var first, depth *d3d12.D3D12_CPU_DESCRIPTOR_HANDLE
	if len(handles) > 0 {
		first = &handles[0]
	}
	if hasDSV {
		h := cpuHandle(dsv)
		depth = &h
	}
	l.OMSetRenderTargets(uint32(len(handles)), first, 0, depth)
}

func (d *d3d12Driver) clearRenderTarget(list handle, rtv cpuDescriptor, color [4]float32) {
	if l := d.list(list); l != nil {
		l.ClearRenderTargetView(cpuHandle(rtv), &color, 0, nil)
	}
}

func (d *d3d12Driver) clearDepthStencil(list handle, dsv cpuDescriptor, flags uint32, depth float32, stencil uint8) {
	if l := d.list(list); l != nil {
		l.ClearDepthStencilView(cpuHandle(dsv), d3d12.D3D12_CLEAR_FLAGS(flags), depth, stencil, 0, nil)
	}
}

func (d *d3d12Driver) setPipelineState(list, pso handle) {
	l := d.list(list)
	p := native[*d3d12.ID3D12PipelineState](d, pso)
	if l != nil && p != nil {
		l.SetPipelineState(p)
	}
}

func (d *d3d12Driver) setRootSignature(list, root handle) {
	l := d.list(list)
	r := native[*d3d12.ID3D12RootSignature](d, root)
	if l != nil && r != nil {
		l.SetGraphicsRootSignature(r)
	}
}

func (d *d3d12Driver) setDescriptorHeaps(list handle, heaps []handle) {
	l := d.list(list)
	if l == nil || len(heaps) == 0 {
		return
	}
	out := make([]*d3d12.ID3D12DescriptorHeap, 0, len(heaps))
	for _, h := range heaps {
		if heap := native[*d3dHeap](d, h); heap != nil {
			out = append(out, heap.heap)
		}
	}
	if len(out) > 0 {
		l.SetDescriptorHeaps(uint32(len(out)), &out[0])
	}
}

func (d *d3d12Driver) setRootDescriptorTable(list handle, index uint32, base gpuDescriptor) {
	if l := d.list(list); l != nil {
		l.SetGraphicsRootDescriptorTable(index, d3d12.D3D12_GPU_DESCRIPTOR_HANDLE{Ptr: uint64(base)})
	}
}

func (d *d3d12Driver) setViewport(list handle, v viewport) {
	if l := d.list(list); l != nil {
		l.RSSetViewports(1, &d3d12.D3D12_VIEWPORT{
			TopLeftX: v.x,
			TopLeftY: v.y,
			Width:    v.width,
			Height:   v.height,
			MinDepth: v.minDepth,
			MaxDepth: v.maxDepth,
		})
	}
}

func (d *d3d12Driver) setScissor(list handle, r rect) {
	if l := d.list(list); l != nil {
		l.RSSetScissorRects(1, &d3d12.D3D12_RECT{Left: r.left, Top: r.top, Right: r.right, Bottom: r.bottom})
	}
}

func (d *d3d12Driver) setPrimitiveTopology(list handle, topology uint32) {
	if l := d.list(list); l != nil {
		l.IASetPrimitiveTopology(d3d12.D3D_PRIMITIVE_TOPOLOGY(topology))
	}
}

func (d *d3d12Driver) setVertexBuffer(list handle, slot uint32, buf handle, offset uint64, size, stride uint32) {
	l := d.list(list)
	res := resourceOf(d, buf)
	if l == nil || res == nil {
		return
	}
	l.IASetVertexBuffers(slot, 1, &d3d12.D3D12_VERTEX_BUFFER_VIEW{
		BufferLocation: res.GetGPUVirtualAddress() + offset,
		SizeInBytes:    size,
		StrideInBytes:  stride,
	})
}

func (d *d3d12Driver) setIndexBuffer(list handle, buf handle, offset uint64, size uint32, format dxgiFormat) {
	l := d.list(list)
	res := resourceOf(d, buf)
	if l == nil || res == nil {
		return
	}
	l.IASetIndexBuffer(&d3d12.D3D12_INDEX_BUFFER_VIEW{
		BufferLocation: res.GetGPUVirtualAddress() + offset,
		SizeInBytes:    size,
		Format:         d3d12.DXGI_FORMAT(format),
	})
}

func (d *d3d12Driver) drawInstanced(list handle, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if l := d.list(list); l != nil {
		l.DrawInstanced(vertexCount, instanceCount, firstVertex, firstInstance)
	}
}

func (d *d3d12Driver) drawIndexedInstanced(list handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	if l := d.list(list); l != nil {
		l.DrawIndexedInstanced(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	}
}

func (d *d3d12Driver) copyBufferRegion(list handle, dst handle, dstOffset uint64, src handle, srcOffset, size uint64) {
	l := d.list(list)
	to, from := resourceOf(d, dst), resourceOf(d, src)
	if l == nil || to == nil || from == nil {
		return
	}
	l.CopyBufferRegion(to, dstOffset, from, srcOffset, size)
}

func placed(f placedFootprint) d3d12.D3D12_PLACED_SUBRESOURCE_FOOTPRINT {
	return d3d12.D3D12_PLACED_SUBRESOURCE_FOOTPRINT{
		Offset: f.offset,
		Footprint: d3d12.D3D12_SUBRESOURCE_FOOTPRINT{
			Format:   d3d12.DXGI_FORMAT(f.format),
			Width:    f.width,
			Height:   f.height,
			Depth:    f.depth,
			RowPitch: f.rowPitch,
		},
	}
}

func (d *d3d12Driver) copyBufferToTexture(list handle, src handle, footprint placedFootprint, dst handle, subresource uint32) {
	l := d.list(list)
	to, from := resourceOf(d, dst), resourceOf(d, src)
	if l == nil || to == nil || from == nil {
		return
	}
	dstLoc := d3d12.D3D12_TEXTURE_COPY_LOCATION{Resource: to}
	dstLoc.SetSubresourceIndex(subresource)
	srcLoc := d3d12.D3D12_TEXTURE_COPY_LOCATION{Resource: from}
	srcLoc.SetPlacedFootprint(placed(footprint))
	l.CopyTextureRegion(&dstLoc, 0, 0, 0, &srcLoc, nil)
}

func (d *d3d12Driver) copyTextureToBuffer(list handle, src handle, subresource uint32, dst handle, footprint placedFootprint) {
	l := d.list(list)
	to, from := resourceOf(d, dst), resourceOf(d, src)
	if l == nil || to == nil || from == nil {
		return
	}
	srcLoc := d3d12.D3D12_TEXTURE_COPY_LOCATION{Resource: from}
	srcLoc.SetSubresourceIndex(subresource)
	dstLoc := d3d12.D3D12_TEXTURE_COPY_LOCATION{Resource: to}
	dstLoc.SetPlacedFootprint(placed(footprint))
	l.CopyTextureRegion(&dstLoc, 0, 0, 0, &srcLoc, nil)
}

func (d *d3d12Driver) copyResource(list handle, dst, src handle) {
	l := d.list(list)
	to, from := resourceOf(d, dst), resourceOf(d, src)
	if l == nil || to == nil || from == nil {
		return
	}
	l.CopyResource(to, from)
}

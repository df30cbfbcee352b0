package dx12

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
	"github.com/spaghettifunk/rhi/engine/renderer/softgpu"
)

// fakeDXIL carries the container magic the device checks for.
var fakeDXIL = []byte("DXBC\x00\x01\x02\x03")

func TestCommandBufferStates(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	cb := mustCommandBuffer(t, d, 0)
	defer cb.Destroy()

	if err := cb.End(); !errors.Is(err, rhi.ErrNotRecording) {
		t.Fatalf("End before Begin:\nhave %v\nwant %v", err, rhi.ErrNotRecording)
	}
	if err := d.SubmitCommandBuffer(cb, rhi.SubmitInfo{}); !errors.Is(err, rhi.ErrNotExecutable) {
		t.Fatalf("Submit before Begin:\nhave %v\nwant %v", err, rhi.ErrNotExecutable)
	}
	if err := cb.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := cb.Begin(); !errors.Is(err, rhi.ErrAlreadyRecording) {
		t.Fatalf("Begin twice:\nhave %v\nwant %v", err, rhi.ErrAlreadyRecording)
	}
	if err := cb.Reset(); !errors.Is(err, rhi.ErrAlreadyRecording) {
		t.Fatalf("Reset while recording:\nhave %v\nwant %v", err, rhi.ErrAlreadyRecording)
	}
	if err := cb.End(); err != nil {
		t.Fatal(err)
	}
	if cb.State() != rhi.CommandBufferExecutable {
		t.Fatalf("State after End:\nhave %s\nwant Executable", cb.State())
	}
	// An executable list is recorded again into the same allocator.
	alloc := cb.(*CommandBuffer).alloc
	if err := cb.Begin(); err != nil {
		t.Fatalf("Begin on executable: %v", err)
	}
	if have := cb.(*CommandBuffer).alloc; have != alloc {
		t.Fatalf("allocator after re-recording:\nhave %d\nwant %d", have, alloc)
	}
	cb.End()
	if err := cb.Reset(); err != nil || cb.State() != rhi.CommandBufferInitial {
		t.Fatalf("Reset:\nhave %s, %v\nwant Initial, nil", cb.State(), err)
	}
	if err := cb.SetViewport(rhi.Viewport{Width: 1, Height: 1}); !errors.Is(err, rhi.ErrNotRecording) {
		t.Fatalf("SetViewport outside recording:\nhave %v\nwant %v", err, rhi.ErrNotRecording)
	}
}

func TestBarriersAreTrackedAndCounted(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	tex := clearTarget(t, d, "target")
	defer tex.Destroy()
	cb := mustCommandBuffer(t, d, 0)
	defer cb.Destroy()

	cb.Begin()
	steps := []rhi.ResourceLayout{rhi.LayoutColorAttachment, rhi.LayoutShaderReadOnly, rhi.LayoutShaderReadOnly, rhi.LayoutTransferSrc}
	for _, l := range steps {
		if err := cb.ResourceBarrier(rhi.BarrierDesc{Texture: tex, OldLayout: tex.CurrentLayout(), NewLayout: l}); err != nil {
			t.Fatal(err)
		}
		if have := tex.CurrentLayout(); have != l {
			t.Fatalf("CurrentLayout:\nhave %s\nwant %s", have, l)
		}
	}
	if have := d.Stats().Barriers; have != 3 {
		t.Fatalf("Barriers:\nhave %d\nwant 3", have)
	}
	if err := cb.ResourceBarrier(rhi.BarrierDesc{NewLayout: rhi.LayoutGeneral}); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("barrier without resource:\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}
	if err := d.SubmitCommandBuffer(cb, rhi.SubmitInfo{}); err != nil {
		t.Fatal(err)
	}
	d.WaitIdle()
}

func TestBarriersBetweenEqualStatesAreSkipped(t *testing.T) {
	d, drv := openHeadless(t, rhi.DeviceConfig{})
	tex := clearTarget(t, d, "target")
	defer tex.Destroy()
	cb := mustCommandBuffer(t, d, 0)
	defer cb.Destroy()

	cb.Begin()
	// Undefined and PresentSrc are both COMMON.
	if err := cb.ResourceBarrier(rhi.BarrierDesc{Texture: tex, NewLayout: rhi.LayoutPresentSrc}); err != nil {
		t.Fatal(err)
	}
	if have := d.Stats().Barriers; have != 0 {
		t.Fatalf("Barriers:\nhave %d\nwant 0", have)
	}
	if have := tex.CurrentLayout(); have != rhi.LayoutPresentSrc {
		t.Fatalf("CurrentLayout:\nhave %s\nwant PresentSrc", have)
	}
	if have := drv.resourceState(tex.(*Texture).resource); have != statePresent {
		t.Fatalf("resource state:\nhave %#x\nwant %#x", have, statePresent)
	}
	d.SubmitCommandBuffer(cb, rhi.SubmitInfo{})
	d.WaitIdle()
}

func TestBarrierFollowsTheTrackedLayout(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	tex := clearTarget(t, d, "target")
	defer tex.Destroy()
	cb := mustCommandBuffer(t, d, 0)
	defer cb.Destroy()

	cb.Begin()
	if err := cb.ResourceBarrier(rhi.BarrierDesc{Texture: tex, OldLayout: tex.CurrentLayout(), NewLayout: rhi.LayoutShaderReadOnly}); err != nil {
		t.Fatal(err)
	}
	before := d.Stats().Barriers
	// A stale OldLayout that happens to equal NewLayout still transitions.
	if err := cb.ResourceBarrier(rhi.BarrierDesc{Texture: tex, OldLayout: rhi.LayoutTransferSrc, NewLayout: rhi.LayoutTransferSrc}); err != nil {
		t.Fatal(err)
	}
	if have, want := tex.CurrentLayout(), rhi.LayoutTransferSrc; have != want {
		t.Fatalf("CurrentLayout:\nhave %s\nwant %s", have, want)
	}
	if have, want := d.Stats().Barriers, before+1; have != want {
		t.Fatalf("Barriers:\nhave %d\nwant %d", have, want)
	}
	// Once tracked, the same barrier is skipped.
	if err := cb.ResourceBarrier(rhi.BarrierDesc{Texture: tex, OldLayout: rhi.LayoutTransferSrc, NewLayout: rhi.LayoutTransferSrc}); err != nil {
		t.Fatal(err)
	}
	if have, want := d.Stats().Barriers, before+1; have != want {
		t.Fatalf("Barriers after a repeated barrier:\nhave %d\nwant %d", have, want)
	}
	if err := d.SubmitCommandBuffer(cb, rhi.SubmitInfo{}); err != nil {
		t.Fatal(err)
	}
	d.WaitIdle()
}

func TestInitialLayoutIsApplied(t *testing.T) {
	d, drv := openHeadless(t, rhi.DeviceConfig{})
	tex := mustTexture(t, d, rhi.TextureDesc{
		Name:          "shadow",
		Type:          rhi.Texture2D,
		Format:        rhi.FormatD32Float,
		Width:         16,
		Height:        16,
		Usage:         rhi.TextureUsageDepthStencil | rhi.TextureUsageSampled,
		InitialLayout: rhi.LayoutDepthStencilReadOnly,
	})
	defer tex.Destroy()
	if have := tex.CurrentLayout(); have != rhi.LayoutDepthStencilReadOnly {
		t.Fatalf("CurrentLayout:\nhave %s\nwant DepthStencilReadOnly", have)
	}
	if s := d.Stats(); s.Submissions != 1 || s.LastCompleted != 1 {
		t.Fatalf("initial transition:\nhave %d submissions, %d completed\nwant 1, 1", s.Submissions, s.LastCompleted)
	}
	want := stateDepthRead | stateNonPixelShaderResource | statePixelShaderResource
	if have := drv.resourceState(tex.(*Texture).resource); have != want {
		t.Fatalf("resource state:\nhave %#x\nwant %#x", have, want)
	}
}

func TestCreateTextureValidation(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	tests := []struct {
		name string
		desc rhi.TextureDesc
		want error
	}{
		{"zero width", rhi.TextureDesc{Format: rhi.FormatRGBA8Unorm, Usage: rhi.TextureUsageSampled}, rhi.ErrInvalidArgument},
		{"no format", rhi.TextureDesc{Width: 4, Usage: rhi.TextureUsageSampled}, rhi.ErrInvalidArgument},
		{"no usage", rhi.TextureDesc{Width: 4, Format: rhi.FormatRGBA8Unorm}, rhi.ErrInvalidUsage},
		{"depth as render target", rhi.TextureDesc{Width: 4, Format: rhi.FormatD32Float, Usage: rhi.TextureUsageColorAttachment}, rhi.ErrInvalidUsage},
		{"depth as UAV", rhi.TextureDesc{Width: 4, Format: rhi.FormatD32Float, Usage: rhi.TextureUsageStorage}, rhi.ErrInvalidUsage},
		{"color as depth", rhi.TextureDesc{Width: 4, Format: rhi.FormatRGBA8Unorm, Usage: rhi.TextureUsageDepthStencil}, rhi.ErrInvalidUsage},
		{"too many mips", rhi.TextureDesc{Width: 4, Height: 4, MipLevels: 4, Format: rhi.FormatRGBA8Unorm, Usage: rhi.TextureUsageSampled}, rhi.ErrInvalidArgument},
		{"rectangular cube", rhi.TextureDesc{Type: rhi.TextureCube, Width: 4, Height: 2, Format: rhi.FormatRGBA8Unorm, Usage: rhi.TextureUsageSampled}, rhi.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.CreateTexture(tt.desc); !errors.Is(err, tt.want) {
				t.Fatalf("CreateTexture:\nhave %v\nwant %v", err, tt.want)
			}
		})
	}
	cube := mustTexture(t, d, rhi.TextureDesc{Type: rhi.TextureCube, Width: 8, Height: 8, Format: rhi.FormatRGBA8Unorm, Usage: rhi.TextureUsageSampled})
	defer cube.Destroy()
	if have := cube.ArrayLayers(); have != 6 {
		t.Fatalf("cube ArrayLayers:\nhave %d\nwant 6", have)
	}
}

func TestTextureViews(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	before := d.Stats().DescriptorsInUse
	tex := mustTexture(t, d, rhi.TextureDesc{
		Name:   "gbuffer",
		Type:   rhi.Texture2D,
		Format: rhi.FormatRGBA16Float,
		Width:  8,
		Height: 8,
		Usage:  rhi.TextureUsageColorAttachment | rhi.TextureUsageSampled | rhi.TextureUsageStorage,
	}).(*Texture)
	if !tex.HasRTVUsage() || !tex.HasSRVUsage() || !tex.HasUAVUsage() || tex.HasDSVUsage() {
		t.Fatal("view usage: have wrong answers\nwant RTV, SRV and UAV without DSV")
	}
	if tex.dsv != rhi.InvalidDescriptorIndex {
		t.Fatalf("DSV slot:\nhave %d\nwant invalid", tex.dsv)
	}
	if have := d.Stats().DescriptorsInUse - before; have != 3 {
		t.Fatalf("descriptors taken:\nhave %d\nwant 3", have)
	}
	tex.Destroy()
	d.WaitIdle()
	if have := d.Stats().DescriptorsInUse; have != before {
		t.Fatalf("DescriptorsInUse after Destroy:\nhave %d\nwant %d", have, before)
	}
}

// readback copies mip 0 of tex into a readback buffer and returns its
// texels tightly packed.
func readback(t *testing.T, d *Device, tex rhi.Texture) []byte {
	t.Helper()
	f := d.TextureFootprint(tex, 0)
	buf := mustBuffer(t, d, rhi.BufferDesc{Name: "readback", Size: f.Offset + f.Size, Usage: rhi.BufferUsageTransferDst, Memory: rhi.MemoryGPUToCPU})
	defer buf.Destroy()
	cb := mustCommandBuffer(t, d, 1)
	defer cb.Destroy()
	fence, _ := d.CreateFence(rhi.FenceDesc{})
	defer fence.Destroy()

	cb.Begin()
	before := tex.CurrentLayout()
	if err := cb.CopyTextureToBuffer(tex, 0, 0, buf, 0); err != nil {
		t.Fatal(err)
	}
	if after := tex.CurrentLayout(); before != rhi.LayoutUndefined && after != before {
		t.Fatalf("layout after copy:\nhave %s\nwant %s", after, before)
	}
	if err := d.SubmitCommandBuffer(cb, rhi.SubmitInfo{SignalFence: fence}); err != nil {
		t.Fatal(err)
	}
	fence.Wait(rhi.InfiniteTimeout)
	data, err := buf.Map()
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Unmap()
	out := make([]byte, rhi.TightFootprint(tex.Desc(), 0).Size)
	rhi.UnpackRows(out, data, f, tex.Format())
	return out
}

func TestRenderPassClearsAndFinalLayouts(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	color := clearTarget(t, d, "color")
	defer color.Destroy()
	depth := mustTexture(t, d, rhi.TextureDesc{
		Name:   "depth",
		Type:   rhi.Texture2D,
		Format: rhi.FormatD32Float,
		Width:  4,
		Height: 4,
		Usage:  rhi.TextureUsageDepthStencil | rhi.TextureUsageSampled,
	})
	defer depth.Destroy()

	pass, err := d.CreateRenderPass(rhi.RenderPassDesc{
		ColorAttachments:       []rhi.AttachmentDesc{{Format: rhi.FormatRGBA8Unorm, LoadOp: rhi.LoadOpClear}},
		HasDepthStencil:        true,
		DepthStencilAttachment: rhi.AttachmentDesc{Format: rhi.FormatD32Float, LoadOp: rhi.LoadOpClear, StoreOp: rhi.StoreOpDontCare},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer pass.Destroy()
	if !pass.ShouldClearColor(0) || !pass.ShouldClearDepthStencil() || pass.ShouldClearStencil() || pass.ShouldClearColor(1) {
		t.Fatal("ShouldClear*: have wrong answers\nwant color and depth cleared, no stencil")
	}
	fb, err := d.CreateFramebuffer(rhi.FramebufferDesc{RenderPass: pass, ColorAttachments: []rhi.Texture{color}, DepthStencilAttachment: depth})
	if err != nil {
		t.Fatal(err)
	}
	defer fb.Destroy()
	if fb.Width() != 4 || fb.Height() != 4 || !fb.HasDSV() || fb.ColorAttachmentCount() != 1 {
		t.Fatalf("framebuffer:\nhave %dx%d, dsv %v, %d colors\nwant 4x4, dsv true, 1 color", fb.Width(), fb.Height(), fb.HasDSV(), fb.ColorAttachmentCount())
	}

	cb := mustCommandBuffer(t, d, 0)
	defer cb.Destroy()
	cb.Begin()
	green := [4]float32{0, 1, 0, 1}
	if err := cb.BeginRenderPass(pass, fb, []rhi.ClearValue{{Color: green}, {Depth: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := cb.BeginRenderPass(pass, fb, nil); !errors.Is(err, rhi.ErrRenderPassActive) {
		t.Fatalf("nested BeginRenderPass:\nhave %v\nwant %v", err, rhi.ErrRenderPassActive)
	}
	if err := cb.ClearColor(color, green); !errors.Is(err, rhi.ErrRenderPassActive) {
		t.Fatalf("ClearColor inside a pass:\nhave %v\nwant %v", err, rhi.ErrRenderPassActive)
	}
	if err := cb.Draw(3, 1, 0, 0); !errors.Is(err, rhi.ErrNoPipeline) {
		t.Fatalf("Draw without pipeline:\nhave %v\nwant %v", err, rhi.ErrNoPipeline)
	}
	if !cb.IsRenderPassActive() {
		t.Fatal("IsRenderPassActive: have false\nwant true")
	}
	if have := color.CurrentLayout(); have != rhi.LayoutColorAttachment {
		t.Fatalf("color layout inside the pass:\nhave %s\nwant ColorAttachment", have)
	}
	if err := cb.EndRenderPass(); err != nil {
		t.Fatal(err)
	}
	if have := color.CurrentLayout(); have != rhi.LayoutShaderReadOnly {
		t.Fatalf("color final layout:\nhave %s\nwant ShaderReadOnly", have)
	}
	if have := depth.CurrentLayout(); have != rhi.LayoutDepthStencilReadOnly {
		t.Fatalf("depth final layout:\nhave %s\nwant DepthStencilReadOnly", have)
	}
	if err := cb.EndRenderPass(); !errors.Is(err, rhi.ErrNoRenderPass) {
		t.Fatalf("EndRenderPass twice:\nhave %v\nwant %v", err, rhi.ErrNoRenderPass)
	}
	if err := d.SubmitCommandBuffer(cb, rhi.SubmitInfo{}); err != nil {
		t.Fatal(err)
	}
	if have := d.Stats().Clears; have != 2 {
		t.Fatalf("Clears:\nhave %d\nwant 2", have)
	}

	data := readback(t, d, color)
	want := softgpu.EncodeColor(rhi.FormatRGBA8Unorm, green)
	if !bytes.Equal(data[:4], want) || !bytes.Equal(data[60:], want) {
		t.Fatalf("cleared texels:\nhave %v\nwant %v everywhere", data, want)
	}
}

func TestRenderPassRejectsMismatchedFramebuffer(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	pass, _ := d.CreateRenderPass(rhi.RenderPassDesc{
		ColorAttachments: []rhi.AttachmentDesc{{Format: rhi.FormatBGRA8Unorm}},
	})
	defer pass.Destroy()
	color := clearTarget(t, d, "rgba")
	defer color.Destroy()
	if _, err := d.CreateFramebuffer(rhi.FramebufferDesc{RenderPass: pass, ColorAttachments: []rhi.Texture{color}}); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("CreateFramebuffer(format mismatch):\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}
	if _, err := d.CreateRenderPass(rhi.RenderPassDesc{}); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("CreateRenderPass(empty):\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}
	nine := make([]rhi.AttachmentDesc, 9)
	for i := range nine {
		nine[i].Format = rhi.FormatRGBA8Unorm
	}
	if _, err := d.CreateRenderPass(rhi.RenderPassDesc{ColorAttachments: nine}); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("CreateRenderPass(9 render targets):\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}
}

func TestDrawRecording(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	color := clearTarget(t, d, "color")
	defer color.Destroy()
	pass, _ := d.GetOrCreateRenderPass(rhi.RenderPassDesc{
		ColorAttachments: []rhi.AttachmentDesc{{Format: rhi.FormatRGBA8Unorm, LoadOp: rhi.LoadOpClear}},
	})
	fb, _ := d.CreateFramebuffer(rhi.FramebufferDesc{RenderPass: pass, ColorAttachments: []rhi.Texture{color}})
	defer fb.Destroy()

	vs, _ := d.CreateShader(rhi.ShaderDesc{Name: "vs", Stage: rhi.ShaderStageVertex, Code: fakeDXIL})
	defer vs.Destroy()
	fs, _ := d.CreateShader(rhi.ShaderDesc{Name: "fs", Stage: rhi.ShaderStageFragment, Code: fakeDXIL})
	defer fs.Destroy()
	layout, _ := d.CreateDescriptorSetLayout(rhi.DescriptorSetLayoutDesc{Bindings: []rhi.DescriptorBinding{
		{Binding: 0, Type: rhi.DescriptorUniformBuffer, Stages: rhi.ShaderStageVertex},
	}})
	defer layout.Destroy()
	pipeline, err := d.CreateGraphicsPipeline(rhi.GraphicsPipelineDesc{
		Name:                 "triangle",
		VertexShader:         vs,
		FragmentShader:       fs,
		VertexBindings:       []rhi.VertexBinding{{Binding: 0, Stride: 12}},
		VertexAttributes:     []rhi.VertexAttribute{{Location: 0, Format: rhi.VertexFloat32x3}},
		DescriptorSetLayouts: []rhi.DescriptorSetLayout{layout},
		PushConstantSize:     16,
		RenderPass:           pass,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer pipeline.Destroy()
	set, _ := d.CreateDescriptorSet(rhi.DescriptorSetDesc{Layout: layout})
	defer set.Destroy()

	vertices := mustBuffer(t, d, rhi.BufferDesc{Name: "vertices", Size: 36, Usage: rhi.BufferUsageVertex, Memory: rhi.MemoryCPUToGPU})
	defer vertices.Destroy()
	indices := mustBuffer(t, d, rhi.BufferDesc{Name: "indices", Size: 6, Usage: rhi.BufferUsageIndex, Memory: rhi.MemoryCPUToGPU})
	defer indices.Destroy()

	cb := mustCommandBuffer(t, d, 0)
	defer cb.Destroy()
	cb.Begin()
	if err := cb.Draw(3, 1, 0, 0); !errors.Is(err, rhi.ErrNoRenderPass) {
		t.Fatalf("Draw outside a pass:\nhave %v\nwant %v", err, rhi.ErrNoRenderPass)
	}
	if err := cb.BindDescriptorSet(0, set); !errors.Is(err, rhi.ErrNoPipeline) {
		t.Fatalf("BindDescriptorSet without pipeline:\nhave %v\nwant %v", err, rhi.ErrNoPipeline)
	}
	cb.BeginRenderPass(pass, fb, []rhi.ClearValue{{}})
	steps := []struct {
		name string
		err  error
	}{
		{"SetPipeline", cb.SetPipeline(pipeline)},
		{"SetViewport", cb.SetViewport(rhi.Viewport{Width: 4, Height: 4, MaxDepth: 1})},
		{"SetScissor", cb.SetScissor(rhi.Rect{Width: 4, Height: 4})},
		{"BindVertexBuffer", cb.BindVertexBuffer(0, vertices, 0)},
		{"BindIndexBuffer", cb.BindIndexBuffer(indices, 0, rhi.IndexTypeUint16)},
		{"BindDescriptorSet", cb.BindDescriptorSet(0, set)},
		{"Draw", cb.Draw(3, 1, 0, 0)},
		{"DrawIndexed", cb.DrawIndexed(3, 1, 0, 0, 0)},
	}
	for _, s := range steps {
		if s.err != nil {
			t.Fatalf("%s: %v", s.name, s.err)
		}
	}
	if err := cb.BindIndexBuffer(indices, 1, rhi.IndexTypeUint16); !errors.Is(err, rhi.ErrOutOfRange) {
		t.Fatalf("misaligned index offset:\nhave %v\nwant %v", err, rhi.ErrOutOfRange)
	}
	if err := cb.BindVertexBuffer(0, indices, 0); !errors.Is(err, rhi.ErrInvalidUsage) {
		t.Fatalf("index buffer bound as vertices:\nhave %v\nwant %v", err, rhi.ErrInvalidUsage)
	}
	if err := cb.BindDescriptorSet(1, set); !errors.Is(err, rhi.ErrOutOfRange) {
		t.Fatalf("set index past the layouts:\nhave %v\nwant %v", err, rhi.ErrOutOfRange)
	}
	// End closes the open pass.
	if err := d.SubmitCommandBuffer(cb, rhi.SubmitInfo{}); err != nil {
		t.Fatal(err)
	}
	d.WaitIdle()
	if have := d.Stats().Draws; have != 2 {
		t.Fatalf("Draws:\nhave %d\nwant 2", have)
	}
}

func TestRootSignatureLayout(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	material, _ := d.CreateDescriptorSetLayout(rhi.DescriptorSetLayoutDesc{Bindings: []rhi.DescriptorBinding{
		{Binding: 0, Type: rhi.DescriptorUniformBuffer},
		{Binding: 1, Type: rhi.DescriptorSampledTexture},
		{Binding: 2, Type: rhi.DescriptorSampler},
	}})
	defer material.Destroy()
	samplersOnly, _ := d.CreateDescriptorSetLayout(rhi.DescriptorSetLayoutDesc{Bindings: []rhi.DescriptorBinding{
		{Binding: 0, Type: rhi.DescriptorSampler, Count: 2},
	}})
	defer samplersOnly.Destroy()

	info, sets := rootSignatureOf([]*DescriptorSetLayout{material.(*DescriptorSetLayout), samplersOnly.(*DescriptorSetLayout)}, 64)
	wantSets := []setParameters{{resources: 0, samplers: 1}, {resources: -1, samplers: 2}}
	if len(sets) != len(wantSets) {
		t.Fatalf("sets:\nhave %d\nwant %d", len(sets), len(wantSets))
	}
	for i, want := range wantSets {
		if sets[i] != want {
			t.Fatalf("set %d parameters:\nhave %+v\nwant %+v", i, sets[i], want)
		}
	}
	if len(info.tables) != 3 || info.constants != 16 || info.constantsSpace != 2 {
		t.Fatalf("root signature:\nhave %d tables, %d constants in space %d\nwant 3, 16, 2", len(info.tables), info.constants, info.constantsSpace)
	}
	if r := info.tables[2].ranges[0]; r.space != 1 || r.count != 2 || r.kind != rangeSampler {
		t.Fatalf("sampler range of set 1:\nhave %+v\nwant space 1, count 2, sampler", r)
	}

	vs, _ := d.CreateShader(rhi.ShaderDesc{Name: "vs", Stage: rhi.ShaderStageVertex, Code: fakeDXIL})
	defer vs.Destroy()
	pass, _ := d.GetOrCreateRenderPass(rhi.RenderPassDesc{ColorAttachments: []rhi.AttachmentDesc{{Format: rhi.FormatRGBA8Unorm}}})
	if _, err := d.CreateGraphicsPipeline(rhi.GraphicsPipelineDesc{VertexShader: vs, RenderPass: pass, PushConstantSize: 6}); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("push constants of 6 bytes:\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}
	if _, err := d.CreateGraphicsPipeline(rhi.GraphicsPipelineDesc{VertexShader: vs, RenderPass: pass, PushConstantSize: 256}); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("push constants past the root signature:\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}
	if _, err := d.CreateShader(rhi.ShaderDesc{Name: "spirv", Stage: rhi.ShaderStageVertex, Code: []byte{0x03, 0x02, 0x23, 0x07}}); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("CreateShader(SPIR-V):\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}
}

func TestBufferCopyRoundTrip(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	payload := []byte("sixteen byte row")
	upload := mustBuffer(t, d, rhi.BufferDesc{Name: "upload", Size: 32, Usage: rhi.BufferUsageTransferSrc, Memory: rhi.MemoryCPUToGPU})
	defer upload.Destroy()
	local := mustBuffer(t, d, rhi.BufferDesc{Name: "local", Size: 32, Usage: rhi.BufferUsageTransferSrc | rhi.BufferUsageTransferDst})
	defer local.Destroy()
	down := mustBuffer(t, d, rhi.BufferDesc{Name: "down", Size: 32, Usage: rhi.BufferUsageTransferDst, Memory: rhi.MemoryGPUToCPU})
	defer down.Destroy()

	if err := d.UpdateBuffer(upload, payload, 8); err != nil {
		t.Fatal(err)
	}
	// Default heap buffers go through an upload buffer.
	if err := d.UpdateBuffer(local, payload, 0); err != nil {
		t.Fatal(err)
	}
	if have := d.Stats().StagingUploadBytes; have != uint64(len(payload)) {
		t.Fatalf("StagingUploadBytes:\nhave %d\nwant %d", have, len(payload))
	}
	if _, err := local.Map(); !errors.Is(err, rhi.ErrNotMappable) {
		t.Fatalf("Map(default heap):\nhave %v\nwant %v", err, rhi.ErrNotMappable)
	}
	if err := d.UpdateBuffer(upload, payload, 20); !errors.Is(err, rhi.ErrOutOfRange) {
		t.Fatalf("UpdateBuffer past the end:\nhave %v\nwant %v", err, rhi.ErrOutOfRange)
	}

	cb := mustCommandBuffer(t, d, 0)
	defer cb.Destroy()
	cb.Begin()
	if err := cb.CopyBuffer(upload, 8, local, 16, 16); err != nil {
		t.Fatal(err)
	}
	if err := cb.CopyBuffer(local, 0, down, 0, 32); err != nil {
		t.Fatal(err)
	}
	if err := cb.CopyBuffer(local, 0, local, 8, 16); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("copy within one buffer:\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}
	if err := cb.CopyBuffer(down, 0, local, 0, 4); !errors.Is(err, rhi.ErrInvalidUsage) {
		t.Fatalf("copy from a buffer without TransferSrc:\nhave %v\nwant %v", err, rhi.ErrInvalidUsage)
	}
	if err := cb.CopyBuffer(upload, 24, local, 0, 16); !errors.Is(err, rhi.ErrOutOfRange) {
		t.Fatalf("copy past the source:\nhave %v\nwant %v", err, rhi.ErrOutOfRange)
	}
	d.SubmitCommandBuffer(cb, rhi.SubmitInfo{})
	d.WaitIdle()

	data, err := down.Map()
	if err != nil {
		t.Fatal(err)
	}
	defer down.Unmap()
	if !bytes.Equal(data[:16], payload) || !bytes.Equal(data[16:], payload) {
		t.Fatalf("readback:\nhave %q\nwant %q twice", data, payload)
	}
}

func TestTextureFootprintIsPitched(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	tex := mustTexture(t, d, rhi.TextureDesc{
		Name:      "albedo",
		Type:      rhi.Texture2D,
		Format:    rhi.FormatRGBA8Unorm,
		Width:     4,
		Height:    4,
		MipLevels: 2,
		Usage:     rhi.TextureUsageSampled | rhi.TextureUsageTransferSrc | rhi.TextureUsageTransferDst,
	})
	defer tex.Destroy()

	tests := []struct {
		mip   uint32
		pitch uint64
		size  uint64
	}{
		{0, 256, 3*256 + 16},
		{1, 256, 256 + 8},
	}
	for _, tt := range tests {
		f := d.TextureFootprint(tex, tt.mip)
		if f.RowPitch != tt.pitch || f.Size != tt.size || f.Offset != 0 {
			t.Fatalf("footprint of mip %d:\nhave pitch %d size %d offset %d\nwant pitch %d size %d offset 0", tt.mip, f.RowPitch, f.Size, f.Offset, tt.pitch, tt.size)
		}
	}

	buf := mustBuffer(t, d, rhi.BufferDesc{Name: "readback", Size: 2048, Usage: rhi.BufferUsageTransferDst, Memory: rhi.MemoryGPUToCPU})
	defer buf.Destroy()
	cb := mustCommandBuffer(t, d, 0)
	defer cb.Destroy()
	cb.Begin()
	if err := cb.CopyTextureToBuffer(tex, 0, 0, buf, 256); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("copy at an offset of 256:\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}
	if err := cb.CopyTextureToBuffer(tex, 0, 0, buf, 1536); !errors.Is(err, rhi.ErrOutOfRange) {
		t.Fatalf("copy past the buffer:\nhave %v\nwant %v", err, rhi.ErrOutOfRange)
	}
	if err := cb.CopyTextureToBuffer(tex, 2, 0, buf, 0); !errors.Is(err, rhi.ErrOutOfRange) {
		t.Fatalf("copy of a missing mip:\nhave %v\nwant %v", err, rhi.ErrOutOfRange)
	}
	if err := cb.CopyTextureToBuffer(tex, 1, 0, buf, 1024); err != nil {
		t.Fatalf("copy of mip 1 at 1024: %v", err)
	}
	d.SubmitCommandBuffer(cb, rhi.SubmitInfo{})
	d.WaitIdle()
}

func TestTextureUploadRoundTrip(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	tex := mustTexture(t, d, rhi.TextureDesc{
		Name:      "albedo",
		Type:      rhi.Texture2D,
		Format:    rhi.FormatRGBA8Unorm,
		Width:     4,
		Height:    4,
		MipLevels: 2,
		Usage:     rhi.TextureUsageSampled | rhi.TextureUsageTransferSrc | rhi.TextureUsageTransferDst,
	})
	defer tex.Destroy()
	if have := d.Stats().TextureMemory; have != 64+16 {
		t.Fatalf("TextureMemory:\nhave %d\nwant 80", have)
	}

	pixels := make([]byte, 64)
	for i := range pixels {
		pixels[i] = byte(i)
	}
	if err := d.UpdateTexture(tex, pixels[:10], 0, 0); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("UpdateTexture(short data):\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}
	if err := d.UpdateTexture(tex, pixels, 0, 0); err != nil {
		t.Fatal(err)
	}
	// The upload buffer holds the pitched rows.
	if have := d.Stats().StagingUploadBytes; have != 3*256+16 {
		t.Fatalf("StagingUploadBytes:\nhave %d\nwant %d", have, 3*256+16)
	}
	if have := tex.CurrentLayout(); have != rhi.LayoutShaderReadOnly {
		t.Fatalf("layout after the first upload:\nhave %s\nwant ShaderReadOnly", have)
	}
	if err := d.UpdateTexture(tex, make([]byte, 16), 1, 0); err != nil {
		t.Fatalf("UpdateTexture(mip 1): %v", err)
	}
	if have := tex.CurrentLayout(); have != rhi.LayoutShaderReadOnly {
		t.Fatalf("layout after the second upload:\nhave %s\nwant ShaderReadOnly", have)
	}

	if data := readback(t, d, tex); !bytes.Equal(data, pixels) {
		t.Fatalf("readback:\nhave %v\nwant %v", data, pixels)
	}
}

func TestCopyTextureAndClear(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	src := clearTarget(t, d, "src")
	defer src.Destroy()
	dst := clearTarget(t, d, "dst")
	defer dst.Destroy()
	depth := mustTexture(t, d, rhi.TextureDesc{Type: rhi.Texture2D, Format: rhi.FormatD32Float, Width: 4, Height: 4, Usage: rhi.TextureUsageDepthStencil})
	defer depth.Destroy()
	small := mustTexture(t, d, rhi.TextureDesc{Type: rhi.Texture2D, Format: rhi.FormatRGBA8Unorm, Width: 2, Height: 2, Usage: rhi.TextureUsageSampled})
	defer small.Destroy()

	cb := mustCommandBuffer(t, d, 0)
	defer cb.Destroy()
	cb.Begin()
	red := [4]float32{1, 0, 0, 1}
	if err := cb.ClearColor(src, red); err != nil {
		t.Fatal(err)
	}
	if err := cb.ClearColor(depth, red); !errors.Is(err, rhi.ErrInvalidUsage) {
		t.Fatalf("ClearColor(depth):\nhave %v\nwant %v", err, rhi.ErrInvalidUsage)
	}
	if err := cb.ClearDepthStencil(src, 1, 0); !errors.Is(err, rhi.ErrInvalidUsage) {
		t.Fatalf("ClearDepthStencil(color):\nhave %v\nwant %v", err, rhi.ErrInvalidUsage)
	}
	if err := cb.ClearDepthStencil(depth, 1, 0); err != nil {
		t.Fatal(err)
	}
	if err := cb.CopyTexture(src, dst); err != nil {
		t.Fatal(err)
	}
	if err := cb.CopyTexture(src, src); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("CopyTexture onto itself:\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}
	if err := cb.CopyTexture(src, small); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("CopyTexture between extents:\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}
	d.SubmitCommandBuffer(cb, rhi.SubmitInfo{})
	d.WaitIdle()
	if s := d.Stats(); s.Clears != 2 || s.Copies != 1 {
		t.Fatalf("Stats:\nhave %d clears, %d copies\nwant 2, 1", s.Clears, s.Copies)
	}

	data := readback(t, d, dst)
	if want := softgpu.EncodeColor(rhi.FormatRGBA8Unorm, red); !bytes.Equal(data[:4], want) {
		t.Fatalf("copied texel:\nhave %v\nwant %v", data[:4], want)
	}
}

func TestDepthClearFlagsFollowTheFormat(t *testing.T) {
	d, drv := openHeadless(t, rhi.DeviceConfig{})
	cb := mustCommandBuffer(t, d, 0)
	defer cb.Destroy()
	cb.Begin()
	for _, tc := range []struct {
		format rhi.Format
		want   uint32
	}{
		{rhi.FormatD32Float, clearFlagDepth},
		{rhi.FormatD24UnormS8Uint, clearFlagDepth | clearFlagStencil},
	} {
		tex := mustTexture(t, d, rhi.TextureDesc{Type: rhi.Texture2D, Format: tc.format, Width: 4, Height: 4, Usage: rhi.TextureUsageDepthStencil})
		defer tex.Destroy()
		if err := cb.ClearDepthStencil(tex, 1, 0); err != nil {
			t.Fatal(err)
		}
		if have := drv.depthClears.Load(); have != tc.want {
			t.Fatalf("clear flags for %s:\nhave %#x\nwant %#x", tc.format, have, tc.want)
		}
	}
	d.SubmitCommandBuffer(cb, rhi.SubmitInfo{})
	d.WaitIdle()
}

func TestRangeChecksDoNotOverflow(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
	upload := mustBuffer(t, d, rhi.BufferDesc{Name: "upload", Size: 64, Usage: rhi.BufferUsageTransferSrc | rhi.BufferUsageTransferDst, Memory: rhi.MemoryCPUToGPU})
	defer upload.Destroy()
	local := mustBuffer(t, d, rhi.BufferDesc{Name: "local", Size: 64, Usage: rhi.BufferUsageTransferSrc | rhi.BufferUsageTransferDst})
	defer local.Destroy()
	tex := mustTexture(t, d, rhi.TextureDesc{
		Name:   "texels",
		Type:   rhi.Texture2D,
		Format: rhi.FormatRGBA8Unorm,
		Width:  2,
		Height: 2,
		Usage:  rhi.TextureUsageSampled | rhi.TextureUsageTransferSrc | rhi.TextureUsageTransferDst,
	})
	defer tex.Destroy()

	// Aligned for every copy, and wraps around when added to a size.
	huge := uint64(math.MaxUint64) &^ 511
	for _, offset := range []uint64{math.MaxUint64 - 1, huge} {
		if err := d.UpdateBuffer(upload, []byte{1, 2, 3, 4}, offset); !errors.Is(err, rhi.ErrOutOfRange) {
			t.Fatalf("UpdateBuffer(mappable, %d):\nhave %v\nwant %v", offset, err, rhi.ErrOutOfRange)
		}
		if err := d.UpdateBuffer(local, []byte{1, 2, 3, 4}, offset); !errors.Is(err, rhi.ErrOutOfRange) {
			t.Fatalf("UpdateBuffer(device local, %d):\nhave %v\nwant %v", offset, err, rhi.ErrOutOfRange)
		}
	}

	cb := mustCommandBuffer(t, d, 0)
	defer cb.Destroy()
	cb.Begin()
	if err := cb.CopyBuffer(upload, huge, local, 0, 1024); !errors.Is(err, rhi.ErrOutOfRange) {
		t.Fatalf("CopyBuffer source offset:\nhave %v\nwant %v", err, rhi.ErrOutOfRange)
	}
	if err := cb.CopyBuffer(upload, 0, local, huge, 1024); !errors.Is(err, rhi.ErrOutOfRange) {
		t.Fatalf("CopyBuffer destination offset:\nhave %v\nwant %v", err, rhi.ErrOutOfRange)
	}
	if err := cb.CopyBufferToTexture(upload, huge, tex, 0, 0); !errors.Is(err, rhi.ErrOutOfRange) {
		t.Fatalf("CopyBufferToTexture:\nhave %v\nwant %v", err, rhi.ErrOutOfRange)
	}
	if err := cb.CopyTextureToBuffer(tex, 0, 0, local, huge); !errors.Is(err, rhi.ErrOutOfRange) {
		t.Fatalf("CopyTextureToBuffer:\nhave %v\nwant %v", err, rhi.ErrOutOfRange)
	}
	if have := d.Stats().Copies; have != 0 {
		t.Fatalf("Copies:\nhave %d\nwant 0", have)
	}
	if err := cb.End(); err != nil {
		t.Fatal(err)
	}
	cb.Reset()
}

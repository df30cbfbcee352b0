package dx12

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

func TestDescriptorHeapExhaustion(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{Heaps: rhi.HeapSizes{CbvSrvUav: 4}})
	layout, err := d.CreateDescriptorSetLayout(rhi.DescriptorSetLayoutDesc{Bindings: []rhi.DescriptorBinding{
		{Binding: 0, Type: rhi.DescriptorUniformBuffer, Stages: rhi.ShaderStageAllGraphics},
		{Binding: 1, Type: rhi.DescriptorSampledTexture, Stages: rhi.ShaderStageFragment},
	}})
	if err != nil {
		t.Fatal(err)
	}
	defer layout.Destroy()

	var sets []rhi.DescriptorSet
	for i := 0; i < 2; i++ {
		s, err := d.CreateDescriptorSet(rhi.DescriptorSetDesc{Layout: layout})
		if err != nil {
			t.Fatalf("CreateDescriptorSet %d: %v", i, err)
		}
		sets = append(sets, s)
	}
	if _, err := d.CreateDescriptorSet(rhi.DescriptorSetDesc{Layout: layout}); !errors.Is(err, rhi.ErrHeapExhausted) {
		t.Fatalf("CreateDescriptorSet on a full heap:\nhave %v\nwant %v", err, rhi.ErrHeapExhausted)
	}
	// A failed allocation takes nothing.
	if have := d.Stats().DescriptorsInUse; have != 4 {
		t.Fatalf("DescriptorsInUse:\nhave %d\nwant 4", have)
	}

	sets[0].Destroy()
	d.Flush()
	if have := d.Stats().DescriptorsInUse; have != 2 {
		t.Fatalf("DescriptorsInUse after Destroy:\nhave %d\nwant 2", have)
	}
	s, err := d.CreateDescriptorSet(rhi.DescriptorSetDesc{Layout: layout})
	if err != nil {
		t.Fatalf("CreateDescriptorSet after a free: %v", err)
	}
	s.Destroy()
	sets[1].Destroy()
}

func TestDescriptorHeapSlots(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{Heaps: rhi.HeapSizes{RTV: 2}})
	h := d.heap(heapRTV)
	a, _ := h.Allocate()
	b, _ := h.Allocate()
	if a == b {
		t.Fatalf("slots:\nhave %d twice\nwant two slots", a)
	}
	if got, err := h.Allocate(); !errors.Is(err, rhi.ErrHeapExhausted) || got != rhi.InvalidDescriptorIndex {
		t.Fatalf("Allocate on a full heap:\nhave %d, %v\nwant invalid, %v", got, err, rhi.ErrHeapExhausted)
	}
	if have, want := h.CPUHandle(b), h.info.cpuStart+cpuDescriptor(uint64(b)*softDescriptorIncrement); have != want {
		t.Fatalf("CPUHandle(%d):\nhave %#x\nwant %#x", b, have, want)
	}
	h.Free(a)
	h.Free(a)
	if have := h.InUse(); have != 1 {
		t.Fatalf("InUse after a double free:\nhave %d\nwant 1", have)
	}
	h.Free(b)

	// A render target needs an RTV slot.
	if _, err := d.CreateTexture(rhi.TextureDesc{Width: 4, Height: 4, Format: rhi.FormatRGBA8Unorm, Usage: rhi.TextureUsageColorAttachment}); err != nil {
		t.Fatal(err)
	}
	d.CreateTexture(rhi.TextureDesc{Width: 4, Height: 4, Format: rhi.FormatRGBA8Unorm, Usage: rhi.TextureUsageColorAttachment})
	if _, err := d.CreateTexture(rhi.TextureDesc{Width: 4, Height: 4, Format: rhi.FormatRGBA8Unorm, Usage: rhi.TextureUsageColorAttachment}); !errors.Is(err, rhi.ErrHeapExhausted) {
		t.Fatalf("third render target with two RTV slots:\nhave %v\nwant %v", err, rhi.ErrHeapExhausted)
	}
}

func TestTableBlocksRetireWithSubmissions(t *testing.T) {
	d, drv := openHeadless(t, rhi.DeviceConfig{Heaps: rhi.HeapSizes{CbvSrvUav: resourceTableBlock}})
	layout, _ := d.CreateDescriptorSetLayout(rhi.DescriptorSetLayoutDesc{Bindings: []rhi.DescriptorBinding{
		{Binding: 0, Type: rhi.DescriptorUniformBuffer, Stages: rhi.ShaderStageVertex},
	}})
	defer layout.Destroy()
	set, _ := d.CreateDescriptorSet(rhi.DescriptorSetDesc{Layout: layout})
	defer set.Destroy()
	vs, _ := d.CreateShader(rhi.ShaderDesc{Name: "vs", Stage: rhi.ShaderStageVertex, Code: fakeDXIL})
	defer vs.Destroy()
	pass, _ := d.GetOrCreateRenderPass(rhi.RenderPassDesc{ColorAttachments: []rhi.AttachmentDesc{{Format: rhi.FormatRGBA8Unorm}}})
	pipeline, err := d.CreateGraphicsPipeline(rhi.GraphicsPipelineDesc{
		VertexShader:         vs,
		RenderPass:           pass,
		DescriptorSetLayouts: []rhi.DescriptorSetLayout{layout},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer pipeline.Destroy()

	bind := func(cb rhi.CommandBuffer) error {
		if err := cb.SetPipeline(pipeline); err != nil {
			return err
		}
		return cb.BindDescriptorSet(0, set)
	}
	first := mustCommandBuffer(t, d, 0)
	defer first.Destroy()
	second := mustCommandBuffer(t, d, 1)
	defer second.Destroy()

	drv.queue.Pause()
	first.Begin()
	if err := bind(first); err != nil {
		t.Fatal(err)
	}
	if err := d.SubmitCommandBuffer(first, rhi.SubmitInfo{}); err != nil {
		t.Fatal(err)
	}
	// The only block is in flight with the first submission.
	second.Begin()
	if err := bind(second); !errors.Is(err, rhi.ErrHeapExhausted) {
		t.Fatalf("bind while every block is in flight:\nhave %v\nwant %v", err, rhi.ErrHeapExhausted)
	}
	drv.queue.Resume()
	d.WaitIdle()
	if have := d.resourceTables.inFlight(); have != 0 {
		t.Fatalf("table blocks after WaitIdle:\nhave %d\nwant 0", have)
	}
	if err := bind(second); err != nil {
		t.Fatalf("bind after completion: %v", err)
	}
	d.SubmitCommandBuffer(second, rhi.SubmitInfo{})
	d.WaitIdle()
}

func TestDescriptorWrites(t *testing.T) {
	d, drv := openHeadless(t, rhi.DeviceConfig{})
	layout, _ := d.CreateDescriptorSetLayout(rhi.DescriptorSetLayoutDesc{Bindings: []rhi.DescriptorBinding{
		{Binding: 0, Type: rhi.DescriptorUniformBuffer, Stages: rhi.ShaderStageVertex},
		{Binding: 1, Type: rhi.DescriptorSampledTexture, Stages: rhi.ShaderStageFragment},
		{Binding: 2, Type: rhi.DescriptorSampler, Stages: rhi.ShaderStageFragment},
		{Binding: 3, Type: rhi.DescriptorStorageTexture, Stages: rhi.ShaderStageFragment},
	}})
	defer layout.Destroy()
	set, err := d.CreateDescriptorSet(rhi.DescriptorSetDesc{Layout: layout})
	if err != nil {
		t.Fatal(err)
	}
	defer set.Destroy()

	ubo := mustBuffer(t, d, rhi.BufferDesc{Name: "ubo", Size: 512, Usage: rhi.BufferUsageUniform, Memory: rhi.MemoryCPUToGPU})
	defer ubo.Destroy()
	vbo := mustBuffer(t, d, rhi.BufferDesc{Name: "vbo", Size: 256, Usage: rhi.BufferUsageVertex})
	defer vbo.Destroy()
	tex := clearTarget(t, d, "albedo")
	defer tex.Destroy()
	smp, err := d.GetOrCreateSampler(rhi.SamplerDesc{MinFilter: rhi.FilterLinear, MagFilter: rhi.FilterLinear})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"uniform buffer", set.WriteBuffer(0, ubo, 0, 0), nil},
		{"uniform range", set.WriteBuffer(0, ubo, 256, 256), nil},
		{"unaligned constant buffer", set.WriteBuffer(0, ubo, 128, 128), rhi.ErrInvalidArgument},
		{"range past the end", set.WriteBuffer(0, ubo, 256, 512), rhi.ErrOutOfRange},
		{"vertex buffer as uniform", set.WriteBuffer(0, vbo, 0, 0), rhi.ErrInvalidUsage},
		{"buffer into texture binding", set.WriteBuffer(1, ubo, 0, 0), rhi.ErrInvalidArgument},
		{"sampled texture", set.WriteTexture(1, tex), nil},
		{"storage without storage usage", set.WriteTexture(3, tex), rhi.ErrInvalidUsage},
		{"sampler", set.WriteSampler(2, smp), nil},
		{"unknown binding", set.WriteSampler(7, smp), rhi.ErrInvalidArgument},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.want) {
			t.Errorf("%s:\nhave %v\nwant %v", tt.name, tt.err, tt.want)
		}
	}

	// The staged descriptors are what the writes put there.
	s := set.(*DescriptorSet)
	b, _ := s.layout.slot(0)
	if v, ok := drv.view(s.handle(b)); !ok || v.view.kind != viewCBV || v.view.offset != 256 || v.view.size != 256 {
		t.Fatalf("constant buffer view:\nhave %+v, written %v\nwant CBV of 256 bytes at 256", v.view, ok)
	}
	b, _ = s.layout.slot(1)
	if v, ok := drv.view(s.handle(b)); !ok || v.view.kind != viewSRV || v.view.resource != tex.(*Texture).resource {
		t.Fatalf("shader resource view:\nhave %+v, written %v\nwant SRV of the texture", v.view, ok)
	}

	if _, err := d.CreateDescriptorSetLayout(rhi.DescriptorSetLayoutDesc{Bindings: []rhi.DescriptorBinding{
		{Binding: 0}, {Binding: 0},
	}}); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("duplicate binding:\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}
	if _, err := d.CreateDescriptorSetLayout(rhi.DescriptorSetLayoutDesc{Bindings: []rhi.DescriptorBinding{
		{Binding: 0, Type: rhi.DescriptorSampledTexture, Count: resourceTableBlock + 1},
	}}); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("table larger than a block:\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}
	set.Destroy()
	if err := set.WriteSampler(2, smp); !errors.Is(err, rhi.ErrDestroyed) {
		t.Fatalf("write after Destroy:\nhave %v\nwant %v", err, rhi.ErrDestroyed)
	}
}

func TestObjectCaches(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})

	s1, _ := d.GetOrCreateSampler(rhi.SamplerDesc{AddressU: rhi.AddressModeClampToEdge})
	s2, _ := d.GetOrCreateSampler(rhi.SamplerDesc{AddressU: rhi.AddressModeClampToEdge})
	s3, _ := d.GetOrCreateSampler(rhi.SamplerDesc{AddressU: rhi.AddressModeRepeat})
	if s1 != s2 || s1 == s3 {
		t.Fatal("sampler cache: equal descriptions must share a sampler and different ones must not")
	}
	// Cached objects belong to the device.
	s1.Destroy()
	if !s2.IsValid() {
		t.Fatal("cached sampler after Destroy: IsValid have false\nwant true")
	}
	if _, err := d.CreateSampler(rhi.SamplerDesc{MaxAnisotropy: 32}); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("CreateSampler(anisotropy 32):\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}

	passDesc := func() rhi.RenderPassDesc {
		return rhi.RenderPassDesc{ColorAttachments: []rhi.AttachmentDesc{{Format: rhi.FormatRGBA8Unorm, LoadOp: rhi.LoadOpClear}}}
	}
	p1, _ := d.GetOrCreateRenderPass(passDesc())
	p2, _ := d.GetOrCreateRenderPass(passDesc())
	if p1 != p2 {
		t.Fatal("render pass cache: equal descriptions built two passes")
	}

	vs, _ := d.CreateShader(rhi.ShaderDesc{Name: "vs", Stage: rhi.ShaderStageVertex, Code: fakeDXIL})
	defer vs.Destroy()
	desc := rhi.GraphicsPipelineDesc{Name: "cached", VertexShader: vs, RenderPass: p1}
	g1, err := d.GetOrCreateGraphicsPipeline(desc)
	if err != nil {
		t.Fatal(err)
	}
	g2, _ := d.GetOrCreateGraphicsPipeline(desc)
	if g1 != g2 {
		t.Fatal("pipeline cache: equal descriptions built two pipelines")
	}
	if err := vs.Reinitialize(append(append([]byte(nil), fakeDXIL...), 0, 0, 0, 0)); err != nil {
		t.Fatal(err)
	}
	g3, _ := d.GetOrCreateGraphicsPipeline(desc)
	if g3 == g1 {
		t.Fatal("pipeline cache: a reinitialized shader reused the old pipeline")
	}
	if err := vs.Reinitialize([]byte{1, 2, 3}); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("Reinitialize(3 bytes):\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
	}

	if have := d.Stats().CachedObjects; have != 5 {
		t.Fatalf("CachedObjects:\nhave %d\nwant 5", have)
	}
	if have := d.pipelines.Hits(); have != 1 {
		t.Fatalf("pipeline cache hits:\nhave %d\nwant 1", have)
	}
}

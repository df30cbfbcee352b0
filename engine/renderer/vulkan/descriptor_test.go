package vulkan

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

func TestDescriptorPoolsGrow(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{DescriptorPool: rhi.DescriptorPoolSizes{MaxSets: 2}})
	layout, err := d.CreateDescriptorSetLayout(rhi.DescriptorSetLayoutDesc{Bindings: []rhi.DescriptorBinding{
		{Binding: 0, Type: rhi.DescriptorUniformBuffer, Stages: rhi.ShaderStageAllGraphics},
		{Binding: 1, Type: rhi.DescriptorSampledTexture, Stages: rhi.ShaderStageFragment},
		{Binding: 2, Type: rhi.DescriptorSampler, Stages: rhi.ShaderStageFragment},
	}})
	if err != nil {
		t.Fatal(err)
	}
	defer layout.Destroy()

	var sets []rhi.DescriptorSet
	for i := 0; i < 3; i++ {
		s, err := d.CreateDescriptorSet(rhi.DescriptorSetDesc{Layout: layout})
		if err != nil {
			t.Fatalf("CreateDescriptorSet %d: %v", i, err)
		}
		sets = append(sets, s)
	}
	if have := d.descriptors.poolCount(); have != 2 {
		t.Fatalf("pools:\nhave %d\nwant 2", have)
	}
	if have := d.Stats().DescriptorsInUse; have != 3 {
		t.Fatalf("DescriptorsInUse:\nhave %d\nwant 3", have)
	}

	sets[0].Destroy()
	d.Flush()
	if have := d.Stats().DescriptorsInUse; have != 2 {
		t.Fatalf("DescriptorsInUse after Destroy:\nhave %d\nwant 2", have)
	}
	// The freed slot is reused before another pool is created.
	s, err := d.CreateDescriptorSet(rhi.DescriptorSetDesc{Layout: layout})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Destroy()
	if have := d.descriptors.poolCount(); have != 2 {
		t.Fatalf("pools after reuse:\nhave %d\nwant 2", have)
	}
	for _, s := range sets[1:] {
		s.Destroy()
	}
}

func TestDescriptorWrites(t *testing.T) {
	d, _ := openHeadless(t, rhi.DeviceConfig{})
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

	ubo := mustBuffer(t, d, rhi.BufferDesc{Name: "ubo", Size: 256, Usage: rhi.BufferUsageUniform, Memory: rhi.MemoryCPUToGPU})
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
		{"uniform range", set.WriteBuffer(0, ubo, 128, 128), nil},
		{"range past the end", set.WriteBuffer(0, ubo, 128, 256), rhi.ErrOutOfRange},
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

	if _, err := d.CreateDescriptorSetLayout(rhi.DescriptorSetLayoutDesc{Bindings: []rhi.DescriptorBinding{
		{Binding: 0}, {Binding: 0},
	}}); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("duplicate binding:\nhave %v\nwant %v", err, rhi.ErrInvalidArgument)
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

	passDesc := func() rhi.RenderPassDesc {
		return rhi.RenderPassDesc{ColorAttachments: []rhi.AttachmentDesc{{Format: rhi.FormatRGBA8Unorm, LoadOp: rhi.LoadOpClear}}}
	}
	p1, _ := d.GetOrCreateRenderPass(passDesc())
	p2, _ := d.GetOrCreateRenderPass(passDesc())
	if p1 != p2 {
		t.Fatal("render pass cache: equal descriptions built two passes")
	}

	vs, _ := d.CreateShader(rhi.ShaderDesc{Name: "vs", Stage: rhi.ShaderStageVertex, Code: fakeSPIRV})
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
	if err := vs.Reinitialize(append(fakeSPIRV, 0, 0, 0, 0)); err != nil {
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

package rhi

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spaghettifunk/rhi/engine/core"
)

type fakeObject struct{ valid bool }

func (o *fakeObject) IsValid() bool { return o.valid }
func (o *fakeObject) Destroy()      { o.valid = false }

func TestCacheBuildsOnce(t *testing.T) {
	c := NewCache[*fakeObject]()
	var built atomic.Int32
	create := func() (*fakeObject, error) {
		built.Add(1)
		return &fakeObject{valid: true}, nil
	}
	desc := SamplerDesc{MinFilter: FilterLinear, MagFilter: FilterLinear, MaxLod: 8}

	var wg sync.WaitGroup
	results := make([]*fakeObject, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCreate(desc, create)
			if err != nil {
				t.Error(err)
			}
			results[i] = v
		}(i)
	}
	wg.Wait()
	if have := built.Load(); have != 1 {
		t.Fatalf("create calls:\nhave %d\nwant 1", have)
	}
	for i, v := range results {
		if v != results[0] {
			t.Fatalf("GetOrCreate #%d returned a different object", i)
		}
	}

	other := desc
	other.MaxLod = 4
	v, _ := c.GetOrCreate(other, create)
	if v == results[0] {
		t.Fatal("GetOrCreate(other desc): have same object\nwant a new one")
	}
	if have := c.Len(); have != 2 {
		t.Fatalf("Len:\nhave %d\nwant 2", have)
	}
	if c.Misses() != 2 || c.Hits() != 15 {
		t.Fatalf("hits/misses:\nhave %d/%d\nwant 15/2", c.Hits(), c.Misses())
	}

	drained := 0
	c.Drain(func(o *fakeObject) { o.Destroy(); drained++ })
	if drained != 2 || c.Len() != 0 {
		t.Fatalf("Drain:\nhave %d drained, %d left\nwant 2 drained, 0 left", drained, c.Len())
	}
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	c := NewCache[int]()
	boom := errors.New("boom")
	if _, err := c.GetOrCreate(1, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("GetOrCreate:\nhave %v\nwant %v", err, boom)
	}
	v, err := c.GetOrCreate(1, func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("GetOrCreate after failure:\nhave %d, %v\nwant 7, nil", v, err)
	}
}

func TestHashDescIsContentAddressed(t *testing.T) {
	a := RenderPassDesc{ColorAttachments: []AttachmentDesc{{Format: FormatRGBA8Unorm, LoadOp: LoadOpClear}}}
	b := RenderPassDesc{ColorAttachments: []AttachmentDesc{{Format: FormatRGBA8Unorm, LoadOp: LoadOpClear}}}
	ha, _ := HashDesc(a)
	hb, _ := HashDesc(b)
	if ha != hb {
		t.Fatalf("HashDesc of equal descs:\nhave %#x and %#x\nwant equal", ha, hb)
	}
	b.ColorAttachments[0].StoreOp = StoreOpDontCare
	if hc, _ := HashDesc(b); hc == ha {
		t.Fatal("HashDesc of different descs: have equal\nwant different")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := r.Add("Buffer", "vertices", &fakeObject{valid: true})
	r.Add("Texture", "", &fakeObject{valid: true})
	r.Add("Texture", "albedo", &fakeObject{valid: true})

	if have := r.Count("Texture"); have != 2 {
		t.Fatalf("Count(Texture):\nhave %d\nwant 2", have)
	}
	e, ok := r.Lookup(a)
	if !ok || e.Name != "vertices" {
		t.Fatalf("Lookup:\nhave %+v, %t\nwant vertices, true", e, ok)
	}
	live := r.Live()
	if live[0].Kind != "Buffer" || live[1].Name != "Texture-"+live[1].ID.String()[:8] {
		t.Fatalf("Live order or default name unexpected: %+v", live)
	}
	r.Remove(a)
	if have := r.ReportLeaks(core.Logger()); have != 2 {
		t.Fatalf("ReportLeaks:\nhave %d\nwant 2", have)
	}
}

func TestFormats(t *testing.T) {
	for _, x := range []struct {
		f       Format
		size    uint32
		depth   bool
		stencil bool
	}{
		{FormatRGBA8Unorm, 4, false, false},
		{FormatBGRA8Srgb, 4, false, false},
		{FormatRGBA16Float, 8, false, false},
		{FormatRGBA32Float, 16, false, false},
		{FormatD32Float, 4, true, false},
		{FormatD24UnormS8Uint, 4, true, true},
		{FormatUndefined, 0, false, false},
	} {
		if have := x.f.BytesPerPixel(); have != x.size {
			t.Fatalf("%s.BytesPerPixel:\nhave %d\nwant %d", x.f, have, x.size)
		}
		if x.f.IsDepth() != x.depth || x.f.HasStencil() != x.stencil {
			t.Fatalf("%s depth/stencil:\nhave %t/%t\nwant %t/%t", x.f, x.f.IsDepth(), x.f.HasStencil(), x.depth, x.stencil)
		}
	}
	if have := Format(99).String(); have != "Format(99)" {
		t.Fatalf("Format(99).String:\nhave %q\nwant %q", have, "Format(99)")
	}
}

func TestFootprint(t *testing.T) {
	desc := TextureDesc{Format: FormatRGBA8Unorm, Width: 10, Height: 4, MipLevels: 2}

	tight := TightFootprint(desc, 0)
	if tight.RowPitch != 40 || tight.Size != 160 {
		t.Fatalf("TightFootprint:\nhave pitch %d size %d\nwant pitch 40 size 160", tight.RowPitch, tight.Size)
	}
	pitched := PitchedFootprint(desc, 1, 3, 256, 512)
	if pitched.Width != 5 || pitched.Height != 2 {
		t.Fatalf("PitchedFootprint extent:\nhave %dx%d\nwant 5x2", pitched.Width, pitched.Height)
	}
	if pitched.RowPitch != 256 || pitched.Offset != 512 || pitched.Size != 256+20 {
		t.Fatalf("PitchedFootprint:\nhave pitch %d offset %d size %d\nwant pitch 256 offset 512 size 276", pitched.RowPitch, pitched.Offset, pitched.Size)
	}

	src := make([]byte, 5*2*4)
	for i := range src {
		src[i] = byte(i + 1)
	}
	staging := make([]byte, pitched.Offset+pitched.Size)
	PackRows(staging, src, pitched, desc.Format)
	if staging[512+256] != src[20] {
		t.Fatalf("PackRows second row:\nhave %d\nwant %d", staging[512+256], src[20])
	}
	dst := make([]byte, len(src))
	UnpackRows(dst, staging, pitched, desc.Format)
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("UnpackRows[%d]:\nhave %d\nwant %d", i, dst[i], src[i])
		}
	}
}

func TestInRange(t *testing.T) {
	tests := []struct {
		offset, size, limit uint64
		want                bool
	}{
		{0, 64, 64, true},
		{60, 4, 64, true},
		{64, 0, 64, true},
		{61, 4, 64, false},
		{65, 0, 64, false},
		{math.MaxUint64 - 1, 4, 64, false},
		{4, math.MaxUint64, 64, false},
	}
	for _, tt := range tests {
		if have := InRange(tt.offset, tt.size, tt.limit); have != tt.want {
			t.Fatalf("InRange(%d, %d, %d):\nhave %v\nwant %v", tt.offset, tt.size, tt.limit, have, tt.want)
		}
	}
}

func TestBackendRegistry(t *testing.T) {
	if _, err := ParseBackend("metal"); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("ParseBackend(metal):\nhave %v\nwant %v", err, ErrUnknownBackend)
	}
	// Nothing registers Backend(7), so Open must refuse it.
	if _, err := Open(DeviceConfig{Backend: Backend(7)}); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("Open(unregistered):\nhave %v\nwant %v", err, ErrUnknownBackend)
	}
	var got DeviceConfig
	Register(Backend(7), func(cfg DeviceConfig) (Device, error) {
		got = cfg
		return nil, nil
	})
	defer func() {
		mu.Lock()
		delete(backends, Backend(7))
		mu.Unlock()
	}()
	if _, err := Open(DeviceConfig{Backend: Backend(7)}); err != nil {
		t.Fatal(err)
	}
	if got.FramesInFlight != 2 {
		t.Fatalf("FramesInFlight default:\nhave %d\nwant 2", got.FramesInFlight)
	}

	cfg := core.DefaultConfig()
	cfg.Renderer.Backend = "dx12"
	cfg.Renderer.Heaps.RTV = 5
	dc, err := DeviceConfigFrom(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if dc.Backend != BackendDX12 || dc.Heaps.RTV != 5 {
		t.Fatalf("DeviceConfigFrom:\nhave %s rtv=%d\nwant dx12 rtv=5", dc.Backend, dc.Heaps.RTV)
	}
}

func TestResolvedFinalLayout(t *testing.T) {
	if have := (AttachmentDesc{Format: FormatRGBA8Unorm}).ResolvedFinalLayout(); have != LayoutShaderReadOnly {
		t.Fatalf("color default:\nhave %s\nwant %s", have, LayoutShaderReadOnly)
	}
	if have := (AttachmentDesc{Format: FormatD32Float}).ResolvedFinalLayout(); have != LayoutDepthStencilReadOnly {
		t.Fatalf("depth default:\nhave %s\nwant %s", have, LayoutDepthStencilReadOnly)
	}
	if have := (AttachmentDesc{Format: FormatRGBA8Unorm, FinalLayout: LayoutPresentSrc}).ResolvedFinalLayout(); have != LayoutPresentSrc {
		t.Fatalf("explicit:\nhave %s\nwant %s", have, LayoutPresentSrc)
	}
}

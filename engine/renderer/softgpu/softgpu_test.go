package softgpu

import (
	"bytes"
	"testing"
	"time"

	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

func TestQueueExecutesInOrder(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	var order []int
	l := NewCommandList()
	for i := 0; i < 3; i++ {
		i := i
		l.Record(OpCopy, func() { order = append(order, i) })
	}
	if err := q.Submit(l); err != ErrListNotClosed {
		t.Fatalf("Submit(open list):\nhave %v\nwant %v", err, ErrListNotClosed)
	}
	l.Close()
	if err := l.Record(OpOther, func() {}); err != ErrListClosed {
		t.Fatalf("Record(closed list):\nhave %v\nwant %v", err, ErrListClosed)
	}
	f := NewFence(0)
	q.Submit(l)
	q.Signal(f, 1)
	if !f.Wait(1, time.Second) {
		t.Fatal("Wait: fence not signaled")
	}
	if len(order) != 3 || order[0] != 0 || order[2] != 2 {
		t.Fatalf("execution order:\nhave %v\nwant [0 1 2]", order)
	}
	if have := q.Stats.Copies.Load(); have != 3 {
		t.Fatalf("Stats.Copies:\nhave %d\nwant 3", have)
	}
}

func TestQueuePause(t *testing.T) {
	q := NewQueue()
	defer q.Close()
	f := NewFence(0)

	q.Pause()
	q.Signal(f, 5)
	if f.Wait(5, 20*time.Millisecond) {
		t.Fatal("Wait on paused queue: have true\nwant false")
	}
	if f.Completed() != 0 {
		t.Fatalf("Completed while paused:\nhave %d\nwant 0", f.Completed())
	}
	q.Resume()
	q.WaitIdle()
	if f.Completed() != 5 {
		t.Fatalf("Completed after resume:\nhave %d\nwant 5", f.Completed())
	}
}

func TestQueueGPUWait(t *testing.T) {
	q := NewQueue()
	defer q.Close()
	gate, done := NewFence(0), NewFence(0)
	q.Wait(gate, 1)
	q.Signal(done, 1)
	if done.Wait(1, 20*time.Millisecond) {
		t.Fatal("queue passed an unsignaled wait")
	}
	gate.Signal(1)
	if !done.Wait(1, time.Second) {
		t.Fatal("queue did not resume after the wait was satisfied")
	}
}

func TestFenceIsMonotonic(t *testing.T) {
	f := NewFence(3)
	f.Signal(2)
	if f.Completed() != 3 {
		t.Fatalf("Completed:\nhave %d\nwant 3", f.Completed())
	}
	if f.Wait(4, 0) {
		t.Fatal("Wait(4, 0): have true\nwant false")
	}
	if NanosToTimeout(rhi.InfiniteTimeout) >= 0 {
		t.Fatal("NanosToTimeout(max) should be infinite")
	}
}

func TestImageCopies(t *testing.T) {
	img := NewImage(rhi.FormatRGBA8Unorm, 4, 2, 1, 2, 1)
	if have := len(img.Subresource(1, 0)); have != 2*1*4 {
		t.Fatalf("mip 1 size:\nhave %d\nwant 8", have)
	}
	desc := rhi.TextureDesc{Format: rhi.FormatRGBA8Unorm, Width: 4, Height: 2}
	f := rhi.PitchedFootprint(desc, 0, 0, 256, 512)
	src := make([]byte, 32)
	for i := range src {
		src[i] = byte(i)
	}
	staging := make([]byte, f.Size)
	rhi.PackRows(staging, src, f, desc.Format)
	img.CopyFromBuffer(staging, f, 0, 0)
	if !bytes.Equal(img.Subresource(0, 0), src) {
		t.Fatalf("CopyFromBuffer:\nhave %v\nwant %v", img.Subresource(0, 0), src)
	}
	out := make([]byte, f.Size)
	img.CopyToBuffer(out, f, 0, 0)
	if !bytes.Equal(out, staging) {
		t.Fatal("CopyToBuffer does not match the packed staging data")
	}
}

func TestEncodeColor(t *testing.T) {
	red := [4]float32{1, 0, 0, 1}
	for _, x := range []struct {
		format rhi.Format
		want   []byte
	}{
		{rhi.FormatRGBA8Unorm, []byte{255, 0, 0, 255}},
		{rhi.FormatBGRA8Unorm, []byte{0, 0, 255, 255}},
		{rhi.FormatR8Unorm, []byte{255}},
		{rhi.FormatR16Float, []byte{0x00, 0x3c}},
	} {
		if have := EncodeColor(x.format, red); !bytes.Equal(have, x.want) {
			t.Fatalf("EncodeColor(%s):\nhave %v\nwant %v", x.format, have, x.want)
		}
	}
	if have := EncodeDepthStencil(rhi.FormatD24UnormS8Uint, 1, 3); !bytes.Equal(have, []byte{0xff, 0xff, 0xff, 3}) {
		t.Fatalf("EncodeDepthStencil(D24S8):\nhave %v\nwant [255 255 255 3]", have)
	}
}

func TestSurface(t *testing.T) {
	s := NewSurface(rhi.FormatBGRA8Unorm, 4, 4, 2)
	for _, want := range []uint32{0, 1, 0} {
		if have, ok := s.Acquire(); !ok || have != want {
			t.Fatalf("Acquire:\nhave %d, %t\nwant %d, true", have, ok, want)
		}
	}
	imgs := s.Images()
	imgs[1].Fill(0, 0, EncodeColor(rhi.FormatBGRA8Unorm, [4]float32{1, 0, 0, 1}))
	if !s.Present(1) {
		t.Fatal("Present: have false\nwant true")
	}
	if have := s.Front().Texel(3, 3); !bytes.Equal(have, []byte{0, 0, 255, 255}) {
		t.Fatalf("front texel:\nhave %v\nwant [0 0 255 255]", have)
	}
	if s.CurrentBackBuffer() != 1 {
		t.Fatalf("CurrentBackBuffer:\nhave %d\nwant 1", s.CurrentBackBuffer())
	}
	s.Invalidate()
	if _, ok := s.Acquire(); ok {
		t.Fatal("Acquire out of date: have true\nwant false")
	}
	fresh := s.Resize(8, 2, 3)
	if len(fresh) != 3 || fresh[0] == imgs[0] {
		t.Fatal("Resize did not recreate the images")
	}
	if w, h := s.Size(); w != 8 || h != 2 {
		t.Fatalf("Size:\nhave %dx%d\nwant 8x2", w, h)
	}
}

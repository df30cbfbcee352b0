package softgpu

import (
	"sync"

	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// Surface is a presentable image ring with a front buffer holding a copy of
// the last presented image.
type Surface struct {
	mu        sync.Mutex
	format    rhi.Format
	width     uint32
	height    uint32
	images    []*Image
	acquired  uint64
	presented uint64
	outOfDate bool
	front     *Image
}

func NewSurface(format rhi.Format, width, height, count uint32) *Surface {
	s := &Surface{format: format}
	s.Resize(width, height, count)
	return s
}

// Resize drops every image and creates new ones.
func (s *Surface) Resize(width, height, count uint32) []*Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
	s.images = make([]*Image, count)
	for i := range s.images {
		s.images[i] = NewImage(s.format, width, height, 1, 1, 1)
	}
	s.acquired = 0
	s.presented = 0
	s.outOfDate = false
	return append([]*Image(nil), s.images...)
}

func (s *Surface) Images() []*Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Image(nil), s.images...)
}

func (s *Surface) Size() (width, height uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Acquire hands out images round robin. It fails while out of date.
func (s *Surface) Acquire() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outOfDate {
		return 0, false
	}
	i := uint32(s.acquired % uint64(len(s.images)))
	s.acquired++
	return i, true
}

// CurrentBackBuffer is the image the next flip presents.
func (s *Surface) CurrentBackBuffer() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(s.presented % uint64(len(s.images)))
}

// Present copies image index into the front buffer.
func (s *Surface) Present(index uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outOfDate || int(index) >= len(s.images) {
		return false
	}
	s.front = s.images[index].Clone()
	s.presented++
	return true
}

// Invalidate marks the surface out of date, as a window resize would.
func (s *Surface) Invalidate() {
	s.mu.Lock()
	s.outOfDate = true
	s.mu.Unlock()
}

func (s *Surface) OutOfDate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outOfDate
}

// Front returns the last presented image, or nil.
func (s *Surface) Front() *Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.front
}

func (s *Surface) Presented() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}

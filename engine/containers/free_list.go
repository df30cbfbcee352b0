package containers

import "errors"

var (
	ErrFreeListExhausted = errors.New("free list exhausted")
	ErrIndexNotAllocated = errors.New("index is not allocated")
)

// FreeList hands out indices in [0, capacity). Released indices are reused in
// LIFO order. It is not safe for concurrent use.
type FreeList struct {
	free      []uint32
	allocated []bool
	inUse     int
}

func NewFreeList(capacity uint32) *FreeList {
	fl := &FreeList{
		free:      make([]uint32, capacity),
		allocated: make([]bool, capacity),
	}
	// Lowest index on top of the stack.
	for i := range fl.free {
		fl.free[i] = capacity - 1 - uint32(i)
	}
	return fl
}

func (fl *FreeList) Allocate() (uint32, error) {
	if len(fl.free) == 0 {
		return 0, ErrFreeListExhausted
	}
	i := fl.free[len(fl.free)-1]
	fl.free = fl.free[:len(fl.free)-1]
	fl.allocated[i] = true
	fl.inUse++
	return i, nil
}

func (fl *FreeList) Free(index uint32) error {
	if int(index) >= len(fl.allocated) || !fl.allocated[index] {
		return ErrIndexNotAllocated
	}
	fl.allocated[index] = false
	fl.free = append(fl.free, index)
	fl.inUse--
	return nil
}

func (fl *FreeList) Capacity() uint32 {
	return uint32(len(fl.allocated))
}

func (fl *FreeList) InUse() int {
	return fl.inUse
}

package rhi

import (
	"fmt"

	"github.com/docker/go-units"
)

// Stats are device counters. Command counters count native commands recorded
// by the backend, so skipped barriers do not show up.
type Stats struct {
	Submissions uint64
	Barriers    uint64
	Draws       uint64
	Copies      uint64
	Clears      uint64

	// CommandAllocators is the number of native command allocators or pools
	// created so far. It only grows.
	CommandAllocators  int
	AllocatorsInUse    int
	AllocatorsPending  int
	AllocatorsIdle     int
	PendingDeletions   int
	LiveObjects        int
	BufferMemory       uint64
	TextureMemory      uint64
	LastSubmitted      uint64
	LastCompleted      uint64
	DescriptorsInUse   int
	CachedObjects      int
	StagingUploadBytes uint64
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"submissions=%d barriers=%d draws=%d copies=%d clears=%d allocators=%d (in use %d, pending %d) deletions=%d objects=%d buffers=%s textures=%s staged=%s",
		s.Submissions, s.Barriers, s.Draws, s.Copies, s.Clears,
		s.CommandAllocators, s.AllocatorsInUse, s.AllocatorsPending,
		s.PendingDeletions, s.LiveObjects,
		units.BytesSize(float64(s.BufferMemory)),
		units.BytesSize(float64(s.TextureMemory)),
		units.BytesSize(float64(s.StagingUploadBytes)),
	)
}

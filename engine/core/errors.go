package core

import (
	"errors"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrUnknownBackend   = errors.New("unknown renderer backend")
	ErrNotInitialized   = errors.New("subsystem not initialized")
	ErrUnknown          = errors.New("unknown")
)

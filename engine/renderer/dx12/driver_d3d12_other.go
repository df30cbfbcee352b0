//go:build !windows

package dx12

import (
	"fmt"
	"runtime"

	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

func newD3D12Driver(cfg rhi.DeviceConfig) (driver, error) {
	return nil, fmt.Errorf("%w: direct3d 12 is not available on %s, open the device headless", rhi.ErrUnknownBackend, runtime.GOOS)
}

package renderer

import (
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"

	// Backends register themselves with rhi on import.
	_ "github.com/spaghettifunk/rhi/engine/renderer/dx12"
	_ "github.com/spaghettifunk/rhi/engine/renderer/vulkan"
)

// openDevice resolves the backend named in the config and opens it. window is
// only handed to native drivers; headless devices present to memory.
func openDevice(cfg *core.Config, window any) (rhi.Device, error) {
	devCfg, err := rhi.DeviceConfigFrom(cfg)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	if !devCfg.Headless {
		devCfg.Window = window
	}
	core.LogInfo("opening %s device (headless: %t, backends: %v)", devCfg.Backend, devCfg.Headless, rhi.Backends())
	return rhi.Open(devCfg)
}

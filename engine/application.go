package engine

import "github.com/spaghettifunk/rhi/engine/core"

type ApplicationConfig struct {
	// TOML file read by New. Empty, or a missing file, keeps the defaults.
	ConfigPath string
	// Stop after this many frames. 0 runs until the application quits;
	// headless runs have no window to close and need it.
	MaxFrames uint64
	// Config is loaded by New when nil.
	Config *core.Config
}

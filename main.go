/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/rhi/engine"
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/testbed"
)

func main() {
	configPath := "testbed/config.toml"
	if p := os.Getenv("RHI_CONFIG"); p != "" {
		configPath = p
	}
	tb, err := testbed.NewTestGame(configPath, 0)
	if err != nil {
		core.LogFatal("%s", err)
	}

	engine, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("%s", err)
	}
	if tb.ApplicationConfig.Config.Renderer.Headless {
		// Nothing closes a headless run.
		tb.ApplicationConfig.MaxFrames = 120
	}

	if err := engine.Initialize(); err != nil {
		core.LogFatal("%s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// stop the loop; Run shuts the engine down on the main thread
	go func() {
		<-sigCh
		engine.Quit()
	}()

	if err := engine.Run(); err != nil {
		core.LogFatal("%s", err)
	}
}

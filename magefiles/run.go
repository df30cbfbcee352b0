//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the testbed with testbed/config.toml.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", "main.go"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the testbed on the headless driver of the given backend.
func (Run) Headless(backend string) error {
	mg.Deps(Build.Shaders)
	cfg := fmt.Sprintf("[renderer]\nbackend = %q\nheadless = true\n", backend)
	path, err := writeTemp("rhi-headless-*.toml", cfg)
	if err != nil {
		return err
	}
	_, err = executeCmd("go", withArgs("run", "main.go"), withEnv("RHI_CONFIG="+path), withStream())
	return err
}

type Test mg.Namespace

// Runs every test. The backends run on their headless drivers, no GPU needed.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Runs every test with the race detector.
func (Test) Race() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

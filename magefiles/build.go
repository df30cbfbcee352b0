//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles the testbed shaders to SPIR-V with glslc and to DXIL with dxc.
func (Build) Shaders() error {
	return buildShaders()
}

func buildShaders() error {
	for _, stage := range []string{"vert", "frag"} {
		src := "shaders/triangle." + stage
		if _, err := executeCmd("glslc", withArgs(src, "-o", src+".spv")); err != nil {
			return err
		}
	}
	dxc := []struct{ profile, entry, out string }{
		{"vs_6_0", "VSMain", "shaders/triangle.vert.dxil"},
		{"ps_6_0", "PSMain", "shaders/triangle.frag.dxil"},
	}
	for _, s := range dxc {
		if _, err := executeCmd("dxc", withArgs("-T", s.profile, "-E", s.entry, "-Fo", s.out, "shaders/triangle.hlsl")); err != nil {
			return err
		}
	}
	return nil
}

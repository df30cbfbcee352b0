package testbed

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
)

func writeBMP(dir string, n int, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("screenshot-%03d.bmp", n))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := bmp.Encode(f, img); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

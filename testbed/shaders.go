package testbed

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/rhi/engine/core"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

// shaderExt is the extension of the compiled shaders of each backend, as
// written by `mage build:shaders`.
func shaderExt(b rhi.Backend) string {
	if b == rhi.BackendDX12 {
		return ".dxil"
	}
	return ".spv"
}

func readShader(dir, name string, b rhi.Backend) ([]byte, error) {
	return os.ReadFile(filepath.Join(dir, name+shaderExt(b)))
}

type shaderChange struct {
	name string
	code []byte
}

// shaderWatcher reports rewritten shader files. Changes are read on the
// watcher goroutine and handed over on a channel, so the shaders are only
// touched by the goroutine that records frames.
type shaderWatcher struct {
	watcher *fsnotify.Watcher
	ext     string
	changes chan shaderChange
	done    chan struct{}
}

func watchShaders(dir string, b rhi.Backend) (*shaderWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	sw := &shaderWatcher{
		watcher: w,
		ext:     shaderExt(b),
		changes: make(chan shaderChange, 8),
		done:    make(chan struct{}),
	}
	go sw.run()
	return sw, nil
}

func (sw *shaderWatcher) run() {
	defer close(sw.done)
	for {
		select {
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			base := filepath.Base(event.Name)
			if !strings.HasSuffix(base, sw.ext) {
				continue
			}
			code, err := os.ReadFile(event.Name)
			if err != nil || len(code) == 0 {
				// Partially written; the next event carries the rest.
				continue
			}
			select {
			case sw.changes <- shaderChange{name: strings.TrimSuffix(base, sw.ext), code: code}:
			default:
				core.LogWarn("dropped reload of %s", base)
			}
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			core.LogError("shader watcher: %s", err)
		}
	}
}

// pending returns the changes received so far without blocking. Several
// writes of one file collapse into the last one.
func (sw *shaderWatcher) pending() []shaderChange {
	var out []shaderChange
	for {
		select {
		case c := <-sw.changes:
			replaced := false
			for i := range out {
				if out[i].name == c.name {
					out[i], replaced = c, true
				}
			}
			if !replaced {
				out = append(out, c)
			}
		default:
			return out
		}
	}
}

func (sw *shaderWatcher) Close() error {
	err := sw.watcher.Close()
	<-sw.done
	return err
}

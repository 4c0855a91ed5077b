// Package display puts slideshow frames on a screen
package display

import (
	"fmt"
	"image"

	"github.com/aouyang1/photoslideshow/settings"
)

const (
	defaultWidth  = 1920
	defaultHeight = 1080
)

// Display is a fullscreen output. Draw is only called from the slideshow loop.
type Display interface {
	Bounds() image.Rectangle
	Draw(frame image.Image) error
	Close() error
}

// New opens the display backend named in cfg.
func New(cfg settings.Display) (Display, error) {
	switch cfg.Backend {
	case settings.BackendFramebuffer:
		return OpenFramebuffer(cfg.Device)
	case settings.BackendHeadless:
		w, h := cfg.Width, cfg.Height
		if w <= 0 || h <= 0 {
			w, h = defaultWidth, defaultHeight
		}
		return NewHeadless(w, h, cfg.Device), nil
	default:
		return nil, fmt.Errorf("unknown display backend %q", cfg.Backend)
	}
}

// Size is the width and height of d.
func Size(d Display) image.Point {
	return d.Bounds().Size()
}

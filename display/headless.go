package display

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Headless keeps frames in memory. It backs tests and runs without a screen,
// and writes the last frame as a PNG on Close when snapshot names a .png file.
type Headless struct {
	mu       sync.Mutex
	bounds   image.Rectangle
	snapshot string

	frames int
	last   *image.RGBA
	closed bool
}

func NewHeadless(width, height int, snapshot string) *Headless {
	if !strings.EqualFold(filepath.Ext(snapshot), ".png") {
		snapshot = ""
	}
	return &Headless{
		bounds:   image.Rect(0, 0, width, height),
		snapshot: snapshot,
	}
}

func (h *Headless) Bounds() image.Rectangle {
	return h.bounds
}

func (h *Headless) Draw(frame image.Image) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("headless display is closed")
	}
	if h.last == nil {
		h.last = image.NewRGBA(h.bounds)
	}
	draw.Draw(h.last, h.bounds, frame, frame.Bounds().Min, draw.Src)
	h.frames++
	return nil
}

// Frames is the number of frames drawn so far.
func (h *Headless) Frames() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}

// Last returns a copy of the most recent frame, or nil before the first Draw.
func (h *Headless) Last() *image.RGBA {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return nil
	}
	out := image.NewRGBA(h.last.Rect)
	copy(out.Pix, h.last.Pix)
	return out
}

func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if h.snapshot == "" || h.last == nil {
		return nil
	}

	f, err := os.Create(h.snapshot)
	if err != nil {
		return fmt.Errorf("unable to create snapshot %s: %w", h.snapshot, err)
	}
	defer f.Close()
	if err := png.Encode(f, h.last); err != nil {
		return fmt.Errorf("unable to encode snapshot %s: %w", h.snapshot, err)
	}
	return nil
}

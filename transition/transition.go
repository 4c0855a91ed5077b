// Package transition holds the effects played when the slideshow changes image
package transition

import (
	"image"
	"sort"

	"github.com/aouyang1/photoslideshow/imaging"
	"golang.org/x/image/draw"
)

// Transition renders intermediate frames between two frames of equal size.
type Transition interface {
	// Frame draws progress t of the change from -> to into dst, 0 <= t <= 1.
	Frame(dst, from, to *image.RGBA, t float64)

	// Instant reports whether the transition has no intermediate frames.
	Instant() bool
}

var registry = map[string]Transition{
	"fade":  fade{},
	"cut":   cut{},
	"slide": slide{},
}

// Register adds or replaces a named transition.
func Register(name string, t Transition) {
	registry[name] = t
}

// Get returns the named transition, or cut when the name is unknown.
func Get(name string) Transition {
	if t, ok := registry[name]; ok {
		return t
	}
	return cut{}
}

func Exists(name string) bool {
	_, ok := registry[name]
	return ok
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type fade struct{}

func (fade) Frame(dst, from, to *image.RGBA, t float64) {
	imaging.Blend(dst, from, to, t)
}

func (fade) Instant() bool { return false }

type cut struct{}

func (cut) Frame(dst, _, to *image.RGBA, _ float64) {
	copy(dst.Pix, to.Pix)
}

func (cut) Instant() bool { return true }

// slide pushes the new frame in from the right edge.
type slide struct{}

func (slide) Frame(dst, from, to *image.RGBA, t float64) {
	b := dst.Bounds()
	offset := int(float64(b.Dx()) * min(1, max(0, t)))

	draw.Draw(dst, image.Rect(b.Min.X, b.Min.Y, b.Max.X-offset, b.Max.Y), from, image.Pt(from.Bounds().Min.X+offset, from.Bounds().Min.Y), draw.Src)
	draw.Draw(dst, image.Rect(b.Max.X-offset, b.Min.Y, b.Max.X, b.Max.Y), to, to.Bounds().Min, draw.Src)
}

func (slide) Instant() bool { return false }

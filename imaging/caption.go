package imaging

import (
	"fmt"
	"image"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
)

const (
	captionPoints  = 28
	captionPadding = 8
	captionMargin  = 10
)

// Captioner draws a short text label in a translucent box at the bottom left
// of a frame. It is safe for concurrent use.
type Captioner struct {
	// guards face, truetype faces keep a glyph cache
	mu   sync.Mutex
	face font.Face
}

// NewCaptioner loads the TrueType font at fontPath. An empty path keeps the
// built in bitmap face.
func NewCaptioner(fontPath string) (*Captioner, error) {
	if fontPath == "" {
		return &Captioner{}, nil
	}
	face, err := gg.LoadFontFace(fontPath, captionPoints)
	if err != nil {
		return nil, fmt.Errorf("unable to load caption font %s: %w", fontPath, err)
	}
	return &Captioner{face: face}, nil
}

func (c *Captioner) Draw(frame *image.RGBA, text string) {
	if text == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dc := gg.NewContextForRGBA(frame)
	if c.face != nil {
		dc.SetFontFace(c.face)
	}

	w, h := dc.MeasureString(text)
	boxW := w + 2*captionPadding
	boxH := h + 2*captionPadding
	x := float64(captionMargin)
	y := float64(frame.Bounds().Dy()) - boxH - 2*captionMargin

	dc.SetRGBA(0, 0, 0, 150.0/255)
	dc.DrawRectangle(x, y, boxW, boxH)
	dc.Fill()

	dc.SetRGB(1, 1, 1)
	dc.DrawString(text, x+captionPadding, y+captionPadding+h)
}

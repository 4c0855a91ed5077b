package display

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	qrcode "github.com/skip2/go-qrcode"
)

// Splash shows a QR code of the control url centered on a black screen while
// the first image is prepared.
func Splash(d Display, url string) error {
	b := d.Bounds()
	frame := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(frame, frame.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	if url != "" {
		q, err := qrcode.New(url, qrcode.Medium)
		if err != nil {
			return fmt.Errorf("unable to encode splash qr code: %w", err)
		}
		size := min(b.Dx(), b.Dy()) / 3
		if size > 0 {
			img := q.Image(size)
			x0 := (b.Dx() - size) / 2
			y0 := (b.Dy() - size) / 2
			draw.Draw(frame, image.Rect(x0, y0, x0+size, y0+size), img, img.Bounds().Min, draw.Src)
		}
	}

	if err := d.Draw(frame); err != nil {
		return fmt.Errorf("unable to draw splash: %w", err)
	}
	return nil
}

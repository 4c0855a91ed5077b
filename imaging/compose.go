package imaging

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

const (
	PolicyCover = "cover"
	PolicyFit   = "fit"

	// width in screen pixels of the image edge stretched into a letterbox bar
	echoStrip = 8
	// downscale factor used to blur the echo
	echoBlur = 12
)

// Placement returns where an image of size src lands on a screen of size
// screen. With cover the image fills the screen and may extend past it, with
// fit the whole image is visible and centered.
func Placement(src, screen image.Point, policy string) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 || screen.X <= 0 || screen.Y <= 0 {
		return image.Rectangle{}
	}

	sx := float64(screen.X) / float64(src.X)
	sy := float64(screen.Y) / float64(src.Y)
	scale := max(sx, sy)
	if policy == PolicyFit {
		scale = min(sx, sy)
	}

	w := max(1, int(math.Round(float64(src.X)*scale)))
	h := max(1, int(math.Round(float64(src.Y)*scale)))
	x0 := (screen.X - w) / 2
	y0 := (screen.Y - h) / 2
	return image.Rect(x0, y0, x0+w, y0+h)
}

// Compose renders src onto a new opaque frame of the given size. When echo is
// set, bars left by the fit policy are filled with a blurred stretch of the
// nearest image edge instead of black.
func Compose(src image.Image, size image.Point, policy string, echo bool) *image.RGBA {
	frame := image.NewRGBA(image.Rectangle{Max: size})
	draw.Draw(frame, frame.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	sb := src.Bounds()
	dr := Placement(sb.Size(), size, policy)
	if dr.Empty() {
		return frame
	}

	if !echo || dr.Min.X <= 0 && dr.Min.Y <= 0 {
		draw.CatmullRom.Scale(frame, dr, src, sb, draw.Src, nil)
		return frame
	}

	scaled := image.NewRGBA(image.Rect(0, 0, dr.Dx(), dr.Dy()))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, sb, draw.Src, nil)

	sw, sh := scaled.Bounds().Dx(), scaled.Bounds().Dy()
	if dr.Min.X > 0 {
		strip := min(echoStrip, sw)
		blurStretch(frame, image.Rect(0, dr.Min.Y, dr.Min.X, dr.Max.Y), scaled, image.Rect(0, 0, strip, sh))
		blurStretch(frame, image.Rect(dr.Max.X, dr.Min.Y, size.X, dr.Max.Y), scaled, image.Rect(sw-strip, 0, sw, sh))
	}
	if dr.Min.Y > 0 {
		strip := min(echoStrip, sh)
		blurStretch(frame, image.Rect(dr.Min.X, 0, dr.Max.X, dr.Min.Y), scaled, image.Rect(0, 0, sw, strip))
		blurStretch(frame, image.Rect(dr.Min.X, dr.Max.Y, dr.Max.X, size.Y), scaled, image.Rect(0, sh-strip, sw, sh))
	}

	draw.Draw(frame, dr, scaled, image.Point{}, draw.Src)
	return frame
}

// blurStretch scales sr of src into dr of dst through two aggressive
// downscales, which smears it into a soft blur.
func blurStretch(dst *image.RGBA, dr image.Rectangle, src image.Image, sr image.Rectangle) {
	if dr.Empty() || sr.Empty() {
		return
	}

	small := image.NewRGBA(image.Rect(0, 0, max(1, dr.Dx()/echoBlur), max(1, dr.Dy()/echoBlur)))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), src, sr, draw.Src, nil)

	smaller := image.NewRGBA(image.Rect(0, 0, max(1, small.Bounds().Dx()/2), max(1, small.Bounds().Dy()/2)))
	draw.ApproxBiLinear.Scale(smaller, smaller.Bounds(), small, small.Bounds(), draw.Src, nil)

	draw.BiLinear.Scale(dst, dr, smaller, smaller.Bounds(), draw.Src, nil)
}

package imaging

import (
	"image"
	"math"
)

// Clone returns a copy of frame that shares no pixels with it.
func Clone(frame *image.RGBA) *image.RGBA {
	out := image.NewRGBA(frame.Rect)
	copy(out.Pix, frame.Pix)
	return out
}

// Dim scales the color channels of frame by factor in place. Alpha is kept.
func Dim(frame *image.RGBA, factor float64) {
	if factor >= 1 {
		return
	}
	factor = math.Max(0, factor)

	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(math.Round(float64(i) * factor))
	}
	for i := 0; i+3 < len(frame.Pix); i += 4 {
		frame.Pix[i] = lut[frame.Pix[i]]
		frame.Pix[i+1] = lut[frame.Pix[i+1]]
		frame.Pix[i+2] = lut[frame.Pix[i+2]]
	}
}

// Blend writes the mix of from and to at progress t (0 shows from, 1 shows to)
// into dst. All three frames must share the same bounds.
func Blend(dst, from, to *image.RGBA, t float64) {
	t = math.Min(1, math.Max(0, t))
	a := uint32(math.Round(t * 255))
	n := min(len(dst.Pix), len(from.Pix), len(to.Pix))
	for i := 0; i < n; i++ {
		dst.Pix[i] = uint8((uint32(from.Pix[i])*(255-a) + uint32(to.Pix[i])*a + 127) / 255)
	}
}

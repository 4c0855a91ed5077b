// Package imaging decodes photos and prepares full screen frames from them
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Photo is a decoded image with orientation applied.
type Photo struct {
	Path    string
	Image   image.Image
	Caption string
}

// Decode reads and decodes the image at path, rotating it upright according to
// its EXIF orientation. The caption is the EXIF capture month as MM/YYYY, or the
// name of the containing folder when no date is recorded.
func Decode(path string) (*Photo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read image %s: %w", path, err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to decode image %s: %w", path, err)
	}

	photo := &Photo{
		Path:    path,
		Image:   img,
		Caption: filepath.Base(filepath.Dir(path)),
	}

	// most formats carry no exif, that is not an error
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return photo, nil
	}
	if taken, err := x.DateTime(); err == nil {
		photo.Caption = taken.Format("01/2006")
	}
	if tag, err := x.Get(exif.Orientation); err == nil {
		if orientation, err := tag.Int(0); err == nil {
			photo.Image = Orient(img, orientation)
		}
	}
	return photo, nil
}

// Orient rotates img for the EXIF orientation values 3, 6 and 8. Mirrored
// orientations are shown as stored.
func Orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case 3:
		return rotate(img, 180)
	case 6:
		return rotate(img, 90)
	case 8:
		return rotate(img, 270)
	default:
		return img
	}
}

// rotate turns img clockwise by degrees, a multiple of 90.
func rotate(img image.Image, degrees int) *image.RGBA {
	b := img.Bounds()
	src := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)

	w, h := b.Dx(), b.Dy()
	var dst *image.RGBA
	if degrees == 180 {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.RGBAAt(x, y)
			switch degrees {
			case 90:
				dst.SetRGBA(h-1-y, x, c)
			case 180:
				dst.SetRGBA(w-1-x, h-1-y, c)
			case 270:
				dst.SetRGBA(y, w-1-x, c)
			}
		}
	}
	return dst
}

package slideshow

import (
	"image"

	"github.com/aouyang1/photoslideshow/imaging"
)

// FrameOptions controls how decoded photos become screen frames.
type FrameOptions struct {
	Size      image.Point
	Policy    string
	Echo      bool
	Captioner *imaging.Captioner
}

// NewFrameLoader returns a loader that decodes, scales and captions a photo
// into a frame of exactly opts.Size.
func NewFrameLoader(opts FrameOptions) func(path string) (*image.RGBA, error) {
	return func(path string) (*image.RGBA, error) {
		photo, err := imaging.Decode(path)
		if err != nil {
			return nil, err
		}
		frame := imaging.Compose(photo.Image, opts.Size, opts.Policy, opts.Echo)
		if opts.Captioner != nil && photo.Caption != "" {
			opts.Captioner.Draw(frame, photo.Caption)
		}
		return frame, nil
	}
}

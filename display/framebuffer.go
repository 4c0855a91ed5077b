package display

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"

	"github.com/gonutz/framebuffer"
)

// Framebuffer draws onto a Linux framebuffer device such as /dev/fb0.
type Framebuffer struct {
	fb     *framebuffer.Device
	device string
}

func OpenFramebuffer(device string) (*Framebuffer, error) {
	fb, err := framebuffer.Open(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open framebuffer %s: %w", device, err)
	}
	slog.Info("opened framebuffer", "device", device, "bounds", fb.Bounds())
	return &Framebuffer{fb: fb, device: device}, nil
}

func (f *Framebuffer) Bounds() image.Rectangle {
	return f.fb.Bounds()
}

func (f *Framebuffer) Draw(frame image.Image) error {
	draw.Draw(f.fb, f.fb.Bounds(), frame, frame.Bounds().Min, draw.Src)
	return nil
}

// Close blanks the screen and releases the device.
func (f *Framebuffer) Close() error {
	draw.Draw(f.fb, f.fb.Bounds(), image.Black, image.Point{}, draw.Src)
	f.fb.Close()
	slog.Info("closed framebuffer", "device", f.device)
	return nil
}

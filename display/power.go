package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/aouyang1/photoslideshow/settings"
	"github.com/aouyang1/photoslideshow/wlrrandr"
	"github.com/stianeikeland/go-rpio/v4"
)

// Power switches the physical screen or its backlight.
type Power interface {
	Enabled() (bool, error)
	SetEnabled(enabled bool) error
}

// NewPower returns the power control named in cfg.
func NewPower(cfg settings.Display) (Power, error) {
	switch cfg.Power {
	case settings.PowerNone, "":
		return &NopPower{enabled: true}, nil
	case settings.PowerWlrRandr:
		return wlrrandr.New(cfg.Output), nil
	case settings.PowerGPIO:
		return NewBacklight(cfg.BacklightPin)
	default:
		return nil, fmt.Errorf("unknown display power control %q", cfg.Power)
	}
}

// ClosePower releases whatever p holds open, such as the gpio memory map.
func ClosePower(p Power) error {
	c, ok := p.(io.Closer)
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("failed to release display power control: %w", err)
	}
	return nil
}

// NopPower only remembers the requested state.
type NopPower struct {
	mu      sync.Mutex
	enabled bool
}

func (p *NopPower) Enabled() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled, nil
}

func (p *NopPower) SetEnabled(enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
	return nil
}

// Backlight drives a display backlight wired to a Raspberry Pi GPIO pin.
type Backlight struct {
	pin rpio.Pin
}

func NewBacklight(pin int) (*Backlight, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open gpio: %w", err)
	}
	b := &Backlight{pin: rpio.Pin(pin)}
	b.pin.Output()
	b.pin.High()
	return b, nil
}

func (b *Backlight) Enabled() (bool, error) {
	return b.pin.Read() == rpio.High, nil
}

func (b *Backlight) SetEnabled(enabled bool) error {
	if enabled {
		b.pin.High()
	} else {
		b.pin.Low()
	}
	return nil
}

func (b *Backlight) Close() error {
	return rpio.Close()
}

package slideshow

import (
	"errors"
	"sync"
)

var ErrCaptionToggleUnavailable = errors.New("caption toggle is not available")

// Player is a stable Controller over the runner currently on screen. The
// slideshow restarts with a new Runner whenever settings or folders change.
type Player struct {
	mu            sync.RWMutex
	runner        *Runner
	toggleCaption func() error
}

func NewPlayer() *Player {
	return &Player{}
}

// Attach makes r the target of all later calls.
func (p *Player) Attach(r *Runner) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runner = r
}

// OnToggleCaption sets what ActionToggleCaption runs. It outlives restarts.
func (p *Player) OnToggleCaption(fn func() error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toggleCaption = fn
}

func (p *Player) current() (*Runner, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.runner == nil {
		return nil, ErrNotRunning
	}
	return p.runner, nil
}

func (p *Player) Do(a Action) error {
	if a == ActionToggleCaption {
		p.mu.RLock()
		toggle := p.toggleCaption
		p.mu.RUnlock()
		if toggle == nil {
			return ErrCaptionToggleUnavailable
		}
		return toggle()
	}

	r, err := p.current()
	if err != nil {
		return err
	}
	return r.Do(a)
}

func (p *Player) Play(index int) error {
	r, err := p.current()
	if err != nil {
		return err
	}
	return r.Play(index)
}

func (p *Player) Status() Status {
	r, err := p.current()
	if err != nil {
		return Status{}
	}
	return r.Status()
}

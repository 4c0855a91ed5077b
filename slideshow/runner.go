// Package slideshow runs the fullscreen display loop
package slideshow

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/aouyang1/photoslideshow/display"
	"github.com/aouyang1/photoslideshow/imaging"
	"github.com/aouyang1/photoslideshow/library"
	"github.com/aouyang1/photoslideshow/schedule"
	"github.com/aouyang1/photoslideshow/transition"
)

const (
	defaultFrameRate  = 30
	defaultNightCheck = 30 * time.Second
	commandQueueSize  = 8
)

var (
	// ErrNoDisplayableImages is returned when every image in the set fails to load.
	ErrNoDisplayableImages = errors.New("no displayable images")
	ErrNotRunning          = errors.New("slideshow is not running")
	ErrIndexOutOfRange     = errors.New("image index out of range")

	// ErrBusy is returned when the action queue is full, typically during a
	// long transition.
	ErrBusy = errors.New("slideshow is busy")

	errQuit = errors.New("quit requested")
)

// Frames hands out prepared full screen frames by image path.
type Frames interface {
	Get(path string) (*image.RGBA, error)
	Prefetch(paths ...string)
}

// Recorder persists the image on screen.
type Recorder interface {
	SavePlayback(path string, shownAt time.Time) error
}

type Options struct {
	Interval           time.Duration
	Transition         transition.Transition
	TransitionDuration time.Duration
	FrameRate          int

	// Night is the night mode window, nil when night mode is off.
	Night           *schedule.Window
	NightBrightness float64
	NightPause      bool
	NightCheck      time.Duration

	// StartPath selects the first image when it is part of the set.
	StartPath string
	Prefetch  int
	Recorder  Recorder
	Now       func() time.Time
}

type Status struct {
	Running bool      `json:"running"`
	Index   int       `json:"index"`
	Count   int       `json:"count"`
	Path    string    `json:"path"`
	Paused  bool      `json:"paused"`
	Night   bool      `json:"night"`
	ShownAt time.Time `json:"shown_at"`
}

type command struct {
	action Action
	index  int
}

// Runner plays a fixed set of images. All playback state is owned by the Run
// goroutine; other goroutines reach it through Do, Play and Status.
type Runner struct {
	display display.Display
	frames  Frames
	images  []library.Image
	opts    Options

	commands chan command
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
	runOnce  sync.Once

	// owned by Run
	index   int
	paused  bool
	night   bool
	current *image.RGBA
	scratch *image.RGBA

	mu     sync.RWMutex
	status Status
}

func NewRunner(d display.Display, frames Frames, images []library.Image, opts Options) (*Runner, error) {
	if len(images) == 0 {
		return nil, library.ErrEmptyLibrary
	}
	if d == nil || frames == nil {
		return nil, errors.New("runner needs a display and a frame source")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", opts.Interval)
	}
	if opts.Transition == nil {
		opts.Transition = transition.Get("cut")
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = defaultFrameRate
	}
	if opts.NightCheck <= 0 {
		opts.NightCheck = defaultNightCheck
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := &Runner{
		display:  d,
		frames:   frames,
		images:   images,
		opts:     opts,
		commands: make(chan command, commandQueueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if opts.StartPath != "" {
		for i, img := range images {
			if img.Path == opts.StartPath {
				r.index = i
				break
			}
		}
	}
	r.status = Status{Index: r.index, Count: len(images), Path: images[r.index].Path}
	return r, nil
}

// Run shows images until ctx is done or a quit action arrives. It returns nil
// on a requested stop. A Runner runs once.
func (r *Runner) Run(ctx context.Context) error {
	started := false
	r.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("runner already ran")
	}
	defer close(r.done)
	defer r.setRunning(false)

	r.night = r.inNight()
	r.setRunning(true)
	if err := r.step(ctx, 0); err != nil {
		return r.stopErr(err)
	}

	timer := time.NewTimer(r.opts.Interval)
	defer timer.Stop()
	nightTicker := time.NewTicker(r.opts.NightCheck)
	defer nightTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.quit:
			return nil
		case cmd := <-r.commands:
			moved, err := r.handle(ctx, cmd)
			if err != nil {
				return r.stopErr(err)
			}
			if moved {
				resetTimer(timer, r.opts.Interval)
			}
		case <-nightTicker.C:
			if err := r.refreshNight(); err != nil {
				return err
			}
		case <-timer.C:
			if err := r.refreshNight(); err != nil {
				return err
			}
			if !r.holding() {
				if err := r.step(ctx, 1); err != nil {
					return r.stopErr(err)
				}
			}
			// the interval counts from the end of the transition
			timer.Reset(r.opts.Interval)
		}
	}
}

// Do queues an action for the loop. Quit takes effect immediately, even in the
// middle of a transition.
func (r *Runner) Do(a Action) error {
	if a == ActionQuit {
		r.quitOnce.Do(func() { close(r.quit) })
		return nil
	}
	return r.send(command{action: a})
}

// Play jumps to the image at index.
func (r *Runner) Play(index int) error {
	if index < 0 || index >= len(r.images) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(r.images))
	}
	return r.send(command{action: "play", index: index})
}

func (r *Runner) send(cmd command) error {
	select {
	case <-r.done:
		return ErrNotRunning
	default:
	}
	select {
	case r.commands <- cmd:
		return nil
	case <-r.done:
		return ErrNotRunning
	default:
		return ErrBusy
	}
}

func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Done is closed once Run has returned.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) handle(ctx context.Context, cmd command) (bool, error) {
	switch cmd.action {
	case ActionNext:
		return true, r.step(ctx, 1)
	case ActionPrev:
		return true, r.step(ctx, -1)
	case ActionPause:
		r.paused = !r.paused
		r.updateStatus()
		slog.Info("slideshow pause toggled", "paused", r.paused)
		return false, nil
	case ActionResume:
		r.paused = false
		r.updateStatus()
		return true, nil
	case "play":
		return true, r.show(ctx, cmd.index, 1)
	default:
		slog.Warn("ignoring unknown slideshow action", "action", cmd.action)
		return false, nil
	}
}

// holding reports whether automatic advancing is suspended.
func (r *Runner) holding() bool {
	return r.paused || r.night && r.opts.NightPause
}

func (r *Runner) inNight() bool {
	return r.opts.Night != nil && r.opts.Night.Contains(r.opts.Now())
}

// refreshNight re-evaluates the night window and redraws the current frame
// when the brightness has to change.
func (r *Runner) refreshNight() error {
	night := r.inNight()
	if night == r.night {
		return nil
	}
	r.night = night
	r.updateStatus()
	slog.Info("night mode changed", "night", night)
	if r.current == nil {
		return nil
	}
	if err := r.draw(r.current); err != nil {
		return fmt.Errorf("failed to redraw for night mode: %w", err)
	}
	return nil
}

// step moves delta images from the current one, 0 shows the current image.
func (r *Runner) step(ctx context.Context, delta int) error {
	return r.show(ctx, r.wrap(r.index+delta), delta)
}

// show displays the image at index, or the nearest loadable one walking in the
// direction of dir. Unreadable images are skipped with a warning.
func (r *Runner) show(ctx context.Context, index int, dir int) error {
	if dir == 0 {
		dir = 1
	}

	var frame *image.RGBA
	idx := index
	for tries := 0; tries < len(r.images); tries++ {
		f, err := r.frames.Get(r.images[idx].Path)
		if err == nil {
			frame = f
			break
		}
		slog.Warn("skipping unreadable image", "path", r.images[idx].Path, "error", err)
		idx = r.wrap(idx + dir)
	}
	if frame == nil {
		return ErrNoDisplayableImages
	}

	if err := r.transition(ctx, r.current, frame); err != nil {
		return err
	}

	r.index = idx
	r.current = frame
	shownAt := r.opts.Now()
	r.mu.Lock()
	r.status.ShownAt = shownAt
	r.mu.Unlock()
	r.updateStatus()

	if r.opts.Recorder != nil {
		if err := r.opts.Recorder.SavePlayback(r.images[idx].Path, shownAt); err != nil {
			slog.Warn("unable to record playback position", "path", r.images[idx].Path, "error", err)
		}
	}
	r.prefetch()
	return nil
}

func (r *Runner) prefetch() {
	n := min(r.opts.Prefetch, len(r.images)-1)
	if n <= 0 {
		return
	}
	paths := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		paths = append(paths, r.images[r.wrap(r.index+i)].Path)
	}
	r.frames.Prefetch(paths...)
}

// transition plays the configured effect from -> to, ending with to on screen.
func (r *Runner) transition(ctx context.Context, from, to *image.RGBA) error {
	steps := int(r.opts.TransitionDuration.Seconds() * float64(r.opts.FrameRate))
	if from == nil || r.opts.Transition.Instant() || steps < 1 || from.Rect != to.Rect {
		return r.draw(to)
	}

	if r.scratch == nil || r.scratch.Rect != to.Rect {
		r.scratch = image.NewRGBA(to.Rect)
	}
	delay := r.opts.TransitionDuration / time.Duration(steps)
	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for i := 1; i <= steps; i++ {
		r.opts.Transition.Frame(r.scratch, from, to, float64(i)/float64(steps))
		if r.night {
			imaging.Dim(r.scratch, r.opts.NightBrightness)
		}
		if err := r.display.Draw(r.scratch); err != nil {
			return fmt.Errorf("failed to draw transition frame: %w", err)
		}
		if i == steps {
			break
		}
		select {
		case <-ctx.Done():
			return errQuit
		case <-r.quit:
			return errQuit
		case <-ticker.C:
		}
	}
	return r.draw(to)
}

// draw puts frame on screen, dimmed at night. Cached frames are never modified.
func (r *Runner) draw(frame *image.RGBA) error {
	if r.night && r.opts.NightBrightness < 1 {
		dimmed := imaging.Clone(frame)
		imaging.Dim(dimmed, r.opts.NightBrightness)
		frame = dimmed
	}
	if err := r.display.Draw(frame); err != nil {
		return fmt.Errorf("failed to draw frame: %w", err)
	}
	return nil
}

func (r *Runner) wrap(i int) int {
	n := len(r.images)
	return ((i % n) + n) % n
}

func (r *Runner) updateStatus() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Index = r.index
	r.status.Path = r.images[r.index].Path
	r.status.Paused = r.paused
	r.status.Night = r.night
}

func (r *Runner) setRunning(running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Running = running
}

// stopErr maps an interrupted transition to a clean stop.
func (r *Runner) stopErr(err error) error {
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

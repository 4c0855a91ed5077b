package slideshow_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aouyang1/photoslideshow/display"
	"github.com/aouyang1/photoslideshow/library"
	"github.com/aouyang1/photoslideshow/schedule"
	"github.com/aouyang1/photoslideshow/slideshow"
	"github.com/aouyang1/photoslideshow/transition"
)

const screenW, screenH = 8, 6

// fakeFrames serves solid frames; paths without a color fail to load.
type fakeFrames struct {
	mu       sync.Mutex
	colors   map[string]uint8
	prefetch []string
}

func newFakeFrames(colors map[string]uint8) *fakeFrames {
	return &fakeFrames{colors: colors}
}

func (f *fakeFrames) Get(path string) (*image.RGBA, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.colors[path]
	if !ok {
		return nil, fmt.Errorf("cannot decode %s", path)
	}
	frame := image.NewRGBA(image.Rect(0, 0, screenW, screenH))
	draw.Draw(frame, frame.Rect, &image.Uniform{C: color.RGBA{R: v, G: v, B: v, A: 255}}, image.Point{}, draw.Src)
	return frame, nil
}

func (f *fakeFrames) Prefetch(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefetch = append(f.prefetch, paths...)
}

func (f *fakeFrames) prefetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prefetch...)
}

type recorder struct {
	mu    sync.Mutex
	shown []string
	at    []time.Time
}

func (r *recorder) SavePlayback(path string, shownAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, path)
	r.at = append(r.at, shownAt)
	return nil
}

func (r *recorder) times() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.at...)
}

func (r *recorder) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.shown...)
}

func images(paths ...string) []library.Image {
	out := make([]library.Image, len(paths))
	for i, p := range paths {
		out[i] = library.Image{Path: p, Folder: "/photos", Order: i}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type harness struct {
	runner *slideshow.Runner
	screen *display.Headless
	frames *fakeFrames
	rec    *recorder
	errc   chan error
	cancel context.CancelFunc
}

func start(t *testing.T, imgs []library.Image, colors map[string]uint8, opts slideshow.Options) *harness {
	t.Helper()
	h := &harness{
		screen: display.NewHeadless(screenW, screenH, ""),
		frames: newFakeFrames(colors),
		rec:    &recorder{},
		errc:   make(chan error, 1),
	}
	opts.Recorder = h.rec
	r, err := slideshow.NewRunner(h.screen, h.frames, imgs, opts)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	h.runner = r

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.errc <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-r.Done()
	})
	return h
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errc:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return")
		return nil
	}
}

var abc = map[string]uint8{"/photos/a.jpg": 10, "/photos/b.jpg": 20, "/photos/c.jpg": 30}

func TestNewRunner_EmptyLibrary(t *testing.T) {
	_, err := slideshow.NewRunner(display.NewHeadless(1, 1, ""), newFakeFrames(nil), nil, slideshow.Options{Interval: time.Second})
	if !errors.Is(err, library.ErrEmptyLibrary) {
		t.Errorf("NewRunner() error = %v, want ErrEmptyLibrary", err)
	}
}

func TestNewRunner_InvalidInterval(t *testing.T) {
	_, err := slideshow.NewRunner(display.NewHeadless(1, 1, ""), newFakeFrames(abc), images("/photos/a.jpg"), slideshow.Options{})
	if err == nil {
		t.Error("NewRunner() with zero interval error = nil")
	}
}

func TestRunner_AdvancesAndWraps(t *testing.T) {
	h := start(t, images("/photos/a.jpg", "/photos/b.jpg", "/photos/c.jpg"), abc, slideshow.Options{
		Interval:   10 * time.Millisecond,
		Transition: transition.Get("cut"),
	})
	waitFor(t, "five images", func() bool { return len(h.rec.paths()) >= 5 })
	h.cancel()
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"/photos/a.jpg", "/photos/b.jpg", "/photos/c.jpg", "/photos/a.jpg", "/photos/b.jpg"}
	got := h.rec.paths()[:5]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("shown = %v, want prefix %v", got, want)
		}
	}
}

func TestRunner_QuitInterruptsTransition(t *testing.T) {
	h := start(t, images("/photos/a.jpg", "/photos/b.jpg"), abc, slideshow.Options{
		Interval:           time.Hour,
		Transition:         transition.Get("fade"),
		TransitionDuration: time.Minute,
	})
	waitFor(t, "first image", func() bool { return len(h.rec.paths()) == 1 })

	if err := h.runner.Do(slideshow.ActionNext); err != nil {
		t.Fatalf("Do(next) error = %v", err)
	}
	waitFor(t, "fade to start", func() bool { return h.screen.Frames() > 1 })

	began := time.Now()
	if err := h.runner.Do(slideshow.ActionQuit); err != nil {
		t.Fatalf("Do(quit) error = %v", err)
	}
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if time.Since(began) > time.Second {
		t.Errorf("quit took %v", time.Since(began))
	}
	if got := h.rec.paths(); len(got) != 1 {
		t.Errorf("shown = %v, want only the first image", got)
	}
}

func TestRunner_ContextCancel(t *testing.T) {
	h := start(t, images("/photos/a.jpg"), abc, slideshow.Options{Interval: time.Hour})
	waitFor(t, "first image", func() bool { return len(h.rec.paths()) == 1 })
	h.cancel()
	if err := h.wait(t); err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if err := h.runner.Do(slideshow.ActionNext); !errors.Is(err, slideshow.ErrNotRunning) {
		t.Errorf("Do() after stop error = %v, want ErrNotRunning", err)
	}
	if h.runner.Status().Running {
		t.Error("Status().Running = true after stop")
	}
}

func lateEvening() time.Time {
	return time.Date(2026, 10, 19, 23, 30, 0, 0, time.Local)
}

func nightWindow(t *testing.T) *schedule.Window {
	t.Helper()
	w, err := schedule.Parse("23:00", "06:00")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return &w
}

func TestRunner_NightDims(t *testing.T) {
	colors := map[string]uint8{"/photos/white.png": 255}
	h := start(t, images("/photos/white.png"), colors, slideshow.Options{
		Interval:        time.Hour,
		Night:           nightWindow(t),
		NightBrightness: 0.5,
		Now:             lateEvening,
	})
	waitFor(t, "first image", func() bool { return len(h.rec.paths()) == 1 })

	last := h.screen.Last()
	if got := last.RGBAAt(0, 0); got.R != 128 || got.A != 255 {
		t.Errorf("night pixel = %+v, want R=128 A=255", got)
	}
	if !h.runner.Status().Night {
		t.Error("Status().Night = false inside the window")
	}

	// the cached frame is untouched
	frame, _ := h.frames.Get("/photos/white.png")
	if frame.RGBAAt(0, 0).R != 255 {
		t.Error("night mode modified the source frame")
	}
}

func TestRunner_NightPause(t *testing.T) {
	h := start(t, images("/photos/a.jpg", "/photos/b.jpg", "/photos/c.jpg"), abc, slideshow.Options{
		Interval:        5 * time.Millisecond,
		Night:           nightWindow(t),
		NightBrightness: 0.3,
		NightPause:      true,
		Now:             lateEvening,
	})
	waitFor(t, "first image", func() bool { return len(h.rec.paths()) == 1 })
	time.Sleep(60 * time.Millisecond)
	if got := h.rec.paths(); len(got) != 1 {
		t.Fatalf("shown during night pause = %v", got)
	}

	// manual navigation still works
	if err := h.runner.Do(slideshow.ActionNext); err != nil {
		t.Fatalf("Do(next) error = %v", err)
	}
	waitFor(t, "manual advance", func() bool { return len(h.rec.paths()) == 2 })
	if got := h.rec.paths()[1]; got != "/photos/b.jpg" {
		t.Errorf("after next = %q, want /photos/b.jpg", got)
	}
}

func TestRunner_DaytimeNotDimmed(t *testing.T) {
	colors := map[string]uint8{"/photos/white.png": 255}
	noon := func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.Local) }
	h := start(t, images("/photos/white.png"), colors, slideshow.Options{
		Interval:        time.Hour,
		Night:           nightWindow(t),
		NightBrightness: 0.5,
		Now:             noon,
	})
	waitFor(t, "first image", func() bool { return len(h.rec.paths()) == 1 })
	if got := h.screen.Last().RGBAAt(0, 0).R; got != 255 {
		t.Errorf("day pixel R = %d, want 255", got)
	}
}

func TestRunner_SkipsUnreadable(t *testing.T) {
	h := start(t, images("/photos/broken.jpg", "/photos/b.jpg"), abc, slideshow.Options{Interval: time.Hour})
	waitFor(t, "first image", func() bool { return len(h.rec.paths()) == 1 })
	if got := h.rec.paths()[0]; got != "/photos/b.jpg" {
		t.Errorf("first shown = %q, want /photos/b.jpg", got)
	}
	if st := h.runner.Status(); st.Index != 1 {
		t.Errorf("Status().Index = %d, want 1", st.Index)
	}
}

func TestRunner_AllUnreadable(t *testing.T) {
	h := start(t, images("/photos/x.jpg", "/photos/y.jpg"), abc, slideshow.Options{Interval: time.Hour})
	if err := h.wait(t); !errors.Is(err, slideshow.ErrNoDisplayableImages) {
		t.Errorf("Run() error = %v, want ErrNoDisplayableImages", err)
	}
}

func TestRunner_PrevWraps(t *testing.T) {
	h := start(t, images("/photos/a.jpg", "/photos/b.jpg", "/photos/c.jpg"), abc, slideshow.Options{Interval: time.Hour})
	waitFor(t, "first image", func() bool { return len(h.rec.paths()) == 1 })
	if err := h.runner.Do(slideshow.ActionPrev); err != nil {
		t.Fatalf("Do(prev) error = %v", err)
	}
	waitFor(t, "previous image", func() bool { return len(h.rec.paths()) == 2 })
	if got := h.rec.paths()[1]; got != "/photos/c.jpg" {
		t.Errorf("prev from first = %q, want /photos/c.jpg", got)
	}
}

func TestRunner_Play(t *testing.T) {
	h := start(t, images("/photos/a.jpg", "/photos/b.jpg", "/photos/c.jpg"), abc, slideshow.Options{Interval: time.Hour})
	waitFor(t, "first image", func() bool { return len(h.rec.paths()) == 1 })

	if err := h.runner.Play(5); !errors.Is(err, slideshow.ErrIndexOutOfRange) {
		t.Errorf("Play(5) error = %v, want ErrIndexOutOfRange", err)
	}
	if err := h.runner.Play(2); err != nil {
		t.Fatalf("Play(2) error = %v", err)
	}
	waitFor(t, "played image", func() bool { return h.runner.Status().Index == 2 })
	if got := h.runner.Status().Path; got != "/photos/c.jpg" {
		t.Errorf("Status().Path = %q", got)
	}
}

func TestRunner_StartPath(t *testing.T) {
	h := start(t, images("/photos/a.jpg", "/photos/b.jpg", "/photos/c.jpg"), abc, slideshow.Options{
		Interval:  time.Hour,
		StartPath: "/photos/b.jpg",
	})
	waitFor(t, "first image", func() bool { return len(h.rec.paths()) == 1 })
	if got := h.rec.paths()[0]; got != "/photos/b.jpg" {
		t.Errorf("first shown = %q, want /photos/b.jpg", got)
	}
}

func TestRunner_PauseHoldsImage(t *testing.T) {
	h := start(t, images("/photos/a.jpg", "/photos/b.jpg"), abc, slideshow.Options{Interval: 10 * time.Millisecond})
	waitFor(t, "first image", func() bool { return len(h.rec.paths()) >= 1 })
	if err := h.runner.Do(slideshow.ActionPause); err != nil {
		t.Fatalf("Do(pause) error = %v", err)
	}
	waitFor(t, "pause", func() bool { return h.runner.Status().Paused })

	n := len(h.rec.paths())
	time.Sleep(60 * time.Millisecond)
	if got := len(h.rec.paths()); got != n {
		t.Errorf("advanced while paused: %d -> %d", n, got)
	}

	if err := h.runner.Do(slideshow.ActionResume); err != nil {
		t.Fatalf("Do(resume) error = %v", err)
	}
	waitFor(t, "advance after resume", func() bool { return len(h.rec.paths()) > n })
}

func TestRunner_Prefetches(t *testing.T) {
	h := start(t, images("/photos/a.jpg", "/photos/b.jpg", "/photos/c.jpg"), abc, slideshow.Options{
		Interval: time.Hour,
		Prefetch: 5,
	})
	waitFor(t, "prefetch", func() bool { return len(h.frames.prefetched()) > 0 })
	got := h.frames.prefetched()
	if len(got) != 2 || got[0] != "/photos/b.jpg" || got[1] != "/photos/c.jpg" {
		t.Errorf("prefetched = %v, want [b c]", got)
	}
}

func TestRunner_IntervalCountsAfterTransition(t *testing.T) {
	interval := 30 * time.Millisecond
	h := start(t, images("/photos/a.jpg", "/photos/b.jpg", "/photos/c.jpg"), abc, slideshow.Options{
		Interval:           interval,
		Transition:         transition.Get("fade"),
		TransitionDuration: 20 * time.Millisecond,
		FrameRate:          200,
	})
	waitFor(t, "four images", func() bool { return len(h.rec.times()) >= 4 })

	shown := h.rec.times()
	for i := 1; i < len(shown); i++ {
		if d := shown[i].Sub(shown[i-1]); d < interval {
			t.Errorf("image %d stayed %v, want at least %v", i-1, d, interval)
		}
	}
}

func TestRunner_NightChangeWhileRunning(t *testing.T) {
	var clock atomic.Value
	noon := time.Date(2026, 10, 19, 12, 0, 0, 0, time.Local)
	clock.Store(noon)

	colors := map[string]uint8{"/photos/white.png": 255, "/photos/grey.png": 200}
	h := start(t, images("/photos/white.png", "/photos/grey.png"), colors, slideshow.Options{
		Interval:        time.Hour,
		Night:           nightWindow(t),
		NightBrightness: 0.5,
		NightCheck:      5 * time.Millisecond,
		Now:             func() time.Time { return clock.Load().(time.Time) },
	})
	waitFor(t, "first image", func() bool { return len(h.rec.paths()) == 1 })
	if got := h.screen.Last().RGBAAt(0, 0).R; got != 255 {
		t.Fatalf("day pixel R = %d, want 255", got)
	}

	clock.Store(lateEvening())
	waitFor(t, "dimmed redraw", func() bool { return h.screen.Last().RGBAAt(0, 0).R == 128 })
	if !h.runner.Status().Night {
		t.Error("Status().Night = false after entering the window")
	}

	clock.Store(noon.Add(24 * time.Hour))
	waitFor(t, "undimmed redraw", func() bool { return h.screen.Last().RGBAAt(0, 0).R == 255 })
	if h.runner.Status().Night {
		t.Error("Status().Night = true after leaving the window")
	}

	// switching brightness neither advances nor reorders
	if got := h.rec.paths(); len(got) != 1 || got[0] != "/photos/white.png" {
		t.Errorf("shown = %v, want only the first image", got)
	}
	if st := h.runner.Status(); st.Index != 0 {
		t.Errorf("Status().Index = %d, want 0", st.Index)
	}
}

func TestRunner_BusyQueue(t *testing.T) {
	r, err := slideshow.NewRunner(display.NewHeadless(screenW, screenH, ""), newFakeFrames(abc), images("/photos/a.jpg", "/photos/b.jpg"), slideshow.Options{Interval: time.Hour})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	// nothing drains the queue before Run
	queued := 0
	for ; queued < 100; queued++ {
		if err = r.Do(slideshow.ActionNext); err != nil {
			break
		}
	}
	if !errors.Is(err, slideshow.ErrBusy) {
		t.Fatalf("Do() on a full queue error = %v, want ErrBusy", err)
	}
	if queued == 0 {
		t.Error("no action was queued before the queue filled")
	}
	if err := r.Play(1); !errors.Is(err, slideshow.ErrBusy) {
		t.Errorf("Play() on a full queue error = %v, want ErrBusy", err)
	}
	if err := r.Do(slideshow.ActionQuit); err != nil {
		t.Errorf("Do(quit) on a full queue error = %v", err)
	}
}

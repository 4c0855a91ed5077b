package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aouyang1/photoslideshow/api"
	"github.com/aouyang1/photoslideshow/cache"
	"github.com/aouyang1/photoslideshow/display"
	"github.com/aouyang1/photoslideshow/imaging"
	"github.com/aouyang1/photoslideshow/library"
	"github.com/aouyang1/photoslideshow/schedule"
	"github.com/aouyang1/photoslideshow/settings"
	"github.com/aouyang1/photoslideshow/slideshow"
	"github.com/aouyang1/photoslideshow/store"
	"github.com/aouyang1/photoslideshow/transition"
)

type app struct {
	settingsPath string

	db     *store.Database
	screen display.Display
	power  display.Power
	player *slideshow.Player
	server *api.WebServer

	// kept across restarts so a restart does not undo a manual display switch
	schedule *api.ScheduleManager

	// builds the bucket mirror, api.NewRemoteManager when nil
	newRemote func(ctx context.Context, s *settings.Settings) (*api.RemoteManager, error)
}

const initialSyncTimeout = 5 * time.Minute

// session is one slideshow run over one enumeration of the folders.
type session struct {
	runner *slideshow.Runner
	frames *cache.FrameCache
	cancel context.CancelFunc
	done   chan error
}

// prepare enumerates the folders and builds a runner for s without starting it.
func (a *app) prepare(s *settings.Settings) (*session, error) {
	folders := s.ScanFolders()
	images, err := library.Scan(folders)
	if err != nil {
		return nil, err
	}
	if s.Randomize {
		images = library.Shuffle(images, time.Now().UnixNano())
	}
	slog.Info("enumerated images", "count", len(images), "folders", folders)

	records := make([]store.Image, len(images))
	for i, img := range images {
		records[i] = store.Image{Path: img.Path, Folder: img.Folder, Order: img.Order}
	}
	if err := a.db.ReplaceImages(records); err != nil {
		slog.Warn("unable to store library snapshot", "error", err)
	}

	var captioner *imaging.Captioner
	if s.ShowCaption {
		captioner, err = imaging.NewCaptioner(s.Display.Font)
		if err != nil {
			slog.Warn("using built in caption font", "error", err)
			captioner, _ = imaging.NewCaptioner("")
		}
	}

	frames, err := cache.New(s.CacheSize, slideshow.NewFrameLoader(slideshow.FrameOptions{
		Size:      display.Size(a.screen),
		Policy:    s.ScalePolicy,
		Echo:      s.Echo,
		Captioner: captioner,
	}))
	if err != nil {
		return nil, err
	}

	opts := slideshow.Options{
		Interval:           s.Interval(),
		Transition:         transition.Get(s.Transition),
		TransitionDuration: s.TransitionTime(),
		NightBrightness:    s.NightMode.Brightness,
		NightPause:         s.NightMode.Pause,
		Prefetch:           s.PrefetchCount,
		Recorder:           a.db,
	}
	if s.NightMode.Enabled {
		window, err := schedule.Parse(s.NightMode.Start, s.NightMode.End)
		if err != nil {
			frames.Close()
			return nil, &settings.ConfigurationError{Path: s.Source(), Err: err}
		}
		opts.Night = &window
	}
	if s.Resume {
		if pb, err := a.db.GetPlayback(); err != nil {
			slog.Warn("unable to read playback position", "error", err)
		} else {
			opts.StartPath = pb.Path
		}
	}

	runner, err := slideshow.NewRunner(a.screen, frames, images, opts)
	if err != nil {
		frames.Close()
		return nil, err
	}
	return &session{runner: runner, frames: frames, done: make(chan error, 1)}, nil
}

func (a *app) start(ctx context.Context, sess *session) {
	runCtx, cancel := context.WithCancel(ctx)
	sess.cancel = cancel
	a.player.Attach(sess.runner)
	go func() {
		sess.done <- sess.runner.Run(runCtx)
	}()
}

func (a *app) stop(sess *session) {
	sess.cancel()
	<-sess.runner.Done()
	sess.frames.Close()
}

// watchers are the background managers that depend on one settings value.
type watchers struct {
	cancel context.CancelFunc
	local  <-chan struct{}
	remote <-chan struct{}
}

func (a *app) startWatchers(ctx context.Context, s *settings.Settings) *watchers {
	wctx, cancel := context.WithCancel(ctx)
	w := &watchers{cancel: cancel}

	if s.RescanInterval() > 0 {
		local := api.NewLocalManager(s.Folders, s.RescanInterval())
		go local.Run(wctx)
		w.local = local.Updated
	}

	if s.Remote.Bucket != "" {
		remote, err := a.remoteManager(wctx, s)
		if err != nil {
			slog.Warn("remote folder sync disabled", "bucket", s.Remote.Bucket, "error", err)
		} else {
			go remote.Run(wctx)
			w.remote = remote.Updated
		}
	}

	if s.NightMode.Enabled && s.NightMode.DisplayOff {
		if sm, err := a.scheduleManager(s); err != nil {
			slog.Warn("display schedule disabled", "error", err)
		} else {
			go sm.Run(wctx)
		}
	}
	return w
}

func (a *app) remoteManager(ctx context.Context, s *settings.Settings) (*api.RemoteManager, error) {
	if a.newRemote != nil {
		return a.newRemote(ctx, s)
	}
	return api.NewRemoteManager(ctx, s.Remote, s.RemoteInterval())
}

// syncRemote mirrors the bucket once so the enumeration that follows already
// sees its images. Failures are logged and leave the folder as it is.
func (a *app) syncRemote(ctx context.Context, s *settings.Settings) {
	if s.Remote.Bucket == "" {
		return
	}
	remote, err := a.remoteManager(ctx, s)
	if err != nil {
		slog.Warn("skipping initial remote sync", "bucket", s.Remote.Bucket, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, initialSyncTimeout)
	defer cancel()
	if _, err := remote.SyncFolder(ctx); err != nil {
		slog.Warn("initial remote sync failed", "bucket", s.Remote.Bucket, "error", err)
	}
}

// toggleCaption flips show_caption in the active settings file. The settings
// watcher picks up the rewrite and restarts the slideshow.
func (a *app) toggleCaption() error {
	s, err := settings.Load(a.settingsPath)
	if err != nil {
		return err
	}
	show := !s.ShowCaption
	if err := settings.SetShowCaption(s.Source(), show); err != nil {
		return err
	}
	slog.Info("caption setting changed", "show_caption", show, "path", s.Source())
	return nil
}

func (a *app) scheduleManager(s *settings.Settings) (*api.ScheduleManager, error) {
	window, err := schedule.Parse(s.NightMode.Start, s.NightMode.End)
	if err != nil {
		return nil, err
	}
	if a.schedule != nil {
		a.schedule.SetWindow(window)
		return a.schedule, nil
	}
	sm, err := api.NewScheduleManager(a.power, window)
	if err != nil {
		return nil, err
	}
	a.schedule = sm
	return sm, nil
}

// run plays sess and restarts the slideshow whenever the settings file, the
// folders or the remote bucket change. It returns when ctx is done or the
// slideshow stops by itself.
func (a *app) run(ctx context.Context, s *settings.Settings, sess *session, settingsChanged <-chan struct{}) error {
	a.start(ctx, sess)
	w := a.startWatchers(ctx, s)
	defer func() { w.cancel() }()

	restart := func(next *settings.Settings) {
		if next.Remote != s.Remote {
			a.syncRemote(ctx, next)
		}
		prepared, err := a.prepare(next)
		if err != nil {
			slog.Error("unable to restart slideshow, keeping the current one", "error", err)
			return
		}
		a.stop(sess)
		sess = prepared
		a.start(ctx, sess)
		if next != s {
			s = next
			w.cancel()
			w = a.startWatchers(ctx, s)
			if a.server != nil {
				a.server.SetSettings(s)
			}
		}
		slog.Info("slideshow restarted", "images", sess.runner.Status().Count)
	}

	for {
		select {
		case <-ctx.Done():
			a.stop(sess)
			return nil
		case err := <-sess.done:
			sess.frames.Close()
			if err != nil {
				return fmt.Errorf("slideshow failed: %w", err)
			}
			return nil
		case <-settingsChanged:
			next, err := settings.Load(a.settingsPath)
			if err != nil {
				slog.Error("ignoring settings change", "error", err)
				continue
			}
			slog.Info("settings changed, restarting slideshow", "path", next.Source())
			restart(next)
		case <-w.local:
			slog.Info("found new updates to local, restarting slideshow")
			restart(s)
		case <-w.remote:
			slog.Info("found new updates to remote, restarting slideshow")
			restart(s)
		}
	}
}

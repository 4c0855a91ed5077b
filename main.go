package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aouyang1/photoslideshow/api"
	"github.com/aouyang1/photoslideshow/api/client"
	"github.com/aouyang1/photoslideshow/display"
	"github.com/aouyang1/photoslideshow/settings"
	"github.com/aouyang1/photoslideshow/slideshow"
	"github.com/aouyang1/photoslideshow/store"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		settingsPath = flag.String("settings", envOr("SLIDESHOW_SETTINGS", "settings.json"), "settings file (json or yaml)")
		statePath    = flag.String("state", envOr("SLIDESHOW_STATE", "slideshow.db"), "sqlite file for the library snapshot and playback position")
		logLevel     = flag.String("log-level", envOr("SLIDESHOW_LOG_LEVEL", "info"), "debug, info, warn or error")
		keys         = flag.Bool("keys", false, "read control keys from stdin")
		send         = flag.String("send", "", "send an action (next, prev, pause, resume, quit, toggle_caption, status or play:N) to a running slideshow and exit")
		addr         = flag.String("addr", os.Getenv("SLIDESHOW_ADDR"), "control server address, overrides server.addr; \"off\" disables the server")
	)
	flag.Parse()

	level := slog.LevelInfo
	switch strings.ToLower(*logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *send != "" {
		target := *addr
		if target == "" {
			target = "localhost:8080"
		}
		if err := sendAction(target, *send); err != nil {
			log.Fatal(err)
		}
		return
	}

	s, err := settings.Load(*settingsPath)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	slog.Info("loaded settings", "path", s.Source(), "folders", s.Folders, "interval", s.Interval())

	serverAddr := s.Server.Addr
	if *addr != "" {
		serverAddr = *addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := store.NewDatabase(*statePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	screen, err := display.New(s.Display)
	if err != nil {
		log.Fatalf("Failed to open display: %v", err)
	}
	defer screen.Close()

	power, err := display.NewPower(s.Display)
	if err != nil {
		slog.Warn("display power control unavailable, using none", "power", s.Display.Power, "error", err)
		power, _ = display.NewPower(settings.Display{Power: settings.PowerNone})
	}
	defer func() {
		if err := display.ClosePower(power); err != nil {
			slog.Warn("unable to release display power control", "error", err)
		}
	}()

	app := &app{
		settingsPath: *settingsPath,
		db:           db,
		screen:       screen,
		power:        power,
		player:       slideshow.NewPlayer(),
	}

	app.player.OnToggleCaption(app.toggleCaption)

	// startup errors are fatal, later reload errors keep the current slideshow
	app.syncRemote(ctx, s)
	sess, err := app.prepare(s)
	if err != nil {
		var cfgErr *settings.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Fatalf("Invalid settings: %v", err)
		}
		log.Fatalf("Failed to start slideshow: %v", err)
	}

	if serverAddr != "off" && serverAddr != "" {
		app.server = api.NewWebServer(db, app.player, power, s)
		go func() {
			if err := app.server.Start(ctx, serverAddr); err != nil {
				slog.Error("web server stopped", "error", err)
			}
		}()
		showSplash(screen, serverAddr)
		if s.Server.Advertise {
			go advertise(ctx, serverAddr)
		}
	}

	if *keys {
		km, err := slideshow.NewKeyMap(s.KeyBindings)
		if err != nil {
			slog.Warn("invalid key bindings, using defaults", "error", err)
			km = slideshow.DefaultKeyMap()
		}
		go func() {
			if err := slideshow.ReadKeys(ctx, os.Stdin, km, app.player); err != nil {
				slog.Warn("stopped reading keys", "error", err)
			}
		}()
	}

	var changed <-chan struct{}
	watcher, err := settings.NewWatcher(*settingsPath)
	if err != nil {
		slog.Warn("settings will not be reloaded", "error", err)
	} else {
		defer watcher.Close()
		changed = watcher.Changed
	}

	if err := app.run(ctx, s, sess, changed); err != nil {
		slog.Error("slideshow stopped", "error", err)
		display.ClosePower(power)
		screen.Close()
		db.Close()
		os.Exit(1)
	}
	slog.Info("slideshow stopped")
}

// showSplash puts a QR code of the control page on screen until the first
// image is ready.
func showSplash(screen display.Display, serverAddr string) {
	host, port, err := net.SplitHostPort(serverAddr)
	if err != nil {
		return
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		if name, err := os.Hostname(); err == nil {
			host = name
		}
	}
	url := "http://" + net.JoinHostPort(host, port) + "/"
	if err := display.Splash(screen, url); err != nil {
		slog.Warn("unable to show splash", "error", err)
	}
}

func advertise(ctx context.Context, serverAddr string) {
	name, err := os.Hostname()
	if err != nil {
		name = "photoslideshow"
	}
	if err := api.Advertise(ctx, name, serverAddr); err != nil {
		slog.Warn("mDNS advertisement failed", "error", err)
	}
}

func sendAction(target, action string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cc := client.NewControlClient(target)

	var (
		st  slideshow.Status
		err error
	)
	switch {
	case action == "status":
		st, err = cc.Status(ctx)
	case strings.HasPrefix(action, "play:"):
		index, convErr := strconv.Atoi(strings.TrimPrefix(action, "play:"))
		if convErr != nil {
			return fmt.Errorf("invalid play index in %q", action)
		}
		st, err = cc.Play(ctx, index)
	default:
		a, parseErr := slideshow.ParseAction(action)
		if parseErr != nil {
			return parseErr
		}
		st, err = cc.Do(ctx, a)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%d/%d %s paused=%t night=%t\n", st.Index+1, st.Count, st.Path, st.Paused, st.Night)
	return nil
}

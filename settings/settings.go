// Package settings loads the slideshow configuration file
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/aouyang1/photoslideshow/transition"
	"gopkg.in/yaml.v3"
)

const (
	ScaleCover = "cover"
	ScaleFit   = "fit"

	BackendFramebuffer = "framebuffer"
	BackendHeadless    = "headless"

	PowerNone     = "none"
	PowerWlrRandr = "wlr-randr"
	PowerGPIO     = "gpio"
)

type NightMode struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	Start      string  `json:"start" yaml:"start"`
	End        string  `json:"end" yaml:"end"`
	Brightness float64 `json:"brightness" yaml:"brightness"`
	Pause      bool    `json:"pause" yaml:"pause"`
	DisplayOff bool    `json:"display_off" yaml:"display_off"`
}

type Display struct {
	Backend      string `json:"backend" yaml:"backend"`
	Device       string `json:"device" yaml:"device"`
	Width        int    `json:"width" yaml:"width"`
	Height       int    `json:"height" yaml:"height"`
	Power        string `json:"power" yaml:"power"`
	Output       string `json:"output" yaml:"output"`
	BacklightPin int    `json:"backlight_pin" yaml:"backlight_pin"`
	Font         string `json:"font" yaml:"font"`
}

type Server struct {
	Addr      string  `json:"addr" yaml:"addr"`
	Advertise bool    `json:"advertise" yaml:"advertise"`
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`
}

type Remote struct {
	Bucket          string `json:"bucket" yaml:"bucket"`
	Profile         string `json:"profile" yaml:"profile"`
	Folder          string `json:"folder" yaml:"folder"`
	IntervalMinutes int    `json:"interval_minutes" yaml:"interval_minutes"`
}

// Settings is the whole configuration of one slideshow run. A loaded value is
// never modified; a changed file produces a new value.
type Settings struct {
	Folders            []string            `json:"folders" yaml:"folders"`
	IntervalSeconds    int                 `json:"interval_seconds" yaml:"interval_seconds"`
	Transition         string              `json:"transition" yaml:"transition"`
	TransitionDuration float64             `json:"transition_duration" yaml:"transition_duration"`
	NightMode          NightMode           `json:"night_mode" yaml:"night_mode"`
	Randomize          bool                `json:"randomize" yaml:"randomize"`
	ScalePolicy        string              `json:"scale_policy" yaml:"scale_policy"`
	Echo               bool                `json:"echo" yaml:"echo"`
	ShowCaption        bool                `json:"show_caption" yaml:"show_caption"`
	PrefetchCount      int                 `json:"prefetch_count" yaml:"prefetch_count"`
	CacheSize          int                 `json:"cache_size" yaml:"cache_size"`
	Resume             bool                `json:"resume" yaml:"resume"`
	KeyBindings        map[string][]string `json:"key_bindings" yaml:"key_bindings"`
	Display            Display             `json:"display" yaml:"display"`
	Server             Server              `json:"server" yaml:"server"`
	Remote             Remote              `json:"remote" yaml:"remote"`
	RescanMinutes      int                 `json:"rescan_minutes" yaml:"rescan_minutes"`

	// path of the file the values were read from
	source string
}

func Default() *Settings {
	return &Settings{
		Folders:            []string{"./images"},
		IntervalSeconds:    6,
		Transition:         "fade",
		TransitionDuration: 0.6,
		NightMode: NightMode{
			Enabled:    true,
			Start:      "23:00",
			End:        "06:00",
			Brightness: 0.3,
			Pause:      true,
		},
		Randomize:     true,
		ScalePolicy:   ScaleCover,
		Echo:          true,
		ShowCaption:   true,
		PrefetchCount: 4,
		CacheSize:     16,
		Resume:        true,
		KeyBindings:   map[string][]string{},
		Display: Display{
			Backend:      BackendFramebuffer,
			Device:       "/dev/fb0",
			Power:        PowerNone,
			Output:       "HDMI-A-1",
			BacklightPin: 22,
		},
		Server: Server{
			Addr:      "0.0.0.0:8080",
			RateLimit: 5,
		},
		Remote: Remote{
			IntervalMinutes: 60,
		},
	}
}

// ConfigurationError reports a missing, unreadable or invalid settings file.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ActivePath returns the host specific variant of path, settings.<hostname>.json,
// when it exists next to path, otherwise path itself.
func ActivePath(path string) string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return path
	}
	ext := filepath.Ext(path)
	hostPath := strings.TrimSuffix(path, ext) + "." + hostname + ext
	if _, err := os.Stat(hostPath); err == nil {
		return hostPath
	}
	return path
}

// Load reads the settings file at path (or its host specific variant). Keys
// missing from the file keep their defaults.
func Load(path string) (*Settings, error) {
	target := ActivePath(path)

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, &ConfigurationError{Path: target, Err: err}
	}

	s := Default()
	switch strings.ToLower(filepath.Ext(target)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, s)
	default:
		err = json.Unmarshal(data, s)
	}
	if err != nil {
		return nil, &ConfigurationError{Path: target, Err: fmt.Errorf("malformed settings: %w", err)}
	}

	if err := s.Validate(); err != nil {
		return nil, &ConfigurationError{Path: target, Err: err}
	}
	s.source = target
	return s, nil
}

var validClockTime = regexp.MustCompile(`^(?:[01]\d|2[0-3]):[0-5]\d$`)

// Validate checks value ranges and enumerations.
func (s *Settings) Validate() error {
	var errs []error
	if len(s.Folders) == 0 {
		errs = append(errs, errors.New("folders must list at least one path"))
	}
	if s.IntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("interval_seconds must be positive, got %d", s.IntervalSeconds))
	}
	if !transition.Exists(s.Transition) {
		errs = append(errs, fmt.Errorf("unknown transition %q, need one of %v", s.Transition, transition.Names()))
	}
	if s.TransitionDuration < 0 {
		errs = append(errs, fmt.Errorf("transition_duration must not be negative, got %v", s.TransitionDuration))
	}
	if !validClockTime.MatchString(s.NightMode.Start) {
		errs = append(errs, fmt.Errorf("invalid night_mode.start format: need 23:15, got %s", s.NightMode.Start))
	}
	if !validClockTime.MatchString(s.NightMode.End) {
		errs = append(errs, fmt.Errorf("invalid night_mode.end format: need 23:15, got %s", s.NightMode.End))
	}
	if s.NightMode.Brightness < 0 || s.NightMode.Brightness > 1 {
		errs = append(errs, fmt.Errorf("night_mode.brightness must be within 0..1, got %v", s.NightMode.Brightness))
	}
	if s.ScalePolicy != ScaleCover && s.ScalePolicy != ScaleFit {
		errs = append(errs, fmt.Errorf("scale_policy must be %q or %q, got %q", ScaleCover, ScaleFit, s.ScalePolicy))
	}
	if s.PrefetchCount < 0 {
		errs = append(errs, fmt.Errorf("prefetch_count must not be negative, got %d", s.PrefetchCount))
	}
	if s.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("cache_size must be positive, got %d", s.CacheSize))
	}
	switch s.Display.Backend {
	case BackendFramebuffer, BackendHeadless:
	default:
		errs = append(errs, fmt.Errorf("unknown display.backend %q", s.Display.Backend))
	}
	switch s.Display.Power {
	case PowerNone, PowerWlrRandr, PowerGPIO:
	default:
		errs = append(errs, fmt.Errorf("unknown display.power %q", s.Display.Power))
	}
	if s.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must not be negative, got %v", s.Server.RateLimit))
	}
	if s.Remote.Bucket != "" && s.Remote.Folder == "" {
		errs = append(errs, errors.New("remote.folder is required when remote.bucket is set"))
	}
	return errors.Join(errs...)
}

// Source is the file these settings were loaded from.
func (s *Settings) Source() string {
	return s.source
}

// ScanFolders lists the folders to enumerate: the configured ones, then the
// remote mirror when a bucket is set.
func (s *Settings) ScanFolders() []string {
	folders := slices.Clone(s.Folders)
	if s.Remote.Bucket != "" && !slices.Contains(folders, s.Remote.Folder) {
		folders = append(folders, s.Remote.Folder)
	}
	return folders
}

func (s *Settings) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

func (s *Settings) TransitionTime() time.Duration {
	return time.Duration(s.TransitionDuration * float64(time.Second))
}

func (s *Settings) RemoteInterval() time.Duration {
	if s.Remote.IntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.Remote.IntervalMinutes) * time.Minute
}

func (s *Settings) RescanInterval() time.Duration {
	return time.Duration(s.RescanMinutes) * time.Minute
}

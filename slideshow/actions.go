package slideshow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Action is a user request to the running slideshow.
type Action string

const (
	ActionNext   Action = "next"
	ActionPrev   Action = "prev"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionQuit   Action = "quit"

	// ActionToggleCaption flips show_caption in the settings file, which
	// restarts the slideshow with the new value.
	ActionToggleCaption Action = "toggle_caption"
)

var actions = []Action{ActionNext, ActionPrev, ActionPause, ActionResume, ActionQuit, ActionToggleCaption}

func ParseAction(s string) (Action, error) {
	for _, a := range actions {
		if string(a) == strings.ToLower(strings.TrimSpace(s)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Controller is the part of a slideshow that input sources drive.
type Controller interface {
	Do(a Action) error
	Play(index int) error
	Status() Status
}

// KeyMap maps a single key, as typed on a terminal, to an action.
type KeyMap map[string]Action

func DefaultKeyMap() KeyMap {
	return KeyMap{
		"d": ActionNext,
		"n": ActionNext,
		"a": ActionPrev,
		"p": ActionPrev,
		" ": ActionPause,
		"c": ActionToggleCaption,
		"q": ActionQuit,
	}
}

// NewKeyMap adds bindings, action name to keys, on top of the default keys.
// The key name "space" stands for the space bar.
func NewKeyMap(bindings map[string][]string) (KeyMap, error) {
	km := DefaultKeyMap()
	for name, keys := range bindings {
		a, err := ParseAction(name)
		if err != nil {
			return nil, fmt.Errorf("invalid key binding: %w", err)
		}
		for _, key := range keys {
			if strings.EqualFold(key, "space") {
				key = " "
			}
			if len([]rune(key)) != 1 {
				return nil, fmt.Errorf("invalid key binding for %s: %q is not a single key", name, key)
			}
			km[strings.ToLower(key)] = a
		}
	}
	return km, nil
}

// ReadKeys turns keys read from r into actions on ctl until r is exhausted,
// ctx is done or a quit key is read. Unbound keys are ignored.
func ReadKeys(ctx context.Context, r io.Reader, km KeyMap, ctl Controller) error {
	br := bufio.NewReader(r)
	for {
		if ctx.Err() != nil {
			return nil
		}
		ch, _, err := br.ReadRune()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}

		a, ok := km[strings.ToLower(string(ch))]
		if !ok {
			continue
		}
		if err := ctl.Do(a); err != nil {
			slog.Warn("unable to apply key action", "action", a, "error", err)
		}
		if a == ActionQuit {
			return nil
		}
	}
}

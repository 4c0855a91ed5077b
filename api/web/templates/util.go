// Package templates renders the html pages served by the control api
package templates

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aouyang1/photoslideshow/slideshow"
	"github.com/dustin/go-humanize"
)

//go:generate templ generate

func imageURL(index int) string {
	return fmt.Sprintf("/images/%d/image", index)
}

func actionURL(action string) string {
	return "/slideshow/" + action
}

func displayName(path string) string {
	if path == "" {
		return "nothing yet"
	}
	return filepath.Base(filepath.Dir(path)) + "/" + filepath.Base(path)
}

func playState(st slideshow.Status) string {
	state := "playing"
	if st.Paused {
		state = "paused"
	}
	if st.Night {
		state += ", night mode"
	}
	return state
}

func uptime(started time.Time) string {
	return strings.TrimSpace(humanize.RelTime(started, time.Now(), "", ""))
}

func percent(f float64) string {
	return fmt.Sprintf("%.0f%%", f*100)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

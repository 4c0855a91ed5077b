// Package schedule evaluates daily time windows such as the night mode period
package schedule

import (
	"fmt"
	"time"
)

const clockLayout = "15:04"

// Window is a daily period between Start and End, in minutes after midnight.
// A window whose start is after its end wraps past midnight.
type Window struct {
	Start int
	End   int
}

// Parse builds a window from two HH:MM clock times.
func Parse(start, end string) (Window, error) {
	s, err := time.Parse(clockLayout, start)
	if err != nil {
		return Window{}, fmt.Errorf("start time with invalid format %q: %w", start, err)
	}
	e, err := time.Parse(clockLayout, end)
	if err != nil {
		return Window{}, fmt.Errorf("end time with invalid format %q: %w", end, err)
	}
	return Window{
		Start: s.Hour()*60 + s.Minute(),
		End:   e.Hour()*60 + e.Minute(),
	}, nil
}

// Contains reports whether the wall clock time of t falls inside the window.
// The start minute is inside, the end minute is not, and a window with equal
// start and end is empty.
func (w Window) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	if w.Start <= w.End {
		return w.Start <= m && m < w.End
	}
	return m >= w.Start || m < w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.Start/60, w.Start%60, w.End/60, w.End%60)
}

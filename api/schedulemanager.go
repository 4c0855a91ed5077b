package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aouyang1/photoslideshow/display"
	"github.com/aouyang1/photoslideshow/schedule"
)

const scheduleInterval = time.Minute

// ScheduleManager will periodically check the time to decide if we need to turn
// off or on the display for the night window
type ScheduleManager struct {
	power display.Power
	now   func() time.Time

	mu     sync.Mutex
	window schedule.Window

	// night state at the last check, nil before the first one
	lastNight *bool
}

func NewScheduleManager(power display.Power, window schedule.Window) (*ScheduleManager, error) {
	if power == nil {
		return nil, errors.New("no display power control provided for scheduler")
	}

	return &ScheduleManager{
		power:  power,
		window: window,
		now:    time.Now,
	}, nil
}

// SetWindow replaces the night window. The last seen night state is kept, so
// a manual display change is not undone unless the new window flips it.
func (s *ScheduleManager) SetWindow(window schedule.Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = window
}

// CheckSchedule switches the display off when entering the night window and
// back on when leaving it. Manual changes in between are left alone.
func (s *ScheduleManager) CheckSchedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	night := s.window.Contains(now)
	if s.lastNight != nil && *s.lastNight == night {
		return
	}
	s.lastNight = &night

	if err := s.power.SetEnabled(!night); err != nil {
		slog.Warn("issue while switching display for schedule", "night", night, "error", err)
		return
	}
	if night {
		slog.Info("turning display off for schedule", "time", now, "window", s.window.String())
	} else {
		slog.Info("turning display on for schedule", "time", now, "window", s.window.String())
	}
}

func (s *ScheduleManager) Run(ctx context.Context) {
	ticker := time.NewTicker(scheduleInterval)
	defer ticker.Stop()

	s.CheckSchedule()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckSchedule()
		}
	}
}

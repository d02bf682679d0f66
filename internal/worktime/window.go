/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package worktime

import (
	"fmt"
	"strings"
	"time"
)

// Clock is a time of day with second resolution, stored as seconds since midnight.
type Clock int

// NewClock builds a Clock from hour and minute.
func NewClock(hour, minute int) Clock {
	return Clock(hour*3600 + minute*60)
}

// ClockOf returns the time of day of t.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// ParseClock accepts "15:04" or "15:04:05".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return ClockOf(t), nil
}

func (c Clock) Hour() int   { return int(c) / 3600 }
func (c Clock) Minute() int { return int(c) % 3600 / 60 }
func (c Clock) Second() int { return int(c) % 60 }

// String formats the clock as HH:MM, adding seconds only when non-zero.
func (c Clock) String() string {
	if c.Second() != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour(), c.Minute(), c.Second())
	}
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Window is the daily working-hours range. Start must be earlier than End.
type Window struct {
	Start Clock
	End   Clock
}

// NewWindow parses and validates a window from two time-of-day strings.
func NewWindow(start, end string) (*Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return nil, err
	}
	w := &Window{Start: s, End: e}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// Validate checks the window invariant.
func (w *Window) Validate() error {
	if w == nil {
		return &ConfigurationError{Reason: "no working hours configured"}
	}
	if w.Start < 0 || w.End > Clock(24*3600) {
		return &ConfigurationError{Reason: "working hours out of range"}
	}
	if w.Start >= w.End {
		return &ConfigurationError{Reason: fmt.Sprintf("start time %s must be before end time %s", w.Start, w.End)}
	}
	return nil
}

// HoursPerDay is the length of one working day in hours.
func (w *Window) HoursPerDay() float64 {
	return float64(w.End-w.Start) / 3600
}

func (w *Window) String() string {
	if w == nil {
		return ""
	}
	return w.Start.String() + "-" + w.End.String()
}

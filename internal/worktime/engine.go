/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package worktime implements business-time arithmetic: moving an instant
// forward or backward by a fractional number of working days, honoring a
// daily working-hours window, weekends, and holidays.
package worktime

import (
	"math"
	"time"
)

const (
	// Epsilon absorbs floating point residue in remaining hours.
	Epsilon = 0.0001

	// MaxSkippedDays bounds the search for the next working day.
	MaxSkippedDays = 365

	// MaxIterations bounds the consumption loop.
	MaxIterations = 10000
)

// Direction of travel through working time.
type Direction int

const (
	Forward  Direction = 1
	Backward Direction = -1
)

// Result describes a completed computation.
type Result struct {
	Start       time.Time
	End         time.Time
	Direction   Direction
	Hours       float64 // working hours requested
	Iterations  int
	DaysSkipped int // non-working dates passed over
}

// ComputeEndInstant moves start by estimateDays working days. A negative
// estimate walks backward. isHoliday may be nil.
func ComputeEndInstant(start time.Time, estimateDays float64, window *Window, isHoliday HolidayFunc) (time.Time, error) {
	res, err := Compute(start, estimateDays, window, isHoliday)
	if err != nil {
		return time.Time{}, err
	}
	return res.End, nil
}

// Compute is ComputeEndInstant with loop statistics.
func Compute(start time.Time, estimateDays float64, window *Window, isHoliday HolidayFunc) (Result, error) {
	if window == nil {
		return Result{}, &ConfigurationError{Reason: "no working hours configured"}
	}
	if err := window.Validate(); err != nil {
		return Result{}, err
	}
	if math.IsNaN(estimateDays) || math.IsInf(estimateDays, 0) {
		return Result{}, ErrInvalidEstimate
	}

	res := Result{Start: start, End: start, Direction: Forward}
	if estimateDays == 0 {
		return res, nil
	}
	if estimateDays < 0 {
		res.Direction = Backward
	}

	w := walker{
		window:    *window,
		loc:       start.Location(),
		isHoliday: isHoliday,
	}
	remaining := math.Abs(estimateDays) * window.HoursPerDay()
	res.Hours = remaining

	cur := start
	var err error
	for remaining > Epsilon {
		res.Iterations++
		if res.Iterations > MaxIterations {
			return res, ErrIterationLimit
		}

		day := DateOf(cur)
		dayStart := day.At(w.window.Start, w.loc)
		dayEnd := day.At(w.window.End, w.loc)

		if res.Direction == Forward {
			if w.nonWorking(day) || !cur.Before(dayEnd) {
				if cur, err = w.advance(day, Forward, &res); err != nil {
					return res, err
				}
				continue
			}
			if cur.Before(dayStart) {
				cur = dayStart
			}
			available := dayEnd.Sub(cur).Hours()
			if remaining <= available+Epsilon {
				if remaining >= available {
					cur = dayEnd
				} else {
					cur = cur.Add(hoursToDuration(remaining))
				}
				remaining = 0
				break
			}
			remaining -= available
			if cur, err = w.advance(day, Forward, &res); err != nil {
				return res, err
			}
			continue
		}

		if w.nonWorking(day) || !cur.After(dayStart) {
			if cur, err = w.advance(day, Backward, &res); err != nil {
				return res, err
			}
			continue
		}
		if cur.After(dayEnd) {
			cur = dayEnd
		}
		available := cur.Sub(dayStart).Hours()
		if remaining <= available+Epsilon {
			if remaining >= available {
				cur = dayStart
			} else {
				cur = cur.Add(-hoursToDuration(remaining))
			}
			remaining = 0
			break
		}
		remaining -= available
		if cur, err = w.advance(day, Backward, &res); err != nil {
			return res, err
		}
	}

	res.End = cur
	return res, nil
}

type walker struct {
	window    Window
	loc       *time.Location
	isHoliday HolidayFunc
}

func (w *walker) nonWorking(d Date) bool {
	if d.IsWeekend() {
		return true
	}
	return w.isHoliday != nil && w.isHoliday(d)
}

// advance steps one date in dir, skipping non-working dates, and returns the
// window boundary facing the direction of travel.
func (w *walker) advance(from Date, dir Direction, res *Result) (time.Time, error) {
	d := from
	skipped := 0
	for {
		d = d.AddDays(int(dir))
		if !w.nonWorking(d) {
			break
		}
		skipped++
		res.DaysSkipped++
		if skipped > MaxSkippedDays {
			return time.Time{}, ErrNoWorkingDay
		}
	}
	if dir == Forward {
		return d.At(w.window.Start, w.loc), nil
	}
	return d.At(w.window.End, w.loc), nil
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(math.Round(h*3600)) * time.Second
}

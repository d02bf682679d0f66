/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package worktime

import "time"

// WorkingHoursBetween counts the working hours between two instants. The
// result is negative when to is earlier than from.
func WorkingHoursBetween(from, to time.Time, window *Window, isHoliday HolidayFunc) (float64, error) {
	if err := window.Validate(); err != nil {
		return 0, err
	}
	sign := 1.0
	if to.Before(from) {
		from, to = to, from
		sign = -1
	}

	w := walker{window: *window, loc: from.Location(), isHoliday: isHoliday}
	last := DateOf(to.In(w.loc))

	var total time.Duration
	for d := DateOf(from); !last.Before(d); d = d.AddDays(1) {
		if w.nonWorking(d) {
			continue
		}
		segStart := d.At(window.Start, w.loc)
		segEnd := d.At(window.End, w.loc)
		if from.After(segStart) {
			segStart = from
		}
		if to.Before(segEnd) {
			segEnd = to
		}
		if segEnd.After(segStart) {
			total += segEnd.Sub(segStart)
		}
	}
	return sign * total.Hours(), nil
}

// WorkingDaysBetween is WorkingHoursBetween expressed in working days.
func WorkingDaysBetween(from, to time.Time, window *Window, isHoliday HolidayFunc) (float64, error) {
	hours, err := WorkingHoursBetween(from, to, window, isHoliday)
	if err != nil {
		return 0, err
	}
	return hours / window.HoursPerDay(), nil
}

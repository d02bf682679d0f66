/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package worktime

import (
	"fmt"
	"time"
)

// HolidayFunc reports whether a date is a holiday. The weekend rule is
// applied separately by the engine.
type HolidayFunc func(Date) bool

// MonthDay identifies a recurring annual date.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay parses an "MM-DD" string.
func ParseMonthDay(s string) (MonthDay, error) {
	var month, day int
	if _, err := fmt.Sscanf(s, "%d-%d", &month, &day); err != nil || len(s) != 5 {
		return MonthDay{}, fmt.Errorf("parse month-day %q: want MM-DD", s)
	}
	if !ValidMonthDay(month, day) {
		return MonthDay{}, fmt.Errorf("parse month-day %q: no such date", s)
	}
	return MonthDay{Month: time.Month(month), Day: day}, nil
}

// String formats the month and day as MM-DD.
func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

// Calendar is an immutable snapshot of the holiday configuration.
type Calendar struct {
	oneTime   map[Date]struct{}
	recurring map[MonthDay]struct{}
	extra     HolidayFunc
}

// NewCalendar builds a snapshot from one-time dates and recurring month/day pairs.
// extra may be nil; when set it is consulted after the stored holidays.
func NewCalendar(oneTime []Date, recurring []MonthDay, extra HolidayFunc) *Calendar {
	c := &Calendar{
		oneTime:   make(map[Date]struct{}, len(oneTime)),
		recurring: make(map[MonthDay]struct{}, len(recurring)),
		extra:     extra,
	}
	for _, d := range oneTime {
		c.oneTime[d] = struct{}{}
	}
	for _, md := range recurring {
		c.recurring[md] = struct{}{}
	}
	return c
}

// IsHoliday checks one-time dates, then recurring dates, then the extra predicate.
func (c *Calendar) IsHoliday(d Date) bool {
	if c == nil {
		return false
	}
	if _, ok := c.oneTime[d]; ok {
		return true
	}
	if _, ok := c.recurring[MonthDay{Month: d.Month, Day: d.Day}]; ok {
		return true
	}
	return c.extra != nil && c.extra(d)
}

// IsNonWorking applies the weekend rule before the holiday lookups.
func (c *Calendar) IsNonWorking(d Date) bool {
	return d.IsWeekend() || c.IsHoliday(d)
}

// IsWorkingDay is the negation of IsNonWorking.
func (c *Calendar) IsWorkingDay(d Date) bool {
	return !c.IsNonWorking(d)
}

// Len returns the number of stored one-time and recurring entries.
func (c *Calendar) Len() (oneTime, recurring int) {
	if c == nil {
		return 0, 0
	}
	return len(c.oneTime), len(c.recurring)
}

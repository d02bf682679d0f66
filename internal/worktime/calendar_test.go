/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package worktime

import (
	"testing"
	"time"
)

func TestCalendarIsNonWorking(t *testing.T) {
	cal := NewCalendar(
		[]Date{{2024, time.March, 12}},
		[]MonthDay{{time.December, 25}, {time.February, 29}},
		func(d Date) bool { return d == Date{2024, time.May, 1} },
	)

	tests := []struct {
		date Date
		want bool
	}{
		{Date{2024, time.January, 20}, true},   // saturday
		{Date{2024, time.January, 21}, true},   // sunday
		{Date{2024, time.January, 22}, false},  // monday
		{Date{2024, time.March, 12}, true},     // one-time
		{Date{2025, time.March, 12}, false},    // one-time does not repeat
		{Date{2024, time.December, 25}, true},  // recurring
		{Date{2030, time.December, 25}, true},  // recurring, later year
		{Date{2028, time.February, 29}, true},  // leap day
		{Date{2024, time.May, 1}, true},        // extra predicate
		{Date{2025, time.May, 1}, false},
	}
	for _, tt := range tests {
		if got := cal.IsNonWorking(tt.date); got != tt.want {
			t.Errorf("IsNonWorking(%s) = %v, want %v", tt.date, got, tt.want)
		}
	}
}

func TestCalendarIsHolidayExcludesWeekend(t *testing.T) {
	cal := NewCalendar(nil, nil, nil)
	if cal.IsHoliday(Date{2024, time.January, 20}) {
		t.Fatal("saturday must not be reported as a holiday")
	}
	var nilCal *Calendar
	if nilCal.IsHoliday(Date{2024, time.January, 22}) {
		t.Fatal("nil calendar has no holidays")
	}
}

func TestParseClockAndWindow(t *testing.T) {
	c, err := ParseClock("08:30:15")
	if err != nil {
		t.Fatalf("ParseClock: %v", err)
	}
	if c.Hour() != 8 || c.Minute() != 30 || c.Second() != 15 {
		t.Fatalf("unexpected clock %s", c)
	}

	w, err := NewWindow("08:00", "16:00")
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	if w.HoursPerDay() != 8 {
		t.Fatalf("expected 8 hours per day, got %v", w.HoursPerDay())
	}
	if w.String() != "08:00-16:00" {
		t.Fatalf("unexpected window string %q", w.String())
	}

	if _, err := NewWindow("16:00", "08:00"); !IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := NewWindow("9am", "17:00"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDateHelpers(t *testing.T) {
	d, err := ParseDate("2024-02-28")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got := d.AddDays(1).String(); got != "2024-02-29" {
		t.Fatalf("AddDays(1) = %s", got)
	}
	if got := d.AddDays(-59).String(); got != "2023-12-31" {
		t.Fatalf("AddDays(-59) = %s", got)
	}
	if !ValidMonthDay(2, 29) || ValidMonthDay(2, 30) || ValidMonthDay(13, 1) || ValidMonthDay(4, 31) {
		t.Fatal("ValidMonthDay returned unexpected result")
	}
}

func TestPublicHolidaysPreset(t *testing.T) {
	pred, err := PublicHolidays("us")
	if err != nil {
		t.Fatalf("PublicHolidays: %v", err)
	}
	if !pred(Date{2024, time.July, 4}) {
		t.Fatal("expected Independence Day to be a holiday")
	}
	if pred(Date{2024, time.July, 5}) {
		t.Fatal("July 5 2024 is not a holiday")
	}

	none, err := PublicHolidays("")
	if err != nil || none != nil {
		t.Fatalf("expected nil predicate for empty preset, got err=%v", err)
	}
	if _, err := PublicHolidays("atlantis"); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestWorkingHoursBetween(t *testing.T) {
	window := nineToFive(t)
	hours, err := WorkingHoursBetween(at(2024, 1, 19, 10, 0), at(2024, 1, 22, 14, 0), window, nil)
	if err != nil {
		t.Fatalf("WorkingHoursBetween: %v", err)
	}
	if hours != 12 {
		t.Fatalf("expected 12 hours, got %v", hours)
	}

	back, err := WorkingHoursBetween(at(2024, 1, 22, 14, 0), at(2024, 1, 19, 10, 0), window, nil)
	if err != nil {
		t.Fatalf("WorkingHoursBetween: %v", err)
	}
	if back != -12 {
		t.Fatalf("expected -12 hours, got %v", back)
	}

	days, err := WorkingDaysBetween(at(2024, 1, 15, 9, 0), at(2024, 1, 17, 17, 0), window, holidaysOn(Date{2024, time.January, 16}))
	if err != nil {
		t.Fatalf("WorkingDaysBetween: %v", err)
	}
	if days != 2 {
		t.Fatalf("expected 2 working days, got %v", days)
	}
}

func TestParseMonthDay(t *testing.T) {
	tests := []struct {
		in   string
		want MonthDay
		ok   bool
	}{
		{"12-25", MonthDay{Month: time.December, Day: 25}, true},
		{"02-29", MonthDay{Month: time.February, Day: 29}, true},
		{"2-29", MonthDay{}, false},
		{"13-01", MonthDay{}, false},
		{"04-31", MonthDay{}, false},
		{"xx-01", MonthDay{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMonthDay(tt.in)
			if tt.ok != (err == nil) {
				t.Fatalf("ParseMonthDay(%q) error = %v", tt.in, err)
			}
			if tt.ok && (got != tt.want || got.String() != tt.in) {
				t.Fatalf("ParseMonthDay(%q) = %v", tt.in, got)
			}
		})
	}
}

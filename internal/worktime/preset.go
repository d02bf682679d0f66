/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package worktime

import (
	"fmt"
	"strings"
	"time"

	cal "github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// PublicHolidays returns a predicate for a named public-holiday preset.
// An empty name yields a nil predicate.
func PublicHolidays(preset string) (HolidayFunc, error) {
	switch strings.ToLower(strings.TrimSpace(preset)) {
	case "", "none":
		return nil, nil
	case "us", "us-federal":
		bc := cal.NewBusinessCalendar()
		bc.AddHoliday(
			us.NewYear,
			us.MlkDay,
			us.PresidentsDay,
			us.MemorialDay,
			us.Juneteenth,
			us.IndependenceDay,
			us.LaborDay,
			us.ThanksgivingDay,
			us.ChristmasDay,
		)
		return func(d Date) bool {
			actual, observed, _ := bc.IsHoliday(time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC))
			return actual || observed
		}, nil
	default:
		return nil, fmt.Errorf("unknown public holiday preset %q", preset)
	}
}

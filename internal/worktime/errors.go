/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package worktime

import "errors"

// ConfigurationError reports missing or invalid working-hours configuration.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "working hours configuration: " + e.Reason
}

var (
	// ErrNoWorkingDay is returned when the calendar yields no working day
	// within MaxSkippedDays consecutive dates.
	ErrNoWorkingDay = errors.New("no working day found within search window")

	// ErrIterationLimit is returned when the consumption loop exceeds MaxIterations.
	ErrIterationLimit = errors.New("working time computation exceeded iteration limit")

	// ErrInvalidEstimate rejects NaN and infinite estimates.
	ErrInvalidEstimate = errors.New("estimate must be a finite number of days")
)

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsCalendarExhausted reports whether err means the calendar has no usable
// working time. Both safety caps surface this way at the API boundary.
func IsCalendarExhausted(err error) bool {
	return errors.Is(err, ErrNoWorkingDay) || errors.Is(err, ErrIterationLimit)
}

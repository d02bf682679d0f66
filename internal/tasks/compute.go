/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/friendsincode/worktime/internal/apperr"
	"github.com/friendsincode/worktime/internal/telemetry"
	"github.com/friendsincode/worktime/internal/worktime"
)

// ComputeRequest is a stateless end-instant computation. Optional overrides
// replace the stored window or add holidays for this call only.
type ComputeRequest struct {
	Start        time.Time `json:"start"`
	EstimateDays float64   `json:"estimate_days"`
	WorkStart    string    `json:"work_start,omitempty"`
	WorkEnd      string    `json:"work_end,omitempty"`
	Holidays     []string  `json:"holidays,omitempty"`  // YYYY-MM-DD
	Recurring    []string  `json:"recurring,omitempty"` // MM-DD
}

// ComputeResult is the outcome of Compute.
type ComputeResult struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	EstimateDays float64   `json:"estimate_days"`
	Window       string    `json:"window"`
	Hours        float64   `json:"hours"`
	DaysSkipped  int       `json:"days_skipped"`
}

// Compute runs the engine against the stored configuration merged with the
// request's overrides. Nothing is persisted.
func (s *Service) Compute(ctx context.Context, req ComputeRequest) (*ComputeResult, error) {
	if req.Start.IsZero() {
		return nil, apperr.Validation("start is required")
	}
	if (req.WorkStart == "") != (req.WorkEnd == "") {
		return nil, apperr.Validation("work_start and work_end must be given together")
	}

	var window *worktime.Window
	if req.WorkStart != "" {
		w, err := worktime.NewWindow(req.WorkStart, req.WorkEnd)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		window = w
	}

	extra, err := overrideCalendar(req.Holidays, req.Recurring)
	if err != nil {
		return nil, err
	}

	stored, cal, err := s.calendar.Snapshot(ctx)
	if err != nil && !(worktime.IsConfigurationError(err) && window != nil) {
		observeOutcome(err)
		return nil, err
	}
	if window == nil {
		window = stored
	}

	isHoliday := func(d worktime.Date) bool {
		return cal.IsHoliday(d) || extra.IsHoliday(d)
	}

	res, err := s.compute(ctx, "", req.Start, req.EstimateDays, window, isHoliday)
	if err != nil {
		return nil, err
	}
	return &ComputeResult{
		Start:        res.Start,
		End:          res.End,
		EstimateDays: req.EstimateDays,
		Window:       window.String(),
		Hours:        res.Hours,
		DaysSkipped:  res.DaysSkipped,
	}, nil
}

// compute wraps the engine with tracing, metrics and logging. taskID is
// empty for stateless requests.
func (s *Service) compute(ctx context.Context, taskID string, start time.Time, estimate float64, window *worktime.Window, isHoliday worktime.HolidayFunc) (worktime.Result, error) {
	_, span := telemetry.StartComputeSpan(ctx, taskID, start, estimate, window.String())

	res, err := worktime.Compute(start, estimate, window, isHoliday)
	telemetry.FinishComputeSpan(span, res.End, res.Iterations, res.DaysSkipped, err)
	observeOutcome(err)
	if err != nil {
		s.logger.Debug().Err(err).Str("task_id", taskID).Time("start", start).Float64("estimate", estimate).Msg("computation failed")
		if errors.Is(err, worktime.ErrInvalidEstimate) {
			return res, apperr.Validation("%v", err)
		}
		return res, err
	}

	telemetry.EngineIterations.Observe(float64(res.Iterations))
	s.logger.Debug().
		Str("task_id", taskID).
		Time("start", res.Start).
		Time("end", res.End).
		Float64("estimate", estimate).
		Int("iterations", res.Iterations).
		Int("days_skipped", res.DaysSkipped).
		Msg("end instant computed")
	return res, nil
}

func observeOutcome(err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case worktime.IsConfigurationError(err):
		outcome = "not_configured"
	case worktime.IsCalendarExhausted(err):
		outcome = "no_working_day"
	default:
		outcome = "invalid"
	}
	telemetry.EngineComputationsTotal.WithLabelValues(outcome).Inc()
}

func overrideCalendar(dates, monthDays []string) (*worktime.Calendar, error) {
	oneTime := make([]worktime.Date, 0, len(dates))
	for _, raw := range dates {
		d, err := worktime.ParseDate(raw)
		if err != nil {
			return nil, apperr.Validation("holiday %q must be YYYY-MM-DD", raw)
		}
		oneTime = append(oneTime, d)
	}
	recurring := make([]worktime.MonthDay, 0, len(monthDays))
	for _, raw := range monthDays {
		md, err := worktime.ParseMonthDay(raw)
		if err != nil {
			return nil, apperr.Validation("recurring holiday %q must be MM-DD", raw)
		}
		recurring = append(recurring, md)
	}
	return worktime.NewCalendar(oneTime, recurring, nil), nil
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/friendsincode/worktime/internal/cache"
	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/models"
	"github.com/friendsincode/worktime/internal/worktime"
)

// Snapshot returns the active window and holiday calendar. Both values are
// immutable and safe to share across concurrent computations. Lookups go
// through the in-process copy, then Redis, then the database.
func (s *Service) Snapshot(ctx context.Context) (*worktime.Window, *worktime.Calendar, error) {
	s.mu.RLock()
	snap, gen := s.snap, s.gen
	s.mu.RUnlock()
	if snap != nil && time.Since(snap.builtAt) < s.opts.LocalTTL {
		return s.finish(snap)
	}

	cached, fromCache := s.cache.GetCalendar(ctx)
	if !fromCache {
		var err error
		cached, err = s.loadCalendar(ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	snap, err := s.build(cached)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	if s.gen == gen {
		if !fromCache {
			if err := s.cache.SetCalendar(ctx, cached); err != nil {
				s.logger.Debug().Err(err).Msg("failed to cache calendar snapshot")
			}
		}
		s.snap = snap
	} else {
		s.logger.Debug().Msg("settings changed during snapshot load, not storing it")
	}
	s.mu.Unlock()

	return s.finish(snap)
}

func (s *Service) finish(snap *snapshot) (*worktime.Window, *worktime.Calendar, error) {
	if snap.window == nil {
		return nil, snap.calendar, &worktime.ConfigurationError{Reason: "no working hours configured"}
	}
	return snap.window, snap.calendar, nil
}

// Invalidate drops the in-process and shared snapshots. Loads already in
// flight are not stored afterwards.
func (s *Service) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.snap = nil
	s.gen++
	s.mu.Unlock()

	if err := s.cache.InvalidateCalendar(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("failed to invalidate calendar cache")
	}
}

// Watch drops the in-process snapshot whenever another instance changes the
// settings. Subscriptions are in place when Watch returns.
func (s *Service) Watch(ctx context.Context, bus *events.Bus) {
	hours := bus.Subscribe(events.EventWorkingHoursUpdated)
	holidays := bus.Subscribe(events.EventHolidaysChanged)

	go func() {
		defer func() {
			bus.Unsubscribe(events.EventWorkingHoursUpdated, hours)
			bus.Unsubscribe(events.EventHolidaysChanged, holidays)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case payload := <-hours:
				s.dropLocal(payload)
			case payload := <-holidays:
				s.dropLocal(payload)
			}
		}
	}()
}

func (s *Service) dropLocal(payload events.Payload) {
	// Local changes already invalidated synchronously.
	if !payload.IsRemote() {
		return
	}
	s.mu.Lock()
	s.snap = nil
	s.gen++
	s.mu.Unlock()
	s.logger.Debug().Msg("calendar snapshot dropped after remote change")
}

func (s *Service) loadCalendar(ctx context.Context) (*cache.CachedCalendar, error) {
	active, err := s.activeRow(ctx)
	if err != nil {
		return nil, err
	}

	var oneTime []models.OneTimeHoliday
	if err := s.db.WithContext(ctx).Find(&oneTime).Error; err != nil {
		return nil, fmt.Errorf("load one-time holidays: %w", err)
	}
	var recurring []models.RecurringHoliday
	if err := s.db.WithContext(ctx).Find(&recurring).Error; err != nil {
		return nil, fmt.Errorf("load recurring holidays: %w", err)
	}

	cc := &cache.CachedCalendar{
		OneTime:   make([]string, 0, len(oneTime)),
		Recurring: make([]cache.CachedMonthDay, 0, len(recurring)),
		BuiltAt:   time.Now().UTC(),
	}
	if active != nil {
		cc.WindowStart = active.StartTime
		cc.WindowEnd = active.EndTime
	}
	for _, h := range oneTime {
		cc.OneTime = append(cc.OneTime, h.Date)
	}
	for _, h := range recurring {
		cc.Recurring = append(cc.Recurring, cache.CachedMonthDay{Month: h.Month, Day: h.Day})
	}
	return cc, nil
}

func (s *Service) build(cc *cache.CachedCalendar) (*snapshot, error) {
	snap := &snapshot{builtAt: time.Now()}

	if cc.WindowStart != "" {
		window, err := worktime.NewWindow(cc.WindowStart, cc.WindowEnd)
		if err != nil {
			return nil, fmt.Errorf("stored working hours: %w", err)
		}
		snap.window = window
	} else {
		snap.window = s.opts.DefaultWindow
	}

	dates := make([]worktime.Date, 0, len(cc.OneTime))
	for _, raw := range cc.OneTime {
		d, err := worktime.ParseDate(raw)
		if err != nil {
			s.logger.Warn().Err(err).Str("date", raw).Msg("skipping malformed holiday date")
			continue
		}
		dates = append(dates, d)
	}
	monthDays := make([]worktime.MonthDay, 0, len(cc.Recurring))
	for _, md := range cc.Recurring {
		monthDays = append(monthDays, worktime.MonthDay{Month: time.Month(md.Month), Day: md.Day})
	}

	snap.calendar = worktime.NewCalendar(dates, monthDays, s.opts.PublicHolidays)
	return snap, nil
}

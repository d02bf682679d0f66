/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package settings owns the working-hours configuration and the holiday
// calendar, and serves immutable snapshots of both to the engine.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/apperr"
	"github.com/friendsincode/worktime/internal/auth"
	"github.com/friendsincode/worktime/internal/cache"
	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/models"
	"github.com/friendsincode/worktime/internal/worktime"
)

// Options configure defaults applied when nothing is stored.
type Options struct {
	// DefaultWindow is used when no working hours are stored. Nil means the
	// engine reports a configuration error instead.
	DefaultWindow *worktime.Window

	// PublicHolidays is consulted after the stored holidays. May be nil.
	PublicHolidays worktime.HolidayFunc

	// LocalTTL bounds how long the in-process snapshot is reused.
	LocalTTL time.Duration
}

// Service manages working hours and holidays.
type Service struct {
	db     *gorm.DB
	bus    events.Publisher
	cache  *cache.Cache
	opts   Options
	logger zerolog.Logger

	mu   sync.RWMutex
	snap *snapshot
	// gen counts invalidations. A load that started under an older
	// generation is returned to its caller but never stored.
	gen uint64
}

type snapshot struct {
	window   *worktime.Window
	calendar *worktime.Calendar
	builtAt  time.Time
}

// NewService creates the settings service. cache may be a disabled cache.
func NewService(db *gorm.DB, bus events.Publisher, c *cache.Cache, opts Options, logger zerolog.Logger) *Service {
	if opts.LocalTTL <= 0 {
		opts.LocalTTL = 30 * time.Second
	}
	if c == nil {
		c = cache.Disabled(logger)
	}
	return &Service{
		db:     db,
		bus:    bus,
		cache:  c,
		opts:   opts,
		logger: logger.With().Str("component", "settings").Logger(),
	}
}

// GetWorkingHours returns the active working hours, storing the default
// window first if nothing has been configured yet.
func (s *Service) GetWorkingHours(ctx context.Context) (*models.WorkingHours, error) {
	active, err := s.activeRow(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return active, nil
	}
	if s.opts.DefaultWindow == nil {
		return nil, &worktime.ConfigurationError{Reason: "no working hours configured"}
	}

	row := &models.WorkingHours{
		ID:        uuid.NewString(),
		StartTime: s.opts.DefaultWindow.Start.String(),
		EndTime:   s.opts.DefaultWindow.End.String(),
		Active:    true,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("store default working hours: %w", err)
	}
	s.logger.Info().Str("window", s.opts.DefaultWindow.String()).Msg("stored default working hours")
	return row, nil
}

// ActiveWindow returns the window the engine should use.
func (s *Service) ActiveWindow(ctx context.Context) (*worktime.Window, error) {
	active, err := s.activeRow(ctx)
	if err != nil {
		return nil, err
	}
	return s.windowFor(active)
}

// UpdateWorkingHours replaces the active window. The previous row is kept
// inactive as history.
func (s *Service) UpdateWorkingHours(ctx context.Context, actor auth.Actor, start, end string) (*models.WorkingHours, error) {
	window, err := worktime.NewWindow(start, end)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	row := &models.WorkingHours{
		ID:        uuid.NewString(),
		StartTime: window.Start.String(),
		EndTime:   window.End.String(),
		Active:    true,
	}
	if actor.UserID != "" {
		row.UpdatedBy = &actor.UserID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.WorkingHours{}).Where("active = ?", true).Update("active", false).Error; err != nil {
			return err
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update working hours: %w", err)
	}

	s.Invalidate(ctx)
	s.bus.Publish(events.EventWorkingHoursUpdated, actor.Payload(events.Payload{
		"resource_type": "working_hours",
		"resource_id":   row.ID,
		"start_time":    row.StartTime,
		"end_time":      row.EndTime,
	}))

	s.logger.Info().Str("window", window.String()).Str("by", actor.Username).Msg("working hours updated")
	return row, nil
}

// WorkingHoursHistory returns every stored window, newest first.
func (s *Service) WorkingHoursHistory(ctx context.Context, limit int) ([]models.WorkingHours, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []models.WorkingHours
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (s *Service) activeRow(ctx context.Context) (*models.WorkingHours, error) {
	var row models.WorkingHours
	err := s.db.WithContext(ctx).Where("active = ?", true).Order("created_at DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load working hours: %w", err)
	}
	return &row, nil
}

func (s *Service) windowFor(row *models.WorkingHours) (*worktime.Window, error) {
	if row == nil {
		if s.opts.DefaultWindow == nil {
			return nil, &worktime.ConfigurationError{Reason: "no working hours configured"}
		}
		return s.opts.DefaultWindow, nil
	}
	window, err := worktime.NewWindow(row.StartTime, row.EndTime)
	if err != nil {
		return nil, fmt.Errorf("stored working hours: %w", err)
	}
	return window, nil
}

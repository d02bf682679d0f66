/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/apperr"
	"github.com/friendsincode/worktime/internal/auth"
	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/models"
	"github.com/friendsincode/worktime/internal/worktime"
)

const (
	resourceRecurring = "recurring_holiday"
	resourceOneTime   = "one_time_holiday"
)

// AddRecurringHoliday stores an annual holiday. February 29 is accepted and
// only matches in leap years.
func (s *Service) AddRecurringHoliday(ctx context.Context, actor auth.Actor, month, day int, description string) (*models.RecurringHoliday, error) {
	if !worktime.ValidMonthDay(month, day) {
		return nil, apperr.Validation("invalid month/day %d/%d", month, day)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.RecurringHoliday{}).
		Where("month = ? AND day = ?", month, day).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperr.Duplicate(fmt.Sprintf("recurring holiday %02d-%02d", month, day))
	}

	holiday := &models.RecurringHoliday{
		ID:          uuid.NewString(),
		Month:       month,
		Day:         day,
		Description: strings.TrimSpace(description),
	}
	if err := s.db.WithContext(ctx).Create(holiday).Error; err != nil {
		return nil, fmt.Errorf("create recurring holiday: %w", err)
	}

	s.holidaysChanged(ctx, actor, "created", resourceRecurring, holiday.ID, events.Payload{"month": month, "day": day})
	return holiday, nil
}

// ListRecurringHolidays returns recurring holidays in calendar order.
func (s *Service) ListRecurringHolidays(ctx context.Context) ([]models.RecurringHoliday, error) {
	var holidays []models.RecurringHoliday
	err := s.db.WithContext(ctx).Order("month ASC, day ASC").Find(&holidays).Error
	return holidays, err
}

// GetRecurringHoliday loads one recurring holiday.
func (s *Service) GetRecurringHoliday(ctx context.Context, id string) (*models.RecurringHoliday, error) {
	var holiday models.RecurringHoliday
	err := s.db.WithContext(ctx).First(&holiday, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("recurring holiday")
	}
	if err != nil {
		return nil, err
	}
	return &holiday, nil
}

// DeleteRecurringHoliday removes a recurring holiday.
func (s *Service) DeleteRecurringHoliday(ctx context.Context, actor auth.Actor, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.RecurringHoliday{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("recurring holiday")
	}
	s.holidaysChanged(ctx, actor, "deleted", resourceRecurring, id, nil)
	return nil
}

// AddOneTimeHoliday stores a holiday on a single YYYY-MM-DD date.
func (s *Service) AddOneTimeHoliday(ctx context.Context, actor auth.Actor, date, description string) (*models.OneTimeHoliday, error) {
	d, err := worktime.ParseDate(strings.TrimSpace(date))
	if err != nil {
		return nil, apperr.Validation("date must be YYYY-MM-DD")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.OneTimeHoliday{}).
		Where("date = ?", d.String()).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperr.Duplicate("one-time holiday " + d.String())
	}

	holiday := &models.OneTimeHoliday{
		ID:          uuid.NewString(),
		Date:        d.String(),
		Description: strings.TrimSpace(description),
	}
	if err := s.db.WithContext(ctx).Create(holiday).Error; err != nil {
		return nil, fmt.Errorf("create one-time holiday: %w", err)
	}

	s.holidaysChanged(ctx, actor, "created", resourceOneTime, holiday.ID, events.Payload{"date": holiday.Date})
	return holiday, nil
}

// ListOneTimeHolidays returns one-time holidays ordered by date.
func (s *Service) ListOneTimeHolidays(ctx context.Context) ([]models.OneTimeHoliday, error) {
	var holidays []models.OneTimeHoliday
	err := s.db.WithContext(ctx).Order("date ASC").Find(&holidays).Error
	return holidays, err
}

// GetOneTimeHoliday loads one one-time holiday.
func (s *Service) GetOneTimeHoliday(ctx context.Context, id string) (*models.OneTimeHoliday, error) {
	var holiday models.OneTimeHoliday
	err := s.db.WithContext(ctx).First(&holiday, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("one-time holiday")
	}
	if err != nil {
		return nil, err
	}
	return &holiday, nil
}

// DeleteOneTimeHoliday removes a one-time holiday.
func (s *Service) DeleteOneTimeHoliday(ctx context.Context, actor auth.Actor, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.OneTimeHoliday{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("one-time holiday")
	}
	s.holidaysChanged(ctx, actor, "deleted", resourceOneTime, id, nil)
	return nil
}

// DeleteAllOneTimeHolidays clears every one-time holiday and returns how many were removed.
func (s *Service) DeleteAllOneTimeHolidays(ctx context.Context, actor auth.Actor) (int64, error) {
	result := s.db.WithContext(ctx).Where("1 = 1").Delete(&models.OneTimeHoliday{})
	if result.Error != nil {
		return 0, result.Error
	}
	s.holidaysChanged(ctx, actor, "cleared", resourceOneTime, "", events.Payload{"deleted": result.RowsAffected})
	return result.RowsAffected, nil
}

func (s *Service) holidaysChanged(ctx context.Context, actor auth.Actor, change, resourceType, resourceID string, extra events.Payload) {
	s.Invalidate(ctx)

	payload := actor.Payload(extra)
	payload["change"] = change
	payload["resource_type"] = resourceType
	if resourceID != "" {
		payload["resource_id"] = resourceID
	}
	s.bus.Publish(events.EventHolidaysChanged, payload)

	s.logger.Debug().Str("change", change).Str("resource", resourceType).Str("id", resourceID).Msg("holidays changed")
}

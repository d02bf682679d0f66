/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package settings

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/apperr"
	"github.com/friendsincode/worktime/internal/auth"
	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/models"
	"github.com/friendsincode/worktime/internal/worktime"
)

// ImportDocument is the YAML layout accepted by ImportHolidays:
//
//	working_hours:
//	  start: "09:00"
//	  end: "17:00"
//	recurring:
//	  - {month: 12, day: 25, description: Christmas}
//	one_time:
//	  - {date: "2024-01-16", description: Offsite}
type ImportDocument struct {
	WorkingHours *struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"working_hours"`
	Recurring []struct {
		Month       int    `yaml:"month"`
		Day         int    `yaml:"day"`
		Description string `yaml:"description"`
	} `yaml:"recurring"`
	OneTime []struct {
		Date        string `yaml:"date"`
		Description string `yaml:"description"`
	} `yaml:"one_time"`
	// ReplaceOneTime clears existing one-time holidays before importing.
	ReplaceOneTime bool `yaml:"replace_one_time"`
}

// ImportResult summarises an import.
type ImportResult struct {
	WorkingHoursUpdated bool `json:"working_hours_updated"`
	Recurring           int  `json:"recurring"`
	OneTime             int  `json:"one_time"`
	Skipped             int  `json:"skipped"`
	Removed             int  `json:"removed"`
}

// ParseImport decodes and validates an import document.
func ParseImport(data []byte) (*ImportDocument, error) {
	var doc ImportDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, apperr.Validation("parse holiday document: %v", err)
	}

	if doc.WorkingHours != nil {
		if _, err := worktime.NewWindow(doc.WorkingHours.Start, doc.WorkingHours.End); err != nil {
			return nil, apperr.Validation("working_hours: %v", err)
		}
	}
	for i, r := range doc.Recurring {
		if !worktime.ValidMonthDay(r.Month, r.Day) {
			return nil, apperr.Validation("recurring[%d]: invalid month/day %d/%d", i, r.Month, r.Day)
		}
	}
	for i, o := range doc.OneTime {
		if _, err := worktime.ParseDate(o.Date); err != nil {
			return nil, apperr.Validation("one_time[%d]: date must be YYYY-MM-DD", i)
		}
	}
	return &doc, nil
}

// ImportHolidays applies a YAML document in one transaction. Entries that
// already exist are skipped.
func (s *Service) ImportHolidays(ctx context.Context, actor auth.Actor, data []byte) (*ImportResult, error) {
	doc, err := ParseImport(data)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if doc.WorkingHours != nil {
			window, _ := worktime.NewWindow(doc.WorkingHours.Start, doc.WorkingHours.End)
			if err := tx.Model(&models.WorkingHours{}).Where("active = ?", true).Update("active", false).Error; err != nil {
				return err
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
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			res.WorkingHoursUpdated = true
		}

		if doc.ReplaceOneTime {
			result := tx.Where("1 = 1").Delete(&models.OneTimeHoliday{})
			if result.Error != nil {
				return result.Error
			}
			res.Removed = int(result.RowsAffected)
		}

		for _, r := range doc.Recurring {
			var count int64
			if err := tx.Model(&models.RecurringHoliday{}).Where("month = ? AND day = ?", r.Month, r.Day).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				res.Skipped++
				continue
			}
			if err := tx.Create(&models.RecurringHoliday{
				ID:          uuid.NewString(),
				Month:       r.Month,
				Day:         r.Day,
				Description: strings.TrimSpace(r.Description),
			}).Error; err != nil {
				return err
			}
			res.Recurring++
		}

		for _, o := range doc.OneTime {
			d, _ := worktime.ParseDate(o.Date)
			var count int64
			if err := tx.Model(&models.OneTimeHoliday{}).Where("date = ?", d.String()).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				res.Skipped++
				continue
			}
			if err := tx.Create(&models.OneTimeHoliday{
				ID:          uuid.NewString(),
				Date:        d.String(),
				Description: strings.TrimSpace(o.Description),
			}).Error; err != nil {
				return err
			}
			res.OneTime++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import holidays: %w", err)
	}

	s.Invalidate(ctx)
	if res.WorkingHoursUpdated {
		s.bus.Publish(events.EventWorkingHoursUpdated, actor.Payload(events.Payload{
			"resource_type": "working_hours",
			"start_time":    doc.WorkingHours.Start,
			"end_time":      doc.WorkingHours.End,
		}))
	}
	s.bus.Publish(events.EventHolidaysChanged, actor.Payload(events.Payload{
		"change":        "imported",
		"resource_type": "holidays",
		"recurring":     res.Recurring,
		"one_time":      res.OneTime,
		"skipped":       res.Skipped,
	}))

	s.logger.Info().
		Int("recurring", res.Recurring).
		Int("one_time", res.OneTime).
		Int("skipped", res.Skipped).
		Bool("working_hours", res.WorkingHoursUpdated).
		Msg("holidays imported")
	return res, nil
}

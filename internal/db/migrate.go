/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/friendsincode/worktime/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.User{},
		&models.UserSession{},
		&models.APIKey{},
		&models.AuditLog{},

		&models.Task{},

		&models.WorkingHours{},
		&models.RecurringHoliday{},
		&models.OneTimeHoliday{},

		&models.WebhookTarget{},
		&models.WebhookLog{},
	); err != nil {
		return err
	}

	if err := collapseActiveWorkingHours(database); err != nil {
		return err
	}
	return nil
}

// collapseActiveWorkingHours keeps only the most recent active window when
// older data (or an interrupted update) left several rows active.
func collapseActiveWorkingHours(database *gorm.DB) error {
	var active []models.WorkingHours
	if err := database.Where("active = ?", true).Order("created_at DESC").Find(&active).Error; err != nil {
		return fmt.Errorf("load active working hours: %w", err)
	}
	if len(active) <= 1 {
		return nil
	}

	stale := make([]string, 0, len(active)-1)
	for _, wh := range active[1:] {
		stale = append(stale, wh.ID)
	}
	if err := database.Model(&models.WorkingHours{}).Where("id IN ?", stale).Update("active", false).Error; err != nil {
		return fmt.Errorf("deactivate stale working hours: %w", err)
	}
	return nil
}

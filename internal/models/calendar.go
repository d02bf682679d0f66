/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// WorkingHours stores a working-hours window. Exactly one row is active;
// older rows are kept as history.
type WorkingHours struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	StartTime string    `gorm:"type:varchar(8);not null" json:"start_time"` // HH:MM
	EndTime   string    `gorm:"type:varchar(8);not null" json:"end_time"`   // HH:MM
	Active    bool      `gorm:"not null;default:true;index" json:"active"`
	UpdatedBy *string   `gorm:"type:uuid" json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (WorkingHours) TableName() string {
	return "working_hours"
}

// RecurringHoliday repeats every year on the same month and day.
type RecurringHoliday struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Month       int       `gorm:"not null;index:idx_recurring_month_day" json:"month"`
	Day         int       `gorm:"not null;index:idx_recurring_month_day" json:"day"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OneTimeHoliday occurs on a single date. Date is stored as YYYY-MM-DD.
type OneTimeHoliday struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Date        string    `gorm:"type:varchar(10);uniqueIndex;not null" json:"date"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

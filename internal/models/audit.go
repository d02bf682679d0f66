/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AuditAction defines the type of audited action.
type AuditAction string

const (
	AuditActionUserRegister       AuditAction = "user.register"
	AuditActionUserLogin          AuditAction = "user.login"
	AuditActionUserLogout         AuditAction = "user.logout"
	AuditActionAPIKeyCreate       AuditAction = "apikey.create"
	AuditActionAPIKeyRevoke       AuditAction = "apikey.revoke"
	AuditActionTaskCreate         AuditAction = "task.create"
	AuditActionTaskUpdate         AuditAction = "task.update"
	AuditActionTaskDelete         AuditAction = "task.delete"
	AuditActionTaskEstimate       AuditAction = "task.estimate"
	AuditActionTaskSchedule       AuditAction = "task.schedule"
	AuditActionWorkingHoursUpdate AuditAction = "settings.working_hours"
	AuditActionHolidayCreate      AuditAction = "settings.holiday_create"
	AuditActionHolidayDelete      AuditAction = "settings.holiday_delete"
	AuditActionHolidayImport      AuditAction = "settings.holiday_import"
)

// AuditLog records sensitive operations.
type AuditLog struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp    time.Time      `gorm:"index:idx_audit_timestamp;not null" json:"timestamp"`
	UserID       *string        `gorm:"type:uuid;index:idx_audit_user" json:"user_id,omitempty"` // NULL for system actions
	Username     string         `gorm:"type:varchar(64)" json:"username,omitempty"`
	Action       AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null" json:"action"`
	ResourceType string         `gorm:"type:varchar(64)" json:"resource_type"` // "task", "holiday", ...
	ResourceID   string         `gorm:"type:varchar(64)" json:"resource_id"`
	Details      map[string]any `gorm:"type:jsonb;serializer:json" json:"details,omitempty"`
	IPAddress    string         `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent    string         `gorm:"type:varchar(512)" json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// RoleName identifies what a user may do.
type RoleName string

const (
	RoleProjectManager RoleName = "PROJECT_MANAGER"
	RoleEngineer       RoleName = "ENGINEER"
)

// Valid reports whether r is a known role.
func (r RoleName) Valid() bool {
	return r == RoleProjectManager || r == RoleEngineer
}

// User represents an authenticated account.
type User struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"type:varchar(255);index" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	FirstName string    `gorm:"type:varchar(100)" json:"first_name,omitempty"`
	LastName  string    `gorm:"type:varchar(100)" json:"last_name,omitempty"`
	PhoneNo   string    `gorm:"type:varchar(32)" json:"phone_no,omitempty"`
	Role      RoleName  `gorm:"type:varchar(32);index;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsManager reports whether the user is a project manager.
func (u *User) IsManager() bool {
	return u != nil && u.Role == RoleProjectManager
}

// UserSession tracks an issued access token. Only active sessions authenticate.
type UserSession struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;index;not null" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"-"`
	Active    bool      `gorm:"not null;default:true;index" json:"active"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	IPAddress string    `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent string    `gorm:"type:varchar(512)" json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (UserSession) TableName() string {
	return "user_sessions"
}

// IsUsable reports whether the session can still authenticate requests.
func (s *UserSession) IsUsable(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}

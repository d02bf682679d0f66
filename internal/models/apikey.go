/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// APIKey grants programmatic access on behalf of a user. Only the SHA-256
// hash of the key is stored; KeyPrefix is kept for display and lookup.
type APIKey struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string     `gorm:"type:uuid;index;not null" json:"user_id"`
	User       User       `gorm:"foreignKey:UserID" json:"-"`
	Name       string     `gorm:"not null" json:"name"`
	KeyHash    string     `gorm:"not null" json:"-"`
	KeyPrefix  string     `gorm:"size:11;index" json:"key_prefix"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsValid reports whether the key is usable at now.
func (k *APIKey) IsValid(now time.Time) bool {
	return k.RevokedAt == nil && now.Before(k.ExpiresAt)
}

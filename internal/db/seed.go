/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/models"
)

// DefaultManagerUsername is the project manager created on an empty database.
const DefaultManagerUsername = "pm"

// SeedDefaultManager creates the initial project manager account when no
// manager exists yet. An empty password skips seeding.
func SeedDefaultManager(database *gorm.DB, password string, logger zerolog.Logger) error {
	if password == "" {
		logger.Warn().Msg("no seed manager password configured; skipping default project manager")
		return nil
	}

	var existing models.User
	err := database.Where("role = ?", models.RoleProjectManager).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("look up project managers: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	pm := models.User{
		ID:        uuid.NewString(),
		Username:  DefaultManagerUsername,
		Email:     "pm@example.com",
		Password:  string(hash),
		FirstName: "Project",
		LastName:  "Manager",
		Role:      models.RoleProjectManager,
	}
	if err := database.Create(&pm).Error; err != nil {
		return fmt.Errorf("create default project manager: %w", err)
	}

	logger.Info().Str("username", pm.Username).Msg("seeded default project manager")
	return nil
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/models"
)

const (
	APIKeyPrefix      = "wt_"
	APIKeyRandomBytes = 24
)

// MaxAPIKeyLifetime caps how long a key may live.
const MaxAPIKeyLifetime = 365 * 24 * time.Hour

var (
	ErrAPIKeyNotFound = errors.New("api key not found")
	ErrAPIKeyExpired  = errors.New("api key expired")
	ErrAPIKeyRevoked  = errors.New("api key revoked")
	ErrUserNotFound   = errors.New("user not found")
)

func hashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// GenerateAPIKey creates a new API key for a user.
// Returns the plaintext key (shown once) and the model to store.
func GenerateAPIKey(userID, name string, expiresIn time.Duration) (string, *models.APIKey, error) {
	if expiresIn <= 0 || expiresIn > MaxAPIKeyLifetime {
		expiresIn = MaxAPIKeyLifetime
	}

	randomBytes := make([]byte, APIKeyRandomBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", nil, err
	}
	plaintextKey := APIKeyPrefix + hex.EncodeToString(randomBytes)

	apiKey := &models.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		KeyHash:   hashAPIKey(plaintextKey),
		KeyPrefix: plaintextKey[:11], // "wt_" + 8 hex chars
		ExpiresAt: time.Now().Add(expiresIn),
	}

	return plaintextKey, apiKey, nil
}

// ValidateAPIKey validates an API key and returns claims for its owner.
func ValidateAPIKey(db *gorm.DB, plaintextKey string) (*Claims, error) {
	var apiKey models.APIKey
	result := db.Where("key_hash = ?", hashAPIKey(plaintextKey)).First(&apiKey)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrAPIKeyNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	now := time.Now()
	if apiKey.RevokedAt != nil {
		return nil, ErrAPIKeyRevoked
	}
	if !apiKey.IsValid(now) {
		return nil, ErrAPIKeyExpired
	}

	var user models.User
	result = db.First(&user, "id = ?", apiKey.UserID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	db.Model(&apiKey).Update("last_used_at", now)

	return &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    []string{string(user.Role)},
	}, nil
}

// RevokeAPIKey revokes an API key. Only the owner can revoke their own keys.
func RevokeAPIKey(db *gorm.DB, keyID, userID string) error {
	result := db.Model(&models.APIKey{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL", keyID, userID).
		Update("revoked_at", time.Now())

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// ListAPIKeys returns all API keys for a user.
func ListAPIKeys(db *gorm.DB, userID string) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package accounts implements registration, login sessions and user lookups.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/apperr"
	"github.com/friendsincode/worktime/internal/auth"
	"github.com/friendsincode/worktime/internal/cache"
	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/models"
	"github.com/friendsincode/worktime/internal/telemetry"
)

// Service manages users and their login sessions.
type Service struct {
	db        *gorm.DB
	bus       events.Publisher
	cache     *cache.Cache
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    zerolog.Logger
}

// NewService creates the accounts service. cache may be nil.
func NewService(db *gorm.DB, bus events.Publisher, c *cache.Cache, jwtSecret []byte, tokenTTL time.Duration, logger zerolog.Logger) *Service {
	if c == nil {
		c = cache.Disabled(logger)
	}
	return &Service{
		db:        db,
		bus:       bus,
		cache:     c,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger.With().Str("component", "accounts").Logger(),
	}
}

// NewUser carries the fields for a new account.
type NewUser struct {
	Username  string          `json:"username"`
	Password  string          `json:"password"`
	Email     string          `json:"email"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	PhoneNo   string          `json:"phone_no"`
	Role      models.RoleName `json:"role,omitempty"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Register creates a self-service account. Registered users are always engineers.
func (s *Service) Register(ctx context.Context, actor auth.Actor, req NewUser) (*models.User, error) {
	req.Role = models.RoleEngineer
	user, err := s.create(ctx, req)
	if err != nil {
		return nil, err
	}

	actor.UserID, actor.Username = user.ID, user.Username
	s.bus.Publish(events.EventUserRegistered, actor.Payload(events.Payload{
		"resource_type": "user",
		"resource_id":   user.ID,
		"role":          string(user.Role),
	}))
	s.logger.Info().Str("username", user.Username).Msg("user registered")
	return user, nil
}

// CreateUser creates an account with any role, for bootstrap and administration.
func (s *Service) CreateUser(ctx context.Context, actor auth.Actor, req NewUser) (*models.User, error) {
	if !req.Role.Valid() {
		return nil, apperr.Validation("role must be %s or %s", models.RoleProjectManager, models.RoleEngineer)
	}
	user, err := s.create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.bus.Publish(events.EventUserRegistered, actor.Payload(events.Payload{
		"resource_type": "user",
		"resource_id":   user.ID,
		"role":          string(user.Role),
		"created_user":  user.Username,
	}))
	s.logger.Info().Str("username", user.Username).Str("role", string(user.Role)).Msg("user created")
	return user, nil
}

func (s *Service) create(ctx context.Context, req NewUser) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, apperr.Validation("username is required")
	}
	if len(req.Password) < auth.MinPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", auth.MinPasswordLength)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperr.Duplicate("username")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     strings.TrimSpace(req.Email),
		Password:  hash,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		PhoneNo:   strings.TrimSpace(req.PhoneNo),
		Role:      req.Role,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Duplicate("username")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if user.Role == models.RoleEngineer {
		if err := s.cache.InvalidateEngineers(ctx); err != nil {
			s.logger.Debug().Err(err).Msg("failed to invalidate engineer cache")
		}
	}
	return user, nil
}

// Login verifies credentials, closes the user's previous sessions and
// issues a token bound to a new session.
func (s *Service) Login(ctx context.Context, actor auth.Actor, username, password string) (*LoginResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(user.Password, password) {
		return nil, apperr.ErrInvalidCredentials
	}

	now := time.Now()
	session := &models.UserSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Active:    true,
		ExpiresAt: now.Add(s.tokenTTL),
		IPAddress: actor.IPAddress,
		UserAgent: truncate(actor.UserAgent, 512),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.UserSession{}).
			Where("user_id = ? AND active = ?", user.ID, true).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Create(session).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := auth.Issue(s.jwtSecret, auth.Claims{
		UserID:    user.ID,
		Username:  user.Username,
		Roles:     []string{string(user.Role)},
		SessionID: session.ID,
	}, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	actor.UserID, actor.Username = user.ID, user.Username
	s.bus.Publish(events.EventAuthLogin, actor.Payload(events.Payload{
		"resource_type": "session",
		"resource_id":   session.ID,
	}))
	s.logger.Debug().Str("username", user.Username).Msg("user logged in")

	return &LoginResult{Token: token, ExpiresAt: session.ExpiresAt, User: &user}, nil
}

// Logout deactivates every active session of the actor.
func (s *Service) Logout(ctx context.Context, actor auth.Actor) error {
	result := s.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("user_id = ? AND active = ?", actor.UserID, true).
		Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("deactivate sessions: %w", result.Error)
	}

	s.bus.Publish(events.EventAuthLogout, actor.Payload(events.Payload{
		"resource_type": "session",
		"sessions":      result.RowsAffected,
	}))
	return nil
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Me returns the actor's own account.
func (s *Service) Me(ctx context.Context, actor auth.Actor) (*models.User, error) {
	return s.GetUser(ctx, actor.UserID)
}

// ListEngineers returns every engineer, ordered by username.
func (s *Service) ListEngineers(ctx context.Context) ([]models.User, error) {
	if cached, ok := s.cache.GetEngineers(ctx); ok {
		users := make([]models.User, 0, len(cached))
		for _, c := range cached {
			users = append(users, models.User{
				ID:        c.ID,
				Username:  c.Username,
				Email:     c.Email,
				FirstName: c.FirstName,
				LastName:  c.LastName,
				Role:      models.RoleEngineer,
			})
		}
		return users, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("role = ?", models.RoleEngineer).Order("username ASC").Find(&users).Error; err != nil {
		return nil, err
	}

	cached := make([]cache.CachedUser, 0, len(users))
	for _, u := range users {
		cached = append(cached, cache.CachedUser{
			ID:        u.ID,
			Username:  u.Username,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		})
	}
	if err := s.cache.SetEngineers(ctx, cached); err != nil {
		s.logger.Debug().Err(err).Msg("failed to cache engineers")
	}
	return users, nil
}

// ReapSessions deactivates sessions that have expired or are older than maxAge.
func (s *Service) ReapSessions(ctx context.Context, maxAge time.Duration) (int64, error) {
	now := time.Now()
	query := s.db.WithContext(ctx).Model(&models.UserSession{}).Where("active = ?", true)
	if maxAge > 0 {
		query = query.Where("expires_at < ? OR created_at < ?", now, now.Add(-maxAge))
	} else {
		query = query.Where("expires_at < ?", now)
	}

	result := query.Update("active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("reap sessions: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		telemetry.SessionsReapedTotal.Add(float64(result.RowsAffected))
		s.logger.Info().Int64("sessions", result.RowsAffected).Msg("expired sessions deactivated")
	}
	return result.RowsAffected, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

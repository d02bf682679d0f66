/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/models"
)

// ErrSessionInactive is returned when a token's session was logged out or expired.
var ErrSessionInactive = errors.New("session inactive")

// Middleware validates API keys or JWT Bearer tokens and injects claims
// into the request context. Bearer tokens must reference an active session.
func Middleware(db *gorm.DB, jwtSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
				claims, err := ValidateAPIKey(db, apiKey)
				if err != nil {
					unauthorized(w)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
				return
			}

			token := extractToken(r)
			if token == "" {
				unauthorized(w)
				return
			}
			claims, err := Parse(jwtSecret, token)
			if err != nil {
				unauthorized(w)
				return
			}
			if err := CheckSession(db, claims.SessionID, time.Now()); err != nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// CheckSession verifies the session exists and is still usable.
func CheckSession(db *gorm.DB, sessionID string, now time.Time) error {
	if sessionID == "" {
		return ErrSessionInactive
	}
	var session models.UserSession
	if err := db.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionInactive
		}
		return err
	}
	if !session.IsUsable(now) {
		return ErrSessionInactive
	}
	return nil
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/accounts"
	"github.com/friendsincode/worktime/internal/apperr"
	"github.com/friendsincode/worktime/internal/audit"
	"github.com/friendsincode/worktime/internal/auth"
	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/logbuffer"
	"github.com/friendsincode/worktime/internal/models"
	"github.com/friendsincode/worktime/internal/settings"
	"github.com/friendsincode/worktime/internal/tasks"
	"github.com/friendsincode/worktime/internal/webhooks"
	"github.com/friendsincode/worktime/internal/worktime"
)

// maxBodyBytes caps JSON and YAML request bodies.
const maxBodyBytes = 1 << 20

// API exposes HTTP handlers.
type API struct {
	db         *gorm.DB
	jwtSecret  []byte
	accounts   *accounts.Service
	tasks      *tasks.Service
	settings   *settings.Service
	auditSvc   *audit.Service
	webhookSvc *webhooks.Service
	bus        events.Publisher
	logBuffer  *logbuffer.Buffer
	stream     *events.Bus
	logger     zerolog.Logger
}

// New creates the API router wrapper. auditSvc, webhookSvc and logBuf may be nil.
func New(db *gorm.DB, jwtSecret []byte, accountsSvc *accounts.Service, taskSvc *tasks.Service, settingsSvc *settings.Service, auditSvc *audit.Service, webhookSvc *webhooks.Service, bus events.Publisher, logBuf *logbuffer.Buffer, logger zerolog.Logger) *API {
	return &API{
		db:         db,
		jwtSecret:  jwtSecret,
		accounts:   accountsSvc,
		tasks:      taskSvc,
		settings:   settingsSvc,
		auditSvc:   auditSvc,
		webhookSvc: webhookSvc,
		bus:        bus,
		logBuffer:  logBuf,
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// Routes registers all API routes on r.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.handleRegister)
			r.Post("/login", a.handleLogin)
			r.With(a.authMiddleware()).Post("/logout", a.handleLogout)
			r.With(a.authMiddleware()).Get("/me", a.handleMe)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())
			manager := a.requireRoles(models.RoleProjectManager)

			pr.With(manager).Get("/users/engineers", a.handleListEngineers)

			pr.Route("/tasks", func(r chi.Router) {
				r.With(manager).Post("/", a.handleTaskCreate)
				r.Get("/", a.handleTaskList)
				r.Route("/{taskID}", func(r chi.Router) {
					r.Get("/", a.handleTaskGet)
					r.Put("/", a.handleTaskUpdate)
					r.Delete("/", a.handleTaskDelete)
					r.Put("/estimate", a.handleTaskEstimate)
					r.With(manager).Post("/calculate-end-date", a.handleTaskCalculateEndDate)
				})
			})

			pr.Route("/settings", func(r chi.Router) {
				r.Use(manager)
				r.Get("/working-hours", a.handleWorkingHoursGet)
				r.Put("/working-hours", a.handleWorkingHoursUpdate)
				r.Get("/working-hours/history", a.handleWorkingHoursHistory)

				r.Route("/recurring-holidays", func(r chi.Router) {
					r.Get("/", a.handleRecurringList)
					r.Post("/", a.handleRecurringCreate)
					r.Get("/{holidayID}", a.handleRecurringGet)
					r.Delete("/{holidayID}", a.handleRecurringDelete)
				})

				r.Route("/one-time-holidays", func(r chi.Router) {
					r.Get("/", a.handleOneTimeList)
					r.Post("/", a.handleOneTimeCreate)
					r.Delete("/", a.handleOneTimeDeleteAll)
					r.Get("/{holidayID}", a.handleOneTimeGet)
					r.Delete("/{holidayID}", a.handleOneTimeDelete)
				})

				r.Post("/holidays/import", a.handleHolidayImport)
			})

			pr.Post("/worktime/compute", a.handleCompute)
			pr.Get("/events", a.handleEvents)

			pr.Group(func(r chi.Router) {
				r.Use(manager)
				r.Get("/audit", a.handleAuditList)

				r.Route("/apikeys", func(r chi.Router) {
					r.Get("/", a.handleAPIKeyList)
					r.Post("/", a.handleAPIKeyCreate)
					r.Delete("/{keyID}", a.handleAPIKeyRevoke)
				})

				r.Route("/webhooks", func(r chi.Router) {
					r.Get("/", a.handleWebhookList)
					r.Post("/", a.handleWebhookCreate)
					r.Get("/{webhookID}", a.handleWebhookGet)
					r.Delete("/{webhookID}", a.handleWebhookDelete)
					r.Post("/{webhookID}/test", a.handleWebhookTest)
					r.Get("/{webhookID}/logs", a.handleWebhookLogs)
				})

				r.Route("/system/logs", func(r chi.Router) {
					r.Get("/", a.handleSystemLogs)
					r.Get("/stats", a.handleLogStats)
				})
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.Middleware(a.db, a.jwtSecret)
}

func (a *API) requireRoles(allowed ...models.RoleName) func(http.Handler) http.Handler {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[string(role)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range claims.Roles {
				if _, exists := allowedSet[role]; exists {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient_role")
		})
	}
}

// actor returns the authenticated caller, or an anonymous actor carrying
// only request metadata.
func actor(r *http.Request) auth.Actor {
	if a, ok := auth.ActorFromRequest(r); ok {
		return a
	}
	return auth.Actor{IPAddress: r.RemoteAddr, UserAgent: r.UserAgent()}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeServiceError maps service and engine errors onto HTTP responses.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.Error().Err(err).Msg("request failed")
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrDuplicate):
		return http.StatusConflict, "conflict"
	case worktime.IsConfigurationError(err):
		return http.StatusPreconditionFailed, "working_hours_not_configured"
	case worktime.IsCalendarExhausted(err):
		return http.StatusUnprocessableEntity, "no_working_day"
	case errors.Is(err, worktime.ErrInvalidEstimate):
		return http.StatusBadRequest, "validation_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

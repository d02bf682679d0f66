/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/models"
)

// actions maps audited event types to the stored action.
var actions = map[events.EventType]models.AuditAction{
	events.EventUserRegistered:      models.AuditActionUserRegister,
	events.EventAuthLogin:           models.AuditActionUserLogin,
	events.EventAuthLogout:          models.AuditActionUserLogout,
	events.EventAPIKeyCreate:        models.AuditActionAPIKeyCreate,
	events.EventAPIKeyRevoke:        models.AuditActionAPIKeyRevoke,
	events.EventTaskCreated:         models.AuditActionTaskCreate,
	events.EventTaskUpdated:         models.AuditActionTaskUpdate,
	events.EventTaskDeleted:         models.AuditActionTaskDelete,
	events.EventTaskEstimated:       models.AuditActionTaskEstimate,
	events.EventTaskScheduled:       models.AuditActionTaskSchedule,
	events.EventWorkingHoursUpdated: models.AuditActionWorkingHoursUpdate,
	events.EventHolidaysChanged:     models.AuditActionHolidayCreate,
}

// Service handles audit logging by subscribing to events and storing audit entries.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

type received struct {
	eventType events.EventType
	payload   events.Payload
}

// Start subscribes to audited events and records them until ctx is done.
// Subscriptions are in place when Start returns.
func (s *Service) Start(ctx context.Context) {
	merged := make(chan received, 32)

	for eventType := range actions {
		sub := s.bus.Subscribe(eventType)
		s.wg.Add(1)
		go func(eventType events.EventType, sub events.Subscriber) {
			defer s.wg.Done()
			defer s.bus.Unsubscribe(eventType, sub)
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-sub:
					if !ok {
						return
					}
					select {
					case merged <- received{eventType, payload}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(eventType, sub)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("audit service stopping")
				return
			case r := <-merged:
				// Remote events are audited by the instance that produced them.
				if r.payload.IsRemote() {
					continue
				}
				s.logAuditEntry(ctx, actionFor(r.eventType, r.payload), r.payload)
			}
		}
	}()

	s.logger.Info().Int("event_types", len(actions)).Msg("audit service started")
}

// Wait blocks until the goroutines started by Start have exited.
func (s *Service) Wait() {
	s.wg.Wait()
}

func actionFor(eventType events.EventType, payload events.Payload) models.AuditAction {
	if eventType == events.EventHolidaysChanged {
		switch payload.String("change") {
		case "deleted", "cleared":
			return models.AuditActionHolidayDelete
		case "imported":
			return models.AuditActionHolidayImport
		}
	}
	return actions[eventType]
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, action models.AuditAction, payload events.Payload) {
	entry := &models.AuditLog{
		Action:       action,
		Username:     payload.String("username"),
		ResourceType: payload.String("resource_type"),
		ResourceID:   payload.String("resource_id"),
		IPAddress:    payload.String("ip_address"),
		UserAgent:    payload.String("user_agent"),
		Details:      make(map[string]any),
	}
	if userID := payload.String("user_id"); userID != "" {
		entry.UserID = &userID
	}

	for k, v := range payload {
		switch k {
		case "user_id", "username", "resource_type", "resource_id", "ip_address", "user_agent", events.RemoteKey:
		default:
			entry.Details[k] = v
		}
	}

	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(action)).
			Msg("failed to log audit entry")
	}
}

// Log records an audit entry directly (for non-event-bus actions).
func (s *Service) Log(ctx context.Context, entry *models.AuditLog) error {
	now := time.Now()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("action", string(entry.Action)).
		Str("id", entry.ID).
		Msg("audit entry logged")
	return nil
}

// QueryFilters defines filters for querying audit logs.
type QueryFilters struct {
	UserID       *string
	Action       *models.AuditAction
	ResourceType *string
	ResourceID   *string
	StartTime    *time.Time
	EndTime      *time.Time
	Limit        int
	Offset       int
}

// Query retrieves audit logs with filters, newest first, plus the total count.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.ResourceType != nil {
		query = query.Where("resource_type = ?", *filters.ResourceType)
	}
	if filters.ResourceID != nil {
		query = query.Where("resource_id = ?", *filters.ResourceID)
	}
	if filters.StartTime != nil {
		query = query.Where("timestamp >= ?", *filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("timestamp <= ?", *filters.EndTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query = query.Limit(limit)
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("timestamp DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

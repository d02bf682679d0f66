/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/apperr"
	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/models"
	"github.com/friendsincode/worktime/internal/telemetry"
)

// EventTest is sent by TestTarget.
const EventTest = "test"

// deliverable lists the events forwarded to webhook targets.
var deliverable = []events.EventType{events.EventTaskEstimated, events.EventTaskScheduled}

// maxResponseBytes caps how much of a response body is kept in the delivery log.
const maxResponseBytes = 2048

// WebhookPayload is the payload sent to webhook endpoints.
type WebhookPayload struct {
	Event     string       `json:"event"`
	Timestamp time.Time    `json:"timestamp"`
	Task      *TaskPayload `json:"task,omitempty"`
}

// TaskPayload represents a task in the webhook payload.
type TaskPayload struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Status        models.TaskStatus `json:"status"`
	AssignedToID  string            `json:"assigned_to_id,omitempty"`
	TimeEstimate  *float64          `json:"time_estimate,omitempty"`
	StartDateTime *time.Time        `json:"start_date_time,omitempty"`
	EndDateTime   *time.Time        `json:"end_date_time,omitempty"`
}

// Service handles webhook delivery.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
	client *http.Client
	wg     sync.WaitGroup
}

// NewService creates a new webhook service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "webhooks").Logger(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Start subscribes to task events and delivers them until ctx is done.
// Subscriptions are in place when Start returns.
func (s *Service) Start(ctx context.Context) {
	estimated := s.bus.Subscribe(events.EventTaskEstimated)
	scheduled := s.bus.Subscribe(events.EventTaskScheduled)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.bus.Unsubscribe(events.EventTaskEstimated, estimated)
			s.bus.Unsubscribe(events.EventTaskScheduled, scheduled)
		}()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("webhook service stopping")
				return
			case payload := <-estimated:
				s.handleTaskEvent(ctx, events.EventTaskEstimated, payload)
			case payload := <-scheduled:
				s.handleTaskEvent(ctx, events.EventTaskScheduled, payload)
			}
		}
	}()

	s.logger.Info().Int("event_types", len(deliverable)).Msg("webhook service started")
}

// Wait blocks until the event loop and in-flight deliveries have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) handleTaskEvent(ctx context.Context, eventType events.EventType, payload events.Payload) {
	// The publishing instance delivers; relayed copies are dropped.
	if payload == nil || payload.IsRemote() {
		return
	}
	taskID := payload.String("resource_id")
	if taskID == "" {
		return
	}

	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", taskID).Error; err != nil {
		s.logger.Warn().Err(err).Str("task", taskID).Msg("task for webhook not found")
		return
	}

	s.fireWebhooks(ctx, string(eventType), &task)
}

// fireWebhooks sends webhooks for a given event to every interested target.
func (s *Service) fireWebhooks(ctx context.Context, eventType string, task *models.Task) {
	var targets []models.WebhookTarget
	if err := s.db.WithContext(ctx).Where("active = ?", true).Find(&targets).Error; err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch webhook targets")
		return
	}

	body, err := json.Marshal(WebhookPayload{
		Event:     eventType,
		Timestamp: time.Now().UTC(),
		Task:      taskToPayload(task),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal webhook payload")
		return
	}

	// In-flight deliveries finish even when the service is stopping.
	deliverCtx := context.WithoutCancel(ctx)
	for _, target := range targets {
		if !target.Wants(eventType) {
			continue
		}
		s.wg.Add(1)
		go func(target models.WebhookTarget) {
			defer s.wg.Done()
			_ = s.deliver(deliverCtx, target, eventType, body)
		}(target)
	}
}

// deliver posts body to the target and records the attempt.
func (s *Service) deliver(ctx context.Context, target models.WebhookTarget, eventType string, body []byte) error {
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		s.logDelivery(target, eventType, body, 0, "", err.Error(), time.Since(started))
		telemetry.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Worktime-Webhook/1.0")
	req.Header.Set("X-Worktime-Event", eventType)
	req.Header.Set("X-Worktime-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	if target.Secret != "" {
		req.Header.Set("X-Worktime-Signature", Sign(body, target.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error().Err(err).Str("webhook", target.ID).Str("url", target.URL).Msg("webhook delivery failed")
		s.logDelivery(target, eventType, body, 0, "", err.Error(), time.Since(started))
		telemetry.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	s.logDelivery(target, eventType, body, resp.StatusCode, string(respBody), "", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn().Str("webhook", target.ID).Str("event", eventType).Int("status", resp.StatusCode).Msg("webhook returned error status")
		telemetry.WebhookDeliveriesTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	s.logger.Debug().Str("webhook", target.ID).Str("event", eventType).Int("status", resp.StatusCode).Msg("webhook delivered")
	telemetry.WebhookDeliveriesTotal.WithLabelValues("success").Inc()
	return nil
}

// Sign returns the HMAC-SHA256 signature header value for payload.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// Verify checks a signature produced by Sign.
func Verify(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}

func taskToPayload(task *models.Task) *TaskPayload {
	if task == nil {
		return nil
	}
	p := &TaskPayload{
		ID:            task.ID,
		Title:         task.Title,
		Status:        task.Status,
		TimeEstimate:  task.TimeEstimate,
		StartDateTime: task.StartDateTime,
		EndDateTime:   task.EndDateTime,
	}
	if task.AssignedToID != nil {
		p.AssignedToID = *task.AssignedToID
	}
	return p
}

func (s *Service) logDelivery(target models.WebhookTarget, eventType string, body []byte, statusCode int, response, errorMsg string, elapsed time.Duration) {
	entry := &models.WebhookLog{
		ID:         uuid.NewString(),
		TargetID:   target.ID,
		Event:      eventType,
		Payload:    string(body),
		StatusCode: statusCode,
		Response:   response,
		Error:      errorMsg,
		Duration:   int(elapsed.Milliseconds()),
	}
	if err := s.db.Create(entry).Error; err != nil {
		s.logger.Error().Err(err).Msg("failed to log webhook delivery")
	}
}

// CreateTarget registers a new target. The returned target carries the
// generated signing secret, which is not serialised afterwards.
func (s *Service) CreateTarget(ctx context.Context, createdBy, rawURL string, eventList []string) (*models.WebhookTarget, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	known := map[string]bool{EventTest: true}
	for _, e := range deliverable {
		known[string(e)] = true
	}
	for _, e := range eventList {
		if !known[strings.TrimSpace(e)] {
			return nil, apperr.Validation("unknown webhook event %q", e)
		}
	}

	target := models.NewWebhookTarget(createdBy, rawURL, strings.Join(eventList, ","))
	if err := s.db.WithContext(ctx).Create(target).Error; err != nil {
		return nil, fmt.Errorf("create webhook target: %w", err)
	}
	s.logger.Info().Str("webhook", target.ID).Str("url", target.URL).Msg("webhook target created")
	return target, nil
}

// ListTargets returns every target, newest first.
func (s *Service) ListTargets(ctx context.Context) ([]models.WebhookTarget, error) {
	var targets []models.WebhookTarget
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&targets).Error
	return targets, err
}

// GetTarget loads a target by id.
func (s *Service) GetTarget(ctx context.Context, id string) (*models.WebhookTarget, error) {
	var target models.WebhookTarget
	err := s.db.WithContext(ctx).First(&target, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("webhook")
	}
	if err != nil {
		return nil, err
	}
	return &target, nil
}

// DeleteTarget removes a target and its delivery log.
func (s *Service) DeleteTarget(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.WebhookTarget{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound("webhook")
		}
		return tx.Delete(&models.WebhookLog{}, "target_id = ?", id).Error
	})
}

// Logs returns the most recent delivery attempts for a target.
func (s *Service) Logs(ctx context.Context, targetID string, limit int) ([]models.WebhookLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var logs []models.WebhookLog
	err := s.db.WithContext(ctx).Where("target_id = ?", targetID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// TestTarget sends a sample payload to a target synchronously.
func (s *Service) TestTarget(ctx context.Context, id string) error {
	target, err := s.GetTarget(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	estimate := 1.5
	end := now.Add(12 * time.Hour)
	body, err := json.Marshal(WebhookPayload{
		Event:     EventTest,
		Timestamp: now,
		Task: &TaskPayload{
			ID:            "test-task-id",
			Title:         "Test Task",
			Status:        models.TaskStatusScheduled,
			TimeEstimate:  &estimate,
			StartDateTime: &now,
			EndDateTime:   &end,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return s.deliver(ctx, *target, EventTest, body)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return apperr.Validation("invalid webhook url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apperr.Validation("webhook url must use http or https")
	}
	return nil
}

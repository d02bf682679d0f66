/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package tasks implements the task workflow: creation by project managers,
// estimation by the assigned engineer, and scheduling of the end date.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/apperr"
	"github.com/friendsincode/worktime/internal/auth"
	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/models"
	"github.com/friendsincode/worktime/internal/worktime"
)

// CalendarSource supplies the working-time configuration for a computation.
type CalendarSource interface {
	Snapshot(ctx context.Context) (*worktime.Window, *worktime.Calendar, error)
}

// Service implements the task workflow.
type Service struct {
	db       *gorm.DB
	bus      events.Publisher
	calendar CalendarSource
	logger   zerolog.Logger
}

// NewService creates the task service.
func NewService(db *gorm.DB, bus events.Publisher, calendar CalendarSource, logger zerolog.Logger) *Service {
	return &Service{
		db:       db,
		bus:      bus,
		calendar: calendar,
		logger:   logger.With().Str("component", "tasks").Logger(),
	}
}

// CreateRequest describes a new task.
type CreateRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	AssignedToID *string `json:"assigned_to_id"`
}

// UpdateRequest changes task fields. Nil fields are left alone; an empty
// AssignedToID unassigns the task.
type UpdateRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	AssignedToID *string `json:"assigned_to_id"`
}

// Create stores a task. Only project managers create tasks.
func (s *Service) Create(ctx context.Context, actor auth.Actor, req CreateRequest) (*models.Task, error) {
	if !actor.IsManager() {
		return nil, apperr.Forbidden("only project managers create tasks")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}

	task := &models.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		CreatedByID: actor.UserID,
		Status:      models.TaskStatusCreated,
	}
	if req.AssignedToID != nil && *req.AssignedToID != "" {
		if err := s.checkAssignee(ctx, *req.AssignedToID); err != nil {
			return nil, err
		}
		assignee := *req.AssignedToID
		task.AssignedToID = &assignee
		task.Status = models.TaskStatusAssigned
	}

	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.publish(events.EventTaskCreated, actor, task, nil)
	s.logger.Info().Str("task", task.ID).Str("status", string(task.Status)).Msg("task created")
	return s.load(ctx, task.ID)
}

// Get returns a task visible to the actor. Engineers only see tasks assigned to them.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (*models.Task, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsManager() && !task.IsAssignedTo(actor.UserID) {
		return nil, apperr.Forbidden("task is not assigned to you")
	}
	return task, nil
}

// List returns the tasks created by a project manager, or assigned to an engineer.
func (s *Service) List(ctx context.Context, actor auth.Actor) ([]models.Task, error) {
	query := s.db.WithContext(ctx).Preload("AssignedTo").Order("created_at DESC")
	switch {
	case actor.IsManager():
		query = query.Where("created_by_id = ?", actor.UserID)
	case actor.IsEngineer():
		query = query.Where("assigned_to_id = ?", actor.UserID)
	default:
		return nil, apperr.Forbidden("unknown role")
	}

	var tasks []models.Task
	if err := query.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// SubmitEstimate records the assigned engineer's estimate in working days.
// Negative estimates are stored as given and zero schedules the task to end
// when it starts. A new estimate clears any previously computed schedule.
func (s *Service) SubmitEstimate(ctx context.Context, actor auth.Actor, id string, estimate float64) (*models.Task, error) {
	if math.IsNaN(estimate) || math.IsInf(estimate, 0) {
		return nil, apperr.Validation("estimate must be a finite number")
	}
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.IsAssignedTo(actor.UserID) {
		return nil, apperr.Forbidden("only the assigned engineer can estimate this task")
	}

	err = s.db.WithContext(ctx).Model(task).Updates(map[string]any{
		"time_estimate":   estimate,
		"start_date_time": nil,
		"end_date_time":   nil,
		"status":          models.TaskStatusEstimated,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("store estimate: %w", err)
	}

	task, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(events.EventTaskEstimated, actor, task, events.Payload{"time_estimate": estimate})
	s.logger.Debug().Str("task", id).Float64("estimate", estimate).Msg("estimate submitted")
	return task, nil
}

// CalculateEndDate schedules the task from start using its estimate and the
// active working-time configuration. Only the creating project manager may do this.
func (s *Service) CalculateEndDate(ctx context.Context, actor auth.Actor, id string, start time.Time) (*models.Task, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsManager() || task.CreatedByID != actor.UserID {
		return nil, apperr.Forbidden("only the project manager who created the task can schedule it")
	}
	if task.TimeEstimate == nil {
		return nil, apperr.Validation("task has no estimate")
	}
	if start.IsZero() {
		return nil, apperr.Validation("start date time is required")
	}

	window, cal, err := s.calendar.Snapshot(ctx)
	if err != nil {
		observeOutcome(err)
		return nil, err
	}

	res, err := s.compute(ctx, task.ID, start, *task.TimeEstimate, window, cal.IsHoliday)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(task).Updates(map[string]any{
		"start_date_time": res.Start,
		"end_date_time":   res.End,
		"status":          models.TaskStatusScheduled,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("store schedule: %w", err)
	}

	task, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(events.EventTaskScheduled, actor, task, events.Payload{
		"start": res.Start.Format(time.RFC3339),
		"end":   res.End.Format(time.RFC3339),
	})
	return task, nil
}

// Update changes a task's title, description or assignee. Only the creator may update.
// Reassigning clears the estimate and schedule.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id string, req UpdateRequest) (*models.Task, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.CreatedByID != actor.UserID {
		return nil, apperr.Forbidden("only the task creator can update it")
	}

	updates := map[string]any{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, apperr.Validation("title must not be empty")
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.AssignedToID != nil {
		current := ""
		if task.AssignedToID != nil {
			current = *task.AssignedToID
		}
		if next := *req.AssignedToID; next != current {
			if next == "" {
				updates["assigned_to_id"] = nil
				updates["status"] = models.TaskStatusCreated
			} else {
				if err := s.checkAssignee(ctx, next); err != nil {
					return nil, err
				}
				updates["assigned_to_id"] = next
				updates["status"] = models.TaskStatusAssigned
			}
			updates["time_estimate"] = nil
			updates["start_date_time"] = nil
			updates["end_date_time"] = nil
		}
	}
	if len(updates) == 0 {
		return task, nil
	}

	if err := s.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	task, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(events.EventTaskUpdated, actor, task, nil)
	return task, nil
}

// Delete removes a task. Only the creator may delete.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id string) error {
	task, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if task.CreatedByID != actor.UserID {
		return apperr.Forbidden("only the task creator can delete it")
	}
	if err := s.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.publish(events.EventTaskDeleted, actor, task, nil)
	return nil
}

func (s *Service) load(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).Preload("AssignedTo").Preload("CreatedBy").First(&task, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("task")
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *Service) checkAssignee(ctx context.Context, userID string) error {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("assignee")
	}
	if err != nil {
		return err
	}
	if user.Role != models.RoleEngineer {
		return apperr.Validation("tasks can only be assigned to engineers")
	}
	return nil
}

func (s *Service) publish(eventType events.EventType, actor auth.Actor, task *models.Task, extra events.Payload) {
	payload := actor.Payload(extra)
	payload["resource_type"] = "task"
	payload["resource_id"] = task.ID
	payload["title"] = task.Title
	payload["status"] = string(task.Status)
	payload["created_by_id"] = task.CreatedByID
	if task.AssignedToID != nil {
		payload["assigned_to_id"] = *task.AssignedToID
	}
	s.bus.Publish(eventType, payload)
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// TaskStatus tracks where a task is in the estimate/schedule workflow.
type TaskStatus string

const (
	TaskStatusCreated   TaskStatus = "CREATED"
	TaskStatusAssigned  TaskStatus = "ASSIGNED"
	TaskStatusEstimated TaskStatus = "ESTIMATED"
	TaskStatusScheduled TaskStatus = "SCHEDULED"
)

// Task is a unit of work created by a project manager and estimated by an engineer.
type Task struct {
	ID          string `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string `gorm:"type:varchar(255);not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	AssignedToID *string `gorm:"type:uuid;index" json:"assigned_to_id,omitempty"`
	AssignedTo   *User   `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
	CreatedByID  string  `gorm:"type:uuid;index;not null" json:"created_by_id"`
	CreatedBy    *User   `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`

	// TimeEstimate is a signed number of working days.
	TimeEstimate  *float64   `json:"time_estimate,omitempty"`
	StartDateTime *time.Time `json:"start_date_time,omitempty"`
	EndDateTime   *time.Time `json:"end_date_time,omitempty"`

	Status    TaskStatus `gorm:"type:varchar(50);index;not null" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsAssignedTo reports whether userID is the task's assignee.
func (t *Task) IsAssignedTo(userID string) bool {
	return t.AssignedToID != nil && *t.AssignedToID == userID
}

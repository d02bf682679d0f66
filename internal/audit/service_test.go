/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

func waitForCount(t *testing.T, db *gorm.DB, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var count int64
	for time.Now().Before(deadline) {
		db.Model(&models.AuditLog{}).Count(&count)
		if count >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d audit rows, got %d", want, count)
}

func TestServiceRecordsEvents(t *testing.T) {
	db := setupTestDB(t)
	bus := events.NewBus()
	svc := NewService(db, bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	defer func() {
		cancel()
		svc.Wait()
	}()

	bus.Publish(events.EventTaskScheduled, events.Payload{
		"user_id":       "u1",
		"username":      "pm",
		"resource_type": "task",
		"resource_id":   "t1",
		"end":           "2024-01-17T14:00:00Z",
	})
	bus.Publish(events.EventHolidaysChanged, events.Payload{"change": "cleared", "resource_type": "one_time_holiday"})
	// Remote events are ignored here.
	bus.Publish(events.EventAuthLogin, events.Payload{"user_id": "u2", events.RemoteKey: true})

	waitForCount(t, db, 2)

	logs, total, err := svc.Query(context.Background(), QueryFilters{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 rows, got %d", total)
	}

	action := models.AuditActionTaskSchedule
	logs, _, err = svc.Query(context.Background(), QueryFilters{Action: &action})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 schedule row, got %d", len(logs))
	}
	got := logs[0]
	if got.UserID == nil || *got.UserID != "u1" || got.ResourceID != "t1" || got.Username != "pm" {
		t.Fatalf("unexpected audit row %+v", got)
	}
	if got.Details["end"] != "2024-01-17T14:00:00Z" {
		t.Fatalf("expected end in details, got %v", got.Details)
	}

	deleteAction := models.AuditActionHolidayDelete
	_, deletes, _ := svc.Query(context.Background(), QueryFilters{Action: &deleteAction})
	if deletes != 1 {
		t.Fatalf("expected cleared holidays to be audited as delete, got %d", deletes)
	}
}

func TestLogFillsDefaults(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, events.NewBus(), zerolog.Nop())

	entry := &models.AuditLog{Action: models.AuditActionAPIKeyCreate}
	if err := svc.Log(context.Background(), entry); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if entry.ID == "" || entry.Timestamp.IsZero() {
		t.Fatalf("expected id and timestamp to be set: %+v", entry)
	}
}

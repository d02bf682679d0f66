/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package accounts

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/apperr"
	"github.com/friendsincode/worktime/internal/auth"
	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/models"
)

var testSecret = []byte("test-signing-key")

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.User{}, &models.UserSession{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

func newService(t *testing.T) (*Service, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	return NewService(setupTestDB(t), bus, nil, testSecret, time.Hour, zerolog.Nop()), bus
}

func TestRegister(t *testing.T) {
	svc, bus := newService(t)
	ctx := context.Background()
	registered := bus.Subscribe(events.EventUserRegistered)

	user, err := svc.Register(ctx, auth.Actor{IPAddress: "10.0.0.1"}, NewUser{
		Username: "alice",
		Password: "secret1",
		Role:     models.RoleProjectManager,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != models.RoleEngineer {
		t.Fatalf("expected registered users to be engineers, got %s", user.Role)
	}
	if user.Password == "secret1" || !auth.CheckPassword(user.Password, "secret1") {
		t.Fatal("expected bcrypt hash to be stored")
	}

	payload := <-registered
	if payload.String("user_id") != user.ID || payload.String("ip_address") != "10.0.0.1" {
		t.Fatalf("unexpected event payload %v", payload)
	}

	tests := []struct {
		name string
		req  NewUser
		kind error
	}{
		{"duplicate", NewUser{Username: "alice", Password: "secret1"}, apperr.ErrDuplicate},
		{"short password", NewUser{Username: "bob", Password: "12345"}, apperr.ErrValidation},
		{"blank username", NewUser{Username: "  ", Password: "secret1"}, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, auth.Actor{}, tt.req); !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
		})
	}
}

func TestCreateUserRequiresValidRole(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, auth.Actor{}, NewUser{Username: "x", Password: "secret1", Role: "ADMIN"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	user, err := svc.CreateUser(ctx, auth.Actor{}, NewUser{Username: "boss", Password: "secret1", Role: models.RoleProjectManager})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if !user.IsManager() {
		t.Fatalf("expected manager, got %s", user.Role)
	}
}

func TestCreateMapsUniqueViolationToDuplicate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	// Insert the same username between the existence check and the insert.
	var armed atomic.Bool
	armed.Store(true)
	err := svc.db.Callback().Query().After("gorm:query").Register("test:concurrent_signup", func(tx *gorm.DB) {
		if tx.Statement.Table == "users" && armed.CompareAndSwap(true, false) {
			rival := &models.User{ID: "rival", Username: "carol", Password: "x", Role: models.RoleEngineer}
			if err := svc.db.Session(&gorm.Session{NewDB: true}).Create(rival).Error; err != nil {
				t.Errorf("insert rival: %v", err)
			}
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, err = svc.Register(ctx, auth.Actor{}, NewUser{Username: "carol", Password: "secret1"})
	if !errors.Is(err, apperr.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	var count int64
	svc.db.Model(&models.User{}).Where("username = ?", "carol").Count(&count)
	if count != 1 {
		t.Fatalf("expected one carol, got %d", count)
	}
}

func TestLoginRotatesSessions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, auth.Actor{}, NewUser{Username: "alice", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(ctx, auth.Actor{}, "alice", "wrong"); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Login(ctx, auth.Actor{}, "nobody", "secret1"); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}

	first, err := svc.Login(ctx, auth.Actor{}, "alice", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	second, err := svc.Login(ctx, auth.Actor{}, "alice", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	firstClaims, err := auth.Parse(testSecret, first.Token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	secondClaims, err := auth.Parse(testSecret, second.Token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if secondClaims.UserID != user.ID || !secondClaims.HasRole(string(models.RoleEngineer)) {
		t.Fatalf("unexpected claims %+v", secondClaims)
	}

	now := time.Now()
	if err := auth.CheckSession(svc.db, firstClaims.SessionID, now); !errors.Is(err, auth.ErrSessionInactive) {
		t.Fatalf("expected first session to be closed by the second login, got %v", err)
	}
	if err := auth.CheckSession(svc.db, secondClaims.SessionID, now); err != nil {
		t.Fatalf("expected second session to be active: %v", err)
	}

	actor := auth.ActorFromClaims(secondClaims)
	if err := svc.Logout(ctx, actor); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := auth.CheckSession(svc.db, secondClaims.SessionID, now); !errors.Is(err, auth.ErrSessionInactive) {
		t.Fatalf("expected session to be closed after logout, got %v", err)
	}

	me, err := svc.Me(ctx, actor)
	if err != nil || me.Username != "alice" {
		t.Fatalf("Me: %v %+v", err, me)
	}
}

func TestListEngineers(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, name := range []string{"zoe", "adam"} {
		if _, err := svc.Register(ctx, auth.Actor{}, NewUser{Username: name, Password: "secret1"}); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	if _, err := svc.CreateUser(ctx, auth.Actor{}, NewUser{Username: "pm", Password: "secret1", Role: models.RoleProjectManager}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	engineers, err := svc.ListEngineers(ctx)
	if err != nil {
		t.Fatalf("ListEngineers: %v", err)
	}
	if len(engineers) != 2 || engineers[0].Username != "adam" {
		t.Fatalf("unexpected engineers %+v", engineers)
	}
}

func TestReapSessions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	now := time.Now()

	sessions := []models.UserSession{
		{ID: "expired", UserID: "u1", Active: true, ExpiresAt: now.Add(-time.Minute)},
		{ID: "old", UserID: "u2", Active: true, ExpiresAt: now.Add(time.Hour), CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "fresh", UserID: "u3", Active: true, ExpiresAt: now.Add(time.Hour)},
	}
	for i := range sessions {
		if err := svc.db.Create(&sessions[i]).Error; err != nil {
			t.Fatalf("create session: %v", err)
		}
	}

	reaped, err := svc.ReapSessions(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("ReapSessions: %v", err)
	}
	if reaped != 2 {
		t.Fatalf("expected 2 sessions reaped, got %d", reaped)
	}

	var fresh models.UserSession
	if err := svc.db.First(&fresh, "id = ?", "fresh").Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	if !fresh.Active {
		t.Fatal("expected fresh session to stay active")
	}
}

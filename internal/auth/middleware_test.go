package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

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
	if err := db.AutoMigrate(&models.User{}, &models.UserSession{}, &models.APIKey{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	user := models.User{ID: "11111111-1111-1111-1111-111111111111", Username: "alice", Password: "x", Role: models.RoleEngineer}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func seedSession(t *testing.T, db *gorm.DB, userID string, active bool) models.UserSession {
	t.Helper()
	session := models.UserSession{ID: "22222222-2222-2222-2222-222222222222", UserID: userID, Active: true, ExpiresAt: time.Now().Add(time.Hour)}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}
	if !active {
		db.Model(&session).Update("active", false)
	}
	return session
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || claims == nil {
			t.Fatalf("expected claims in context")
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_AcceptsBearerTokenWithActiveSession(t *testing.T) {
	db := setupTestDB(t)
	secret := []byte("test-secret")
	user := seedUser(t, db)
	session := seedSession(t, db, user.ID, true)

	token, err := Issue(secret, Claims{UserID: user.ID, Roles: []string{string(user.Role)}, SessionID: session.ID}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	Middleware(db, secret)(okHandler(t)).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestMiddleware_RejectsLoggedOutSession(t *testing.T) {
	db := setupTestDB(t)
	secret := []byte("test-secret")
	user := seedUser(t, db)
	session := seedSession(t, db, user.ID, false)

	token, err := Issue(secret, Claims{UserID: user.ID, SessionID: session.ID}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	Middleware(db, secret)(okHandler(t)).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for inactive session, got %d", rr.Code)
	}
}

func TestMiddleware_RejectsQueryToken(t *testing.T) {
	db := setupTestDB(t)
	secret := []byte("test-secret")
	token, err := Issue(secret, Claims{UserID: "u1", SessionID: "s1"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks?token="+token, nil)
	rr := httptest.NewRecorder()

	Middleware(db, secret)(okHandler(t)).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for query token auth, got %d", rr.Code)
	}
}

func TestMiddleware_APIKeyLifecycle(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db)

	plaintext, key, err := GenerateAPIKey(user.ID, "ci", 24*time.Hour)
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if err := db.Create(key).Error; err != nil {
		t.Fatalf("store key: %v", err)
	}

	serve := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
		req.Header.Set("X-API-Key", plaintext)
		rr := httptest.NewRecorder()
		Middleware(db, []byte("unused"))(okHandler(t)).ServeHTTP(rr, req)
		return rr.Code
	}

	if code := serve(); code != http.StatusOK {
		t.Fatalf("expected 200 with valid api key, got %d", code)
	}

	keys, err := ListAPIKeys(db, user.ID)
	if err != nil || len(keys) != 1 {
		t.Fatalf("ListAPIKeys: %v (%d keys)", err, len(keys))
	}
	if keys[0].LastUsedAt == nil {
		t.Fatal("expected last_used_at to be recorded")
	}

	if err := RevokeAPIKey(db, key.ID, user.ID); err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}
	if err := RevokeAPIKey(db, key.ID, user.ID); err != ErrAPIKeyNotFound {
		t.Fatalf("expected second revoke to report not found, got %v", err)
	}
	if code := serve(); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with revoked api key, got %d", code)
	}
}

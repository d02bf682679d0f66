package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/friendsincode/worktime/internal/models"
)

func TestActorFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if _, ok := ActorFromRequest(req); ok {
		t.Fatal("expected no actor without claims")
	}

	claims := &Claims{UserID: "u1", Username: "alice", Roles: []string{"viewer", string(models.RoleEngineer)}}
	req = req.WithContext(WithClaims(req.Context(), claims))
	req.Header.Set("User-Agent", "test-agent")

	actor, ok := ActorFromRequest(req)
	if !ok {
		t.Fatal("expected actor")
	}
	if actor.Role != models.RoleEngineer || !actor.IsEngineer() || actor.IsManager() {
		t.Fatalf("unexpected role %q", actor.Role)
	}
	payload := actor.Payload(map[string]any{"resource_id": "t1"})
	if payload.String("user_agent") != "test-agent" || payload.String("resource_id") != "t1" || payload.String("user_id") != "u1" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

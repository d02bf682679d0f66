/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"net/http"

	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/models"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID    string
	Username  string
	Role      models.RoleName
	IPAddress string
	UserAgent string
}

// IsManager reports whether the actor holds the project manager role.
func (a Actor) IsManager() bool {
	return a.Role == models.RoleProjectManager
}

// IsEngineer reports whether the actor holds the engineer role.
func (a Actor) IsEngineer() bool {
	return a.Role == models.RoleEngineer
}

// Payload returns the audit fields identifying the actor, merged with extra.
func (a Actor) Payload(extra events.Payload) events.Payload {
	payload := events.Payload{
		"user_id":    a.UserID,
		"username":   a.Username,
		"ip_address": a.IPAddress,
		"user_agent": a.UserAgent,
	}
	for k, v := range extra {
		payload[k] = v
	}
	return payload
}

// ActorFromClaims builds an Actor from token claims. The first known role wins.
func ActorFromClaims(claims *Claims) Actor {
	if claims == nil {
		return Actor{}
	}
	actor := Actor{UserID: claims.UserID, Username: claims.Username}
	for _, r := range claims.Roles {
		if role := models.RoleName(r); role.Valid() {
			actor.Role = role
			break
		}
	}
	return actor
}

// ActorFromRequest returns the Actor for an authenticated request.
func ActorFromRequest(r *http.Request) (Actor, bool) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		return Actor{}, false
	}
	actor := ActorFromClaims(claims)
	actor.IPAddress = r.RemoteAddr
	actor.UserAgent = r.UserAgent()
	return actor, true
}

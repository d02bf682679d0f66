/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/worktime/internal/auth"
	"github.com/friendsincode/worktime/internal/events"
)

func (a *API) handleAPIKeyList(w http.ResponseWriter, r *http.Request) {
	keys, err := auth.ListAPIKeys(a.db.WithContext(r.Context()), actor(r).UserID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"api_keys": keys})
}

// handleAPIKeyCreate returns the plaintext key once; only its hash is stored.
func (a *API) handleAPIKeyCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		ExpiresInDays int    `json:"expires_in_days"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	caller := actor(r)
	plaintext, key, err := auth.GenerateAPIKey(caller.UserID, req.Name, time.Duration(req.ExpiresInDays)*24*time.Hour)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if err := a.db.WithContext(r.Context()).Create(key).Error; err != nil {
		a.writeServiceError(w, err)
		return
	}

	a.bus.Publish(events.EventAPIKeyCreate, caller.Payload(events.Payload{
		"resource_type": "api_key",
		"resource_id":   key.ID,
		"name":          key.Name,
		"key_prefix":    key.KeyPrefix,
	}))

	writeJSON(w, http.StatusCreated, map[string]any{
		"key":     plaintext,
		"api_key": key,
	})
}

func (a *API) handleAPIKeyRevoke(w http.ResponseWriter, r *http.Request) {
	caller := actor(r)
	keyID := chi.URLParam(r, "keyID")

	if err := auth.RevokeAPIKey(a.db.WithContext(r.Context()), keyID, caller.UserID); err != nil {
		if errors.Is(err, auth.ErrAPIKeyNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		a.writeServiceError(w, err)
		return
	}

	a.bus.Publish(events.EventAPIKeyRevoke, caller.Payload(events.Payload{
		"resource_type": "api_key",
		"resource_id":   keyID,
	}))
	w.WriteHeader(http.StatusNoContent)
}

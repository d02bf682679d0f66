/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (a *API) webhooksAvailable(w http.ResponseWriter) bool {
	if a.webhookSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "webhooks_not_available")
		return false
	}
	return true
}

func (a *API) handleWebhookList(w http.ResponseWriter, r *http.Request) {
	if !a.webhooksAvailable(w) {
		return
	}
	targets, err := a.webhookSvc.ListTargets(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"webhooks": targets})
}

// handleWebhookCreate registers a target. The signing secret is only
// returned here.
func (a *API) handleWebhookCreate(w http.ResponseWriter, r *http.Request) {
	if !a.webhooksAvailable(w) {
		return
	}
	var req struct {
		URL    string   `json:"url"`
		Events []string `json:"events"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	target, err := a.webhookSvc.CreateTarget(r.Context(), actor(r).UserID, req.URL, req.Events)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"webhook": target,
		"secret":  target.Secret,
	})
}

func (a *API) handleWebhookGet(w http.ResponseWriter, r *http.Request) {
	if !a.webhooksAvailable(w) {
		return
	}
	target, err := a.webhookSvc.GetTarget(r.Context(), chi.URLParam(r, "webhookID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

func (a *API) handleWebhookDelete(w http.ResponseWriter, r *http.Request) {
	if !a.webhooksAvailable(w) {
		return
	}
	if err := a.webhookSvc.DeleteTarget(r.Context(), chi.URLParam(r, "webhookID")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleWebhookTest(w http.ResponseWriter, r *http.Request) {
	if !a.webhooksAvailable(w) {
		return
	}
	if err := a.webhookSvc.TestTarget(r.Context(), chi.URLParam(r, "webhookID")); err != nil {
		status, _ := errorStatus(err)
		if status == http.StatusInternalServerError {
			// Delivery failures are reported to the caller, not logged as server errors.
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "delivery_failed", "message": err.Error()})
			return
		}
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleWebhookLogs(w http.ResponseWriter, r *http.Request) {
	if !a.webhooksAvailable(w) {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := a.webhookSvc.Logs(r.Context(), chi.URLParam(r, "webhookID"), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/friendsincode/worktime/internal/tasks"
	"github.com/friendsincode/worktime/internal/worktime"
)

// handleCompute runs a stateless computation against the active configuration.
func (a *API) handleCompute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start        string   `json:"start"`
		EstimateDays *float64 `json:"estimate_days"`
		WorkStart    string   `json:"work_start"`
		WorkEnd      string   `json:"work_end"`
		Holidays     []string `json:"holidays"`
		Recurring    []string `json:"recurring"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EstimateDays == nil {
		writeError(w, http.StatusBadRequest, "estimate_days_required")
		return
	}
	start, err := worktime.ParseInstant(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start")
		return
	}

	res, err := a.tasks.Compute(r.Context(), tasks.ComputeRequest{
		Start:        start,
		EstimateDays: *req.EstimateDays,
		WorkStart:    req.WorkStart,
		WorkEnd:      req.WorkEnd,
		Holidays:     req.Holidays,
		Recurring:    req.Recurring,
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/worktime/internal/tasks"
	"github.com/friendsincode/worktime/internal/worktime"
)

func (a *API) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var req tasks.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := a.tasks.Create(r.Context(), actor(r), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (a *API) handleTaskList(w http.ResponseWriter, r *http.Request) {
	list, err := a.tasks.List(r.Context(), actor(r))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": list})
}

func (a *API) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	task, err := a.tasks.Get(r.Context(), actor(r), chi.URLParam(r, "taskID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *API) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	var req tasks.UpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := a.tasks.Update(r.Context(), actor(r), chi.URLParam(r, "taskID"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *API) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.tasks.Delete(r.Context(), actor(r), chi.URLParam(r, "taskID")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleTaskEstimate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TimeEstimate *float64 `json:"time_estimate"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TimeEstimate == nil {
		writeError(w, http.StatusBadRequest, "time_estimate_required")
		return
	}

	task, err := a.tasks.SubmitEstimate(r.Context(), actor(r), chi.URLParam(r, "taskID"), *req.TimeEstimate)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *API) handleTaskCalculateEndDate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartDateTime string `json:"start_date_time"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	start, err := worktime.ParseInstant(req.StartDateTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_date_time")
		return
	}

	task, err := a.tasks.CalculateEndDate(r.Context(), actor(r), chi.URLParam(r, "taskID"), start)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (a *API) handleWorkingHoursGet(w http.ResponseWriter, r *http.Request) {
	row, err := a.settings.GetWorkingHours(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (a *API) handleWorkingHoursUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.StartTime == "" || req.EndTime == "" {
		writeError(w, http.StatusBadRequest, "start_time_and_end_time_required")
		return
	}

	row, err := a.settings.UpdateWorkingHours(r.Context(), actor(r), req.StartTime, req.EndTime)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (a *API) handleWorkingHoursHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := a.settings.WorkingHoursHistory(r.Context(), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"working_hours": rows})
}

func (a *API) handleRecurringList(w http.ResponseWriter, r *http.Request) {
	holidays, err := a.settings.ListRecurringHolidays(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recurring_holidays": holidays})
}

func (a *API) handleRecurringCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month       int    `json:"month"`
		Day         int    `json:"day"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	holiday, err := a.settings.AddRecurringHoliday(r.Context(), actor(r), req.Month, req.Day, req.Description)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, holiday)
}

func (a *API) handleRecurringGet(w http.ResponseWriter, r *http.Request) {
	holiday, err := a.settings.GetRecurringHoliday(r.Context(), chi.URLParam(r, "holidayID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, holiday)
}

func (a *API) handleRecurringDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.settings.DeleteRecurringHoliday(r.Context(), actor(r), chi.URLParam(r, "holidayID")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleOneTimeList(w http.ResponseWriter, r *http.Request) {
	holidays, err := a.settings.ListOneTimeHolidays(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"one_time_holidays": holidays})
}

func (a *API) handleOneTimeCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date        string `json:"date"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	holiday, err := a.settings.AddOneTimeHoliday(r.Context(), actor(r), req.Date, req.Description)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, holiday)
}

func (a *API) handleOneTimeGet(w http.ResponseWriter, r *http.Request) {
	holiday, err := a.settings.GetOneTimeHoliday(r.Context(), chi.URLParam(r, "holidayID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, holiday)
}

func (a *API) handleOneTimeDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.settings.DeleteOneTimeHoliday(r.Context(), actor(r), chi.URLParam(r, "holidayID")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleOneTimeDeleteAll(w http.ResponseWriter, r *http.Request) {
	removed, err := a.settings.DeleteAllOneTimeHolidays(r.Context(), actor(r))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": removed})
}

// handleHolidayImport accepts a YAML document body.
func (a *API) handleHolidayImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large")
		return
	}

	res, err := a.settings.ImportHolidays(r.Context(), actor(r), data)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/worktime/internal/logbuffer"
)

func (a *API) handleSystemLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_not_available")
		return
	}

	q := r.URL.Query()
	params := logbuffer.QueryParams{
		Level:      q.Get("level"),
		Component:  q.Get("component"),
		Search:     q.Get("search"),
		Limit:      500,
		Descending: q.Get("order") != "asc",
	}
	if since := q.Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			params.Since = t
		}
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			params.Limit = n
		}
	}

	entries := a.logBuffer.Query(params)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (a *API) handleLogStats(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_not_available")
		return
	}
	writeJSON(w, http.StatusOK, a.logBuffer.Stats())
}

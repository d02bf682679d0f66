/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/worktime/internal/audit"
	"github.com/friendsincode/worktime/internal/models"
)

// handleAuditList returns a paginated list of audit logs.
func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if a.auditSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "audit_not_available")
		return
	}

	filters := parseAuditFilters(r)
	logs, total, err := a.auditSvc.Query(r.Context(), filters)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to query audit logs")
		writeError(w, http.StatusInternalServerError, "query_failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"audit_logs": logs,
		"total":      total,
		"limit":      filters.Limit,
		"offset":     filters.Offset,
	})
}

// parseAuditFilters extracts query filters from the request.
func parseAuditFilters(r *http.Request) audit.QueryFilters {
	q := r.URL.Query()
	filters := audit.QueryFilters{Limit: 100}

	if userID := q.Get("user_id"); userID != "" {
		filters.UserID = &userID
	}
	if action := q.Get("action"); action != "" {
		a := models.AuditAction(action)
		filters.Action = &a
	}
	if resourceType := q.Get("resource_type"); resourceType != "" {
		filters.ResourceType = &resourceType
	}
	if resourceID := q.Get("resource_id"); resourceID != "" {
		filters.ResourceID = &resourceID
	}
	if startTime := q.Get("start_time"); startTime != "" {
		if t, err := time.Parse(time.RFC3339, startTime); err == nil {
			filters.StartTime = &t
		}
	}
	if endTime := q.Get("end_time"); endTime != "" {
		if t, err := time.Parse(time.RFC3339, endTime); err == nil {
			filters.EndTime = &t
		}
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 && n <= 500 {
			filters.Limit = n
		}
	}
	if offset := q.Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil && n >= 0 {
			filters.Offset = n
		}
	}
	return filters
}

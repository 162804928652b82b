package web

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/secretgate/internal/audit"
)

// activityResponse is the JSON body of GET /secrets/activity.
type activityResponse struct {
	Identifier string        `json:"identifier"`
	Entries    []audit.Entry `json:"entries"`
	Total      int           `json:"total"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
}

// handleActivity returns the signed-in account's own auth history, newest
// first.
//
// Query parameters:
//   - action: register, login, federated_login or logout
//   - outcome: success, not_found, bad_credential, ...
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		s.handleNotFound(w, r)
		return
	}

	cs := sessionFrom(r.Context())
	if cs == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		Outcome:    q.Get("outcome"),
		Identifier: cs.session.Identifier,
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list account activity",
			"error", err,
			"request_id", requestIDFrom(r.Context()),
		)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "activity temporarily unavailable"})
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, activityResponse{
		Identifier: cs.session.Identifier,
		Entries:    result.Entries,
		Total:      result.Total,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Package audit records the authentication trail (registrations, logins,
// logouts) in the audit_logs table and reads it back for inspection.
package audit

import (
	"strings"
	"time"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Entry is one row of the auth trail.
type Entry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Identifier string         `json:"identifier"`
	Method     string         `json:"method"`
	Outcome    string         `json:"outcome"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Action     string // register, login, logout, federated_login
	Identifier string // one account's history
	Outcome    string // success, not_found, bad_credential, ...
	Limit      int    // default 50, capped at 200
	Offset     int
}

// ListResult is one page of entries plus the total matching the filter.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// normalized clamps paging to the allowed range.
func (f Filter) normalized() Filter {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultPageSize
	case f.Limit > maxPageSize:
		f.Limit = maxPageSize
	}
	f.Offset = max(f.Offset, 0)
	return f
}

// where returns the WHERE clause (possibly empty) and its arguments.
// Only column names are interpolated; values are always bound.
func (f Filter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	for _, c := range []struct{ col, val string }{
		{"action", f.Action},
		{"identifier", f.Identifier},
		{"outcome", f.Outcome},
	} {
		if c.val != "" {
			conds = append(conds, c.col+" = ?")
			args = append(args, c.val)
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

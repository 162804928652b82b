package audit

import (
	"context"
	"fmt"

	"github.com/nerrad567/secretgate/internal/events"
)

// Recorder writes auth events to the audit trail.
type Recorder struct {
	repo Repository
}

// NewRecorder creates a Recorder backed by repo.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

// Record implements events.Sink.
func (r *Recorder) Record(ctx context.Context, e events.Event) error {
	entry := &Entry{
		Action:     e.Type,
		Identifier: e.Identifier,
		Method:     e.Method,
		Outcome:    e.Outcome,
		Source:     e.Source,
		CreatedAt:  e.At,
	}

	details := map[string]any{}
	if e.Provider != "" {
		details["provider"] = e.Provider
	}
	if e.RequestID != "" {
		details["request_id"] = e.RequestID
	}
	if len(details) > 0 {
		entry.Details = details
	}

	if err := r.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("recording %s event: %w", e.Type, err)
	}
	return nil
}

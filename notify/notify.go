package notify

import (
	"context"
	"fmt"
	"time"
)

// EventType represents the type of cleanup event.
type EventType string

// Event type constants.
const (
	EventCleanupStarted   EventType = "cleanup_started"
	EventCleanupCompleted EventType = "cleanup_completed"
	EventCleanupFailed    EventType = "cleanup_failed"
	EventJobFailed        EventType = "job_failed"
)

// Severity constants for notifications.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Event describes a cleanup event for notification.
type Event struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	Project   string         `json:"project"`
	JobID     int            `json:"job_id,omitempty"`
	Message   string         `json:"message"`
	Severity  string         `json:"severity"` // SeverityInfo, SeverityWarning, SeverityError
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// DryRun reports whether the event comes from a run that changed nothing.
func (e Event) DryRun() bool {
	dry, _ := e.Metadata["dry_run"].(bool)
	return dry
}

// Title is a one-line headline for chat messages.
func (e Event) Title() string {
	var title string
	switch e.Type {
	case EventCleanupStarted:
		title = fmt.Sprintf("Artifact cleanup of %s started", e.Project)
	case EventCleanupCompleted:
		title = fmt.Sprintf("Artifact cleanup of %s finished", e.Project)
	case EventCleanupFailed:
		title = fmt.Sprintf("Artifact cleanup of %s failed", e.Project)
	case EventJobFailed:
		title = fmt.Sprintf("Job %d of %s could not be cleaned up", e.JobID, e.Project)
	default:
		title = string(e.Type)
	}
	if e.DryRun() {
		title += " (dry run)"
	}
	return title
}

// Notifier sends notifications about cleanup events.
type Notifier interface {
	// Notify sends a notification. Callers treat errors as non-fatal.
	Notify(ctx context.Context, event Event) error
}

type contextKey struct{}

// WithNotifier adds a Notifier to the context.
func WithNotifier(ctx context.Context, n Notifier) context.Context {
	return context.WithValue(ctx, contextKey{}, n)
}

// NotifierFromContext extracts the Notifier from context.
// Returns nil if no notifier is configured.
func NotifierFromContext(ctx context.Context) Notifier {
	if n, ok := ctx.Value(contextKey{}).(Notifier); ok {
		return n
	}
	return nil
}

package notify

import (
	"context"
	"errors"
	"log/slog"
)

// MultiNotifier fans events out to several notifiers. One failing notifier
// does not keep the event from the others.
type MultiNotifier struct {
	Notifiers []Notifier
	Logger    *slog.Logger
}

// NewMultiNotifier creates a notifier that fans out to notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{Notifiers: notifiers, Logger: slog.Default()}
}

// Notify implements Notifier. The returned error joins every notifier failure.
func (n *MultiNotifier) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, notifier := range n.Notifiers {
		err := notifier.Notify(ctx, event)
		if err == nil {
			continue
		}
		errs = append(errs, err)
		if n.Logger != nil {
			n.Logger.Debug("notifier failed", "event_type", event.Type, "error", err)
		}
	}
	return errors.Join(errs...)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, Event) error { return nil }

package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes events as structured log records. Warning and error
// events are logged at the matching level.
type LogNotifier struct {
	Logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs to logger, or to slog.Default()
// if logger is nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{Logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	level := slog.LevelInfo
	switch event.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("type", string(event.Type)),
		slog.String("run_id", event.RunID),
		slog.String("project", event.Project),
	}
	if event.JobID != 0 {
		attrs = append(attrs, slog.Int("job_id", event.JobID))
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, slog.Any("report", event.Metadata))
	}

	n.Logger.LogAttrs(ctx, level, event.Message, attrs...)
	return nil
}

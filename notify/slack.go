package notify

import (
	"context"
	"fmt"
	"net/http"
	"sort"
)

// SlackNotifier posts events to a Slack incoming webhook.
type SlackNotifier struct {
	WebhookURL string
	Channel    string
	Username   string
	Client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	n := &SlackNotifier{
		WebhookURL: webhookURL,
		Username:   "gitlab-artifact-cleanup",
		Client:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SlackOption configures SlackNotifier.
type SlackOption func(*SlackNotifier)

// WithSlackChannel overrides the channel configured for the webhook.
func WithSlackChannel(channel string) SlackOption {
	return func(n *SlackNotifier) { n.Channel = channel }
}

// WithSlackUsername sets the bot username.
func WithSlackUsername(username string) SlackOption {
	return func(n *SlackNotifier) { n.Username = username }
}

// Notify implements Notifier. Started events are not posted; the completed
// or failed event that follows says everything worth reading in a channel.
func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	if event.Type == EventCleanupStarted {
		return nil
	}
	payload := slackPayload{
		Username: n.Username,
		Channel:  n.Channel,
		Attachments: []slackAttachment{{
			Color:     slackColor(event.Severity),
			Title:     slackEmoji(event.Type) + " " + event.Title(),
			Text:      event.Message,
			Footer:    "run " + event.RunID,
			Timestamp: event.Timestamp.Unix(),
			Fields:    slackFields(event.Metadata),
		}},
	}
	return postJSON(ctx, n.Client, "slack", n.WebhookURL, nil, payload)
}

func slackEmoji(t EventType) string {
	switch t {
	case EventCleanupCompleted:
		return ":broom:"
	case EventCleanupFailed:
		return ":x:"
	case EventJobFailed:
		return ":warning:"
	default:
		return ":information_source:"
	}
}

func slackColor(severity string) string {
	switch severity {
	case SeverityError:
		return "danger"
	case SeverityWarning:
		return "warning"
	default:
		return "good"
	}
}

// slackFields renders the report counters in key order. dry_run is already
// part of the title.
func slackFields(metadata map[string]any) []slackField {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		if k != "dry_run" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	fields := make([]slackField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, slackField{Title: k, Value: fmt.Sprint(metadata[k]), Short: true})
	}
	return fields
}

type slackPayload struct {
	Username    string            `json:"username,omitempty"`
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
	Fields    []slackField `json:"fields,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

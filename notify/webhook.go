package notify

import (
	"context"
	"net/http"
)

// WebhookNotifier posts events as JSON to a generic HTTP endpoint. The event
// type and run ID are repeated in the X-Cleanup-Event and X-Cleanup-Run
// headers so receivers can route without parsing the body.
type WebhookNotifier struct {
	URL     string
	Headers map[string]string
	Client  *http.Client
}

// NewWebhookNotifier creates a webhook notifier. headers are added to every
// request, e.g. for an authorization token.
func NewWebhookNotifier(url string, headers map[string]string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:     url,
		Headers: headers,
		Client:  &http.Client{Timeout: defaultTimeout},
	}
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	headers := map[string]string{
		"X-Cleanup-Event": string(event.Type),
		"X-Cleanup-Run":   event.RunID,
	}
	for k, v := range n.Headers {
		headers[k] = v
	}
	return postJSON(ctx, n.Client, "webhook", n.URL, headers, event)
}

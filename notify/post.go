package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apihttp "github.com/randalmurphal/gitlab-artifact-cleanup/http"
)

const defaultTimeout = 10 * time.Second

// postJSON sends payload to url. A non-2xx answer becomes an *apihttp.APIError
// carrying the start of the response body.
func postJSON(ctx context.Context, client *http.Client, service, url string, headers map[string]string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s notification: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apihttp.APIError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Endpoint:   req.URL.Host,
			Message:    string(bytes.TrimSpace(msg)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

package gitlab

import (
	"context"
	"errors"
	"fmt"

	gogitlab "github.com/xanzy/go-gitlab"

	apihttp "github.com/randalmurphal/gitlab-artifact-cleanup/http"
)

const service = "gitlab"

// classify converts a go-gitlab failure into an *apihttp.APIError. Errors
// without an HTTP response (transport, context) are wrapped unchanged.
func classify(endpoint string, resp *gogitlab.Response, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := 0
	requestID := ""
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
		requestID = resp.Header.Get("X-Request-Id")
	}

	message := err.Error()
	var errResp *gogitlab.ErrorResponse
	if errors.As(err, &errResp) {
		if errResp.Message != "" {
			message = errResp.Message
		}
		if status == 0 && errResp.Response != nil {
			status = errResp.Response.StatusCode
		}
	}

	if status == 0 {
		return fmt.Errorf("%s %s: %w", service, endpoint, err)
	}
	return &apihttp.APIError{
		Service:    service,
		StatusCode: status,
		Message:    message,
		Endpoint:   endpoint,
		RequestID:  requestID,
	}
}

package errors

import (
	"errors"
	"strings"

	"github.com/randalmurphal/gitlab-artifact-cleanup/cleanup"
	apihttp "github.com/randalmurphal/gitlab-artifact-cleanup/http"
)

// IsAuthError reports whether GitLab rejected the credential.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotAuthenticated) || apihttp.IsUnauthorized(err) {
		return true
	}
	var authErr *cleanup.AuthorizationError
	return errors.As(err, &authErr) && !apihttp.IsForbidden(err)
}

// IsPermissionError reports whether the credential lacks rights.
func IsPermissionError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrPermissionDenied) || apihttp.IsForbidden(err)
}

// IsConnectionError reports whether GitLab could not be reached.
// This includes TLS errors, timeouts, and network connectivity issues.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionFailed) {
		return true
	}
	if apihttp.StatusCode(err) != 0 {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused", "no such host", "network is unreachable", "dial tcp",
		"certificate", "tls", "x509",
		"timeout", "deadline exceeded",
	} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}

// IsProjectError reports whether a project could not be resolved.
func IsProjectError(err error) bool {
	if err == nil {
		return false
	}
	var notFound *cleanup.ProjectNotFoundError
	return errors.Is(err, ErrProjectNotFound) || errors.As(err, &notFound)
}

// IsRemoteError reports whether GitLab answered a request with a failure that
// is neither an authorization problem nor a missing project.
func IsRemoteError(err error) bool {
	if err == nil {
		return false
	}
	var remote *cleanup.RemoteServiceError
	return errors.Is(err, ErrRemoteService) || errors.As(err, &remote)
}

// IsUsageError reports whether the run lacks a project or an access token.
// Both come with their own suggestion instead of a pointer to --help.
func IsUsageError(err error) bool {
	return errors.Is(err, ErrNoProjects) || errors.Is(err, ErrNoToken)
}

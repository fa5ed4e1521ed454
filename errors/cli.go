package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/gitlab-artifact-cleanup/cleanup"
	"github.com/randalmurphal/gitlab-artifact-cleanup/config"
	apihttp "github.com/randalmurphal/gitlab-artifact-cleanup/http"
)

// CLIError wraps an error with user-facing context and a suggestion.
type CLIError struct {
	// Err is the underlying error
	Err error

	// Message is a user-friendly description of what went wrong
	Message string

	// Suggestion is an actionable hint for the user
	Suggestion string

	// Details provides additional context (optional)
	Details string
}

func (e *CLIError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Details != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Details)
	}

	if e.Suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// ErrorMessenger provides the messages and suggestions of fatal errors.
type ErrorMessenger interface {
	AuthErrorMessage(serverURL string) (message, suggestion string)
	PermissionDeniedMessage(project string) (message, suggestion string)
	ConnectionErrorMessage(serverURL string) (message, suggestion string)
	TLSErrorMessage(serverURL string) (message, suggestion string)
	TimeoutErrorMessage(serverURL string) (message, suggestion string)
	ProjectNotFoundMessage(project string) (message, suggestion string)
	RemoteErrorMessage(project string, status int) (message, suggestion string)
	ConfigErrorMessage(key string) (message, suggestion string)
	NoTokenMessage() (message, suggestion string)
	NoProjectsMessage() (message, suggestion string)
}

// DefaultMessenger provides default error messages.
type DefaultMessenger struct{}

func (m DefaultMessenger) AuthErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("GitLab at %s rejected the access token.", serverURL),
		"Check that the token exists, has not expired and has the api scope."
}

func (m DefaultMessenger) PermissionDeniedMessage(project string) (string, string) {
	return fmt.Sprintf("The access token may not clean up project %q.", project),
		"Deleting artifacts needs at least the Maintainer role on the project."
}

func (m DefaultMessenger) ConnectionErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("Cannot connect to GitLab at %s", serverURL),
		"Check that:\n  - The URL is correct (--gitlab-url)\n  - Your network connection is working"
}

func (m DefaultMessenger) TLSErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("TLS/certificate error connecting to %s", serverURL),
		"Check that the server certificate is valid."
}

func (m DefaultMessenger) TimeoutErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("Connection to %s timed out", serverURL),
		"GitLab may be overloaded or unreachable.\nTry again in a moment."
}

func (m DefaultMessenger) ProjectNotFoundMessage(project string) (string, string) {
	return fmt.Sprintf("Project %q not found.", project),
		"Use the full path with namespace (e.g. \"group/subgroup/project\") or the numeric project ID."
}

func (m DefaultMessenger) RemoteErrorMessage(project string, status int) (string, string) {
	if status == 0 {
		return fmt.Sprintf("GitLab request for project %q failed.", project), "Try again later."
	}
	return fmt.Sprintf("GitLab answered %d for project %q.", status, project), "Try again later."
}

func (m DefaultMessenger) ConfigErrorMessage(key string) (string, string) {
	return fmt.Sprintf("The %s setting is invalid.", key),
		"Fix the value in the config file, environment variable or flag it came from."
}

func (m DefaultMessenger) NoTokenMessage() (string, string) {
	return "No GitLab access token is given.",
		"Set access_token in the config file, export GITLAB_ARTIFACT_CLEANUP_ACCESS_TOKEN or pipe the token on stdin."
}

func (m DefaultMessenger) NoProjectsMessage() (string, string) {
	return "No project is given.",
		"Pass one or more project paths as arguments or set repository_paths in the config file."
}

// WrapConfig configures error wrapping behavior.
type WrapConfig struct {
	Messenger ErrorMessenger
}

// Option configures WrapConfig.
type Option func(*WrapConfig)

// WithMessenger sets a custom error messenger.
func WithMessenger(m ErrorMessenger) Option {
	return func(c *WrapConfig) {
		c.Messenger = m
	}
}

func getMessenger(opts []Option) ErrorMessenger {
	cfg := &WrapConfig{
		Messenger: DefaultMessenger{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.Messenger
}

// Wrap turns a fatal run error into a CLIError. Errors it does not recognise
// are returned unchanged.
func Wrap(err error, serverURL string, opts ...Option) error {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	messenger := getMessenger(opts)

	var (
		notFound *cleanup.ProjectNotFoundError
		authErr  *cleanup.AuthorizationError
		remote   *cleanup.RemoteServiceError
		valueErr *config.ValueError
	)
	switch {
	case errors.As(err, &notFound):
		msg, suggestion := messenger.ProjectNotFoundMessage(notFound.Project)
		return &CLIError{Err: joinSentinel(ErrProjectNotFound, err), Message: msg, Suggestion: suggestion, Details: err.Error()}

	case errors.As(err, &authErr):
		if apihttp.IsForbidden(err) {
			msg, suggestion := messenger.PermissionDeniedMessage(authErr.Project)
			return &CLIError{Err: joinSentinel(ErrPermissionDenied, err), Message: msg, Suggestion: suggestion, Details: err.Error()}
		}
		msg, suggestion := messenger.AuthErrorMessage(serverURL)
		return &CLIError{Err: joinSentinel(ErrNotAuthenticated, err), Message: msg, Suggestion: suggestion, Details: err.Error()}

	case errors.As(err, &remote):
		if remote.StatusCode() == 0 {
			if wrapped := WrapConnectionError(err, serverURL, opts...); wrapped != err {
				return wrapped
			}
		}
		msg, suggestion := messenger.RemoteErrorMessage(remote.Project, remote.StatusCode())
		if apihttp.IsRateLimited(err) {
			suggestion = "GitLab is rate limiting the token. Wait a while or raise max_retries so requests back off."
		}
		return &CLIError{Err: joinSentinel(ErrRemoteService, err), Message: msg, Suggestion: suggestion, Details: err.Error()}

	case errors.As(err, &valueErr):
		return WrapConfigError(err, opts...)

	case errors.Is(err, config.ErrNoToken):
		msg, suggestion := messenger.NoTokenMessage()
		return &CLIError{Err: joinSentinel(ErrNoToken, err), Message: msg, Suggestion: suggestion}
	}

	return err
}

// WrapConfigError wraps an invalid configuration value.
func WrapConfigError(err error, opts ...Option) error {
	if err == nil {
		return nil
	}
	var valueErr *config.ValueError
	if !errors.As(err, &valueErr) {
		return &CLIError{Err: joinSentinel(ErrInvalidConfig, err), Message: err.Error()}
	}
	msg, suggestion := getMessenger(opts).ConfigErrorMessage(valueErr.Key)
	return &CLIError{
		Err:        joinSentinel(ErrInvalidConfig, err),
		Message:    msg,
		Details:    err.Error(),
		Suggestion: suggestion,
	}
}

// WrapConnectionError wraps connection-related errors with helpful guidance.
func WrapConnectionError(err error, serverURL string, opts ...Option) error {
	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())
	messenger := getMessenger(opts)

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "dial tcp") {
		msg, suggestion := messenger.ConnectionErrorMessage(serverURL)
		return &CLIError{
			Err:        joinSentinel(ErrConnectionFailed, err),
			Message:    msg,
			Suggestion: suggestion,
		}
	}

	if strings.Contains(errStr, "certificate") || strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "x509") {
		msg, suggestion := messenger.TLSErrorMessage(serverURL)
		return &CLIError{
			Err:        joinSentinel(ErrConnectionFailed, err),
			Message:    msg,
			Details:    err.Error(),
			Suggestion: suggestion,
		}
	}

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		msg, suggestion := messenger.TimeoutErrorMessage(serverURL)
		return &CLIError{
			Err:        joinSentinel(ErrConnectionFailed, err),
			Message:    msg,
			Suggestion: suggestion,
		}
	}

	return err
}

// NewNoProjectsError creates the error for a run without projects.
func NewNoProjectsError(opts ...Option) error {
	msg, suggestion := getMessenger(opts).NoProjectsMessage()
	return &CLIError{Err: ErrNoProjects, Message: msg, Suggestion: suggestion}
}

// joinSentinel keeps both the sentinel and the typed cause reachable through
// errors.Is and errors.As.
func joinSentinel(sentinel, cause error) error {
	return errors.Join(sentinel, cause)
}

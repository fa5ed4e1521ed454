package errors

import "errors"

// Sentinel errors a CLIError may wrap.
var (
	// ErrNotAuthenticated indicates GitLab rejected the access token.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrPermissionDenied indicates the token lacks rights on the project.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrConnectionFailed indicates GitLab is unreachable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrProjectNotFound indicates a project reference could not be resolved.
	ErrProjectNotFound = errors.New("project not found")

	// ErrRemoteService indicates GitLab answered with an unexpected error.
	ErrRemoteService = errors.New("remote service error")

	// ErrInvalidConfig indicates a configuration value cannot be used.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoToken indicates no access token was configured or entered.
	ErrNoToken = errors.New("no access token")

	// ErrNoProjects indicates neither arguments nor config name a project.
	ErrNoProjects = errors.New("no projects given")
)

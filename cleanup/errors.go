package cleanup

import (
	"context"
	"errors"
	"fmt"

	apihttp "github.com/randalmurphal/gitlab-artifact-cleanup/http"
)

// ProjectNotFoundError is returned when a project reference cannot be resolved.
type ProjectNotFoundError struct {
	Project string
	Err     error
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("could not get project %q: %v", e.Project, e.Err)
}

func (e *ProjectNotFoundError) Unwrap() error {
	return e.Err
}

// AuthorizationError is returned when the credential is rejected or lacks the
// rights to list or delete artifacts of a project.
type AuthorizationError struct {
	Project string
	Op      string
	Err     error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized to %s of project %q: %v", e.Op, e.Project, e.Err)
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// RemoteServiceError is returned for any other failure of the remote API while
// resolving a project or listing its jobs.
type RemoteServiceError struct {
	Project string
	Op      string
	Err     error
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("failed to %s of project %q: %v", e.Op, e.Project, e.Err)
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status of the failed call, or 0 for transport errors.
func (e *RemoteServiceError) StatusCode() int {
	return apihttp.StatusCode(e.Err)
}

// DeletionFailure records why the artifacts of a single job could not be deleted.
// It never aborts a run.
type DeletionFailure struct {
	JobID int
	Err   error
}

func (e *DeletionFailure) Error() string {
	return fmt.Sprintf("job %d: %v", e.JobID, e.Err)
}

func (e *DeletionFailure) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err aborts a run, as opposed to a per-job failure.
func IsFatal(err error) bool {
	var (
		notFound *ProjectNotFoundError
		authErr  *AuthorizationError
		remote   *RemoteServiceError
	)
	return errors.As(err, &notFound) || errors.As(err, &authErr) || errors.As(err, &remote) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func resolveError(ref string, err error) error {
	switch {
	case isContextErr(err):
		return err
	case apihttp.IsNotFound(err):
		return &ProjectNotFoundError{Project: ref, Err: err}
	case apihttp.IsUnauthorized(err) || apihttp.IsForbidden(err):
		return &AuthorizationError{Project: ref, Op: "read the project", Err: err}
	default:
		return &RemoteServiceError{Project: ref, Op: "read the project", Err: err}
	}
}

func listError(project string, err error) error {
	switch {
	case isContextErr(err):
		return err
	case apihttp.IsUnauthorized(err) || apihttp.IsForbidden(err):
		return &AuthorizationError{Project: project, Op: "list the jobs", Err: err}
	default:
		return &RemoteServiceError{Project: project, Op: "list the jobs", Err: err}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

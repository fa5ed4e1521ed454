package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"

	apihttp "github.com/randalmurphal/gitlab-artifact-cleanup/http"
	"github.com/randalmurphal/gitlab-artifact-cleanup/notify"
)

// API is the remote system the cleaner works against.
type API interface {
	// ResolveProject looks up a project by numeric ID or path.
	ResolveProject(ctx context.Context, ref string) (*Project, error)

	// ListJobs returns one page (numbered from 1) of the project's jobs,
	// newest first, and whether more pages follow.
	ListJobs(ctx context.Context, project *Project, page int) ([]Job, bool, error)

	// DeleteArtifacts deletes the artifacts of a job.
	DeleteArtifacts(ctx context.Context, projectID, jobID int) error

	// EraseJob erases a job's log (and any remaining artifacts).
	EraseJob(ctx context.Context, projectID, jobID int) error
}

const runIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// DefaultForbiddenLimit is how many refused deletions in a row, before any
// succeeded, abort a project with an AuthorizationError.
const DefaultForbiddenLimit = 3

// Cleaner deletes old artifacts through an API handle.
type Cleaner struct {
	api    API
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	forbiddenLimit int
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cleaner) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the clock used to judge artifact age.
func WithClock(now func() time.Time) Option {
	return func(c *Cleaner) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRunIDs sets the run ID generator.
func WithRunIDs(newID func() string) Option {
	return func(c *Cleaner) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// WithForbiddenLimit sets how many 403 answers in a row, before any deletion
// succeeded, abort a project. Zero or less never aborts on 403.
func WithForbiddenLimit(n int) Option {
	return func(c *Cleaner) { c.forbiddenLimit = n }
}

// NewCleaner creates a cleaner working against api.
func NewCleaner(api API, opts ...Option) *Cleaner {
	c := &Cleaner{
		api:    api,
		logger: slog.Default(),
		now:    time.Now,
		newID:  newRunID,

		forbiddenLimit: DefaultForbiddenLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newRunID() string {
	id, err := nanoid.Generate(runIDAlphabet, 10)
	if err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return id
}

// Run cleans up several projects in order and returns one report per project
// that was processed. It stops at the first fatal error; the report of the
// project that failed is included when one was started.
func (c *Cleaner) Run(ctx context.Context, projectRefs []string, policy Policy) ([]*Report, error) {
	reports := make([]*Report, 0, len(projectRefs))
	for _, ref := range projectRefs {
		report, err := c.DeleteOldArtifacts(ctx, ref, policy)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// DeleteOldArtifacts selects the jobs of a project whose artifacts the policy
// gives up and deletes them, or only reports them in a dry run.
//
// Fatal errors are *ProjectNotFoundError, *AuthorizationError and
// *RemoteServiceError. Once listing has started the partial report is returned
// alongside a fatal error. Per-job failures are recorded in the report and do
// not stop the run.
func (c *Cleaner) DeleteOldArtifacts(ctx context.Context, projectRef string, policy Policy) (*Report, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	now := c.now()
	runID := c.newID()
	logger := c.logger.With("run_id", runID)

	project, err := c.api.ResolveProject(ctx, projectRef)
	if err != nil {
		err = resolveError(projectRef, err)
		c.notify(ctx, notify.Event{
			Type:     notify.EventCleanupFailed,
			RunID:    runID,
			Project:  projectRef,
			Message:  err.Error(),
			Severity: notify.SeverityError,
		})
		return nil, err
	}

	logger = logger.With("project", project.PathWithNamespace)
	logger.Info("scanning project", "dry_run", policy.DryRun)
	logger.Debug("retention policy", "policy", policy.String())
	c.notify(ctx, notify.Event{
		Type:     notify.EventCleanupStarted,
		RunID:    runID,
		Project:  project.PathWithNamespace,
		Message:  fmt.Sprintf("Scanning project %q", project.PathWithNamespace),
		Severity: notify.SeverityInfo,
	})

	report := &Report{
		RunID:     runID,
		Project:   project,
		Policy:    policy,
		StartedAt: now,
	}

	jobs := apihttp.NewPageIterator(func(ctx context.Context, page int) ([]Job, bool, error) {
		logger.Debug("listing jobs", "page", page)
		return c.api.ListJobs(ctx, project, page)
	})

	err = jobs.ForEach(ctx, func(job Job) error {
		if ok, reason := policy.Eligible(job, now); !ok {
			if reason == ReasonKept {
				report.Kept++
			}
			logger.Debug("keeping job", "job_id", job.ID, "ref", job.Ref, "reason", string(reason))
			return nil
		}
		return c.process(ctx, logger, report, job)
	})
	report.Scanned = jobs.Fetched()

	if err != nil {
		var authErr *AuthorizationError
		if !errors.As(err, &authErr) {
			err = listError(project.PathWithNamespace, err)
		}
		c.notify(ctx, notify.Event{
			Type:     notify.EventCleanupFailed,
			RunID:    runID,
			Project:  project.PathWithNamespace,
			Message:  err.Error(),
			Severity: notify.SeverityError,
			Metadata: reportMetadata(report),
		})
		return report, err
	}

	logger.Info("project done",
		"scanned", report.Scanned,
		"pages", jobs.Pages(),
		"candidates", len(report.Entries),
		"failed", report.Count(ActionFailed),
		"reclaimed", HumanSize(report.ReclaimedBytes()),
	)

	severity := notify.SeverityInfo
	if report.HasFailures() {
		severity = notify.SeverityWarning
	}
	c.notify(ctx, notify.Event{
		Type:     notify.EventCleanupCompleted,
		RunID:    runID,
		Project:  project.PathWithNamespace,
		Message:  report.Summary(),
		Severity: severity,
		Metadata: reportMetadata(report),
	})

	return report, nil
}

// process acts on one candidate job. It only returns an error when the run
// must stop.
func (c *Cleaner) process(ctx context.Context, logger *slog.Logger, report *Report, job Job) error {
	policy := report.Policy
	what := "artifacts"
	if policy.DeleteLogs {
		what = "artifacts and log"
	}
	attrs := []any{"job_id", job.ID, "ref", job.Ref, "size", HumanSize(job.ReclaimableSize(policy.DeleteLogs))}

	if policy.DryRun {
		report.add(Entry{Job: job, Action: ActionWouldDelete})
		logger.Info("would delete "+what, attrs...)
		return nil
	}

	action, err := c.deleteJobData(ctx, report.Project.ID, job, policy.DeleteLogs)
	if err == nil {
		report.add(Entry{Job: job, Action: action})
		if action == ActionAlreadyAbsent {
			logger.Info(what+" already absent", attrs...)
		} else {
			logger.Info("deleted "+what, attrs...)
		}
		return nil
	}

	failure := &DeletionFailure{JobID: job.ID, Err: err}
	report.add(Entry{Job: job, Action: ActionFailed, Err: failure.Err})

	if isContextErr(err) {
		return err
	}
	// A rejected credential fails the same way for every remaining job.
	if apihttp.IsUnauthorized(err) {
		return &AuthorizationError{Project: report.ProjectPath(), Op: "delete artifacts", Err: err}
	}
	if c.tokenLacksDeleteRights(report, err) {
		return &AuthorizationError{Project: report.ProjectPath(), Op: "delete artifacts", Err: err}
	}

	logger.Warn("failed to delete "+what, append(attrs, "error", err, "retryable", apihttp.IsRetryable(err))...)
	c.notify(ctx, notify.Event{
		Type:     notify.EventJobFailed,
		RunID:    report.RunID,
		Project:  report.ProjectPath(),
		JobID:    job.ID,
		Message:  failure.Error(),
		Severity: notify.SeverityWarning,
	})
	return nil
}

// tokenLacksDeleteRights tracks 403 answers on delete. Single jobs may be
// refused on protected refs, but when the first forbiddenLimit deletions of a
// project are all refused the token cannot delete anything there.
func (c *Cleaner) tokenLacksDeleteRights(report *Report, err error) bool {
	if !apihttp.IsForbidden(err) {
		report.forbiddenStreak = 0
		return false
	}
	report.forbiddenStreak++
	if report.Count(ActionDeleted)+report.Count(ActionAlreadyAbsent) > 0 {
		return false
	}
	return c.forbiddenLimit > 0 && report.forbiddenStreak >= c.forbiddenLimit
}

// deleteJobData deletes the artifacts of a job and, if requested, its log.
// Data that is already gone counts as deleted by someone else.
func (c *Cleaner) deleteJobData(ctx context.Context, projectID int, job Job, deleteLogs bool) (Action, error) {
	action := ActionDeleted

	if err := c.api.DeleteArtifacts(ctx, projectID, job.ID); err != nil {
		if !apihttp.IsNotFound(err) {
			return "", fmt.Errorf("delete artifacts: %w", err)
		}
		action = ActionAlreadyAbsent
	}

	if !deleteLogs {
		return action, nil
	}

	if err := c.api.EraseJob(ctx, projectID, job.ID); err != nil {
		if !apihttp.IsNotFound(err) {
			return "", fmt.Errorf("erase job log: %w", err)
		}
		return action, nil
	}
	return ActionDeleted, nil
}

func (c *Cleaner) notify(ctx context.Context, event notify.Event) {
	n := notify.NotifierFromContext(ctx)
	if n == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = c.now()
	}
	if err := n.Notify(ctx, event); err != nil {
		c.logger.Warn("notification failed", "event_type", event.Type, "error", err)
	}
}

func reportMetadata(r *Report) map[string]any {
	return map[string]any{
		"scanned":    r.Scanned,
		"candidates": len(r.Entries),
		"deleted":    r.Count(ActionDeleted),
		"dry_run":    r.Policy.DryRun,
		"failed":     r.Count(ActionFailed),
		"reclaimed":  HumanSize(r.ReclaimedBytes()),
		"kept":       r.Kept,
	}
}

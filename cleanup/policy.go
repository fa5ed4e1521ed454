package cleanup

import (
	"fmt"
	"strings"
	"time"
)

// DefaultDaysToKeep is the default minimum age, in days, of deletable artifacts.
const DefaultDaysToKeep = 7

// Day is the unit retention ages are configured in.
const Day = 24 * time.Hour

// KeepArtifacts names which artifacts are always kept regardless of age.
type KeepArtifacts string

// KeepArtifacts values.
const (
	KeepNone                  KeepArtifacts = "none"
	KeepBranchArtifacts       KeepArtifacts = "branch_artifacts"
	KeepTagArtifacts          KeepArtifacts = "tag_artifacts"
	KeepBranchAndTagArtifacts KeepArtifacts = "branch_and_tag_artifacts"
)

// KeepArtifactsChoices lists the accepted KeepArtifacts values.
var KeepArtifactsChoices = []KeepArtifacts{
	KeepNone,
	KeepBranchArtifacts,
	KeepTagArtifacts,
	KeepBranchAndTagArtifacts,
}

// ParseKeepArtifacts parses a KeepArtifacts value, case-insensitively.
func ParseKeepArtifacts(s string) (KeepArtifacts, error) {
	k := KeepArtifacts(strings.ToLower(strings.TrimSpace(s)))
	for _, choice := range KeepArtifactsChoices {
		if k == choice {
			return k, nil
		}
	}
	names := make([]string, len(KeepArtifactsChoices))
	for i, choice := range KeepArtifactsChoices {
		names[i] = string(choice)
	}
	return "", fmt.Errorf("unknown always-keep value %q, valid choices are %s", s, strings.Join(names, ", "))
}

// Branches reports whether artifacts of the latest branch commits are kept.
func (k KeepArtifacts) Branches() bool {
	return k == KeepBranchArtifacts || k == KeepBranchAndTagArtifacts
}

// Tags reports whether tag artifacts are kept.
func (k KeepArtifacts) Tags() bool {
	return k == KeepTagArtifacts || k == KeepBranchAndTagArtifacts
}

// Policy is the retention configuration of one run.
type Policy struct {
	// MinAge is how long after a job finished its artifacts are always kept.
	MinAge time.Duration

	// KeepLatestBranchCommit exempts jobs on the latest commit of a branch.
	KeepLatestBranchCommit bool

	// KeepTags exempts jobs that ran for a tag.
	KeepTags bool

	// DeleteLogs also erases the job log, purging the job completely.
	DeleteLogs bool

	// DryRun only reports what would be deleted.
	DryRun bool
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return NewPolicy(DefaultDaysToKeep, KeepBranchAndTagArtifacts)
}

// NewPolicy builds a policy from a day count and a KeepArtifacts choice.
func NewPolicy(daysToKeep int, keep KeepArtifacts) Policy {
	return Policy{
		MinAge:                 time.Duration(daysToKeep) * Day,
		KeepLatestBranchCommit: keep.Branches(),
		KeepTags:               keep.Tags(),
	}
}

// Validate checks the policy for impossible values.
func (p Policy) Validate() error {
	if p.MinAge < 0 {
		return fmt.Errorf("minimum artifact age must not be negative, got %s", p.MinAge)
	}
	return nil
}

// Reason explains why a job is not a deletion candidate.
type Reason string

// Rejection reasons, in the order they are checked.
const (
	ReasonNone           Reason = ""
	ReasonKept           Reason = "kept"
	ReasonNoArtifacts    Reason = "no artifacts"
	ReasonNoFinishTime   Reason = "no finish time"
	ReasonTooNew         Reason = "too new"
	ReasonLatestOnBranch Reason = "latest on branch"
	ReasonTag            Reason = "tag"
)

// Eligible reports whether the job's artifacts may be deleted at time now.
// When it returns false the reason names the first rule that protected the job.
func (p Policy) Eligible(job Job, now time.Time) (bool, Reason) {
	// Kept artifacts are never deleted, whatever else holds.
	if job.Kept {
		return false, ReasonKept
	}
	if !job.HasArtifact && !(p.DeleteLogs && job.HasTrace) {
		return false, ReasonNoArtifacts
	}
	if job.FinishedAt == nil {
		return false, ReasonNoFinishTime
	}
	if now.Sub(*job.FinishedAt) < p.MinAge {
		return false, ReasonTooNew
	}
	if p.KeepLatestBranchCommit && job.Branch() != "" {
		return false, ReasonLatestOnBranch
	}
	if p.KeepTags && job.Tag() != "" {
		return false, ReasonTag
	}
	return true, ReasonNone
}

// String renders the policy for logs.
func (p Policy) String() string {
	return fmt.Sprintf("min_age=%s keep_latest_branch_commit=%t keep_tags=%t delete_logs=%t dry_run=%t",
		p.MinAge, p.KeepLatestBranchCommit, p.KeepTags, p.DeleteLogs, p.DryRun)
}

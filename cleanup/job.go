package cleanup

import "time"

// Project is a resolved project handle. It is read-only for the duration of a run.
type Project struct {
	ID                int
	PathWithNamespace string
	WebURL            string

	// BranchHeads maps branch names to their head commit SHA.
	BranchHeads map[string]string

	// TagHeads maps tag names to the commit SHA they point at.
	TagHeads map[string]string
}

// Job is one CI job as reported by the remote API.
type Job struct {
	ID        int
	Name      string
	Stage     string
	Status    string
	Ref       string // empty for jobs without a ref
	CommitSHA string
	WebURL    string

	CreatedAt  time.Time
	FinishedAt *time.Time // nil if the job never finished

	// Kept is set when a user explicitly kept the job's artifacts.
	Kept bool

	// LatestOnRef is set when the job belongs to the latest commit of its
	// branch, as reported by the remote system.
	LatestOnRef bool

	// IsTag is set when the job's ref is a tag.
	IsTag bool

	HasArtifact  bool
	HasTrace     bool
	ArtifactSize int64
	TraceSize    int64
}

// HasRef reports whether the job ran against a branch or tag.
func (j Job) HasRef() bool {
	return j.Ref != ""
}

// Branch returns the branch the job is linked to through the latest commit
// of that branch, or "" if there is none.
func (j Job) Branch() string {
	if j.HasRef() && !j.IsTag && j.LatestOnRef {
		return j.Ref
	}
	return ""
}

// Tag returns the tag the job ran for, or "" if it did not run for a tag.
func (j Job) Tag() string {
	if j.HasRef() && j.IsTag {
		return j.Ref
	}
	return ""
}

// ReclaimableSize returns the number of bytes a deletion frees.
func (j Job) ReclaimableSize(includeTrace bool) int64 {
	size := j.ArtifactSize
	if includeTrace {
		size += j.TraceSize
	}
	return size
}

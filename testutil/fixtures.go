// Package testutil provides a fake GitLab server and helpers for tests.
package testutil

import "time"

// Ago returns a pointer to now minus d, for FakeJob.FinishedAt.
func Ago(now time.Time, d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

// ArtifactJob returns a finished job with an archive of archiveSize bytes and a
// trace log of traceSize bytes. The artifacts expire in a week.
func ArtifactJob(id int, ref, sha string, finished *time.Time, archiveSize, traceSize int) *FakeJob {
	created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if finished != nil {
		created = finished.Add(-5 * time.Minute)
	}
	expire := created.Add(7 * 24 * time.Hour)
	return &FakeJob{
		ID:         id,
		Ref:        ref,
		SHA:        sha,
		CreatedAt:  created,
		FinishedAt: finished,
		ExpireAt:   &expire,
		Artifacts: []FakeArtifact{
			{FileType: "archive", Size: archiveSize},
			{FileType: "metadata", Size: 100},
			{FileType: "trace", Size: traceSize},
		},
	}
}

// Kept marks the job's artifacts as kept (no expiry).
func (j *FakeJob) Kept() *FakeJob {
	j.ExpireAt = nil
	return j
}

// ForTag marks the job as a tag pipeline job.
func (j *FakeJob) ForTag() *FakeJob {
	j.Tag = true
	return j
}

package gitlab

import (
	"context"
	"fmt"

	gogitlab "github.com/xanzy/go-gitlab"

	"github.com/randalmurphal/gitlab-artifact-cleanup/cleanup"
)

// Artifact file types reported by GitLab.
const (
	fileTypeArchive = "archive"
	fileTypeTrace   = "trace"
)

// ListJobs returns one page of the project's jobs, newest first, and whether
// more pages follow.
func (c *Client) ListJobs(ctx context.Context, project *cleanup.Project, page int) ([]cleanup.Job, bool, error) {
	opts := &gogitlab.ListJobsOptions{
		ListOptions: gogitlab.ListOptions{Page: page, PerPage: c.perPage},
	}
	list, resp, err := c.api.Jobs.ListProjectJobs(project.ID, opts, gogitlab.WithContext(ctx))
	if err != nil {
		return nil, false, classify(fmt.Sprintf("projects/%d/jobs", project.ID), resp, err)
	}

	jobs := make([]cleanup.Job, 0, len(list))
	for _, j := range list {
		jobs = append(jobs, c.toJob(project, j))
	}
	return jobs, resp.NextPage != 0, nil
}

// DeleteArtifacts deletes the artifacts of a job.
func (c *Client) DeleteArtifacts(ctx context.Context, projectID, jobID int) error {
	resp, err := c.api.Jobs.DeleteArtifacts(projectID, jobID, gogitlab.WithContext(ctx))
	if err != nil {
		return classify(fmt.Sprintf("projects/%d/jobs/%d/artifacts", projectID, jobID), resp, err)
	}
	return nil
}

// EraseJob erases the log and remaining artifacts of a job.
func (c *Client) EraseJob(ctx context.Context, projectID, jobID int) error {
	_, resp, err := c.api.Jobs.EraseJob(projectID, jobID, gogitlab.WithContext(ctx))
	if err != nil {
		return classify(fmt.Sprintf("projects/%d/jobs/%d/erase", projectID, jobID), resp, err)
	}
	return nil
}

// toJob converts a GitLab job. Branch and tag links are judged against the
// heads recorded when the project was resolved.
func (c *Client) toJob(project *cleanup.Project, j *gogitlab.Job) cleanup.Job {
	job := cleanup.Job{
		ID:         j.ID,
		Name:       j.Name,
		Stage:      j.Stage,
		Status:     j.Status,
		Ref:        j.Ref,
		WebURL:     j.WebURL,
		FinishedAt: j.FinishedAt,
	}
	if j.CreatedAt != nil {
		job.CreatedAt = *j.CreatedAt
	}
	if j.Commit != nil {
		job.CommitSHA = j.Commit.ID
	}

	for _, a := range j.Artifacts {
		switch a.FileType {
		case fileTypeTrace:
			job.HasTrace = true
			job.TraceSize += int64(a.Size)
		case fileTypeArchive:
			job.HasArtifact = true
			job.ArtifactSize += int64(a.Size)
		default:
			job.ArtifactSize += int64(a.Size)
		}
	}

	if job.HasRef() && job.CommitSHA != "" {
		tagHead, isTagHead := project.TagHeads[job.Ref]
		job.IsTag = j.Tag || (isTagHead && tagHead == job.CommitSHA)
		if head, ok := project.BranchHeads[job.Ref]; ok && !j.Tag {
			job.LatestOnRef = head == job.CommitSHA
		}
	} else {
		job.IsTag = j.Tag
	}

	job.Kept = c.keptWhenNoExpiry && job.HasArtifact && j.ArtifactsExpireAt == nil
	return job
}

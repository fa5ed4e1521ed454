// Package cleanup selects and deletes stale CI job artifacts of GitLab projects.
//
// A Cleaner walks a project's jobs newest-first, evaluates each one against a
// retention Policy and deletes (or, in dry-run mode, only reports) the artifacts
// of every job the policy gives up. The outcome of a run is a Report with one
// Entry per candidate job.
//
// The remote system is reached through the API interface; the gitlab package
// provides the production implementation.
//
// Example usage:
//
//	client, err := gitlab.NewClient(gitlab.Config{URL: url, Token: token})
//	if err != nil {
//	    return err
//	}
//	cleaner := cleanup.NewCleaner(client, cleanup.WithLogger(logger))
//	report, err := cleaner.DeleteOldArtifacts(ctx, "group/project", cleanup.DefaultPolicy())
//	if err != nil {
//	    return err
//	}
//	report.Render(os.Stdout)
package cleanup

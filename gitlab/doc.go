// Package gitlab talks to the GitLab REST API v4 on behalf of the cleaner.
//
// It wraps github.com/xanzy/go-gitlab and translates GitLab's projects, branches,
// tags and jobs into the cleanup data model:
//
//	client, err := gitlab.NewClient(gitlab.Config{
//	    URL:   "https://gitlab.example.com/",
//	    Token: token,
//	})
//	if err != nil {
//	    return err
//	}
//	reports, err := cleanup.NewCleaner(client).Run(ctx, projects, policy)
//
// Every failed call is returned as an *http.APIError (service "gitlab") so callers
// can classify it with http.IsNotFound, http.IsUnauthorized and friends.
package gitlab

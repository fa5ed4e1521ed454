package gitlab

import (
	"context"
	"fmt"
	"strconv"

	gogitlab "github.com/xanzy/go-gitlab"

	"github.com/randalmurphal/gitlab-artifact-cleanup/cleanup"
	apihttp "github.com/randalmurphal/gitlab-artifact-cleanup/http"
)

// projectID turns a reference into what go-gitlab accepts as a project ID.
func projectID(ref string) any {
	if id, err := strconv.Atoi(ref); err == nil {
		return id
	}
	return ref
}

// ResolveProject looks up a project by numeric ID or "namespace/project" path
// and records the head commit of every branch and tag.
func (c *Client) ResolveProject(ctx context.Context, ref string) (*cleanup.Project, error) {
	p, resp, err := c.api.Projects.GetProject(projectID(ref), nil, gogitlab.WithContext(ctx))
	if err != nil {
		return nil, classify("projects/"+ref, resp, err)
	}

	project := &cleanup.Project{
		ID:                p.ID,
		PathWithNamespace: p.PathWithNamespace,
		WebURL:            p.WebURL,
	}

	project.BranchHeads, err = c.branchHeads(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	project.TagHeads, err = c.tagHeads(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (c *Client) branchHeads(ctx context.Context, pid int) (map[string]string, error) {
	endpoint := fmt.Sprintf("projects/%d/repository/branches", pid)
	branches := apihttp.NewPageIterator(func(ctx context.Context, page int) ([]*gogitlab.Branch, bool, error) {
		opts := &gogitlab.ListBranchesOptions{
			ListOptions: gogitlab.ListOptions{Page: page, PerPage: c.perPage},
		}
		list, resp, err := c.api.Branches.ListBranches(pid, opts, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, false, classify(endpoint, resp, err)
		}
		return list, resp.NextPage != 0, nil
	})

	heads := make(map[string]string)
	err := branches.ForEach(ctx, func(b *gogitlab.Branch) error {
		if b.Commit != nil {
			heads[b.Name] = b.Commit.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return heads, nil
}

func (c *Client) tagHeads(ctx context.Context, pid int) (map[string]string, error) {
	endpoint := fmt.Sprintf("projects/%d/repository/tags", pid)
	tags := apihttp.NewPageIterator(func(ctx context.Context, page int) ([]*gogitlab.Tag, bool, error) {
		opts := &gogitlab.ListTagsOptions{
			ListOptions: gogitlab.ListOptions{Page: page, PerPage: c.perPage},
		}
		list, resp, err := c.api.Tags.ListTags(pid, opts, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, false, classify(endpoint, resp, err)
		}
		return list, resp.NextPage != 0, nil
	})

	heads := make(map[string]string)
	err := tags.ForEach(ctx, func(t *gogitlab.Tag) error {
		if t.Commit != nil {
			heads[t.Name] = t.Commit.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return heads, nil
}

package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// FakeArtifact is one file attached to a fake job.
type FakeArtifact struct {
	FileType string // "archive", "metadata", "trace", ...
	Size     int
}

// FakeJob is a CI job served by FakeGitLab.
type FakeJob struct {
	ID         int
	Name       string
	Ref        string
	SHA        string
	Tag        bool
	CreatedAt  time.Time
	FinishedAt *time.Time
	ExpireAt   *time.Time
	Artifacts  []FakeArtifact
}

// FakeProject is a project served by FakeGitLab.
type FakeProject struct {
	ID       int
	Path     string
	Branches map[string]string // name -> head SHA
	Tags     map[string]string // name -> commit SHA

	// Jobs are served in slice order; keep them newest first.
	Jobs []*FakeJob
}

// FakeGitLab is an in-memory GitLab REST API v4 covering projects, branches,
// tags and jobs.
type FakeGitLab struct {
	Server *httptest.Server

	mu       sync.Mutex
	token    string
	projects []*FakeProject
	failures map[string]int
	requests []string
}

// NewFakeGitLab starts a fake server that accepts token (any token when empty).
// The server is closed when the test ends.
func NewFakeGitLab(t *testing.T, token string, projects ...*FakeProject) *FakeGitLab {
	t.Helper()

	f := &FakeGitLab{
		token:    token,
		projects: projects,
		failures: make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the instance URL (without the API path).
func (f *FakeGitLab) URL() string {
	return f.Server.URL + "/"
}

// FailWith makes every request for "METHOD /api/v4/..." (unescaped path)
// answer with status.
func (f *FakeGitLab) FailWith(method, path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method+" "+path] = status
}

// Requests returns "METHOD path" for every API request received.
func (f *FakeGitLab) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// Mutations returns the DELETE and POST requests received.
func (f *FakeGitLab) Mutations() []string {
	var out []string
	for _, r := range f.Requests() {
		if strings.HasPrefix(r, http.MethodDelete+" ") || strings.HasPrefix(r, http.MethodPost+" ") {
			out = append(out, r)
		}
	}
	return out
}

// Job returns a job by ID, or nil.
func (f *FakeGitLab) Job(projectID, jobID int) *FakeJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p := f.projectByID(projectID); p != nil {
		return p.job(jobID)
	}
	return nil
}

func (f *FakeGitLab) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const prefix = "/api/v4/projects/"
	escaped := r.URL.EscapedPath()
	if !strings.HasPrefix(escaped, prefix) {
		// go-gitlab probes the API root for rate limit headers.
		writeError(w, http.StatusNotFound, "404 Not Found")
		return
	}

	segments := strings.Split(strings.TrimPrefix(escaped, prefix), "/")
	ref, err := url.PathUnescape(segments[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "400 Bad Request")
		return
	}
	rest := segments[1:]
	key := r.Method + " " + prefix + strings.Join(append([]string{ref}, rest...), "/")
	f.requests = append(f.requests, key)

	if !f.authorized(r) {
		writeError(w, http.StatusUnauthorized, "401 Unauthorized")
		return
	}
	if status, ok := f.failures[key]; ok {
		writeError(w, status, http.StatusText(status))
		return
	}

	project := f.project(ref)
	if project == nil {
		writeError(w, http.StatusNotFound, "404 Project Not Found")
		return
	}

	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		writeJSON(w, http.StatusOK, map[string]any{
			"id":                  project.ID,
			"path_with_namespace": project.Path,
			"web_url":             f.Server.URL + "/" + project.Path,
		})

	case r.Method == http.MethodGet && matches(rest, "repository", "branches"):
		var list []map[string]any
		for _, name := range sortedKeys(project.Branches) {
			list = append(list, map[string]any{"name": name, "commit": map[string]any{"id": project.Branches[name]}})
		}
		writePage(w, r, list)

	case r.Method == http.MethodGet && matches(rest, "repository", "tags"):
		var list []map[string]any
		for _, name := range sortedKeys(project.Tags) {
			list = append(list, map[string]any{"name": name, "commit": map[string]any{"id": project.Tags[name]}})
		}
		writePage(w, r, list)

	case r.Method == http.MethodGet && matches(rest, "jobs"):
		list := make([]map[string]any, 0, len(project.Jobs))
		for _, j := range project.Jobs {
			list = append(list, f.jobJSON(project, j))
		}
		writePage(w, r, list)

	case r.Method == http.MethodDelete && len(rest) == 3 && rest[0] == "jobs" && rest[2] == "artifacts":
		job := project.job(atoi(rest[1]))
		if job == nil || !job.has("archive") {
			writeError(w, http.StatusNotFound, "404 Not found")
			return
		}
		job.drop(func(a FakeArtifact) bool { return a.FileType != "trace" })
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPost && len(rest) == 3 && rest[0] == "jobs" && rest[2] == "erase":
		job := project.job(atoi(rest[1]))
		if job == nil || len(job.Artifacts) == 0 {
			writeError(w, http.StatusNotFound, "404 Not found")
			return
		}
		job.drop(func(FakeArtifact) bool { return true })
		writeJSON(w, http.StatusCreated, f.jobJSON(project, job))

	default:
		writeError(w, http.StatusNotFound, "404 Not Found")
	}
}

func (f *FakeGitLab) authorized(r *http.Request) bool {
	if f.token == "" {
		return true
	}
	if r.Header.Get("PRIVATE-TOKEN") == f.token {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+f.token
}

func (f *FakeGitLab) project(ref string) *FakeProject {
	for _, p := range f.projects {
		if p.Path == ref || strconv.Itoa(p.ID) == ref {
			return p
		}
	}
	return nil
}

func (f *FakeGitLab) projectByID(id int) *FakeProject {
	for _, p := range f.projects {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f *FakeGitLab) jobJSON(p *FakeProject, j *FakeJob) map[string]any {
	artifacts := make([]map[string]any, 0, len(j.Artifacts))
	for _, a := range j.Artifacts {
		name := "artifacts.zip"
		if a.FileType == "trace" {
			name = "job.log"
		}
		artifacts = append(artifacts, map[string]any{
			"file_type": a.FileType, "filename": name, "size": a.Size,
		})
	}
	name := j.Name
	if name == "" {
		name = "build"
	}
	return map[string]any{
		"id":                  j.ID,
		"name":                name,
		"stage":               "build",
		"status":              "success",
		"ref":                 j.Ref,
		"tag":                 j.Tag,
		"commit":              map[string]any{"id": j.SHA},
		"created_at":          j.CreatedAt,
		"finished_at":         j.FinishedAt,
		"artifacts_expire_at": j.ExpireAt,
		"artifacts":           artifacts,
		"web_url":             fmt.Sprintf("%s/%s/-/jobs/%d", f.Server.URL, p.Path, j.ID),
	}
}

func (p *FakeProject) job(id int) *FakeJob {
	for _, j := range p.Jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (j *FakeJob) has(fileType string) bool {
	for _, a := range j.Artifacts {
		if a.FileType == fileType {
			return true
		}
	}
	return false
}

func (j *FakeJob) drop(match func(FakeArtifact) bool) {
	kept := j.Artifacts[:0]
	for _, a := range j.Artifacts {
		if !match(a) {
			kept = append(kept, a)
		}
	}
	j.Artifacts = kept
}

// writePage serves one page of list using GitLab's page/per_page parameters
// and X-Next-Page header.
func writePage[T any](w http.ResponseWriter, r *http.Request, list []T) {
	page := atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage := atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = 20
	}

	start := (page - 1) * perPage
	if start > len(list) {
		start = len(list)
	}
	end := start + perPage
	if end > len(list) {
		end = len(list)
	}

	totalPages := (len(list) + perPage - 1) / perPage
	w.Header().Set("X-Page", strconv.Itoa(page))
	w.Header().Set("X-Per-Page", strconv.Itoa(perPage))
	w.Header().Set("X-Total", strconv.Itoa(len(list)))
	w.Header().Set("X-Total-Pages", strconv.Itoa(totalPages))
	if page < totalPages {
		w.Header().Set("X-Next-Page", strconv.Itoa(page+1))
	}
	writeJSON(w, http.StatusOK, list[start:end])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func matches(segments []string, want ...string) bool {
	if len(segments) != len(want) {
		return false
	}
	for i := range want {
		if segments[i] != want[i] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

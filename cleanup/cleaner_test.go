package cleanup

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	apihttp "github.com/randalmurphal/gitlab-artifact-cleanup/http"
	"github.com/randalmurphal/gitlab-artifact-cleanup/notify"
)

// =============================================================================
// Fake API
// =============================================================================

type fakeAPI struct {
	project    *Project
	resolveErr error

	pages   [][]Job
	listErr map[int]error // page -> error

	deleteErr map[int]error // job ID -> error
	eraseErr  map[int]error

	// gone holds jobs whose artifacts and logs were removed.
	gone map[int]bool

	listed  []int
	deleted []int
	erased  []int
}

func newFakeAPI(pages ...[]Job) *fakeAPI {
	return &fakeAPI{
		project: &Project{ID: 42, PathWithNamespace: "group/app"},
		pages:   pages,
		gone:    map[int]bool{},
	}
}

func (f *fakeAPI) ResolveProject(_ context.Context, ref string) (*Project, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.project, nil
}

func (f *fakeAPI) ListJobs(_ context.Context, _ *Project, page int) ([]Job, bool, error) {
	f.listed = append(f.listed, page)
	if err := f.listErr[page]; err != nil {
		return nil, false, err
	}
	if page > len(f.pages) {
		return nil, false, nil
	}
	return f.pages[page-1], page < len(f.pages), nil
}

func (f *fakeAPI) DeleteArtifacts(_ context.Context, _ int, jobID int) error {
	f.deleted = append(f.deleted, jobID)
	if err := f.deleteErr[jobID]; err != nil {
		return err
	}
	if f.gone[jobID] {
		return &apihttp.APIError{Service: "gitlab", StatusCode: 404, Message: "404 Not found"}
	}
	f.gone[jobID] = true
	return nil
}

func (f *fakeAPI) EraseJob(_ context.Context, _ int, jobID int) error {
	f.erased = append(f.erased, jobID)
	return f.eraseErr[jobID]
}

func (f *fakeAPI) mutations() int {
	return len(f.deleted) + len(f.erased)
}

func newTestCleaner(api API, opts ...Option) *Cleaner {
	return NewCleaner(api, append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithRunIDs(func() string { return "run-1" }),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	}, opts...)...)
}

func entryFor(t *testing.T, r *Report, jobID int) Entry {
	t.Helper()
	for _, e := range r.Entries {
		if e.Job.ID == jobID {
			return e
		}
	}
	t.Fatalf("no report entry for job %d", jobID)
	return Entry{}
}

func hasEntry(r *Report, jobID int) bool {
	for _, e := range r.Entries {
		if e.Job.ID == jobID {
			return true
		}
	}
	return false
}

// =============================================================================
// Scenarios
// =============================================================================

func TestDeleteOldArtifacts_LatestBranchCommitScenario(t *testing.T) {
	a := Job{ID: 2, Ref: "main", LatestOnRef: true, HasArtifact: true, FinishedAt: finishedAgo(10 * Day)}
	b := Job{ID: 1, Ref: "main", HasArtifact: true, FinishedAt: finishedAgo(10 * Day)}
	api := newFakeAPI([]Job{a, b})

	policy := Policy{MinAge: 7 * Day, KeepLatestBranchCommit: true}
	report, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/app", policy)
	if err != nil {
		t.Fatalf("DeleteOldArtifacts() error = %v", err)
	}

	if hasEntry(report, a.ID) {
		t.Error("job A (latest on branch) must be excluded")
	}
	if got := entryFor(t, report, b.ID).Action; got != ActionDeleted {
		t.Errorf("job B action = %q, want %q", got, ActionDeleted)
	}
	if len(api.deleted) != 1 || api.deleted[0] != b.ID {
		t.Errorf("deleted = %v, want [%d]", api.deleted, b.ID)
	}
	if report.Scanned != 2 {
		t.Errorf("Scanned = %d, want 2", report.Scanned)
	}
}

func TestDeleteOldArtifacts_TagScenario(t *testing.T) {
	c := Job{ID: 3, Ref: "v1.0", IsTag: true, HasArtifact: true, FinishedAt: finishedAgo(10 * Day)}
	api := newFakeAPI([]Job{c})

	policy := Policy{MinAge: 7 * Day, KeepTags: true}
	report, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/app", policy)
	if err != nil {
		t.Fatalf("DeleteOldArtifacts() error = %v", err)
	}
	if len(report.Entries) != 0 {
		t.Errorf("entries = %+v, want none", report.Entries)
	}
	if api.mutations() != 0 {
		t.Errorf("mutations = %d, want 0", api.mutations())
	}
}

func TestDeleteOldArtifacts_KeptScenario(t *testing.T) {
	d := Job{ID: 4, Kept: true, HasArtifact: true, HasTrace: true, FinishedAt: finishedAgo(10 * Day)}

	policies := []Policy{
		{},
		{MinAge: 7 * Day, DeleteLogs: true},
		{MinAge: 7 * Day, KeepLatestBranchCommit: true, KeepTags: true},
	}
	for _, policy := range policies {
		api := newFakeAPI([]Job{d})
		report, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/app", policy)
		if err != nil {
			t.Fatalf("DeleteOldArtifacts() error = %v", err)
		}
		if len(report.Entries) != 0 || api.mutations() != 0 {
			t.Errorf("policy %s: kept job was touched", policy)
		}
	}
}

func TestDeleteOldArtifacts_CountsKeptJobs(t *testing.T) {
	jobs := []Job{
		{ID: 3, Ref: "gone-branch", Kept: true, HasArtifact: true, ArtifactSize: 50 << 20, FinishedAt: finishedAgo(400 * Day)},
		{ID: 2, Ref: "gone-branch", HasArtifact: true, FinishedAt: finishedAgo(400 * Day)},
		{ID: 1, Kept: true, HasArtifact: true, FinishedAt: finishedAgo(time.Hour)},
	}
	api := newFakeAPI(jobs)

	report, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/app", DefaultPolicy())
	if err != nil {
		t.Fatalf("DeleteOldArtifacts() error = %v", err)
	}
	if report.Kept != 2 {
		t.Errorf("Kept = %d, want 2", report.Kept)
	}
	if len(report.Entries) != 1 || report.Entries[0].Job.ID != 2 {
		t.Errorf("entries = %+v, want only job 2", report.Entries)
	}
	if !strings.HasSuffix(report.Summary(), `Skipped "2" jobs whose artifacts are marked to be kept.`) {
		t.Errorf("Summary() = %s", report.Summary())
	}
}

// =============================================================================
// Modes
// =============================================================================

func TestDeleteOldArtifacts_DryRunNeverMutates(t *testing.T) {
	jobs := []Job{
		{ID: 10, Ref: "main", HasArtifact: true, FinishedAt: finishedAgo(30 * Day)},
		{ID: 9, Ref: "old", HasArtifact: true, HasTrace: true, FinishedAt: finishedAgo(20 * Day)},
		{ID: 8, HasTrace: true, FinishedAt: finishedAgo(20 * Day)},
		{ID: 7, Kept: true, HasArtifact: true, FinishedAt: finishedAgo(20 * Day)},
		{ID: 6, HasArtifact: true, FinishedAt: finishedAgo(time.Hour)},
	}
	api := newFakeAPI(jobs[:2], jobs[2:])

	policy := NewPolicy(7, KeepNone)
	policy.DeleteLogs = true
	policy.DryRun = true

	report, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/app", policy)
	if err != nil {
		t.Fatalf("DeleteOldArtifacts() error = %v", err)
	}
	if api.mutations() != 0 {
		t.Errorf("dry run issued %d mutating requests", api.mutations())
	}
	if len(report.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(report.Entries))
	}
	for _, e := range report.Entries {
		if e.Action != ActionWouldDelete {
			t.Errorf("job %d action = %q, want %q", e.Job.ID, e.Action, ActionWouldDelete)
		}
	}
	if report.Scanned != len(jobs) {
		t.Errorf("Scanned = %d, want %d", report.Scanned, len(jobs))
	}
}

func TestDeleteOldArtifacts_DeleteLogsErasesJob(t *testing.T) {
	job := Job{ID: 5, HasArtifact: true, HasTrace: true, FinishedAt: finishedAgo(10 * Day)}
	api := newFakeAPI([]Job{job})

	policy := NewPolicy(7, KeepNone)
	policy.DeleteLogs = true

	report, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/app", policy)
	if err != nil {
		t.Fatalf("DeleteOldArtifacts() error = %v", err)
	}
	if len(api.deleted) != 1 || len(api.erased) != 1 {
		t.Errorf("deleted=%v erased=%v, want one of each", api.deleted, api.erased)
	}
	if got := entryFor(t, report, job.ID).Action; got != ActionDeleted {
		t.Errorf("action = %q, want %q", got, ActionDeleted)
	}
}

func TestDeleteOldArtifacts_TraceOnlyJobCountsAsDeletedWhenErased(t *testing.T) {
	job := Job{ID: 5, HasTrace: true, FinishedAt: finishedAgo(10 * Day)}
	api := newFakeAPI([]Job{job})
	api.gone[job.ID] = true // no artifacts left to delete

	policy := NewPolicy(7, KeepNone)
	policy.DeleteLogs = true

	report, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/app", policy)
	if err != nil {
		t.Fatalf("DeleteOldArtifacts() error = %v", err)
	}
	if got := entryFor(t, report, job.ID).Action; got != ActionDeleted {
		t.Errorf("action = %q, want %q", got, ActionDeleted)
	}
}

func TestDeleteOldArtifacts_SecondRunReportsAlreadyAbsent(t *testing.T) {
	jobs := []Job{
		{ID: 3, Ref: "a", HasArtifact: true, FinishedAt: finishedAgo(10 * Day)},
		{ID: 2, Ref: "b", HasArtifact: true, FinishedAt: finishedAgo(11 * Day)},
	}
	api := newFakeAPI(jobs)
	cleaner := newTestCleaner(api)
	policy := NewPolicy(7, KeepNone)

	first, err := cleaner.DeleteOldArtifacts(context.Background(), "group/app", policy)
	if err != nil {
		t.Fatalf("first run error = %v", err)
	}
	if first.Count(ActionDeleted) != 2 {
		t.Fatalf("first run deleted %d, want 2", first.Count(ActionDeleted))
	}

	second, err := cleaner.DeleteOldArtifacts(context.Background(), "group/app", policy)
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if second.HasFailures() {
		t.Errorf("second run has failures: %+v", second.Failures())
	}
	if second.Count(ActionAlreadyAbsent) != 2 {
		t.Errorf("second run already absent = %d, want 2", second.Count(ActionAlreadyAbsent))
	}
}

// =============================================================================
// Failure handling
// =============================================================================

func TestDeleteOldArtifacts_PerJobFailureDoesNotAbort(t *testing.T) {
	jobs := []Job{
		{ID: 3, HasArtifact: true, FinishedAt: finishedAgo(10 * Day)},
		{ID: 2, HasArtifact: true, FinishedAt: finishedAgo(10 * Day)},
		{ID: 1, HasArtifact: true, FinishedAt: finishedAgo(10 * Day)},
	}
	api := newFakeAPI(jobs)
	api.deleteErr = map[int]error{
		2: &apihttp.APIError{Service: "gitlab", StatusCode: 500, Message: "boom"},
		3: &apihttp.APIError{Service: "gitlab", StatusCode: 403, Message: "403 Forbidden"},
	}

	var events []notify.Event
	ctx := notify.WithNotifier(context.Background(), recorder{events: &events})

	report, err := newTestCleaner(api).DeleteOldArtifacts(ctx, "group/app", NewPolicy(7, KeepNone))
	if err != nil {
		t.Fatalf("DeleteOldArtifacts() error = %v", err)
	}
	if len(api.deleted) != 3 {
		t.Errorf("deleted calls = %v, want all three jobs attempted", api.deleted)
	}
	if !report.HasFailures() || len(report.Failures()) != 2 {
		t.Fatalf("failures = %+v, want 2", report.Failures())
	}

	e := entryFor(t, report, 2)
	if !strings.HasPrefix(e.Disposition(), "failed: ") || !strings.Contains(e.Disposition(), "boom") {
		t.Errorf("Disposition() = %q, want failed: <reason>", e.Disposition())
	}
	if got := entryFor(t, report, 1).Action; got != ActionDeleted {
		t.Errorf("job 1 action = %q, want %q", got, ActionDeleted)
	}

	var jobFailed int
	for _, ev := range events {
		if ev.Type == notify.EventJobFailed {
			jobFailed++
		}
	}
	if jobFailed != 2 {
		t.Errorf("job_failed events = %d, want 2", jobFailed)
	}
	last := events[len(events)-1]
	if last.Type != notify.EventCleanupCompleted || last.Severity != notify.SeverityWarning {
		t.Errorf("last event = %s/%s, want cleanup_completed/warning", last.Type, last.Severity)
	}
}

func TestDeleteOldArtifacts_RepeatedForbiddenAborts(t *testing.T) {
	var jobs []Job
	for id := 5; id >= 1; id-- {
		jobs = append(jobs, Job{ID: id, HasArtifact: true, FinishedAt: finishedAgo(10 * Day)})
	}
	api := newFakeAPI(jobs)
	api.deleteErr = map[int]error{}
	for _, j := range jobs {
		api.deleteErr[j.ID] = &apihttp.APIError{Service: "gitlab", StatusCode: 403, Message: "403 Forbidden"}
	}

	report, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/app", NewPolicy(7, KeepNone))

	var authErr *AuthorizationError
	if !errors.As(err, &authErr) || !apihttp.IsForbidden(err) {
		t.Fatalf("error = %v, want forbidden *AuthorizationError", err)
	}
	if len(api.deleted) != DefaultForbiddenLimit {
		t.Errorf("deleted calls = %v, want %d", api.deleted, DefaultForbiddenLimit)
	}
	if report == nil || report.Count(ActionFailed) != DefaultForbiddenLimit {
		t.Errorf("partial report = %+v, want %d failures", report, DefaultForbiddenLimit)
	}
}

func TestDeleteOldArtifacts_ForbiddenAfterSuccessContinues(t *testing.T) {
	var jobs []Job
	for id := 5; id >= 1; id-- {
		jobs = append(jobs, Job{ID: id, HasArtifact: true, FinishedAt: finishedAgo(10 * Day)})
	}
	forbidden := &apihttp.APIError{Service: "gitlab", StatusCode: 403, Message: "403 Forbidden"}

	t.Run("a deletion succeeded first", func(t *testing.T) {
		api := newFakeAPI(jobs)
		api.deleteErr = map[int]error{4: forbidden, 3: forbidden, 2: forbidden, 1: forbidden}

		report, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/app", NewPolicy(7, KeepNone))
		if err != nil {
			t.Fatalf("DeleteOldArtifacts() error = %v", err)
		}
		if report.Count(ActionDeleted) != 1 || report.Count(ActionFailed) != 4 {
			t.Errorf("deleted=%d failed=%d, want 1/4", report.Count(ActionDeleted), report.Count(ActionFailed))
		}
	})

	t.Run("other failures break the streak", func(t *testing.T) {
		api := newFakeAPI(jobs)
		api.deleteErr = map[int]error{
			5: forbidden, 4: forbidden,
			3: &apihttp.APIError{Service: "gitlab", StatusCode: 500},
			2: forbidden, 1: forbidden,
		}

		_, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/app", NewPolicy(7, KeepNone))
		if err != nil {
			t.Fatalf("DeleteOldArtifacts() error = %v", err)
		}
		if len(api.deleted) != 5 {
			t.Errorf("deleted calls = %v, want all five", api.deleted)
		}
	})

	t.Run("limit disabled", func(t *testing.T) {
		api := newFakeAPI(jobs)
		api.deleteErr = map[int]error{5: forbidden, 4: forbidden, 3: forbidden, 2: forbidden, 1: forbidden}

		report, err := newTestCleaner(api, WithForbiddenLimit(0)).DeleteOldArtifacts(context.Background(), "group/app", NewPolicy(7, KeepNone))
		if err != nil {
			t.Fatalf("DeleteOldArtifacts() error = %v", err)
		}
		if report.Count(ActionFailed) != 5 {
			t.Errorf("failed = %d, want 5", report.Count(ActionFailed))
		}
	})
}

func TestDeleteOldArtifacts_RejectedCredentialOnDeleteAborts(t *testing.T) {
	jobs := []Job{
		{ID: 2, HasArtifact: true, FinishedAt: finishedAgo(10 * Day)},
		{ID: 1, HasArtifact: true, FinishedAt: finishedAgo(10 * Day)},
	}
	api := newFakeAPI(jobs)
	api.deleteErr = map[int]error{2: &apihttp.APIError{Service: "gitlab", StatusCode: 401}}

	report, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/app", NewPolicy(7, KeepNone))

	var authErr *AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want *AuthorizationError", err)
	}
	if report == nil || len(report.Entries) != 1 {
		t.Fatalf("expected partial report with one entry, got %+v", report)
	}
	if len(api.deleted) != 1 {
		t.Errorf("deleted calls = %v, want the run to stop after the first", api.deleted)
	}
}

func TestDeleteOldArtifacts_ResolveErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target func(error) bool
	}{
		{
			name: "not found",
			err:  &apihttp.APIError{Service: "gitlab", StatusCode: 404},
			target: func(err error) bool {
				var e *ProjectNotFoundError
				return errors.As(err, &e) && e.Project == "group/missing"
			},
		},
		{
			name: "unauthorized",
			err:  &apihttp.APIError{Service: "gitlab", StatusCode: 401},
			target: func(err error) bool {
				var e *AuthorizationError
				return errors.As(err, &e)
			},
		},
		{
			name: "forbidden",
			err:  &apihttp.APIError{Service: "gitlab", StatusCode: 403},
			target: func(err error) bool {
				var e *AuthorizationError
				return errors.As(err, &e)
			},
		},
		{
			name: "server error",
			err:  &apihttp.APIError{Service: "gitlab", StatusCode: 502},
			target: func(err error) bool {
				var e *RemoteServiceError
				return errors.As(err, &e) && e.StatusCode() == 502
			},
		},
		{
			name: "transport error",
			err:  errors.New("dial tcp: connection refused"),
			target: func(err error) bool {
				var e *RemoteServiceError
				return errors.As(err, &e) && e.StatusCode() == 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			api.resolveErr = tt.err

			report, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/missing", DefaultPolicy())
			if !tt.target(err) {
				t.Errorf("error = %#v, wrong kind", err)
			}
			if !IsFatal(err) {
				t.Errorf("IsFatal(%v) = false", err)
			}
			if report != nil {
				t.Error("no report expected when the project cannot be resolved")
			}
			if len(api.listed) != 0 {
				t.Error("jobs must not be listed when resolution fails")
			}
		})
	}
}

func TestDeleteOldArtifacts_ListingFailureIsFatal(t *testing.T) {
	page1 := []Job{{ID: 9, HasArtifact: true, FinishedAt: finishedAgo(10 * Day)}}
	page2 := []Job{{ID: 8, HasArtifact: true, FinishedAt: finishedAgo(10 * Day)}}
	api := newFakeAPI(page1, page2)
	api.listErr = map[int]error{2: &apihttp.APIError{Service: "gitlab", StatusCode: 500}}

	report, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/app", NewPolicy(7, KeepNone))

	var remote *RemoteServiceError
	if !errors.As(err, &remote) {
		t.Fatalf("error = %v, want *RemoteServiceError", err)
	}
	if report == nil || report.Count(ActionDeleted) != 1 {
		t.Errorf("first page should have been processed before the failure: %+v", report)
	}
}

func TestDeleteOldArtifacts_ListingForbiddenIsAuthorizationError(t *testing.T) {
	api := newFakeAPI()
	api.listErr = map[int]error{1: &apihttp.APIError{Service: "gitlab", StatusCode: 403}}

	_, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/app", DefaultPolicy())

	var authErr *AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want *AuthorizationError", err)
	}
}

func TestDeleteOldArtifacts_InvalidPolicy(t *testing.T) {
	api := newFakeAPI()
	_, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/app", Policy{MinAge: -Day})
	if err == nil {
		t.Fatal("expected error for negative MinAge")
	}
	if IsFatal(err) {
		t.Error("policy errors are not remote failures")
	}
}

func TestDeleteOldArtifacts_ExhaustsPagination(t *testing.T) {
	var pages [][]Job
	for p := 0; p < 4; p++ {
		pages = append(pages, []Job{{ID: 100 - p, Ref: "x", HasArtifact: true, FinishedAt: finishedAgo(9 * Day)}})
	}
	api := newFakeAPI(pages...)

	report, err := newTestCleaner(api).DeleteOldArtifacts(context.Background(), "group/app", NewPolicy(7, KeepNone))
	if err != nil {
		t.Fatalf("DeleteOldArtifacts() error = %v", err)
	}
	if len(api.listed) != 4 {
		t.Errorf("pages listed = %v, want 4", api.listed)
	}
	if report.Scanned != 4 || report.Count(ActionDeleted) != 4 {
		t.Errorf("scanned=%d deleted=%d, want 4/4", report.Scanned, report.Count(ActionDeleted))
	}
	// Newest first: entries follow listing order.
	if report.Entries[0].Job.ID != 100 || report.Entries[3].Job.ID != 97 {
		t.Errorf("entries out of listing order: %+v", report.Entries)
	}
}

func TestRun_StopsAtFirstFatalError(t *testing.T) {
	api := &multiProjectAPI{
		fakeAPI: newFakeAPI([]Job{{ID: 1, HasArtifact: true, FinishedAt: finishedAgo(10 * Day)}}),
		missing: "group/missing",
	}

	reports, err := newTestCleaner(api).Run(context.Background(),
		[]string{"group/app", "group/missing", "group/never"}, NewPolicy(7, KeepNone))

	var notFound *ProjectNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want *ProjectNotFoundError", err)
	}
	if len(reports) != 1 {
		t.Errorf("reports = %d, want 1", len(reports))
	}
	if api.resolved != 2 {
		t.Errorf("resolved %d projects, want 2", api.resolved)
	}
}

type multiProjectAPI struct {
	*fakeAPI
	missing  string
	resolved int
}

func (m *multiProjectAPI) ResolveProject(ctx context.Context, ref string) (*Project, error) {
	m.resolved++
	if ref == m.missing {
		return nil, &apihttp.APIError{Service: "gitlab", StatusCode: 404}
	}
	return m.fakeAPI.ResolveProject(ctx, ref)
}

type recorder struct {
	events *[]notify.Event
}

func (r recorder) Notify(_ context.Context, e notify.Event) error {
	*r.events = append(*r.events, e)
	return nil
}

package cleanup

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Action is what happened to a candidate job.
type Action string

// Actions recorded in a report.
const (
	ActionWouldDelete   Action = "would delete"
	ActionDeleted       Action = "deleted"
	ActionAlreadyAbsent Action = "already absent"
	ActionFailed        Action = "failed"
)

// timeLayout is how job timestamps are shown in rendered reports.
const timeLayout = "2006-01-02 15:04:05"

// Entry is one (job, action) pair of a report.
type Entry struct {
	Job    Job
	Action Action
	Err    error // set when Action is ActionFailed
}

// Disposition renders the action, including the failure reason.
func (e Entry) Disposition() string {
	if e.Action == ActionFailed && e.Err != nil {
		return fmt.Sprintf("%s: %v", ActionFailed, e.Err)
	}
	return string(e.Action)
}

// Report is the append-only outcome of one run over one project.
type Report struct {
	RunID     string
	Project   *Project
	Policy    Policy
	StartedAt time.Time

	// Scanned counts every job the listing returned.
	Scanned int

	// Kept counts jobs skipped only because they are marked to be kept.
	Kept int

	Entries []Entry

	// Location is used to display timestamps; nil means local time.
	Location *time.Location

	forbiddenStreak int
}

func (r *Report) add(e Entry) {
	r.Entries = append(r.Entries, e)
}

// ProjectPath returns the project path, or "" before the project was resolved.
func (r *Report) ProjectPath() string {
	if r.Project == nil {
		return ""
	}
	return r.Project.PathWithNamespace
}

// Candidates returns the entries of jobs selected for deletion that did not fail.
func (r *Report) Candidates() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Action != ActionFailed {
			out = append(out, e)
		}
	}
	return out
}

// Failures returns the entries whose deletion failed.
func (r *Report) Failures() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Action == ActionFailed {
			out = append(out, e)
		}
	}
	return out
}

// HasFailures reports whether any deletion failed.
func (r *Report) HasFailures() bool {
	for _, e := range r.Entries {
		if e.Action == ActionFailed {
			return true
		}
	}
	return false
}

// Count returns how many entries carry the given action.
func (r *Report) Count(action Action) int {
	n := 0
	for _, e := range r.Entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// ReclaimedBytes sums the sizes of everything deleted (or, in a dry run, that
// would be deleted).
func (r *Report) ReclaimedBytes() int64 {
	var total int64
	for _, e := range r.Entries {
		if e.Action == ActionDeleted || e.Action == ActionWouldDelete {
			total += e.Job.ReclaimableSize(r.Policy.DeleteLogs)
		}
	}
	return total
}

// Render writes one line per entry followed by a summary line.
func (r *Report) Render(w io.Writer) error {
	for _, e := range r.Entries {
		if _, err := fmt.Fprintf(w, "[%s] %s\n", e.Disposition(), r.describe(e.Job)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, r.Summary())
	return err
}

// Summary renders the project totals.
func (r *Report) Summary() string {
	var line string
	if found := len(r.Entries); found == 0 {
		line = fmt.Sprintf("Found no old dangling jobs with attached artifacts in project %q.", r.ProjectPath())
	} else {
		line = fmt.Sprintf("Found %q old dangling jobs, with %q of attached artifacts in total in project %q.",
			fmt.Sprint(found), HumanSize(r.ReclaimedBytes()), r.ProjectPath())
	}
	if failed := r.Count(ActionFailed); failed > 0 {
		line += fmt.Sprintf(" %q of them could not be deleted.", fmt.Sprint(failed))
	}
	if r.Kept > 0 {
		line += fmt.Sprintf(" Skipped %q jobs whose artifacts are marked to be kept.", fmt.Sprint(r.Kept))
	}
	return line
}

func (r *Report) describe(job Job) string {
	var sb strings.Builder

	what := "artifacts"
	if r.Policy.DeleteLogs {
		what = "artifacts and log"
	}
	fmt.Fprintf(&sb, "%s of job %q", what, fmt.Sprint(job.ID))
	if job.FinishedAt != nil {
		loc := r.Location
		if loc == nil {
			loc = time.Local
		}
		fmt.Fprintf(&sb, ", finished at %q", job.FinishedAt.In(loc).Format(timeLayout))
	}
	fmt.Fprintf(&sb, ", size %q", HumanSize(job.ReclaimableSize(r.Policy.DeleteLogs)))

	switch branch, tag := job.Branch(), job.Tag(); {
	case branch != "":
		fmt.Fprintf(&sb, ", linked to branch %q", branch)
	case tag != "":
		fmt.Fprintf(&sb, ", linked to tag %q", tag)
	default:
		sb.WriteString(", dangling")
	}
	return sb.String()
}

// RenderTotals writes the grand total over several project reports.
func RenderTotals(w io.Writer, reports []*Report) error {
	var found int
	var size int64
	for _, r := range reports {
		found += len(r.Entries)
		size += r.ReclaimedBytes()
	}
	if found == 0 {
		_, err := fmt.Fprintln(w, "Found no old dangling jobs with attached artifacts in any project.")
		return err
	}
	_, err := fmt.Fprintf(w, "Found %q old dangling jobs, with %q of attached artifacts in total.\n",
		fmt.Sprint(found), HumanSize(size))
	return err
}

// HumanSize formats a byte count with binary units, e.g. "1.2 MiB".
func HumanSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

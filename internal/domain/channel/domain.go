package channel

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusWorking Status = "working"
	StatusDead    Status = "dead"
)

// Reasons used when no HTTP response was obtained.
const (
	ReasonTimeout    = "Timeout"
	ReasonConnection = "Connection Error"
	ReasonCanceled   = "Canceled"
	ReasonBadURL     = "Invalid URL"
)

type Channel struct {
	Name    string      `json:"name"`
	URL     string      `json:"url"`
	Group   string      `json:"group,omitempty"`
	Source  string      `json:"source,omitempty"`
	Headers http.Header `json:"-"`
}

// Result is the outcome of checking one channel during a run.
type Result struct {
	Channel   Channel       `json:"channel"`
	Status    Status        `json:"status"`
	Code      int           `json:"code"`
	Reason    string        `json:"reason,omitempty"`
	Attempts  int           `json:"attempts"`
	Latency   time.Duration `json:"latency"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (r Result) Working() bool { return r.Status == StatusWorking }

// ErrorLabel renders the error column of the report, e.g. "Forbidden (403)".
func (r Result) ErrorLabel() string {
	reason := r.Reason
	if r.Code == 0 {
		if reason == "" {
			reason = ReasonConnection
		}
		return reason + " (N/A)"
	}
	if reason == "" {
		reason = http.StatusText(r.Code)
	}
	if reason == "" {
		reason = "HTTP Error"
	}
	return fmt.Sprintf("%s (%d)", reason, r.Code)
}

// PlausibleCode reports whether code may appear in the dead table.
func PlausibleCode(code int) bool {
	return code == 0 || (code >= 100 && code <= 599)
}

type Run struct {
	ID         uuid.UUID `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Working    int       `json:"working"`
	Dead       int       `json:"dead"`
}

// Tally fills the run counters from results.
func (r *Run) Tally(results []Result) {
	r.Total, r.Working, r.Dead = len(results), 0, 0
	for _, res := range results {
		if res.Working() {
			r.Working++
		} else {
			r.Dead++
		}
	}
}

// State is the last known status of a channel across runs.
type State struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Status    Status    `json:"status"`
	Code      int       `json:"code"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Change records a channel flipping between working and dead.
// Old is nil the first time a channel is seen.
type Change struct {
	RunID uuid.UUID `json:"run_id"`
	Name  string    `json:"name"`
	URL   string    `json:"url"`
	Old   *Status   `json:"old,omitempty"`
	New   Status    `json:"new"`
	Code  int       `json:"code"`
	At    time.Time `json:"at"`
}

// Diff compares results with the previous states keyed by channel name.
// A channel seen for the first time only counts as a change when it is dead.
func Diff(runID uuid.UUID, prev map[string]State, results []Result, at time.Time) []Change {
	var out []Change
	for _, r := range results {
		st, ok := prev[r.Channel.Name]
		switch {
		case !ok && r.Working():
			continue
		case ok && st.Status == r.Status:
			continue
		}
		ch := Change{RunID: runID, Name: r.Channel.Name, URL: r.Channel.URL, New: r.Status, Code: r.Code, At: at}
		if ok {
			old := st.Status
			ch.Old = &old
		}
		out = append(out, ch)
	}
	return out
}

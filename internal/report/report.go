// Package report is the error channel of the client core. Failures that must
// not reach the user (poll errors, mark-read errors, realtime feed errors) are
// reported here for operational logging.
package report

import (
	"log/slog"
	"sync"
	"time"
)

// Reporter receives non-fatal failures from a named component.
type Reporter interface {
	Report(component string, err error)
}

// LogReporter writes every report to a structured logger.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter returns a Reporter backed by logger.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(component string, err error) {
	if err == nil {
		return
	}
	r.logger.Error("component failure",
		slog.String("component", component),
		slog.String("error", err.Error()),
	)
}

// Entry is one recorded failure.
type Entry struct {
	Component string
	Err       error
	At        time.Time
}

// Recorder keeps the most recent reports in memory and forwards them to an
// optional next Reporter. The status bar reads the latest entry from it.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
	next    Reporter
}

// NewRecorder keeps at most limit entries (0 means unbounded) and forwards to
// next when it is non-nil.
func NewRecorder(limit int, next Reporter) *Recorder {
	return &Recorder{limit: limit, next: next}
}

func (r *Recorder) Report(component string, err error) {
	if err == nil {
		return
	}

	r.mu.Lock()
	r.entries = append(r.entries, Entry{Component: component, Err: err, At: time.Now()})
	if r.limit > 0 && len(r.entries) > r.limit {
		r.entries = r.entries[len(r.entries)-r.limit:]
	}
	r.mu.Unlock()

	if r.next != nil {
		r.next.Report(component, err)
	}
}

// Entries returns a copy of the recorded reports, oldest first.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Last returns the most recent report.
func (r *Recorder) Last() (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) == 0 {
		return Entry{}, false
	}
	return r.entries[len(r.entries)-1], true
}

// Messages returns the error text of every recorded report.
func (r *Recorder) Messages() []string {
	entries := r.Entries()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Err.Error())
	}
	return out
}

package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is one reported entity outcome.
type Record struct {
	// Source is the document the entity came from.
	Source string

	// Kind is the entity kind.
	Kind string

	// Name is the entity name, or its identifier when unnamed.
	Name string

	// Outcome is the final disposition.
	Outcome Outcome

	// EntityID is the remote identifier, when known.
	EntityID interface{}

	// Err is set for failed records.
	Err error
}

// Report accumulates per-entity outcomes across the documents of one
// deploy or undeploy run. The run succeeds when no record failed.
type Report struct {
	// RunID uniquely identifies the run.
	RunID string

	// Started is when the run began.
	Started time.Time

	// Undeploy records whether this was a teardown run.
	Undeploy bool

	records []Record
	counts  map[Outcome]int
	files   int
}

// NewReport returns an empty report with a fresh run id.
func NewReport(undeploy bool) *Report {
	return &Report{
		RunID:    uuid.NewString(),
		Started:  time.Now(),
		Undeploy: undeploy,
		counts:   make(map[Outcome]int),
	}
}

// Add appends one entity outcome.
func (r *Report) Add(rec Record) {
	r.records = append(r.records, rec)
	r.counts[rec.Outcome]++
}

// AddFile counts a processed document.
func (r *Report) AddFile() {
	r.files++
}

// Files returns the number of processed documents.
func (r *Report) Files() int {
	return r.files
}

// Records returns all outcomes in the order they were recorded.
func (r *Report) Records() []Record {
	return append([]Record(nil), r.records...)
}

// Count returns the number of records with the given outcome.
func (r *Report) Count(outcome Outcome) int {
	return r.counts[outcome]
}

// Failures returns the failed records.
func (r *Report) Failures() []Record {
	var failed []Record
	for _, rec := range r.records {
		if rec.Outcome == OutcomeFailed {
			failed = append(failed, rec)
		}
	}
	return failed
}

// Success reports whether the run finished without a failed record.
func (r *Report) Success() bool {
	return r.counts[OutcomeFailed] == 0
}

// Summary renders the outcome counts in a fixed order, e.g.
// "3 created, 1 updated, 2 unchanged".
func (r *Report) Summary() string {
	order := []Outcome{OutcomeCreated, OutcomeUpdated, OutcomeUnchanged, OutcomeDeleted, OutcomeFailed}
	var parts []string
	for _, outcome := range order {
		if n := r.counts[outcome]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, outcome))
		}
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

// Duration returns the elapsed time since the run started.
func (r *Report) Duration() time.Duration {
	return time.Since(r.Started)
}

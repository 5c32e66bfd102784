package engine

import (
	"time"

	"github.com/cargotrail/schemarun/internal/history"
)

// Item is the outcome of one migration within a run.
type Item struct {
	Name    string
	Version string
	Status  history.Status
	// Error carries the operation failure message for FAILED items.
	Error string
	// SkipReason explains which unmet dependency caused a SKIPPED item.
	SkipReason string
	DurationMS int64
	// AlreadyApplied marks a COMPLETED item that was satisfied by a prior
	// run, so its operation was not invoked this time.
	AlreadyApplied bool
}

// Report is the single source of truth for one run: every migration in the
// resolved order with its final status. Exit-code policy belongs to the
// caller.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Items      []Item
}

// Counts returns the number of items per terminal status.
func (r *Report) Counts() (completed, failed, skipped int) {
	for _, it := range r.Items {
		switch it.Status {
		case history.StatusCompleted:
			completed++
		case history.StatusFailed:
			failed++
		case history.StatusSkipped:
			skipped++
		}
	}
	return completed, failed, skipped
}

// OK reports whether every item reached COMPLETED.
func (r *Report) OK() bool {
	_, failed, skipped := r.Counts()
	return failed == 0 && skipped == 0
}

// Applied returns the number of operations actually invoked and completed in
// this run, excluding items satisfied by prior runs.
func (r *Report) Applied() int {
	n := 0
	for _, it := range r.Items {
		if it.Status == history.StatusCompleted && !it.AlreadyApplied {
			n++
		}
	}
	return n
}

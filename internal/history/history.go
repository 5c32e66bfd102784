package history

import "time"

// Status is the persisted execution state of a migration attempt.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusSkipped   Status = "SKIPPED"
)

// Terminal reports whether no further automatic transition occurs from s
// without a new run.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Record is the ledger row for one (name, version) identity. It is created
// implicitly on the first attempt and overwritten on every later attempt,
// so only the latest outcome is retained per identity.
type Record struct {
	Name         string
	Version      string
	Status       Status
	ErrorMessage string     // set only for FAILED
	ExecutedAt   *time.Time // when the latest attempt began
	CompletedAt  *time.Time // when the latest attempt reached a terminal status
	DurationMS   int64
}

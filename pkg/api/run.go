package api

import "time"

type (
	// RunStatus represents the lifecycle state of a run
	RunStatus string

	// Run describes a unit of work that owns one property store
	Run struct {
		CreatedAt   time.Time `json:"created_at"`
		CompletedAt time.Time `json:"completed_at,omitzero"`
		ID          RunID     `json:"id"`
		Job         string    `json:"job"`
		Status      RunStatus `json:"status"`
		Number      int       `json:"number"`
	}
)

const (
	RunActive    RunStatus = "active"
	RunCompleted RunStatus = "completed"
)

// IsCompleted reports whether the run has been finalized
func (r *Run) IsCompleted() bool {
	return r.Status == RunCompleted
}

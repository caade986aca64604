package store

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusFailed  Status = "failed"
)

// JobRecord is the persisted state of one named notification job.
type JobRecord struct {
	ID          string     `db:"id" json:"id"`
	JobName     string     `db:"job_name" json:"job_name"`
	Status      Status     `db:"status" json:"status"`
	LastRun     *time.Time `db:"last_run" json:"last_run,omitempty"`
	NextRun     time.Time  `db:"next_run" json:"next_run"`
	LockedBy    *string    `db:"locked_by" json:"locked_by,omitempty"`
	LockedUntil *time.Time `db:"locked_until" json:"locked_until,omitempty"`
	LastError   *string    `db:"last_error" json:"last_error,omitempty"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// RunID is the claim token of the current execution, empty when not running.
func (r *JobRecord) RunID() string {
	if r.LockedBy == nil {
		return ""
	}
	return *r.LockedBy
}

package models

import "time"

// MigrationTask tracks one content-repository migration attempt for a
// catalog entry. Terminal once completed or failed; failed tasks are not
// retried automatically.
type MigrationTask struct {
	ID          int64      `json:"id"`
	EntryID     int64      `json:"entry_id"`
	Status      string     `json:"status"` // "queued", "processing", "completed", "failed"
	Progress    int        `json:"progress"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

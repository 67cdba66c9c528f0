package model

import "time"

// Task is one host's unit of update work, either within a job or manually
// triggered (JobID nil). Immutable once terminal; the host's
// last_status/last_message mirror the most recently completed task.
type Task struct {
	ID           string    `json:"id"`
	HostID       string    `json:"host_id"`
	JobID        *string   `json:"job_id,omitempty"`
	FirmwarePath string    `json:"firmware_path"`
	DryRun       bool      `json:"dry_run"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	Status       string    `json:"status"`
	Message      *string   `json:"message,omitempty"`
}

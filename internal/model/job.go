package model

import "time"

// Job is one firing of a schedule. At most one job exists per
// (schedule_id, start_time) pair. The row is created before any per-host
// work is submitted so that a crash during dispatch cannot lose it.
type Job struct {
	ID         string     `json:"id"`
	ScheduleID string     `json:"schedule_id"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	Status     string     `json:"status"`
	Message    *string    `json:"message,omitempty"`
}

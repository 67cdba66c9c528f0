package activity

import (
	"time"

	"github.com/openfleet/maestro/internal/model"
)

// ScheduleContext bundles all data a job workflow needs about its schedule.
type ScheduleContext struct {
	Schedule model.Schedule `json:"schedule"`
	Hosts    []model.Host   `json:"hosts"`
}

// MaxConcurrent is the schedule's concurrency cap, falling back to def
// when the schedule doesn't set one.
func (c *ScheduleContext) MaxConcurrent(def int) int {
	if c.Schedule.MaxConcurrent != nil && *c.Schedule.MaxConcurrent > 0 {
		return *c.Schedule.MaxConcurrent
	}
	if def < 1 {
		def = 1
	}
	return def
}

// JobSummary bundles the data needed for a job completion notification.
type JobSummary struct {
	JobID        string         `json:"job_id"`
	ScheduleName string         `json:"schedule_name"`
	Status       string         `json:"status"`
	Message      string         `json:"message"`
	StartTime    time.Time      `json:"start_time"`
	TaskCounts   map[string]int `json:"task_counts"`
}

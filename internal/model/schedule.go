package model

import (
	"strconv"
	"time"
)

// Schedule is a recurring or one-shot firmware update policy. CronExpr and
// IntervalMinutes are mutually exclusive; a schedule with neither never
// fires. GroupID nil means "all hosts".
type Schedule struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	FirmwarePath    string    `json:"firmware_path"`
	GroupID         *string   `json:"group_id,omitempty"`
	CronExpr        *string   `json:"cron_expr,omitempty"`
	IntervalMinutes *int      `json:"interval_minutes,omitempty"`
	Enabled         bool      `json:"enabled"`
	DryRun          bool      `json:"dry_run"`
	MaxConcurrent   *int      `json:"max_concurrent,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TriggerSpec returns a comparable fingerprint of the schedule's trigger
// configuration, used to detect changes during scheduler reconciliation.
func (s *Schedule) TriggerSpec() string {
	switch {
	case s.CronExpr != nil:
		return "cron:" + *s.CronExpr
	case s.IntervalMinutes != nil:
		return "interval:" + strconv.Itoa(*s.IntervalMinutes)
	}
	return ""
}

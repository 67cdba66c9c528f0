package request

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// CreateSchedule holds the request body for creating a schedule.
type CreateSchedule struct {
	Name            string  `json:"name" validate:"required,slug"`
	FirmwarePath    string  `json:"firmware_path" validate:"required"`
	GroupID         *string `json:"group_id"`
	CronExpr        *string `json:"cron_expr"`
	IntervalMinutes *int    `json:"interval_minutes" validate:"omitempty,min=1"`
	MaxConcurrent   *int    `json:"max_concurrent" validate:"omitempty,min=1"`
	Enabled         bool    `json:"enabled"`
	DryRun          bool    `json:"dry_run"`
}

// UpdateSchedule holds the request body for editing a schedule.
type UpdateSchedule struct {
	Name            string  `json:"name" validate:"required,slug"`
	FirmwarePath    string  `json:"firmware_path" validate:"required"`
	GroupID         *string `json:"group_id"`
	CronExpr        *string `json:"cron_expr"`
	IntervalMinutes *int    `json:"interval_minutes" validate:"omitempty,min=1"`
	MaxConcurrent   *int    `json:"max_concurrent" validate:"omitempty,min=1"`
	Enabled         bool    `json:"enabled"`
	DryRun          bool    `json:"dry_run"`
}

// ValidateTrigger rejects malformed trigger specs at the edge: cron and
// interval are mutually exclusive, and a cron expression must parse as a
// standard 5-field expression. A schedule with neither is accepted and
// simply never fires.
func ValidateTrigger(cronExpr *string, intervalMinutes *int) error {
	if cronExpr != nil && intervalMinutes != nil {
		return fmt.Errorf("cron_expr and interval_minutes are mutually exclusive")
	}
	if cronExpr != nil {
		if _, err := cron.ParseStandard(*cronExpr); err != nil {
			return fmt.Errorf("invalid cron_expr: %w", err)
		}
	}
	return nil
}

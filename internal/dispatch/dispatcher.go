// Package dispatch turns due schedules and operator requests into durable
// job and task rows backed by workflow executions.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/openfleet/maestro/internal/config"
	"github.com/openfleet/maestro/internal/metrics"
	"github.com/openfleet/maestro/internal/model"
	"github.com/openfleet/maestro/internal/platform"
	"github.com/openfleet/maestro/internal/workflow"
)

const pgUniqueViolation = "23505"

// DB defines the database operations used by the dispatcher.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Dispatcher creates jobs and tasks and starts their workflows. The job row
// is written before the workflow starts, so a crash between the two leaves
// a visible QUEUED row rather than silent loss.
type Dispatcher struct {
	db     DB
	tc     temporalclient.Client
	logger zerolog.Logger

	defaultMaxConcurrent int
	webhookURL           string
	webhookTemplate      string
}

// New creates a Dispatcher.
func New(db DB, tc temporalclient.Client, cfg *config.Config, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		db:                   db,
		tc:                   tc,
		logger:               logger.With().Str("component", "dispatcher").Logger(),
		defaultMaxConcurrent: cfg.DefaultMaxConcurrent,
		webhookURL:           cfg.WebhookURL,
		webhookTemplate:      cfg.WebhookTemplate,
	}
}

// DispatchScheduleRun starts a job for one firing of a schedule. Firings
// are coalesced twice over: a schedule with a QUEUED or RUNNING job is
// skipped, and the unique (schedule_id, start_time) constraint swallows
// duplicate dispatches racing from two engine replicas.
func (d *Dispatcher) DispatchScheduleRun(ctx context.Context, schedule model.Schedule, fireTime time.Time) error {
	var runningID string
	err := d.db.QueryRow(ctx,
		`SELECT id FROM jobs WHERE schedule_id = $1 AND status IN ($2, $3) LIMIT 1`,
		schedule.ID, model.JobStatusQueued, model.JobStatusRunning,
	).Scan(&runningID)
	switch {
	case err == nil:
		d.logger.Info().
			Str("schedule", schedule.Name).
			Str("running_job", runningID).
			Msg("previous job still active, firing skipped")
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		// nothing active, proceed
	default:
		return fmt.Errorf("check running jobs: %w", err)
	}

	jobID := platform.NewID()
	_, err = d.db.Exec(ctx,
		`INSERT INTO jobs (id, schedule_id, start_time, status) VALUES ($1, $2, $3, $4)`,
		jobID, schedule.ID, fireTime.UTC().Truncate(time.Second), model.JobStatusQueued)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			d.logger.Info().
				Str("schedule", schedule.Name).
				Time("fire_time", fireTime).
				Msg("firing already claimed, skipped")
			return nil
		}
		return fmt.Errorf("insert job: %w", err)
	}

	_, err = d.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        fmt.Sprintf("job-%s", jobID),
		TaskQueue: workflow.TaskQueue,
	}, "UpdateJobWorkflow", workflow.UpdateJobParams{
		JobID:                jobID,
		ScheduleID:           schedule.ID,
		DefaultMaxConcurrent: d.defaultMaxConcurrent,
		WebhookURL:           d.webhookURL,
		WebhookTemplate:      d.webhookTemplate,
	})
	if err != nil {
		_, execErr := d.db.Exec(ctx,
			`UPDATE jobs SET status = $1, message = $2, end_time = now() WHERE id = $3`,
			model.JobStatusFailed, fmt.Sprintf("start workflow: %v", err), jobID)
		if execErr != nil {
			d.logger.Error().Err(execErr).Str("job", jobID).Msg("failed to mark undispatched job")
		}
		return fmt.Errorf("start UpdateJobWorkflow: %w", err)
	}

	metrics.JobsDispatched.Inc()
	return nil
}

// DispatchHostUpdate starts a one-off update task against a single host,
// outside any schedule. Returns the created task ID.
func (d *Dispatcher) DispatchHostUpdate(ctx context.Context, host *model.Host, firmwarePath string, dryRun bool, createdBy string) (string, error) {
	taskID := platform.NewID()
	_, err := d.db.Exec(ctx,
		`INSERT INTO tasks (id, host_id, firmware_path, dry_run, created_by, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		taskID, host.ID, firmwarePath, dryRun, createdBy, model.TaskStatusQueued)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}

	_, err = d.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        fmt.Sprintf("task-%s", taskID),
		TaskQueue: workflow.TaskQueue,
	}, "HostUpdateWorkflow", workflow.HostUpdateParams{
		TaskID:       taskID,
		HostID:       host.ID,
		Hostname:     host.Hostname,
		BMCAddr:      host.BMCAddr,
		VCenter:      strOrEmpty(host.VCenter),
		HostPolicy:   strOrEmpty(host.HostPolicy),
		FirmwarePath: firmwarePath,
		DryRun:       dryRun,
	})
	if err != nil {
		_, execErr := d.db.Exec(ctx,
			`UPDATE tasks SET status = $1, message = $2 WHERE id = $3`,
			model.TaskStatusError, fmt.Sprintf("start workflow: %v", err), taskID)
		if execErr != nil {
			d.logger.Error().Err(execErr).Str("task", taskID).Msg("failed to mark undispatched task")
		}
		return "", fmt.Errorf("start HostUpdateWorkflow: %w", err)
	}
	return taskID, nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openfleet/maestro/internal/metrics"
	"github.com/openfleet/maestro/internal/model"
	"github.com/openfleet/maestro/internal/platform"
)

// DB defines the database operations used by activity structs.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FleetDB contains activities that read from and update the fleet database.
type FleetDB struct {
	db DB
}

// NewFleetDB creates a new FleetDB activity struct.
func NewFleetDB(db DB) *FleetDB {
	return &FleetDB{db: db}
}

// GetScheduleContext loads the schedule, its target hosts, and the effective
// concurrency cap in one call. Schedules without a group target every host.
func (a *FleetDB) GetScheduleContext(ctx context.Context, scheduleID string) (*ScheduleContext, error) {
	var s model.Schedule
	err := a.db.QueryRow(ctx,
		`SELECT id, name, firmware_path, group_id, cron_expr, interval_minutes, max_concurrent, enabled, dry_run, created_at, updated_at
		 FROM schedules WHERE id = $1`, scheduleID,
	).Scan(&s.ID, &s.Name, &s.FirmwarePath, &s.GroupID, &s.CronExpr, &s.IntervalMinutes, &s.MaxConcurrent, &s.Enabled, &s.DryRun, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	query := `SELECT id, hostname, bmc_addr, vcenter, cluster, host_policy, last_seen, last_status, last_message, created_at, updated_at
		 FROM hosts ORDER BY hostname`
	args := []any{}
	if s.GroupID != nil {
		query = `SELECT h.id, h.hostname, h.bmc_addr, h.vcenter, h.cluster, h.host_policy, h.last_seen, h.last_status, h.last_message, h.created_at, h.updated_at
			 FROM hosts h
			 JOIN host_group_members m ON m.host_id = h.id
			 WHERE m.group_id = $1 ORDER BY h.hostname`
		args = append(args, *s.GroupID)
	}

	rows, err := a.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedule hosts: %w", err)
	}
	defer rows.Close()

	var hosts []model.Host
	for rows.Next() {
		var h model.Host
		if err := rows.Scan(&h.ID, &h.Hostname, &h.BMCAddr, &h.VCenter, &h.Cluster, &h.HostPolicy, &h.LastSeen, &h.LastStatus, &h.LastMessage, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		hosts = append(hosts, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list schedule hosts: %w", err)
	}

	return &ScheduleContext{Schedule: s, Hosts: hosts}, nil
}

// CreateTaskParams holds the parameters for CreateTask.
type CreateTaskParams struct {
	HostID       string  `json:"host_id"`
	JobID        *string `json:"job_id,omitempty"`
	FirmwarePath string  `json:"firmware_path"`
	DryRun       bool    `json:"dry_run"`
	CreatedBy    string  `json:"created_by"`
}

// CreateTask inserts a QUEUED task row and returns its ID.
func (a *FleetDB) CreateTask(ctx context.Context, params CreateTaskParams) (string, error) {
	id := platform.NewID()
	_, err := a.db.Exec(ctx,
		`INSERT INTO tasks (id, host_id, job_id, firmware_path, dry_run, created_by, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, params.HostID, params.JobID, params.FirmwarePath, params.DryRun, params.CreatedBy, model.TaskStatusQueued)
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	return id, nil
}

// MarkJobRunning moves a QUEUED job to RUNNING.
func (a *FleetDB) MarkJobRunning(ctx context.Context, jobID string) error {
	_, err := a.db.Exec(ctx,
		`UPDATE jobs SET status = $1 WHERE id = $2 AND status = $3`,
		model.JobStatusRunning, jobID, model.JobStatusQueued)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	return nil
}

// AcquireLeaseParams holds the parameters for AcquireHostLease.
type AcquireLeaseParams struct {
	HostID string `json:"host_id"`
	TaskID string `json:"task_id"`
}

// AcquireHostLease claims the per-host update lease by flipping last_status
// to UPDATING and stamping the claiming task as the lease owner. Returns
// false when another task holds the lease. The acquisition is idempotent: a
// retried activity whose first attempt committed but lost its result finds
// its own task recorded as owner and still gets true.
func (a *FleetDB) AcquireHostLease(ctx context.Context, params AcquireLeaseParams) (bool, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE hosts SET last_status = $1, lease_owner = $2, updated_at = now()
		 WHERE id = $3 AND last_status <> $1`,
		model.HostStatusUpdating, params.TaskID, params.HostID)
	if err != nil {
		return false, fmt.Errorf("acquire host lease: %w", err)
	}
	if tag.RowsAffected() > 0 {
		metrics.UpdatesInFlight.Inc()
		return true, nil
	}

	var owner *string
	err = a.db.QueryRow(ctx,
		`SELECT lease_owner FROM hosts WHERE id = $1 AND last_status = $2`,
		params.HostID, model.HostStatusUpdating).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check lease owner: %w", err)
	}
	return owner != nil && *owner == params.TaskID, nil
}

// MarkTaskRunning moves a task to RUNNING.
func (a *FleetDB) MarkTaskRunning(ctx context.Context, taskID string) error {
	_, err := a.db.Exec(ctx,
		`UPDATE tasks SET status = $1 WHERE id = $2`,
		model.TaskStatusRunning, taskID)
	if err != nil {
		return fmt.Errorf("mark task running: %w", err)
	}
	return nil
}

// CompleteTaskParams holds the parameters for CompleteTask.
type CompleteTaskParams struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CompleteTask records a task's terminal status. Already-terminal tasks are
// left untouched so a retried activity cannot rewrite history.
func (a *FleetDB) CompleteTask(ctx context.Context, params CompleteTaskParams) error {
	tag, err := a.db.Exec(ctx,
		`UPDATE tasks SET status = $1, message = $2
		 WHERE id = $3 AND status IN ($4, $5)`,
		params.Status, params.Message, params.TaskID,
		model.TaskStatusQueued, model.TaskStatusRunning)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if tag.RowsAffected() > 0 {
		metrics.TasksCompleted.WithLabelValues(params.Status).Inc()
	}
	return nil
}

// UpdateHostResultParams holds the parameters for UpdateHostResult.
type UpdateHostResultParams struct {
	HostID  string `json:"host_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// UpdateHostResult records the outcome of an update on the host row and
// releases the UPDATING lease along with its owner stamp.
func (a *FleetDB) UpdateHostResult(ctx context.Context, params UpdateHostResultParams) error {
	tag, err := a.db.Exec(ctx,
		`UPDATE hosts SET last_status = $1, last_message = $2, lease_owner = NULL, last_seen = now(), updated_at = now()
		 WHERE id = $3`,
		params.Status, params.Message, params.HostID)
	if err != nil {
		return fmt.Errorf("update host result: %w", err)
	}
	if tag.RowsAffected() > 0 {
		metrics.UpdatesInFlight.Dec()
	}
	return nil
}

// FinalizeJob aggregates the job's task statuses into a terminal job status
// and stamps the end time. Only RUNNING or QUEUED jobs are finalized;
// calling it again is a no-op that returns the recorded status.
func (a *FleetDB) FinalizeJob(ctx context.Context, jobID string) (string, error) {
	rows, err := a.db.Query(ctx, `SELECT status FROM tasks WHERE job_id = $1`, jobID)
	if err != nil {
		return "", fmt.Errorf("list job tasks: %w", err)
	}
	defer rows.Close()

	var statuses []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return "", fmt.Errorf("scan task status: %w", err)
		}
		statuses = append(statuses, s)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("list job tasks: %w", err)
	}

	final := model.JobStatusForTasks(statuses)
	tag, err := a.db.Exec(ctx,
		`UPDATE jobs SET status = $1, end_time = now()
		 WHERE id = $2 AND status IN ($3, $4)`,
		final, jobID, model.JobStatusRunning, model.JobStatusQueued)
	if err != nil {
		return "", fmt.Errorf("finalize job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var recorded string
		if err := a.db.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, jobID).Scan(&recorded); err != nil {
			return "", fmt.Errorf("read job status: %w", err)
		}
		return recorded, nil
	}
	return final, nil
}

// FailJobParams holds the parameters for FailJob.
type FailJobParams struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// FailJob marks a job FAILED with a message. Used when dispatch itself
// breaks before any per-host work can settle the job.
func (a *FleetDB) FailJob(ctx context.Context, params FailJobParams) error {
	_, err := a.db.Exec(ctx,
		`UPDATE jobs SET status = $1, message = $2, end_time = now()
		 WHERE id = $3 AND status IN ($4, $5)`,
		model.JobStatusFailed, params.Message, params.JobID,
		model.JobStatusRunning, model.JobStatusQueued)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// GetJobSummary loads a job with its schedule name and per-status task
// counts, for webhook notifications.
func (a *FleetDB) GetJobSummary(ctx context.Context, jobID string) (*JobSummary, error) {
	var sum JobSummary
	err := a.db.QueryRow(ctx,
		`SELECT j.id, j.status, COALESCE(j.message, ''), j.start_time, s.name
		 FROM jobs j JOIN schedules s ON s.id = j.schedule_id
		 WHERE j.id = $1`, jobID,
	).Scan(&sum.JobID, &sum.Status, &sum.Message, &sum.StartTime, &sum.ScheduleName)
	if err != nil {
		return nil, fmt.Errorf("get job summary: %w", err)
	}

	rows, err := a.db.Query(ctx,
		`SELECT status, count(*) FROM tasks WHERE job_id = $1 GROUP BY status`, jobID)
	if err != nil {
		return nil, fmt.Errorf("count job tasks: %w", err)
	}
	defer rows.Close()

	sum.TaskCounts = map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan task count: %w", err)
		}
		sum.TaskCounts[status] = n
	}
	return &sum, rows.Err()
}

// ListHostsForHealthCheck returns every host not currently being updated.
func (a *FleetDB) ListHostsForHealthCheck(ctx context.Context) ([]model.Host, error) {
	rows, err := a.db.Query(ctx,
		`SELECT id, hostname, bmc_addr, vcenter, cluster, host_policy, last_seen, last_status, last_message, created_at, updated_at
		 FROM hosts WHERE last_status <> $1 ORDER BY hostname`,
		model.HostStatusUpdating)
	if err != nil {
		return nil, fmt.Errorf("list hosts for health check: %w", err)
	}
	defer rows.Close()

	var hosts []model.Host
	for rows.Next() {
		var h model.Host
		if err := rows.Scan(&h.ID, &h.Hostname, &h.BMCAddr, &h.VCenter, &h.Cluster, &h.HostPolicy, &h.LastSeen, &h.LastStatus, &h.LastMessage, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

// RecordHostHealthParams holds the parameters for RecordHostHealth.
type RecordHostHealthParams struct {
	HostID  string `json:"host_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RecordHostHealth updates a host's status from the health sweep. Hosts in
// the middle of an update keep their UPDATING status.
func (a *FleetDB) RecordHostHealth(ctx context.Context, params RecordHostHealthParams) error {
	_, err := a.db.Exec(ctx,
		`UPDATE hosts SET last_status = $1, last_message = $2, last_seen = now(), updated_at = now()
		 WHERE id = $3 AND last_status <> $4`,
		params.Status, params.Message, params.HostID, model.HostStatusUpdating)
	if err != nil {
		return fmt.Errorf("record host health: %w", err)
	}
	return nil
}

// ListVCenters returns all configured vCenters, passwords still encrypted.
func (a *FleetDB) ListVCenters(ctx context.Context) ([]model.VCenter, error) {
	rows, err := a.db.Query(ctx,
		`SELECT id, name, url, username, password_enc, created_at FROM vcenters ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list vcenters: %w", err)
	}
	defer rows.Close()

	var out []model.VCenter
	for rows.Next() {
		var v model.VCenter
		if err := rows.Scan(&v.ID, &v.Name, &v.URL, &v.Username, &v.PasswordEnc, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vcenter: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SyncDiscoveredHostParams holds the parameters for SyncDiscoveredHost.
type SyncDiscoveredHostParams struct {
	Hostname string `json:"hostname"`
	VCenter  string `json:"vcenter"`
	Cluster  string `json:"cluster"`
}

// SyncDiscoveredHost stamps vCenter placement onto a known host. Hosts seen
// in vCenter but absent from inventory are ignored; inventory is the source
// of truth for which machines the engine may touch.
func (a *FleetDB) SyncDiscoveredHost(ctx context.Context, params SyncDiscoveredHostParams) (bool, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE hosts SET vcenter = $1, cluster = $2, updated_at = now()
		 WHERE hostname = $3`,
		params.VCenter, params.Cluster, params.Hostname)
	if err != nil {
		return false, fmt.Errorf("sync discovered host: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// StaleSeen marks hosts whose last contact is older than cutoff as UNKNOWN.
func (a *FleetDB) StaleSeen(ctx context.Context, cutoff time.Duration) (int64, error) {
	tag, err := a.db.Exec(ctx,
		`UPDATE hosts SET last_status = $1, updated_at = now()
		 WHERE last_status NOT IN ($2, $3)
		   AND (last_seen IS NULL OR last_seen < now() - $4::interval)`,
		model.HostStatusUnknown, model.HostStatusUpdating, model.HostStatusUnknown,
		fmt.Sprintf("%d seconds", int(cutoff.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("mark stale hosts: %w", err)
	}
	return tag.RowsAffected(), nil
}

package core

import (
	"context"
	"fmt"

	"github.com/openfleet/maestro/internal/api/request"
	"github.com/openfleet/maestro/internal/model"
)

type JobService struct {
	db DB
}

func NewJobService(db DB) *JobService {
	return &JobService{db: db}
}

// JobDetail is a job with its schedule name and per-host task rows.
type JobDetail struct {
	model.Job
	ScheduleName string       `json:"schedule_name"`
	Tasks        []model.Task `json:"tasks"`
}

func (s *JobService) GetByID(ctx context.Context, id string) (*JobDetail, error) {
	var d JobDetail
	err := s.db.QueryRow(ctx,
		`SELECT j.id, j.schedule_id, j.start_time, j.end_time, j.status, j.message, s.name
		 FROM jobs j JOIN schedules s ON s.id = j.schedule_id
		 WHERE j.id = $1`, id,
	).Scan(&d.ID, &d.ScheduleID, &d.StartTime, &d.EndTime, &d.Status, &d.Message, &d.ScheduleName)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, host_id, job_id, firmware_path, dry_run, created_by, created_at, status, message
		 FROM tasks WHERE job_id = $1 ORDER BY created_at`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list job %s tasks: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.HostID, &t.JobID, &t.FirmwarePath, &t.DryRun,
			&t.CreatedBy, &t.CreatedAt, &t.Status, &t.Message); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		d.Tasks = append(d.Tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return &d, nil
}

// List returns jobs newest first, optionally filtered by schedule and status.
func (s *JobService) List(ctx context.Context, scheduleID string, params request.ListParams) ([]model.Job, bool, error) {
	query := `SELECT id, schedule_id, start_time, end_time, status, message FROM jobs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if scheduleID != "" {
		query += fmt.Sprintf(` AND schedule_id = $%d`, argIdx)
		args = append(args, scheduleID)
		argIdx++
	}
	if params.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, params.Status)
		argIdx++
	}
	if params.Cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, params.Cursor)
		argIdx++
	}

	query += ` ORDER BY start_time DESC`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, params.Limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.ScheduleID, &j.StartTime, &j.EndTime, &j.Status, &j.Message); err != nil {
			return nil, false, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate jobs: %w", err)
	}

	hasMore := len(jobs) > params.Limit
	if hasMore {
		jobs = jobs[:params.Limit]
	}
	return jobs, hasMore, nil
}

package core

import (
	"context"
	"fmt"

	"github.com/openfleet/maestro/internal/api/request"
	"github.com/openfleet/maestro/internal/model"
)

type TaskService struct {
	db DB
}

func NewTaskService(db DB) *TaskService {
	return &TaskService{db: db}
}

const taskColumns = `id, host_id, job_id, firmware_path, dry_run, created_by, created_at, status, message`

func scanTask(row interface{ Scan(dest ...any) error }) (model.Task, error) {
	var t model.Task
	err := row.Scan(&t.ID, &t.HostID, &t.JobID, &t.FirmwarePath, &t.DryRun,
		&t.CreatedBy, &t.CreatedAt, &t.Status, &t.Message)
	return t, err
}

func (s *TaskService) GetByID(ctx context.Context, id string) (*model.Task, error) {
	t, err := scanTask(s.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &t, nil
}

// List returns tasks newest first, optionally filtered by host and status.
func (s *TaskService) List(ctx context.Context, hostID string, params request.ListParams) ([]model.Task, bool, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	args := []any{}
	argIdx := 1

	if hostID != "" {
		query += fmt.Sprintf(` AND host_id = $%d`, argIdx)
		args = append(args, hostID)
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

	query += ` ORDER BY created_at DESC`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, params.Limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate tasks: %w", err)
	}

	hasMore := len(tasks) > params.Limit
	if hasMore {
		tasks = tasks[:params.Limit]
	}
	return tasks, hasMore, nil
}

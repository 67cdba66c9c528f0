package core

import (
	"context"
	"fmt"
	"time"

	"github.com/openfleet/maestro/internal/model"
	"github.com/openfleet/maestro/internal/platform"
)

type ScheduleService struct {
	db DB
}

func NewScheduleService(db DB) *ScheduleService {
	return &ScheduleService{db: db}
}

const scheduleColumns = `id, name, firmware_path, group_id, cron_expr, interval_minutes, max_concurrent, enabled, dry_run, created_at, updated_at`

func scanSchedule(row interface{ Scan(dest ...any) error }) (model.Schedule, error) {
	var s model.Schedule
	err := row.Scan(&s.ID, &s.Name, &s.FirmwarePath, &s.GroupID, &s.CronExpr, &s.IntervalMinutes,
		&s.MaxConcurrent, &s.Enabled, &s.DryRun, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (s *ScheduleService) Create(ctx context.Context, schedule *model.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = platform.NewID()
	}
	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	_, err := s.db.Exec(ctx,
		`INSERT INTO schedules (id, name, firmware_path, group_id, cron_expr, interval_minutes, max_concurrent, enabled, dry_run, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		schedule.ID, schedule.Name, schedule.FirmwarePath, schedule.GroupID, schedule.CronExpr,
		schedule.IntervalMinutes, schedule.MaxConcurrent, schedule.Enabled, schedule.DryRun,
		schedule.CreatedAt, schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

func (s *ScheduleService) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	sched, err := scanSchedule(s.db.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get schedule %s: %w", id, err)
	}
	return &sched, nil
}

func (s *ScheduleService) List(ctx context.Context, limit int, cursor string) ([]model.Schedule, bool, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	args := []any{}
	argIdx := 1

	if cursor != "" {
		query += fmt.Sprintf(` WHERE id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY name`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, sched)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate schedules: %w", err)
	}

	hasMore := len(schedules) > limit
	if hasMore {
		schedules = schedules[:limit]
	}
	return schedules, hasMore, nil
}

// ListEnabled returns every enabled schedule. The scheduler reconciles its
// trigger set from this.
func (s *ScheduleService) ListEnabled(ctx context.Context) ([]model.Schedule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE enabled ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list enabled schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}

func (s *ScheduleService) Update(ctx context.Context, schedule *model.Schedule) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE schedules SET name = $1, firmware_path = $2, group_id = $3, cron_expr = $4, interval_minutes = $5, max_concurrent = $6, enabled = $7, dry_run = $8, updated_at = now()
		 WHERE id = $9`,
		schedule.Name, schedule.FirmwarePath, schedule.GroupID, schedule.CronExpr,
		schedule.IntervalMinutes, schedule.MaxConcurrent, schedule.Enabled, schedule.DryRun,
		schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("update schedule %s: %w", schedule.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedule %s not found", schedule.ID)
	}
	return nil
}

// Toggle flips enabled and returns the new value.
func (s *ScheduleService) Toggle(ctx context.Context, id string) (bool, error) {
	var enabled bool
	err := s.db.QueryRow(ctx,
		`UPDATE schedules SET enabled = NOT enabled, updated_at = now() WHERE id = $1 RETURNING enabled`, id,
	).Scan(&enabled)
	if err != nil {
		return false, fmt.Errorf("toggle schedule %s: %w", id, err)
	}
	return enabled, nil
}

func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedule %s not found", id)
	}
	return nil
}

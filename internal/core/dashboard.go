package core

import (
	"context"
	"fmt"
)

// DashboardStats holds aggregate counts from the fleet database.
type DashboardStats struct {
	Hosts            int `json:"hosts"`
	HostsOK          int `json:"hosts_ok"`
	HostsError       int `json:"hosts_error"`
	HostsUpdating    int `json:"hosts_updating"`
	Groups           int `json:"groups"`
	Schedules        int `json:"schedules"`
	SchedulesEnabled int `json:"schedules_enabled"`
	FirmwareImages   int `json:"firmware_images"`
	JobsRunning      int `json:"jobs_running"`
	TasksRunning     int `json:"tasks_running"`
	TasksLast24h     int `json:"tasks_last_24h"`

	HostsByStatus []StatusCount `json:"hosts_by_status"`
	TasksByStatus []StatusCount `json:"tasks_by_status"`
}

// StatusCount holds a count grouped by status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// DashboardService queries aggregate stats from the fleet database.
type DashboardService struct {
	db DB
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(db DB) *DashboardService {
	return &DashboardService{db: db}
}

// Stats returns aggregate counts using a single query with CTEs, plus two
// group-by breakdowns.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	const countsQuery = `
		WITH host_count AS (
			SELECT count(*) AS c FROM hosts
		), host_ok AS (
			SELECT count(*) AS c FROM hosts WHERE last_status = 'OK'
		), host_error AS (
			SELECT count(*) AS c FROM hosts WHERE last_status = 'ERROR'
		), host_updating AS (
			SELECT count(*) AS c FROM hosts WHERE last_status = 'UPDATING'
		), group_count AS (
			SELECT count(*) AS c FROM host_groups
		), schedule_count AS (
			SELECT count(*) AS c FROM schedules
		), schedule_enabled AS (
			SELECT count(*) AS c FROM schedules WHERE enabled
		), firmware_count AS (
			SELECT count(*) AS c FROM firmware_images
		), job_running AS (
			SELECT count(*) AS c FROM jobs WHERE status IN ('QUEUED', 'RUNNING')
		), task_running AS (
			SELECT count(*) AS c FROM tasks WHERE status IN ('QUEUED', 'RUNNING')
		), task_recent AS (
			SELECT count(*) AS c FROM tasks WHERE created_at > now() - interval '24 hours'
		)
		SELECT
			(SELECT c FROM host_count),
			(SELECT c FROM host_ok),
			(SELECT c FROM host_error),
			(SELECT c FROM host_updating),
			(SELECT c FROM group_count),
			(SELECT c FROM schedule_count),
			(SELECT c FROM schedule_enabled),
			(SELECT c FROM firmware_count),
			(SELECT c FROM job_running),
			(SELECT c FROM task_running),
			(SELECT c FROM task_recent)`

	stats := &DashboardStats{}
	err := s.db.QueryRow(ctx, countsQuery).Scan(
		&stats.Hosts,
		&stats.HostsOK,
		&stats.HostsError,
		&stats.HostsUpdating,
		&stats.Groups,
		&stats.Schedules,
		&stats.SchedulesEnabled,
		&stats.FirmwareImages,
		&stats.JobsRunning,
		&stats.TasksRunning,
		&stats.TasksLast24h,
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}

	hbsRows, err := s.db.Query(ctx,
		`SELECT last_status, count(*) FROM hosts GROUP BY last_status ORDER BY count(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("dashboard hosts by status: %w", err)
	}
	defer hbsRows.Close()

	for hbsRows.Next() {
		var sc StatusCount
		if err := hbsRows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan host status count: %w", err)
		}
		stats.HostsByStatus = append(stats.HostsByStatus, sc)
	}
	if err := hbsRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate host status counts: %w", err)
	}

	tbsRows, err := s.db.Query(ctx,
		`SELECT status, count(*) FROM tasks
		 WHERE created_at > now() - interval '24 hours'
		 GROUP BY status ORDER BY count(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("dashboard tasks by status: %w", err)
	}
	defer tbsRows.Close()

	for tbsRows.Next() {
		var sc StatusCount
		if err := tbsRows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan task status count: %w", err)
		}
		stats.TasksByStatus = append(stats.TasksByStatus, sc)
	}
	if err := tbsRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task status counts: %w", err)
	}

	return stats, nil
}

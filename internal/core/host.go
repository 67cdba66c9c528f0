package core

import (
	"context"
	"fmt"
	"time"

	"github.com/openfleet/maestro/internal/api/request"
	"github.com/openfleet/maestro/internal/model"
	"github.com/openfleet/maestro/internal/platform"
)

type HostService struct {
	db DB
}

func NewHostService(db DB) *HostService {
	return &HostService{db: db}
}

const hostColumns = `id, hostname, bmc_addr, vcenter, cluster, host_policy, last_seen, last_status, last_message, created_at, updated_at`

func scanHost(row interface{ Scan(dest ...any) error }) (model.Host, error) {
	var h model.Host
	err := row.Scan(&h.ID, &h.Hostname, &h.BMCAddr, &h.VCenter, &h.Cluster, &h.HostPolicy,
		&h.LastSeen, &h.LastStatus, &h.LastMessage, &h.CreatedAt, &h.UpdatedAt)
	return h, err
}

func (s *HostService) Create(ctx context.Context, host *model.Host) error {
	if host.ID == "" {
		host.ID = platform.NewID()
	}
	if host.LastStatus == "" {
		host.LastStatus = model.HostStatusUnknown
	}
	now := time.Now().UTC()
	host.CreatedAt = now
	host.UpdatedAt = now

	_, err := s.db.Exec(ctx,
		`INSERT INTO hosts (id, hostname, bmc_addr, vcenter, cluster, host_policy, last_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		host.ID, host.Hostname, host.BMCAddr, host.VCenter, host.Cluster, host.HostPolicy,
		host.LastStatus, host.CreatedAt, host.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create host: %w", err)
	}
	return nil
}

func (s *HostService) GetByID(ctx context.Context, id string) (*model.Host, error) {
	h, err := scanHost(s.db.QueryRow(ctx,
		`SELECT `+hostColumns+` FROM hosts WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get host %s: %w", id, err)
	}
	return &h, nil
}

func (s *HostService) List(ctx context.Context, params request.ListParams) ([]model.Host, bool, error) {
	query := `SELECT ` + hostColumns + ` FROM hosts WHERE 1=1`
	args := []any{}
	argIdx := 1

	if params.Search != "" {
		query += fmt.Sprintf(` AND hostname ILIKE $%d`, argIdx)
		args = append(args, "%"+params.Search+"%")
		argIdx++
	}
	if params.Status != "" {
		query += fmt.Sprintf(` AND last_status = $%d`, argIdx)
		args = append(args, params.Status)
		argIdx++
	}
	if params.Cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, params.Cursor)
		argIdx++
	}

	query += ` ORDER BY hostname`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, params.Limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []model.Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan host: %w", err)
		}
		hosts = append(hosts, h)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate hosts: %w", err)
	}

	hasMore := len(hosts) > params.Limit
	if hasMore {
		hosts = hosts[:params.Limit]
	}
	return hosts, hasMore, nil
}

func (s *HostService) Update(ctx context.Context, host *model.Host) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE hosts SET hostname = $1, bmc_addr = $2, vcenter = $3, cluster = $4, host_policy = $5, updated_at = now()
		 WHERE id = $6`,
		host.Hostname, host.BMCAddr, host.VCenter, host.Cluster, host.HostPolicy, host.ID,
	)
	if err != nil {
		return fmt.Errorf("update host %s: %w", host.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("host %s not found", host.ID)
	}
	return nil
}

// Delete refuses to remove a host that is mid-update.
func (s *HostService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM hosts WHERE id = $1 AND last_status <> $2`, id, model.HostStatusUpdating)
	if err != nil {
		return fmt.Errorf("delete host %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("host %s not found or currently updating", id)
	}
	return nil
}

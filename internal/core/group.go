package core

import (
	"context"
	"fmt"

	"github.com/openfleet/maestro/internal/model"
	"github.com/openfleet/maestro/internal/platform"
)

type GroupService struct {
	db DB
}

func NewGroupService(db DB) *GroupService {
	return &GroupService{db: db}
}

func (s *GroupService) Create(ctx context.Context, group *model.HostGroup) error {
	if group.ID == "" {
		group.ID = platform.NewID()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO host_groups (id, name, description) VALUES ($1, $2, $3)`,
		group.ID, group.Name, group.Description,
	)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	err = s.db.QueryRow(ctx, "SELECT created_at FROM host_groups WHERE id = $1", group.ID).
		Scan(&group.CreatedAt)
	if err != nil {
		return fmt.Errorf("get group created_at: %w", err)
	}
	return nil
}

func (s *GroupService) GetByID(ctx context.Context, id string) (*model.HostGroup, error) {
	var g model.HostGroup
	err := s.db.QueryRow(ctx,
		`SELECT id, name, description, created_at FROM host_groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", id, err)
	}
	return &g, nil
}

func (s *GroupService) List(ctx context.Context, limit int, cursor string) ([]model.HostGroup, bool, error) {
	query := `SELECT id, name, description, created_at FROM host_groups`
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
		return nil, false, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []model.HostGroup
	for rows.Next() {
		var g model.HostGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate groups: %w", err)
	}

	hasMore := len(groups) > limit
	if hasMore {
		groups = groups[:limit]
	}
	return groups, hasMore, nil
}

// Members lists the hosts in a group, ordered by hostname.
func (s *GroupService) Members(ctx context.Context, groupID string) ([]model.Host, error) {
	rows, err := s.db.Query(ctx,
		`SELECT h.id, h.hostname, h.bmc_addr, h.vcenter, h.cluster, h.host_policy, h.last_seen, h.last_status, h.last_message, h.created_at, h.updated_at
		 FROM hosts h
		 JOIN host_group_members m ON m.host_id = h.id
		 WHERE m.group_id = $1 ORDER BY h.hostname`, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list group %s members: %w", groupID, err)
	}
	defer rows.Close()

	var hosts []model.Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		hosts = append(hosts, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group members: %w", err)
	}
	return hosts, nil
}

// SetMembers replaces the group's membership with exactly the given hosts.
func (s *GroupService) SetMembers(ctx context.Context, groupID string, hostIDs []string) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM host_group_members WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("clear group %s members: %w", groupID, err)
	}
	for _, hostID := range hostIDs {
		if _, err := s.db.Exec(ctx,
			`INSERT INTO host_group_members (group_id, host_id) VALUES ($1, $2)`,
			groupID, hostID); err != nil {
			return fmt.Errorf("add host %s to group %s: %w", hostID, groupID, err)
		}
	}
	return nil
}

func (s *GroupService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM host_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("group %s not found", id)
	}
	return nil
}

// Package inventory imports host inventory from declarative seed files.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/openfleet/maestro/internal/model"
	"github.com/openfleet/maestro/internal/platform"
)

// DB defines the database operations used by the seeder.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SeedFile is the on-disk shape of an inventory seed.
type SeedFile struct {
	Groups []GroupDef `yaml:"groups"`
	Hosts  []HostDef  `yaml:"hosts"`
}

type GroupDef struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type HostDef struct {
	Hostname   string   `yaml:"hostname"`
	BMCAddr    string   `yaml:"bmc_addr"`
	VCenter    string   `yaml:"vcenter"`
	Cluster    string   `yaml:"cluster"`
	HostPolicy string   `yaml:"host_policy"`
	Groups     []string `yaml:"groups"`
}

// Summary reports what a seed run changed.
type Summary struct {
	GroupsCreated int
	GroupsSkipped int
	HostsCreated  int
	HostsSkipped  int
}

// Seeder imports hosts and groups from a seed file. Existing rows are
// matched by name and left untouched, so re-running a seed is safe.
type Seeder struct {
	db     DB
	logger zerolog.Logger
}

func NewSeeder(db DB, logger zerolog.Logger) *Seeder {
	return &Seeder{db: db, logger: logger.With().Str("component", "seeder").Logger()}
}

// Run imports the seed file at path.
func (s *Seeder) Run(ctx context.Context, path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	summary := &Summary{}
	groupIDs := map[string]string{}

	for _, g := range seed.Groups {
		if g.Name == "" {
			return nil, fmt.Errorf("group with empty name in seed file")
		}
		id, created, err := s.ensureGroup(ctx, g)
		if err != nil {
			return nil, err
		}
		groupIDs[g.Name] = id
		if created {
			summary.GroupsCreated++
			s.logger.Info().Str("group", g.Name).Msg("group created")
		} else {
			summary.GroupsSkipped++
		}
	}

	for _, h := range seed.Hosts {
		if h.Hostname == "" || h.BMCAddr == "" {
			return nil, fmt.Errorf("host entry missing hostname or bmc_addr")
		}
		hostID, created, err := s.ensureHost(ctx, h)
		if err != nil {
			return nil, err
		}
		if created {
			summary.HostsCreated++
			s.logger.Info().Str("host", h.Hostname).Msg("host created")
		} else {
			summary.HostsSkipped++
		}

		for _, groupName := range h.Groups {
			groupID, ok := groupIDs[groupName]
			if !ok {
				groupID, err = s.findGroup(ctx, groupName)
				if err != nil {
					return nil, fmt.Errorf("host %s references unknown group %q", h.Hostname, groupName)
				}
				groupIDs[groupName] = groupID
			}
			if _, err := s.db.Exec(ctx,
				`INSERT INTO host_group_members (group_id, host_id) VALUES ($1, $2)
				 ON CONFLICT DO NOTHING`, groupID, hostID); err != nil {
				return nil, fmt.Errorf("add host %s to group %s: %w", h.Hostname, groupName, err)
			}
		}
	}

	return summary, nil
}

func (s *Seeder) ensureGroup(ctx context.Context, g GroupDef) (string, bool, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`SELECT id FROM host_groups WHERE name = $1`, g.Name).Scan(&id)
	switch {
	case err == nil:
		return id, false, nil
	case errors.Is(err, pgx.ErrNoRows):
		// fall through to insert
	default:
		return "", false, fmt.Errorf("look up group %s: %w", g.Name, err)
	}

	id = platform.NewID()
	var description *string
	if g.Description != "" {
		description = &g.Description
	}
	if _, err := s.db.Exec(ctx,
		`INSERT INTO host_groups (id, name, description) VALUES ($1, $2, $3)`,
		id, g.Name, description); err != nil {
		return "", false, fmt.Errorf("create group %s: %w", g.Name, err)
	}
	return id, true, nil
}

func (s *Seeder) ensureHost(ctx context.Context, h HostDef) (string, bool, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`SELECT id FROM hosts WHERE hostname = $1`, h.Hostname).Scan(&id)
	switch {
	case err == nil:
		return id, false, nil
	case errors.Is(err, pgx.ErrNoRows):
		// fall through to insert
	default:
		return "", false, fmt.Errorf("look up host %s: %w", h.Hostname, err)
	}

	id = platform.NewID()
	optional := func(v string) *string {
		if v == "" {
			return nil
		}
		return &v
	}
	if _, err := s.db.Exec(ctx,
		`INSERT INTO hosts (id, hostname, bmc_addr, vcenter, cluster, host_policy, last_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`,
		id, h.Hostname, h.BMCAddr, optional(h.VCenter), optional(h.Cluster),
		optional(h.HostPolicy), model.HostStatusUnknown); err != nil {
		return "", false, fmt.Errorf("create host %s: %w", h.Hostname, err)
	}
	return id, true, nil
}

func (s *Seeder) findGroup(ctx context.Context, name string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`SELECT id FROM host_groups WHERE name = $1`, name).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("look up group %s: %w", name, err)
	}
	return id, nil
}

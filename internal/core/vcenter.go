package core

import (
	"context"
	"fmt"

	"github.com/openfleet/maestro/internal/crypto"
	"github.com/openfleet/maestro/internal/model"
	"github.com/openfleet/maestro/internal/platform"
)

// VCenterService manages configured vSphere endpoints. Passwords are
// AES-GCM encrypted before they reach the database and never read back
// out through this service.
type VCenterService struct {
	db              DB
	secretKeyBase64 string
}

func NewVCenterService(db DB, secretKeyBase64 string) *VCenterService {
	return &VCenterService{db: db, secretKeyBase64: secretKeyBase64}
}

func (s *VCenterService) Create(ctx context.Context, vc *model.VCenter, password string) error {
	if s.secretKeyBase64 == "" {
		return fmt.Errorf("no secret key configured, cannot store vcenter credentials")
	}
	if vc.ID == "" {
		vc.ID = platform.NewID()
	}

	enc, err := crypto.Encrypt([]byte(password), s.secretKeyBase64)
	if err != nil {
		return fmt.Errorf("encrypt vcenter password: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO vcenters (id, name, url, username, password_enc) VALUES ($1, $2, $3, $4, $5)`,
		vc.ID, vc.Name, vc.URL, vc.Username, enc,
	)
	if err != nil {
		return fmt.Errorf("create vcenter: %w", err)
	}
	err = s.db.QueryRow(ctx, "SELECT created_at FROM vcenters WHERE id = $1", vc.ID).
		Scan(&vc.CreatedAt)
	if err != nil {
		return fmt.Errorf("get vcenter created_at: %w", err)
	}
	return nil
}

func (s *VCenterService) GetByID(ctx context.Context, id string) (*model.VCenter, error) {
	var vc model.VCenter
	err := s.db.QueryRow(ctx,
		`SELECT id, name, url, username, created_at FROM vcenters WHERE id = $1`, id,
	).Scan(&vc.ID, &vc.Name, &vc.URL, &vc.Username, &vc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get vcenter %s: %w", id, err)
	}
	return &vc, nil
}

func (s *VCenterService) List(ctx context.Context, limit int, cursor string) ([]model.VCenter, bool, error) {
	query := `SELECT id, name, url, username, created_at FROM vcenters`
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
		return nil, false, fmt.Errorf("list vcenters: %w", err)
	}
	defer rows.Close()

	var vcenters []model.VCenter
	for rows.Next() {
		var vc model.VCenter
		if err := rows.Scan(&vc.ID, &vc.Name, &vc.URL, &vc.Username, &vc.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scan vcenter: %w", err)
		}
		vcenters = append(vcenters, vc)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate vcenters: %w", err)
	}

	hasMore := len(vcenters) > limit
	if hasMore {
		vcenters = vcenters[:limit]
	}
	return vcenters, hasMore, nil
}

func (s *VCenterService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM vcenters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete vcenter %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vcenter %s not found", id)
	}
	return nil
}

package core

import (
	"context"
	"fmt"

	"github.com/openfleet/maestro/internal/model"
	"github.com/openfleet/maestro/internal/platform"
)

// FirmwareImageService manages the firmware catalog. The catalog holds
// metadata only; the binaries live wherever image_uri points.
type FirmwareImageService struct {
	db DB
}

func NewFirmwareImageService(db DB) *FirmwareImageService {
	return &FirmwareImageService{db: db}
}

func (s *FirmwareImageService) Create(ctx context.Context, image *model.FirmwareImage) error {
	if image.ID == "" {
		image.ID = platform.NewID()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO firmware_images (id, filename, image_uri, version, model_compat, uploaded_by)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		image.ID, image.Filename, image.ImageURI, image.Version, image.ModelCompat, image.UploadedBy,
	)
	if err != nil {
		return fmt.Errorf("create firmware image: %w", err)
	}
	err = s.db.QueryRow(ctx, "SELECT created_at FROM firmware_images WHERE id = $1", image.ID).
		Scan(&image.CreatedAt)
	if err != nil {
		return fmt.Errorf("get firmware image created_at: %w", err)
	}
	return nil
}

func (s *FirmwareImageService) GetByID(ctx context.Context, id string) (*model.FirmwareImage, error) {
	var img model.FirmwareImage
	err := s.db.QueryRow(ctx,
		`SELECT id, filename, image_uri, version, model_compat, uploaded_by, created_at
		 FROM firmware_images WHERE id = $1`, id,
	).Scan(&img.ID, &img.Filename, &img.ImageURI, &img.Version, &img.ModelCompat, &img.UploadedBy, &img.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get firmware image %s: %w", id, err)
	}
	return &img, nil
}

func (s *FirmwareImageService) List(ctx context.Context, limit int, cursor string) ([]model.FirmwareImage, bool, error) {
	query := `SELECT id, filename, image_uri, version, model_compat, uploaded_by, created_at FROM firmware_images`
	args := []any{}
	argIdx := 1

	if cursor != "" {
		query += fmt.Sprintf(` WHERE id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY created_at DESC`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list firmware images: %w", err)
	}
	defer rows.Close()

	var images []model.FirmwareImage
	for rows.Next() {
		var img model.FirmwareImage
		if err := rows.Scan(&img.ID, &img.Filename, &img.ImageURI, &img.Version,
			&img.ModelCompat, &img.UploadedBy, &img.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scan firmware image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate firmware images: %w", err)
	}

	hasMore := len(images) > limit
	if hasMore {
		images = images[:limit]
	}
	return images, hasMore, nil
}

func (s *FirmwareImageService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM firmware_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete firmware image %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("firmware image %s not found", id)
	}
	return nil
}

package model

import "time"

// FirmwareImage is a catalog entry for a firmware package. The engine only
// references images by URI; it does not manage the binaries themselves.
type FirmwareImage struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ImageURI    string    `json:"image_uri"`
	Version     *string   `json:"version,omitempty"`
	ModelCompat *string   `json:"model_compat,omitempty"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

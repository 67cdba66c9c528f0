package request

// CreateFirmwareImage holds the request body for cataloging a firmware
// image. The binary itself is not uploaded here; image_uri must already be
// reachable by the BMCs.
type CreateFirmwareImage struct {
	Filename    string  `json:"filename" validate:"required"`
	ImageURI    string  `json:"image_uri" validate:"required,url"`
	Version     *string `json:"version"`
	ModelCompat *string `json:"model_compat"`
}

package request

// CreateHost holds the request body for registering a host.
type CreateHost struct {
	Hostname   string  `json:"hostname" validate:"required,min=1,max=255"`
	BMCAddr    string  `json:"bmc_addr" validate:"required"`
	VCenter    *string `json:"vcenter"`
	Cluster    *string `json:"cluster"`
	HostPolicy *string `json:"host_policy" validate:"omitempty,oneof=strict"`
}

// UpdateHost holds the request body for editing a host.
type UpdateHost struct {
	Hostname   string  `json:"hostname" validate:"required,min=1,max=255"`
	BMCAddr    string  `json:"bmc_addr" validate:"required"`
	VCenter    *string `json:"vcenter"`
	Cluster    *string `json:"cluster"`
	HostPolicy *string `json:"host_policy" validate:"omitempty,oneof=strict"`
}

// DispatchHostUpdate holds the request body for a manual single-host update.
type DispatchHostUpdate struct {
	FirmwarePath string `json:"firmware_path" validate:"required"`
	DryRun       bool   `json:"dry_run"`
}

// DispatchBatchUpdate holds the request body for a batch update across
// explicitly listed hosts.
type DispatchBatchUpdate struct {
	HostIDs      []string `json:"host_ids" validate:"required,min=1,dive,required"`
	FirmwarePath string   `json:"firmware_path" validate:"required"`
	DryRun       bool     `json:"dry_run"`
}

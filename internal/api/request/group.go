package request

// CreateGroup holds the request body for creating a host group.
type CreateGroup struct {
	Name        string  `json:"name" validate:"required,slug"`
	Description *string `json:"description"`
}

// SetGroupMembers holds the request body for replacing a group's members.
type SetGroupMembers struct {
	HostIDs []string `json:"host_ids" validate:"required,dive,required"`
}

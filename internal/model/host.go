package model

import "time"

// Host is a managed server: its management-controller (BMC) address plus
// optional vSphere membership. The engine mutates only the status fields;
// inventory collaborators own the rest. Hosts are never deleted by the
// engine.
type Host struct {
	ID          string    `json:"id"`
	Hostname    string    `json:"hostname"`
	BMCAddr     string    `json:"bmc_addr"`
	VCenter     *string   `json:"vcenter,omitempty"`
	Cluster     *string   `json:"cluster,omitempty"`
	HostPolicy  *string   `json:"host_policy,omitempty"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
	LastStatus  string    `json:"last_status"`
	LastMessage *string   `json:"last_message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HostPolicyStrict makes a failed maintenance mode transition abort the
// update instead of proceeding with the host still in service.
const HostPolicyStrict = "strict"

// HasVCenter reports whether the host belongs to a virtualization cluster
// and therefore needs maintenance mode around disruptive operations.
func (h *Host) HasVCenter() bool {
	return h.VCenter != nil && *h.VCenter != ""
}

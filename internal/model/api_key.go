package model

import "time"

// API key roles, ordered by privilege. Viewers read, operators additionally
// dispatch updates and manage schedules, admins additionally manage
// inventory, vCenters, and API keys.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// APIKey is an authentication credential for the control-plane API. Only
// the SHA-256 hash of the key material is stored.
type APIKey struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	KeyHash   string     `json:"-"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// RoleAllows reports whether a key with role has the privileges of need.
func RoleAllows(role, need string) bool {
	rank := map[string]int{RoleViewer: 1, RoleOperator: 2, RoleAdmin: 3}
	return rank[role] >= rank[need] && rank[role] != 0 && rank[need] != 0
}

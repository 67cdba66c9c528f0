package model

import "time"

// HostGroup is a named set of hosts used as a schedule targeting mechanism.
// Read-only from the engine's perspective.
type HostGroup struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

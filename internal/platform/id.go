package platform

import "github.com/google/uuid"

// NewID returns a new random UUID string, used as the primary key for all
// fleet resources.
func NewID() string {
	return uuid.New().String()
}

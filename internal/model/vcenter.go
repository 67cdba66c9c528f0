package model

import "time"

// VCenter is a configured vSphere endpoint. PasswordEnc is AES-GCM
// encrypted at rest and never serialized.
type VCenter struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Username    string    `json:"username"`
	PasswordEnc string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

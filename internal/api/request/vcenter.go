package request

// CreateVCenter holds the request body for configuring a vSphere endpoint.
// The password is encrypted before it reaches the database and never
// returned by the API.
type CreateVCenter struct {
	Name     string `json:"name" validate:"required,slug"`
	URL      string `json:"url" validate:"required,url"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

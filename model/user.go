package models

// Role names carried in tokens and stored on users.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

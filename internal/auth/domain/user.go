package domain

import "time"

// Application roles. Stored on the user row and carried in access-token
// claims; the audit app's API decides what each role may do.
const (
	RoleAdmin   = "admin"
	RoleAuditor = "auditor"
	RoleViewer  = "viewer"
)

type User struct {
	ID           string
	Email        string // unique, lowercased
	Name         string
	PasswordHash string // argon2id encoded
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Package identity holds the user collaborator consumed by the auth
// subsystem: the user model, argon2id password hashing, and user stores.
package identity

import "time"

// Role is a user's display role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the public profile of an account.
type User struct {
	ID          string    `json:"id"`
	LoginName   string    `json:"login_name"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Role        Role      `json:"role"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Occupation  string    `json:"occupation,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserAuth pairs a profile with its password hash for login verification.
// The hash never leaves this package boundary except to VerifyPassword.
type UserAuth struct {
	User         User
	PasswordHash string
}

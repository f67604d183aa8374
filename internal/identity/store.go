package identity

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// ErrLoginNameTaken is returned by Create when the login name is already
// registered. Every backend enforces it; login names are unique.
var ErrLoginNameTaken = errors.New("login name already taken")

// CreateUserInput carries everything needed to register an account.
type CreateUserInput struct {
	LoginName   string
	Password    string
	FirstName   string
	LastName    string
	Role        Role
	Location    string
	Description string
	Occupation  string
}

// Store abstracts user persistence.
type Store interface {
	// Create registers a new user; the password is hashed before storage.
	Create(ctx context.Context, in CreateUserInput) (User, error)

	// GetByID loads a public profile.
	GetByID(ctx context.Context, id string) (User, error)

	// GetAuthByLoginName loads a profile plus password hash for login.
	GetAuthByLoginName(ctx context.Context, loginName string) (UserAuth, error)

	// List returns all public profiles ordered by name.
	List(ctx context.Context) ([]User, error)
}

package authapi

import (
	"time"

	"photoshare/internal/identity"
)

type loginRequest struct {
	LoginName string `json:"login_name"`
	Password  string `json:"password"`
}

// The raw refresh secret travels only in the HTTP-only cookie, never in
// these bodies.
type sessionResponse struct {
	AccessToken     string        `json:"access_token"`
	AccessExpiresAt time.Time     `json:"access_expires_at"`
	User            identity.User `json:"user"`
}

type meResponse struct {
	User identity.User `json:"user"`
}

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned by Login for a bad login name or
	// password. Terminal; never retried by this package.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionExpired is returned by Renew when the presented refresh
	// secret is absent, revoked, or expired. The caller must treat the
	// session as fully ended.
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidRefresh is the store-level rotation failure: the secret
	// hash matched no currently valid record and nothing was mutated.
	ErrInvalidRefresh = errors.New("refresh secret invalid")

	// ErrRefreshReuse marks a rotated secret presented again, a possible
	// theft indicator. The store revokes every record of the affected
	// user before returning it. It matches ErrInvalidRefresh under
	// errors.Is.
	ErrRefreshReuse = fmt.Errorf("%w: reuse detected", ErrInvalidRefresh)

	// ErrIntegrity signals a store integrity violation such as a secret
	// hash collision. Fatal to the request, never silently swallowed.
	ErrIntegrity = errors.New("refresh store integrity violation")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)

package session

import (
	"context"
	"time"
)

// Revocation reasons recorded for audit.
const (
	ReasonRotated    = "rotated"
	ReasonLogout     = "logout"
	ReasonSuperseded = "superseded"
	ReasonReuse      = "reuse"
)

// Device is the opaque issuance context retained for audit. It is never
// used for authorization decisions.
type Device struct {
	UserAgent string
	IP        string
}

// Record is one persisted refresh secret. Owned exclusively by the Store.
type Record struct {
	ID               string
	UserID           string
	SecretHash       string
	ExpiresAt        time.Time
	Revoked          bool
	ReplacedByHash   *string
	RevocationReason *string
	UserAgent        string
	IP               string
	CreatedAt        time.Time
}

// Valid reports whether the record may still be exchanged.
func (r Record) Valid(now time.Time) bool {
	return !r.Revoked && r.ExpiresAt.After(now)
}

// Store abstracts refresh-token persistence.
//
// Rotate is the critical operation: its condition-and-mutate step must be
// atomic at the storage layer so that concurrent rotations of one secret
// yield exactly one winner.
type Store interface {
	// Insert persists a new record. A secret-hash collision is reported
	// as ErrIntegrity and never overwrites the existing record.
	Insert(ctx context.Context, rec Record) error

	// Rotate atomically consumes the valid record matching secretHash and
	// persists successor in its place. The consumed record is marked
	// revoked with its forward pointer set to successor.SecretHash;
	// successor inherits the consumed record's UserID. When no valid
	// record matches, nothing is mutated and ErrInvalidRefresh is
	// returned — except for a rotated secret presented again, which
	// revokes all records of the affected user and returns
	// ErrRefreshReuse.
	Rotate(ctx context.Context, now time.Time, secretHash string, successor Record) (Record, error)

	// Revoke marks the matching record revoked. Idempotent: absent or
	// already-revoked targets are a no-op, not an error.
	Revoke(ctx context.Context, now time.Time, secretHash, reason string) error

	// RevokeAllForUser revokes every record of a user. Idempotent.
	RevokeAllForUser(ctx context.Context, now time.Time, userID, reason string) error

	// SweepExpired removes records past their expiry and reports how many
	// were deleted. Storage reclamation only; validity checks never
	// depend on it.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

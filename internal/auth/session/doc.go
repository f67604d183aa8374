// Package session implements the refresh-token lifecycle: issuance,
// atomic rotation, revocation, and reuse handling.
//
// Refresh secrets are opaque random strings handed to the client; only
// their HMAC-SHA256 (or SHA-256 in dev) fingerprint is persisted. Each
// user has at most one valid record at a time: a new login supersedes
// all earlier sessions. Rotation consumes a secret exactly once; the
// condition-and-mutate step is a single atomic operation against the
// backing store, so concurrent rotations of the same secret produce one
// winner and losers that observe an invalid-refresh failure.
//
// Access tokens are issued by internal/auth/token and are not persisted.
package session

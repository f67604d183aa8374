package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in dev mode and tests.
//
// A single mutex spans every condition-and-mutate sequence, which gives
// Rotate the same exactly-one-winner behavior as the conditional update
// in the Postgres store.
type MemoryStore struct {
	mu     sync.Mutex
	byHash map[string]*Record
}

// NewMemoryStore creates an empty in-memory refresh-token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byHash: make(map[string]*Record)}
}

func (s *MemoryStore) Insert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byHash[rec.SecretHash]; exists {
		return ErrIntegrity
	}
	cp := rec
	s.byHash[rec.SecretHash] = &cp
	return nil
}

func (s *MemoryStore) Rotate(_ context.Context, now time.Time, secretHash string, successor Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byHash[secretHash]
	if !ok {
		return Record{}, ErrInvalidRefresh
	}

	if old.Revoked {
		if old.ReplacedByHash != nil {
			s.revokeAllLocked(old.UserID, ReasonReuse)
			return Record{}, ErrRefreshReuse
		}
		return Record{}, ErrInvalidRefresh
	}
	if !old.ExpiresAt.After(now) {
		return Record{}, ErrInvalidRefresh
	}

	if _, exists := s.byHash[successor.SecretHash]; exists {
		return Record{}, ErrIntegrity
	}

	reason := ReasonRotated
	old.Revoked = true
	old.ReplacedByHash = &successor.SecretHash
	old.RevocationReason = &reason

	successor.UserID = old.UserID
	cp := successor
	s.byHash[successor.SecretHash] = &cp
	return cp, nil
}

func (s *MemoryStore) Revoke(_ context.Context, _ time.Time, secretHash, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byHash[secretHash]
	if !ok || rec.Revoked {
		return nil
	}
	rec.Revoked = true
	rec.RevocationReason = &reason
	return nil
}

func (s *MemoryStore) RevokeAllForUser(_ context.Context, _ time.Time, userID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokeAllLocked(userID, reason)
	return nil
}

func (s *MemoryStore) revokeAllLocked(userID, reason string) {
	for _, rec := range s.byHash {
		if rec.UserID == userID && !rec.Revoked {
			rec.Revoked = true
			r := reason
			rec.RevocationReason = &r
		}
	}
}

func (s *MemoryStore) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, rec := range s.byHash {
		if !rec.ExpiresAt.After(now) {
			delete(s.byHash, hash)
			n++
		}
	}
	return n, nil
}

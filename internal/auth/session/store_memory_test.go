package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func testRecord(userID, secretHash string, ttl time.Duration) Record {
	now := time.Now().UTC()
	return Record{
		ID:         ulid.Make().String(),
		UserID:     userID,
		SecretHash: secretHash,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
}

func TestMemoryStore_RotateSucceedsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, st.Insert(ctx, testRecord("u1", "hash-1", time.Hour)))

	got, err := st.Rotate(ctx, now, "hash-1", testRecord("", "hash-2", time.Hour))
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID, "successor inherits the consumed record's user")

	_, err = st.Rotate(ctx, now, "hash-1", testRecord("", "hash-3", time.Hour))
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestMemoryStore_RotateConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, st.Insert(ctx, testRecord("u1", "hash-1", time.Hour)))

	const n = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  int
	)

	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := st.Rotate(ctx, now, "hash-1", testRecord("", fmt.Sprintf("hash-next-%d", i), time.Hour))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			default:
				require.ErrorIs(t, err, ErrInvalidRefresh)
				failures++
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, successes, "exactly one rotation may win")
	require.Equal(t, n-1, failures)
}

func TestMemoryStore_RotateExpiredFails(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, st.Insert(ctx, testRecord("u1", "hash-old", -time.Minute)))

	_, err := st.Rotate(ctx, now, "hash-old", testRecord("", "hash-new", time.Hour))
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestMemoryStore_ReuseRevokesWholeChain(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, st.Insert(ctx, testRecord("u1", "hash-1", time.Hour)))

	_, err := st.Rotate(ctx, now, "hash-1", testRecord("", "hash-2", time.Hour))
	require.NoError(t, err)

	// Replaying the rotated secret is a theft indicator: the successor
	// must die with it.
	_, err = st.Rotate(ctx, now, "hash-1", testRecord("", "hash-x", time.Hour))
	require.ErrorIs(t, err, ErrRefreshReuse)
	require.ErrorIs(t, err, ErrInvalidRefresh)

	_, err = st.Rotate(ctx, now, "hash-2", testRecord("", "hash-3", time.Hour))
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestMemoryStore_InsertCollisionIsIntegrityViolation(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.Insert(ctx, testRecord("u1", "hash-1", time.Hour)))
	require.ErrorIs(t, st.Insert(ctx, testRecord("u2", "hash-1", time.Hour)), ErrIntegrity)
}

func TestMemoryStore_RevokeIdempotent(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, st.Insert(ctx, testRecord("u1", "hash-1", time.Hour)))

	require.NoError(t, st.Revoke(ctx, now, "hash-1", ReasonLogout))
	require.NoError(t, st.Revoke(ctx, now, "hash-1", ReasonLogout))
	require.NoError(t, st.Revoke(ctx, now, "never-existed", ReasonLogout))

	_, err := st.Rotate(ctx, now, "hash-1", testRecord("", "hash-2", time.Hour))
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestMemoryStore_RevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, st.Insert(ctx, testRecord("u1", "hash-a", time.Hour)))
	require.NoError(t, st.Insert(ctx, testRecord("u2", "hash-b", time.Hour)))

	require.NoError(t, st.RevokeAllForUser(ctx, now, "u1", ReasonSuperseded))

	_, err := st.Rotate(ctx, now, "hash-a", testRecord("", "hash-a2", time.Hour))
	require.ErrorIs(t, err, ErrInvalidRefresh)

	// Other users are untouched.
	_, err = st.Rotate(ctx, now, "hash-b", testRecord("", "hash-b2", time.Hour))
	require.NoError(t, err)
}

func TestMemoryStore_SweepExpired(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, st.Insert(ctx, testRecord("u1", "hash-live", time.Hour)))
	require.NoError(t, st.Insert(ctx, testRecord("u1", "hash-dead", -time.Minute)))

	n, err := st.SweepExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	// The surviving record still rotates.
	_, err = st.Rotate(ctx, now, "hash-live", testRecord("", "hash-next", time.Hour))
	require.NoError(t, err)
}

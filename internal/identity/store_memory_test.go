package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	u, err := store.Create(ctx, CreateUserInput{
		LoginName: "took",
		Password:  "second breakfast",
		FirstName: "Peregrin",
		LastName:  "Took",
	})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.Equal(t, RoleUser, u.Role)

	got, err := store.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u, got)

	ua, err := store.GetAuthByLoginName(ctx, " took ")
	require.NoError(t, err)
	require.Equal(t, u.ID, ua.User.ID)

	ok, err := VerifyPassword("second breakfast", ua.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = store.GetByID(ctx, "no-such-id")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CreateRejectsTakenLoginName(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Create(ctx, CreateUserInput{LoginName: "took", Password: "second breakfast"})
	require.NoError(t, err)

	// Same name again, even with different casing of the surrounding input.
	_, err = store.Create(ctx, CreateUserInput{LoginName: " took ", Password: "a different passphrase"})
	require.ErrorIs(t, err, ErrLoginNameTaken)

	users, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestMemoryStore_ListOrdersByName(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, in := range []CreateUserInput{
		{LoginName: "took", Password: "second breakfast", FirstName: "Peregrin", LastName: "Took"},
		{LoginName: "gandalf", Password: "a wizard is never late", FirstName: "Gandalf", LastName: "Grey"},
		{LoginName: "merry", Password: "the brandywine", FirstName: "Meriadoc", LastName: "Brandybuck"},
	} {
		_, err := store.Create(ctx, in)
		require.NoError(t, err)
	}

	users, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	require.Equal(t, "Brandybuck", users[0].LastName)
	require.Equal(t, "Grey", users[1].LastName)
	require.Equal(t, "Took", users[2].LastName)
}

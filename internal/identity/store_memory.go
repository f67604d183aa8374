package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is an in-memory Store used in dev mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]User
	hashes map[string]string // user id -> password hash
}

// NewMemoryStore creates an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]User),
		hashes: make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, in CreateUserInput) (User, error) {
	hash, err := HashPassword(in.Password, DefaultArgon2idParams())
	if err != nil {
		return User{}, err
	}

	role := in.Role
	if role == "" {
		role = RoleUser
	}

	u := User{
		ID:          ulid.Make().String(),
		LoginName:   strings.TrimSpace(in.LoginName),
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		Role:        role,
		Location:    in.Location,
		Description: in.Description,
		Occupation:  in.Occupation,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.LoginName == u.LoginName {
			return User{}, ErrLoginNameTaken
		}
	}
	s.byID[u.ID] = u
	s.hashes[u.ID] = hash
	return u, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) GetAuthByLoginName(_ context.Context, loginName string) (UserAuth, error) {
	loginName = strings.TrimSpace(loginName)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byID {
		if u.LoginName == loginName {
			return UserAuth{User: u, PasswordHash: s.hashes[u.ID]}, nil
		}
	}
	return UserAuth{}, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]User, 0, len(s.byID))
	for _, u := range s.byID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].LastName != users[j].LastName {
			return users[i].LastName < users[j].LastName
		}
		return users[i].FirstName < users[j].FirstName
	})
	return users, nil
}

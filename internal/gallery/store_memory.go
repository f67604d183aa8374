package gallery

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is the in-process PhotoStore used in dev mode and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	photos   map[string]Photo
	comments map[string][]Comment // photo id -> comments, oldest first
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		photos:   make(map[string]Photo),
		comments: make(map[string][]Comment),
	}
}

func (s *MemoryStore) Insert(_ context.Context, p Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos[p.ID] = p
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Photo
	for _, p := range s.photos {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.photos[id]; !ok {
		return ErrNotFound
	}
	delete(s.photos, id)
	delete(s.comments, id)
	return nil
}

func (s *MemoryStore) AddComment(_ context.Context, c Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.photos[c.PhotoID]; !ok {
		return ErrNotFound
	}
	s.comments[c.PhotoID] = append(s.comments[c.PhotoID], c)
	return nil
}

func (s *MemoryStore) ListComments(_ context.Context, photoID string) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.photos[photoID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]Comment, len(s.comments[photoID]))
	copy(out, s.comments[photoID])
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

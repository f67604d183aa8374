package gallery

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no photo matches the given id.
var ErrNotFound = errors.New("gallery: photo not found")

// PhotoStore persists photos and their comments.
type PhotoStore interface {
	Insert(ctx context.Context, p Photo) error
	ListByUser(ctx context.Context, userID string) ([]Photo, error)

	// Delete removes a photo and its comments.
	Delete(ctx context.Context, id string) error

	// AddComment attaches a comment to an existing photo. ErrNotFound
	// when the photo does not exist.
	AddComment(ctx context.Context, c Comment) error

	// ListComments returns a photo's comments oldest first. ErrNotFound
	// when the photo does not exist.
	ListComments(ctx context.Context, photoID string) ([]Comment, error)
}

package gallery

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements PhotoStore on the photos table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, p Photo) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO photos (id, user_id, file_name, created_at)
		VALUES ($1, $2, $3, $4)
	`, p.ID, p.UserID, p.FileName, p.CreatedAt)
	return err
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Photo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, file_name, created_at
		FROM photos
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []Photo
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.UserID, &p.FileName, &p.CreatedAt); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AddComment(ctx context.Context, c Comment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO comments (id, photo_id, user_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.PhotoID, c.UserID, c.Text, c.CreatedAt)

	// 23503: the photo (or user) foreign key does not exist.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) ListComments(ctx context.Context, photoID string) ([]Comment, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM photos WHERE id = $1)
	`, photoID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, photo_id, user_id, text, created_at
		FROM comments
		WHERE photo_id = $1
		ORDER BY created_at, id
	`, photoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PhotoID, &c.UserID, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

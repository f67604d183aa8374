package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (refresh_tokens table).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed refresh-token store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (
			id, user_id, secret_hash, expires_at, revoked,
			replaced_by_hash, revocation_reason, user_agent, ip, created_at
		) VALUES ($1, $2, $3, $4, FALSE, NULL, NULL, $5, $6, $7)
	`, rec.ID, rec.UserID, rec.SecretHash, rec.ExpiresAt, rec.UserAgent, rec.IP, rec.CreatedAt)
	if isUniqueViolation(err) {
		return ErrIntegrity
	}
	return err
}

// Rotate performs the consume-and-replace inside one transaction. The
// conditional UPDATE is the atomic step: under concurrent rotations of
// the same secret, the loser's update matches zero rows once the winner
// commits, so exactly one successor is ever created.
func (s *PostgresStore) Rotate(ctx context.Context, now time.Time, secretHash string, successor Record) (Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID string
	err = tx.QueryRow(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE,
		    replaced_by_hash = $2,
		    revocation_reason = $3
		WHERE secret_hash = $1
		  AND NOT revoked
		  AND expires_at > $4
		RETURNING user_id
	`, secretHash, successor.SecretHash, ReasonRotated, now).Scan(&userID)

	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, s.classifyFailedRotate(ctx, tx, secretHash)
	}
	if err != nil {
		return Record{}, err
	}

	successor.UserID = userID
	_, err = tx.Exec(ctx, `
		INSERT INTO refresh_tokens (
			id, user_id, secret_hash, expires_at, revoked,
			replaced_by_hash, revocation_reason, user_agent, ip, created_at
		) VALUES ($1, $2, $3, $4, FALSE, NULL, NULL, $5, $6, $7)
	`, successor.ID, successor.UserID, successor.SecretHash, successor.ExpiresAt,
		successor.UserAgent, successor.IP, successor.CreatedAt)
	if isUniqueViolation(err) {
		return Record{}, ErrIntegrity
	}
	if err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return successor, nil
}

// classifyFailedRotate distinguishes a plainly invalid secret from the
// reuse of an already-rotated one. Reuse revokes the whole user's
// records before failing; the revocation is committed even though the
// rotation itself did not happen.
func (s *PostgresStore) classifyFailedRotate(ctx context.Context, tx pgx.Tx, secretHash string) error {
	var (
		userID     string
		revoked    bool
		replacedBy *string
	)
	err := tx.QueryRow(ctx, `
		SELECT user_id, revoked, replaced_by_hash
		FROM refresh_tokens
		WHERE secret_hash = $1
	`, secretHash).Scan(&userID, &revoked, &replacedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrInvalidRefresh
	}
	if err != nil {
		return err
	}

	if revoked && replacedBy != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked = TRUE,
			    revocation_reason = COALESCE(revocation_reason, $2)
			WHERE user_id = $1
		`, userID, ReasonReuse); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		return ErrRefreshReuse
	}

	return ErrInvalidRefresh
}

func (s *PostgresStore) Revoke(ctx context.Context, _ time.Time, secretHash, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE,
		    revocation_reason = COALESCE(revocation_reason, $2)
		WHERE secret_hash = $1
		  AND NOT revoked
	`, secretHash, reason)
	return err
}

func (s *PostgresStore) RevokeAllForUser(ctx context.Context, _ time.Time, userID, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE,
		    revocation_reason = COALESCE(revocation_reason, $2)
		WHERE user_id = $1
		  AND NOT revoked
	`, userID, reason)
	return err
}

func (s *PostgresStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM refresh_tokens
		WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore implements Store using PostgreSQL (users table).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed user store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) Create(ctx context.Context, in CreateUserInput) (User, error) {
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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (
			id, login_name, password_hash, first_name, last_name,
			role, location, description, occupation, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, u.ID, u.LoginName, hash, u.FirstName, u.LastName,
		string(u.Role), u.Location, u.Description, u.Occupation, u.CreatedAt)
	if isUniqueViolation(err) {
		return User{}, ErrLoginNameTaken
	}
	if err != nil {
		return User{}, err
	}

	return u, nil
}

const userColumns = `
	id, login_name, first_name, last_name,
	role, location, description, occupation, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	var role string
	err := row.Scan(
		&u.ID, &u.LoginName, &u.FirstName, &u.LastName,
		&role, &u.Location, &u.Description, &u.Occupation, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		SELECT`+userColumns+`
		FROM users
		WHERE id = $1
	`, id))
}

func (s *PostgresStore) GetAuthByLoginName(ctx context.Context, loginName string) (UserAuth, error) {
	var ua UserAuth
	var role string

	err := s.pool.QueryRow(ctx, `
		SELECT`+userColumns+`, password_hash
		FROM users
		WHERE login_name = $1
	`, strings.TrimSpace(loginName)).Scan(
		&ua.User.ID, &ua.User.LoginName, &ua.User.FirstName, &ua.User.LastName,
		&role, &ua.User.Location, &ua.User.Description, &ua.User.Occupation,
		&ua.User.CreatedAt, &ua.PasswordHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserAuth{}, ErrNotFound
	}
	if err != nil {
		return UserAuth{}, err
	}
	ua.User.Role = Role(role)
	return ua, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+userColumns+`
		FROM users
		ORDER BY last_name, first_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

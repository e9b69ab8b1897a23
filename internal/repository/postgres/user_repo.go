package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/goph-blog/internal/errs"
	"github.com/and161185/goph-blog/internal/model"
	"github.com/and161185/goph-blog/internal/repository"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

var _ repository.UserRepository = (*UserRepo)(nil)

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a user row; the id comes from the users_id_seq sequence.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (int64, error) {
	const q = `
INSERT INTO users (username, pwd_hash, salt, role)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`
	err := r.db.Pool.QueryRow(ctx, q, u.Username, u.PwdHash, u.Salt, string(u.Role)).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, errs.ErrAlreadyExists
		}
		return 0, err
	}
	return u.ID, nil
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	const q = `
SELECT id, username, pwd_hash, salt, role, created_at
FROM users WHERE id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByUsername selects a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `
SELECT id, username, pwd_hash, salt, role, created_at
FROM users WHERE username=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, username))
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PwdHash, &u.Salt, &role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/goph-blog/internal/errs"
	"github.com/and161185/goph-blog/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var userCols = []string{"id", "username", "pwd_hash", "salt", "role", "created_at"}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()
	u := &model.User{Username: "alice", PwdHash: []byte("h"), Salt: []byte("s"), Role: model.RoleAuthor}

	mock.ExpectQuery(`INSERT INTO users \(username, pwd_hash, salt, role\) VALUES \(\$1, \$2, \$3, \$4\) RETURNING id, created_at`).
		WithArgs("alice", []byte("h"), []byte("s"), "author").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), now))
	id, err := r.Create(ctx, u)
	require.NoError(t, err)
	require.Equal(t, int64(3), id)
	require.Equal(t, int64(3), u.ID)
	require.Equal(t, now, u.CreatedAt)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", []byte("h"), []byte("s"), "author").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = r.Create(ctx, u)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", []byte("h"), []byte("s"), "author").
		WillReturnError(errors.New("conn reset"))
	_, err = r.Create(ctx, u)
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrAlreadyExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, username, pwd_hash, salt, role, created_at FROM users WHERE id=\$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(int64(2), "bob", []byte("h"), []byte("s"), "reader", time.Now()))
	u, err := r.GetByID(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "bob", u.Username)
	require.Equal(t, model.RoleReader, u.Role)

	mock.ExpectQuery(`FROM users WHERE id=\$1`).
		WithArgs(int64(2)).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, 2)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_GetByUsername(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, username, pwd_hash, salt, role, created_at FROM users WHERE username=\$1`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(int64(1), "alice", []byte("h"), []byte("s"), "author", time.Now()))
	u, err := r.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(1), u.ID)
	require.Equal(t, model.RoleAuthor, u.Role)

	mock.ExpectQuery(`FROM users WHERE username=\$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByUsername(ctx, "ghost")
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(`FROM users WHERE username=\$1`).
		WithArgs("alice").
		WillReturnError(context.Canceled)
	_, err = r.GetByUsername(ctx, "alice")
	require.ErrorIs(t, err, context.Canceled)
}

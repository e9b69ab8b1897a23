package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/goph-blog/internal/errs"
	"github.com/and161185/goph-blog/internal/model"
	"github.com/and161185/goph-blog/internal/repository"
)

// PostRepo implements PostRepository using PostgreSQL.
type PostRepo struct{ db *DB }

var _ repository.PostRepository = (*PostRepo)(nil)

// NewPostRepo constructs a post repository.
func NewPostRepo(db *DB) *PostRepo { return &PostRepo{db: db} }

const postCols = `id, title, content, author_id, created_at`

// Create inserts a post row and returns its id.
func (r *PostRepo) Create(ctx context.Context, p *model.Post) (int64, error) {
	const q = `
INSERT INTO posts (title, content, author_id, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id`
	if err := r.db.Pool.QueryRow(ctx, q, p.Title, p.Content, p.AuthorID, p.CreatedAt).Scan(&p.ID); err != nil {
		return 0, err
	}
	return p.ID, nil
}

// List returns all posts ordered by id.
func (r *PostRepo) List(ctx context.Context) ([]model.Post, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+postCols+` FROM posts ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Post{}
	for rows.Next() {
		var p model.Post
		if err = rows.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns a single post by id.
func (r *PostRepo) Get(ctx context.Context, id int64) (*model.Post, error) {
	return scanPost(r.db.Pool.QueryRow(ctx, `SELECT `+postCols+` FROM posts WHERE id=$1`, id))
}

// Update locks the row, authorizes, then writes the patched fields.
func (r *PostRepo) Update(
	ctx context.Context, id int64, patch model.PostPatch, authorize func(model.Post) error,
) (out *model.Post, err error) {
	const upd = `UPDATE posts SET title=$2, content=$3 WHERE id=$1`

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		p, err := lockPost(ctx, tx, id)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(*p); err != nil {
				return err
			}
		}
		patch.Apply(p)
		if _, err := tx.Exec(ctx, upd, p.ID, p.Title, p.Content); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete locks the row, authorizes, then removes it.
func (r *PostRepo) Delete(
	ctx context.Context, id int64, authorize func(model.Post) error,
) (out *model.Post, err error) {
	const del = `DELETE FROM posts WHERE id=$1`

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		p, err := lockPost(ctx, tx, id)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(*p); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, del, id); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of posts.
func (r *PostRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func lockPost(ctx context.Context, tx pgx.Tx, id int64) (*model.Post, error) {
	return scanPost(tx.QueryRow(ctx, `SELECT `+postCols+` FROM posts WHERE id=$1 FOR UPDATE`, id))
}

func scanPost(row pgx.Row) (*model.Post, error) {
	var p model.Post
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

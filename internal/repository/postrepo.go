package repository

import (
	"context"

	"github.com/and161185/goph-blog/internal/model"
)

// PostRepository stores posts.
//
// Update and Delete run the authorize callback on the current record before
// mutating it, inside the same critical section (lock or transaction). If the
// callback returns an error nothing is changed and that error is returned.
type PostRepository interface {
	// Create inserts p, assigns p.ID and returns it.
	Create(ctx context.Context, p *model.Post) (int64, error)
	// List returns all posts ordered by ascending ID.
	List(ctx context.Context) ([]model.Post, error)
	// Get returns a single post by ID.
	Get(ctx context.Context, id int64) (*model.Post, error)
	// Update applies patch to the post after authorize approves it.
	Update(ctx context.Context, id int64, patch model.PostPatch, authorize func(model.Post) error) (*model.Post, error)
	// Delete removes the post after authorize approves it and returns the removed record.
	Delete(ctx context.Context, id int64, authorize func(model.Post) error) (*model.Post, error)
	// Count returns the number of stored posts.
	Count(ctx context.Context) (int, error)
}

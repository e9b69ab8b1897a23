package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/and161185/goph-blog/internal/errs"
	"github.com/and161185/goph-blog/internal/model"
	"github.com/and161185/goph-blog/internal/repository"
)

// PostRepo keeps posts in a map keyed by id.
type PostRepo struct {
	mu     sync.RWMutex
	nextID int64
	posts  map[int64]*model.Post
}

var _ repository.PostRepository = (*PostRepo)(nil)

// NewPostRepo constructs an empty post repository.
func NewPostRepo() *PostRepo {
	return &PostRepo{nextID: 1, posts: make(map[int64]*model.Post)}
}

// Create stores a copy of p under the next id. Ids are never reused, even after deletes.
func (r *PostRepo) Create(_ context.Context, p *model.Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *p
	cpy.ID = r.nextID
	r.nextID++
	r.posts[cpy.ID] = &cpy
	p.ID = cpy.ID
	return cpy.ID, nil
}

// List returns copies of all posts ordered by id.
func (r *PostRepo) List(_ context.Context) ([]model.Post, error) {
	r.mu.RLock()
	out := make([]model.Post, 0, len(r.posts))
	for _, p := range r.posts {
		out = append(out, *p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns a copy of the post with id.
func (r *PostRepo) Get(_ context.Context, id int64) (*model.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *p
	return &c, nil
}

// Update checks and patches the post while holding the write lock.
func (r *PostRepo) Update(_ context.Context, id int64, patch model.PostPatch, authorize func(model.Post) error) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if authorize != nil {
		if err := authorize(*p); err != nil {
			return nil, err
		}
	}
	patch.Apply(p)
	c := *p
	return &c, nil
}

// Delete checks and removes the post while holding the write lock.
func (r *PostRepo) Delete(_ context.Context, id int64, authorize func(model.Post) error) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if authorize != nil {
		if err := authorize(*p); err != nil {
			return nil, err
		}
	}
	delete(r.posts, id)
	return p, nil
}

// Count returns the number of stored posts.
func (r *PostRepo) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.posts), nil
}

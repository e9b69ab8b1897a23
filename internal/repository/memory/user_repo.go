// Package memory contains in-process implementations of repository interfaces.
// Nothing survives a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/goph-blog/internal/errs"
	"github.com/and161185/goph-blog/internal/model"
	"github.com/and161185/goph-blog/internal/repository"
)

// UserRepo keeps identities in two indexes under one lock.
type UserRepo struct {
	mu     sync.RWMutex
	nextID int64
	byName map[string]*model.User
	byID   map[int64]*model.User
	now    func() time.Time
}

var _ repository.UserRepository = (*UserRepo)(nil)

// NewUserRepo constructs an empty user repository.
func NewUserRepo() *UserRepo {
	return &UserRepo{
		nextID: 1,
		byName: make(map[string]*model.User),
		byID:   make(map[int64]*model.User),
		now:    time.Now,
	}
}

// Create stores a copy of u with the next id.
func (r *UserRepo) Create(_ context.Context, u *model.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[u.Username]; exists {
		return 0, errs.ErrAlreadyExists
	}
	cpy := *u
	cpy.ID = r.nextID
	if cpy.CreatedAt.IsZero() {
		cpy.CreatedAt = r.now().UTC()
	}
	r.nextID++
	r.byName[cpy.Username] = &cpy
	r.byID[cpy.ID] = &cpy

	u.ID, u.CreatedAt = cpy.ID, cpy.CreatedAt
	return cpy.ID, nil
}

// GetByID returns a copy of the user with id.
func (r *UserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

// GetByUsername returns a copy of the user named username.
func (r *UserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

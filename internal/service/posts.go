package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/goph-blog/internal/access"
	"github.com/and161185/goph-blog/internal/errs"
	"github.com/and161185/goph-blog/internal/model"
	"github.com/and161185/goph-blog/internal/repository"
)

// PostService defines post operations on behalf of an authenticated principal.
type PostService interface {
	// List returns every post with its author's username, ordered by id.
	List(ctx context.Context, p model.Principal) ([]model.PostView, error)
	// Get returns one post with its author's username. Any role may read.
	Get(ctx context.Context, p model.Principal, postID int64) (*model.PostView, error)
	// Create stores a new post owned by p. Requires the author role.
	Create(ctx context.Context, p model.Principal, title, content string) (*model.Post, error)
	// Update patches a post owned by p. Requires the author role.
	Update(ctx context.Context, p model.Principal, postID int64, patch model.PostPatch) (*model.Post, error)
	// Delete removes a post owned by p and returns it. Requires the author role.
	Delete(ctx context.Context, p model.Principal, postID int64) (*model.Post, error)
}

type PostServiceImpl struct {
	posts repository.PostRepository
	users repository.UserRepository
	log   *zap.Logger
	now   func() time.Time
}

var _ PostService = (*PostServiceImpl)(nil)

// NewPostService constructs PostService. A nil logger disables logging.
func NewPostService(posts repository.PostRepository, users repository.UserRepository, log *zap.Logger) *PostServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostServiceImpl{posts: posts, users: users, log: log, now: time.Now}
}

// List resolves author ids through the user repository, once per distinct author.
func (s *PostServiceImpl) List(ctx context.Context, _ model.Principal) ([]model.PostView, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[int64]string)
	out := make([]model.PostView, 0, len(posts))
	for _, p := range posts {
		name, ok := names[p.AuthorID]
		if !ok {
			if name, err = s.authorName(ctx, p); err != nil {
				return nil, err
			}
			names[p.AuthorID] = name
		}
		out = append(out, viewOf(p, name))
	}
	return out, nil
}

// Get fails with errs.ErrNotFound for an unknown id.
func (s *PostServiceImpl) Get(ctx context.Context, _ model.Principal, postID int64) (*model.PostView, error) {
	p, err := s.posts.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	name, err := s.authorName(ctx, *p)
	if err != nil {
		return nil, err
	}
	v := viewOf(*p, name)
	return &v, nil
}

// authorName is empty when the author no longer resolves.
func (s *PostServiceImpl) authorName(ctx context.Context, p model.Post) (string, error) {
	u, err := s.users.GetByID(ctx, p.AuthorID)
	switch {
	case err == nil:
		return u.Username, nil
	case errors.Is(err, errs.ErrNotFound):
		s.log.Warn("post author does not resolve", zap.Int64("postID", p.ID), zap.Int64("authorID", p.AuthorID))
		return "", nil
	default:
		return "", err
	}
}

func viewOf(p model.Post, author string) model.PostView {
	return model.PostView{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Author:    author,
		CreatedAt: p.CreatedAt,
	}
}

// Create accepts any title and content, including empty ones.
func (s *PostServiceImpl) Create(ctx context.Context, p model.Principal, title, content string) (*model.Post, error) {
	if _, err := access.RequireRole(p, model.RoleAuthor); err != nil {
		return nil, err
	}
	post := &model.Post{
		Title:     title,
		Content:   content,
		AuthorID:  p.UserID,
		CreatedAt: s.now().UTC(),
	}
	if _, err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	s.log.Info("post created", zap.Int64("postID", post.ID), zap.Int64("authorID", p.UserID))
	return post, nil
}

// Update checks role, existence and ownership in that order before patching.
func (s *PostServiceImpl) Update(ctx context.Context, p model.Principal, postID int64, patch model.PostPatch) (*model.Post, error) {
	if _, err := access.RequireRole(p, model.RoleAuthor); err != nil {
		return nil, err
	}
	return s.posts.Update(ctx, postID, patch, access.OwnedBy(p))
}

// Delete checks role, existence and ownership in that order before removing.
func (s *PostServiceImpl) Delete(ctx context.Context, p model.Principal, postID int64) (*model.Post, error) {
	if _, err := access.RequireRole(p, model.RoleAuthor); err != nil {
		return nil, err
	}
	post, err := s.posts.Delete(ctx, postID, access.OwnedBy(p))
	if err != nil {
		return nil, err
	}
	s.log.Info("post deleted", zap.Int64("postID", postID), zap.Int64("authorID", p.UserID))
	return post, nil
}

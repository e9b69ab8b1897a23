// Package service contains application services for authentication and posts.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/goph-blog/internal/crypto"
	"github.com/and161185/goph-blog/internal/errs"
	"github.com/and161185/goph-blog/internal/limiter"
	"github.com/and161185/goph-blog/internal/model"
	"github.com/and161185/goph-blog/internal/repository"
)

// AuthService defines registration and login operations.
type AuthService interface {
	// Register creates a new identity with a salted password hash.
	Register(ctx context.Context, username, password string, role model.Role) (userID int64, err error)
	// Login applies rate limiting, verifies credentials and issues a token.
	Login(ctx context.Context, username, password string) (model.Tokens, error)
	// Verify reports whether password matches username's stored hash.
	Verify(ctx context.Context, username, password string) (bool, error)
	// Find looks up an identity by username.
	Find(ctx context.Context, username string) (*model.User, error)
}

// Issuer signs access tokens.
type Issuer interface {
	Issue(username string) (model.Tokens, error)
}

// AuthOptions carries the knobs of AuthServiceImpl.
type AuthOptions struct {
	// CountSuccessfulLogins records every allowed attempt before verification.
	// When false only failed verifications count against the window.
	CountSuccessfulLogins bool
	Logger                *zap.Logger
	Now                   func() time.Time
}

type AuthServiceImpl struct {
	users    repository.UserRepository
	hasher   *pkgcrypto.Hasher
	tokens   Issuer
	lim      limiter.Limiter
	countAll bool
	log      *zap.Logger
	now      func() time.Time
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	users repository.UserRepository, hasher *pkgcrypto.Hasher, tokens Issuer, lim limiter.Limiter, opts AuthOptions,
) *AuthServiceImpl {
	s := &AuthServiceImpl{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		lim:      lim,
		countAll: opts.CountSuccessfulLogins,
		log:      opts.Logger,
		now:      opts.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Register validates the role, rejects taken usernames and stores the identity.
// The hash is computed before touching the repository so no lock is held during it.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string, role model.Role) (int64, error) {
	if !role.Valid() {
		return 0, errs.ErrInvalidRole
	}
	// fast path; the repository enforces uniqueness again on insert
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return 0, errs.ErrAlreadyExists
	} else if !errors.Is(err, errs.ErrNotFound) {
		return 0, err
	}

	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		Username:  username,
		PwdHash:   hash,
		Salt:      salt,
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	id, err := s.users.Create(ctx, u)
	if err != nil {
		return 0, err
	}
	s.log.Info("user registered", zap.Int64("userID", id), zap.String("role", string(role)))
	return id, nil
}

// Login checks the limiter, records the attempt, verifies the password and issues a token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (model.Tokens, error) {
	now := s.now()

	allowed, err := s.lim.Allow(ctx, username, now)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("limiter allow: %w", err)
	}
	if !allowed {
		s.log.Warn("login rate limited", zap.String("username", username))
		return model.Tokens{}, errs.ErrRateLimited
	}
	if s.countAll {
		if err := s.lim.RecordFailure(ctx, username, now); err != nil {
			return model.Tokens{}, fmt.Errorf("limiter record: %w", err)
		}
	}

	ok, err := s.Verify(ctx, username, password)
	if err != nil {
		return model.Tokens{}, err
	}
	if !ok {
		if !s.countAll {
			if err := s.lim.RecordFailure(ctx, username, now); err != nil {
				return model.Tokens{}, fmt.Errorf("limiter record: %w", err)
			}
		}
		// same error for unknown user and wrong password
		return model.Tokens{}, errs.ErrInvalidCredentials
	}

	return s.tokens.Issue(username)
}

// Verify reports whether password matches. Unknown usernames cost one hash too.
func (s *AuthServiceImpl) Verify(ctx context.Context, username, password string) (bool, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.hasher.Burn(password)
			return false, nil
		}
		return false, err
	}
	return s.hasher.Verify(password, u.Salt, u.PwdHash), nil
}

// Find looks up an identity without side effects.
func (s *AuthServiceImpl) Find(ctx context.Context, username string) (*model.User, error) {
	return s.users.GetByUsername(ctx, username)
}

// Package access derives request principals from bearer tokens and enforces
// role and ownership rules.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/goph-blog/internal/errs"
	"github.com/and161185/goph-blog/internal/model"
	"github.com/and161185/goph-blog/internal/repository"
)

// Verifier checks a token and returns its claims.
type Verifier interface {
	Verify(token string) (model.Claims, error)
}

// Guard resolves tokens into principals.
type Guard struct {
	tokens Verifier
	users  repository.UserRepository
}

// NewGuard constructs a Guard.
func NewGuard(tokens Verifier, users repository.UserRepository) *Guard {
	return &Guard{tokens: tokens, users: users}
}

// ResolvePrincipal verifies tok and loads its subject. Every failure is
// reported as errs.ErrUnauthenticated wrapping the cause; storage errors other
// than not-found are returned as is.
func (g *Guard) ResolvePrincipal(ctx context.Context, tok string) (model.Principal, error) {
	if tok == "" {
		return model.Principal{}, fmt.Errorf("%w: missing token", errs.ErrUnauthenticated)
	}
	claims, err := g.tokens.Verify(tok)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %w", errs.ErrUnauthenticated, err)
	}
	u, err := g.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Principal{}, fmt.Errorf("%w: %s", errs.ErrUnknownSubject, claims.Subject)
		}
		return model.Principal{}, err
	}
	return model.PrincipalOf(u), nil
}

// RequireRole passes p through if it holds role.
func RequireRole(p model.Principal, role model.Role) (model.Principal, error) {
	if p.Role != role {
		return model.Principal{}, errs.ErrAuthorRequired
	}
	return p, nil
}

// RequireOwnership fails unless p is the resource's author.
func RequireOwnership(p model.Principal, resourceAuthorID int64) error {
	if p.UserID != resourceAuthorID {
		return errs.ErrNotOwner
	}
	return nil
}

// OwnedBy adapts RequireOwnership to the repository authorize callback.
func OwnedBy(p model.Principal) func(model.Post) error {
	return func(post model.Post) error {
		return RequireOwnership(p, post.AuthorID)
	}
}

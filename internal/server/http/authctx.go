package httpserver

import (
	"context"

	"github.com/and161185/goph-blog/internal/model"
)

type ctxKey string

const principalKey ctxKey = "blog.principal"

// WithPrincipal stores the authenticated principal in context.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromCtx fetches the principal stored by Authenticate.
func PrincipalFromCtx(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(model.Principal)
	return p, ok
}

// Package token issues and verifies signed, time-limited access tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/goph-blog/internal/errs"
	"github.com/and161185/goph-blog/internal/model"
)

// DefaultTTL is the access token lifetime.
const DefaultTTL = 15 * time.Minute

// Service signs HS256 JWTs whose subject is the username.
type Service struct {
	signKey []byte
	ttl     time.Duration
	now     func() time.Time
}

// Option tweaks a Service.
type Option func(*Service)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs a token service. A non-positive ttl falls back to DefaultTTL.
func New(signKey []byte, ttl time.Duration, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Service{signKey: signKey, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TTL returns the configured access token lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue creates a signed token for username valid for the configured TTL.
func (s *Service) Issue(username string) (model.Tokens, error) {
	if username == "" {
		return model.Tokens{}, errors.New("empty subject")
	}
	jti, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, err
	}
	now := s.now()
	exp := expiryFor(now, s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ID:        jti.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, nil
}

// expiryFor rounds the end of the validity window up to a whole second,
// since the exp claim carries no fraction.
func expiryFor(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if t := exp.Truncate(time.Second); !t.Equal(exp) {
		return t.Add(time.Second)
	}
	return exp
}

// Verify checks signature, algorithm and expiry. A token stays valid up to and
// including its exp instant. It returns errs.ErrTokenExpired for an otherwise
// valid token past its expiry and errs.ErrTokenInvalid for everything else.
func (s *Service) Verify(tok string) (model.Claims, error) {
	var claims jwt.RegisteredClaims
	// exp is checked below: the library rejects now == exp.
	_, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) {
		return s.signKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return model.Claims{}, fmt.Errorf("%w: %v", errs.ErrTokenInvalid, err)
	}
	if claims.ExpiresAt == nil {
		return model.Claims{}, fmt.Errorf("%w: missing exp", errs.ErrTokenInvalid)
	}
	if s.now().After(claims.ExpiresAt.Time) {
		return model.Claims{}, errs.ErrTokenExpired
	}
	if claims.Subject == "" {
		return model.Claims{}, fmt.Errorf("%w: missing subject", errs.ErrTokenInvalid)
	}

	out := model.Claims{Subject: claims.Subject, ID: claims.ID}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	out.ExpiresAt = claims.ExpiresAt.Time
	return out, nil
}

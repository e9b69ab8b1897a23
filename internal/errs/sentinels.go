// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidRole indicates a role outside of reader/author.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidCredentials is returned for both unknown username and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthenticated indicates a missing, invalid or expired bearer token,
	// or a token whose subject no longer resolves to an identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrTokenInvalid indicates a token that failed signature or structure checks.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrForbidden indicates an authenticated caller lacking permission.
	ErrForbidden = errors.New("forbidden")
)

// Refinements that keep errors.Is matching against their parent sentinel.
var (
	// ErrTokenExpired is an ErrTokenInvalid whose only defect is expiry.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrTokenInvalid)

	// ErrUnknownSubject is an ErrUnauthenticated for a valid token whose
	// subject no longer resolves to a user.
	ErrUnknownSubject = fmt.Errorf("%w: unknown subject", ErrUnauthenticated)

	// ErrAuthorRequired is an ErrForbidden caused by a role mismatch.
	ErrAuthorRequired = fmt.Errorf("%w: author role required", ErrForbidden)

	// ErrNotOwner is an ErrForbidden caused by an ownership mismatch.
	ErrNotOwner = fmt.Errorf("%w: not the owner", ErrForbidden)
)

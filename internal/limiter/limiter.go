// Package limiter defines interfaces and implementations for login rate limiting.
package limiter

import (
	"context"
	"time"
)

// Defaults for the login sliding window.
const (
	DefaultWindow   = 60 * time.Second
	DefaultMaxFails = 5
)

// Limiter tracks login attempts per username within a sliding window.
//
// A window opens on the first attempt for a username and resets once more than
// the window duration has passed since it opened. Within a window at most
// maxFails attempts are recorded before Allow starts refusing.
type Limiter interface {
	// Allow reports whether a login attempt is currently allowed for username.
	Allow(ctx context.Context, username string, now time.Time) (bool, error)
	// RecordFailure counts an attempt against username's current window.
	RecordFailure(ctx context.Context, username string, now time.Time) error
}

// Sweeper drops state for usernames whose window has elapsed. An elapsed
// entry behaves exactly like a missing one, so sweeping only bounds storage.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

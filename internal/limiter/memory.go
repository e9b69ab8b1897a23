package limiter

import (
	"context"
	"sync"
	"time"
)

type attemptState struct {
	failCount   int
	windowStart time.Time
}

// Memory is an in-process Limiter guarded by a single mutex.
type Memory struct {
	mu       sync.Mutex
	window   time.Duration
	maxFails int
	attempts map[string]*attemptState
}

var (
	_ Limiter = (*Memory)(nil)
	_ Sweeper = (*Memory)(nil)
)

// NewMemory constructs an in-memory limiter. Non-positive values fall back to defaults.
func NewMemory(window time.Duration, maxFails int) *Memory {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxFails <= 0 {
		maxFails = DefaultMaxFails
	}
	return &Memory{
		window:   window,
		maxFails: maxFails,
		attempts: make(map[string]*attemptState),
	}
}

// Allow opens a window on first sight, resets an elapsed one, and otherwise
// allows while the failure count is below the cap.
func (m *Memory) Allow(_ context.Context, username string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.attempts[username]
	if !ok {
		m.attempts[username] = &attemptState{windowStart: now}
		return true, nil
	}
	if now.Sub(st.windowStart) > m.window {
		st.failCount = 0
		st.windowStart = now
		return true, nil
	}
	return st.failCount < m.maxFails, nil
}

// RecordFailure increments the counter; the window start is left untouched.
func (m *Memory) RecordFailure(_ context.Context, username string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.attempts[username]
	if !ok {
		m.attempts[username] = &attemptState{failCount: 1, windowStart: now}
		return nil
	}
	st.failCount++
	return nil
}

// Sweep drops entries whose window has elapsed and returns how many were removed.
func (m *Memory) Sweep(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for name, st := range m.attempts {
		if now.Sub(st.windowStart) > m.window {
			delete(m.attempts, name)
			n++
		}
	}
	return n, nil
}

// Len returns the number of tracked usernames.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// SaltLen is the per-user salt size in bytes.
const SaltLen = 16

// Params are the Argon2id cost parameters.
type Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultParams are tuned for server-side hashing.
var DefaultParams = Params{
	Time:    3,
	Memory:  64 * 1024, // 64 MB
	Threads: 1,
	KeyLen:  32,
}

// Hasher hashes and verifies passwords with fixed Argon2id parameters.
type Hasher struct {
	p     Params
	dummy []byte
}

// NewHasher returns a Hasher for p. Zero fields fall back to DefaultParams.
func NewHasher(p Params) *Hasher {
	if p.Time == 0 {
		p.Time = DefaultParams.Time
	}
	if p.Memory == 0 {
		p.Memory = DefaultParams.Memory
	}
	if p.Threads == 0 {
		p.Threads = DefaultParams.Threads
	}
	if p.KeyLen == 0 {
		p.KeyLen = DefaultParams.KeyLen
	}
	dummy, err := RandBytes(SaltLen)
	if err != nil {
		dummy = make([]byte, SaltLen)
	}
	return &Hasher{p: p, dummy: dummy}
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Hash derives a fresh salt and returns (hash, salt).
func (h *Hasher) Hash(password string) (hash, salt []byte, err error) {
	salt, err = RandBytes(SaltLen)
	if err != nil {
		return nil, nil, err
	}
	return h.HashWithSalt([]byte(password), salt), salt, nil
}

// HashWithSalt returns Argon2id hash of password using the provided salt.
func (h *Hasher) HashWithSalt(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, h.p.Time, h.p.Memory, h.p.Threads, h.p.KeyLen)
}

// Verify reports whether password matches expected under salt. The comparison is constant-time.
func (h *Hasher) Verify(password string, salt, expected []byte) bool {
	got := h.HashWithSalt([]byte(password), salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// Burn spends one hash computation without a stored identity so that lookups
// of unknown usernames take as long as real verifications.
func (h *Hasher) Burn(password string) {
	_ = h.HashWithSalt([]byte(password), h.dummy)
}

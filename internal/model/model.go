// Package model defines domain entities used by services and repositories.
package model

import (
	"time"
)

// Role is the permission level fixed at registration.
type Role string

const (
	RoleReader Role = "reader"
	RoleAuthor Role = "author"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleReader || r == RoleAuthor
}

// Tokens collects an issued access token and its expiry.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// Claims is the verified content of an access token.
type Claims struct {
	Subject   string // username
	ID        string // jti
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// User represents a registered identity. The password is never stored in plaintext.
type User struct {
	ID        int64  // monotonically assigned, never reused
	Username  string // unique, immutable
	PwdHash   []byte // Argon2id(password, Salt)
	Salt      []byte // per-user salt
	Role      Role
	CreatedAt time.Time
}

// Principal is the authenticated caller of a single request.
type Principal struct {
	UserID   int64
	Username string
	Role     Role
}

// PrincipalOf derives the request principal from a stored user.
func PrincipalOf(u *User) Principal {
	return Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
}

// Post is a text entry owned by an author.
type Post struct {
	ID        int64
	Title     string
	Content   string
	AuthorID  int64 // immutable after creation
	CreatedAt time.Time
}

// PostPatch carries a partial update; nil fields keep their previous value.
type PostPatch struct {
	Title   *string
	Content *string
}

// Apply overwrites the fields present in the patch.
func (pp PostPatch) Apply(p *Post) {
	if pp.Title != nil {
		p.Title = *pp.Title
	}
	if pp.Content != nil {
		p.Content = *pp.Content
	}
}

// PostView is a post as presented to readers, with the author resolved to a username.
type PostView struct {
	ID        int64
	Title     string
	Content   string
	Author    string // empty if the author id does not resolve
	CreatedAt time.Time
}

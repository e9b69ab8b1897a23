package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	pkgcrypto "github.com/and161185/goph-blog/internal/crypto"
	"github.com/and161185/goph-blog/internal/errs"
	"github.com/and161185/goph-blog/internal/limiter"
	"github.com/and161185/goph-blog/internal/model"
	"github.com/and161185/goph-blog/internal/repository"
	"github.com/and161185/goph-blog/internal/repository/memory"
	"github.com/and161185/goph-blog/internal/token"
)

var cheapHasher = pkgcrypto.NewHasher(pkgcrypto.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32})

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeLimiter struct {
	allowOK  bool
	allowErr error
	failErr  error

	allowCalls   int
	failureCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, time.Time) (bool, error) {
	l.allowCalls++
	return l.allowOK, l.allowErr
}
func (l *fakeLimiter) RecordFailure(context.Context, string, time.Time) error {
	l.failureCalls++
	return l.failErr
}

type fakeUsers struct {
	repository.UserRepository
	getErr error
}

func (f *fakeUsers) GetByUsername(ctx context.Context, name string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.UserRepository.GetByUsername(ctx, name)
}

func newAuth(t *testing.T, lim limiter.Limiter, countAll bool) (*AuthServiceImpl, *token.Service, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
	tokens := token.New([]byte("secret"), 15*time.Minute, token.WithClock(clk.Now))
	s := NewAuthService(memory.NewUserRepo(), cheapHasher, tokens, lim, AuthOptions{
		CountSuccessfulLogins: countAll,
		Logger:                zaptest.NewLogger(t),
		Now:                   clk.Now,
	})
	return s, tokens, clk
}

func TestAuth_Register_Basics(t *testing.T) {
	t.Parallel()
	s, _, _ := newAuth(t, &fakeLimiter{allowOK: true}, true)
	ctx := context.Background()

	id, err := s.Register(ctx, "alice", "pwd", model.RoleAuthor)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id != 1 {
		t.Fatalf("id=%d, want 1", id)
	}
	id2, err := s.Register(ctx, "bob", "pwd", model.RoleReader)
	if err != nil || id2 != 2 {
		t.Fatalf("Register bob: id=%d err=%v", id2, err)
	}

	u, err := s.Find(ctx, "alice")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if string(u.PwdHash) == "pwd" || len(u.Salt) != pkgcrypto.SaltLen {
		t.Fatalf("password stored badly: %+v", u)
	}
	if _, err := s.Find(ctx, "nobody"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestAuth_Register_DuplicateAlwaysFails(t *testing.T) {
	t.Parallel()
	s, _, _ := newAuth(t, &fakeLimiter{allowOK: true}, true)
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice", "pwd", model.RoleAuthor); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for _, role := range []model.Role{model.RoleAuthor, model.RoleReader} {
		if _, err := s.Register(ctx, "alice", "other", role); !errors.Is(err, errs.ErrAlreadyExists) {
			t.Fatalf("role %s: want ErrAlreadyExists, got %v", role, err)
		}
	}
	ok, err := s.Verify(ctx, "alice", "pwd")
	if err != nil || !ok {
		t.Fatalf("original password must still verify: ok=%v err=%v", ok, err)
	}
}

func TestAuth_Register_InvalidRoleCreatesNothing(t *testing.T) {
	t.Parallel()
	s, _, _ := newAuth(t, &fakeLimiter{allowOK: true}, true)
	ctx := context.Background()

	for _, role := range []model.Role{"admin", "", "Author"} {
		if _, err := s.Register(ctx, "carol", "pwd", role); !errors.Is(err, errs.ErrInvalidRole) {
			t.Fatalf("role %q: want ErrInvalidRole, got %v", role, err)
		}
	}
	if _, err := s.Find(ctx, "carol"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("identity must not exist after invalid role, got %v", err)
	}
	if _, err := s.Register(ctx, "carol", "pwd", model.RoleReader); err != nil {
		t.Fatalf("retry with valid role: %v", err)
	}
}

func TestAuth_Register_StorageErrorPropagates(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	s := NewAuthService(&fakeUsers{UserRepository: memory.NewUserRepo(), getErr: boom}, cheapHasher,
		token.New([]byte("k"), time.Minute), &fakeLimiter{allowOK: true}, AuthOptions{})

	if _, err := s.Register(context.Background(), "alice", "pwd", model.RoleAuthor); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
}

func TestAuth_Login_LimiterAndCreds(t *testing.T) {
	t.Parallel()
	lim := &fakeLimiter{allowOK: true}
	s, tokens, _ := newAuth(t, lim, true)
	ctx := context.Background()
	if _, err := s.Register(ctx, "alice", "correct", model.RoleAuthor); err != nil {
		t.Fatalf("Register: %v", err)
	}

	lim.allowErr = errors.New("lim-err")
	if _, err := s.Login(ctx, "alice", "correct"); err == nil {
		t.Fatalf("want limiter error propagate")
	}
	lim.allowErr = nil

	lim.allowOK = false
	if _, err := s.Login(ctx, "alice", "correct"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	lim.allowOK = true

	if _, err := s.Login(ctx, "nope", "x"); !errors.Is(err, errs.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials on missing user, got %v", err)
	}
	if _, err := s.Login(ctx, "alice", "wrong"); !errors.Is(err, errs.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials on wrong password, got %v", err)
	}

	tk, err := s.Login(ctx, "alice", "correct")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	c, err := tokens.Verify(tk.AccessToken)
	if err != nil || c.Subject != "alice" {
		t.Fatalf("token does not verify: %+v %v", c, err)
	}
}

func TestAuth_Login_CountsEveryAttemptByDefault(t *testing.T) {
	t.Parallel()
	lim := &fakeLimiter{allowOK: true}
	s, _, _ := newAuth(t, lim, true)
	ctx := context.Background()
	_, _ = s.Register(ctx, "alice", "correct", model.RoleAuthor)

	_, _ = s.Login(ctx, "alice", "correct")
	_, _ = s.Login(ctx, "alice", "wrong")
	if lim.allowCalls != 2 || lim.failureCalls != 2 {
		t.Fatalf("allow=%d failure=%d, want 2/2", lim.allowCalls, lim.failureCalls)
	}
}

func TestAuth_Login_SkipSuccessfulWhenConfigured(t *testing.T) {
	t.Parallel()
	lim := &fakeLimiter{allowOK: true}
	s, _, _ := newAuth(t, lim, false)
	ctx := context.Background()
	_, _ = s.Register(ctx, "alice", "correct", model.RoleAuthor)

	_, _ = s.Login(ctx, "alice", "correct")
	_, _ = s.Login(ctx, "alice", "wrong")
	if lim.allowCalls != 2 || lim.failureCalls != 1 {
		t.Fatalf("allow=%d failure=%d, want 2/1", lim.allowCalls, lim.failureCalls)
	}
}

func TestAuth_Login_RecordErrorPropagates(t *testing.T) {
	t.Parallel()
	lim := &fakeLimiter{allowOK: true, failErr: errors.New("rec")}
	s, _, _ := newAuth(t, lim, true)

	if _, err := s.Login(context.Background(), "alice", "x"); err == nil || errors.Is(err, errs.ErrInvalidCredentials) {
		t.Fatalf("want limiter record error, got %v", err)
	}
}

func TestAuth_Login_SlidingWindowWithMemoryLimiter(t *testing.T) {
	t.Parallel()
	lim := limiter.NewMemory(time.Minute, 5)
	s, _, clk := newAuth(t, lim, true)
	ctx := context.Background()
	_, _ = s.Register(ctx, "alice", "correct", model.RoleAuthor)

	for i := 0; i < 5; i++ {
		if _, err := s.Login(ctx, "alice", "wrong"); !errors.Is(err, errs.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: want ErrInvalidCredentials, got %v", i+1, err)
		}
		clk.Advance(time.Second)
	}
	if _, err := s.Login(ctx, "alice", "correct"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("6th attempt: want ErrRateLimited, got %v", err)
	}

	clk.Advance(56 * time.Second) // 61s after the first attempt
	if _, err := s.Login(ctx, "alice", "correct"); err != nil {
		t.Fatalf("after window: %v", err)
	}
}

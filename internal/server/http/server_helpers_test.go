package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/goph-blog/internal/access"
	pkgcrypto "github.com/and161185/goph-blog/internal/crypto"
	"github.com/and161185/goph-blog/internal/limiter"
	"github.com/and161185/goph-blog/internal/repository/memory"
	"github.com/and161185/goph-blog/internal/service"
	"github.com/and161185/goph-blog/internal/token"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	srv    *httptest.Server
	clock  *testClock
	posts  *memory.PostRepo
	tokens *token.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t)
	clk := &testClock{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}

	users := memory.NewUserRepo()
	posts := memory.NewPostRepo()
	tokens := token.New([]byte("test-secret"), token.DefaultTTL, token.WithClock(clk.Now))
	hasher := pkgcrypto.NewHasher(pkgcrypto.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32})

	auth := service.NewAuthService(users, hasher, tokens, limiter.NewMemory(time.Minute, 5), service.AuthOptions{
		CountSuccessfulLogins: true,
		Logger:                log,
		Now:                   clk.Now,
	})
	postSvc := service.NewPostService(posts, users, log)

	h := NewHandler(auth, postSvc, log)
	srv := httptest.NewServer(NewRouter(h, access.NewGuard(tokens, users), log, RouterOptions{}))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, clock: clk, posts: posts, tokens: tokens}
}

func postBody(title, content string) postRequest {
	return postRequest{Title: &title, Content: &content}
}

// do sends body as JSON and decodes the answer into out when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path, tok string, body, out any) int {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *testEnv) register(t *testing.T, username, password, role string) int64 {
	t.Helper()
	var out registerResponse
	code := e.do(t, http.MethodPost, "/register", "", registerRequest{Username: username, Password: password, Role: role}, &out)
	require.Equal(t, http.StatusOK, code)
	return out.UserID
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	var out loginResponse
	code := e.do(t, http.MethodPost, "/login", "", loginRequest{Username: username, Password: password}, &out)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "bearer", out.TokenType)
	return out.AccessToken
}

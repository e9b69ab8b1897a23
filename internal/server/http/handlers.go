// Package httpserver exposes the blog HTTP/JSON API.
package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/and161185/goph-blog/internal/errs"
	"github.com/and161185/goph-blog/internal/model"
	"github.com/and161185/goph-blog/internal/service"
)

const welcome = "Welcome to Simple Blog API with JWT Authentication!"

type messageResponse struct {
	Message string `json:"message"`
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// postRequest is absent-aware: create needs both keys, update takes either.
type postRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type postResponse struct {
	ID        int64     `json:"post_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type postChangedResponse struct {
	Message string `json:"message"`
	PostID  int64  `json:"post_id"`
	Title   string `json:"title"`
}

type postUpdatedResponse struct {
	Message string `json:"message"`
	PostID  int64  `json:"post_id"`
}

type whoamiResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Handler wires services into HTTP handlers.
type Handler struct {
	auth  service.AuthService
	posts service.PostService
	log   *zap.Logger
}

// NewHandler constructs a Handler with injected services.
func NewHandler(auth service.AuthService, posts service.PostService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{auth: auth, posts: posts, log: log}
}

// Root answers with a static greeting.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: welcome})
}

// Register creates a new identity.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	id, err := h.auth.Register(r.Context(), req.Username, req.Password, model.Role(req.Role))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, registerResponse{
		Message: fmt.Sprintf("User %s registered successfully as %s", req.Username, req.Role),
		UserID:  id,
	})
}

// Login authenticates a user and returns an access token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	tok, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: tok.AccessToken,
		TokenType:   "bearer",
		ExpiresAt:   tok.ExpiresAt,
	})
}

// ListPosts returns every post, oldest first.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromCtx(r.Context())
	views, err := h.posts.List(r.Context(), p)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out := make([]postResponse, 0, len(views))
	for _, v := range views {
		out = append(out, postResponse{
			ID:        v.ID,
			Title:     v.Title,
			Content:   v.Content,
			Author:    v.Author,
			CreatedAt: v.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPost returns a single post.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromCtx(r.Context())
	id, err := postID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	v, err := h.posts.Get(r.Context(), p, id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, postResponse{
		ID:        v.ID,
		Title:     v.Title,
		Content:   v.Content,
		Author:    v.Author,
		CreatedAt: v.CreatedAt,
	})
}

// CreatePost stores a post owned by the caller.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromCtx(r.Context())
	var req postRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if req.Title == nil || req.Content == nil {
		writeError(w, r, h.log, fmt.Errorf("%w: title and content are required", errBadJSON))
		return
	}
	post, err := h.posts.Create(r.Context(), p, *req.Title, *req.Content)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, postChangedResponse{
		Message: "Post created successfully",
		PostID:  post.ID,
		Title:   post.Title,
	})
}

// UpdatePost patches a post owned by the caller.
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromCtx(r.Context())
	id, err := postID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req postRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	post, err := h.posts.Update(r.Context(), p, id, model.PostPatch{Title: req.Title, Content: req.Content})
	if err != nil {
		if errors.Is(err, errs.ErrNotOwner) {
			writeDetail(w, http.StatusForbidden, "You can only update your own posts")
			return
		}
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, postUpdatedResponse{Message: "Post updated successfully", PostID: post.ID})
}

// DeletePost removes a post owned by the caller.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromCtx(r.Context())
	id, err := postID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	post, err := h.posts.Delete(r.Context(), p, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotOwner) {
			writeDetail(w, http.StatusForbidden, "You can only delete your own posts")
			return
		}
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, postChangedResponse{
		Message: "Post deleted successfully",
		PostID:  post.ID,
		Title:   post.Title,
	})
}

// Whoami echoes the caller's principal.
func (h *Handler) Whoami(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromCtx(r.Context())
	writeJSON(w, http.StatusOK, whoamiResponse{UserID: p.UserID, Username: p.Username, Role: string(p.Role)})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return nil
}

func postID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errBadID, err)
	}
	return id, nil
}

package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions tune the router. Zero values are usable.
type RouterOptions struct {
	// CORSOrigins enables CORS for the listed origins. Empty disables it.
	CORSOrigins []string
	// Timeout bounds each request. Zero disables it.
	Timeout time.Duration
}

// NewRouter mounts the API on a chi router. Every /posts and /me route
// requires a bearer token.
func NewRouter(h *Handler, guard PrincipalResolver, log *zap.Logger, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logging(log))
	r.Use(Recover(log))
	if opts.Timeout > 0 {
		r.Use(middleware.Timeout(opts.Timeout))
	}
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/", h.Root)
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(guard, log))
		r.Get("/me", h.Whoami)
		r.Route("/posts", func(r chi.Router) {
			r.Get("/", h.ListPosts)
			r.Post("/", h.CreatePost)
			r.Get("/{id}", h.GetPost)
			r.Put("/{id}", h.UpdatePost)
			r.Delete("/{id}", h.DeletePost)
		})
	})

	return r
}

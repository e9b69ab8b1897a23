package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/and161185/goph-blog/internal/errs"
	"github.com/and161185/goph-blog/internal/model"
)

// PrincipalResolver turns a bearer token into a principal.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, tok string) (model.Principal, error)
}

// Logging returns middleware for structured request logging.
func Logging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			// только метаданные, тела запросов не пишем
			log.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
				zap.String("requestID", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// Recover returns middleware that turns panics into 500 responses.
func Recover(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic",
						zap.Any("reason", rec),
						zap.ByteString("stack", debug.Stack()),
						zap.String("path", r.URL.Path),
					)
					writeDetail(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate resolves the bearer token and stores the principal in the
// request context. Requests without a valid token never reach next.
func Authenticate(guard PrincipalResolver, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, err := bearerToken(r)
			if err != nil {
				writeError(w, r, log, fmt.Errorf("%w: %w", errs.ErrUnauthenticated, err))
				return
			}
			p, err := guard.ResolvePrincipal(r.Context(), tok)
			if err != nil {
				if errors.Is(err, errs.ErrUnauthenticated) {
					log.Debug("token rejected", zap.Error(err))
				}
				writeError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	for _, v := range r.Header.Values("Authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}

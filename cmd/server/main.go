// Command blog-server starts the blog HTTP API and the optional admin gRPC listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/goph-blog/internal/access"
	"github.com/and161185/goph-blog/internal/config"
	pkgcrypto "github.com/and161185/goph-blog/internal/crypto"
	"github.com/and161185/goph-blog/internal/limiter"
	"github.com/and161185/goph-blog/internal/migrate"
	"github.com/and161185/goph-blog/internal/repository"
	"github.com/and161185/goph-blog/internal/repository/memory"
	"github.com/and161185/goph-blog/internal/repository/postgres"
	grpcserver "github.com/and161185/goph-blog/internal/server/grpc"
	httpserver "github.com/and161185/goph-blog/internal/server/http"
	"github.com/and161185/goph-blog/internal/service"
	"github.com/and161185/goph-blog/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var logger *zap.Logger
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// storage bundles the backend chosen by config.
type storage struct {
	users repository.UserRepository
	posts repository.PostRepository
	lim   limiter.Limiter
	check grpcserver.Checker
	close func()
}

// pickLimiter replaces the storage's own limiter when config asks for another backend.
func pickLimiter(cfg *config.Config, st *storage) error {
	switch cfg.Limiter {
	case config.StorageMemory:
		if _, ok := st.lim.(*limiter.Memory); !ok {
			st.lim = limiter.NewMemory(cfg.RateWindow, cfg.RateMaxFails)
		}
	case config.LimiterRedis:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		st.lim = limiter.NewRedis(rdb, cfg.RateWindow, cfg.RateMaxFails)

		dbCheck, dbClose := st.check, st.close
		st.check = func(ctx context.Context) error {
			if err := dbCheck(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		}
		st.close = func() {
			_ = rdb.Close()
			dbClose()
		}
	}
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.Storage == config.StorageMemory {
		return &storage{
			users: memory.NewUserRepo(),
			posts: memory.NewPostRepo(),
			lim:   limiter.NewMemory(cfg.RateWindow, cfg.RateMaxFails),
			check: func(context.Context) error { return nil },
			close: func() {},
		}, nil
	}

	ver, err := migrate.Up(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	logger.Info("migrations applied", zap.Int64("version", ver))

	db, pool, err := postgres.Open(ctx, cfg.DatabaseDSN, cfg.MaxConns)
	if err != nil {
		return nil, err
	}
	return &storage{
		users: postgres.NewUserRepo(db),
		posts: postgres.NewPostRepo(db),
		lim:   limiter.NewPG(pool, cfg.RateWindow, cfg.RateMaxFails),
		check: pool.Ping,
		close: db.Close,
	}, nil
}

// sweepLoop drops elapsed limiter windows once per window until ctx ends.
func sweepLoop(ctx context.Context, s limiter.Sweeper, every time.Duration, logger *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := s.Sweep(ctx, now)
			if err != nil {
				logger.Warn("limiter sweep", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("limiter sweep", zap.Int64("removed", n))
			}
		}
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { st.close() }()
	if err := pickLimiter(cfg, st); err != nil {
		return err
	}

	tokens := token.New([]byte(cfg.JWTSecret), cfg.AccessTTL)
	authSvc := service.NewAuthService(st.users, pkgcrypto.NewHasher(pkgcrypto.DefaultParams), tokens, st.lim, service.AuthOptions{
		CountSuccessfulLogins: cfg.CountSuccess,
		Logger:                logger.Named("auth"),
	})
	postSvc := service.NewPostService(st.posts, st.users, logger.Named("posts"))

	h := httpserver.NewHandler(authSvc, postSvc, logger)
	router := httpserver.NewRouter(h, access.NewGuard(tokens, st.users), logger, httpserver.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Timeout:     cfg.RequestTimeout,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if sw, ok := st.lim.(limiter.Sweeper); ok {
		go sweepLoop(ctx, sw, cfg.RateWindow, logger)
	}

	errCh := make(chan error, 2)

	var admin *grpcserver.Admin
	if cfg.AdminAddr != "" {
		admin = grpcserver.NewAdmin(logger.Named("admin"), cfg.Dev)
		lis, err := net.Listen("tcp", cfg.AdminAddr)
		if err != nil {
			return fmt.Errorf("admin listen: %w", err)
		}
		go func() {
			logger.Info("admin listening", zap.String("addr", cfg.AdminAddr))
			errCh <- admin.Serve(lis)
		}()
		admin.SetServing(true)
		go admin.Watch(ctx, 10*time.Second, st.check)
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if admin != nil {
		admin.SetServing(false)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if admin != nil {
		admin.Shutdown(shutdownCtx)
	}
	return runErr
}

package config

import (
	"flag"
	"io"
	"strings"
)

// parseFlags overlays command-line flags. Defaults are the values gathered so
// far, so unset flags keep env and file settings.
func (c *Config) parseFlags(args []string) error {
	fs := flag.NewFlagSet("blog-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address")
	fs.StringVar(&c.AdminAddr, "admin-addr", c.AdminAddr, "admin gRPC listen address (empty disables)")
	fs.StringVar(&c.Storage, "storage", c.Storage, "storage backend: memory|postgres")
	fs.StringVar(&c.DatabaseDSN, "dsn", c.DatabaseDSN, "PostgreSQL DSN")
	fs.StringVar(&c.Limiter, "limiter", c.Limiter, "login limiter backend: memory|postgres|redis (default: same as storage)")
	fs.StringVar(&c.RedisURL, "redis-url", c.RedisURL, "Redis URL for the redis limiter")
	fs.StringVar(&c.JWTSecret, "jwt-secret", c.JWTSecret, "HS256 signing key")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "access token TTL")
	fs.DurationVar(&c.RateWindow, "rate-window", c.RateWindow, "login rate limit window")
	fs.IntVar(&c.RateMaxFails, "rate-max", c.RateMaxFails, "login attempts allowed per window")
	fs.BoolVar(&c.CountSuccess, "count-successful-logins", c.CountSuccess, "count every login attempt, not only failures")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "per-request timeout")
	fs.BoolVar(&c.Dev, "dev", c.Dev, "development logging and gRPC reflection")

	maxConns := fs.Int("db-max-conns", int(c.MaxConns), "max pooled DB connections")
	cors := fs.String("cors-origins", strings.Join(c.CORSOrigins, ","), "comma separated CORS origins")

	if err := fs.Parse(args); err != nil {
		return err
	}
	c.MaxConns = int32(*maxConns)
	c.CORSOrigins = splitList(*cors)
	return nil
}

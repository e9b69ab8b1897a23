// Package grpcserver runs the admin gRPC listener: health checks and, in dev,
// server reflection.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the blog API.
const ServiceName = "goph.blog.v1.Blog"

// Checker probes a dependency such as the database.
type Checker func(ctx context.Context) error

// Admin wraps a gRPC server exposing grpc.health.v1.Health.
type Admin struct {
	srv    *grpc.Server
	health *health.Server
	log    *zap.Logger
}

// NewAdmin builds the admin server. Everything starts NOT_SERVING until
// SetServing is called. Reflection is registered only when dev is set.
func NewAdmin(log *zap.Logger, dev bool, opts ...grpc.ServerOption) *Admin {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	s := grpc.NewServer(opts...)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	if dev {
		reflection.Register(s)
	}
	return &Admin{srv: s, health: hs, log: log}
}

// SetServing flips the overall and blog service status.
func (a *Admin) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	a.health.SetServingStatus("", st)
	a.health.SetServingStatus(ServiceName, st)
}

// Watch runs check every interval and mirrors its result into the health
// status until ctx is done.
func (a *Admin) Watch(ctx context.Context, interval time.Duration, check Checker) {
	t := time.NewTicker(interval)
	defer t.Stop()

	last := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			err := check(ctx)
			ok := err == nil
			if ok != last {
				a.log.Warn("health changed", zap.Bool("serving", ok), zap.Error(err))
				last = ok
			}
			a.SetServing(ok)
		}
	}
}

// Serve blocks serving lis.
func (a *Admin) Serve(lis net.Listener) error {
	return a.srv.Serve(lis)
}

// Shutdown reports NOT_SERVING and stops gracefully, forcing a stop when ctx ends first.
func (a *Admin) Shutdown(ctx context.Context) {
	a.health.Shutdown()
	done := make(chan struct{})
	go func() {
		a.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.srv.Stop()
	}
}

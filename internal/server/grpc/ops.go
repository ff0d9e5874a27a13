// Package grpcserver runs the operational gRPC listener: the standard health
// service for orchestrators and optional server reflection.
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

// ServiceName is the health service name reported next to the overall "" entry.
const ServiceName = "humanizer.v1.Humanizer"

const defaultProbeInterval = 10 * time.Second

// Prober reports whether every backing dependency is reachable.
type Prober interface {
	Healthy(ctx context.Context) bool
}

// Options tunes the ops server.
type Options struct {
	Reflection    bool
	ProbeInterval time.Duration
}

// Server mirrors dependency health into grpc.health.v1.
type Server struct {
	srv      *grpc.Server
	health   *health.Server
	prober   Prober
	interval time.Duration
	log      *zap.Logger
}

// New builds the server. Status starts as NOT_SERVING until the first probe.
func New(p Prober, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	interval := opts.ProbeInterval
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
		grpc.ChainStreamInterceptor(
			RecoverStream(log),
			LoggingStream(log),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	if opts.Reflection {
		reflection.Register(srv)
	}

	s := &Server{srv: srv, health: hs, prober: p, interval: interval, log: log}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

// Probe checks dependencies immediately and then every interval until ctx is done.
func (s *Server) Probe(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		s.probeOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *Server) probeOnce(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	pctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if s.prober != nil && !s.prober.Healthy(pctx) {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	if ctx.Err() != nil {
		return st
	}
	s.set(st)
	return st
}

func (s *Server) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Stop marks every service NOT_SERVING and drains connections, forcing close after timeout.
func (s *Server) Stop(timeout time.Duration) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.log.Warn("grpc graceful stop timed out")
		s.srv.Stop()
	}
}

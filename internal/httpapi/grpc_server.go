package httpapi

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"codexbase.org/internal/obs"
)

// GRPCServer exposes the standard gRPC health service, mirroring /readyz for
// callers that probe over gRPC.
type GRPCServer struct {
	srv    *grpc.Server
	health *health.Server

	probe    ReadyProbe
	interval time.Duration
}

// NewGRPCServer wires the health service onto a fresh grpc.Server.
func NewGRPCServer(probe ReadyProbe) *GRPCServer {
	s := &GRPCServer{
		srv:      grpc.NewServer(),
		health:   health.NewServer(),
		probe:    probe,
		interval: 10 * time.Second,
	}
	healthpb.RegisterHealthServer(s.srv, s.health)
	return s
}

// Serve runs the server on lis and keeps the health status in step with the
// readiness probe until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	s.refresh(ctx)
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.srv.GracefulStop()
				return
			case <-ticker.C:
				s.refresh(ctx)
			}
		}
	}()
	return s.srv.Serve(lis)
}

func (s *GRPCServer) refresh(ctx context.Context) {
	if err := s.probe.Check(ctx); err != nil {
		obs.SetReady(false)
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	obs.SetReady(true)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
}

package server

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/stywzn/qdashboard/internal/logger"
	"github.com/stywzn/qdashboard/internal/service"
)

// GRPCServer exposes the standard gRPC health service. The poller flips the
// per-service statuses; the empty service name tracks the process itself.
type GRPCServer struct {
	srv    *grpc.Server
	health *health.Server
	log    logger.Logger
}

func NewGRPCServer(log logger.Logger) *GRPCServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(service.NetworkService, healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(service.AIService, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &GRPCServer{srv: srv, health: hs, log: log}
}

// Health is the status setter handed to the poller.
func (g *GRPCServer) Health() *health.Server { return g.health }

// Serve blocks until Stop is called.
func (g *GRPCServer) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	g.log.Info("grpc health server listening", logger.String("addr", addr))
	return g.srv.Serve(lis)
}

func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.srv.GracefulStop()
}

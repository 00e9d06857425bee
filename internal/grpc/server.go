// Package grpc exposes the chat core's gRPC health endpoint.
package grpc

import (
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"chat-core/internal/observability"
)

// ChatServiceName is the health service name reported for the chat hub.
const ChatServiceName = "chat.Hub"

// Server serves grpc.health.v1 for the process and the chat hub.
type Server struct {
	server *gogrpc.Server
	health *health.Server
	log    *slog.Logger
}

// NewServer builds a server that starts out NOT_SERVING until SetServing is
// called.
func NewServer(log *slog.Logger) *Server {
	srv := gogrpc.NewServer(
		gogrpc.StatsHandler(otelgrpc.NewServerHandler()),
		gogrpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ChatServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &Server{server: srv, health: hs, log: log}
}

// SetServing flips both health entries.
func (s *Server) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ChatServiceName, status)
}

// Serve blocks until Stop is called or lis fails.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("grpc health listening", "addr", lis.Addr().String())
	if err := s.server.Serve(lis); err != nil && err != gogrpc.ErrServerStopped {
		return err
	}
	return nil
}

// Stop reports NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

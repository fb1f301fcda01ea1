package grpc

import (
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the name health checks report for the storefront as a whole.
const ServiceName = "storefront"

// Server carries the operational gRPC surface: health and reflection.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	log    *slog.Logger
}

func NewServer(log *slog.Logger) *Server {
	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(srv)

	return &Server{srv: srv, health: hs, log: log.With(slog.String("component", "grpc"))}
}

func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("grpc listening", slog.String("addr", lis.Addr().String()))
	return s.srv.Serve(lis)
}

// Shutdown reports NOT_SERVING to health watchers, then drains connections.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}

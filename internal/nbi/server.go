package nbi

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/orbital-guard/internal/logging"
	"github.com/signalsfoundry/orbital-guard/internal/observability"
)

// NewServer builds a gRPC server with the standard interceptor chain and
// registers svc. collector may be nil.
func NewServer(svc HazardServiceServer, collector *observability.APICollector, log logging.Logger, extra ...grpc.ServerOption) *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{
		RequestIDUnaryServerInterceptor(log),
		RecoveryUnaryServerInterceptor(),
		TracingUnaryServerInterceptor(),
	}
	if collector != nil {
		interceptors = append(interceptors, collector.UnaryServerInterceptor())
	}
	interceptors = append(interceptors, ErrorMappingUnaryServerInterceptor())

	opts := append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	}, extra...)
	server := grpc.NewServer(opts...)
	if svc != nil {
		RegisterHazardServiceServer(server, svc)
	}
	return server
}

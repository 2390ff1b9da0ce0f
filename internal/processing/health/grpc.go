package health

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for the worker.
const ServiceName = "harvester.Worker"

// GRPCServer serves the standard gRPC health checking protocol.
type GRPCServer struct {
	port   int
	server *grpc.Server
	health *grpchealth.Server
}

// NewGRPCServer creates a gRPC health server whose status follows monitor.
func NewGRPCServer(monitor *Monitor, port int) *GRPCServer {
	hs := grpchealth.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	g := &GRPCServer{port: port, server: srv, health: hs}
	g.SetStatus(StatusHealthy)
	if monitor != nil {
		monitor.OnStatusChange(g.SetStatus)
	}
	return g
}

// SetStatus maps a system status onto the serving status of the overall
// server and the worker service. Degraded still counts as serving.
func (g *GRPCServer) SetStatus(status SystemStatus) {
	serving := healthpb.HealthCheckResponse_SERVING
	if status == StatusCritical {
		serving = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", serving)
	g.health.SetServingStatus(ServiceName, serving)
}

// Health returns the health service implementation.
func (g *GRPCServer) Health() healthpb.HealthServer {
	return g.health
}

// Start listens on the configured port and serves until Stop.
func (g *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", g.port))
	if err != nil {
		return fmt.Errorf("failed to listen on %d: %w", g.port, err)
	}
	if err := g.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully, forcing it once ctx is done.
func (g *GRPCServer) Stop(ctx context.Context) {
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		g.server.Stop()
	}
}

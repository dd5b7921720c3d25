package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// DrainTimeout bounds how long Stop waits for in-flight calls before
// closing the remaining streams.
const DrainTimeout = 5 * time.Second

// Server hosts the PlayerFeed and health services on one listener.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	logger     *zap.Logger
}

// Listen creates a Server bound to addr.
//
// Precondition: svc and logger must be non-nil.
// Postcondition: Returns a Server ready to Serve, or an error if addr cannot
// be bound.
func Listen(addr string, svc PlayerFeedServer, logger *zap.Logger) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return NewServer(lis, svc, logger), nil
}

// NewServer creates a Server on an existing listener.
func NewServer(lis net.Listener, svc PlayerFeedServer, logger *zap.Logger) *Server {
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	RegisterPlayerFeedServer(grpcServer, svc)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:   lis,
		grpcServer: grpcServer,
		health:     healthServer,
		logger:     logger,
	}
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve serves until ctx is cancelled or Stop is called, then drains
// in-flight calls.
//
// Postcondition: Returns nil on a clean stop.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("feed listening", zap.String("addr", s.Addr()))
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.Stop()
		return cleanServeErr(<-serveErr)
	case err := <-serveErr:
		return cleanServeErr(err)
	}
}

// Start implements server.Service.
func (s *Server) Start(ctx context.Context) error {
	return s.Serve(ctx)
}

// Stop marks the services NOT_SERVING and drains in-flight calls. Watch
// streams still open after DrainTimeout are closed.
func (s *Server) Stop() {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(DrainTimeout):
		s.logger.Warn("feed drain timed out, closing streams")
		s.grpcServer.Stop()
	}
}

func cleanServeErr(err error) error {
	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return fmt.Errorf("serve gRPC: %w", err)
}

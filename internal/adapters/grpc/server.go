package grpc

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/config"
	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
	"gitlab.com/timkado/api/site-freshness-service/pkg/safego"
)

// UnreadServiceName is the health-checked service name of the unread aggregator.
const UnreadServiceName = "site_freshness.UnreadAggregator"

// Server exposes the standard gRPC health service so orchestrators can probe
// the service without going through HTTP.
type Server struct {
	gsrv        *grpc.Server
	health      *health.Server
	logger      domain.Logger
	cfgProvider config.Provider
	appCtx      context.Context
	cancelCtx   context.CancelFunc
}

// NewServer creates a gRPC server with every service NOT_SERVING until
// SetServing is called.
func NewServer(appCtx context.Context, logger domain.Logger, cfgProvider config.Provider) *Server {
	gsrv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gsrv, hs)
	reflection.Register(gsrv)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(UnreadServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	serverCtx, cancel := context.WithCancel(appCtx)
	return &Server{
		gsrv:        gsrv,
		health:      hs,
		logger:      logger,
		cfgProvider: cfgProvider,
		appCtx:      serverCtx,
		cancelCtx:   cancel,
	}
}

// SetServing flips the overall and the aggregator health status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(UnreadServiceName, status)
}

// Start listens on the configured port and serves in the background. A zero
// port disables the server.
func (s *Server) Start() error {
	grpcPort := s.cfgProvider.Get().Server.GRPCPort
	if grpcPort == 0 {
		s.logger.Warn(s.appCtx, "gRPC port is not configured; gRPC health server disabled")
		return nil
	}
	addr := fmt.Sprintf(":%d", grpcPort)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		s.logger.Error(s.appCtx, "Failed to listen for gRPC", "address", addr, "error", err)
		return fmt.Errorf("failed to listen for gRPC on %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Serve serves on lis in the background until GracefulStop or the app
// context ends.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info(s.appCtx, "gRPC server starting", "address", lis.Addr().String())

	safego.Execute(s.appCtx, s.logger, "GRPCServerServe", func() {
		if err := s.gsrv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
			s.logger.Error(s.appCtx, "gRPC server failed to serve", "error", err)
		}
		s.cancelCtx()
	})

	safego.Execute(s.appCtx, s.logger, "GRPCServerContextWatcher", func() {
		<-s.appCtx.Done()
		s.health.Shutdown()
		s.gsrv.GracefulStop()
		s.logger.Info(context.Background(), "gRPC server gracefully stopped")
	})
	return nil
}

// GracefulStop stops the server. It returns immediately; the watcher
// goroutine drains in-flight RPCs.
func (s *Server) GracefulStop() {
	s.cancelCtx()
}

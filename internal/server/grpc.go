package server

import (
	"DSCEngine/internal/core"
	"DSCEngine/internal/observability"
	"DSCEngine/internal/query"
	"DSCEngine/internal/token"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// GRPCServer wraps the gRPC server and the HTTP gateway.
type GRPCServer struct {
	grpcServer   *grpc.Server
	httpServer   *http.Server
	healthServer *health.Server
	service      *Service
	grpcAddr     string
	httpAddr     string
	deps         *ServerDeps
	logger       zerolog.Logger
}

// ServerDeps holds everything the API needs. QueryService, Vault and DSC
// are optional.
type ServerDeps struct {
	Engine        *core.Engine
	QueryService  *query.QueryService
	Vault         *token.Vault
	DSC           *token.DSC
	HealthChecker *observability.HealthChecker
	Metrics       *observability.Metrics
	Logger        zerolog.Logger
	DevMode       bool
}

func NewGRPCServer(grpcAddr, httpAddr string, deps *ServerDeps) *GRPCServer {
	s := &GRPCServer{
		service:  NewService(deps),
		grpcAddr: grpcAddr,
		httpAddr: httpAddr,
		deps:     deps,
		logger:   deps.Logger,
	}

	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(s.observe))
	s.grpcServer.RegisterService(&ServiceDesc, s.service)

	s.healthServer = health.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.healthServer)
	s.SetServing(false)
	return s
}

// GRPC exposes the underlying server, e.g. to serve a bufconn listener.
func (s *GRPCServer) GRPC() *grpc.Server {
	return s.grpcServer
}

// SetServing flips the gRPC health status of the whole server and the
// DSCEngine service.
func (s *GRPCServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus("", st)
	s.healthServer.SetServingStatus(ServiceName, st)
}

// StartGRPC serves gRPC until ctx is cancelled (blocking).
func (s *GRPCServer) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("gRPC server shutting down")
		s.healthServer.Shutdown()
		s.grpcServer.GracefulStop()
	}()

	s.logger.Info().Str("addr", s.grpcAddr).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// StartHTTPGateway serves the HTTP/JSON gateway until ctx is cancelled
// (blocking).
func (s *GRPCServer) StartHTTPGateway(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Addr:              s.httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("HTTP gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.httpAddr).Msg("HTTP gateway listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// observe records request metrics and logs failures.
func (s *GRPCServer) observe(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.record(info.FullMethod, err, time.Since(start))
	return resp, err
}

func (s *GRPCServer) record(method string, err error, elapsed time.Duration) {
	code := status.Code(err)
	if m := s.deps.Metrics; m != nil {
		m.RequestsTotal.WithLabelValues(method, code.String()).Inc()
		m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	}
	if err != nil {
		s.logger.Debug().Err(err).Str("method", method).Str("code", code.String()).Msg("request failed")
	}
}

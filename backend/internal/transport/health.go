package transport

import (
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName имя сервиса в gRPC health
const ServiceName = "neo-viz"

// HealthServer gRPC сервер со стандартным сервисом здоровья
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	logger *log.Logger
}

// NewHealthServer создает сервер в состоянии NOT_SERVING
func NewHealthServer(logger *log.Logger, opts ...grpc.ServerOption) *HealthServer {
	if logger == nil {
		logger = log.Default()
	}

	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{server: srv, health: hs, logger: logger}
}

// SetServing переключает статус здоровья
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	h.logger.Printf("[Health] Статус: %s", status)
}

// Serve обслуживает lis до Stop
func (h *HealthServer) Serve(lis net.Listener) error {
	h.logger.Printf("[Health] gRPC health на %s", lis.Addr())
	if err := h.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Stop переводит в NOT_SERVING и останавливает сервер
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}

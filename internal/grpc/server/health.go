// Package server реализует gRPC-сервер состояния сервиса.
//
// HealthServer отдаёт стандартный сервис grpc.health.v1 и периодически
// обновляет статус по результатам проверки зависимостей.
package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
)

// ServiceName имя сервиса в ответах health-проверки.
const ServiceName = "gregai.api"

// Pinger проверяемая зависимость.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer gRPC-сервер с сервисом grpc.health.v1.
type HealthServer struct {
	grpc     *grpc.Server
	health   *health.Server
	checks   map[string]Pinger
	interval time.Duration
	log      *slog.Logger
}

// NewHealthServer создаёт сервер. interval задаёт период проверки зависимостей.
func NewHealthServer(checks map[string]Pinger, interval time.Duration, logger *slog.Logger) *HealthServer {
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &HealthServer{
		grpc:     gs,
		health:   hs,
		checks:   checks,
		interval: interval,
		log:      logger,
	}
}

// Serve принимает соединения на lis до отмены ctx.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	s.refresh(ctx)
	go s.watch(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gRPC health service listening on", slog.String("address", lis.Addr().String()))
		errCh <- s.grpc.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *HealthServer) watch(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

// refresh выставляет SERVING, только если все зависимости отвечают.
func (s *HealthServer) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			s.log.Warn("dependency check failed", slog.String("dependency", name), sl.Err(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

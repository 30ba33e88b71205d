package handler

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/shop-catalog/internal/port"
)

// OrderServiceName is the gRPC health service name reported for order placement.
const OrderServiceName = "catalog.OrderService"

const pingTimeout = 2 * time.Second

// HealthMonitor publishes the store's reachability through the standard
// gRPC health service, both for OrderServiceName and overall ("").
type HealthMonitor struct {
	server   *health.Server
	checker  port.HealthChecker
	interval time.Duration
}

func NewHealthMonitor(checker port.HealthChecker, interval time.Duration) *HealthMonitor {
	m := &HealthMonitor{
		server:   health.NewServer(),
		checker:  checker,
		interval: interval,
	}
	m.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return m
}

// NewGRPCServer returns a server with the monitor's health service registered.
func NewGRPCServer(monitor *HealthMonitor) *grpc.Server {
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, monitor.server)
	return s
}

// Probe pings the store once and updates the published status.
func (m *HealthMonitor) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := m.checker.Ping(ctx); err != nil {
		log.Printf("health probe failed: %v", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	m.setStatus(status)
	return status
}

// Run probes immediately and then on every interval until ctx is done.
func (m *HealthMonitor) Run(ctx context.Context) {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Shutdown reports NOT_SERVING for every service and ignores later probes.
func (m *HealthMonitor) Shutdown() {
	m.server.Shutdown()
}

func (m *HealthMonitor) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	m.server.SetServingStatus("", status)
	m.server.SetServingStatus(OrderServiceName, status)
}

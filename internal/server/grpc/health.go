package grpcserver

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall "" entry.
const ServiceName = "skillmarket"

const (
	defaultProbeInterval = 10 * time.Second
	probeTimeout         = 2 * time.Second
)

// Probe reports whether a dependency is usable. Typically the DB ping.
type Probe func(ctx context.Context) error

// Admin serves grpc.health.v1 and keeps its status in sync with a probe.
type Admin struct {
	srv      *grpc.Server
	health   *health.Server
	probe    Probe
	interval time.Duration
	log      *zap.Logger
}

// NewAdmin constructs the admin server. probe may be nil; interval<=0 selects a default.
// reflect enables server reflection (dev only).
func NewAdmin(probe Probe, interval time.Duration, reflect bool, log *zap.Logger) *Admin {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if reflect {
		reflection.Register(s)
	}
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &Admin{srv: s, health: hs, probe: probe, interval: interval, log: log}
}

// Serve accepts connections on lis until Stop.
func (a *Admin) Serve(lis net.Listener) error {
	a.log.Info("grpc health listening", zap.String("addr", lis.Addr().String()))
	if err := a.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Watch runs the probe until ctx is done and mirrors the result into the
// health status. On return every service is marked NOT_SERVING.
func (a *Admin) Watch(ctx context.Context) error {
	t := time.NewTicker(a.interval)
	defer t.Stop()
	for {
		a.check(ctx)
		select {
		case <-ctx.Done():
			a.health.Shutdown()
			return nil
		case <-t.C:
		}
	}
}

func (a *Admin) check(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if a.probe != nil {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := a.probe(pctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.log.Warn("health probe failed", zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	a.health.SetServingStatus(ServiceName, st)
	a.health.SetServingStatus("", st)
}

// Stop drains the server, forcing it down after timeout.
func (a *Admin) Stop(timeout time.Duration) {
	a.health.Shutdown()
	done := make(chan struct{})
	go func() {
		a.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		a.srv.Stop()
	}
}

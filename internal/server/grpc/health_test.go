package grpcserver

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func dialAdmin(t *testing.T, a *Admin) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 16)
	go func() { _ = a.Serve(lis) }()
	t.Cleanup(func() { a.Stop(time.Second) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func waitStatus(t *testing.T, c healthpb.HealthClient, want healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	var last healthpb.HealthCheckResponse_ServingStatus
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		cancel()
		if err == nil {
			last = resp.GetStatus()
			if last == want {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status: want %v, last %v", want, last)
}

func TestAdmin_FollowsProbe(t *testing.T) {
	t.Parallel()

	var failing atomic.Bool
	probe := func(context.Context) error {
		if failing.Load() {
			return errors.New("db down")
		}
		return nil
	}
	a := NewAdmin(probe, 20*time.Millisecond, false, zaptest.NewLogger(t))
	c := dialAdmin(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx) }()

	waitStatus(t, c, healthpb.HealthCheckResponse_SERVING)
	failing.Store(true)
	waitStatus(t, c, healthpb.HealthCheckResponse_NOT_SERVING)
	failing.Store(false)
	waitStatus(t, c, healthpb.HealthCheckResponse_SERVING)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}
	waitStatus(t, c, healthpb.HealthCheckResponse_NOT_SERVING)
}

func TestAdmin_NotServingBeforeFirstProbe(t *testing.T) {
	t.Parallel()

	a := NewAdmin(nil, 0, false, zaptest.NewLogger(t))
	if a.interval != defaultProbeInterval {
		t.Fatalf("default interval not applied: %v", a.interval)
	}
	c := dialAdmin(t, a)
	waitStatus(t, c, healthpb.HealthCheckResponse_NOT_SERVING)
}

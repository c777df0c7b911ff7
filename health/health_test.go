package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wyfcoding/montecarlo/cache"
	"github.com/wyfcoding/montecarlo/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func TestRegistryAggregates(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "prices.csv")
	if err := os.WriteFile(data, []byte("date,close\n2023-01-03,380.82\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(time.Second)
	r.Register("market_data", FileChecker(data))
	r.Register("report_dir", DirWritableChecker(filepath.Join(dir, "outputs")))

	rep := r.Run(context.Background())
	if !rep.Healthy() {
		t.Fatalf("expected healthy, got %+v", rep)
	}
	if rep.Checks["market_data"] != StatusUp || rep.Checks["report_dir"] != StatusUp {
		t.Errorf("unexpected checks: %v", rep.Checks)
	}

	r.Register("missing", FileChecker(filepath.Join(dir, "nope.csv")))
	rep = r.Run(context.Background())
	if rep.Healthy() || rep.Checks["missing"] == StatusUp {
		t.Errorf("missing file should fail: %+v", rep)
	}
	if rep.Checks["market_data"] != StatusUp {
		t.Errorf("other checks should still pass: %v", rep.Checks)
	}
}

func TestFileCheckerRejectsDirectory(t *testing.T) {
	if err := FileChecker(t.TempDir())(context.Background()); err == nil {
		t.Error("directory accepted as data file")
	}
	if err := FileChecker("")(context.Background()); err == nil {
		t.Error("empty path accepted")
	}
}

func TestCheckTimeout(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	r.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	rep := r.Run(context.Background())
	if rep.Healthy() {
		t.Error("slow check should time out")
	}
}

func TestCacheChecker(t *testing.T) {
	c, err := cache.NewBigCache(config.CacheConfig{LifeWindow: time.Minute, Shards: 16})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := CacheChecker(c)(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Errorf("health check key left behind: %d entries", c.Len())
	}
	if err := CacheChecker(nil)(context.Background()); err == nil {
		t.Error("nil cache accepted")
	}
}

func TestHTTPChecker(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	if err := HTTPChecker(ok.URL)(context.Background()); err != nil {
		t.Errorf("healthy endpoint failed: %v", err)
	}
	if err := HTTPChecker(down.URL)(context.Background()); err == nil {
		t.Error("503 endpoint passed")
	}
}

func TestGRPCHealthServer(t *testing.T) {
	var down atomic.Bool
	r := NewRegistry(time.Second)
	r.Register("flag", func(context.Context) error {
		if down.Load() {
			return errors.New("down")
		}
		return nil
	})

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterGRPCHealthServer(srv, "montecarlo", r)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	check := GRPCChecker("passthrough:///bufnet", "montecarlo", dialer, grpc.WithTransportCredentials(insecure.NewCredentials()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := check(ctx); err != nil {
		t.Fatalf("expected SERVING: %v", err)
	}

	down.Store(true)
	if err := check(ctx); err == nil {
		t.Error("expected NOT_SERVING")
	}

	resp, err := NewGRPCHealthServer("montecarlo", r).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: "other"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN {
		t.Errorf("status = %v", resp.GetStatus())
	}
}

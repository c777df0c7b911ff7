package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/montecarlo/config"
	"github.com/wyfcoding/montecarlo/health"
	"google.golang.org/grpc"
)

func TestNewGinServerUsesConfig(t *testing.T) {
	var cfg config.ServerConfig
	cfg.HTTP.Addr = "127.0.0.1"
	cfg.HTTP.Port = 18080
	cfg.HTTP.ReadTimeout = 3 * time.Second

	s := NewGinServer(NewDefaultGinEngine("test"), cfg, nil)
	if s.Addr() != "127.0.0.1:18080" {
		t.Errorf("addr = %s", s.Addr())
	}
	if s.server.ReadTimeout != 3*time.Second {
		t.Errorf("read timeout = %v", s.server.ReadTimeout)
	}
	if gin.Mode() != gin.TestMode {
		t.Errorf("gin mode = %s", gin.Mode())
	}
}

func TestGRPCServerServesHealth(t *testing.T) {
	var cfg config.ServerConfig
	cfg.GRPC.MaxRecvMsgSize = 1 << 20

	registry := health.NewRegistry(time.Second)
	s := NewGRPCServer(cfg, nil, func(g *grpc.Server) {
		health.RegisterGRPCHealthServer(g, "montecarlo", registry)
	}, nil, Options{ShutdownTimeout: time.Second})

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	checkCtx, checkCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer checkCancel()
	if err := health.GRPCChecker(lis.Addr().String(), "montecarlo")(checkCtx); err != nil {
		t.Errorf("health check: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("grpc server did not stop")
	}
}

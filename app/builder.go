package app

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/montecarlo/algorithm/sim"
	"github.com/wyfcoding/montecarlo/cache"
	"github.com/wyfcoding/montecarlo/config"
	"github.com/wyfcoding/montecarlo/engine"
	"github.com/wyfcoding/montecarlo/health"
	"github.com/wyfcoding/montecarlo/idgen"
	httpapi "github.com/wyfcoding/montecarlo/interfaces/http"
	"github.com/wyfcoding/montecarlo/logging"
	"github.com/wyfcoding/montecarlo/metrics"
	"github.com/wyfcoding/montecarlo/middleware"
	"github.com/wyfcoding/montecarlo/pipeline"
	"github.com/wyfcoding/montecarlo/report"
	"github.com/wyfcoding/montecarlo/retry"
	"github.com/wyfcoding/montecarlo/scheduler"
	"github.com/wyfcoding/montecarlo/server"
	"github.com/wyfcoding/montecarlo/tracing"
	"google.golang.org/grpc"
)

// PipelineJob 定时流水线任务名。
const PipelineJob = "pipeline"

// Components 由配置装配出的全部组件。
type Components struct {
	Config    *config.Config
	Logger    *logging.Logger
	Metrics   *metrics.Metrics
	Cache     cache.Cache
	IDs       idgen.Generator
	Engine    *engine.Engine
	Reporter  *report.Reporter
	Pipeline  *pipeline.Pipeline
	Health    *health.Registry
	Lifecycle *Lifecycle
}

// Build 按配置初始化日志、追踪、指标、缓存、ID 生成器、计算引擎、报告与流水线。
// 返回的 Components 持有需要释放的资源，调用方负责 Close。
func Build(cfg *config.Config) (*Components, error) {
	logger := logging.InitFromConfig(logging.Config{
		Service:    cfg.Server.Name,
		Module:     "app",
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		Console:    cfg.Log.Console,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	c := &Components{Config: cfg, Logger: logger, Lifecycle: NewLifecycle(logger)}

	tcfg := cfg.Tracing
	if tcfg.ServiceName == "" {
		tcfg.ServiceName = cfg.Server.Name
	}
	shutdownTracer, err := tracing.InitTracer(tcfg)
	if err != nil {
		return nil, err
	}
	c.Lifecycle.Append(Hook{Name: "tracing", OnStop: shutdownTracer})

	c.Metrics = metrics.NewMetrics(cfg.Server.Name)
	c.Metrics.RegisterBuildInfo(cfg.Server.Name, cfg.Version)

	if c.IDs, err = idgen.NewGenerator(cfg.Snowflake); err != nil {
		c.Close()
		return nil, fmt.Errorf("init id generator: %w", err)
	}

	engineOpts := []engine.Option{
		engine.WithSimulator(sim.NewSimulator(
			sim.WithChunkSize(cfg.Simulation.ChunkSize),
			sim.WithWorkers(cfg.Simulation.Workers),
			sim.WithLogger(logger.WithModule("sim")),
		)),
		engine.WithMetrics(c.Metrics),
		engine.WithLogger(logger.WithModule("engine")),
		engine.WithTimeout(cfg.Simulation.Timeout),
		engine.WithLimits(engine.LimitsFromConfig(cfg.Simulation)),
	}
	if cfg.Cache.Enabled {
		bc, err := cache.NewBigCache(cfg.Cache)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Cache = bc
		c.Lifecycle.Append(Hook{Name: "cache", OnStop: func(context.Context) error { return bc.Close() }})
		engineOpts = append(engineOpts, engine.WithCache(bc))
	}
	c.Engine = engine.New(engineOpts...)

	if cfg.Report.Enabled {
		c.Reporter = report.New(cfg.Report, logger.WithModule("report"))
	}
	c.Pipeline = pipeline.New(cfg, c.Engine, c.Reporter, c.IDs, logger.WithModule("pipeline"))

	c.Health = health.NewRegistry(2 * time.Second)
	c.Health.Register("market_data", health.FileChecker(cfg.Market.DataFile))
	if c.Reporter != nil {
		c.Health.Register("report_dir", health.DirWritableChecker(c.Reporter.Dir()))
	}
	if c.Cache != nil {
		c.Health.Register("cache", health.CacheChecker(c.Cache))
	}
	return c, nil
}

// Close 释放缓存、追踪导出器等资源。
func (c *Components) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	return c.Lifecycle.Stop(ctx)
}

// ServeApp 组装 HTTP 与 gRPC 服务器、定时任务和配置热更新，返回可运行的 App。
func (c *Components) ServeApp() (*App, error) {
	cfg := c.Config

	hooks := []Hook{{Name: "components", OnStop: func(context.Context) error { return c.Close() }}}
	if cfg.Schedule.Enabled {
		sched := scheduler.New(c.Logger.WithModule("scheduler"), c.Metrics)
		err := sched.AddJob(scheduler.JobConfig{
			Name:       PipelineJob,
			Spec:       cfg.Schedule.Cron,
			Timeout:    cfg.Simulation.Timeout,
			Retry:      retry.DefaultConfig(),
			RunOnStart: true,
		}, func(ctx context.Context) error {
			_, err := c.Pipeline.Execute(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, Hook{
			Name:    "scheduler",
			OnStart: func(context.Context) error { sched.Start(); return nil },
			OnStop:  sched.Stop,
		})
	}

	config.RegisterReloadHook(func(next *config.Config) {
		c.Engine.Reconfigure(next.Simulation)
		c.Pipeline.Reconfigure(next)
	})

	handler := httpapi.NewHandler(c.Engine, c.Pipeline, c.Health, c.Logger.WithModule("http"))
	router := httpapi.NewRouter(httpapi.RouterDeps{
		Config:  cfg,
		Handler: handler,
		Metrics: c.Metrics,
		IDs:     c.IDs,
		Logger:  c.Logger.WithModule("http"),
	})
	if cfg.Metrics.Enabled && cfg.Metrics.Port != "" {
		stopMetrics := c.Metrics.ExposeHTTP(cfg.Metrics.Port, cfg.Metrics.Path)
		hooks = append(hooks, Hook{Name: "metrics", OnStop: func(context.Context) error { stopMetrics(); return nil }})
	}

	grpcLogger := c.Logger.WithModule("grpc")
	grpcSrv := server.NewGRPCServer(cfg.Server, grpcLogger, func(s *grpc.Server) {
		health.RegisterGRPCHealthServer(s, cfg.Server.Name, c.Health)
	}, []grpc.UnaryServerInterceptor{
		middleware.GRPCRecovery(grpcLogger),
		middleware.GRPCRequestLogger(grpcLogger),
	})

	return New(cfg.Server.Name, c.Logger,
		WithServer(server.NewGinServer(router, cfg.Server, c.Logger.WithModule("http")), grpcSrv),
		WithHook(hooks...),
	), nil
}

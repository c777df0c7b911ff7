package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/montecarlo/config"
	"github.com/wyfcoding/montecarlo/idgen"
	"github.com/wyfcoding/montecarlo/limiter"
	"github.com/wyfcoding/montecarlo/logging"
	"github.com/wyfcoding/montecarlo/metrics"
	"github.com/wyfcoding/montecarlo/middleware"
	"github.com/wyfcoding/montecarlo/server"
)

// 模拟类接口等待并发槽位的最长时间.
const concurrencyWait = 2 * time.Second

// RouterDeps 组装路由所需的依赖，Metrics 与 IDs 可以为 nil.
type RouterDeps struct {
	Config  *config.Config
	Handler *Handler
	Metrics *metrics.Metrics
	IDs     idgen.Generator
	Logger  *logging.Logger
}

// NewRouter 按配置装配中间件并注册全部路由.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default().WithModule("http")
	}

	mws := []gin.HandlerFunc{
		middleware.Recovery(logger),
		middleware.RequestID(deps.IDs),
	}
	if cfg.Tracing.Enabled {
		mws = append(mws, middleware.Tracing(cfg.Server.Name), middleware.TraceIDHeader())
	}
	mws = append(mws, middleware.Logger(logger, cfg.Log.SlowThreshold))
	if deps.Metrics != nil {
		mws = append(mws, middleware.HTTPMetrics(deps.Metrics, "/metrics", "/healthz"))
	}
	if cfg.RateLimit.Enabled {
		mws = append(mws, middleware.RateLimit(limiter.NewKeyedLimiter(float64(cfg.RateLimit.Rate), cfg.RateLimit.Burst)))
	}
	mws = append(mws, middleware.MaxBodyBytes(cfg.Server.HTTP.MaxBodyBytes))

	r := server.NewDefaultGinEngine(cfg.Server.Environment, mws...)

	var heavy []gin.HandlerFunc
	if cfg.Simulation.Timeout > 0 {
		heavy = append(heavy, middleware.Timeout(cfg.Simulation.Timeout))
	}
	if cfg.RateLimit.MaxConcurrent > 0 {
		heavy = append(heavy, middleware.ConcurrencyLimit(limiter.NewSemaphoreLimiter(cfg.RateLimit.MaxConcurrent), concurrencyWait))
	}
	deps.Handler.RegisterRoutes(r, heavy...)

	if deps.Metrics != nil && cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(deps.Metrics.Handler()))
	}
	return r
}

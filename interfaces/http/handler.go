// Package http 暴露模拟、定价、风险与报告查询的 HTTP 接口.
package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/montecarlo/algorithm/finance"
	"github.com/wyfcoding/montecarlo/algorithm/types"
	"github.com/wyfcoding/montecarlo/engine"
	"github.com/wyfcoding/montecarlo/health"
	"github.com/wyfcoding/montecarlo/logging"
	"github.com/wyfcoding/montecarlo/pipeline"
	"github.com/wyfcoding/montecarlo/response"
	"github.com/wyfcoding/montecarlo/xerrors"
)

// Handler HTTP 处理器.
type Handler struct {
	engine   *engine.Engine
	pipeline *pipeline.Pipeline
	health   *health.Registry
	logger   *logging.Logger
}

// NewHandler 创建处理器，pipeline 与 health 可以为 nil.
func NewHandler(eng *engine.Engine, p *pipeline.Pipeline, registry *health.Registry, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default().WithModule("http")
	}
	if registry == nil {
		registry = health.NewRegistry(0)
	}
	return &Handler{engine: eng, pipeline: p, health: registry, logger: logger}
}

// RegisterRoutes 注册业务路由，simulate 为模拟类接口额外挂载的中间件（如并发限制）.
func (h *Handler) RegisterRoutes(router gin.IRouter, simulate ...gin.HandlerFunc) {
	api := router.Group("/v1")
	{
		heavy := api.Group("", simulate...)
		heavy.POST("/simulations", h.Simulate)
		heavy.POST("/risk/var", h.ValueAtRisk)
		heavy.POST("/reports/run", h.RunPipeline)

		api.POST("/pricing/black-scholes", h.BlackScholes)
		api.GET("/reports/latest", h.LatestReport)
	}
	router.GET("/healthz", h.Healthz)
}

// Simulate 运行完整计算并返回摘要.
func (h *Handler) Simulate(c *gin.Context) {
	var req engine.Request
	if !bind(c, &req) {
		return
	}

	summary, err := h.engine.Summarize(c.Request.Context(), req)
	if err != nil {
		h.logger.WarnContext(c.Request.Context(), "simulation failed", "error", err)
		response.Error(c, err)
		return
	}
	response.Success(c, summary)
}

// ValueAtRisk 只计算真实测度下的 VaR 与 CVaR.
func (h *Handler) ValueAtRisk(c *gin.Context) {
	var req engine.Request
	if !bind(c, &req) {
		return
	}

	out, err := h.engine.Risk(c.Request.Context(), req)
	if err != nil {
		h.logger.WarnContext(c.Request.Context(), "risk calculation failed", "error", err)
		response.Error(c, err)
		return
	}
	response.Success(c, out)
}

// BlackScholesRequest 解析定价请求.
type BlackScholesRequest struct {
	Spot         float64 `json:"spot"`
	Strike       float64 `json:"strike"`
	RiskFreeRate float64 `json:"risk_free_rate"`
	Volatility   float64 `json:"volatility"`
	Horizon      float64 `json:"horizon"`
	OptionType   string  `json:"option_type"`            // CALL 或 PUT，默认 CALL
	MarketPrice  float64 `json:"market_price,omitempty"` // 大于 0 时反解隐含波动率
}

// BlackScholesResponse 解析定价结果.
type BlackScholesResponse struct {
	OptionType        types.OptionType `json:"option_type"`
	Call              float64          `json:"call"`
	Put               float64          `json:"put"`
	Greeks            types.Greeks     `json:"greeks"`
	ImpliedVolatility *float64         `json:"implied_volatility,omitempty"`
}

// BlackScholes 返回看涨与看跌价格以及指定类型的希腊字母.
func (h *Handler) BlackScholes(c *gin.Context) {
	var req BlackScholesRequest
	if !bind(c, &req) {
		return
	}

	optionType := types.OptionTypeCall
	if req.OptionType != "" {
		optionType = types.OptionType(strings.ToUpper(req.OptionType))
	}
	if !optionType.Valid() {
		response.Error(c, xerrors.ErrInvalidOptionType.WithDetail("got %q", req.OptionType))
		return
	}

	bs, err := finance.NewBlackScholes(req.Spot, req.Strike, req.RiskFreeRate, req.Volatility, req.Horizon)
	if err != nil {
		response.Error(c, err)
		return
	}
	greeks, err := bs.Greeks(optionType)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := BlackScholesResponse{
		OptionType: optionType,
		Call:       bs.CallPrice(),
		Put:        bs.PutPrice(),
		Greeks:     greeks,
	}
	if req.MarketPrice > 0 {
		iv, err := bs.ImpliedVolatility(optionType, req.MarketPrice)
		if err != nil {
			response.Error(c, err)
			return
		}
		out.ImpliedVolatility = &iv
	}
	response.Success(c, out)
}

// LatestReport 返回最近一次流水线运行的结果.
func (h *Handler) LatestReport(c *gin.Context) {
	if h.pipeline == nil {
		response.Error(c, xerrors.ErrNoReport)
		return
	}
	out, err := h.pipeline.Latest()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, out)
}

// RunPipeline 立即按当前配置执行一次流水线.
func (h *Handler) RunPipeline(c *gin.Context) {
	if h.pipeline == nil {
		response.Error(c, xerrors.ErrNoReport.WithDetail("pipeline is not configured"))
		return
	}
	out, err := h.pipeline.Execute(c.Request.Context())
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "pipeline run failed", "error", err)
		response.Error(c, err)
		return
	}
	response.Success(c, out)
}

// Healthz 聚合依赖检查，任一失败返回 503.
func (h *Handler) Healthz(c *gin.Context) {
	rep := h.health.Run(c.Request.Context())
	status := http.StatusOK
	if !rep.Healthy() {
		status = http.StatusServiceUnavailable
	}
	response.SuccessWithRawData(c, status, rep)
}

// bind 解析 JSON 请求体，失败时已写出错误响应.
func bind(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, xerrors.ErrRequestTooLarge.WithDetail("limit %d bytes", tooLarge.Limit))
		return false
	}
	response.Error(c, xerrors.ErrInvalidInput.WithDetail("%v", err))
	return false
}

// Package engine 编排一次完整的计算：两种测度下的路径模拟、尾部风险、蒙特卡洛与解析定价.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/wyfcoding/montecarlo/algorithm/finance"
	"github.com/wyfcoding/montecarlo/algorithm/sim"
	"github.com/wyfcoding/montecarlo/algorithm/types"
	"github.com/wyfcoding/montecarlo/cache"
	"github.com/wyfcoding/montecarlo/config"
	"github.com/wyfcoding/montecarlo/logging"
	"github.com/wyfcoding/montecarlo/metrics"
	"github.com/wyfcoding/montecarlo/tracing"
	"github.com/wyfcoding/montecarlo/xerrors"
	"golang.org/x/sync/errgroup"
)

// 根流的子流编号，两种测度与收敛研究互不重叠.
const (
	streamRealWorld uint64 = iota
	streamRiskNeutral
	streamConvergence
)

// Request 一次计算的全部输入.
type Request struct {
	Process          types.ProcessParameters `json:"process"`
	Steps            int                     `json:"steps"`
	Paths            int                     `json:"paths"`
	Antithetic       bool                    `json:"antithetic"`
	RiskFreeRate     float64                 `json:"risk_free_rate"`
	Strike           float64                 `json:"strike"`
	Confidence       float64                 `json:"confidence"`
	Seed             uint64                  `json:"seed"`
	ConvergenceSizes []int                   `json:"convergence_sizes,omitempty"`
}

// Validate 在任何模拟之前校验全部参数.
func (r Request) Validate() error {
	if err := r.validateRisk(); err != nil {
		return err
	}
	if !(r.Strike > 0) || math.IsInf(r.Strike, 0) {
		return xerrors.ErrInvalidParameters.WithDetail("strike must be positive, got %v", r.Strike)
	}
	if !(r.RiskFreeRate >= 0) || math.IsInf(r.RiskFreeRate, 0) {
		return xerrors.ErrInvalidParameters.WithDetail("risk-free rate must be non-negative, got %v", r.RiskFreeRate)
	}
	for _, n := range r.ConvergenceSizes {
		if n < 2 {
			return xerrors.ErrInsufficientSamples.WithDetail("convergence size %d is below 2", n)
		}
	}
	return nil
}

// validateRisk 只校验真实测度风险计算所需的参数.
func (r Request) validateRisk() error {
	if err := r.spec(r.Process.Drift).Validate(); err != nil {
		return err
	}
	if math.IsNaN(r.Confidence) || r.Confidence <= 0 || r.Confidence >= 1 {
		return xerrors.ErrInvalidConfidenceLevel.WithDetail("got %v", r.Confidence)
	}
	if r.Paths < 2 {
		return xerrors.ErrInsufficientSamples.WithDetail("at least two paths are required, got %d", r.Paths)
	}
	return nil
}

func (r Request) spec(drift float64) sim.SimulationSpec {
	return sim.SimulationSpec{
		Process:    r.Process.WithDrift(drift),
		Steps:      r.Steps,
		Paths:      r.Paths,
		Antithetic: r.Antithetic,
	}
}

// Key 请求的稳定摘要，用作缓存键；相同种子下结果确定，可直接复用.
func (r Request) Key() string {
	data, _ := json.Marshal(r)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// Summary 可序列化的计算结果.
type Summary struct {
	Request          Request                  `json:"request"`
	Risk             types.RiskResult         `json:"risk"`
	Terminal         types.PathStatistics     `json:"terminal"`
	MonteCarloCall   types.PricingResult      `json:"monte_carlo_call"`
	MonteCarloPut    types.PricingResult      `json:"monte_carlo_put"`
	BlackScholesCall float64                  `json:"black_scholes_call"`
	BlackScholesPut  float64                  `json:"black_scholes_put"`
	CallGreeks       types.Greeks             `json:"call_greeks"`
	Convergence      []types.ConvergencePoint `json:"convergence,omitempty"`
}

// Result 包含完整路径矩阵的结果，供报告使用.
type Result struct {
	Summary
	RealWorld   *sim.PathEnsemble
	RiskNeutral *sim.PathEnsemble
	Elapsed     time.Duration
}

// 默认规模上限：单个测度的价格矩阵约 512 MiB.
const (
	DefaultMaxPaths = 1_000_000
	DefaultMaxCells = 64 << 20
)

// Limits 单次请求允许的路径数与矩阵单元数上限，零值使用默认值.
type Limits struct {
	MaxPaths int
	MaxCells int
}

// LimitsFromConfig 读取模拟配置中的规模上限.
func LimitsFromConfig(cfg config.SimulationConfig) Limits {
	return Limits{MaxPaths: cfg.MaxPaths, MaxCells: cfg.MaxCells}.withDefaults()
}

func (l Limits) withDefaults() Limits {
	if l.MaxPaths <= 0 {
		l.MaxPaths = DefaultMaxPaths
	}
	if l.MaxCells <= 0 {
		l.MaxCells = DefaultMaxCells
	}
	return l
}

// admit 检查 (steps+1)×paths 的矩阵是否在上限内.
// steps 已通过 SimulationSpec.Validate，rows 不会溢出，比较用除法避免乘法溢出.
func (l Limits) admit(steps, paths int) error {
	rows := steps + 1
	if paths > l.MaxPaths {
		return xerrors.ErrInvalidSpec.WithDetail("paths %d exceed the limit of %d", paths, l.MaxPaths)
	}
	if paths > l.MaxCells/rows {
		return xerrors.ErrInvalidSpec.WithDetail("%d×%d cells exceed the limit of %d", rows, paths, l.MaxCells)
	}
	return nil
}

// RiskSummary 仅真实测度的风险结果.
type RiskSummary struct {
	Risk     types.RiskResult     `json:"risk"`
	Terminal types.PathStatistics `json:"terminal"`
}

// Option 配置 Engine.
type Option func(*Engine)

// WithSimulator 替换路径生成器.
func WithSimulator(s *sim.Simulator) Option {
	return func(e *Engine) { e.pending.sim = s }
}

// WithCache 启用摘要缓存.
func WithCache(c cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithMetrics 启用业务指标.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m.Simulation
		}
	}
}

// WithLogger 设置日志记录器.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTimeout 单次计算的墙钟上限，0 表示不限.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.pending.timeout = d }
}

// WithLimits 设置请求规模上限.
func WithLimits(l Limits) Option {
	return func(e *Engine) { e.pending.limits = l }
}

// tuning 可在配置热更新时整体替换的参数.
type tuning struct {
	sim     *sim.Simulator
	timeout time.Duration
	limits  Limits
}

// Engine 无状态的计算编排器，可并发调用.
type Engine struct {
	tuning  atomic.Pointer[tuning]
	pending *tuning
	cache   cache.Cache
	metrics *metrics.SimulationMetrics
	logger  *logging.Logger
}

// New 创建 Engine.
func New(opts ...Option) *Engine {
	e := &Engine{pending: &tuning{}}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.Default().WithModule("engine")
	}
	t := e.pending
	e.pending = nil
	if t.sim == nil {
		t.sim = sim.NewSimulator(sim.WithLogger(e.logger))
	}
	t.limits = t.limits.withDefaults()
	e.tuning.Store(t)
	return e
}

// Reconfigure 按新的模拟配置替换块大小、并行度、超时与规模上限.
// 已开始的计算继续使用旧参数.
func (e *Engine) Reconfigure(cfg config.SimulationConfig) {
	cur := e.tuning.Load()
	chunk, workers := cfg.ChunkSize, cfg.Workers
	if chunk <= 0 {
		chunk = sim.DefaultChunkSize
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	next := &tuning{
		sim:     cur.sim.With(sim.WithChunkSize(chunk), sim.WithWorkers(workers)),
		timeout: cfg.Timeout,
		limits:  LimitsFromConfig(cfg),
	}
	e.tuning.Store(next)
	e.logger.Info("engine reconfigured",
		slog.Int("chunk_size", chunk),
		slog.Int("workers", workers),
		slog.Duration("timeout", next.timeout),
		slog.Int("max_paths", next.limits.MaxPaths),
		slog.Int("max_cells", next.limits.MaxCells),
	)
}

// Limits 返回当前生效的规模上限.
func (e *Engine) Limits() Limits {
	return e.tuning.Load().limits
}

// Timeout 返回当前生效的单次计算超时.
func (e *Engine) Timeout() time.Duration {
	return e.tuning.Load().timeout
}

// admit 对整份请求（含收敛研究的各个规模）检查规模上限.
func (t *tuning) admit(req Request) error {
	if err := t.limits.admit(req.Steps, req.Paths); err != nil {
		return err
	}
	for _, n := range req.ConvergenceSizes {
		if err := t.limits.admit(req.Steps, n); err != nil {
			return err
		}
	}
	return nil
}

// Run 执行完整计算.
// 真实测度（漂移 μ）与风险中性测度（漂移 r）并发模拟，分别使用根流的 Split(0) 与 Split(1)。
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	t := e.tuning.Load()
	if err := t.admit(req); err != nil {
		return nil, err
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	ctx, span := tracing.StartSpan(ctx, "engine.Run")
	defer span.End()

	start := time.Now()
	root := sim.NewStream(req.Seed)
	res := &Result{Summary: Summary{Request: req}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ens, err := e.simulate(gctx, t.sim, types.MeasureRealWorld, req.spec(req.Process.Drift), root.Split(streamRealWorld))
		res.RealWorld = ens
		return err
	})
	g.Go(func() error {
		ens, err := e.simulate(gctx, t.sim, types.MeasureRiskNeutral, req.spec(req.RiskFreeRate), root.Split(streamRiskNeutral))
		res.RiskNeutral = ens
		return err
	})
	if err := g.Wait(); err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	if err := e.evaluate(ctx, req, res); err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	if len(req.ConvergenceSizes) > 0 {
		pricer := finance.NewMonteCarloPricer(req.RiskFreeRate, req.Strike)
		points, err := pricer.ConvergenceStudy(ctx, t.sim, req.spec(req.RiskFreeRate), req.ConvergenceSizes, root.Split(streamConvergence))
		if err != nil {
			tracing.SetError(ctx, err)
			return nil, err
		}
		res.Convergence = points
	}

	res.Elapsed = time.Since(start)
	e.record(res)
	e.logger.InfoContext(ctx, "engine run finished",
		slog.Float64("var", res.Risk.VaR),
		slog.Float64("cvar", res.Risk.CVaR),
		slog.Float64("mc_call", res.MonteCarloCall.Price),
		slog.Float64("mc_call_se", res.MonteCarloCall.StdError),
		slog.Float64("bs_call", res.BlackScholesCall),
		slog.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// Risk 只运行真实测度模拟并计算 VaR/CVaR，与 Run 使用同一子流，结果与 Run 的风险部分一致.
// 行权价与无风险利率不参与计算，不做校验.
func (e *Engine) Risk(ctx context.Context, req Request) (RiskSummary, error) {
	if err := req.validateRisk(); err != nil {
		return RiskSummary{}, err
	}
	t := e.tuning.Load()
	if err := t.limits.admit(req.Steps, req.Paths); err != nil {
		return RiskSummary{}, err
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	ctx, span := tracing.StartSpan(ctx, "engine.Risk")
	defer span.End()

	root := sim.NewStream(req.Seed)
	ens, err := e.simulate(ctx, t.sim, types.MeasureRealWorld, req.spec(req.Process.Drift), root.Split(streamRealWorld))
	if err != nil {
		tracing.SetError(ctx, err)
		return RiskSummary{}, err
	}

	var out RiskSummary
	if out.Risk, err = finance.Compute(ens, req.Confidence); err != nil {
		return RiskSummary{}, err
	}
	if out.Terminal, err = finance.TerminalStatistics(ens); err != nil {
		return RiskSummary{}, err
	}
	if e.metrics != nil {
		e.metrics.ValueAtRisk.Set(out.Risk.VaR)
		e.metrics.ConditionalVaR.Set(out.Risk.CVaR)
	}
	return out, nil
}

func (e *Engine) simulate(ctx context.Context, s *sim.Simulator, measure types.Measure, spec sim.SimulationSpec, stream sim.Stream) (*sim.PathEnsemble, error) {
	start := time.Now()
	ens, err := s.Simulate(ctx, spec, stream)
	e.metrics.ObserveRun(string(measure), spec.Paths, time.Since(start), err)
	return ens, err
}

// evaluate 真实测度路径计算风险，风险中性终值计算定价.
func (e *Engine) evaluate(ctx context.Context, req Request, res *Result) error {
	_, span := tracing.StartSpan(ctx, "engine.evaluate")
	defer span.End()

	var err error
	if res.Risk, err = finance.Compute(res.RealWorld, req.Confidence); err != nil {
		return err
	}
	if res.Terminal, err = finance.TerminalStatistics(res.RealWorld); err != nil {
		return err
	}

	terminal := res.RiskNeutral.Terminal()
	pricer := finance.NewMonteCarloPricer(req.RiskFreeRate, req.Strike)
	if res.MonteCarloCall, err = pricer.PriceCall(terminal, req.Process.Horizon); err != nil {
		return err
	}
	if res.MonteCarloPut, err = pricer.PricePut(terminal, req.Process.Horizon); err != nil {
		return err
	}

	p := req.Process
	bs, err := finance.NewBlackScholes(p.Spot, req.Strike, req.RiskFreeRate, p.Volatility, p.Horizon)
	if err != nil {
		return err
	}
	res.BlackScholesCall, res.BlackScholesPut = bs.CallPrice(), bs.PutPrice()
	res.CallGreeks, err = bs.Greeks(types.OptionTypeCall)
	return err
}

func (e *Engine) record(res *Result) {
	if e.metrics == nil {
		return
	}
	e.metrics.StdError.WithLabelValues(string(types.OptionTypeCall)).Set(res.MonteCarloCall.StdError)
	e.metrics.StdError.WithLabelValues(string(types.OptionTypePut)).Set(res.MonteCarloPut.StdError)
	e.metrics.ValueAtRisk.Set(res.Risk.VaR)
	e.metrics.ConditionalVaR.Set(res.Risk.CVaR)
}

// Summarize 只返回可序列化摘要；启用缓存时相同请求直接命中.
func (e *Engine) Summarize(ctx context.Context, req Request) (Summary, error) {
	if err := req.Validate(); err != nil {
		return Summary{}, err
	}
	if err := e.tuning.Load().admit(req); err != nil {
		return Summary{}, err
	}

	key := req.Key()
	if e.cache != nil {
		var cached Summary
		err := e.cache.Get(ctx, key, &cached)
		if err == nil {
			if e.metrics != nil {
				e.metrics.CacheHits.Inc()
			}
			e.logger.DebugContext(ctx, "summary served from cache", "key", key)
			return cached, nil
		}
		if !errors.Is(err, xerrors.ErrCacheMiss) {
			e.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
		}
	}

	res, err := e.Run(ctx, req)
	if err != nil {
		return Summary{}, err
	}
	if e.cache != nil {
		if err := e.cache.Set(ctx, key, res.Summary); err != nil {
			e.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
		}
	}
	return res.Summary, nil
}

// RequestFromConfig 由配置与估计得到的过程参数组装请求.
func RequestFromConfig(cfg config.SimulationConfig, process types.ProcessParameters) Request {
	return Request{
		Process:          process,
		Steps:            cfg.TimeSteps,
		Paths:            cfg.Simulations,
		Antithetic:       cfg.Antithetic,
		RiskFreeRate:     cfg.RiskFreeRate,
		Strike:           cfg.StrikePrice,
		Confidence:       cfg.ConfidenceLevel,
		Seed:             cfg.Seed,
		ConvergenceSizes: append([]int(nil), cfg.ConvergenceSizes...),
	}
}

// Package pipeline 串联行情加载、参数估计、模拟计算与报告输出，并保存最近一次结果.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wyfcoding/montecarlo/config"
	"github.com/wyfcoding/montecarlo/contextx"
	"github.com/wyfcoding/montecarlo/engine"
	"github.com/wyfcoding/montecarlo/idgen"
	"github.com/wyfcoding/montecarlo/logging"
	"github.com/wyfcoding/montecarlo/marketdata"
	"github.com/wyfcoding/montecarlo/report"
	"github.com/wyfcoding/montecarlo/tracing"
	"github.com/wyfcoding/montecarlo/xerrors"
)

// Outcome 一次流水线运行的结果.
type Outcome struct {
	RunID      string              `json:"run_id"`
	Ticker     string              `json:"ticker"`
	Estimate   marketdata.Estimate `json:"estimate"`
	Summary    engine.Summary      `json:"summary"`
	ReportDir  string              `json:"report_dir,omitempty"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Pipeline 按当前配置执行完整流程，可并发调用.
type Pipeline struct {
	mu         sync.RWMutex
	market     config.MarketConfig
	simulation config.SimulationConfig

	engine   *engine.Engine
	reporter *report.Reporter
	ids      idgen.Generator
	logger   *logging.Logger
	latest   atomic.Pointer[Outcome]
}

// New 创建流水线，reporter 为 nil 时不写报告.
func New(cfg *config.Config, eng *engine.Engine, reporter *report.Reporter, ids idgen.Generator, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Default().WithModule("pipeline")
	}
	return &Pipeline{
		market:     cfg.Market,
		simulation: cfg.Simulation,
		engine:     eng,
		reporter:   reporter,
		ids:        ids,
		logger:     logger,
	}
}

// Reconfigure 替换行情与模拟参数，下一次 Execute 生效.
func (p *Pipeline) Reconfigure(cfg *config.Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.market = cfg.Market
	p.simulation = cfg.Simulation
	p.logger.Info("pipeline reconfigured", "ticker", cfg.Market.Ticker, "simulations", cfg.Simulation.Simulations)
}

func (p *Pipeline) settings() (config.MarketConfig, config.SimulationConfig) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.market, p.simulation
}

// Execute 加载行情 → 估计 μ、σ、S0 → 双测度模拟与定价 → 写报告.
func (p *Pipeline) Execute(ctx context.Context) (*Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Execute")
	defer span.End()

	runID, err := idgen.RunID(p.ids)
	if err != nil {
		return nil, xerrors.WrapInternal(err, "failed to generate run id")
	}
	ctx = contextx.WithRunID(ctx, runID)
	tracing.AddTag(ctx, "run.id", runID)

	market, simulation := p.settings()
	from, to, err := window(market)
	if err != nil {
		return nil, err
	}

	series, err := marketdata.LoadCSV(market.DataFile, from, to)
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	est, err := marketdata.EstimateParameters(series.Closes(), market.PeriodsPerYear)
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	p.logger.InfoContext(ctx, "parameters estimated",
		slog.String("ticker", market.Ticker),
		slog.Float64("mu", est.Drift),
		slog.Float64("sigma", est.Volatility),
		slog.Float64("spot", est.Spot),
		slog.Int("observations", est.Observations),
	)

	req := engine.RequestFromConfig(simulation, est.Process(simulation.HorizonYears))
	res, err := p.engine.Run(ctx, req)
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	out := &Outcome{
		RunID:      runID,
		Ticker:     market.Ticker,
		Estimate:   est,
		Summary:    res.Summary,
		FinishedAt: time.Now().UTC(),
	}
	if p.reporter != nil {
		if out.ReportDir, err = p.reporter.Write(res, runID); err != nil {
			tracing.SetError(ctx, err)
			return nil, err
		}
	}
	p.latest.Store(out)

	call := res.MonteCarloCall
	p.logger.InfoContext(ctx, "pipeline finished",
		slog.Float64("var", res.Risk.VaR),
		slog.Float64("cvar", res.Risk.CVaR),
		slog.Float64("mc_call", call.Price),
		slog.Float64("std_error", call.StdError),
		slog.Float64("ci_lower", call.CILower),
		slog.Float64("ci_upper", call.CIUpper),
		slog.Float64("bs_call", res.BlackScholesCall),
		slog.String("report_dir", out.ReportDir),
	)
	return out, nil
}

// Latest 返回最近一次成功运行的结果.
func (p *Pipeline) Latest() (*Outcome, error) {
	if out := p.latest.Load(); out != nil {
		return out, nil
	}
	return nil, xerrors.ErrNoReport
}

func window(m config.MarketConfig) (from, to time.Time, err error) {
	if m.StartDate != "" {
		if from, err = time.Parse(marketdata.DateLayout, m.StartDate); err != nil {
			return from, to, xerrors.ErrInvalidInput.WithDetail("start_date %q: %v", m.StartDate, err)
		}
	}
	if m.EndDate != "" {
		if to, err = time.Parse(marketdata.DateLayout, m.EndDate); err != nil {
			return from, to, xerrors.ErrInvalidInput.WithDetail("end_date %q: %v", m.EndDate, err)
		}
	}
	return from, to, nil
}

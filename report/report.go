// Package report 将一次计算结果写成 JSON 摘要与 PNG 图表.
package report

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/montecarlo/algorithm/types"
	"github.com/wyfcoding/montecarlo/config"
	"github.com/wyfcoding/montecarlo/engine"
	"github.com/wyfcoding/montecarlo/logging"
	"github.com/wyfcoding/montecarlo/xerrors"
)

// 输出文件名.
const (
	SummaryFile      = "summary.json"
	PathsFile        = "price_paths.png"
	DistributionFile = "terminal_distribution.png"
	ConvergenceFile  = "convergence.png"
)

const (
	defaultPlotPaths = 100
	defaultBins      = 50
	moneyPlaces      = 4
)

// Reporter 报告写入器.
type Reporter struct {
	dir       string
	plotPaths int
	bins      int
	logger    *logging.Logger
}

// New 根据配置创建 Reporter.
func New(cfg config.ReportConfig, logger *logging.Logger) *Reporter {
	r := &Reporter{dir: cfg.Dir, plotPaths: cfg.PlotPaths, bins: cfg.Bins, logger: logger}
	if r.dir == "" {
		r.dir = "outputs"
	}
	if r.plotPaths <= 0 {
		r.plotPaths = defaultPlotPaths
	}
	if r.bins <= 0 {
		r.bins = defaultBins
	}
	if r.logger == nil {
		r.logger = logging.Default().WithModule("report")
	}
	return r
}

// Dir 报告根目录.
func (r *Reporter) Dir() string { return r.dir }

// Write 在 <dir>/<runID>/ 下写出摘要与图表，返回该目录.
func (r *Reporter) Write(res *engine.Result, runID string) (string, error) {
	if res == nil || res.RealWorld == nil || res.RiskNeutral == nil {
		return "", xerrors.ErrInvalidInput.WithDetail("report requires a complete result")
	}
	dir := filepath.Join(r.dir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", xerrors.WrapInternal(err, "failed to create report directory")
	}

	if err := writeJSON(filepath.Join(dir, SummaryFile), NewDocument(res.Summary, runID, res.Elapsed)); err != nil {
		return "", err
	}
	if err := plotPaths(filepath.Join(dir, PathsFile), res.RealWorld, r.plotPaths, res.Request.Seed); err != nil {
		return "", err
	}
	if err := plotDistribution(filepath.Join(dir, DistributionFile), res.RiskNeutral.Terminal(), r.bins); err != nil {
		return "", err
	}
	if len(res.Convergence) > 0 {
		if err := plotConvergence(filepath.Join(dir, ConvergenceFile), res.Convergence); err != nil {
			return "", err
		}
	}

	r.logger.Info("report written", slog.String("run_id", runID), slog.String("dir", dir))
	return dir, nil
}

// Document summary.json 的结构，金额保留 4 位小数.
type Document struct {
	RunID       string                   `json:"run_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	ElapsedMS   int64                    `json:"elapsed_ms"`
	Spot        decimal.Decimal          `json:"spot"`
	Drift       decimal.Decimal          `json:"drift"`
	Volatility  decimal.Decimal          `json:"volatility"`
	Horizon     float64                  `json:"horizon_years"`
	Steps       int                      `json:"steps"`
	Paths       int                      `json:"paths"`
	Antithetic  bool                     `json:"antithetic"`
	Seed        uint64                   `json:"seed"`
	Strike      decimal.Decimal          `json:"strike"`
	Rate        decimal.Decimal          `json:"risk_free_rate"`
	Confidence  float64                  `json:"confidence"`
	VaR         decimal.Decimal          `json:"var"`
	CVaR        decimal.Decimal          `json:"cvar"`
	Call        PriceDocument            `json:"monte_carlo_call"`
	Put         PriceDocument            `json:"monte_carlo_put"`
	BSCall      decimal.Decimal          `json:"black_scholes_call"`
	BSPut       decimal.Decimal          `json:"black_scholes_put"`
	Greeks      types.Greeks             `json:"call_greeks"`
	Terminal    TerminalDocument         `json:"terminal"`
	Convergence []types.ConvergencePoint `json:"convergence,omitempty"`
}

// PriceDocument 蒙特卡洛价格及置信区间.
type PriceDocument struct {
	Price    decimal.Decimal `json:"price"`
	StdError decimal.Decimal `json:"std_error"`
	CILower  decimal.Decimal `json:"ci_lower"`
	CIUpper  decimal.Decimal `json:"ci_upper"`
	Samples  int             `json:"samples"`
}

// TerminalDocument 真实测度终值统计.
type TerminalDocument struct {
	Mean              decimal.Decimal `json:"mean"`
	Min               decimal.Decimal `json:"min"`
	Max               decimal.Decimal `json:"max"`
	StdDev            decimal.Decimal `json:"std_dev"`
	MeanLoss          decimal.Decimal `json:"mean_loss"`
	ProbabilityOfLoss float64         `json:"probability_of_loss"`
	MeanMaxDrawdown   float64         `json:"mean_max_drawdown"`
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(moneyPlaces)
}

func priceDoc(p types.PricingResult) PriceDocument {
	return PriceDocument{
		Price:    money(p.Price),
		StdError: money(p.StdError),
		CILower:  money(p.CILower),
		CIUpper:  money(p.CIUpper),
		Samples:  p.Samples,
	}
}

func terminalDoc(t types.PathStatistics) TerminalDocument {
	return TerminalDocument{
		Mean:              money(t.Mean),
		Min:               money(t.Min),
		Max:               money(t.Max),
		StdDev:            money(t.StdDev),
		MeanLoss:          money(t.MeanLoss),
		ProbabilityOfLoss: t.ProbabilityOfLoss,
		MeanMaxDrawdown:   t.MeanMaxDrawdown,
	}
}

// NewDocument 将摘要转换为对外的报告文档.
func NewDocument(s engine.Summary, runID string, elapsed time.Duration) Document {
	req := s.Request
	return Document{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		ElapsedMS:   elapsed.Milliseconds(),
		Spot:        money(req.Process.Spot),
		Drift:       money(req.Process.Drift),
		Volatility:  money(req.Process.Volatility),
		Horizon:     req.Process.Horizon,
		Steps:       req.Steps,
		Paths:       req.Paths,
		Antithetic:  req.Antithetic,
		Seed:        req.Seed,
		Strike:      money(req.Strike),
		Rate:        money(req.RiskFreeRate),
		Confidence:  req.Confidence,
		VaR:         money(s.Risk.VaR),
		CVaR:        money(s.Risk.CVaR),
		Call:        priceDoc(s.MonteCarloCall),
		Put:         priceDoc(s.MonteCarloPut),
		BSCall:      money(s.BlackScholesCall),
		BSPut:       money(s.BlackScholesPut),
		Greeks:      s.CallGreeks,
		Terminal:    terminalDoc(s.Terminal),
		Convergence: s.Convergence,
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return xerrors.WrapInternal(err, "failed to encode summary")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return xerrors.WrapInternal(err, "failed to write summary")
	}
	return nil
}

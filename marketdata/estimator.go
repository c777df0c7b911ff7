package marketdata

import (
	"math"

	"github.com/wyfcoding/montecarlo/algorithm/types"
	"github.com/wyfcoding/montecarlo/xerrors"
	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear 日频数据的年化因子.
const TradingDaysPerYear = 252

// Estimate 由历史收盘价估计的 GBM 参数.
type Estimate struct {
	Drift        float64 `json:"drift"`      // 年化 μ
	Volatility   float64 `json:"volatility"` // 年化 σ
	Spot         float64 `json:"spot"`       // 最后收盘价 S0
	Observations int     `json:"observations"`
}

// EstimateParameters 用对数收益 ln(P_t/P_{t−1}) 的样本均值与样本标准差（N−1）估计参数.
// μ = mean·k，σ = std·√k，k 为每年的观测期数（≤0 时取 252）.
func EstimateParameters(closes []float64, periodsPerYear int) (Estimate, error) {
	if len(closes) < 3 {
		return Estimate{}, xerrors.ErrInsufficientSamples.WithDetail("need at least 3 closes, got %d", len(closes))
	}
	if periodsPerYear <= 0 {
		periodsPerYear = TradingDaysPerYear
	}

	returns := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if !(closes[i-1] > 0) || !(closes[i] > 0) {
			return Estimate{}, xerrors.ErrInvalidInput.WithDetail("close %d must be positive", i)
		}
		returns[i-1] = math.Log(closes[i] / closes[i-1])
	}

	mean, std := stat.MeanStdDev(returns, nil)
	k := float64(periodsPerYear)
	est := Estimate{
		Drift:        mean * k,
		Volatility:   std * math.Sqrt(k),
		Spot:         closes[len(closes)-1],
		Observations: len(closes),
	}
	if !(est.Volatility > 0) {
		return Estimate{}, xerrors.ErrInvalidSpec.WithDetail("estimated volatility is zero")
	}
	return est, nil
}

// Process 以给定期限构造过程参数.
func (e Estimate) Process(horizon float64) types.ProcessParameters {
	return types.ProcessParameters{
		Spot:       e.Spot,
		Drift:      e.Drift,
		Volatility: e.Volatility,
		Horizon:    horizon,
	}
}

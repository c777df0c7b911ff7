// Package types 定义随机过程、风险与定价结果等跨模块共享的值对象。
package types

import (
	"math"

	"github.com/wyfcoding/montecarlo/xerrors"
)

// OptionType 期权类型
type OptionType string

const (
	OptionTypeCall OptionType = "CALL"
	OptionTypePut  OptionType = "PUT"
)

// Valid 判断期权类型是否受支持。
func (o OptionType) Valid() bool {
	return o == OptionTypeCall || o == OptionTypePut
}

// Measure 概率测度。
type Measure string

const (
	// MeasureRealWorld 真实测度，漂移取历史估计的 μ，用于风险度量。
	MeasureRealWorld Measure = "REAL_WORLD"
	// MeasureRiskNeutral 风险中性测度，漂移取无风险利率 r，用于定价。
	MeasureRiskNeutral Measure = "RISK_NEUTRAL"
)

// ProcessParameters 几何布朗运动参数，构造后不可变。
type ProcessParameters struct {
	Spot       float64 `json:"spot"`       // 初始价格 S0
	Drift      float64 `json:"drift"`      // 年化漂移 μ
	Volatility float64 `json:"volatility"` // 年化波动率 σ
	Horizon    float64 `json:"horizon"`    // 期限 T（年）
}

// Validate 校验参数，失败返回 ErrInvalidSpec。
func (p ProcessParameters) Validate() error {
	switch {
	case !finite(p.Spot) || p.Spot <= 0:
		return xerrors.ErrInvalidSpec.WithDetail("spot must be positive, got %v", p.Spot)
	case !finite(p.Drift):
		return xerrors.ErrInvalidSpec.WithDetail("drift must be finite, got %v", p.Drift)
	case !finite(p.Volatility) || p.Volatility <= 0:
		return xerrors.ErrInvalidSpec.WithDetail("volatility must be positive, got %v", p.Volatility)
	case !finite(p.Horizon) || p.Horizon <= 0:
		return xerrors.ErrInvalidSpec.WithDetail("horizon must be positive, got %v", p.Horizon)
	}
	return nil
}

// WithDrift 返回替换漂移后的副本，用于在两种测度之间切换。
func (p ProcessParameters) WithDrift(drift float64) ProcessParameters {
	p.Drift = drift
	return p
}

// WithSpot 返回替换初始价格后的副本。
func (p ProcessParameters) WithSpot(spot float64) ProcessParameters {
	p.Spot = spot
	return p
}

// RiskResult 尾部风险结果。
type RiskResult struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
}

// PricingResult 蒙特卡洛定价结果，含标准误与 95% 置信区间。
type PricingResult struct {
	Price    float64 `json:"price"`
	StdError float64 `json:"std_error"`
	CILower  float64 `json:"ci_lower"`
	CIUpper  float64 `json:"ci_upper"`
	Samples  int     `json:"samples"`
}

// Greeks 期权希腊字母。
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`  // 波动率变动 1 个百分点
	Theta float64 `json:"theta"` // 每日
	Rho   float64 `json:"rho"`   // 利率变动 1 个百分点
}

// PathStatistics 终值分布的描述统计。
type PathStatistics struct {
	Mean              float64 `json:"mean"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	StdDev            float64 `json:"std_dev"`
	MeanLoss          float64 `json:"mean_loss"`
	ProbabilityOfLoss float64 `json:"probability_of_loss"`
	MeanMaxDrawdown   float64 `json:"mean_max_drawdown"`
}

// ConvergencePoint 收敛研究中某一路径数下的定价结果。
type ConvergencePoint struct {
	Paths     int     `json:"paths"`
	Price     float64 `json:"price"`
	StdError  float64 `json:"std_error"`
	Reference float64 `json:"reference"`
	AbsError  float64 `json:"abs_error"`
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

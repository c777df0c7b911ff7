package finance

import (
	"context"
	"math"

	"github.com/wyfcoding/montecarlo/algorithm/sim"
	"github.com/wyfcoding/montecarlo/algorithm/types"
	"github.com/wyfcoding/montecarlo/tracing"
	"github.com/wyfcoding/montecarlo/xerrors"
	"gonum.org/v1/gonum/stat"
)

// z95 双侧 95% 正态分位数。
const z95 = 1.96

// MonteCarloPricer 由风险中性终值价格估计欧式期权价格。
//
// 置信区间采用正态近似 price ± 1.96·SE，依赖中心极限定理；
// 路径数较少或收益分布厚尾时覆盖率会偏低。
type MonteCarloPricer struct {
	rate   float64
	strike float64
}

// NewMonteCarloPricer 创建定价器，参数在每次定价入口校验。
func NewMonteCarloPricer(rate, strike float64) *MonteCarloPricer {
	return &MonteCarloPricer{rate: rate, strike: strike}
}

// PriceCall 看涨期权：e^(−rT)·max(S_T − K, 0) 的样本均值。
func (p *MonteCarloPricer) PriceCall(terminal []float64, horizon float64) (types.PricingResult, error) {
	return p.Price(types.OptionTypeCall, terminal, horizon)
}

// PricePut 看跌期权：e^(−rT)·max(K − S_T, 0) 的样本均值。
func (p *MonteCarloPricer) PricePut(terminal []float64, horizon float64) (types.PricingResult, error) {
	return p.Price(types.OptionTypePut, terminal, horizon)
}

// Price 计算折现收益的均值、标准误（N−1 分母）与 95% 置信区间。
func (p *MonteCarloPricer) Price(optionType types.OptionType, terminal []float64, horizon float64) (types.PricingResult, error) {
	if err := p.validate(optionType, terminal, horizon); err != nil {
		return types.PricingResult{}, err
	}

	disc := math.Exp(-p.rate * horizon)
	payoffs := make([]float64, len(terminal))
	for i, s := range terminal {
		if optionType == types.OptionTypeCall {
			payoffs[i] = disc * math.Max(s-p.strike, 0)
		} else {
			payoffs[i] = disc * math.Max(p.strike-s, 0)
		}
	}

	mean, std := stat.MeanStdDev(payoffs, nil)
	se := stat.StdErr(std, float64(len(payoffs)))
	return types.PricingResult{
		Price:    mean,
		StdError: se,
		CILower:  mean - z95*se,
		CIUpper:  mean + z95*se,
		Samples:  len(payoffs),
	}, nil
}

func (p *MonteCarloPricer) validate(optionType types.OptionType, terminal []float64, horizon float64) error {
	if !optionType.Valid() {
		return xerrors.ErrInvalidOptionType
	}
	if len(terminal) == 0 {
		return xerrors.ErrEmptySample
	}
	switch {
	case math.IsNaN(p.strike) || math.IsInf(p.strike, 0) || p.strike < 0:
		return xerrors.ErrInvalidParameters.WithDetail("strike must be non-negative, got %v", p.strike)
	case math.IsNaN(p.rate) || math.IsInf(p.rate, 0) || p.rate < 0:
		return xerrors.ErrInvalidParameters.WithDetail("rate must be non-negative, got %v", p.rate)
	case math.IsNaN(horizon) || math.IsInf(horizon, 0) || horizon < 0:
		return xerrors.ErrInvalidParameters.WithDetail("horizon must be non-negative, got %v", horizon)
	}
	for i, s := range terminal {
		if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
			return xerrors.ErrInvalidParameters.WithDetail("terminal price %d is invalid: %v", i, s)
		}
	}
	if len(terminal) < 2 {
		return xerrors.ErrInsufficientSamples.WithDetail("standard error needs at least two paths")
	}
	return nil
}

// ConvergenceStudy 对每个路径数做一次风险中性模拟并给看涨期权定价，
// 与 Black-Scholes 基准比较。第 i 个规模使用 stream.Split(i)。
// spec 的漂移会被替换为无风险利率，路径数被 sizes 覆盖。
func (p *MonteCarloPricer) ConvergenceStudy(ctx context.Context, simulator *sim.Simulator, spec sim.SimulationSpec, sizes []int, stream sim.Stream) ([]types.ConvergencePoint, error) {
	ctx, span := tracing.StartSpan(ctx, "finance.ConvergenceStudy")
	defer span.End()

	proc := spec.Process
	bs, err := NewBlackScholes(proc.Spot, p.strike, p.rate, proc.Volatility, proc.Horizon)
	if err != nil {
		return nil, err
	}
	reference := bs.CallPrice()
	spec.Process = proc.WithDrift(p.rate)

	points := make([]types.ConvergencePoint, 0, len(sizes))
	for i, n := range sizes {
		spec.Paths = n
		ens, err := simulator.Simulate(ctx, spec, stream.Split(uint64(i)))
		if err != nil {
			tracing.SetError(ctx, err)
			return nil, err
		}
		res, err := p.PriceCall(ens.Terminal(), proc.Horizon)
		if err != nil {
			return nil, err
		}
		points = append(points, types.ConvergencePoint{
			Paths:     n,
			Price:     res.Price,
			StdError:  res.StdError,
			Reference: reference,
			AbsError:  math.Abs(res.Price - reference),
		})
	}
	tracing.AddTag(ctx, "convergence.sizes", len(sizes))
	return points, nil
}

// Package finance 实现期权定价（Black-Scholes 解析解与蒙特卡洛估计）以及基于模拟路径的尾部风险度量。
package finance

import (
	"math"

	"github.com/wyfcoding/montecarlo/algorithm/types"
	"github.com/wyfcoding/montecarlo/xerrors"
	"gonum.org/v1/gonum/stat/distuv"
)

// BlackScholes 欧式期权解析定价器，作为蒙特卡洛结果的基准。
// 构造时完成校验，之后所有方法都是纯函数。
type BlackScholes struct {
	spot    float64
	strike  float64
	rate    float64
	vol     float64
	horizon float64
}

// NewBlackScholes 创建定价器。σ、T、S0、K 非正或任一输入非有限值时返回 ErrInvalidParameters。
func NewBlackScholes(spot, strike, rate, vol, horizon float64) (*BlackScholes, error) {
	for _, v := range []float64{spot, strike, rate, vol, horizon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, xerrors.ErrInvalidParameters.WithDetail("inputs must be finite")
		}
	}
	switch {
	case vol <= 0:
		return nil, xerrors.ErrInvalidParameters.WithDetail("volatility must be positive, got %v", vol)
	case horizon <= 0:
		return nil, xerrors.ErrInvalidParameters.WithDetail("horizon must be positive, got %v", horizon)
	case spot <= 0:
		return nil, xerrors.ErrInvalidParameters.WithDetail("spot must be positive, got %v", spot)
	case strike <= 0:
		return nil, xerrors.ErrInvalidParameters.WithDetail("strike must be positive, got %v", strike)
	}
	return &BlackScholes{spot: spot, strike: strike, rate: rate, vol: vol, horizon: horizon}, nil
}

func (b *BlackScholes) d1d2(vol float64) (d1, d2 float64) {
	sqrtT := math.Sqrt(b.horizon)
	d1 = (math.Log(b.spot/b.strike) + (b.rate+0.5*vol*vol)*b.horizon) / (vol * sqrtT)
	return d1, d1 - vol*sqrtT
}

func (b *BlackScholes) discount() float64 {
	return math.Exp(-b.rate * b.horizon)
}

// CallPrice 看涨期权价格 S0·Φ(d1) − K·e^(−rT)·Φ(d2)。
func (b *BlackScholes) CallPrice() float64 {
	return b.callAt(b.vol)
}

// PutPrice 看跌期权价格 K·e^(−rT)·Φ(−d2) − S0·Φ(−d1)。
func (b *BlackScholes) PutPrice() float64 {
	return b.putAt(b.vol)
}

func (b *BlackScholes) callAt(vol float64) float64 {
	d1, d2 := b.d1d2(vol)
	return b.spot*distuv.UnitNormal.CDF(d1) - b.strike*b.discount()*distuv.UnitNormal.CDF(d2)
}

func (b *BlackScholes) putAt(vol float64) float64 {
	d1, d2 := b.d1d2(vol)
	return b.strike*b.discount()*distuv.UnitNormal.CDF(-d2) - b.spot*distuv.UnitNormal.CDF(-d1)
}

// Price 按期权类型返回价格。
func (b *BlackScholes) Price(optionType types.OptionType) (float64, error) {
	switch optionType {
	case types.OptionTypeCall:
		return b.CallPrice(), nil
	case types.OptionTypePut:
		return b.PutPrice(), nil
	default:
		return 0, xerrors.ErrInvalidOptionType
	}
}

// Greeks 一次性计算全部希腊字母。Vega、Rho 按 1 个百分点计，Theta 按日计。
func (b *BlackScholes) Greeks(optionType types.OptionType) (types.Greeks, error) {
	if !optionType.Valid() {
		return types.Greeks{}, xerrors.ErrInvalidOptionType
	}

	sqrtT := math.Sqrt(b.horizon)
	d1, d2 := b.d1d2(b.vol)
	disc := b.discount()
	pdf := distuv.UnitNormal.Prob(d1)

	g := types.Greeks{
		Gamma: pdf / (b.spot * b.vol * sqrtT),
		Vega:  b.spot * pdf * sqrtT / 100,
	}
	decay := -b.spot * pdf * b.vol / (2 * sqrtT)
	if optionType == types.OptionTypeCall {
		g.Delta = distuv.UnitNormal.CDF(d1)
		g.Theta = (decay - b.rate*b.strike*disc*distuv.UnitNormal.CDF(d2)) / 365
		g.Rho = b.strike * b.horizon * disc * distuv.UnitNormal.CDF(d2) / 100
	} else {
		g.Delta = distuv.UnitNormal.CDF(d1) - 1
		g.Theta = (decay + b.rate*b.strike*disc*distuv.UnitNormal.CDF(-d2)) / 365
		g.Rho = -b.strike * b.horizon * disc * distuv.UnitNormal.CDF(-d2) / 100
	}
	return g, nil
}

const (
	ivTolerance     = 1e-8
	ivMaxIterations = 100
	ivMinVol        = 1e-4
	ivMaxVol        = 5.0
)

// ImpliedVolatility 用 Newton-Raphson 反解市场价格对应的波动率，忽略定价器自身的 σ。
// 市场价格超出无套利区间时返回 ErrInvalidParameters，迭代不收敛返回 ErrMathConvergence。
func (b *BlackScholes) ImpliedVolatility(optionType types.OptionType, marketPrice float64) (float64, error) {
	if !optionType.Valid() {
		return 0, xerrors.ErrInvalidOptionType
	}

	var lower, upper float64
	price := b.callAt
	if optionType == types.OptionTypeCall {
		lower, upper = math.Max(b.spot-b.strike*b.discount(), 0), b.spot
	} else {
		lower, upper = math.Max(b.strike*b.discount()-b.spot, 0), b.strike*b.discount()
		price = b.putAt
	}
	if math.IsNaN(marketPrice) || marketPrice <= lower || marketPrice >= upper {
		return 0, xerrors.ErrInvalidParameters.WithDetail("market price %v outside arbitrage bounds (%v, %v)", marketPrice, lower, upper)
	}

	sqrtT := math.Sqrt(b.horizon)
	sigma := 0.3
	for range ivMaxIterations {
		diff := price(sigma) - marketPrice
		if math.Abs(diff) < ivTolerance {
			return sigma, nil
		}
		d1, _ := b.d1d2(sigma)
		vega := b.spot * distuv.UnitNormal.Prob(d1) * sqrtT
		if vega < 1e-12 {
			break
		}
		sigma = math.Min(math.Max(sigma-diff/vega, ivMinVol), ivMaxVol)
	}
	return 0, xerrors.ErrMathConvergence.WithDetail("implied volatility did not converge for price %v", marketPrice)
}

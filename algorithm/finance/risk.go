package finance

import (
	"math"

	mathx "github.com/wyfcoding/montecarlo/algorithm/math"
	"github.com/wyfcoding/montecarlo/algorithm/sim"
	"github.com/wyfcoding/montecarlo/algorithm/types"
	"github.com/wyfcoding/montecarlo/xerrors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Losses 每条路径的损失：初始价格 − 终值价格，正值表示亏损。
func Losses(ens *sim.PathEnsemble) []float64 {
	initial, terminal := ens.Initial(), ens.Terminal()
	losses := make([]float64, len(terminal))
	for j := range terminal {
		losses[j] = initial[j] - terminal[j]
	}
	return losses
}

func checkRiskInput(ens *sim.PathEnsemble, confidence float64) error {
	if math.IsNaN(confidence) || confidence <= 0 || confidence >= 1 {
		return xerrors.ErrInvalidConfidenceLevel.WithDetail("got %v", confidence)
	}
	if ens == nil || ens.Paths() < 2 {
		return xerrors.ErrInsufficientSamples.WithDetail("risk measures need at least two paths")
	}
	return nil
}

// ComputeVaR 损失分布在 α 处的线性插值分位数。
func ComputeVaR(ens *sim.PathEnsemble, confidence float64) (float64, error) {
	if err := checkRiskInput(ens, confidence); err != nil {
		return 0, err
	}
	return mathx.Percentile(mathx.SortedCopy(Losses(ens)), quantile(confidence))
}

// quantile 先换算成百分数再还原，与按百分位调用 numpy.percentile 得到同一个 q.
// 对部分 α（例如 0.026）结果与 α 相差一个 ulp.
func quantile(confidence float64) float64 {
	return confidence * 100 / 100
}

// ComputeCVaR 损失不小于 VaR 的路径的平均损失。
// 边界取闭区间（≥ VaR）；没有路径达到 VaR 时退化为最大损失。
func ComputeCVaR(ens *sim.PathEnsemble, confidence float64) (float64, error) {
	res, err := Compute(ens, confidence)
	if err != nil {
		return 0, err
	}
	return res.CVaR, nil
}

// Compute 同时计算 VaR 与 CVaR，只排序一次。
func Compute(ens *sim.PathEnsemble, confidence float64) (types.RiskResult, error) {
	if err := checkRiskInput(ens, confidence); err != nil {
		return types.RiskResult{}, err
	}
	losses := mathx.SortedCopy(Losses(ens))
	v, err := mathx.Percentile(losses, quantile(confidence))
	if err != nil {
		return types.RiskResult{}, err
	}
	cv, err := mathx.TailMean(losses, v)
	if err != nil {
		return types.RiskResult{}, err
	}
	return types.RiskResult{Confidence: confidence, VaR: v, CVaR: cv}, nil
}

// TerminalStatistics 终值价格的描述统计（样本标准差），以及损失概率与平均最大回撤。
func TerminalStatistics(ens *sim.PathEnsemble) (types.PathStatistics, error) {
	if ens == nil || ens.Paths() < 2 {
		return types.PathStatistics{}, xerrors.ErrInsufficientSamples
	}

	terminal := ens.Terminal()
	losses := Losses(ens)
	mean, std := stat.MeanStdDev(terminal, nil)

	var lossCount int
	for _, l := range losses {
		if l > 0 {
			lossCount++
		}
	}
	var ddSum float64
	for j := range ens.Paths() {
		ddSum += MaxDrawdown(ens.Path(j))
	}

	n := float64(len(terminal))
	return types.PathStatistics{
		Mean:              mean,
		Min:               floats.Min(terminal),
		Max:               floats.Max(terminal),
		StdDev:            std,
		MeanLoss:          stat.Mean(losses, nil),
		ProbabilityOfLoss: float64(lossCount) / n,
		MeanMaxDrawdown:   ddSum / n,
	}, nil
}

// MaxDrawdown 单条价格路径的最大回撤（相对历史高点的比例）。
func MaxDrawdown(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	peak := prices[0]
	var maxDD float64
	for _, p := range prices {
		if p > peak {
			peak = p
		}
		if dd := (peak - p) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

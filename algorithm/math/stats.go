// Package math 提供风险与定价模块共用的数值工具。
package math

import (
	stdmath "math"
	"slices"

	"github.com/wyfcoding/montecarlo/xerrors"
)

// SortedCopy 返回升序排列的副本，不修改入参。
func SortedCopy(values []float64) []float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return sorted
}

// Percentile 计算升序样本的线性插值分位数，q ∈ [0, 1]。
// 虚拟秩为 q·(n−1)；秩落在两个次序统计量之间时线性插值，同 numpy 的 "linear" 方法。
// 按百分数给出分位点的调用方需自行做 q = p/100 换算。
func Percentile(sorted []float64, q float64) (float64, error) {
	n := len(sorted)
	if n == 0 {
		return 0, xerrors.ErrEmptySample
	}
	if stdmath.IsNaN(q) || q < 0 || q > 1 {
		return 0, xerrors.ErrInvalidInput.WithDetail("quantile must be in [0, 1], got %v", q)
	}

	rank := q * float64(n-1)
	lo := int(stdmath.Floor(rank))
	if lo >= n-1 {
		return sorted[n-1], nil
	}
	return lerp(sorted[lo], sorted[lo+1], rank-float64(lo)), nil
}

// lerp 与 numpy._lerp 相同：t ≥ 0.5 时从上端回推，减少舍入误差。
func lerp(a, b, t float64) float64 {
	diff := b - a
	if t >= 0.5 {
		return b - diff*(1-t)
	}
	return a + diff*t
}

// TailMean 计算所有不小于 threshold 的样本均值（包含边界）。
// 若因舍入没有样本达到阈值，退化为最大样本本身，绝不返回空集均值。
func TailMean(values []float64, threshold float64) (float64, error) {
	if len(values) == 0 {
		return 0, xerrors.ErrEmptySample
	}

	var sum float64
	var count int
	maxVal := stdmath.Inf(-1)
	for _, v := range values {
		if v >= threshold {
			sum += v
			count++
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if count == 0 {
		return maxVal, nil
	}
	return sum / float64(count), nil
}

// AllFinite 判断切片中是否不含 NaN 或 Inf。
func AllFinite(values []float64) bool {
	for _, v := range values {
		if stdmath.IsNaN(v) || stdmath.IsInf(v, 0) {
			return false
		}
	}
	return true
}

package sim

import (
	"math"

	"github.com/wyfcoding/montecarlo/xerrors"
	"gonum.org/v1/gonum/mat"
)

// PathEnsemble 模拟价格路径矩阵，形状为 (Steps+1) × Paths。
// 第 0 行是所有路径共同的初始价格，第 Steps 行是终值价格。
// 下游模块只读：所有访问器返回副本，PathEnsemble 本身实现 mat.Matrix。
type PathEnsemble struct {
	data  *mat.Dense
	steps int
	paths int
}

func newPathEnsemble(steps, paths int) *PathEnsemble {
	return &PathEnsemble{
		data:  mat.NewDense(steps+1, paths, nil),
		steps: steps,
		paths: paths,
	}
}

// NewPathEnsemble 由若干条完整路径构造集合，用于回放或测试。
// 每条路径长度必须相同且至少为 2，且所有路径起点相同；价格必须为正的有限值。
func NewPathEnsemble(paths [][]float64) (*PathEnsemble, error) {
	if len(paths) == 0 {
		return nil, xerrors.ErrInvalidSpec.WithDetail("at least one path is required")
	}
	rows := len(paths[0])
	if rows < 2 {
		return nil, xerrors.ErrInvalidSpec.WithDetail("a path needs at least two prices")
	}
	ens := newPathEnsemble(rows-1, len(paths))
	for j, p := range paths {
		if len(p) != rows {
			return nil, xerrors.ErrDimMismatch.WithDetail("path %d has %d prices, want %d", j, len(p), rows)
		}
		if p[0] != paths[0][0] {
			return nil, xerrors.ErrInvalidSpec.WithDetail("path %d starts at %v, want %v", j, p[0], paths[0][0])
		}
		for t, v := range p {
			if !(v > 0) || math.IsInf(v, 0) {
				return nil, xerrors.ErrInvalidSpec.WithDetail("price (%d,%d) must be positive, got %v", t, j, v)
			}
			ens.data.Set(t, j, v)
		}
	}
	return ens, nil
}

// Steps 返回时间步数 N。
func (e *PathEnsemble) Steps() int { return e.steps }

// Paths 返回路径数 M。
func (e *PathEnsemble) Paths() int { return e.paths }

// Dims 实现 mat.Matrix。
func (e *PathEnsemble) Dims() (r, c int) { return e.steps + 1, e.paths }

// At 返回第 t 步、第 j 条路径的价格。
func (e *PathEnsemble) At(t, j int) float64 { return e.data.At(t, j) }

// T 实现 mat.Matrix。
func (e *PathEnsemble) T() mat.Matrix { return mat.Transpose{Matrix: e} }

// Row 返回第 t 步所有路径的价格副本。
func (e *PathEnsemble) Row(t int) []float64 {
	return mat.Row(nil, t, e.data)
}

// Path 返回第 j 条路径的完整价格序列副本。
func (e *PathEnsemble) Path(j int) []float64 {
	return mat.Col(nil, j, e.data)
}

// Initial 返回初始价格行。
func (e *PathEnsemble) Initial() []float64 {
	return e.Row(0)
}

// Terminal 返回终值价格行。
func (e *PathEnsemble) Terminal() []float64 {
	return e.Row(e.steps)
}

// Raw 返回只读的矩阵视图.
func (e *PathEnsemble) Raw() mat.Matrix { return e }

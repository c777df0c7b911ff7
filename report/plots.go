package report

import (
	"image/color"

	mathx "github.com/wyfcoding/montecarlo/algorithm/math"
	"github.com/wyfcoding/montecarlo/algorithm/sim"
	"github.com/wyfcoding/montecarlo/algorithm/types"
	"github.com/wyfcoding/montecarlo/xerrors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	figureWidth  = 10 * vg.Inch
	figureHeight = 6 * vg.Inch

	// 直方图上标注的分位点.
	tailPercentile = 0.05
)

// 选取绘图路径使用的子流，与模拟所用子流分开.
const samplingStream uint64 = 1 << 62

var dashed = []vg.Length{vg.Points(6), vg.Points(4)}

func save(p *plot.Plot, path string) error {
	if err := p.Save(figureWidth, figureHeight, path); err != nil {
		return xerrors.WrapInternal(err, "failed to save chart "+path)
	}
	return nil
}

// plotPaths 绘制至多 n 条抽样路径.
func plotPaths(path string, ens *sim.PathEnsemble, n int, seed uint64) error {
	p := plot.New()
	p.Title.Text = "Monte Carlo Simulated Price Paths"
	p.X.Label.Text = "Time Steps"
	p.Y.Label.Text = "Price"
	p.Add(plotter.NewGrid())

	for i, j := range sim.SamplePaths(ens, n, sim.NewStream(seed).Split(samplingStream)) {
		prices := ens.Path(j)
		pts := make(plotter.XYs, len(prices))
		for t, v := range prices {
			pts[t].X = float64(t)
			pts[t].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return xerrors.WrapInternal(err, "failed to build path line")
		}
		line.LineStyle.Width = vg.Points(0.8)
		line.LineStyle.Color = plotutil.Color(i)
		p.Add(line)
	}
	return save(p, path)
}

// plotDistribution 终值直方图，虚线标出 5% 分位.
func plotDistribution(path string, terminal []float64, bins int) error {
	p := plot.New()
	p.Title.Text = "Distribution of Terminal Prices"
	p.X.Label.Text = "Terminal Price"
	p.Y.Label.Text = "Frequency"
	p.Add(plotter.NewGrid())

	h, err := plotter.NewHist(plotter.Values(terminal), bins)
	if err != nil {
		return xerrors.WrapInternal(err, "failed to build histogram")
	}
	h.FillColor = color.RGBA{R: 70, G: 130, B: 180, A: 180}
	p.Add(h)

	cutoff, err := mathx.Percentile(mathx.SortedCopy(terminal), tailPercentile)
	if err != nil {
		return err
	}
	var top float64
	for _, b := range h.Bins {
		top = max(top, b.Weight)
	}
	marker, err := plotter.NewLine(plotter.XYs{{X: cutoff, Y: 0}, {X: cutoff, Y: top}})
	if err != nil {
		return xerrors.WrapInternal(err, "failed to build percentile marker")
	}
	marker.LineStyle.Dashes = dashed
	marker.LineStyle.Color = color.RGBA{R: 200, A: 255}
	p.Add(marker)
	p.Legend.Add("5th percentile", marker)

	return save(p, path)
}

// plotConvergence 蒙特卡洛价格随路径数的变化，对数横轴，附 Black-Scholes 基准线.
func plotConvergence(path string, points []types.ConvergencePoint) error {
	p := plot.New()
	p.Title.Text = "Monte Carlo Convergence"
	p.X.Label.Text = "Paths"
	p.Y.Label.Text = "Call Price"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	prices := make(plotter.XYs, len(points))
	lower := make(plotter.XYs, len(points))
	upper := make(plotter.XYs, len(points))
	for i, pt := range points {
		x := float64(pt.Paths)
		prices[i] = plotter.XY{X: x, Y: pt.Price}
		lower[i] = plotter.XY{X: x, Y: pt.Price - 1.96*pt.StdError}
		upper[i] = plotter.XY{X: x, Y: pt.Price + 1.96*pt.StdError}
	}

	line, scatter, err := plotter.NewLinePoints(prices)
	if err != nil {
		return xerrors.WrapInternal(err, "failed to build convergence line")
	}
	line.LineStyle.Color = plotutil.Color(0)
	scatter.Color = plotutil.Color(0)
	p.Add(line, scatter)
	p.Legend.Add("Monte Carlo", line, scatter)

	for _, band := range []plotter.XYs{lower, upper} {
		l, err := plotter.NewLine(band)
		if err != nil {
			return xerrors.WrapInternal(err, "failed to build confidence band")
		}
		l.LineStyle.Color = plotutil.Color(0)
		l.LineStyle.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
		p.Add(l)
	}

	ref := points[0].Reference
	first, last := float64(points[0].Paths), float64(points[len(points)-1].Paths)
	reference, err := plotter.NewLine(plotter.XYs{{X: first, Y: ref}, {X: last, Y: ref}})
	if err != nil {
		return xerrors.WrapInternal(err, "failed to build reference line")
	}
	reference.LineStyle.Dashes = dashed
	reference.LineStyle.Color = plotutil.Color(1)
	p.Add(reference)
	p.Legend.Add("Black-Scholes", reference)

	return save(p, path)
}

package finance

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/wyfcoding/montecarlo/algorithm/sim"
	"github.com/wyfcoding/montecarlo/algorithm/types"
	"github.com/wyfcoding/montecarlo/xerrors"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestBlackScholesReference(t *testing.T) {
	bs, err := NewBlackScholes(100, 100, 0.05, 0.2, 1)
	if err != nil {
		t.Fatal(err)
	}
	call, put := bs.CallPrice(), bs.PutPrice()
	if !near(call, 10.450583572185565, 1e-6) {
		t.Errorf("call = %v, want 10.4506", call)
	}
	if !near(put, 5.573526022256971, 1e-6) {
		t.Errorf("put = %v, want 5.5735", put)
	}
	if !near(call-put, 100-100*math.Exp(-0.05), 1e-9) {
		t.Errorf("parity violated: %v", call-put)
	}
}

func TestPutCallParity(t *testing.T) {
	cases := []struct{ s, k, r, vol, T float64 }{
		{100, 100, 0.05, 0.2, 1},
		{50, 80, 0.01, 0.6, 0.25},
		{120, 90, 0.0, 0.15, 3},
		{10, 10.5, 0.08, 0.9, 0.01},
	}
	for _, c := range cases {
		bs, err := NewBlackScholes(c.s, c.k, c.r, c.vol, c.T)
		if err != nil {
			t.Fatal(err)
		}
		want := c.s - c.k*math.Exp(-c.r*c.T)
		if got := bs.CallPrice() - bs.PutPrice(); !near(got, want, 1e-9*c.s) {
			t.Errorf("%+v: call-put = %v, want %v", c, got, want)
		}
	}
}

func TestBlackScholesDegenerateVolatility(t *testing.T) {
	for _, k := range []float64{90, 100, 120} {
		bs, err := NewBlackScholes(100, k, 0.05, 1e-7, 1)
		if err != nil {
			t.Fatal(err)
		}
		want := math.Max(100-k*math.Exp(-0.05), 0)
		if got := bs.CallPrice(); !near(got, want, 1e-6) {
			t.Errorf("K=%v: call = %v, want %v", k, got, want)
		}
	}
}

func TestBlackScholesRejectsBadInput(t *testing.T) {
	cases := [][5]float64{
		{100, 100, 0.05, 0, 1},
		{100, 100, 0.05, 0.2, 0},
		{0, 100, 0.05, 0.2, 1},
		{100, -1, 0.05, 0.2, 1},
		{100, 100, math.NaN(), 0.2, 1},
	}
	for _, c := range cases {
		if _, err := NewBlackScholes(c[0], c[1], c[2], c[3], c[4]); !errors.Is(err, xerrors.ErrInvalidParameters) {
			t.Errorf("%v: expected ErrInvalidParameters, got %v", c, err)
		}
	}
}

func TestGreeks(t *testing.T) {
	bs, _ := NewBlackScholes(100, 100, 0.05, 0.2, 1)
	call, err := bs.Greeks(types.OptionTypeCall)
	if err != nil {
		t.Fatal(err)
	}
	put, _ := bs.Greeks(types.OptionTypePut)

	if !near(call.Delta, 0.6368306511756191, 1e-9) {
		t.Errorf("call delta = %v", call.Delta)
	}
	if !near(call.Delta-put.Delta, 1, 1e-12) {
		t.Errorf("delta parity violated")
	}
	if !near(call.Gamma, 0.018762017345846895, 1e-9) || call.Gamma != put.Gamma {
		t.Errorf("gamma = %v / %v", call.Gamma, put.Gamma)
	}
	if !near(call.Vega, 0.3752403469169379, 1e-9) {
		t.Errorf("vega = %v", call.Vega)
	}
	if call.Theta >= 0 || call.Rho <= 0 || put.Rho >= 0 {
		t.Errorf("unexpected signs: %+v %+v", call, put)
	}
	if _, err := bs.Greeks("STRADDLE"); !errors.Is(err, xerrors.ErrInvalidOptionType) {
		t.Errorf("expected ErrInvalidOptionType, got %v", err)
	}
}

func TestImpliedVolatility(t *testing.T) {
	truth, _ := NewBlackScholes(100, 110, 0.03, 0.35, 0.5)
	guess, _ := NewBlackScholes(100, 110, 0.03, 0.1, 0.5)

	for _, ot := range []types.OptionType{types.OptionTypeCall, types.OptionTypePut} {
		price, _ := truth.Price(ot)
		iv, err := guess.ImpliedVolatility(ot, price)
		if err != nil {
			t.Fatalf("%s: %v", ot, err)
		}
		if !near(iv, 0.35, 1e-6) {
			t.Errorf("%s: iv = %v, want 0.35", ot, iv)
		}
	}
	if _, err := guess.ImpliedVolatility(types.OptionTypeCall, 150); !errors.Is(err, xerrors.ErrInvalidParameters) {
		t.Errorf("price above spot should be rejected, got %v", err)
	}
}

func TestMonteCarloPricer(t *testing.T) {
	p := NewMonteCarloPricer(0, 100)
	terminal := []float64{90, 100, 110, 120}

	call, err := p.PriceCall(terminal, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !near(call.Price, 7.5, 1e-12) {
		t.Errorf("call price = %v, want 7.5", call.Price)
	}
	wantSE := math.Sqrt(275.0/3) / 2
	if !near(call.StdError, wantSE, 1e-12) {
		t.Errorf("std error = %v, want %v", call.StdError, wantSE)
	}
	if !near(call.CIUpper-call.Price, 1.96*wantSE, 1e-12) || call.CILower > call.Price {
		t.Errorf("bad interval: %+v", call)
	}
	if call.Samples != 4 {
		t.Errorf("samples = %d", call.Samples)
	}

	put, _ := p.PricePut(terminal, 1)
	if !near(put.Price, 2.5, 1e-12) {
		t.Errorf("put price = %v, want 2.5", put.Price)
	}

	discounted, _ := NewMonteCarloPricer(0.05, 100).PriceCall(terminal, 2)
	if !near(discounted.Price, 7.5*math.Exp(-0.1), 1e-12) {
		t.Errorf("discounting wrong: %v", discounted.Price)
	}
}

func TestMonteCarloPricerFailures(t *testing.T) {
	cases := []struct {
		name     string
		pricer   *MonteCarloPricer
		ot       types.OptionType
		terminal []float64
		horizon  float64
		want     error
	}{
		{"empty", NewMonteCarloPricer(0.05, 100), types.OptionTypeCall, nil, 1, xerrors.ErrEmptySample},
		{"negative strike", NewMonteCarloPricer(0.05, -1), types.OptionTypeCall, []float64{1, 2}, 1, xerrors.ErrInvalidParameters},
		{"negative rate", NewMonteCarloPricer(-0.01, 100), types.OptionTypePut, []float64{1, 2}, 1, xerrors.ErrInvalidParameters},
		{"negative horizon", NewMonteCarloPricer(0.05, 100), types.OptionTypeCall, []float64{1, 2}, -1, xerrors.ErrInvalidParameters},
		{"nan price", NewMonteCarloPricer(0.05, 100), types.OptionTypeCall, []float64{1, math.NaN()}, 1, xerrors.ErrInvalidParameters},
		{"single path", NewMonteCarloPricer(0.05, 100), types.OptionTypeCall, []float64{101}, 1, xerrors.ErrInsufficientSamples},
		{"bad type", NewMonteCarloPricer(0.05, 100), "BINARY", []float64{1, 2}, 1, xerrors.ErrInvalidOptionType},
	}
	for _, c := range cases {
		if _, err := c.pricer.Price(c.ot, c.terminal, c.horizon); !errors.Is(err, c.want) {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, err)
		}
	}
}

func TestMonteCarloConvergence(t *testing.T) {
	spec := sim.SimulationSpec{
		Process: types.ProcessParameters{Spot: 100, Drift: 0.12, Volatility: 0.2, Horizon: 1},
		Steps:   1,
	}
	pricer := NewMonteCarloPricer(0.05, 100)
	points, err := pricer.ConvergenceStudy(context.Background(), sim.NewSimulator(), spec, []int{1_000, 10_000, 100_000}, sim.NewStream(20240601))
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	for i, pt := range points {
		if !near(pt.Reference, 10.450583572185565, 1e-6) {
			t.Errorf("reference = %v", pt.Reference)
		}
		if pt.AbsError > 4*pt.StdError {
			t.Errorf("M=%d: price %v is %v away from Black-Scholes (SE %v)", pt.Paths, pt.Price, pt.AbsError, pt.StdError)
		}
		if i > 0 {
			ratio := points[i-1].StdError / pt.StdError
			if ratio < 2.6 || ratio > 3.8 {
				t.Errorf("SE ratio %d→%d = %v, want ≈ √10", points[i-1].Paths, pt.Paths, ratio)
			}
		}
	}
}

func ensembleFromTerminal(spot float64, terminal ...float64) *sim.PathEnsemble {
	paths := make([][]float64, len(terminal))
	for j, v := range terminal {
		paths[j] = []float64{spot, v}
	}
	ens, err := sim.NewPathEnsemble(paths)
	if err != nil {
		panic(err)
	}
	return ens
}

func TestValueAtRisk(t *testing.T) {
	ens := ensembleFromTerminal(100, 95, 90, 105, 80, 100)

	v, err := ComputeVaR(ens, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if !near(v, 18, 1e-12) {
		t.Errorf("VaR(0.95) = %v, want 18", v)
	}
	cv, _ := ComputeCVaR(ens, 0.95)
	if !near(cv, 20, 1e-12) {
		t.Errorf("CVaR(0.95) = %v, want 20", cv)
	}

	res, err := Compute(ens, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if !near(res.VaR, 5, 1e-12) || !near(res.CVaR, 35.0/3, 1e-12) {
		t.Errorf("Compute(0.5) = %+v", res)
	}
}

func TestValueAtRiskMatchesPercentCall(t *testing.T) {
	// numpy.percentile(losses, 2.6) 的结果；直接以 α=0.026 作秩会多出一个 ulp.
	ens := ensembleFromTerminal(100, 89, 103.5, 95, 109.5, 101, 92.5, 107, 98.5, 113, 104.5)
	v, err := ComputeVaR(ens, 0.026)
	if err != nil {
		t.Fatal(err)
	}
	if v != -12.181 {
		t.Errorf("VaR(0.026) = %v, want -12.181", v)
	}
	res, err := Compute(ens, 0.026)
	if err != nil {
		t.Fatal(err)
	}
	if res.VaR != v {
		t.Errorf("Compute and ComputeVaR disagree: %v vs %v", res.VaR, v)
	}
}

func TestCVaRNotBelowVaR(t *testing.T) {
	spec := sim.SimulationSpec{
		Process: types.ProcessParameters{Spot: 50, Drift: 0.03, Volatility: 0.4, Horizon: 2},
		Steps:   24,
		Paths:   2_001,
	}
	ens, err := sim.NewSimulator().Simulate(context.Background(), spec, sim.NewStream(99))
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range []float64{0.01, 0.5, 0.9, 0.95, 0.99, 0.999} {
		res, err := Compute(ens, a)
		if err != nil {
			t.Fatal(err)
		}
		if res.CVaR < res.VaR {
			t.Errorf("α=%v: CVaR %v < VaR %v", a, res.CVaR, res.VaR)
		}
	}
}

func TestRiskAllTies(t *testing.T) {
	ens := ensembleFromTerminal(100, 90, 90, 90)
	res, err := Compute(ens, 0.99)
	if err != nil {
		t.Fatal(err)
	}
	if res.VaR != 10 || res.CVaR != 10 {
		t.Errorf("ties should give VaR = CVaR = 10, got %+v", res)
	}
}

func TestRiskBoundaryRejection(t *testing.T) {
	ens := ensembleFromTerminal(100, 95, 105)
	for _, a := range []float64{0, 1, -0.1, 1.5, math.NaN()} {
		if _, err := ComputeVaR(ens, a); !errors.Is(err, xerrors.ErrInvalidConfidenceLevel) {
			t.Errorf("α=%v: expected ErrInvalidConfidenceLevel, got %v", a, err)
		}
		if _, err := ComputeCVaR(ens, a); !errors.Is(err, xerrors.ErrInvalidConfidenceLevel) {
			t.Errorf("α=%v: expected ErrInvalidConfidenceLevel from CVaR, got %v", a, err)
		}
	}

	single := ensembleFromTerminal(100, 95)
	if _, err := ComputeVaR(single, 0.95); !errors.Is(err, xerrors.ErrInsufficientSamples) {
		t.Errorf("expected ErrInsufficientSamples, got %v", err)
	}
	if _, err := ComputeCVaR(nil, 0.95); !errors.Is(err, xerrors.ErrInsufficientSamples) {
		t.Errorf("expected ErrInsufficientSamples for nil ensemble, got %v", err)
	}
}

func TestTerminalStatistics(t *testing.T) {
	ens := ensembleFromTerminal(100, 95, 90, 105, 80, 100)
	st, err := TerminalStatistics(ens)
	if err != nil {
		t.Fatal(err)
	}
	if !near(st.Mean, 94, 1e-12) || st.Min != 80 || st.Max != 105 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if !near(st.ProbabilityOfLoss, 0.6, 1e-12) || !near(st.MeanLoss, 6, 1e-12) {
		t.Errorf("unexpected loss stats: %+v", st)
	}
	if _, err := TerminalStatistics(ensembleFromTerminal(100, 1)); !errors.Is(err, xerrors.ErrInsufficientSamples) {
		t.Errorf("expected ErrInsufficientSamples, got %v", err)
	}
}

func TestMaxDrawdown(t *testing.T) {
	if dd := MaxDrawdown([]float64{100, 120, 90, 130, 117}); !near(dd, 0.25, 1e-12) {
		t.Errorf("max drawdown = %v, want 0.25", dd)
	}
	if MaxDrawdown(nil) != 0 || MaxDrawdown([]float64{1, 2, 3}) != 0 {
		t.Errorf("monotone or empty path has no drawdown")
	}
}

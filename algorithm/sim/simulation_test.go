package sim

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/wyfcoding/montecarlo/algorithm/types"
	"github.com/wyfcoding/montecarlo/xerrors"
	"gonum.org/v1/gonum/stat"
)

func baseSpec() SimulationSpec {
	return SimulationSpec{
		Process: types.ProcessParameters{Spot: 100, Drift: 0.08, Volatility: 0.25, Horizon: 1},
		Steps:   52,
		Paths:   200,
	}
}

func TestSimulateShape(t *testing.T) {
	spec := baseSpec()
	ens, err := NewSimulator().Simulate(context.Background(), spec, NewStream(1))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	r, c := ens.Dims()
	if r != spec.Steps+1 || c != spec.Paths {
		t.Fatalf("expected %dx%d, got %dx%d", spec.Steps+1, spec.Paths, r, c)
	}
	for j, v := range ens.Initial() {
		if v != spec.Process.Spot {
			t.Errorf("path %d: initial price %v, want %v", j, v, spec.Process.Spot)
		}
	}
	if len(ens.Terminal()) != spec.Paths {
		t.Errorf("terminal row has %d entries", len(ens.Terminal()))
	}
}

func TestSimulateScaleInvariance(t *testing.T) {
	spec := baseSpec()
	sim := NewSimulator()
	stream := NewStream(42)

	a, err := sim.Simulate(context.Background(), spec, stream)
	if err != nil {
		t.Fatal(err)
	}
	const c = 2.5
	spec.Process = spec.Process.WithSpot(spec.Process.Spot * c)
	b, err := sim.Simulate(context.Background(), spec, stream)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i <= spec.Steps; i++ {
		for j := range spec.Paths {
			want := a.At(i, j) * c
			if math.Abs(b.At(i, j)-want) > 1e-12*want {
				t.Fatalf("entry (%d,%d): got %v, want %v", i, j, b.At(i, j), want)
			}
		}
	}
}

func TestSimulatePositivity(t *testing.T) {
	spec := SimulationSpec{
		Process:    types.ProcessParameters{Spot: 1, Drift: -0.5, Volatility: 1.5, Horizon: 5},
		Steps:      3,
		Paths:      1000,
		Antithetic: true,
	}
	ens, err := NewSimulator().Simulate(context.Background(), spec, NewStream(7))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i <= spec.Steps; i++ {
		for _, v := range ens.Row(i) {
			if !(v > 0) {
				t.Fatalf("non-positive price %v at step %d", v, i)
			}
		}
	}
}

func TestAntitheticSymmetry(t *testing.T) {
	spec := baseSpec()
	spec.Antithetic = true
	ens, err := NewSimulator().Simulate(context.Background(), spec, NewStream(3))
	if err != nil {
		t.Fatal(err)
	}

	p := spec.Process
	want := 2*math.Log(p.Spot) + 2*(p.Drift-0.5*p.Volatility*p.Volatility)*p.Horizon
	terminal := ens.Terminal()
	half := spec.Paths / 2
	for i := range half {
		got := math.Log(terminal[i]) + math.Log(terminal[i+half])
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("pair (%d,%d): log sum %v, want %v", i, i+half, got, want)
		}
	}
}

func TestAntitheticOddPaths(t *testing.T) {
	spec := baseSpec()
	spec.Antithetic = true
	spec.Paths = 7
	ens, err := NewSimulator().Simulate(context.Background(), spec, NewStream(11))
	if err != nil {
		t.Fatal(err)
	}

	p := spec.Process
	want := 2*math.Log(p.Spot) + 2*(p.Drift-0.5*p.Volatility*p.Volatility)*p.Horizon
	terminal := ens.Terminal()
	for i := range 3 {
		got := math.Log(terminal[i]) + math.Log(terminal[i+3])
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("pair (%d,%d) not antithetic", i, i+3)
		}
	}
	extra := ens.Path(6)
	if extra[0] != p.Spot {
		t.Errorf("extra path should start at spot")
	}
	for i := range 3 {
		if terminal[6] == terminal[i] || terminal[6] == terminal[i+3] {
			t.Errorf("extra path should be an independent draw")
		}
	}
}

func TestSimulateSinglePathAntithetic(t *testing.T) {
	spec := baseSpec()
	spec.Antithetic = true
	spec.Paths = 1
	ens, err := NewSimulator().Simulate(context.Background(), spec, NewStream(5))
	if err != nil {
		t.Fatal(err)
	}
	if ens.Terminal()[0] <= 0 || ens.Terminal()[0] == spec.Process.Spot {
		t.Errorf("single odd path was not simulated: %v", ens.Terminal())
	}
}

func TestSimulateBoundaryRejection(t *testing.T) {
	cases := map[string]func(*SimulationSpec){
		"zero steps":      func(s *SimulationSpec) { s.Steps = 0 },
		"zero paths":      func(s *SimulationSpec) { s.Paths = 0 },
		"zero volatility": func(s *SimulationSpec) { s.Process.Volatility = 0 },
		"zero horizon":    func(s *SimulationSpec) { s.Process.Horizon = 0 },
		"negative spot":   func(s *SimulationSpec) { s.Process.Spot = -1 },
		"nan drift":       func(s *SimulationSpec) { s.Process.Drift = math.NaN() },
		"steps overflow":  func(s *SimulationSpec) { s.Steps = math.MaxInt },
		"cells overflow":  func(s *SimulationSpec) { s.Steps, s.Paths = 2, math.MaxInt/2 },
		"rows wrap":       func(s *SimulationSpec) { s.Steps, s.Paths = math.MaxInt/3, 3 },
	}
	for name, mutate := range cases {
		spec := baseSpec()
		mutate(&spec)
		ens, err := NewSimulator().Simulate(context.Background(), spec, NewStream(1))
		if !errors.Is(err, xerrors.ErrInvalidSpec) {
			t.Errorf("%s: expected ErrInvalidSpec, got %v", name, err)
		}
		if ens != nil {
			t.Errorf("%s: expected nil ensemble", name)
		}
	}
}

func TestSimulateWorkerIndependence(t *testing.T) {
	spec := baseSpec()
	spec.Paths = 301
	spec.Antithetic = true
	stream := NewStream(2024)

	one, err := NewSimulator(WithWorkers(1), WithChunkSize(16)).Simulate(context.Background(), spec, stream)
	if err != nil {
		t.Fatal(err)
	}
	many, err := NewSimulator(WithWorkers(8), WithChunkSize(16)).Simulate(context.Background(), spec, stream)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i <= spec.Steps; i++ {
		for j := range spec.Paths {
			if one.At(i, j) != many.At(i, j) {
				t.Fatalf("entry (%d,%d) differs between worker counts", i, j)
			}
		}
	}
}

func TestSimulateStreamsDiffer(t *testing.T) {
	spec := baseSpec()
	sim := NewSimulator()
	a, _ := sim.Simulate(context.Background(), spec, NewStream(1).Split(0))
	b, _ := sim.Simulate(context.Background(), spec, NewStream(1).Split(1))
	if a.Terminal()[0] == b.Terminal()[0] {
		t.Errorf("distinct substreams should produce distinct paths")
	}
}

func TestSimulateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimulator().Simulate(ctx, baseSpec(), NewStream(1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if e, ok := xerrors.FromError(err); ok {
		t.Errorf("cancellation must not be reported as %v", e.Type)
	}
}

func TestSimulateDeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := NewSimulator().Simulate(ctx, baseSpec(), NewStream(1))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if e, ok := xerrors.FromError(err); !ok || e.Type != xerrors.ErrDeadlineExceeded {
		t.Errorf("expected a DeadlineExceeded error, got %v", err)
	}
}

func TestAntitheticReducesVarianceOfMean(t *testing.T) {
	const trials = 200
	spec := baseSpec()
	spec.Steps = 4
	spec.Paths = 64
	s := NewSimulator()
	root := NewStream(77)

	means := func(antithetic bool) []float64 {
		spec := spec
		spec.Antithetic = antithetic
		out := make([]float64, trials)
		for i := range trials {
			ens, err := s.Simulate(context.Background(), spec, root.Split(uint64(i)))
			if err != nil {
				t.Fatal(err)
			}
			out[i] = stat.Mean(ens.Terminal(), nil)
		}
		return out
	}
	plain, paired := means(false), means(true)

	plainVar, pairedVar := stat.Variance(plain, nil), stat.Variance(paired, nil)
	if pairedVar >= plainVar/2 {
		t.Errorf("antithetic variance of mean %v not well below plain %v", pairedVar, plainVar)
	}

	p := spec.Process
	expected := p.Spot * math.Exp(p.Drift*p.Horizon)
	tol := 4 * math.Sqrt(plainVar/trials)
	for name, m := range map[string][]float64{"plain": plain, "antithetic": paired} {
		if got := stat.Mean(m, nil); math.Abs(got-expected) > tol {
			t.Errorf("%s: mean terminal %v, want %v ± %v", name, got, expected, tol)
		}
	}
}

func TestSimulatorWith(t *testing.T) {
	base := NewSimulator(WithWorkers(2), WithChunkSize(8))
	next := base.With(WithWorkers(5))
	if base.workers != 2 || next.workers != 5 || next.chunkSize != 8 {
		t.Errorf("With mutated or dropped settings: base=%+v next=%+v", *base, *next)
	}
	if next.logger != base.logger {
		t.Errorf("With should keep the logger")
	}
}

func TestSamplePaths(t *testing.T) {
	ens := newPathEnsemble(1, 50)

	got := SamplePaths(ens, 10, NewStream(9))
	again := SamplePaths(ens, 10, NewStream(9))
	if len(got) != 10 {
		t.Fatalf("expected 10 indices, got %d", len(got))
	}
	seen := make(map[int]bool)
	for i, idx := range got {
		if idx < 0 || idx >= 50 || seen[idx] {
			t.Fatalf("invalid or duplicate index %d", idx)
		}
		if i > 0 && got[i-1] >= idx {
			t.Fatalf("indices not sorted: %v", got)
		}
		if again[i] != idx {
			t.Fatalf("sampling not deterministic: %v vs %v", got, again)
		}
		seen[idx] = true
	}

	if all := SamplePaths(ens, 80, NewStream(9)); len(all) != 50 {
		t.Errorf("k >= paths should return every index, got %d", len(all))
	}
	if SamplePaths(nil, 3, NewStream(1)) != nil {
		t.Errorf("nil ensemble should yield nil")
	}
}

func TestStreamSplit(t *testing.T) {
	root := NewStream(123)
	if root.Split(0).Key() == root.Split(1).Key() {
		t.Errorf("children must not share state")
	}
	if root.Split(4).Key() != NewStream(123).Split(4).Key() {
		t.Errorf("split must be deterministic")
	}
	if root.Split(2).Seed() != 123 {
		t.Errorf("children keep the root seed")
	}
	a, b := root.Rand(), root.Rand()
	for range 5 {
		if a.Uint64() != b.Uint64() {
			t.Fatalf("same stream must yield same sequence")
		}
	}
}

func TestNewPathEnsemble(t *testing.T) {
	ens, err := NewPathEnsemble([][]float64{{100, 101, 99}, {100, 98, 97}})
	if err != nil {
		t.Fatal(err)
	}
	if ens.Steps() != 2 || ens.Paths() != 2 {
		t.Fatalf("dims = %d×%d", ens.Steps(), ens.Paths())
	}
	if got := ens.Terminal(); got[0] != 99 || got[1] != 97 {
		t.Errorf("terminal = %v", got)
	}
	term := ens.Terminal()
	term[0] = -1
	if ens.At(2, 0) != 99 {
		t.Errorf("accessor must return a copy")
	}

	cases := []struct {
		paths [][]float64
		want  error
	}{
		{[][]float64{{100, 101}, {100}}, xerrors.ErrDimMismatch},
		{[][]float64{{100, 101}, {90, 95}}, xerrors.ErrInvalidSpec},
		{[][]float64{{100, 0}}, xerrors.ErrInvalidSpec},
		{nil, xerrors.ErrInvalidSpec},
	}
	for i, tc := range cases {
		if _, err := NewPathEnsemble(tc.paths); !errors.Is(err, tc.want) {
			t.Errorf("case %d: expected %v, got %v", i, tc.want, err)
		}
	}
}

package marketdata

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wyfcoding/montecarlo/xerrors"
)

func day(s string) time.Time {
	d, _ := time.Parse(DateLayout, s)
	return d
}

func TestReadCSVSortsAndFilters(t *testing.T) {
	src := "date,close\n2024-01-04,103.5\n2024-01-02,101\n2024-01-03, 102.25\n2024-01-05,104\n"

	all, err := ReadCSV(strings.NewReader(src), time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].Close != 101 || all[3].Close != 104 {
		t.Fatalf("unexpected series: %+v", all)
	}

	window, err := ReadCSV(strings.NewReader(src), day("2024-01-03"), day("2024-01-05"))
	if err != nil {
		t.Fatal(err)
	}
	closes := window.Closes()
	if len(closes) != 2 || closes[0] != 102.25 || closes[1] != 103.5 {
		t.Errorf("window = %v", closes)
	}
}

func TestReadCSVWithoutHeader(t *testing.T) {
	s, err := ReadCSV(strings.NewReader("2024-01-02,10\n2024-01-03,11\n"), time.Time{}, time.Time{})
	if err != nil || len(s) != 2 {
		t.Fatalf("got %v, %v", s, err)
	}
}

func TestReadCSVRejectsBadRows(t *testing.T) {
	cases := []string{
		"date,close\n2024-01-02,abc\n",
		"date,close\n2024-01-02,-5\n",
		"date,close\n2024-01-02,0\n",
		"date,close\n02/01/2024,10\n",
		"date,close\n2024-01-02\n",
	}
	for _, src := range cases {
		if _, err := ReadCSV(strings.NewReader(src), time.Time{}, time.Time{}); !errors.Is(err, xerrors.ErrInvalidInput) {
			t.Errorf("%q: expected ErrInvalidInput, got %v", src, err)
		}
	}
}

func TestEstimateParameters(t *testing.T) {
	closes := []float64{100, 110, 99}
	est, err := EstimateParameters(closes, 252)
	if err != nil {
		t.Fatal(err)
	}

	r1, r2 := math.Log(1.1), math.Log(0.9)
	mean := (r1 + r2) / 2
	std := math.Sqrt((r1-mean)*(r1-mean) + (r2-mean)*(r2-mean))
	if math.Abs(est.Drift-mean*252) > 1e-12 {
		t.Errorf("drift = %v, want %v", est.Drift, mean*252)
	}
	if math.Abs(est.Volatility-std*math.Sqrt(252)) > 1e-12 {
		t.Errorf("volatility = %v, want %v", est.Volatility, std*math.Sqrt(252))
	}
	if est.Spot != 99 || est.Observations != 3 {
		t.Errorf("unexpected estimate: %+v", est)
	}

	p := est.Process(0.5)
	if p.Horizon != 0.5 || p.Spot != 99 || p.Validate() != nil {
		t.Errorf("bad process parameters: %+v", p)
	}
}

func TestEstimateParametersFailures(t *testing.T) {
	if _, err := EstimateParameters([]float64{1, 2}, 252); !errors.Is(err, xerrors.ErrInsufficientSamples) {
		t.Errorf("expected ErrInsufficientSamples, got %v", err)
	}
	if _, err := EstimateParameters([]float64{100, 110, 121}, 252); !errors.Is(err, xerrors.ErrInvalidSpec) {
		t.Errorf("constant growth has zero volatility, got %v", err)
	}
	if _, err := EstimateParameters([]float64{100, 0, 121}, 252); !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLoadFixture(t *testing.T) {
	s, err := LoadCSV(filepath.Join("testdata", "spy_2023.csv"), day("2023-01-01"), day("2024-01-01"))
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 259 {
		t.Fatalf("expected 259 rows, got %d", len(s))
	}
	est, err := EstimateParameters(s.Closes(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if est.Volatility < 0.05 || est.Volatility > 0.5 {
		t.Errorf("implausible volatility %v", est.Volatility)
	}

	if _, err := LoadCSV(filepath.Join("testdata", "missing.csv"), time.Time{}, time.Time{}); err == nil {
		t.Errorf("expected error for missing file")
	}
}

package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSimulationMetrics(t *testing.T) {
	m := NewMetrics("test")
	s := m.Simulation

	s.ObserveRun("REAL_WORLD", 1000, 20*time.Millisecond, nil)
	s.ObserveRun("REAL_WORLD", 1000, 0, errors.New("boom"))
	s.CacheHits.Inc()

	if v := testutil.ToFloat64(s.RunsTotal.WithLabelValues("REAL_WORLD", "ok")); v != 1 {
		t.Errorf("ok runs = %v", v)
	}
	if v := testutil.ToFloat64(s.RunsTotal.WithLabelValues("REAL_WORLD", "error")); v != 1 {
		t.Errorf("error runs = %v", v)
	}
	if v := testutil.ToFloat64(s.PathsTotal.WithLabelValues("REAL_WORLD")); v != 1000 {
		t.Errorf("failed runs must not count paths, got %v", v)
	}
	if v := testutil.ToFloat64(s.CacheHits); v != 1 {
		t.Errorf("cache hits = %v", v)
	}

	var nilMetrics *SimulationMetrics
	nilMetrics.ObserveRun("REAL_WORLD", 1, 0, nil)
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics("test")
	m.RegisterBuildInfo("montecarlo", "1.0.0")
	m.RegisterBuildInfo("montecarlo", "1.0.0")
	m.Simulation.ValueAtRisk.Set(12.5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	buildInfo := fmt.Sprintf(`build_info{go_version=%q,service="montecarlo",version="1.0.0"} 1`, runtime.Version())
	for _, want := range []string{"risk_value_at_risk 12.5", buildInfo, "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

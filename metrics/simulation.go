package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SimulationMetrics 模拟、定价与风险计算的业务指标.
type SimulationMetrics struct {
	RunsTotal      *prometheus.CounterVec   // measure, status
	Duration       *prometheus.HistogramVec // measure
	PathsTotal     *prometheus.CounterVec   // measure
	StdError       *prometheus.GaugeVec     // option
	ValueAtRisk    prometheus.Gauge
	ConditionalVaR prometheus.Gauge
	CacheHits      prometheus.Counter
}

func newSimulationMetrics(m *Metrics) *SimulationMetrics {
	return &SimulationMetrics{
		RunsTotal: m.NewCounterVec(prometheus.CounterOpts{
			Name: "simulation_runs_total",
			Help: "Number of path simulations by probability measure",
		}, []string{"measure", "status"}),
		Duration: m.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "simulation_duration_seconds",
			Help:    "Wall time of a path simulation",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"measure"}),
		PathsTotal: m.NewCounterVec(prometheus.CounterOpts{
			Name: "simulation_paths_total",
			Help: "Number of simulated paths",
		}, []string{"measure"}),
		StdError: m.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pricing_standard_error",
			Help: "Standard error of the latest Monte Carlo price",
		}, []string{"option"}),
		ValueAtRisk: m.NewGauge(prometheus.GaugeOpts{
			Name: "risk_value_at_risk",
			Help: "Latest value at risk of the real-world ensemble",
		}),
		ConditionalVaR: m.NewGauge(prometheus.GaugeOpts{
			Name: "risk_conditional_value_at_risk",
			Help: "Latest conditional value at risk of the real-world ensemble",
		}),
		CacheHits: m.NewCounter(prometheus.CounterOpts{
			Name: "engine_cache_hits_total",
			Help: "Number of summaries served from the result cache",
		}),
	}
}

// ObserveRun 记录一次模拟.
func (s *SimulationMetrics) ObserveRun(measure string, paths int, elapsed time.Duration, err error) {
	if s == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.RunsTotal.WithLabelValues(measure, status).Inc()
	if err == nil {
		s.Duration.WithLabelValues(measure).Observe(elapsed.Seconds())
		s.PathsTotal.WithLabelValues(measure).Add(float64(paths))
	}
}

package metrics

import (
	"cmp"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterBuildInfo 以常量 1 暴露服务名、版本与 Go 版本，只注册一次.
func (m *Metrics) RegisterBuildInfo(serviceName, version string) {
	if m == nil || m.BuildInfo != nil {
		return
	}
	m.BuildInfo = m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Monte Carlo engine build information",
	}, []string{"service", "version", "go_version"})
	m.BuildInfo.WithLabelValues(cmp.Or(serviceName, "unknown"), cmp.Or(version, "unknown"), runtime.Version()).Set(1)
}

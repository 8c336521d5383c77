package statistics

import (
	"github.com/markusressel/nctfan/internal/autotune"
	"github.com/prometheus/client_golang/prometheus"
)

const autotuneSubsystem = "autotune"

type AutoTuneCollector struct {
	engine   *autotune.Engine
	running  *prometheus.Desc
	progress *prometheus.Desc
}

func NewAutoTuneCollector(engine *autotune.Engine) *AutoTuneCollector {
	return &AutoTuneCollector{
		engine: engine,
		running: prometheus.NewDesc(prometheus.BuildFQName(namespace, autotuneSubsystem, "running"),
			"1 while an auto-tune run is in progress",
			nil, nil,
		),
		progress: prometheus.NewDesc(prometheus.BuildFQName(namespace, autotuneSubsystem, "progress_percent"),
			"Progress of the current or last auto-tune run",
			nil, nil,
		),
	}
}

func (collector *AutoTuneCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.running
	ch <- collector.progress
}

// Collect implements required collect function for all prometheus collectors
func (collector *AutoTuneCollector) Collect(ch chan<- prometheus.Metric) {
	status := collector.engine.Status()
	running := 0.0
	if status.Running {
		running = 1
	}
	ch <- prometheus.MustNewConstMetric(collector.running, prometheus.GaugeValue, running)
	ch <- prometheus.MustNewConstMetric(collector.progress, prometheus.GaugeValue, float64(status.Progress))
}

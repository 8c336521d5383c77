package statistics

import (
	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/prometheus/client_golang/prometheus"
)

const subsystemTemperature = "temperature"

type TemperatureCollector struct {
	port   hwmon.Port
	layout hwmon.Layout
	value  *prometheus.Desc
}

func NewTemperatureCollector(port hwmon.Port, layout hwmon.Layout) *TemperatureCollector {
	return &TemperatureCollector{
		port:   port,
		layout: layout,
		value: prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemTemperature, "celsius"),
			"Current value of the Super I/O temperature inputs",
			[]string{"name"}, nil,
		),
	}
}

func (collector *TemperatureCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.value
}

// Collect implements required collect function for all prometheus collectors
func (collector *TemperatureCollector) Collect(ch chan<- prometheus.Metric) {
	for _, temperature := range hwmon.ReadSuperIoTemperatures(collector.port, collector.layout) {
		ch <- prometheus.MustNewConstMetric(collector.value, prometheus.GaugeValue, temperature.Value, temperature.Name)
	}
}

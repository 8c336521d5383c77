package statistics

import (
	"strconv"

	"github.com/markusressel/nctfan/internal/control_loop"
	"github.com/markusressel/nctfan/internal/controller"
	"github.com/prometheus/client_golang/prometheus"
)

const controllerSubsystem = "controller"

type StatisticsSource interface {
	GetStatistics() controller.Statistics
}

type RegulatorStateSource interface {
	States() map[int]control_loop.RegulatorState
}

type ControllerCollector struct {
	controller StatisticsSource
	regulator  RegulatorStateSource

	ticks         *prometheus.Desc
	failedTicks   *prometheus.Desc
	readFailures  *prometheus.Desc
	writeFailures *prometheus.Desc
	output        *prometheus.Desc
}

func NewControllerCollector(controller StatisticsSource, regulator RegulatorStateSource) *ControllerCollector {
	return &ControllerCollector{
		controller: controller,
		regulator:  regulator,
		ticks: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "ticks_total"),
			"Number of software control iterations",
			nil, nil,
		),
		failedTicks: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "failed_ticks_total"),
			"Number of software control iterations that were aborted",
			nil, nil,
		),
		readFailures: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "read_failures_total"),
			"Number of temperature reads that failed",
			nil, nil,
		),
		writeFailures: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "write_failures_total"),
			"Number of duty cycle writes that failed",
			nil, nil,
		),
		output: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "regulator_output"),
			"Last duty cycle applied by the regulator",
			[]string{"id"}, nil,
		),
	}
}

func (collector *ControllerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.ticks
	ch <- collector.failedTicks
	ch <- collector.readFailures
	ch <- collector.writeFailures
	ch <- collector.output
}

// Collect implements required collect function for all prometheus collectors
func (collector *ControllerCollector) Collect(ch chan<- prometheus.Metric) {
	stats := collector.controller.GetStatistics()
	ch <- prometheus.MustNewConstMetric(collector.ticks, prometheus.CounterValue, float64(stats.Ticks))
	ch <- prometheus.MustNewConstMetric(collector.failedTicks, prometheus.CounterValue, float64(stats.FailedTicks))
	ch <- prometheus.MustNewConstMetric(collector.readFailures, prometheus.CounterValue, float64(stats.ReadFailures))
	ch <- prometheus.MustNewConstMetric(collector.writeFailures, prometheus.CounterValue, float64(stats.WriteFailures))

	for id, state := range collector.regulator.States() {
		ch <- prometheus.MustNewConstMetric(collector.output, prometheus.GaugeValue, float64(state.LastOutput), strconv.Itoa(id))
	}
}

package statistics

import (
	"testing"

	"github.com/markusressel/nctfan/internal/autotune"
	"github.com/markusressel/nctfan/internal/control_loop"
	"github.com/markusressel/nctfan/internal/controller"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/markusressel/nctfan/internal/testingutils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var layout = hwmon.NewLayout("/sys/class/hwmon/hwmon2", hwmon.DefaultChipName)

func collect(collector prometheus.Collector) []prometheus.Metric {
	ch := make(chan prometheus.Metric, 100)
	collector.Collect(ch)
	close(ch)
	var result []prometheus.Metric
	for metric := range ch {
		result = append(result, metric)
	}
	return result
}

func describe(collector prometheus.Collector) int {
	ch := make(chan *prometheus.Desc, 100)
	collector.Describe(ch)
	close(ch)
	return len(ch)
}

type mockController struct {
	stats controller.Statistics
}

func (m mockController) GetStatistics() controller.Statistics {
	return m.stats
}

type mockRegulator map[int]control_loop.RegulatorState

func (m mockRegulator) States() map[int]control_loop.RegulatorState {
	return m
}

func TestChannelCollector_SkipsUnreadableValues(t *testing.T) {
	// GIVEN
	port := testingutils.NewMockPort()
	port.Set(layout.Pwm(1), 128)
	port.Set(layout.FanInput(1), 900)
	port.Set(layout.PwmEnable(1), 1)
	port.Set(layout.Pwm(2), 255)
	channels := fans.NewChannels(port, layout)
	collector := NewChannelCollector(map[int]fans.Fan{1: channels[1], 2: channels[2]})

	// WHEN
	metrics := collect(collector)

	// THEN
	assert.Len(t, metrics, 4)
	assert.Equal(t, 3, describe(collector))
}

func TestTemperatureCollector(t *testing.T) {
	// GIVEN
	port := testingutils.NewMockPort()
	port.Set(layout.TempInput(1), 35000)
	port.Set(layout.TempInput(2), 41500)
	collector := NewTemperatureCollector(port, layout)

	// WHEN
	metrics := collect(collector)

	// THEN
	assert.Len(t, metrics, 2)
}

func TestControllerCollector(t *testing.T) {
	// GIVEN
	collector := NewControllerCollector(
		mockController{stats: controller.Statistics{Ticks: 10, FailedTicks: 1}},
		mockRegulator{1: {LastOutput: 120, LastTemperature: 45}, 3: {LastOutput: 80, LastTemperature: 40}},
	)

	// WHEN
	metrics := collect(collector)

	// THEN
	assert.Len(t, metrics, 6)
	assert.Equal(t, 5, describe(collector))
}

func TestRegister_AddsAllCollectors(t *testing.T) {
	// GIVEN
	port := testingutils.NewMockPort()
	registry := prometheus.NewRegistry()
	sources := Sources{
		Port:       port,
		Layout:     layout,
		Channels:   fans.AsFans(fans.NewChannels(port, layout)),
		Controller: mockController{},
		Regulator:  mockRegulator{},
		Engine:     autotune.NewEngine(port, fans.AsFans(fans.NewChannels(port, layout)), autotune.DefaultConfig()),
	}

	// WHEN
	err := Register(registry, sources)

	// THEN
	require.NoError(t, err)
	assert.Error(t, Register(registry, sources))
}

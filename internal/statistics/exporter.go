package statistics

import (
	"fmt"

	"github.com/markusressel/nctfan/internal/autotune"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "nctfan"
)

// Sources holds everything the daemon exposes as metrics
type Sources struct {
	Port       hwmon.Port
	Layout     hwmon.Layout
	Channels   map[int]fans.Fan
	Controller StatisticsSource
	Regulator  RegulatorStateSource
	Engine     *autotune.Engine
}

// Register adds one collector per metric subsystem to the registerer
func Register(registerer prometheus.Registerer, sources Sources) error {
	collectors := []prometheus.Collector{
		NewChannelCollector(sources.Channels),
		NewTemperatureCollector(sources.Port, sources.Layout),
		NewControllerCollector(sources.Controller, sources.Regulator),
		NewAutoTuneCollector(sources.Engine),
	}
	for _, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			return fmt.Errorf("registering %T: %w", collector, err)
		}
	}
	return nil
}

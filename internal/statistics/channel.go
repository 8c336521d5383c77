package statistics

import (
	"strconv"

	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/util"
	"github.com/prometheus/client_golang/prometheus"
)

const channelSubsystem = "channel"

type ChannelCollector struct {
	channels map[int]fans.Fan
	pwm      *prometheus.Desc
	rpm      *prometheus.Desc
	mode     *prometheus.Desc
}

func NewChannelCollector(channels map[int]fans.Fan) *ChannelCollector {
	return &ChannelCollector{
		channels: channels,
		pwm: prometheus.NewDesc(prometheus.BuildFQName(namespace, channelSubsystem, "pwm"),
			"Current PWM value of the channel",
			[]string{"id"}, nil,
		),
		rpm: prometheus.NewDesc(prometheus.BuildFQName(namespace, channelSubsystem, "rpm"),
			"Current RPM value of the channel",
			[]string{"id"}, nil,
		),
		mode: prometheus.NewDesc(prometheus.BuildFQName(namespace, channelSubsystem, "mode"),
			"Current control mode (pwm_enable) of the channel",
			[]string{"id"}, nil,
		),
	}
}

func (collector *ChannelCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.pwm
	ch <- collector.rpm
	ch <- collector.mode
}

// Collect implements required collect function for all prometheus collectors.
// Values that cannot be read are left out.
func (collector *ChannelCollector) Collect(ch chan<- prometheus.Metric) {
	for _, id := range util.SortedKeys(collector.channels) {
		fan := collector.channels[id]
		label := strconv.Itoa(id)
		if pwm, err := fan.GetPwm(); err == nil {
			ch <- prometheus.MustNewConstMetric(collector.pwm, prometheus.GaugeValue, float64(pwm), label)
		}
		if rpm, err := fan.GetRpm(); err == nil {
			ch <- prometheus.MustNewConstMetric(collector.rpm, prometheus.GaugeValue, float64(rpm), label)
		}
		if mode, err := fan.GetMode(); err == nil {
			ch <- prometheus.MustNewConstMetric(collector.mode, prometheus.GaugeValue, float64(mode), label)
		}
	}
}

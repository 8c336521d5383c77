package api

import (
	"github.com/labstack/echo/v4"
	"github.com/markusressel/nctfan/internal/control_loop"
	"github.com/markusressel/nctfan/internal/curves"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/markusressel/nctfan/internal/settings"
	"github.com/markusressel/nctfan/internal/util"
)

type Status struct {
	Hwmon string               `json:"hwmon"`
	Fans  []fans.ChannelStatus `json:"fans"`
	Temps map[string]float64   `json:"temps"`

	FanModes        map[int]fans.ControlMode               `json:"fan_modes"`
	FanNames        map[int]string                         `json:"fan_names"`
	Curves          map[int]curves.Curve                   `json:"curves"`
	PwmModes        map[int]fans.OutputMode                `json:"pwm_modes"`
	SoftwareControl map[int]settings.SoftwareControlConfig `json:"software_control"`

	SoftwareControlRunning bool                                `json:"software_control_running"`
	Regulators             map[int]control_loop.RegulatorState `json:"regulators"`
}

// Snapshot reads the current state of all channels and temperature inputs
func (s *Server) Snapshot() Status {
	current := s.deps.Store.Snapshot()

	status := Status{
		Hwmon:           s.deps.Layout.Path,
		Fans:            []fans.ChannelStatus{},
		Temps:           map[string]float64{},
		FanModes:        current.FanModes,
		FanNames:        current.FanNames,
		Curves:          current.Curves,
		PwmModes:        current.PwmModes,
		SoftwareControl: current.SoftwareControl,
		Regulators:      map[int]control_loop.RegulatorState{},
	}

	for _, temperature := range hwmon.ReadSuperIoTemperatures(s.deps.Port, s.deps.Layout) {
		status.Temps[temperature.Name] = temperature.Value
	}
	for _, chip := range s.deps.ExtraChips {
		temperature, err := hwmon.ReadChipTemperature(s.deps.Port, chip)
		if err != nil {
			continue
		}
		status.Temps[temperature.Name] = temperature.Value
	}

	for _, id := range util.SortedKeys(s.deps.Channels) {
		status.Fans = append(status.Fans, s.deps.Channels[id].Status(current.FanName(id)))
	}

	if s.deps.Controller != nil {
		status.SoftwareControlRunning = s.deps.Controller.IsRunning()
	}
	if s.deps.Regulator != nil {
		status.Regulators = s.deps.Regulator.States()
	}
	return status
}

func (s *Server) getStatus(c echo.Context) error {
	return returnOk(c, s.Snapshot())
}

func (s *Server) getConfig(c echo.Context) error {
	return returnOk(c, s.deps.Store.Snapshot())
}

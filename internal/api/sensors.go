package api

import (
	"github.com/labstack/echo/v4"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/hwmon"
)

type ModeInfo struct {
	Value       fans.ControlMode `json:"value"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
}

func (s *Server) getAvailableModes(c echo.Context) error {
	var modes []ModeInfo
	for _, mode := range fans.SupportedModes() {
		modes = append(modes, ModeInfo{
			Value:       mode,
			Name:        mode.String(),
			Description: mode.Description(),
		})
	}
	return returnOk(c, map[string]interface{}{
		"modes": modes,
	})
}

// lists the labelled temperature source selectors of the chip
func (s *Server) getTempSensors(c echo.Context) error {
	sensors := hwmon.ReadTempSources(s.deps.Layout)
	if sensors == nil {
		sensors = []hwmon.TempSource{}
	}
	return returnOk(c, map[string]interface{}{
		"sensors": sensors,
	})
}

// lists every temperature input of every hwmon device
func (s *Server) getAllTempSensors(c echo.Context) error {
	sensors := s.deps.Sensors()
	if sensors == nil {
		sensors = []hwmon.TemperatureSensor{}
	}
	return returnOk(c, map[string]interface{}{
		"sensors": sensors,
	})
}

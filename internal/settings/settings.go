package settings

import (
	"fmt"

	"github.com/markusressel/nctfan/internal/autotune"
	"github.com/markusressel/nctfan/internal/curves"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/qdm12/reprint"
)

// SoftwareControlConfig drives a channel from an arbitrary temperature input instead of the chip curve
type SoftwareControlConfig struct {
	Enabled    bool         `json:"enabled"`
	TempSource string       `json:"temp_source"`
	Curve      curves.Curve `json:"curve"`
}

// Settings is the runtime state that survives restarts
type Settings struct {
	FanModes        map[int]fans.ControlMode      `json:"fan_modes"`
	Curves          map[int]curves.Curve          `json:"curves"`
	FanNames        map[int]string                `json:"fan_names"`
	PwmModes        map[int]fans.OutputMode       `json:"pwm_modes"`
	ManualPwm       map[int]int                   `json:"manual_pwm,omitempty"`
	TargetRpm       map[int]int                   `json:"target_rpm,omitempty"`
	TempSources     map[int]int                   `json:"temp_sources,omitempty"`
	SoftwareControl map[int]SoftwareControlConfig `json:"software_control,omitempty"`
	AutoTuneResults *autotune.Record              `json:"auto_tune_results,omitempty"`
}

func Defaults() Settings {
	result := Settings{
		FanModes:        map[int]fans.ControlMode{},
		Curves:          map[int]curves.Curve{},
		FanNames:        map[int]string{},
		PwmModes:        map[int]fans.OutputMode{},
		ManualPwm:       map[int]int{},
		TargetRpm:       map[int]int{},
		TempSources:     map[int]int{},
		SoftwareControl: map[int]SoftwareControlConfig{},
	}
	for id := 1; id <= fans.ChannelCount; id++ {
		result.FanModes[id] = fans.ControlModeBios
		result.Curves[id] = curves.DefaultCurve()
		result.FanNames[id] = defaultFanName(id)
		result.PwmModes[id] = fans.OutputModePWM
	}
	return result
}

func defaultFanName(id int) string {
	if id == 1 {
		return "CPU Fan"
	}
	return fmt.Sprintf("Chassis Fan %d", id-1)
}

// mergeDefaults fills everything that is missing with the default value
func (s *Settings) mergeDefaults() {
	defaults := Defaults()
	if s.FanModes == nil {
		s.FanModes = defaults.FanModes
	}
	if s.Curves == nil {
		s.Curves = defaults.Curves
	}
	if s.FanNames == nil {
		s.FanNames = defaults.FanNames
	}
	if s.PwmModes == nil {
		s.PwmModes = defaults.PwmModes
	}
	if s.ManualPwm == nil {
		s.ManualPwm = defaults.ManualPwm
	}
	if s.TargetRpm == nil {
		s.TargetRpm = defaults.TargetRpm
	}
	if s.TempSources == nil {
		s.TempSources = defaults.TempSources
	}
	if s.SoftwareControl == nil {
		s.SoftwareControl = defaults.SoftwareControl
	}
}

// Clone creates a deep copy
func (s Settings) Clone() Settings {
	record := s.AutoTuneResults
	s.AutoTuneResults = nil
	result := reprint.This(s).(Settings)
	if record != nil {
		clone := record.Clone()
		result.AutoTuneResults = &clone
	}
	return result
}

func (s Settings) FanName(id int) string {
	name, ok := s.FanNames[id]
	if !ok || len(name) <= 0 {
		return defaultFanName(id)
	}
	return name
}

// Curve returns the saved curve of a channel, or the default curve
func (s Settings) Curve(id int) curves.Curve {
	curve, ok := s.Curves[id]
	if !ok || len(curve) <= 0 {
		return curves.DefaultCurve()
	}
	return curve.Copy()
}

func (s Settings) FanMode(id int) fans.ControlMode {
	mode, ok := s.FanModes[id]
	if !ok {
		return fans.ControlModeBios
	}
	return mode
}

func (s Settings) PwmMode(id int) fans.OutputMode {
	mode, ok := s.PwmModes[id]
	if !ok {
		return fans.OutputModePWM
	}
	return mode
}

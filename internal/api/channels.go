package api

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/markusressel/nctfan/internal/curves"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/settings"
	"github.com/markusressel/nctfan/internal/ui"
	"github.com/markusressel/nctfan/internal/util"
)

const (
	legacyModeAuto   = "auto"
	legacyModeManual = "manual"
)

type (
	GlobalModeRequest struct {
		Mode string `json:"mode"`
	}

	FanModeRequest struct {
		FanId int              `json:"fan_id"`
		Mode  fans.ControlMode `json:"mode"`
	}

	CurveRequest struct {
		FanId int          `json:"fan_id"`
		Curve curves.Curve `json:"curve"`
	}

	FanNameRequest struct {
		FanId int    `json:"fan_id"`
		Name  string `json:"name"`
	}

	PwmModeRequest struct {
		FanId   int             `json:"fan_id"`
		PwmMode fans.OutputMode `json:"pwm_mode"`
	}

	ManualPwmRequest struct {
		FanId int `json:"fan_id"`
		Pwm   int `json:"pwm"`
	}

	TargetRpmRequest struct {
		FanId     int `json:"fan_id"`
		TargetRpm int `json:"target_rpm"`
	}

	TempSourceRequest struct {
		FanId      int `json:"fan_id"`
		TempSource int `json:"temp_source"`
	}

	ChannelResult struct {
		Success bool `json:"success"`
		FanId   int  `json:"fan_id"`
	}
)

// setGlobalMode switches all channels to BIOS control ("auto") or manual control ("manual")
func (s *Server) setGlobalMode(c echo.Context) error {
	var request GlobalModeRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}

	var mode fans.ControlMode
	switch request.Mode {
	case legacyModeAuto:
		mode = fans.ControlModeBios
	case legacyModeManual:
		mode = fans.ControlModeManual
	default:
		return returnError(c, fmt.Errorf("%w: invalid mode '%s', use '%s' or '%s'", ErrBadRequest, request.Mode, legacyModeAuto, legacyModeManual))
	}

	saved := s.deps.Store.Snapshot()
	results := map[int]string{}
	for _, id := range util.SortedKeys(s.deps.Channels) {
		channel := s.deps.Channels[id]
		if err := channel.SetMode(mode); err != nil {
			ui.Error("%v", err)
			results[id] = err.Error()
			continue
		}
		results[id] = "ok"
		if mode == fans.ControlModeManual {
			if err := channel.SetCurve(saved.Curve(id)); err != nil {
				ui.Warning("%v", err)
			}
		}
	}

	err := s.deps.Store.Update(func(settings *settings.Settings) {
		for id := range s.deps.Channels {
			settings.FanModes[id] = mode
		}
	})
	if err != nil {
		return returnError(c, err)
	}

	return returnOk(c, map[string]interface{}{
		"success": true,
		"mode":    request.Mode,
		"hw_mode": mode,
		"results": results,
	})
}

func (s *Server) setFanMode(c echo.Context) error {
	var request FanModeRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}
	channel, err := s.channel(request.FanId)
	if err != nil {
		return returnError(c, err)
	}
	if err = channel.SetMode(request.Mode); err != nil {
		return returnError(c, err)
	}

	err = s.deps.Store.Update(func(settings *settings.Settings) {
		settings.FanModes[request.FanId] = request.Mode
	})
	if err != nil {
		return returnError(c, err)
	}

	if request.Mode == fans.ControlModeCurve {
		curve := s.deps.Store.Snapshot().Curve(request.FanId)
		if err := channel.SetCurve(curve); err != nil {
			ui.Warning("%v", err)
		}
	}

	ui.Info("Channel %d mode set to %d (%s)", request.FanId, request.Mode, request.Mode)
	return returnOk(c, map[string]interface{}{
		"success":   true,
		"fan_id":    request.FanId,
		"mode":      request.Mode,
		"mode_name": request.Mode.String(),
	})
}

// setCurve persists the curve, it is written to the chip only while the channel uses the curve mode
func (s *Server) setCurve(c echo.Context) error {
	var request CurveRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}
	channel, err := s.channel(request.FanId)
	if err != nil {
		return returnError(c, err)
	}
	if err = curves.Validate(request.Curve); err != nil {
		return returnError(c, err)
	}

	curve := request.Curve.Numbered()
	err = s.deps.Store.Update(func(settings *settings.Settings) {
		settings.Curves[request.FanId] = curve
	})
	if err != nil {
		return returnError(c, err)
	}

	applied := false
	if s.deps.Store.Snapshot().FanMode(request.FanId) == fans.ControlModeCurve {
		ui.Info("Applying curve of channel %d", request.FanId)
		if err := channel.SetCurve(curve); err != nil {
			ui.Error("%v", err)
		} else {
			applied = true
		}
	}

	return returnOk(c, map[string]interface{}{
		"success": true,
		"fan_id":  request.FanId,
		"applied": applied,
	})
}

func (s *Server) setFanName(c echo.Context) error {
	var request FanNameRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}
	if err := fans.ValidateChannelId(request.FanId); err != nil {
		return returnError(c, err)
	}

	err := s.deps.Store.Update(func(settings *settings.Settings) {
		settings.FanNames[request.FanId] = request.Name
	})
	if err != nil {
		return returnError(c, err)
	}
	return returnOk(c, map[string]interface{}{
		"success": true,
		"fan_id":  request.FanId,
		"name":    request.Name,
	})
}

func (s *Server) setPwmMode(c echo.Context) error {
	var request PwmModeRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}
	channel, err := s.channel(request.FanId)
	if err != nil {
		return returnError(c, err)
	}
	if err = channel.SetOutputMode(request.PwmMode); err != nil {
		return returnError(c, err)
	}

	err = s.deps.Store.Update(func(settings *settings.Settings) {
		settings.PwmModes[request.FanId] = request.PwmMode
	})
	if err != nil {
		return returnError(c, err)
	}
	return returnOk(c, map[string]interface{}{
		"success":  true,
		"fan_id":   request.FanId,
		"pwm_mode": request.PwmMode,
	})
}

func (s *Server) setManualPwm(c echo.Context) error {
	var request ManualPwmRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}
	channel, err := s.channel(request.FanId)
	if err != nil {
		return returnError(c, err)
	}
	if err = fans.ValidatePwm(request.Pwm); err != nil {
		return returnError(c, err)
	}
	if err = channel.SetPwm(request.Pwm); err != nil {
		return returnError(c, err)
	}

	err = s.deps.Store.Update(func(settings *settings.Settings) {
		settings.ManualPwm[request.FanId] = request.Pwm
	})
	if err != nil {
		return returnError(c, err)
	}
	return returnOk(c, map[string]interface{}{
		"success": true,
		"fan_id":  request.FanId,
		"pwm":     request.Pwm,
	})
}

func (s *Server) setTargetRpm(c echo.Context) error {
	var request TargetRpmRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}
	channel, err := s.channel(request.FanId)
	if err != nil {
		return returnError(c, err)
	}
	if err = channel.SetTargetRpm(request.TargetRpm); err != nil {
		return returnError(c, err)
	}

	err = s.deps.Store.Update(func(settings *settings.Settings) {
		settings.TargetRpm[request.FanId] = request.TargetRpm
	})
	if err != nil {
		return returnError(c, err)
	}
	return returnOk(c, map[string]interface{}{
		"success":    true,
		"fan_id":     request.FanId,
		"target_rpm": request.TargetRpm,
	})
}

func (s *Server) setTempSource(c echo.Context) error {
	var request TempSourceRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}
	channel, err := s.channel(request.FanId)
	if err != nil {
		return returnError(c, err)
	}
	if err = channel.SetTempSource(request.TempSource); err != nil {
		return returnError(c, err)
	}

	err = s.deps.Store.Update(func(settings *settings.Settings) {
		settings.TempSources[request.FanId] = request.TempSource
	})
	if err != nil {
		return returnError(c, err)
	}
	return returnOk(c, map[string]interface{}{
		"success":     true,
		"fan_id":      request.FanId,
		"temp_source": request.TempSource,
	})
}

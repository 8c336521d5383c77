package api

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/markusressel/nctfan/internal/curves"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/settings"
	"github.com/markusressel/nctfan/internal/ui"
)

type SoftwareControlRequest struct {
	FanId      int          `json:"fan_id"`
	Enabled    bool         `json:"enabled"`
	TempSource string       `json:"temp_source"`
	Curve      curves.Curve `json:"curve"`
}

// setSoftwareControl hands a channel to the software controller or takes it back.
// Enabled channels are switched to manual mode, the controller is restarted either way.
func (s *Server) setSoftwareControl(c echo.Context) error {
	var request SoftwareControlRequest
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}
	channel, err := s.channel(request.FanId)
	if err != nil {
		return returnError(c, err)
	}

	if request.Enabled {
		if len(request.TempSource) <= 0 {
			return returnError(c, fmt.Errorf("%w: temp_source required when enabling software control", ErrBadRequest))
		}
		curve := request.Curve
		if len(curve) > 0 {
			if err = curves.Validate(curve); err != nil {
				return returnError(c, err)
			}
			curve = curve.Numbered()
		} else {
			curve = s.deps.Store.Snapshot().Curve(request.FanId)
		}

		if err = channel.SetMode(fans.ControlModeManual); err != nil {
			return returnError(c, fmt.Errorf("failed to set fan mode: %w", err))
		}

		err = s.deps.Store.Update(func(current *settings.Settings) {
			current.SoftwareControl[request.FanId] = settings.SoftwareControlConfig{
				Enabled:    true,
				TempSource: request.TempSource,
				Curve:      curve,
			}
			current.FanModes[request.FanId] = fans.ControlModeManual
		})
		if err != nil {
			return returnError(c, err)
		}
		ui.Info("Software control enabled for channel %d using %s", request.FanId, request.TempSource)
	} else {
		err = s.deps.Store.Update(func(current *settings.Settings) {
			delete(current.SoftwareControl, request.FanId)
		})
		if err != nil {
			return returnError(c, err)
		}
		ui.Info("Software control disabled for channel %d", request.FanId)
	}

	if s.deps.Controller != nil {
		s.deps.Controller.Restart(s.ctx, request.FanId)
	}

	return returnOk(c, map[string]interface{}{
		"success": true,
		"fan_id":  request.FanId,
		"enabled": request.Enabled,
	})
}

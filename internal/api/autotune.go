package api

import (
	"github.com/labstack/echo/v4"
	"github.com/markusressel/nctfan/internal/autotune"
	"github.com/markusressel/nctfan/internal/persistence"
	"github.com/markusressel/nctfan/internal/ui"
)

type AutoTuneHistory struct {
	Runs         []autotune.Record               `json:"runs"`
	Calibrations map[int]persistence.Calibration `json:"calibrations"`
}

func (s *Server) startAutoTune(c echo.Context) error {
	var request autotune.Request
	if err := bind(c, &request); err != nil {
		return returnError(c, err)
	}

	softwareControl := s.deps.Store.SoftwareControl()
	for _, id := range request.ChannelIds {
		if config, ok := softwareControl[id]; ok && config.Enabled {
			ui.Warning("Channel %d is under software control, both will write its duty cycle during auto-tune", id)
		}
	}

	if err := s.deps.Engine.Start(s.ctx, request); err != nil {
		return returnError(c, err)
	}
	ui.Info("Starting auto-tune for channels %v with profile %s", request.ChannelIds, request.Profile)
	return returnOk(c, Success{Success: true, Message: "Auto-tune started"})
}

func (s *Server) getAutoTuneStatus(c echo.Context) error {
	return returnOk(c, s.deps.Engine.Status())
}

// applyAutoTune adopts the generated curves into the settings, the hardware is not touched
func (s *Server) applyAutoTune(c echo.Context) error {
	session, err := s.deps.Engine.Results()
	if err != nil {
		return returnError(c, err)
	}
	if err = s.deps.Store.ApplyCalibration(session); err != nil {
		return returnError(c, err)
	}

	if s.deps.History != nil {
		if err := s.deps.History.SaveCalibration(session.Record()); err != nil {
			ui.Warning("Unable to store calibration history: %v", err)
		}
	}

	ui.Success("Auto-tune curves applied")
	return returnOk(c, Success{Success: true, Message: "Curves applied successfully"})
}

func (s *Server) cancelAutoTune(c echo.Context) error {
	s.deps.Engine.Cancel()
	return returnOk(c, Success{Success: true, Message: "Auto-tune cancelled"})
}

func (s *Server) getAutoTuneHistory(c echo.Context) error {
	history := AutoTuneHistory{
		Runs:         []autotune.Record{},
		Calibrations: map[int]persistence.Calibration{},
	}
	if s.deps.History == nil {
		return returnOk(c, history)
	}

	runs, err := s.deps.History.LoadRuns()
	if err != nil {
		return returnError(c, err)
	}
	calibrations, err := s.deps.History.LoadCalibrations()
	if err != nil {
		return returnError(c, err)
	}
	if runs != nil {
		history.Runs = runs
	}
	history.Calibrations = calibrations
	return returnOk(c, history)
}

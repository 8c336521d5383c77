package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/markusressel/nctfan/internal/autotune"
	"github.com/markusressel/nctfan/internal/control_loop"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/markusressel/nctfan/internal/persistence"
	"github.com/markusressel/nctfan/internal/settings"
	"github.com/markusressel/nctfan/internal/ui"
)

type SoftwareController interface {
	Restart(ctx context.Context, channels ...int)
	IsRunning() bool
}

type RegulatorStates interface {
	States() map[int]control_loop.RegulatorState
}

type SensorLister func() []hwmon.TemperatureSensor

type Dependencies struct {
	Port       hwmon.Port
	Layout     hwmon.Layout
	ExtraChips []hwmon.Layout
	Channels   map[int]*fans.Channel

	Store      *settings.Store
	Controller SoftwareController
	Regulator  RegulatorStates
	Engine     *autotune.Engine
	// History is optional
	History persistence.Persistence

	Sensors SensorLister
}

type Config struct {
	Host          string
	Port          int
	BroadcastRate time.Duration
	Metrics       bool
}

// Server exposes channels, settings and auto-tune over HTTP and WebSocket
type Server struct {
	deps   Dependencies
	config Config

	// ctx outlives single requests, background work started by a request is bound to it
	ctx context.Context

	echo *echo.Echo
	hub  *Hub
}

func NewServer(ctx context.Context, deps Dependencies, config Config) *Server {
	if deps.Sensors == nil {
		deps.Sensors = func() []hwmon.TemperatureSensor {
			return nil
		}
	}
	s := &Server{
		deps:   deps,
		config: config,
		ctx:    ctx,
		echo:   CreateWebserver(),
		hub:    NewHub(HubConfig{}),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) registerRoutes() {
	e := s.echo
	if s.config.Metrics {
		e.Use(echoprometheus.NewMiddleware("nctfan"))
		e.GET("/metrics", echoprometheus.NewHandler())
	}

	e.GET("/alive", isAlive)

	group := e.Group("/api")
	group.GET("/status", s.getStatus)
	group.GET("/config", s.getConfig)
	group.GET("/available_modes", s.getAvailableModes)
	group.GET("/temp_sensors", s.getTempSensors)
	group.GET("/temp_sensors_all", s.getAllTempSensors)

	group.POST("/mode", s.setGlobalMode)
	group.POST("/fan_mode", s.setFanMode)
	group.POST("/curve", s.setCurve)
	group.POST("/fan_name", s.setFanName)
	group.POST("/pwm_mode", s.setPwmMode)
	group.POST("/manual_pwm", s.setManualPwm)
	group.POST("/target_rpm", s.setTargetRpm)
	group.POST("/temp_source", s.setTempSource)
	group.POST("/software_control", s.setSoftwareControl)

	autoTune := group.Group("/auto_tune")
	autoTune.POST("/start", s.startAutoTune)
	autoTune.GET("/status", s.getAutoTuneStatus)
	autoTune.POST("/apply", s.applyAutoTune)
	autoTune.POST("/cancel", s.cancelAutoTune)
	autoTune.GET("/history", s.getAutoTuneHistory)

	e.GET("/ws", s.handleWebsocket)
}

// Run serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	ui.Info("Starting API on %s", address)

	errs := make(chan error, 1)
	go func() {
		errs <- s.echo.Start(address)
	}()

	select {
	case err := <-errs:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		ui.Info("Stopping API...")
		timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		return s.echo.Shutdown(timeoutCtx)
	}
}

// returns an empty "ok" answer
func isAlive(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *Server) channel(id int) (*fans.Channel, error) {
	if err := fans.ValidateChannelId(id); err != nil {
		return nil, err
	}
	channel, ok := s.deps.Channels[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", fans.ErrChannelUnavailable, id)
	}
	return channel, nil
}

package internal

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/markusressel/nctfan/internal/api"
	"github.com/markusressel/nctfan/internal/autotune"
	"github.com/markusressel/nctfan/internal/configuration"
	"github.com/markusressel/nctfan/internal/control_loop"
	"github.com/markusressel/nctfan/internal/controller"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/markusressel/nctfan/internal/persistence"
	"github.com/markusressel/nctfan/internal/sensors"
	"github.com/markusressel/nctfan/internal/settings"
	"github.com/markusressel/nctfan/internal/statistics"
	"github.com/markusressel/nctfan/internal/ui"
	"github.com/markusressel/nctfan/internal/util"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
)

// Daemon holds every long living component, all of them are created once in NewDaemon
type Daemon struct {
	config configuration.Configuration

	port       hwmon.Port
	layout     hwmon.Layout
	extraChips []hwmon.Layout
	channels   map[int]*fans.Channel

	store      *settings.Store
	history    persistence.Persistence
	regulator  *control_loop.HysteresisRegulator
	controller *controller.SoftwareController
	engine     *autotune.Engine
}

// NewDaemon discovers the hardware and wires all components
func NewDaemon(config configuration.Configuration) (*Daemon, error) {
	layout, err := hwmon.FindChip(config.Hardware.BasePath, config.Hardware.ChipName)
	if err != nil {
		return nil, err
	}
	ui.Info("Using %s at %s", layout.Name, layout.Path)

	port := hwmon.NewSysfsPort(config.Hardware.IoTimeout)
	d := newDaemon(config, port, layout)

	for _, name := range config.Hardware.ExtraChipNames {
		chip, err := hwmon.FindChip(config.Hardware.BasePath, name)
		if err != nil {
			ui.Debug("Additional chip %s not found: %v", name, err)
			continue
		}
		d.extraChips = append(d.extraChips, chip)
	}
	return d, nil
}

func newDaemon(config configuration.Configuration, port hwmon.Port, layout hwmon.Layout) *Daemon {
	channels := fans.NewChannels(port, layout)

	store := settings.NewStore(config.SettingsPath)
	if err := store.Load(); err != nil {
		ui.Warning("Unable to load settings, using defaults: %v", err)
	}

	regulator := control_loop.NewHysteresisRegulator(control_loop.HysteresisConfig{
		Margin:        config.SoftwareControl.Hysteresis,
		MaxRampDown:   config.SoftwareControl.MaxRampDown,
		RiseThreshold: config.SoftwareControl.RiseThreshold,
	})

	softwareController := controller.NewSoftwareController(
		port,
		fans.AsFans(channels),
		store,
		regulator,
		controller.Config{
			TickRate:     config.SoftwareControl.TickRate,
			ErrorBackoff: config.SoftwareControl.ErrorBackoff,
		},
	)

	engine := autotune.NewEngine(port, fans.AsFans(channels), autotune.Config{
		ProfilingSamples:   config.AutoTune.ProfilingSamples,
		ProfilingInterval:  config.AutoTune.ProfilingInterval,
		SettleTime:         config.AutoTune.SettleTime,
		ModeSwitchDelay:    config.AutoTune.ModeSwitchDelay,
		MaxSafeTemperature: config.AutoTune.MaxSafeTemperature,
	})

	return &Daemon{
		config:     config,
		port:       port,
		layout:     layout,
		channels:   channels,
		store:      store,
		history:    persistence.NewPersistence(config.DbPath),
		regulator:  regulator,
		controller: softwareController,
		engine:     engine,
	}
}

func RunDaemon() {
	if os.Geteuid() != 0 {
		ui.Fatal("Fan control requires root permissions to be able to modify fan speeds, please run nctfan as root")
	}

	config := configuration.CurrentConfig
	if len(config.Logging.File) > 0 {
		logFile := ui.EnableLogFile(ui.LogFileConfig{
			Path:       config.Logging.File,
			MaxSizeMb:  config.Logging.MaxSizeMb,
			MaxBackups: config.Logging.MaxBackups,
			MaxAgeDays: config.Logging.MaxAgeDays,
		})
		defer logFile.Close()
	}

	daemon, err := NewDaemon(config)
	if err != nil {
		ui.ErrorAndNotify("Hardware not found", "Unable to find fan controller chip: %v", err)
		os.Exit(1)
	}

	if err = daemon.Run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ui.Info("Done.")
}

// Run restores the saved settings and blocks until the process is signalled
func (d *Daemon) Run() error {
	if err := d.history.Init(); err != nil {
		ui.Warning("Calibration history unavailable: %v", err)
		d.history = nil
	}

	applySavedSettings(d.channels, d.store.Snapshot())

	if d.config.Statistics.Enabled {
		d.registerCollectors()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g run.Group
	{
		// === software controller
		g.Add(func() error {
			d.controller.Start(ctx)
			<-ctx.Done()
			return nil
		}, func(err error) {
			cancel()
			d.controller.Stop()
			d.restoreShutdownMode()
			ui.Info("Software controller stopped.")
		})
	}
	{
		// === calibration engine
		g.Add(func() error {
			<-ctx.Done()
			return nil
		}, func(err error) {
			d.engine.Cancel()
		})
	}
	if d.config.Api.Enabled {
		server := d.newApiServer(ctx)

		// === api
		g.Add(func() error {
			return server.Run(ctx)
		}, func(err error) {
			cancel()
			if err != nil {
				ui.Warning("Error stopping API: %v", err)
			} else {
				ui.Info("API stopped.")
			}
		})

		// === websocket hub and status broadcaster
		g.Add(func() error {
			go server.RunBroadcaster(ctx)
			server.Hub().Run(ctx)
			return nil
		}, func(err error) {
			cancel()
		})
	}
	{
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

		g.Add(func() error {
			select {
			case <-sig:
				ui.Info("Received SIGTERM signal, exiting...")
			case <-ctx.Done():
			}
			return nil
		}, func(err error) {
			signal.Stop(sig)
			cancel()
		})
	}

	return g.Run()
}

func (d *Daemon) newApiServer(ctx context.Context) *api.Server {
	basePath := d.config.Hardware.BasePath
	return api.NewServer(ctx, api.Dependencies{
		Port:       d.port,
		Layout:     d.layout,
		ExtraChips: d.extraChips,
		Channels:   d.channels,
		Store:      d.store,
		Controller: d.controller,
		Regulator:  d.regulator,
		Engine:     d.engine,
		History:    d.history,
		Sensors: func() []hwmon.TemperatureSensor {
			result := sensors.Detect()
			if len(result) <= 0 {
				result = hwmon.ScanTemperatureSensors(d.port, basePath)
			}
			return result
		},
	}, api.Config{
		Host:          d.config.Api.Host,
		Port:          d.config.Api.Port,
		BroadcastRate: d.config.Api.BroadcastRate,
		Metrics:       d.config.Statistics.Enabled,
	})
}

func (d *Daemon) registerCollectors() {
	err := statistics.Register(prometheus.DefaultRegisterer, statistics.Sources{
		Port:       d.port,
		Layout:     d.layout,
		Channels:   fans.AsFans(d.channels),
		Controller: d.controller,
		Regulator:  d.regulator,
		Engine:     d.engine,
	})
	if err != nil {
		ui.Warning("Unable to register metrics: %v", err)
	}
}

// restoreShutdownMode hands channels that were driven by the software controller back to the chip.
// Without a configured shutdown mode the channels keep their last duty cycle.
func (d *Daemon) restoreShutdownMode() {
	if d.config.SoftwareControl.ShutdownMode == nil {
		return
	}
	mode := *d.config.SoftwareControl.ShutdownMode
	configs := d.store.SoftwareControl()
	for _, id := range util.SortedKeys(configs) {
		if !configs[id].Enabled {
			continue
		}
		channel, ok := d.channels[id]
		if !ok {
			continue
		}
		if err := channel.SetMode(mode); err != nil {
			ui.Warning("Unable to restore mode of channel %d: %v", id, err)
			continue
		}
		ui.Info("Channel %d set to %s", id, mode)
	}
}

// applySavedSettings writes the persisted channel configuration back to the chip.
// Failures are logged and the remaining values are still applied.
func applySavedSettings(channels map[int]*fans.Channel, saved settings.Settings) {
	for _, id := range util.SortedKeys(channels) {
		channel := channels[id]

		if err := channel.SetOutputMode(saved.PwmMode(id)); err != nil {
			ui.Warning("%v", err)
		}
		if source, ok := saved.TempSources[id]; ok {
			if err := channel.SetTempSource(source); err != nil {
				ui.Warning("%v", err)
			}
		}

		mode := saved.FanMode(id)
		if err := channel.SetMode(mode); err != nil {
			ui.Warning("%v", err)
			continue
		}

		switch mode {
		case fans.ControlModeCurve:
			if err := channel.SetCurve(saved.Curve(id)); err != nil {
				ui.Warning("%v", err)
			}
		case fans.ControlModeManual:
			_, software := saved.SoftwareControl[id]
			if pwm, ok := saved.ManualPwm[id]; ok && !software {
				if err := channel.SetPwm(pwm); err != nil {
					ui.Warning("%v", err)
				}
			}
		case fans.ControlModeTargetRpm:
			if rpm, ok := saved.TargetRpm[id]; ok {
				if err := channel.SetTargetRpm(rpm); err != nil {
					ui.Warning("%v", err)
				}
			}
		}
		ui.Debug("Restored channel %d in mode %s", id, mode)
	}
}

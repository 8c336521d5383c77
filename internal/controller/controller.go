package controller

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/markusressel/nctfan/internal/control_loop"
	"github.com/markusressel/nctfan/internal/curves"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/markusressel/nctfan/internal/settings"
	"github.com/markusressel/nctfan/internal/ui"
	"github.com/markusressel/nctfan/internal/util"
)

type Config struct {
	TickRate     time.Duration
	ErrorBackoff time.Duration
}

var DefaultConfig = Config{
	TickRate:     1 * time.Second,
	ErrorBackoff: 5 * time.Second,
}

// SettingsProvider supplies the software control configuration, it is queried on every tick
type SettingsProvider interface {
	SoftwareControl() map[int]settings.SoftwareControlConfig
}

type Statistics struct {
	Ticks         int64 `json:"ticks"`
	FailedTicks   int64 `json:"failedTicks"`
	ReadFailures  int64 `json:"readFailures"`
	WriteFailures int64 `json:"writeFailures"`
}

// SoftwareController drives channels from arbitrary temperature inputs
// by evaluating their curve and smoothing the result with a regulator.
type SoftwareController struct {
	port      hwmon.Port
	channels  map[int]fans.Fan
	provider  SettingsProvider
	regulator control_loop.Regulator
	config    Config

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// channels that were enabled during the last tick, only touched by Tick
	tickMu  sync.Mutex
	enabled map[int]bool

	ticks         atomic.Int64
	failedTicks   atomic.Int64
	readFailures  atomic.Int64
	writeFailures atomic.Int64
}

func NewSoftwareController(
	port hwmon.Port,
	channels map[int]fans.Fan,
	provider SettingsProvider,
	regulator control_loop.Regulator,
	config Config,
) *SoftwareController {
	return &SoftwareController{
		port:      port,
		channels:  channels,
		provider:  provider,
		regulator: regulator,
		config:    config,
		enabled:   map[int]bool{},
	}
}

// Start launches the control loop, calling it while the loop is running does nothing
func (c *SoftwareController) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	ui.Info("Starting software fan control")
	go c.loop(loopCtx, done)
}

// Stop ends the control loop and waits for it to exit. Fans keep their last duty cycle.
func (c *SoftwareController) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	ui.Info("Software fan control stopped")
}

// Restart stops the loop, forgets the regulator state of the given channels and starts again.
// All other channels keep their state and continue ramping from their last output.
func (c *SoftwareController) Restart(ctx context.Context, channels ...int) {
	c.Stop()
	for _, id := range channels {
		c.regulator.Reset(id)
	}
	c.Start(ctx)
}

func (c *SoftwareController) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *SoftwareController) GetStatistics() Statistics {
	return Statistics{
		Ticks:         c.ticks.Load(),
		FailedTicks:   c.failedTicks.Load(),
		ReadFailures:  c.readFailures.Load(),
		WriteFailures: c.writeFailures.Load(),
	}
}

func (c *SoftwareController) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			return
		}

		delay := c.config.TickRate
		if err := c.safeTick(); err != nil {
			c.failedTicks.Add(1)
			ui.Error("Software control tick failed: %v", err)
			delay = c.config.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (c *SoftwareController) safeTick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			ui.Debug("%s", debug.Stack())
			err = fmt.Errorf("recovered from panic: %v", r)
		}
	}()
	c.Tick()
	return nil
}

// Tick runs a single control iteration over all channels in ascending order
func (c *SoftwareController) Tick() {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()
	c.ticks.Add(1)

	configs := c.provider.SoftwareControl()
	active := map[int]bool{}
	for _, id := range util.SortedKeys(configs) {
		config := configs[id]
		if !config.Enabled {
			continue
		}
		fan, ok := c.channels[id]
		if !ok {
			continue
		}
		active[id] = true
		c.control(id, fan, config)
	}

	for id := range c.enabled {
		if !active[id] {
			ui.Debug("Software control of channel %d disabled, resetting state", id)
			c.regulator.Reset(id)
		}
	}
	c.enabled = active
}

func (c *SoftwareController) control(id int, fan fans.Fan, config settings.SoftwareControlConfig) {
	if len(config.TempSource) <= 0 || len(config.Curve) <= 0 {
		return
	}

	temperature, err := hwmon.ReadTemperature(c.port, config.TempSource)
	if err != nil {
		c.readFailures.Add(1)
		ui.Warning("Channel %d: cannot read temperature from %s: %v", id, config.TempSource, err)
		return
	}

	target := curves.Evaluate(temperature, config.Curve)
	output := c.regulator.Regulate(id, temperature, target)
	if err := fan.SetPwm(output); err != nil {
		c.writeFailures.Add(1)
		ui.Warning("Channel %d: %v", id, err)
		return
	}
	ui.Debug("Channel %d: %.1f°C -> target %d, applied %d", id, temperature, target, output)
}

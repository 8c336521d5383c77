package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/markusressel/nctfan/internal/control_loop"
	"github.com/markusressel/nctfan/internal/curves"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/markusressel/nctfan/internal/settings"
	"github.com/markusressel/nctfan/internal/testingutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cpuTemp  = "/sys/class/hwmon/hwmon0/temp1_input"
	caseTemp = "/sys/class/hwmon/hwmon0/temp2_input"
)

var layout = hwmon.NewLayout("/sys/class/hwmon/hwmon2", hwmon.DefaultChipName)

type mockProvider struct {
	mu      sync.Mutex
	configs map[int]settings.SoftwareControlConfig
	panics  bool
}

func (p *mockProvider) SoftwareControl() map[int]settings.SoftwareControlConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panics {
		panic("settings unavailable")
	}
	result := map[int]settings.SoftwareControlConfig{}
	for id, config := range p.configs {
		result[id] = config
	}
	return result
}

func (p *mockProvider) set(id int, config settings.SoftwareControlConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configs[id] = config
}

func enabled(source string) settings.SoftwareControlConfig {
	return settings.SoftwareControlConfig{
		Enabled:    true,
		TempSource: source,
		Curve:      curves.DefaultCurve(),
	}
}

func createController(config Config) (*SoftwareController, *testingutils.MockPort, *mockProvider) {
	port := testingutils.NewMockPort()
	provider := &mockProvider{configs: map[int]settings.SoftwareControlConfig{}}
	regulator := control_loop.NewHysteresisRegulator(control_loop.DefaultHysteresisConfig)
	channels := fans.AsFans(fans.NewChannels(port, layout))
	return NewSoftwareController(port, channels, provider, regulator, config), port, provider
}

func TestSoftwareController_Tick_AppliesCurve(t *testing.T) {
	// GIVEN
	c, port, provider := createController(DefaultConfig)
	port.Set(cpuTemp, 45000)
	provider.set(1, enabled(cpuTemp))

	// WHEN
	c.Tick()

	// THEN
	assert.Equal(t, []int{100}, port.WritesTo(layout.Pwm(1)))
	assert.Equal(t, int64(1), c.GetStatistics().Ticks)
}

func TestSoftwareController_Tick_AscendingChannelOrder(t *testing.T) {
	// GIVEN
	c, port, provider := createController(DefaultConfig)
	port.Set(cpuTemp, 55000)
	provider.set(4, enabled(cpuTemp))
	provider.set(2, enabled(cpuTemp))
	provider.set(3, enabled(cpuTemp))

	// WHEN
	c.Tick()

	// THEN
	var paths []string
	for _, w := range port.Writes() {
		paths = append(paths, w.Path)
	}
	assert.Equal(t, []string{layout.Pwm(2), layout.Pwm(3), layout.Pwm(4)}, paths)
}

func TestSoftwareController_Tick_SkipsIncompleteConfig(t *testing.T) {
	// GIVEN
	c, port, provider := createController(DefaultConfig)
	port.Set(cpuTemp, 55000)
	provider.set(1, settings.SoftwareControlConfig{Enabled: true, Curve: curves.DefaultCurve()})
	provider.set(2, settings.SoftwareControlConfig{Enabled: true, TempSource: cpuTemp})
	provider.set(3, settings.SoftwareControlConfig{Enabled: false, TempSource: cpuTemp, Curve: curves.DefaultCurve()})
	provider.set(9, enabled(cpuTemp))

	// WHEN
	c.Tick()

	// THEN
	assert.Empty(t, port.Writes())
	assert.Equal(t, int64(0), c.GetStatistics().ReadFailures)
}

func TestSoftwareController_Tick_ReadFailureSkipsChannel(t *testing.T) {
	// GIVEN
	c, port, provider := createController(DefaultConfig)
	port.FailRead(cpuTemp, errors.New("no such device"))
	port.Set(caseTemp, 45000)
	provider.set(1, enabled(cpuTemp))
	provider.set(2, enabled(caseTemp))

	// WHEN
	c.Tick()

	// THEN
	assert.Empty(t, port.WritesTo(layout.Pwm(1)))
	assert.Equal(t, []int{100}, port.WritesTo(layout.Pwm(2)))
	assert.Equal(t, int64(1), c.GetStatistics().ReadFailures)
}

func TestSoftwareController_Tick_WriteFailureContinues(t *testing.T) {
	// GIVEN
	c, port, provider := createController(DefaultConfig)
	port.Set(cpuTemp, 55000)
	port.FailWrite(layout.Pwm(1), errors.New("permission denied"))
	provider.set(1, enabled(cpuTemp))
	provider.set(2, enabled(cpuTemp))

	// WHEN
	c.Tick()

	// THEN
	assert.Equal(t, []int{150}, port.WritesTo(layout.Pwm(2)))
	assert.Equal(t, int64(1), c.GetStatistics().WriteFailures)
}

func TestSoftwareController_Tick_RampsDownGradually(t *testing.T) {
	// GIVEN
	c, port, provider := createController(DefaultConfig)
	provider.set(1, enabled(cpuTemp))
	port.Set(cpuTemp, 55000)
	c.Tick()

	// WHEN
	port.Set(cpuTemp, 45000)
	c.Tick()
	c.Tick()

	// THEN
	assert.Equal(t, []int{150, 145, 140}, port.WritesTo(layout.Pwm(1)))
}

func TestSoftwareController_Tick_DisablingResetsState(t *testing.T) {
	// GIVEN
	c, port, provider := createController(DefaultConfig)
	provider.set(1, enabled(cpuTemp))
	port.Set(cpuTemp, 55000)
	c.Tick()

	// WHEN
	provider.set(1, settings.SoftwareControlConfig{Enabled: false})
	c.Tick()
	port.Set(cpuTemp, 45000)
	provider.set(1, enabled(cpuTemp))
	c.Tick()

	// THEN
	assert.Equal(t, []int{150, 100}, port.WritesTo(layout.Pwm(1)))
}

func TestSoftwareController_StartStop(t *testing.T) {
	// GIVEN
	c, port, provider := createController(Config{TickRate: 5 * time.Millisecond, ErrorBackoff: 5 * time.Millisecond})
	port.Set(cpuTemp, 45000)
	provider.set(1, enabled(cpuTemp))

	// WHEN
	c.Start(context.Background())
	c.Start(context.Background())

	// THEN
	assert.True(t, c.IsRunning())
	assert.Eventually(t, func() bool {
		return len(port.WritesTo(layout.Pwm(1))) >= 3
	}, time.Second, time.Millisecond)

	c.Stop()
	assert.False(t, c.IsRunning())
	count := len(port.Writes())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, count, len(port.Writes()))
}

func TestSoftwareController_StopsWithParentContext(t *testing.T) {
	// GIVEN
	c, _, _ := createController(Config{TickRate: 5 * time.Millisecond, ErrorBackoff: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	// WHEN
	cancel()

	// THEN
	assert.Eventually(t, func() bool {
		ticks := c.GetStatistics().Ticks
		time.Sleep(15 * time.Millisecond)
		return ticks == c.GetStatistics().Ticks
	}, time.Second, time.Millisecond)
	c.Stop()
	assert.False(t, c.IsRunning())
}

func TestSoftwareController_RecoversFromPanic(t *testing.T) {
	// GIVEN
	c, _, provider := createController(Config{TickRate: time.Millisecond, ErrorBackoff: time.Millisecond})
	provider.panics = true

	// WHEN
	c.Start(context.Background())
	defer c.Stop()

	// THEN
	assert.Eventually(t, func() bool {
		return c.GetStatistics().FailedTicks >= 2
	}, time.Second, time.Millisecond)
}

func TestSoftwareController_Restart_ResetsGivenChannel(t *testing.T) {
	// GIVEN
	c, port, provider := createController(Config{TickRate: time.Hour, ErrorBackoff: time.Hour})
	provider.set(1, enabled(cpuTemp))
	port.Set(cpuTemp, 55000)
	c.Start(context.Background())
	require.Eventually(t, func() bool {
		return len(port.WritesTo(layout.Pwm(1))) == 1
	}, time.Second, time.Millisecond)

	// WHEN
	port.Set(cpuTemp, 45000)
	c.Restart(context.Background(), 1)
	defer c.Stop()

	// THEN
	require.Eventually(t, func() bool {
		return len(port.WritesTo(layout.Pwm(1))) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, []int{150, 100}, port.WritesTo(layout.Pwm(1)))
}

func TestSoftwareController_Restart_KeepsOtherChannelsRamping(t *testing.T) {
	// GIVEN
	c, port, provider := createController(Config{TickRate: time.Hour, ErrorBackoff: time.Hour})
	provider.set(2, enabled(caseTemp))
	port.Set(caseTemp, 55000)
	c.Tick()
	port.Set(caseTemp, 50000)
	c.Tick()
	require.Equal(t, []int{150, 145}, port.WritesTo(layout.Pwm(2)))

	// WHEN
	provider.set(1, enabled(cpuTemp))
	port.Set(cpuTemp, 45000)
	port.Set(caseTemp, 49000)
	c.Restart(context.Background(), 1)
	defer c.Stop()

	// THEN
	require.Eventually(t, func() bool {
		return len(port.WritesTo(layout.Pwm(2))) == 3
	}, time.Second, time.Millisecond)
	assert.Equal(t, []int{150, 145, 140}, port.WritesTo(layout.Pwm(2)))
	assert.Equal(t, []int{100}, port.WritesTo(layout.Pwm(1)))
}

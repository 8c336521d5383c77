package control_loop

import (
	"strconv"

	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/util"
	cmap "github.com/orcaman/concurrent-map/v2"
)

type HysteresisConfig struct {
	// Margin is the temperature drop in °C that has to be exceeded before the output follows a lower target
	Margin float64
	// MaxRampDown limits how much the output may decrease per call
	MaxRampDown int
	// RiseThreshold is the temperature increase in °C that counts as rising, smaller changes are noise
	RiseThreshold float64
}

var DefaultHysteresisConfig = HysteresisConfig{
	Margin:        2.0,
	MaxRampDown:   5,
	RiseThreshold: 0.5,
}

type RegulatorState struct {
	LastOutput      int     `json:"lastOutput"`
	LastTemperature float64 `json:"lastTemperature"`
}

// HysteresisRegulator speeds fans up immediately when it gets warmer
// and slows them down gradually once it got noticeably cooler.
type HysteresisRegulator struct {
	config HysteresisConfig
	states cmap.ConcurrentMap[string, RegulatorState]
}

func NewHysteresisRegulator(config HysteresisConfig) *HysteresisRegulator {
	return &HysteresisRegulator{
		config: config,
		states: cmap.New[RegulatorState](),
	}
}

func key(channel int) string {
	return strconv.Itoa(channel)
}

func (r *HysteresisRegulator) Regulate(channel int, temperature float64, target int) int {
	state, ok := r.states.Get(key(channel))
	if !ok {
		state = RegulatorState{
			LastOutput:      target,
			LastTemperature: temperature,
		}
	}

	var output int
	switch {
	case temperature > state.LastTemperature+r.config.RiseThreshold:
		output = target
	case temperature < state.LastTemperature-r.config.Margin:
		output = r.rampDown(state.LastOutput, target)
	default:
		if target > state.LastOutput {
			output = target
		} else {
			output = r.rampDown(state.LastOutput, target)
		}
	}

	output = util.Coerce(output, fans.MinPwmValue, fans.MaxPwmValue)
	r.states.Set(key(channel), RegulatorState{
		LastOutput:      output,
		LastTemperature: temperature,
	})
	return output
}

// rampDown approaches a lower target by at most MaxRampDown, higher targets are adopted as is
func (r *HysteresisRegulator) rampDown(last int, target int) int {
	if target >= last {
		return target
	}
	return max(target, last-r.config.MaxRampDown)
}

func (r *HysteresisRegulator) Reset(channel int) {
	r.states.Remove(key(channel))
}

func (r *HysteresisRegulator) ResetAll() {
	r.states.Clear()
}

func (r *HysteresisRegulator) State(channel int) (RegulatorState, bool) {
	return r.states.Get(key(channel))
}

// States returns a snapshot of all channel states
func (r *HysteresisRegulator) States() map[int]RegulatorState {
	result := map[int]RegulatorState{}
	for k, v := range r.states.Items() {
		channel, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		result[channel] = v
	}
	return result
}

package curves

import (
	"errors"
	"fmt"
	"sort"

	"github.com/markusressel/nctfan/internal/util"
)

const (
	PointCount = 5

	MinPwmValue = 0
	MaxPwmValue = 255

	MinTemperature = 0.0
	MaxTemperature = 150.0

	// NeutralPwm is returned for curves with less than two points
	NeutralPwm = 128
)

var ErrInvalidCurve = errors.New("invalid curve")

// Point maps a temperature in °C to a duty cycle in [0..255]
type Point struct {
	Point int     `json:"point,omitempty"`
	Temp  float64 `json:"temp"`
	Pwm   int     `json:"pwm"`
}

type Curve []Point

// DefaultCurve is used for every channel that has never been configured
func DefaultCurve() Curve {
	return Curve{
		{Point: 1, Temp: 30, Pwm: 50},
		{Point: 2, Temp: 40, Pwm: 80},
		{Point: 3, Temp: 50, Pwm: 120},
		{Point: 4, Temp: 60, Pwm: 180},
		{Point: 5, Temp: 70, Pwm: 255},
	}
}

// Copy returns an independent copy of the curve
func (c Curve) Copy() Curve {
	if c == nil {
		return nil
	}
	result := make(Curve, len(c))
	copy(result, c)
	return result
}

// Numbered returns a copy where every point carries its 1-based position
func (c Curve) Numbered() Curve {
	result := c.Copy()
	for i := range result {
		result[i].Point = i + 1
	}
	return result
}

// Sorted returns a copy ordered by ascending temperature
func (c Curve) Sorted() Curve {
	result := c.Copy()
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Temp < result[j].Temp
	})
	return result
}

// Evaluate calculates the duty cycle for the given temperature by linear interpolation
// over the points sorted by temperature.
// Below the first point the first duty is used, above the last point the last duty.
func Evaluate(temperature float64, curve Curve) int {
	if len(curve) < 2 {
		return NeutralPwm
	}
	curve = curve.Sorted()

	if temperature <= curve[0].Temp {
		return util.Coerce(curve[0].Pwm, MinPwmValue, MaxPwmValue)
	}
	last := curve[len(curve)-1]
	if temperature >= last.Temp {
		return util.Coerce(last.Pwm, MinPwmValue, MaxPwmValue)
	}

	for i := 0; i < len(curve)-1; i++ {
		current := curve[i]
		next := curve[i+1]
		if current.Temp <= temperature && temperature <= next.Temp {
			if next.Temp == current.Temp {
				return util.Coerce(current.Pwm, MinPwmValue, MaxPwmValue)
			}
			ratio := util.Ratio(temperature, current.Temp, next.Temp)
			value := int(float64(current.Pwm) + ratio*float64(next.Pwm-current.Pwm))
			return util.Coerce(value, MinPwmValue, MaxPwmValue)
		}
	}

	return NeutralPwm
}

// Validate checks that a curve can be written to the firmware:
// exactly five points, temperatures in [0..150] °C, duty cycles in [0..255]
// and both non-decreasing from point to point.
func Validate(curve Curve) error {
	if len(curve) != PointCount {
		return fmt.Errorf("%w: expected %d points, got %d", ErrInvalidCurve, PointCount, len(curve))
	}

	for i, point := range curve {
		if point.Temp < MinTemperature || point.Temp > MaxTemperature {
			return fmt.Errorf("%w: point %d temperature %.1f out of range [%.0f..%.0f]", ErrInvalidCurve, i+1, point.Temp, MinTemperature, MaxTemperature)
		}
		if point.Pwm < MinPwmValue || point.Pwm > MaxPwmValue {
			return fmt.Errorf("%w: point %d pwm %d out of range [%d..%d]", ErrInvalidCurve, i+1, point.Pwm, MinPwmValue, MaxPwmValue)
		}
		if i == 0 {
			continue
		}
		previous := curve[i-1]
		if point.Temp < previous.Temp {
			return fmt.Errorf("%w: point %d temperature %.1f is lower than point %d", ErrInvalidCurve, i+1, point.Temp, i)
		}
		if point.Pwm < previous.Pwm {
			return fmt.Errorf("%w: point %d pwm %d is lower than point %d", ErrInvalidCurve, i+1, point.Pwm, i)
		}
	}

	return nil
}

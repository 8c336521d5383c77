package autotune

import (
	"github.com/markusressel/nctfan/internal/curves"
	"github.com/markusressel/nctfan/internal/util"
)

const (
	ProfileSilent      = "silent"
	ProfileBalanced    = "balanced"
	ProfilePerformance = "performance"

	DefaultProfile = ProfileBalanced

	DefaultMaxSafeTemperature = 80.0

	// lowest duty cycle of the first generated curve point
	minimumStartPwm = 50
)

// Profile controls how aggressive a generated curve is
type Profile struct {
	Name string `json:"name"`
	// TempMargin is the headroom in °C the profile is meant to keep
	TempMargin float64 `json:"temp_margin"`
	// MinPwmFraction scales the start threshold into the first curve point
	MinPwmFraction float64 `json:"min_pwm_percent"`
	// Aggression scales the duty cycle of the middle curve points
	Aggression float64 `json:"curve_aggression"`
}

var Profiles = map[string]Profile{
	ProfileSilent: {
		Name:           ProfileSilent,
		TempMargin:     10,
		MinPwmFraction: 0.3,
		Aggression:     0.7,
	},
	ProfileBalanced: {
		Name:           ProfileBalanced,
		TempMargin:     5,
		MinPwmFraction: 0.4,
		Aggression:     1.0,
	},
	ProfilePerformance: {
		Name:           ProfilePerformance,
		TempMargin:     0,
		MinPwmFraction: 0.5,
		Aggression:     1.3,
	},
}

// LookupProfile resolves a profile by name, the empty name is the default profile
func LookupProfile(name string) (Profile, bool) {
	if len(name) <= 0 {
		name = DefaultProfile
	}
	profile, ok := Profiles[name]
	return profile, ok
}

// ProfileOrDefault resolves a profile by name and falls back to the default profile
func ProfileOrDefault(name string) Profile {
	profile, ok := LookupProfile(name)
	if !ok {
		return Profiles[DefaultProfile]
	}
	return profile
}

var (
	middlePointFractions = []float64{0.25, 0.50, 0.75}
	middlePointDuties    = []float64{0.4, 0.6, 0.8}
)

// GenerateCurve synthesizes a five point curve starting at the idle temperature
// and reaching full speed at maxSafeTemperature.
func GenerateCurve(result CalibrationResult, profile Profile, temperatures TemperatureProfile, maxSafeTemperature float64) curves.Curve {
	idle := min(temperatures.Idle, maxSafeTemperature)
	temperatureRange := maxSafeTemperature - idle

	curve := curves.Curve{
		{
			Point: 1,
			Temp:  util.RoundTo(idle, 1),
			Pwm:   max(int(float64(result.StartPwm)*profile.MinPwmFraction), minimumStartPwm),
		},
	}
	for i, fraction := range middlePointFractions {
		curve = append(curve, curves.Point{
			Point: i + 2,
			Temp:  util.RoundTo(idle+temperatureRange*fraction, 1),
			Pwm:   min(int(curves.MaxPwmValue*middlePointDuties[i]*profile.Aggression), curves.MaxPwmValue),
		})
	}
	curve = append(curve, curves.Point{
		Point: 5,
		Temp:  util.RoundTo(maxSafeTemperature, 1),
		Pwm:   curves.MaxPwmValue,
	})

	return enforceNonDecreasingPwm(curve)
}

// enforceNonDecreasingPwm lifts points that would otherwise be lower than their predecessor
func enforceNonDecreasingPwm(curve curves.Curve) curves.Curve {
	for i := 1; i < len(curve); i++ {
		if curve[i].Pwm < curve[i-1].Pwm {
			curve[i].Pwm = curve[i-1].Pwm
		}
	}
	return curve
}

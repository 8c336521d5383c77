package fans

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/markusressel/nctfan/internal/hwmon"
)

const (
	MaxPwmValue = 255
	MinPwmValue = 0

	ChannelCount = 5

	MinTempSource = hwmon.MinTempSource
	MaxTempSource = hwmon.MaxTempSource

	MaxTargetRpm = 10000
)

var (
	ErrInvalidChannel     = errors.New("invalid fan channel")
	ErrUnsupportedMode    = errors.New("unsupported control mode")
	ErrInvalidPwm         = errors.New("pwm value out of range")
	ErrInvalidOutputMode  = errors.New("invalid output mode")
	ErrInvalidTempSource  = errors.New("invalid temperature source")
	ErrInvalidTargetRpm   = errors.New("target rpm out of range")
	ErrChannelUnavailable = errors.New("fan channel not available")
)

type ControlMode int

const (
	// ControlModeOff stops controlling the fan, the chip drives it at full speed
	ControlModeOff ControlMode = 0
	// ControlModeManual holds the fan at a fixed duty cycle
	ControlModeManual ControlMode = 1
	// ControlModeCurve lets the chip follow its five point temperature curve
	ControlModeCurve ControlMode = 2
	// ControlModeTargetRpm lets the chip regulate towards a target speed
	ControlModeTargetRpm ControlMode = 3
	// ControlModeBios hands control back to the mainboard firmware
	ControlModeBios ControlMode = 5
)

var controlModeNames = map[ControlMode]string{
	ControlModeOff:       "Off",
	ControlModeManual:    "Manual",
	ControlModeCurve:     "Curve",
	ControlModeTargetRpm: "Target RPM",
	ControlModeBios:      "BIOS",
}

// short names accepted on the command line and in configuration files
var controlModeAliases = map[string]ControlMode{
	"off":    ControlModeOff,
	"manual": ControlModeManual,
	"curve":  ControlModeCurve,
	"rpm":    ControlModeTargetRpm,
	"bios":   ControlModeBios,
}

var controlModeDescriptions = map[ControlMode]string{
	ControlModeOff:       "Full speed",
	ControlModeManual:    "Fixed PWM value",
	ControlModeCurve:     "Automatic temperature curve",
	ControlModeTargetRpm: "Maintain target RPM",
	ControlModeBios:      "Hardware default control",
}

// SupportedModes lists all selectable control modes in ascending order
func SupportedModes() []ControlMode {
	return []ControlMode{ControlModeOff, ControlModeManual, ControlModeCurve, ControlModeTargetRpm, ControlModeBios}
}

func (m ControlMode) IsValid() bool {
	_, ok := controlModeNames[m]
	return ok
}

func (m ControlMode) String() string {
	name, ok := controlModeNames[m]
	if !ok {
		return fmt.Sprintf("Unknown (%d)", int(m))
	}
	return name
}

func (m ControlMode) Description() string {
	return controlModeDescriptions[m]
}

// ParseControlMode accepts either the numeric value or the (case-insensitive) name of a mode
func ParseControlMode(text string) (ControlMode, error) {
	text = strings.TrimSpace(text)
	if value, err := strconv.Atoi(text); err == nil {
		mode := ControlMode(value)
		if !mode.IsValid() {
			return mode, fmt.Errorf("%w: %d", ErrUnsupportedMode, value)
		}
		return mode, nil
	}
	if mode, ok := controlModeAliases[strings.ToLower(text)]; ok {
		return mode, nil
	}
	for mode, name := range controlModeNames {
		if strings.EqualFold(name, text) || strings.EqualFold(strings.ReplaceAll(name, " ", "-"), text) {
			return mode, nil
		}
	}
	return -1, fmt.Errorf("%w: '%s'", ErrUnsupportedMode, text)
}

// OutputMode selects how the fan header drives the fan
type OutputMode int

const (
	OutputModeDC  OutputMode = 0
	OutputModePWM OutputMode = 1
)

func (m OutputMode) IsValid() bool {
	return m == OutputModeDC || m == OutputModePWM
}

func (m OutputMode) String() string {
	switch m {
	case OutputModeDC:
		return "DC"
	case OutputModePWM:
		return "PWM"
	default:
		return fmt.Sprintf("Unknown (%d)", int(m))
	}
}

// ValidateChannelId checks that id addresses one of the channels of the chip
func ValidateChannelId(id int) error {
	if id < 1 || id > ChannelCount {
		return fmt.Errorf("%w: %d, must be in [1..%d]", ErrInvalidChannel, id, ChannelCount)
	}
	return nil
}

func ValidatePwm(pwm int) error {
	if pwm < MinPwmValue || pwm > MaxPwmValue {
		return fmt.Errorf("%w: %d, must be in [%d..%d]", ErrInvalidPwm, pwm, MinPwmValue, MaxPwmValue)
	}
	return nil
}

func ValidateTargetRpm(rpm int) error {
	if rpm < 0 || rpm > MaxTargetRpm {
		return fmt.Errorf("%w: %d, must be in [0..%d]", ErrInvalidTargetRpm, rpm, MaxTargetRpm)
	}
	return nil
}

func ValidateTempSource(source int) error {
	if source < MinTempSource || source > MaxTempSource {
		return fmt.Errorf("%w: %d, must be in [%d..%d]", ErrInvalidTempSource, source, MinTempSource, MaxTempSource)
	}
	return nil
}

// Fan is a single controllable fan header
type Fan interface {
	GetId() int

	// GetPwm returns the current duty cycle in [0..255]
	GetPwm() (int, error)
	// SetPwm sets the duty cycle, values outside of [0..255] are clamped
	SetPwm(pwm int) error

	// GetRpm returns the current tachometer reading
	GetRpm() (int, error)

	GetMode() (ControlMode, error)
	SetMode(mode ControlMode) error
}

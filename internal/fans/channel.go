package fans

import (
	"errors"
	"fmt"
	"math"

	"github.com/markusressel/nctfan/internal/curves"
	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/markusressel/nctfan/internal/ui"
	"github.com/markusressel/nctfan/internal/util"
)

// Channel is one fan header of the Super I/O chip
type Channel struct {
	Id     int
	port   hwmon.Port
	layout hwmon.Layout
}

type CurvePointStatus struct {
	Point      int     `json:"point"`
	Temp       float64 `json:"temp"`
	Pwm        int     `json:"pwm"`
	PwmPercent float64 `json:"pwm_percent"`
}

type ChannelStatus struct {
	Id         int                `json:"id"`
	Name       string             `json:"name"`
	Rpm        int                `json:"rpm"`
	Pwm        int                `json:"pwm"`
	PwmPercent float64            `json:"pwm_percent"`
	Mode       ControlMode        `json:"mode"`
	ModeName   string             `json:"mode_name"`
	Curve      []CurvePointStatus `json:"curve"`
}

func NewChannel(id int, port hwmon.Port, layout hwmon.Layout) (*Channel, error) {
	if err := ValidateChannelId(id); err != nil {
		return nil, err
	}
	return &Channel{
		Id:     id,
		port:   port,
		layout: layout,
	}, nil
}

// NewChannels creates all channels of the chip, keyed by their id
func NewChannels(port hwmon.Port, layout hwmon.Layout) map[int]*Channel {
	result := map[int]*Channel{}
	for id := 1; id <= ChannelCount; id++ {
		channel, _ := NewChannel(id, port, layout)
		result[id] = channel
	}
	return result
}

// AsFans exposes channels through the Fan interface
func AsFans(channels map[int]*Channel) map[int]Fan {
	result := make(map[int]Fan, len(channels))
	for id, channel := range channels {
		result[id] = channel
	}
	return result
}

func (c *Channel) GetId() int {
	return c.Id
}

func (c *Channel) GetPwm() (int, error) {
	return c.port.ReadValue(c.layout.Pwm(c.Id))
}

func (c *Channel) SetPwm(pwm int) error {
	pwm = util.Coerce(pwm, MinPwmValue, MaxPwmValue)
	err := c.port.WriteValue(c.layout.Pwm(c.Id), pwm)
	if err != nil {
		return fmt.Errorf("channel %d: setting pwm to %d: %w", c.Id, pwm, err)
	}
	return nil
}

func (c *Channel) GetRpm() (int, error) {
	return c.port.ReadValue(c.layout.FanInput(c.Id))
}

func (c *Channel) GetMode() (ControlMode, error) {
	value, err := c.port.ReadValue(c.layout.PwmEnable(c.Id))
	if err != nil {
		return ControlModeBios, err
	}
	return ControlMode(value), nil
}

func (c *Channel) SetMode(mode ControlMode) error {
	if !mode.IsValid() {
		return fmt.Errorf("channel %d: %w: %d", c.Id, ErrUnsupportedMode, int(mode))
	}
	err := c.port.WriteValue(c.layout.PwmEnable(c.Id), int(mode))
	if err != nil {
		return fmt.Errorf("channel %d: setting mode to %s: %w", c.Id, mode, err)
	}
	return nil
}

func (c *Channel) SetOutputMode(mode OutputMode) error {
	if !mode.IsValid() {
		return fmt.Errorf("channel %d: %w: %d", c.Id, ErrInvalidOutputMode, int(mode))
	}
	err := c.port.WriteValue(c.layout.PwmMode(c.Id), int(mode))
	if err != nil {
		return fmt.Errorf("channel %d: setting output mode to %s: %w", c.Id, mode, err)
	}
	return nil
}

func (c *Channel) SetTargetRpm(rpm int) error {
	if err := ValidateTargetRpm(rpm); err != nil {
		return err
	}
	err := c.port.WriteValue(c.layout.FanTarget(c.Id), rpm)
	if err != nil {
		return fmt.Errorf("channel %d: setting target rpm to %d: %w", c.Id, rpm, err)
	}
	return nil
}

func (c *Channel) SetTempSource(source int) error {
	if err := ValidateTempSource(source); err != nil {
		return err
	}
	err := c.port.WriteValue(c.layout.TempSelect(c.Id), source)
	if err != nil {
		return fmt.Errorf("channel %d: setting temperature source to %d: %w", c.Id, source, err)
	}
	return nil
}

// GetCurve reads the firmware curve. Points that cannot be read are skipped.
func (c *Channel) GetCurve() (curves.Curve, error) {
	var result curves.Curve
	var errs []error
	for point := 1; point <= curves.PointCount; point++ {
		temp, err := hwmon.ReadTemperature(c.port, c.layout.AutoPointTemp(c.Id, point))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pwm, err := c.port.ReadValue(c.layout.AutoPointPwm(c.Id, point))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result = append(result, curves.Point{Point: point, Temp: temp, Pwm: pwm})
	}
	if len(result) <= 0 && len(errs) > 0 {
		return nil, fmt.Errorf("channel %d: reading curve: %w", c.Id, errors.Join(errs...))
	}
	return result, nil
}

// SetCurve writes all points of the curve to the firmware.
// Every point is attempted even if an earlier one fails.
func (c *Channel) SetCurve(curve curves.Curve) error {
	var errs []error
	for i, point := range curve {
		index := i + 1
		temp := int(math.Round(point.Temp * 1000))
		if err := c.port.WriteValue(c.layout.AutoPointTemp(c.Id, index), temp); err != nil {
			errs = append(errs, err)
		}
		pwm := util.Coerce(point.Pwm, MinPwmValue, MaxPwmValue)
		if err := c.port.WriteValue(c.layout.AutoPointPwm(c.Id, index), pwm); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("channel %d: writing curve: %w", c.Id, errors.Join(errs...))
	}
	return nil
}

// Status reads a best effort snapshot of the channel, unreadable values fall back to defaults
func (c *Channel) Status(name string) ChannelStatus {
	rpm, err := c.GetRpm()
	if err != nil {
		ui.Debug("Unable to read rpm of channel %d: %v", c.Id, err)
		rpm = 0
	}
	pwm, err := c.GetPwm()
	if err != nil {
		ui.Debug("Unable to read pwm of channel %d: %v", c.Id, err)
		pwm = 0
	}
	mode, err := c.GetMode()
	if err != nil {
		ui.Debug("Unable to read mode of channel %d: %v", c.Id, err)
	}

	curve, _ := c.GetCurve()
	points := make([]CurvePointStatus, 0, len(curve))
	for _, point := range curve {
		points = append(points, CurvePointStatus{
			Point:      point.Point,
			Temp:       point.Temp,
			Pwm:        point.Pwm,
			PwmPercent: util.Percentage(point.Pwm, MaxPwmValue),
		})
	}

	return ChannelStatus{
		Id:         c.Id,
		Name:       name,
		Rpm:        rpm,
		Pwm:        pwm,
		PwmPercent: util.Percentage(pwm, MaxPwmValue),
		Mode:       mode,
		ModeName:   mode.String(),
		Curve:      points,
	}
}

package fans

import (
	"errors"
	"testing"

	"github.com/markusressel/nctfan/internal/curves"
	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/markusressel/nctfan/internal/testingutils"
	"github.com/stretchr/testify/assert"
)

var layout = hwmon.NewLayout("/sys/class/hwmon/hwmon2", hwmon.DefaultChipName)

func createChannel(t *testing.T, id int) (*Channel, *testingutils.MockPort) {
	port := testingutils.NewMockPort()
	channel, err := NewChannel(id, port, layout)
	assert.NoError(t, err)
	return channel, port
}

func TestNewChannel_InvalidId(t *testing.T) {
	for _, id := range []int{0, 6, -1} {
		_, err := NewChannel(id, testingutils.NewMockPort(), layout)
		assert.ErrorIs(t, err, ErrInvalidChannel)
	}
}

func TestNewChannels(t *testing.T) {
	// WHEN
	channels := NewChannels(testingutils.NewMockPort(), layout)

	// THEN
	assert.Len(t, channels, ChannelCount)
	for id, channel := range channels {
		assert.Equal(t, id, channel.GetId())
	}
}

func TestChannel_SetPwm_Clamps(t *testing.T) {
	// GIVEN
	channel, port := createChannel(t, 2)

	// WHEN
	assert.NoError(t, channel.SetPwm(300))
	assert.NoError(t, channel.SetPwm(-4))

	// THEN
	assert.Equal(t, []int{255, 0}, port.WritesTo(layout.Pwm(2)))
}

func TestChannel_GetRpm(t *testing.T) {
	// GIVEN
	channel, port := createChannel(t, 1)
	port.Set(layout.FanInput(1), 1240)

	// WHEN
	rpm, err := channel.GetRpm()

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, 1240, rpm)
}

func TestChannel_SetMode(t *testing.T) {
	// GIVEN
	channel, port := createChannel(t, 3)

	// WHEN
	err := channel.SetMode(ControlModeCurve)

	// THEN
	assert.NoError(t, err)
	value, _ := port.Get(layout.PwmEnable(3))
	assert.Equal(t, 2, value)
}

func TestChannel_SetMode_Unsupported(t *testing.T) {
	// GIVEN
	channel, port := createChannel(t, 3)

	// WHEN
	err := channel.SetMode(ControlMode(4))

	// THEN
	assert.ErrorIs(t, err, ErrUnsupportedMode)
	assert.Empty(t, port.Writes())
}

func TestChannel_GetMode_FallsBackToBios(t *testing.T) {
	// GIVEN
	channel, _ := createChannel(t, 1)

	// WHEN
	mode, err := channel.GetMode()

	// THEN
	assert.Error(t, err)
	assert.Equal(t, ControlModeBios, mode)
}

func TestChannel_SetCurve_WritesMillidegrees(t *testing.T) {
	// GIVEN
	channel, port := createChannel(t, 1)

	// WHEN
	err := channel.SetCurve(curves.DefaultCurve())

	// THEN
	assert.NoError(t, err)
	value, _ := port.Get(layout.AutoPointTemp(1, 1))
	assert.Equal(t, 30000, value)
	value, _ = port.Get(layout.AutoPointPwm(1, 5))
	assert.Equal(t, 255, value)
	assert.Len(t, port.Writes(), 10)
}

func TestChannel_SetCurve_ContinuesAfterFailure(t *testing.T) {
	// GIVEN
	channel, port := createChannel(t, 1)
	port.FailWrite(layout.AutoPointTemp(1, 2), errors.New("device busy"))

	// WHEN
	err := channel.SetCurve(curves.DefaultCurve())

	// THEN
	assert.Error(t, err)
	assert.Len(t, port.Writes(), 9)
}

func TestChannel_GetCurve(t *testing.T) {
	// GIVEN
	channel, port := createChannel(t, 4)
	assert.NoError(t, channel.SetCurve(curves.DefaultCurve()))
	port.FailRead(layout.AutoPointPwm(4, 3), errors.New("io error"))

	// WHEN
	curve, err := channel.GetCurve()

	// THEN
	assert.NoError(t, err)
	assert.Len(t, curve, 4)
	assert.Equal(t, curves.Point{Point: 4, Temp: 60, Pwm: 180}, curve[2])
}

func TestChannel_SetTargetRpm_Validates(t *testing.T) {
	// GIVEN
	channel, port := createChannel(t, 1)

	// WHEN
	err := channel.SetTargetRpm(10001)

	// THEN
	assert.ErrorIs(t, err, ErrInvalidTargetRpm)
	assert.Empty(t, port.Writes())

	assert.NoError(t, channel.SetTargetRpm(1500))
	assert.Equal(t, []int{1500}, port.WritesTo(layout.FanTarget(1)))
}

func TestChannel_SetTempSource_Validates(t *testing.T) {
	// GIVEN
	channel, port := createChannel(t, 2)

	// THEN
	assert.ErrorIs(t, channel.SetTempSource(13), ErrInvalidTempSource)
	assert.NoError(t, channel.SetTempSource(7))
	assert.Equal(t, []int{7}, port.WritesTo(layout.TempSelect(2)))
}

func TestChannel_SetOutputMode_Validates(t *testing.T) {
	// GIVEN
	channel, port := createChannel(t, 2)

	// THEN
	assert.ErrorIs(t, channel.SetOutputMode(OutputMode(2)), ErrInvalidOutputMode)
	assert.NoError(t, channel.SetOutputMode(OutputModeDC))
	assert.Equal(t, []int{0}, port.WritesTo(layout.PwmMode(2)))
}

func TestChannel_Status(t *testing.T) {
	// GIVEN
	channel, port := createChannel(t, 1)
	port.Set(layout.FanInput(1), 900)
	port.Set(layout.Pwm(1), 128)
	port.Set(layout.PwmEnable(1), 2)

	// WHEN
	status := channel.Status("CPU Fan")

	// THEN
	assert.Equal(t, 1, status.Id)
	assert.Equal(t, "CPU Fan", status.Name)
	assert.Equal(t, 900, status.Rpm)
	assert.Equal(t, 128, status.Pwm)
	assert.Equal(t, 50.2, status.PwmPercent)
	assert.Equal(t, ControlModeCurve, status.Mode)
	assert.Equal(t, "Curve", status.ModeName)
	assert.Empty(t, status.Curve)
}

func TestParseControlMode(t *testing.T) {
	var tests = []struct {
		input    string
		expected ControlMode
		wantErr  bool
	}{
		{input: "0", expected: ControlModeOff},
		{input: "5", expected: ControlModeBios},
		{input: "curve", expected: ControlModeCurve},
		{input: "target-rpm", expected: ControlModeTargetRpm},
		{input: "rpm", expected: ControlModeTargetRpm},
		{input: "BIOS", expected: ControlModeBios},
		{input: "Target RPM", expected: ControlModeTargetRpm},
		{input: "4", wantErr: true},
		{input: "turbo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseControlMode(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedMode)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
		})
	}
}

func TestValidateChannelId(t *testing.T) {
	assert.NoError(t, ValidateChannelId(1))
	assert.NoError(t, ValidateChannelId(5))
	assert.ErrorIs(t, ValidateChannelId(0), ErrInvalidChannel)
	assert.ErrorIs(t, ValidateChannelId(6), ErrInvalidChannel)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/markusressel/nctfan/internal/autotune"
	"github.com/markusressel/nctfan/internal/control_loop"
	"github.com/markusressel/nctfan/internal/curves"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/markusressel/nctfan/internal/persistence"
	"github.com/markusressel/nctfan/internal/settings"
	"github.com/markusressel/nctfan/internal/testingutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tempSource = "/sys/class/hwmon/hwmon3/temp1_input"

type mockController struct {
	mu       sync.Mutex
	restarts int
	reset    []int
}

func (m *mockController) Restart(ctx context.Context, channels ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restarts++
	m.reset = append(m.reset, channels...)
}

func (m *mockController) IsRunning() bool {
	return true
}

type fixture struct {
	layout     hwmon.Layout
	server     *Server
	port       *testingutils.MockPort
	store      *settings.Store
	controller *mockController
	engine     *autotune.Engine
	history    persistence.Persistence
}

func createFixture(t *testing.T) *fixture {
	layout := hwmon.NewLayout(t.TempDir(), hwmon.DefaultChipName)
	port := testingutils.NewMockPort()
	port.Set(tempSource, 40000)
	channels := fans.NewChannels(port, layout)

	store := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, store.Load())

	history := persistence.NewPersistence(filepath.Join(t.TempDir(), "nctfan.db"))
	require.NoError(t, history.Init())

	engine := autotune.NewEngine(port, fans.AsFans(channels), autotune.Config{
		ProfilingSamples:   3,
		MaxSafeTemperature: autotune.DefaultMaxSafeTemperature,
		TestPwms:           autotune.DefaultTestPwms,
	})
	controller := &mockController{}

	server := NewServer(context.Background(), Dependencies{
		Port:       port,
		Layout:     layout,
		Channels:   channels,
		Store:      store,
		Controller: controller,
		Regulator:  control_loop.NewHysteresisRegulator(control_loop.DefaultHysteresisConfig),
		Engine:     engine,
		History:    history,
		Sensors: func() []hwmon.TemperatureSensor {
			return []hwmon.TemperatureSensor{hwmon.NewTemperatureSensor(tempSource, "k10temp", "Tctl", 40)}
		},
	}, Config{})

	return &fixture{
		layout:     layout,
		server:     server,
		port:       port,
		store:      store,
		controller: controller,
		engine:     engine,
		history:    history,
	}
}

func (f *fixture) do(method string, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Echo().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), target))
}

func TestStatusCodeOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusCodeOf(fans.ErrInvalidChannel))
	assert.Equal(t, http.StatusBadRequest, statusCodeOf(curves.ErrInvalidCurve))
	assert.Equal(t, http.StatusBadRequest, statusCodeOf(autotune.ErrAlreadyRunning))
	assert.Equal(t, http.StatusInternalServerError, statusCodeOf(errors.New("i/o error")))
}

func TestGetStatus(t *testing.T) {
	// GIVEN
	f := createFixture(t)
	f.port.Set(f.layout.Pwm(1), 128)
	f.port.Set(f.layout.FanInput(1), 950)
	f.port.Set(f.layout.PwmEnable(1), 2)
	f.port.Set(f.layout.TempInput(2), 41500)

	// WHEN
	rec := f.do(http.MethodGet, "/api/status", "")

	// THEN
	assert.Equal(t, http.StatusOK, rec.Code)
	var status Status
	decode(t, rec, &status)
	require.Len(t, status.Fans, fans.ChannelCount)
	assert.Equal(t, "CPU Fan", status.Fans[0].Name)
	assert.Equal(t, 950, status.Fans[0].Rpm)
	assert.Equal(t, 50.2, status.Fans[0].PwmPercent)
	assert.Equal(t, fans.ControlModeCurve, status.Fans[0].Mode)
	assert.Equal(t, 41.5, status.Temps["CPUTIN"])
	assert.Equal(t, fans.ControlModeBios, status.FanModes[1])
	assert.True(t, status.SoftwareControlRunning)
}

func TestGetConfig(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	rec := f.do(http.MethodGet, "/api/config", "")

	// THEN
	assert.Equal(t, http.StatusOK, rec.Code)
	var result settings.Settings
	decode(t, rec, &result)
	assert.Equal(t, "Chassis Fan 1", result.FanNames[2])
	assert.Equal(t, curves.DefaultCurve(), result.Curves[3])
}

func TestSetFanMode(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	rec := f.do(http.MethodPost, "/api/fan_mode", `{"fan_id": 2, "mode": 2}`)

	// THEN
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{2}, f.port.WritesTo(f.layout.PwmEnable(2)))
	assert.Equal(t, []int{30000}, f.port.WritesTo(f.layout.AutoPointTemp(2, 1)))
	assert.Equal(t, []int{255}, f.port.WritesTo(f.layout.AutoPointPwm(2, 5)))
	assert.Equal(t, fans.ControlModeCurve, f.store.Snapshot().FanModes[2])
}

func TestSetFanMode_Rejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"mode 4", `{"fan_id": 1, "mode": 4}`},
		{"invalid channel", `{"fan_id": 6, "mode": 1}`},
		{"malformed body", `{"fan_id": "one"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN
			f := createFixture(t)

			// WHEN
			rec := f.do(http.MethodPost, "/api/fan_mode", tt.body)

			// THEN
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, f.port.Writes())
			var result Result
			decode(t, rec, &result)
			assert.NotEmpty(t, result.Message)
		})
	}
}

func TestSetFanMode_HardwareFailure(t *testing.T) {
	// GIVEN
	f := createFixture(t)
	f.port.FailWrite(f.layout.PwmEnable(1), errors.New("permission denied"))

	// WHEN
	rec := f.do(http.MethodPost, "/api/fan_mode", `{"fan_id": 1, "mode": 1}`)

	// THEN
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, fans.ControlModeBios, f.store.Snapshot().FanModes[1])
}

func TestSetGlobalMode_Manual(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	rec := f.do(http.MethodPost, "/api/mode", `{"mode": "manual"}`)

	// THEN
	assert.Equal(t, http.StatusOK, rec.Code)
	for id := 1; id <= fans.ChannelCount; id++ {
		assert.Equal(t, []int{1}, f.port.WritesTo(f.layout.PwmEnable(id)))
		assert.Len(t, f.port.WritesTo(f.layout.AutoPointPwm(id, 1)), 1)
		assert.Equal(t, fans.ControlModeManual, f.store.Snapshot().FanModes[id])
	}
}

func TestSetGlobalMode_Invalid(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	rec := f.do(http.MethodPost, "/api/mode", `{"mode": "turbo"}`)

	// THEN
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

const validCurve = `[{"temp":35,"pwm":60},{"temp":45,"pwm":90},{"temp":55,"pwm":130},{"temp":65,"pwm":190},{"temp":75,"pwm":255}]`

func TestSetCurve_PersistsWithoutHardwareOutsideCurveMode(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	rec := f.do(http.MethodPost, "/api/curve", `{"fan_id": 3, "curve": `+validCurve+`}`)

	// THEN
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.port.Writes())
	curve := f.store.Snapshot().Curves[3]
	require.Len(t, curve, 5)
	assert.Equal(t, 1, curve[0].Point)
	assert.Equal(t, 35.0, curve[0].Temp)
}

func TestSetCurve_AppliedInCurveMode(t *testing.T) {
	// GIVEN
	f := createFixture(t)
	require.NoError(t, f.store.Update(func(s *settings.Settings) {
		s.FanModes[3] = fans.ControlModeCurve
	}))

	// WHEN
	rec := f.do(http.MethodPost, "/api/curve", `{"fan_id": 3, "curve": `+validCurve+`}`)

	// THEN
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{35000}, f.port.WritesTo(f.layout.AutoPointTemp(3, 1)))
	assert.Equal(t, []int{190}, f.port.WritesTo(f.layout.AutoPointPwm(3, 4)))
}

func TestSetCurve_Invalid(t *testing.T) {
	// GIVEN
	f := createFixture(t)
	decreasing := `[{"temp":35,"pwm":60},{"temp":30,"pwm":90},{"temp":55,"pwm":130},{"temp":65,"pwm":190},{"temp":75,"pwm":255}]`

	// WHEN
	rec := f.do(http.MethodPost, "/api/curve", `{"fan_id": 1, "curve": `+decreasing+`}`)
	short := f.do(http.MethodPost, "/api/curve", `{"fan_id": 1, "curve": [{"temp":35,"pwm":60}]}`)

	// THEN
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, short.Code)
	assert.Equal(t, curves.DefaultCurve(), f.store.Snapshot().Curves[1])
}

func TestSetChannelValues(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	name := f.do(http.MethodPost, "/api/fan_name", `{"fan_id": 4, "name": "Rear Exhaust"}`)
	pwmMode := f.do(http.MethodPost, "/api/pwm_mode", `{"fan_id": 4, "pwm_mode": 0}`)
	manual := f.do(http.MethodPost, "/api/manual_pwm", `{"fan_id": 4, "pwm": 90}`)
	rpm := f.do(http.MethodPost, "/api/target_rpm", `{"fan_id": 4, "target_rpm": 1200}`)
	source := f.do(http.MethodPost, "/api/temp_source", `{"fan_id": 4, "temp_source": 7}`)

	// THEN
	for _, rec := range []*httptest.ResponseRecorder{name, pwmMode, manual, rpm, source} {
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, []int{0}, f.port.WritesTo(f.layout.PwmMode(4)))
	assert.Equal(t, []int{90}, f.port.WritesTo(f.layout.Pwm(4)))
	assert.Equal(t, []int{1200}, f.port.WritesTo(f.layout.FanTarget(4)))
	assert.Equal(t, []int{7}, f.port.WritesTo(f.layout.TempSelect(4)))

	current := f.store.Snapshot()
	assert.Equal(t, "Rear Exhaust", current.FanName(4))
	assert.Equal(t, fans.OutputModeDC, current.PwmModes[4])
	assert.Equal(t, 90, current.ManualPwm[4])
	assert.Equal(t, 1200, current.TargetRpm[4])
	assert.Equal(t, 7, current.TempSources[4])
}

func TestSetChannelValues_OutOfRange(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	pwmMode := f.do(http.MethodPost, "/api/pwm_mode", `{"fan_id": 1, "pwm_mode": 2}`)
	manual := f.do(http.MethodPost, "/api/manual_pwm", `{"fan_id": 1, "pwm": 256}`)
	rpm := f.do(http.MethodPost, "/api/target_rpm", `{"fan_id": 1, "target_rpm": 10001}`)
	source := f.do(http.MethodPost, "/api/temp_source", `{"fan_id": 1, "temp_source": 13}`)
	name := f.do(http.MethodPost, "/api/fan_name", `{"fan_id": 0, "name": "x"}`)

	// THEN
	for _, rec := range []*httptest.ResponseRecorder{pwmMode, manual, rpm, source, name} {
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	assert.Empty(t, f.port.Writes())
}

func TestSetSoftwareControl_EnableAndDisable(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	enable := f.do(http.MethodPost, "/api/software_control", `{"fan_id": 2, "enabled": true, "temp_source": "`+tempSource+`"}`)

	// THEN
	assert.Equal(t, http.StatusOK, enable.Code)
	assert.Equal(t, []int{1}, f.port.WritesTo(f.layout.PwmEnable(2)))
	config := f.store.SoftwareControl()[2]
	assert.True(t, config.Enabled)
	assert.Equal(t, tempSource, config.TempSource)
	assert.Equal(t, curves.DefaultCurve(), config.Curve)
	assert.Equal(t, fans.ControlModeManual, f.store.Snapshot().FanModes[2])
	assert.Equal(t, 1, f.controller.restarts)

	// WHEN
	disable := f.do(http.MethodPost, "/api/software_control", `{"fan_id": 2, "enabled": false}`)

	// THEN
	assert.Equal(t, http.StatusOK, disable.Code)
	assert.Empty(t, f.store.SoftwareControl())
	assert.Equal(t, 2, f.controller.restarts)
	assert.Equal(t, []int{2, 2}, f.controller.reset)
}

func TestSetSoftwareControl_RequiresTempSource(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	rec := f.do(http.MethodPost, "/api/software_control", `{"fan_id": 2, "enabled": true}`)

	// THEN
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.port.Writes())
	assert.Equal(t, 0, f.controller.restarts)
}

func TestTempSensors(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	require.NoError(t, os.WriteFile(f.layout.TempLabel(1), []byte("SYSTIN\n"), 0644))
	require.NoError(t, os.WriteFile(f.layout.TempLabel(7), []byte("PECI Agent 0\n"), 0644))

	// WHEN
	chip := f.do(http.MethodGet, "/api/temp_sensors", "")
	all := f.do(http.MethodGet, "/api/temp_sensors_all", "")

	// THEN
	assert.Equal(t, http.StatusOK, chip.Code)
	assert.JSONEq(t, `{"sensors": [{"id": 1, "label": "SYSTIN"}, {"id": 7, "label": "PECI Agent 0"}]}`, chip.Body.String())

	assert.Equal(t, http.StatusOK, all.Code)
	var result struct {
		Sensors []hwmon.TemperatureSensor `json:"sensors"`
	}
	decode(t, all, &result)
	require.Len(t, result.Sensors, 1)
	assert.Equal(t, "k10temp - Tctl", result.Sensors[0].DisplayName)
}

func TestAvailableModes(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	rec := f.do(http.MethodGet, "/api/available_modes", "")

	// THEN
	var result struct {
		Modes []ModeInfo `json:"modes"`
	}
	decode(t, rec, &result)
	var values []fans.ControlMode
	for _, mode := range result.Modes {
		values = append(values, mode.Value)
	}
	assert.Equal(t, []fans.ControlMode{0, 1, 2, 3, 5}, values)
}

func TestAutoTune_ApplyWithoutResults(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	rec := f.do(http.MethodPost, "/api/auto_tune/apply", "")

	// THEN
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAutoTune_StartRejectsInvalidRequest(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	empty := f.do(http.MethodPost, "/api/auto_tune/start", `{"fan_ids": [], "temp_source": "`+tempSource+`"}`)
	profile := f.do(http.MethodPost, "/api/auto_tune/start", `{"fan_ids": [1], "temp_source": "`+tempSource+`", "profile": "turbo"}`)

	// THEN
	assert.Equal(t, http.StatusBadRequest, empty.Code)
	assert.Equal(t, http.StatusBadRequest, profile.Code)
	assert.False(t, f.engine.IsRunning())
}

func TestAutoTune_ApplyStoresCurvesAndHistory(t *testing.T) {
	// GIVEN
	f := createFixture(t)
	f.port.Set(f.layout.FanInput(1), 1200)
	_, err := f.engine.Run(context.Background(), autotune.Request{
		ChannelIds: []int{1},
		TempSource: tempSource,
		Profile:    autotune.ProfileSilent,
	})
	require.NoError(t, err)

	// WHEN
	status := f.do(http.MethodGet, "/api/auto_tune/status", "")
	apply := f.do(http.MethodPost, "/api/auto_tune/apply", "")
	history := f.do(http.MethodGet, "/api/auto_tune/history", "")

	// THEN
	var tuneStatus autotune.Status
	decode(t, status, &tuneStatus)
	assert.False(t, tuneStatus.Running)
	require.NotNil(t, tuneStatus.Results)
	assert.Equal(t, 100, tuneStatus.Progress)

	assert.Equal(t, http.StatusOK, apply.Code)
	current := f.store.Snapshot()
	assert.Equal(t, tuneStatus.Results.Curves[1], current.Curves[1])
	require.NotNil(t, current.AutoTuneResults)
	assert.Equal(t, autotune.ProfileSilent, current.AutoTuneResults.Profile)

	var result AutoTuneHistory
	decode(t, history, &result)
	assert.Len(t, result.Runs, 1)
	assert.Equal(t, 1200, result.Calibrations[1].Result.MaxRpm)
}

func TestAutoTune_Cancel(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	rec := f.do(http.MethodPost, "/api/auto_tune/cancel", "")

	// THEN
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success": true, "message": "Auto-tune cancelled"}`, rec.Body.String())
}

func TestAlive(t *testing.T) {
	// GIVEN
	f := createFixture(t)

	// WHEN
	rec := f.do(http.MethodGet, "/alive", "")

	// THEN
	assert.Equal(t, http.StatusOK, rec.Code)
}

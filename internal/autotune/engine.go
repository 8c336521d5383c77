package autotune

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/markusressel/nctfan/internal/ui"
	"github.com/markusressel/nctfan/internal/util"
)

var (
	ErrAlreadyRunning    = errors.New("auto-tune already running")
	ErrStillRunning      = errors.New("auto-tune still running")
	ErrNoResults         = errors.New("no auto-tune results available")
	ErrCancelled         = errors.New("auto-tune cancelled")
	ErrNoTemperatureData = errors.New("no temperature data collected")
	ErrInvalidRequest    = errors.New("invalid auto-tune request")
)

// DefaultTestPwms are the duty cycles every channel is swept through
var DefaultTestPwms = []int{0, 50, 77, 102, 128, 153, 179, 204, 230, 255}

type Config struct {
	ProfilingSamples   int
	ProfilingInterval  time.Duration
	SettleTime         time.Duration
	ModeSwitchDelay    time.Duration
	MaxSafeTemperature float64
	TestPwms           []int
}

func DefaultConfig() Config {
	return Config{
		ProfilingSamples:   30,
		ProfilingInterval:  1 * time.Second,
		SettleTime:         3 * time.Second,
		ModeSwitchDelay:    1 * time.Second,
		MaxSafeTemperature: DefaultMaxSafeTemperature,
		TestPwms:           DefaultTestPwms,
	}
}

// Engine calibrates fans and derives curves from the measurements.
// Only one run can be active at a time.
type Engine struct {
	port     hwmon.Port
	channels map[int]fans.Fan
	config   Config

	session atomic.Pointer[Session]

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewEngine(port hwmon.Port, channels map[int]fans.Fan, config Config) *Engine {
	if len(config.TestPwms) <= 0 {
		config.TestPwms = DefaultTestPwms
	}
	if config.MaxSafeTemperature <= 0 {
		config.MaxSafeTemperature = DefaultMaxSafeTemperature
	}
	return &Engine{
		port:     port,
		channels: channels,
		config:   config,
	}
}

// Start validates the request and runs it in the background
func (e *Engine) Start(ctx context.Context, request Request) error {
	profile, err := e.validate(request)
	if err != nil {
		return err
	}
	r, err := e.begin(ctx, request, profile)
	if err != nil {
		return err
	}
	go r.execute()
	return nil
}

// Run validates the request and runs it to the end
func (e *Engine) Run(ctx context.Context, request Request) (*Session, error) {
	profile, err := e.validate(request)
	if err != nil {
		return nil, err
	}
	r, err := e.begin(ctx, request, profile)
	if err != nil {
		return nil, err
	}
	return r.execute(), nil
}

// Cancel stops the active run, if any. The run ends within one sampling or settle interval.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		ui.Info("Cancelling auto-tune")
		e.cancel()
	}
}

func (e *Engine) IsRunning() bool {
	return e.session.Load().IsRunning()
}

// Session returns a copy of the latest session, nil if there never was a run
func (e *Engine) Session() *Session {
	return e.session.Load().Clone()
}

func (e *Engine) Status() Status {
	session := e.session.Load()
	if session == nil {
		return Status{}
	}
	status := Status{
		Running:       session.IsRunning(),
		Progress:      session.Progress,
		CurrentAction: session.CurrentAction,
	}
	if !status.Running {
		status.Results = session.Clone()
	}
	return status
}

// Results returns the session of the last finished run that generated at least one curve
func (e *Engine) Results() (*Session, error) {
	session := e.Session()
	if session.IsRunning() {
		return nil, ErrStillRunning
	}
	if session == nil || len(session.Curves) <= 0 {
		return nil, ErrNoResults
	}
	return session, nil
}

func (e *Engine) validate(request Request) (Profile, error) {
	if len(request.ChannelIds) <= 0 {
		return Profile{}, fmt.Errorf("%w: no fan channels given", ErrInvalidRequest)
	}
	for _, id := range request.ChannelIds {
		if err := fans.ValidateChannelId(id); err != nil {
			return Profile{}, err
		}
		if _, ok := e.channels[id]; !ok {
			return Profile{}, fmt.Errorf("%w: %d", fans.ErrChannelUnavailable, id)
		}
	}
	if len(request.TempSource) <= 0 {
		return Profile{}, fmt.Errorf("%w: no temperature source given", ErrInvalidRequest)
	}
	profile, ok := LookupProfile(request.Profile)
	if !ok {
		return Profile{}, fmt.Errorf("%w: unknown profile '%s'", ErrInvalidRequest, request.Profile)
	}
	return profile, nil
}

func (e *Engine) begin(ctx context.Context, request Request, profile Profile) (*run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return nil, ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	r := &run{
		engine:  e,
		ctx:     runCtx,
		request: request,
		profile: profile,
		session: newSession(request, profile),
		total:   e.config.ProfilingSamples + len(request.ChannelIds)*len(e.config.TestPwms),
	}
	e.publish(r.session)
	return r, nil
}

// finish releases the run slot and publishes the final session in one step,
// so a new run can be started as soon as the old one is reported as ended
func (e *Engine) finish(session *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.publish(session)
}

func (e *Engine) publish(session *Session) {
	e.session.Store(session.Clone())
}

// run holds the mutable state of a single auto-tune run, owned by the goroutine executing it
type run struct {
	engine  *Engine
	ctx     context.Context
	request Request
	profile Profile
	session *Session

	done  int
	total int
}

func (r *run) execute() (result *Session) {
	defer func() {
		if p := recover(); p != nil {
			result = r.end(fmt.Errorf("unexpected error: %v", p))
		}
	}()

	ui.Info("Starting auto-tune for fans %v with profile '%s'", r.request.ChannelIds, r.profile.Name)

	r.report("Profiling system temperature...")
	temperatures, err := r.profileTemperature()
	if err != nil {
		return r.end(err)
	}
	r.session.TempProfile = &temperatures
	ui.Info("Temperature profile: idle %.1f°C, min %.1f°C, max %.1f°C, avg %.1f°C",
		temperatures.Idle, temperatures.Min, temperatures.Max, temperatures.Avg)

	for _, id := range r.request.ChannelIds {
		if r.ctx.Err() != nil {
			return r.end(ErrCancelled)
		}

		r.report(fmt.Sprintf("Calibrating Fan %d...", id))
		result, err := r.calibrateChannel(id)
		if errors.Is(err, ErrCancelled) {
			return r.end(err)
		}
		if err != nil {
			ui.Error("Failed to calibrate fan %d: %v", id, err)
			continue
		}

		r.session.Calibration[id] = result
		r.session.Curves[id] = GenerateCurve(result, r.profile, temperatures, r.engine.config.MaxSafeTemperature)
		r.engine.publish(r.session)
	}

	r.session.CurrentAction = "Auto-tune complete!"
	return r.end(nil)
}

func (r *run) end(err error) *Session {
	s := r.session
	switch {
	case err == nil:
		s.State = StateCompleted
		s.Progress = 100
		ui.Success("Auto-tune complete, generated %d curve(s)", len(s.Curves))
	case errors.Is(err, ErrCancelled):
		s.State = StateCancelled
		s.Error = err.Error()
		s.CurrentAction = "Auto-tune cancelled"
		ui.Warning("Auto-tune cancelled")
	default:
		s.State = StateFailed
		s.Error = err.Error()
		s.CurrentAction = "Auto-tune failed"
		ui.ErrorAndNotify("Auto-tune failed", "Auto-tune failed: %v", err)
	}
	r.engine.finish(s)
	return s.Clone()
}

// report publishes the current action together with the progress of all completed steps
func (r *run) report(action string) {
	r.session.CurrentAction = action
	if r.total > 0 {
		r.session.Progress = min(r.done*100/r.total, 99)
	}
	r.engine.publish(r.session)
}

func (r *run) profileTemperature() (TemperatureProfile, error) {
	samples := r.engine.config.ProfilingSamples
	source := r.request.TempSource

	var temperatures []float64
	for i := 0; i < samples; i++ {
		if r.ctx.Err() != nil {
			return TemperatureProfile{}, ErrCancelled
		}
		r.report(fmt.Sprintf("Monitoring temperature (%d/%ds)", i+1, samples))

		temperature, err := hwmon.ReadTemperature(r.engine.port, source)
		if err != nil {
			ui.Warning("Failed to read temperature from %s: %v", source, err)
		} else {
			temperatures = append(temperatures, temperature)
		}
		r.done++

		if err := sleep(r.ctx, r.engine.config.ProfilingInterval); err != nil {
			return TemperatureProfile{}, err
		}
	}

	if len(temperatures) <= 0 {
		return TemperatureProfile{}, ErrNoTemperatureData
	}

	window := util.WindowOf(temperatures)
	return TemperatureProfile{
		Min:  util.GetWindowMin(window),
		Max:  util.GetWindowMax(window),
		Avg:  util.GetWindowAvg(window),
		Idle: temperatures[0],
	}, nil
}

func (r *run) calibrateChannel(id int) (CalibrationResult, error) {
	pwms := r.engine.config.TestPwms
	fan := r.engine.channels[id]

	if err := fan.SetMode(fans.ControlModeManual); err != nil {
		r.done += len(pwms)
		return CalibrationResult{}, err
	}
	if err := sleep(r.ctx, r.engine.config.ModeSwitchDelay); err != nil {
		return CalibrationResult{}, err
	}

	result := CalibrationResult{
		ChannelId: id,
		PwmRpmMap: map[int]int{},
	}
	spinning := false
	for i, pwm := range pwms {
		if r.ctx.Err() != nil {
			return result, ErrCancelled
		}
		r.report(fmt.Sprintf("Testing Fan %d at PWM %d (%d%%)", id, pwm, (i+1)*100/len(pwms)))

		if err := fan.SetPwm(pwm); err != nil {
			ui.Warning("Skipping PWM %d of fan %d: %v", pwm, id, err)
			r.done++
			continue
		}
		if err := sleep(r.ctx, r.engine.config.SettleTime); err != nil {
			return result, err
		}

		rpm, err := fan.GetRpm()
		r.done++
		if err != nil {
			ui.Warning("Failed to read RPM of fan %d at PWM %d: %v", id, pwm, err)
			continue
		}
		ui.Info("Fan %d PWM %d -> %d RPM", id, pwm, rpm)

		result.PwmRpmMap[pwm] = rpm
		if rpm > 0 && !spinning {
			spinning = true
			result.StartPwm = pwm
		}
		if rpm > result.MaxRpm {
			result.MaxRpm = rpm
		}
	}

	return result, nil
}

// sleep waits for d, returning ErrCancelled as soon as ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ErrCancelled
	case <-timer.C:
		return nil
	}
}

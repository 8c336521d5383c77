package autotune

import (
	"time"

	"github.com/markusressel/nctfan/internal/curves"
	"golang.org/x/exp/maps"
)

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// CalibrationResult is the measured response of a single channel
type CalibrationResult struct {
	ChannelId int `json:"fan_id"`
	// StartPwm is the lowest tested duty cycle at which the fan was spinning
	StartPwm  int         `json:"min_pwm"`
	PwmRpmMap map[int]int `json:"pwm_rpm_map"`
	MaxRpm    int         `json:"max_rpm"`
}

func (r CalibrationResult) copy() CalibrationResult {
	r.PwmRpmMap = maps.Clone(r.PwmRpmMap)
	return r
}

type TemperatureProfile struct {
	Min  float64 `json:"min_temp"`
	Max  float64 `json:"max_temp"`
	Avg  float64 `json:"avg_temp"`
	Idle float64 `json:"idle_temp"`
}

// Request describes an auto-tune run
type Request struct {
	ChannelIds []int  `json:"fan_ids"`
	TempSource string `json:"temp_source"`
	Profile    string `json:"profile"`
}

// Session is an immutable snapshot of an auto-tune run
type Session struct {
	State         State                     `json:"state"`
	Progress      int                       `json:"progress"`
	CurrentAction string                    `json:"current_action"`
	Profile       string                    `json:"profile"`
	Timestamp     time.Time                 `json:"timestamp"`
	ChannelIds    []int                     `json:"fan_ids"`
	TempProfile   *TemperatureProfile       `json:"temp_profile,omitempty"`
	Calibration   map[int]CalibrationResult `json:"fan_calibration"`
	Curves        map[int]curves.Curve      `json:"generated_curves"`
	Error         string                    `json:"error,omitempty"`
}

func newSession(request Request, profile Profile) *Session {
	return &Session{
		State:       StateRunning,
		Profile:     profile.Name,
		Timestamp:   time.Now(),
		ChannelIds:  append([]int{}, request.ChannelIds...),
		Calibration: map[int]CalibrationResult{},
		Curves:      map[int]curves.Curve{},
	}
}

func (s *Session) IsRunning() bool {
	return s != nil && s.State == StateRunning
}

// Clone creates a deep copy
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	result := *s
	result.ChannelIds = append([]int{}, s.ChannelIds...)
	if s.TempProfile != nil {
		profile := *s.TempProfile
		result.TempProfile = &profile
	}
	result.Calibration = make(map[int]CalibrationResult, len(s.Calibration))
	for id, calibration := range s.Calibration {
		result.Calibration[id] = calibration.copy()
	}
	result.Curves = make(map[int]curves.Curve, len(s.Curves))
	for id, curve := range s.Curves {
		result.Curves[id] = curve.Copy()
	}
	return &result
}

// Record is the summary of a run that is kept after its curves were applied
type Record struct {
	Timestamp   time.Time                 `json:"timestamp"`
	Profile     string                    `json:"profile"`
	Calibration map[int]CalibrationResult `json:"fan_calibration"`
	TempProfile *TemperatureProfile       `json:"temp_profile,omitempty"`
}

func (s *Session) Record() Record {
	clone := s.Clone()
	return Record{
		Timestamp:   clone.Timestamp,
		Profile:     clone.Profile,
		Calibration: clone.Calibration,
		TempProfile: clone.TempProfile,
	}
}

func (r Record) Clone() Record {
	calibration := make(map[int]CalibrationResult, len(r.Calibration))
	for id, result := range r.Calibration {
		calibration[id] = result.copy()
	}
	r.Calibration = calibration
	if r.TempProfile != nil {
		profile := *r.TempProfile
		r.TempProfile = &profile
	}
	return r
}

// Status is what status queries report, results are only included once the run has ended
type Status struct {
	Running       bool     `json:"running"`
	Progress      int      `json:"progress"`
	CurrentAction string   `json:"current_action"`
	Results       *Session `json:"results,omitempty"`
}

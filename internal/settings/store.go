package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/markusressel/nctfan/internal/autotune"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/ui"
	"github.com/markusressel/nctfan/internal/util"
)

const (
	legacyModeKey     = "mode"
	legacyModeAuto    = "auto"
	indentationString = "  "
)

// Store keeps the settings in memory and writes every change to a JSON file
type Store struct {
	path string

	mu       sync.RWMutex
	settings Settings
}

func NewStore(path string) *Store {
	return &Store{
		path:     path,
		settings: Defaults(),
	}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the settings file. A missing file yields the defaults,
// an unreadable one yields the defaults and an error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		ui.Info("No settings file at %s, using defaults", s.path)
		s.settings = Defaults()
		return nil
	}
	if err != nil {
		s.settings = Defaults()
		return fmt.Errorf("reading settings %s: %w", s.path, err)
	}

	settings, migrated, err := decode(data)
	if err != nil {
		s.settings = Defaults()
		return fmt.Errorf("decoding settings %s: %w", s.path, err)
	}
	s.settings = settings

	if migrated {
		return s.save(settings)
	}
	return nil
}

func decode(data []byte) (Settings, bool, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Settings{}, false, err
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, false, err
	}

	migrated := false
	if legacyMode, ok := raw[legacyModeKey]; ok && raw["fan_modes"] == nil {
		var mode string
		if err := json.Unmarshal(legacyMode, &mode); err != nil {
			return Settings{}, false, fmt.Errorf("legacy mode: %w", err)
		}
		settings.FanModes = MigrateLegacyMode(mode)
		migrated = true
		ui.Info("Migrated legacy mode '%s' to per channel mode %d", mode, settings.FanModes[1])
	}

	settings.mergeDefaults()
	return settings, migrated, nil
}

// MigrateLegacyMode converts the old global mode into per channel modes
func MigrateLegacyMode(mode string) map[int]fans.ControlMode {
	value := fans.ControlModeManual
	if mode == legacyModeAuto {
		value = fans.ControlModeBios
	}
	result := map[int]fans.ControlMode{}
	for id := 1; id <= fans.ChannelCount; id++ {
		result[id] = value
	}
	return result
}

func (s *Store) save(settings Settings) error {
	data, err := json.MarshalIndent(settings, "", indentationString)
	if err != nil {
		return err
	}
	if err := util.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("writing settings %s: %w", s.path, err)
	}
	ui.Debug("Settings saved to %s", s.path)
	return nil
}

// Snapshot returns a deep copy of the current settings
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// Update applies fn to a copy of the settings and adopts it once it has been persisted.
// When saving fails the current settings stay untouched.
func (s *Store) Update(fn func(settings *Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := s.settings.Clone()
	fn(&updated)
	updated.mergeDefaults()
	if err := s.save(updated); err != nil {
		return err
	}
	s.settings = updated
	return nil
}

// SoftwareControl returns the software control configuration of all channels
func (s *Store) SoftwareControl() map[int]SoftwareControlConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[int]SoftwareControlConfig, len(s.settings.SoftwareControl))
	for id, config := range s.settings.SoftwareControl {
		config.Curve = config.Curve.Copy()
		result[id] = config
	}
	return result
}

// ApplyCalibration adopts the generated curves of a finished auto-tune run
// and keeps its summary. The hardware is not touched.
func (s *Store) ApplyCalibration(session *autotune.Session) error {
	if session == nil || len(session.Curves) <= 0 {
		return autotune.ErrNoResults
	}
	if session.IsRunning() {
		return autotune.ErrStillRunning
	}
	record := session.Record()
	return s.Update(func(settings *Settings) {
		for id, curve := range session.Curves {
			settings.Curves[id] = curve.Copy()
		}
		settings.AutoTuneResults = &record
	})
}

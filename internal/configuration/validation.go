package configuration

import (
	"errors"
	"fmt"

	"github.com/markusressel/nctfan/internal/curves"
)

func Validate(configPath string) error {
	err := validateConfig(&CurrentConfig)
	if err != nil && len(configPath) > 0 {
		return fmt.Errorf("%s: %w", configPath, err)
	}
	return err
}

func validateConfig(config *Configuration) error {
	if len(config.SettingsPath) <= 0 {
		return errors.New("settingsPath must not be empty")
	}
	if len(config.DbPath) <= 0 {
		return errors.New("dbPath must not be empty")
	}

	err := validateHardware(&config.Hardware)
	if err != nil {
		return err
	}
	err = validateSoftwareControl(&config.SoftwareControl)
	if err != nil {
		return err
	}
	err = validateAutoTune(&config.AutoTune)
	if err != nil {
		return err
	}
	err = validateApi(&config.Api)
	if err != nil {
		return err
	}
	return validateLogging(&config.Logging)
}

func validateHardware(config *HardwareConfig) error {
	if len(config.ChipName) <= 0 {
		return errors.New("hardware: chipName must not be empty")
	}
	if config.IoTimeout <= 0 {
		return fmt.Errorf("hardware: ioTimeout must be > 0, was %s", config.IoTimeout)
	}
	for _, name := range config.ExtraChipNames {
		if len(name) <= 0 {
			return errors.New("hardware: extraChipNames must not contain empty names")
		}
	}
	return nil
}

func validateSoftwareControl(config *SoftwareControlConfig) error {
	if config.TickRate <= 0 {
		return fmt.Errorf("softwareControl: tickRate must be > 0, was %s", config.TickRate)
	}
	if config.ErrorBackoff <= 0 {
		return fmt.Errorf("softwareControl: errorBackoff must be > 0, was %s", config.ErrorBackoff)
	}
	if config.Hysteresis < 0 {
		return fmt.Errorf("softwareControl: hysteresis must be >= 0, was %.1f", config.Hysteresis)
	}
	if config.MaxRampDown <= 0 {
		return fmt.Errorf("softwareControl: maxRampDown must be > 0, was %d", config.MaxRampDown)
	}
	if config.RiseThreshold < 0 {
		return fmt.Errorf("softwareControl: riseThreshold must be >= 0, was %.1f", config.RiseThreshold)
	}
	if config.ShutdownMode != nil && !config.ShutdownMode.IsValid() {
		return fmt.Errorf("softwareControl: unsupported shutdownMode %d", *config.ShutdownMode)
	}
	return nil
}

func validateAutoTune(config *AutoTuneConfig) error {
	if config.ProfilingSamples <= 0 {
		return fmt.Errorf("autotune: profilingSamples must be > 0, was %d", config.ProfilingSamples)
	}
	if config.ProfilingInterval < 0 || config.SettleTime < 0 || config.ModeSwitchDelay < 0 {
		return errors.New("autotune: durations must not be negative")
	}
	if config.MaxSafeTemperature <= curves.MinTemperature || config.MaxSafeTemperature > curves.MaxTemperature {
		return fmt.Errorf("autotune: maxSafeTemperature must be in (%.0f..%.0f], was %.1f",
			curves.MinTemperature, curves.MaxTemperature, config.MaxSafeTemperature)
	}
	return nil
}

func validateApi(config *ApiConfig) error {
	if !config.Enabled {
		return nil
	}
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("api: invalid port %d", config.Port)
	}
	if config.BroadcastRate <= 0 {
		return fmt.Errorf("api: broadcastRate must be > 0, was %s", config.BroadcastRate)
	}
	return nil
}

func validateLogging(config *LoggingConfig) error {
	if len(config.File) <= 0 {
		return nil
	}
	if config.MaxSizeMb <= 0 {
		return fmt.Errorf("logging: maxSizeMb must be > 0, was %d", config.MaxSizeMb)
	}
	if config.MaxBackups < 0 || config.MaxAgeDays < 0 {
		return errors.New("logging: maxBackups and maxAgeDays must not be negative")
	}
	return nil
}

package configuration

import (
	"errors"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/ui"
	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Configuration struct {
	DbPath       string `json:"dbPath"`
	SettingsPath string `json:"settingsPath"`

	Hardware        HardwareConfig        `json:"hardware"`
	SoftwareControl SoftwareControlConfig `json:"softwareControl"`
	AutoTune        AutoTuneConfig        `json:"autotune"`

	Api        ApiConfig        `json:"api"`
	Statistics StatisticsConfig `json:"statistics"`
	Logging    LoggingConfig    `json:"logging"`
}

type HardwareConfig struct {
	BasePath  string        `json:"basePath"`
	ChipName  string        `json:"chipName"`
	IoTimeout time.Duration `json:"ioTimeout"`
	// ExtraChipNames are additional hwmon chips whose first temperature input is part of the status
	ExtraChipNames []string `json:"extraChipNames"`
}

type SoftwareControlConfig struct {
	TickRate      time.Duration `json:"tickRate"`
	ErrorBackoff  time.Duration `json:"errorBackoff"`
	Hysteresis    float64       `json:"hysteresis"`
	MaxRampDown   int           `json:"maxRampDown"`
	RiseThreshold float64       `json:"riseThreshold"`
	// ShutdownMode is applied to software controlled channels when the daemon exits,
	// unset keeps the last commanded duty cycle
	ShutdownMode *fans.ControlMode `json:"shutdownMode,omitempty"`
}

type AutoTuneConfig struct {
	ProfilingSamples   int           `json:"profilingSamples"`
	ProfilingInterval  time.Duration `json:"profilingInterval"`
	SettleTime         time.Duration `json:"settleTime"`
	ModeSwitchDelay    time.Duration `json:"modeSwitchDelay"`
	MaxSafeTemperature float64       `json:"maxSafeTemperature"`
}

type ApiConfig struct {
	Enabled       bool          `json:"enabled"`
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	BroadcastRate time.Duration `json:"broadcastRate"`
}

type StatisticsConfig struct {
	Enabled bool `json:"enabled"`
}

type LoggingConfig struct {
	File       string `json:"file"`
	MaxSizeMb  int    `json:"maxSizeMb"`
	MaxBackups int    `json:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays"`
}

var CurrentConfig Configuration

// InitConfig reads in config file and ENV variables if set.
func InitConfig(cfgFile string) {
	viper.SetConfigName("nctfan")

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			ui.Error("Couldn't detect home directory: %v", err)
			os.Exit(1)
		}

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.AddConfigPath("/etc/nctfan/")
	}

	viper.SetEnvPrefix("nctfan")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	setDefaultValues()
}

func setDefaultValues() {
	viper.SetDefault("dbPath", "/etc/nctfan/nctfan.db")
	viper.SetDefault("settingsPath", "/etc/nctfan/settings.json")

	viper.SetDefault("hardware.basePath", "/sys/class/hwmon")
	viper.SetDefault("hardware.chipName", "nct6779")
	viper.SetDefault("hardware.ioTimeout", 10*time.Second)
	viper.SetDefault("hardware.extraChipNames", []string{"k10temp"})

	viper.SetDefault("softwareControl.tickRate", 1*time.Second)
	viper.SetDefault("softwareControl.errorBackoff", 5*time.Second)
	viper.SetDefault("softwareControl.hysteresis", 2.0)
	viper.SetDefault("softwareControl.maxRampDown", 5)
	viper.SetDefault("softwareControl.riseThreshold", 0.5)

	viper.SetDefault("autotune.profilingSamples", 30)
	viper.SetDefault("autotune.profilingInterval", 1*time.Second)
	viper.SetDefault("autotune.settleTime", 3*time.Second)
	viper.SetDefault("autotune.modeSwitchDelay", 1*time.Second)
	viper.SetDefault("autotune.maxSafeTemperature", 80.0)

	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 8000)
	viper.SetDefault("api.broadcastRate", 1*time.Second)

	viper.SetDefault("statistics.enabled", false)

	viper.SetDefault("logging.file", "")
	viper.SetDefault("logging.maxSizeMb", 10)
	viper.SetDefault("logging.maxBackups", 3)
	viper.SetDefault("logging.maxAgeDays", 28)
}

// DetectAndReadConfigFile reads the config file if there is one and returns its path.
// Running without a config file is fine, all values have defaults.
func DetectAndReadConfigFile() string {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			ui.Info("No configuration file found, using defaults")
			return ""
		}
		ui.Fatal("Error reading config file, %s", err)
	}
	// this is only populated _after_ ReadInConfig()
	return viper.ConfigFileUsed()
}

func LoadConfig() {
	err := viper.Unmarshal(&CurrentConfig, viper.DecodeHook(decodeHook()))
	if err != nil {
		ui.Fatal("unable to decode into struct, %v", err)
	}
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		controlModeHookFunc(),
	)
}

// controlModeHookFunc accepts mode names like "bios" as well as raw pwm_enable values
func controlModeHookFunc() mapstructure.DecodeHookFuncType {
	controlModeType := reflect.TypeOf(fans.ControlMode(0))
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != controlModeType || f.Kind() != reflect.String {
			return data, nil
		}
		return fans.ParseControlMode(data.(string))
	}
}

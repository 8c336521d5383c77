package global

import (
	"github.com/markusressel/nctfan/internal/configuration"
	"github.com/markusressel/nctfan/internal/fans"
	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/markusressel/nctfan/internal/ui"
)

type Hardware struct {
	Port     hwmon.Port
	Layout   hwmon.Layout
	Channels map[int]*fans.Channel
}

// LoadConfig reads and validates the configuration, invalid configurations are fatal
func LoadConfig() {
	configPath := configuration.DetectAndReadConfigFile()
	if len(configPath) > 0 {
		ui.Info("Using configuration file at: %s", configPath)
	}
	configuration.LoadConfig()
	if err := configuration.Validate(configPath); err != nil {
		ui.Fatal("%v", err)
	}
}

// LoadHardware locates the configured chip, LoadConfig has to be called first
func LoadHardware() (*Hardware, error) {
	config := configuration.CurrentConfig.Hardware
	layout, err := hwmon.FindChip(config.BasePath, config.ChipName)
	if err != nil {
		return nil, err
	}
	port := hwmon.NewSysfsPort(config.IoTimeout)
	return &Hardware{
		Port:     port,
		Layout:   layout,
		Channels: fans.NewChannels(port, layout),
	}, nil
}

// Channel returns a single channel of the configured chip
func (h *Hardware) Channel(id int) (*fans.Channel, error) {
	if err := fans.ValidateChannelId(id); err != nil {
		return nil, err
	}
	return h.Channels[id], nil
}

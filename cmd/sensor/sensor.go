package sensor

import (
	"fmt"

	"github.com/markusressel/nctfan/cmd/global"
	"github.com/markusressel/nctfan/internal/configuration"
	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	sensorPath  string
	sensorIndex int
)

var Command = &cobra.Command{
	Use:              "sensor",
	Short:            "Print the current value of a temperature input in °C",
	Long:             `Reads either an arbitrary temperature input (--path) or a temperature input of the chip (--index).`,
	TraverseChildren: true,
	Args:             cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pterm.DisableOutput()

		path, err := resolvePath()
		if err != nil {
			return err
		}

		port := hwmon.NewSysfsPort(configuration.CurrentConfig.Hardware.IoTimeout)
		value, err := hwmon.ReadTemperature(port, path)
		if err != nil {
			return err
		}
		fmt.Printf("%.1f", value)
		return nil
	},
}

func resolvePath() (string, error) {
	global.LoadConfig()
	if len(sensorPath) > 0 {
		return sensorPath, nil
	}
	if sensorIndex <= 0 {
		return "", fmt.Errorf("either --path or --index is required")
	}
	hardware, err := global.LoadHardware()
	if err != nil {
		return "", err
	}
	return hardware.Layout.TempInput(sensorIndex), nil
}

func init() {
	Command.PersistentFlags().StringVarP(
		&sensorPath,
		"path", "p",
		"",
		"Path of a temperature input, e.g. /sys/class/hwmon/hwmon3/temp1_input",
	)
	Command.PersistentFlags().IntVarP(
		&sensorIndex,
		"index", "i",
		0,
		"Index of a temperature input of the chip",
	)
}

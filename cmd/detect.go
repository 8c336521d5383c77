package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/markusressel/nctfan/cmd/global"
	"github.com/markusressel/nctfan/internal/configuration"
	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/markusressel/nctfan/internal/sensors"
	"github.com/markusressel/nctfan/internal/ui"
	"github.com/markusressel/nctfan/internal/util"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect devices",
	Long:  `Detects the fan channels of the chip and all temperature sensors and prints them as a list`,
	Run: func(cmd *cobra.Command, args []string) {
		global.LoadConfig()

		hardware, err := global.LoadHardware()
		if err != nil {
			ui.Warning("No fan controller chip found: %v", err)
		} else {
			printChannels(hardware)
		}

		chips := sensors.DetectChips()
		if len(chips) <= 0 {
			printFallbackSensors(hardware)
			return
		}
		for _, chip := range chips {
			ui.Printfln("> %s (%s)", chip.Name, chip.Identifier)

			var rows [][]string
			for _, sensor := range chip.Sensors {
				_, file := filepath.Split(sensor.Path)
				rows = append(rows, []string{
					"", fmt.Sprintf("%s (%s)", sensor.Label, file), fmt.Sprintf("%.1f", sensor.Current),
				})
			}
			printTable([]string{"Sensors", "Label", "Value"}, rows)
		}
	},
}

func printChannels(hardware *global.Hardware) {
	ui.Printfln("> %s (%s)", hardware.Layout.Name, hardware.Layout.Path)

	var rows [][]string
	for _, id := range util.SortedKeys(hardware.Channels) {
		status := hardware.Channels[id].Status(fmt.Sprintf("pwm%d", id))
		rows = append(rows, []string{
			"", strconv.Itoa(id), strconv.Itoa(status.Rpm), strconv.Itoa(status.Pwm), status.ModeName,
		})
	}
	printTable([]string{"Fans   ", "Index", "RPM", "PWM", "Mode"}, rows)

	var sourceRows [][]string
	for _, source := range hwmon.ReadTempSources(hardware.Layout) {
		sourceRows = append(sourceRows, []string{"", strconv.Itoa(source.Id), source.Label})
	}
	printTable([]string{"Sources", "Index", "Label"}, sourceRows)
}

// printFallbackSensors scans sysfs directly when libsensors reports nothing
func printFallbackSensors(hardware *global.Hardware) {
	var port hwmon.Port = hwmon.NewSysfsPort(0)
	if hardware != nil {
		port = hardware.Port
	}

	var rows [][]string
	for _, sensor := range hwmon.ScanTemperatureSensors(port, configuration.CurrentConfig.Hardware.BasePath) {
		rows = append(rows, []string{"", sensor.DisplayName, sensor.Path, fmt.Sprintf("%.1f", sensor.Current)})
	}
	printTable([]string{"Sensors", "Label", "Path", "Value"}, rows)
}

func printTable(headers []string, rows [][]string) {
	if rows == nil {
		return
	}
	tableString, err := global.RenderTable(table.Table{
		Headers: headers,
		Rows:    rows,
	})
	if err != nil {
		ui.Fatal("Error printing table: %v", err)
	}
	ui.Printfln(tableString)
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

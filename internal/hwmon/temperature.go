package hwmon

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/markusressel/nctfan/internal/util"
)

// TemperatureSensor is a temperature input of any hwmon chip
type TemperatureSensor struct {
	Path        string  `json:"path"`
	Chip        string  `json:"hwmon"`
	Label       string  `json:"label"`
	DisplayName string  `json:"display_name"`
	Current     float64 `json:"current"`
}

// TempSource is a labelled temperature source selector of the Super I/O chip
type TempSource struct {
	Id    int    `json:"id"`
	Label string `json:"label"`
}

const (
	MinTempSource = 1
	MaxTempSource = 12
)

var tempInputRegex = regexp.MustCompile(`temp(\d+)_input$`)

// ChipTemperature is a named reading used in status snapshots
type ChipTemperature struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Super I/O temperature inputs of the nct67xx family
var superIoTemperatureNames = map[int]string{
	1: "SYSTIN",
	2: "CPUTIN",
	3: "AUXTIN0",
	4: "AUXTIN1",
	5: "AUXTIN2",
}

// ReadTemperature reads a millidegree attribute and converts it to °C
func ReadTemperature(port Port, path string) (float64, error) {
	value, err := port.ReadValue(path)
	if err != nil {
		return 0, err
	}
	return float64(value) / 1000.0, nil
}

// ReadSuperIoTemperatures reads the known temperature inputs of the Super I/O chip.
// Inputs that cannot be read are left out.
func ReadSuperIoTemperatures(port Port, layout Layout) []ChipTemperature {
	var result []ChipTemperature
	for _, index := range util.SortedKeys(superIoTemperatureNames) {
		value, err := ReadTemperature(port, layout.TempInput(index))
		if err != nil {
			continue
		}
		result = append(result, ChipTemperature{
			Name:  superIoTemperatureNames[index],
			Value: util.RoundTo(value, 1),
		})
	}
	return result
}

// ReadChipTemperature reads the first temperature input of an auxiliary chip like k10temp
func ReadChipTemperature(port Port, layout Layout) (ChipTemperature, error) {
	value, err := ReadTemperature(port, layout.TempInput(1))
	if err != nil {
		return ChipTemperature{}, err
	}

	name := layout.Name
	label, err := util.ReadStringFromFile(layout.TempLabel(1))
	if err == nil && len(label) > 0 {
		name = fmt.Sprintf("%s (%s)", layout.Name, label)
	}
	return ChipTemperature{
		Name:  name,
		Value: util.RoundTo(value, 1),
	}, nil
}

// ReadTempSources lists the temperature source selectors of the chip that carry a label
func ReadTempSources(layout Layout) []TempSource {
	var result []TempSource
	for i := MinTempSource; i <= MaxTempSource; i++ {
		label, err := util.ReadStringFromFile(layout.TempLabel(i))
		if err != nil {
			continue
		}
		result = append(result, TempSource{Id: i, Label: label})
	}
	return result
}

func NewTemperatureSensor(path string, chip string, label string, current float64) TemperatureSensor {
	return TemperatureSensor{
		Path:        path,
		Chip:        chip,
		Label:       label,
		DisplayName: fmt.Sprintf("%s - %s", chip, label),
		Current:     current,
	}
}

// ScanTemperatureSensors lists every temperature input of every hwmon device below basePath
func ScanTemperatureSensors(port Port, basePath string) []TemperatureSensor {
	if len(basePath) <= 0 {
		basePath = DefaultBasePath
	}
	devices, err := filepath.Glob(filepath.Join(basePath, "hwmon*"))
	if err != nil {
		return nil
	}

	var result []TemperatureSensor
	for _, device := range devices {
		chip, err := util.ReadStringFromFile(filepath.Join(device, "name"))
		if err != nil {
			continue
		}
		inputs, _ := filepath.Glob(filepath.Join(device, "temp*_input"))
		for _, input := range inputs {
			match := tempInputRegex.FindStringSubmatch(input)
			if match == nil {
				continue
			}
			index, _ := strconv.Atoi(match[1])
			label, err := util.ReadStringFromFile(filepath.Join(device, fmt.Sprintf("temp%d_label", index)))
			if err != nil || len(label) <= 0 {
				label = fmt.Sprintf("temp%d", index)
			}
			current, _ := ReadTemperature(port, input)
			result = append(result, NewTemperatureSensor(input, chip, label, util.RoundTo(current, 1)))
		}
	}
	return result
}

package sensors

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/markusressel/nctfan/internal/hwmon"
	"github.com/markusressel/nctfan/internal/util"
	"github.com/md14454/gosensors"
)

const (
	BusTypeIsa  = 1
	BusTypePci  = 2
	BusTypeAcpi = 5
)

// Chip is a device reported by libsensors and its temperature inputs
type Chip struct {
	Identifier string                    `json:"identifier"`
	Name       string                    `json:"name"`
	Path       string                    `json:"path"`
	Sensors    []hwmon.TemperatureSensor `json:"sensors"`
}

// DetectChips returns all chips known to libsensors that expose at least one temperature input
func DetectChips() []Chip {
	gosensors.Init()
	defer gosensors.Cleanup()
	chips := gosensors.GetDetectedChips()

	var list []Chip
	for i := 0; i < len(chips); i++ {
		chip := chips[i]
		temperatures := getTempSensors(chip)
		if len(temperatures) <= 0 {
			continue
		}
		list = append(list, Chip{
			Identifier: computeIdentifier(chip),
			Name:       chipName(chip),
			Path:       chip.Path,
			Sensors:    temperatures,
		})
	}
	return list
}

// Detect returns the temperature inputs of all chips
func Detect() []hwmon.TemperatureSensor {
	var result []hwmon.TemperatureSensor
	for _, chip := range DetectChips() {
		result = append(result, chip.Sensors...)
	}
	return result
}

func getTempSensors(chip gosensors.Chip) []hwmon.TemperatureSensor {
	var result []hwmon.TemperatureSensor
	name := chipName(chip)

	for _, feature := range chip.GetFeatures() {
		if feature.Type != gosensors.FeatureTypeTemp {
			continue
		}

		subfeatures := feature.GetSubFeatures()
		input, ok := findSubFeature(subfeatures, gosensors.SubFeatureTypeTempInput)
		if !ok {
			continue
		}

		result = append(result, hwmon.NewTemperatureSensor(
			filepath.Join(chip.Path, input.Name),
			name,
			getLabel(chip.Path, input.Name),
			util.RoundTo(input.GetValue(), 1),
		))
	}
	return result
}

func findSubFeature(subfeatures []gosensors.SubFeature, input gosensors.SubFeatureType) (gosensors.SubFeature, bool) {
	for _, a := range subfeatures {
		if a.Type == input {
			return a, true
		}
	}
	return gosensors.SubFeature{}, false
}

// getLabel reads the label of an input, falling back to the input name without its suffix
func getLabel(devicePath string, input string) string {
	labelPath := filepath.Join(devicePath, strings.TrimSuffix(input, "input")+"label")
	label, err := util.ReadStringFromFile(labelPath)
	if err != nil || len(label) <= 0 {
		label = strings.TrimSuffix(input, "_input")
	}
	return label
}

func chipName(chip gosensors.Chip) string {
	name := chip.Prefix
	if len(name) <= 0 {
		name, _ = util.ReadStringFromFile(filepath.Join(chip.Path, "name"))
	}
	if len(name) <= 0 {
		_, name = filepath.Split(chip.Path)
	}
	return name
}

func computeIdentifier(chip gosensors.Chip) string {
	identifier := chipName(chip)
	switch chip.Bus.Type {
	case BusTypeIsa:
		identifier = fmt.Sprintf("%s-isa-%04x", identifier, chip.Addr)
	case BusTypePci:
		identifier = fmt.Sprintf("%s-pci-%04x", identifier, chip.Addr)
	case BusTypeAcpi:
		identifier = fmt.Sprintf("%s-acpi-%d", identifier, chip.Bus.Nr)
	}
	return identifier
}

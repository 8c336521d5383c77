package hwmon

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/markusressel/nctfan/internal/util"
)

const (
	DefaultBasePath = "/sys/class/hwmon"
	DefaultChipName = "nct6779"
)

var ErrChipNotFound = errors.New("hwmon chip not found")

// Layout knows the attribute file names of a single hwmon chip directory
type Layout struct {
	Path string
	Name string
}

// NewLayout wraps an arbitrary chip directory, mostly useful for tests
func NewLayout(path string, name string) Layout {
	return Layout{Path: path, Name: name}
}

func (l Layout) attribute(format string, a ...interface{}) string {
	return filepath.Join(l.Path, fmt.Sprintf(format, a...))
}

func (l Layout) Pwm(channel int) string {
	return l.attribute("pwm%d", channel)
}

func (l Layout) PwmEnable(channel int) string {
	return l.attribute("pwm%d_enable", channel)
}

func (l Layout) PwmMode(channel int) string {
	return l.attribute("pwm%d_mode", channel)
}

func (l Layout) TempSelect(channel int) string {
	return l.attribute("pwm%d_temp_sel", channel)
}

func (l Layout) FanInput(channel int) string {
	return l.attribute("fan%d_input", channel)
}

func (l Layout) FanTarget(channel int) string {
	return l.attribute("fan%d_target", channel)
}

// AutoPointTemp is the temperature of a firmware curve point, in millidegrees
func (l Layout) AutoPointTemp(channel int, point int) string {
	return l.attribute("pwm%d_auto_point%d_temp", channel, point)
}

func (l Layout) AutoPointPwm(channel int, point int) string {
	return l.attribute("pwm%d_auto_point%d_pwm", channel, point)
}

func (l Layout) TempInput(index int) string {
	return l.attribute("temp%d_input", index)
}

func (l Layout) TempLabel(index int) string {
	return l.attribute("temp%d_label", index)
}

// FindChip scans basePath for an hwmon directory whose name attribute contains chipName
func FindChip(basePath string, chipName string) (Layout, error) {
	if len(basePath) <= 0 {
		basePath = DefaultBasePath
	}
	candidates, err := filepath.Glob(filepath.Join(basePath, "hwmon*"))
	if err != nil {
		return Layout{}, err
	}

	for _, candidate := range candidates {
		name, err := util.ReadStringFromFile(filepath.Join(candidate, "name"))
		if err != nil {
			continue
		}
		if strings.Contains(name, chipName) {
			return Layout{Path: candidate, Name: name}, nil
		}
	}

	return Layout{}, fmt.Errorf("%w: no '%s' below %s", ErrChipNotFound, chipName, basePath)
}

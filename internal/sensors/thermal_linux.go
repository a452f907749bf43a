//go:build linux

package sensors

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SysfsThermal reads a /sys/class/thermal zone (millidegrees Celsius).
type SysfsThermal struct {
	Path string // e.g. /sys/class/thermal/thermal_zone0/temp
}

func NewSysfsThermal(path string) *SysfsThermal {
	if path == "" {
		path = "/sys/class/thermal/thermal_zone0/temp"
	}
	return &SysfsThermal{Path: path}
}

func (t *SysfsThermal) ReadTemp() (float64, error) {
	b, err := os.ReadFile(t.Path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", t.Path, err)
	}
	return float64(v) / 1000.0, nil
}

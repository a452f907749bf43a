package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eruption-project/eruption-sub002/internal/device"
)

// Config is the daemon's persisted configuration. Malformed files are
// fatal at startup only; later failures fall back to built-in defaults.
type Config struct {
	FPS        int    `yaml:"fps"`
	FadeMS     int    `yaml:"fade_ms"`
	FaultLimit int    `yaml:"fault_limit"`
	ListenAddr string `yaml:"listen_addr"`
	Debug      bool   `yaml:"debug"`

	ScriptDir  string   `yaml:"script_dir"`
	ProfileDir string   `yaml:"profile_dir"`
	Slots      []string `yaml:"slots"` // profile file per slot, up to 4

	Serial      []device.SerialConfig `yaml:"serial,omitempty"`
	ThermalZone string                `yaml:"thermal_zone,omitempty"`
}

// Load reads the config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &c, nil
}

// Save writes the config back to path.
func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Package wsprconfig loads the YAML settings file mirroring the
// Configuration Surface table in spec.md §6, plus the ambient
// server/GPIO keys SPEC_FULL.md adds (control_port, shutdown_pin,
// led_pin, advertise_mdns).
//
// Grounded on the teacher's settings-file conventions (its own
// deviceid.go uses gopkg.in/yaml.v3 for a small persisted struct); this
// package generalizes that same library to a larger, validated config.
package wsprconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors spec.md §6's Configuration Surface table.
type Config struct {
	Mode         string   `yaml:"mode"` // "wspr" or "tone"
	Callsign     string   `yaml:"callsign"`
	GridSquare   string   `yaml:"grid_square"`
	PowerDBm     int      `yaml:"power_dbm"`
	Frequencies  []string `yaml:"frequencies"`
	PPM          float64  `yaml:"ppm"`
	UseNTP       bool     `yaml:"use_ntp"`
	UseOffset    bool     `yaml:"use_offset"`
	PowerLevel   int      `yaml:"power_level"` // pad drive strength, 0..7
	TxIterations int      `yaml:"tx_iterations"`
	LoopTx       bool     `yaml:"loop_tx"`
	TestTone     string   `yaml:"test_tone"` // band token or "0" for the sentinel

	// Ambient keys (SPEC_FULL.md §2 "Configuration").
	ControlPort   int    `yaml:"control_port"`
	StatusWSPort  int    `yaml:"status_ws_port"`
	ShutdownPin   int    `yaml:"shutdown_pin"`
	LEDPin        int    `yaml:"led_pin"`
	AdvertiseMDNS bool   `yaml:"advertise_mdns"`
	GPIOChip      string `yaml:"gpio_chip"`
	LockFile      string `yaml:"lock_file"`
	LogDir        string `yaml:"log_dir"`
}

// Default returns the settings the original program ships with out of
// the box: no callsign configured (the operator must supply one), WSPR
// mode, power level 7 (~10.6 dBm pad drive, spec.md §4.9), and the
// control server on port 8080 without mDNS.
func Default() Config {
	return Config{
		Mode:        "wspr",
		PowerLevel:   7,
		ControlPort:  8080,
		StatusWSPort: 8081,
		ShutdownPin:  19,
		LEDPin:      18,
		GPIOChip:    "/dev/gpiochip0",
		LockFile:    "/var/run/wsprrypi.lock",
		LogDir:      "/var/log/wsprrypi",
	}
}

// Load reads and parses path, applying Default() for any zero-valued
// ambient field the file omits.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("wsprconfig: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("wsprconfig: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports the first configuration error found, per spec.md §6's
// constraints on mode/callsign/locator/power.
func (c Config) Validate() error {
	if c.Mode != "wspr" && c.Mode != "tone" {
		return fmt.Errorf("wsprconfig: mode must be \"wspr\" or \"tone\", got %q", c.Mode)
	}
	if c.Mode == "wspr" {
		if c.Callsign == "" {
			return fmt.Errorf("wsprconfig: callsign is required in wspr mode")
		}
		if c.GridSquare == "" {
			return fmt.Errorf("wsprconfig: grid_square is required in wspr mode")
		}
	}
	if c.PowerLevel < 0 || c.PowerLevel > 7 {
		return fmt.Errorf("wsprconfig: power_level must be 0..7, got %d", c.PowerLevel)
	}
	if len(c.Frequencies) == 0 && c.Mode == "wspr" {
		return fmt.Errorf("wsprconfig: at least one entry in frequencies is required in wspr mode")
	}
	return nil
}

// Save writes cfg back to path as YAML. The control server has no command
// that calls it.
func Save(path string, cfg Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("wsprconfig: marshal: %w", err)
	}
	return os.WriteFile(path, raw, 0644)
}

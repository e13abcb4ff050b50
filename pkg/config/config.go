// Package config provides configuration for the engraver controller.
//
// Configuration is a single YAML file. Every value has a default matching
// the reference hardware (Arduino Uno pinout, 10.5788 steps per HPGL unit,
// 19050 steps of travel per axis), so an empty file is a valid config.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Pins   PinConfig    `yaml:"pins"`
	Motion MotionConfig `yaml:"motion"`
}

// SerialConfig configures the transport the controller serves on.
type SerialConfig struct {
	// Device is the serial device path (e.g. /dev/ttyUSB0).
	Device string `yaml:"device"`

	// Baud is the line rate. Default 115200.
	Baud int `yaml:"baud"`
}

// PinConfig assigns output pins.
type PinConfig struct {
	StepX  int `yaml:"step_x"`
	DirX   int `yaml:"dir_x"`
	StepY  int `yaml:"step_y"`
	DirY   int `yaml:"dir_y"`
	Enable int `yaml:"enable"`
	Laser  int `yaml:"laser"`
}

// MotionConfig holds the motion engine constants.
type MotionConfig struct {
	// StepsPerUnit converts HPGL length units to motor steps.
	StepsPerUnit float64 `yaml:"steps_per_unit"`

	// StepDelayUS is the fixed inter-step delay in microseconds; it sets
	// the feed rate.
	StepDelayUS int `yaml:"step_delay_us"`

	// PulseWidthUS is the step pulse hold time in microseconds. Must be
	// shorter than the inter-step delay.
	PulseWidthUS int `yaml:"pulse_width_us"`

	// MaxStepsX and MaxStepsY are the travel limits in steps.
	MaxStepsX int64 `yaml:"max_steps_x"`
	MaxStepsY int64 `yaml:"max_steps_y"`
}

// Default returns the configuration of the reference hardware.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Baud: 115200,
		},
		Pins: PinConfig{
			StepX:  2,
			DirX:   5,
			StepY:  3,
			DirY:   6,
			Enable: 8,
			Laser:  11,
		},
		Motion: MotionConfig{
			StepsPerUnit: 10.5788,
			StepDelayUS:  1200,
			PulseWidthUS: 10,
			MaxStepsX:    19050,
			MaxStepsY:    19050,
		},
	}
}

// Load reads and validates a config file. An empty path returns defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to a file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	def := Default()

	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}

	zero := PinConfig{}
	if c.Pins == zero {
		c.Pins = def.Pins
	}

	if c.Motion.StepsPerUnit == 0 {
		c.Motion.StepsPerUnit = def.Motion.StepsPerUnit
	}
	if c.Motion.StepDelayUS == 0 {
		c.Motion.StepDelayUS = def.Motion.StepDelayUS
	}
	if c.Motion.PulseWidthUS == 0 {
		c.Motion.PulseWidthUS = def.Motion.PulseWidthUS
	}
	if c.Motion.MaxStepsX == 0 {
		c.Motion.MaxStepsX = def.Motion.MaxStepsX
	}
	if c.Motion.MaxStepsY == 0 {
		c.Motion.MaxStepsY = def.Motion.MaxStepsY
	}
}

// Validate checks the configuration for values the controller cannot run with.
func (c *Config) Validate() error {
	if c.Motion.StepsPerUnit <= 0 {
		return fmt.Errorf("config: steps_per_unit must be positive, got %g", c.Motion.StepsPerUnit)
	}
	if c.Motion.MaxStepsX <= 0 || c.Motion.MaxStepsY <= 0 {
		return fmt.Errorf("config: travel limits must be positive, got (%d, %d)",
			c.Motion.MaxStepsX, c.Motion.MaxStepsY)
	}
	if c.Motion.PulseWidthUS >= c.Motion.StepDelayUS {
		return fmt.Errorf("config: pulse_width_us (%d) must be shorter than step_delay_us (%d)",
			c.Motion.PulseWidthUS, c.Motion.StepDelayUS)
	}
	if c.Motion.PulseWidthUS <= 0 || c.Motion.StepDelayUS <= 0 {
		return fmt.Errorf("config: step timings must be positive")
	}

	pins := []int{c.Pins.StepX, c.Pins.DirX, c.Pins.StepY, c.Pins.DirY, c.Pins.Enable, c.Pins.Laser}
	seen := make(map[int]bool, len(pins))
	for _, p := range pins {
		if p < 0 {
			return fmt.Errorf("config: pin numbers must be non-negative, got %d", p)
		}
		if seen[p] {
			return fmt.Errorf("config: pin %d assigned twice", p)
		}
		seen[p] = true
	}

	return nil
}

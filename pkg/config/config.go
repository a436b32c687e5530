// Package config loads the rig's YAML configuration file.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/aerovision-team/aerovision/go-controller/pkg/stepper"
)

const (
	DefaultStepDelay   = 0.01 // seconds
	DefaultStepsPerMMX = 80
	DefaultStepsPerMMZ = 100
)

// Driver backend kinds.
const (
	DriverMotorKit = "motorkit"
	DriverGPIO     = "gpio"
	DriverSerial   = "serial"
	DriverSim      = "sim"
)

type Calibration struct {
	StepsPerMMX float64 `yaml:"steps_per_mm_x"`
	StepsPerMMZ float64 `yaml:"steps_per_mm_z"`
}

// PinSet names the GPIO pins of one step/dir driver channel.
type PinSet struct {
	Step   string `yaml:"step"`
	Dir    string `yaml:"dir"`
	Enable string `yaml:"enable"`
}

type Driver struct {
	Kind       string            `yaml:"kind"`
	I2CDevice  string            `yaml:"i2c_device"`
	SerialPort string            `yaml:"serial_port"`
	Pins       map[string]PinSet `yaml:"pins"`
}

type Config struct {
	StepStyle string `yaml:"step_style"`
	// StepDelay is the pause between step groups in seconds.  A
	// pointer so that an explicit 0 is distinguishable from absent.
	StepDelay   *float64       `yaml:"step_delay"`
	Calibration *Calibration   `yaml:"calibration"`
	Motors      map[string]int `yaml:"motors"`
	Driver      Driver         `yaml:"driver"`

	// Style is StepStyle parsed; filled in by Load.
	Style stepper.Style `yaml:"-"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.StepStyle == "" {
		c.StepStyle = "SINGLE"
	}
	style, err := stepper.ParseStyle(c.StepStyle)
	if err != nil {
		return err
	}
	c.Style = style

	if c.StepDelay == nil {
		delay := float64(DefaultStepDelay)
		c.StepDelay = &delay
	} else if *c.StepDelay < 0 {
		return errors.Errorf("step_delay must be >= 0, got %v", *c.StepDelay)
	}

	// The calibration block is required; fields within it default.
	if c.Calibration == nil {
		return errors.New("config has no calibration block")
	}
	if c.Calibration.StepsPerMMX == 0 {
		c.Calibration.StepsPerMMX = DefaultStepsPerMMX
	}
	if c.Calibration.StepsPerMMZ == 0 {
		c.Calibration.StepsPerMMZ = DefaultStepsPerMMZ
	}
	if c.Calibration.StepsPerMMX < 0 || c.Calibration.StepsPerMMZ < 0 {
		return errors.Errorf("steps_per_mm must be > 0, got x=%v z=%v",
			c.Calibration.StepsPerMMX, c.Calibration.StepsPerMMZ)
	}

	if c.Driver.Kind == "" {
		c.Driver.Kind = DriverSim
	}
	switch c.Driver.Kind {
	case DriverMotorKit, DriverGPIO, DriverSerial, DriverSim:
	default:
		return errors.Errorf("unknown driver kind %q", c.Driver.Kind)
	}

	return nil
}

// Delay returns the inter-step pause as a duration.
func (c *Config) Delay() time.Duration {
	if c.StepDelay == nil {
		return time.Duration(DefaultStepDelay * float64(time.Second))
	}
	return time.Duration(*c.StepDelay * float64(time.Second))
}

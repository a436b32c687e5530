// Package gpiostepper drives an external step/dir stepper driver
// (A4988, DRV8825 and friends) through GPIO pins.  Microstepping is
// set by the driver's mode pins, so the requested step style is
// ignored here.
package gpiostepper

import (
	"time"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/aerovision-team/aerovision/go-controller/pkg/stepper"
)

const defaultPulseWidth = 500 * time.Microsecond

type Config struct {
	StepPin string
	DirPin  string
	// EnablePin is optional; active low on the usual driver boards.
	EnablePin string
	// PulseWidth is the width of each half of the step pulse.
	PulseWidth time.Duration
}

type Stepper struct {
	step   gpio.PinIO
	dir    gpio.PinIO
	enable gpio.PinIO
	width  time.Duration
}

var hostReady bool

// Open looks up the configured pins and enables the driver.
func Open(cfg Config) (*Stepper, error) {
	if !hostReady {
		if _, err := host.Init(); err != nil {
			return nil, errors.Wrap(err, "initializing GPIO host")
		}
		hostReady = true
	}

	s := &Stepper{width: cfg.PulseWidth}
	if s.width <= 0 {
		s.width = defaultPulseWidth
	}

	if s.step = gpioreg.ByName(cfg.StepPin); s.step == nil {
		return nil, errors.Errorf("no such GPIO pin %q", cfg.StepPin)
	}
	if s.dir = gpioreg.ByName(cfg.DirPin); s.dir == nil {
		return nil, errors.Errorf("no such GPIO pin %q", cfg.DirPin)
	}
	if err := s.step.Out(gpio.Low); err != nil {
		return nil, errors.Wrap(err, "claiming step pin")
	}
	if err := s.dir.Out(gpio.Low); err != nil {
		return nil, errors.Wrap(err, "claiming dir pin")
	}

	if cfg.EnablePin != "" {
		if s.enable = gpioreg.ByName(cfg.EnablePin); s.enable == nil {
			return nil, errors.Errorf("no such GPIO pin %q", cfg.EnablePin)
		}
		// Active low: drive low to enable the bridge.
		if err := s.enable.Out(gpio.Low); err != nil {
			return nil, errors.Wrap(err, "claiming enable pin")
		}
	}

	return s, nil
}

var _ stepper.Motor = (*Stepper)(nil)

func (s *Stepper) OneStep(style stepper.Style, dir stepper.Direction) error {
	level := gpio.High
	if dir == stepper.Backward {
		level = gpio.Low
	}
	if err := s.dir.Out(level); err != nil {
		return errors.Wrap(err, "setting direction")
	}

	if err := s.step.Out(gpio.High); err != nil {
		return errors.Wrap(err, "raising step pin")
	}
	time.Sleep(s.width)
	if err := s.step.Out(gpio.Low); err != nil {
		return errors.Wrap(err, "lowering step pin")
	}
	time.Sleep(s.width)
	return nil
}

// Close disables the driver if an enable pin was configured.
func (s *Stepper) Close() error {
	if s.enable == nil {
		return nil
	}
	return s.enable.Out(gpio.High)
}

// Package stepper defines the one-microstep capability that every motor
// backend provides, plus the direction and step-style vocabulary shared
// by the config and motion packages.
package stepper

import (
	"fmt"

	"github.com/pkg/errors"
)

type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "BACKWARD"
	}
	return "FORWARD"
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == Backward {
		return Forward
	}
	return Backward
}

type Style int

const (
	Single Style = iota
	Double
	Interleave
	Microstep
)

func (s Style) String() string {
	switch s {
	case Single:
		return "SINGLE"
	case Double:
		return "DOUBLE"
	case Interleave:
		return "INTERLEAVE"
	case Microstep:
		return "MICROSTEP"
	}
	return fmt.Sprintf("Style(%d)", int(s))
}

func ParseStyle(name string) (Style, error) {
	switch name {
	case "SINGLE":
		return Single, nil
	case "DOUBLE":
		return Double, nil
	case "INTERLEAVE":
		return Interleave, nil
	case "MICROSTEP":
		return Microstep, nil
	}
	return Single, errors.Errorf("unknown step style %q", name)
}

// Motor is one physical (or simulated) stepper channel.  OneStep issues
// exactly one microstep transition; pacing between steps is the caller's
// job.
type Motor interface {
	OneStep(style Style, dir Direction) error
}

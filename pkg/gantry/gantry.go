// Package gantry is the motion core for the two-axis rig: two ganged
// motors drive X, one drives Z.  It translates millimeter moves into
// paced sequences of synchronized microsteps and tracks the logical
// position.
//
// Position is an open-loop estimate.  There is no feedback channel, so
// it is the running sum of the moves that were issued; it can drift
// from physical truth if a move is interrupted mid-sequence.
package gantry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/aerovision-team/aerovision/go-controller/pkg/config"
	"github.com/aerovision-team/aerovision/go-controller/pkg/stepper"
)

type Axis int

const (
	AxisX Axis = iota
	AxisZ
)

func (a Axis) String() string {
	if a == AxisZ {
		return "Z"
	}
	return "X"
}

// Motor names the rig knows about.
const (
	MotorXLeft  = "x_left"
	MotorXRight = "x_right"
	MotorZAxis  = "z_axis"
)

var motorNames = []string{MotorXLeft, MotorXRight, MotorZAxis}

var (
	xGroup = []string{MotorXLeft, MotorXRight}
	zGroup = []string{MotorZAxis}
)

// Position is the logical location of the carriage in millimeters.
type Position struct {
	X float64
	Z float64
}

// Binding records whether a motor name resolved to real hardware or was
// degraded to the simulated backend.
type Binding int

const (
	Bound Binding = iota
	Simulated
)

func (b Binding) String() string {
	if b == Simulated {
		return "simulated"
	}
	return "bound"
}

// Gantry is single-threaded: a move blocks its caller for the whole
// step sequence and there is no internal locking, so callers must
// serialize moves themselves.
type Gantry struct {
	style       stepper.Style
	delay       time.Duration
	stepsPerMMX float64
	stepsPerMMZ float64

	motors   map[string]stepper.Motor
	bindings map[string]Binding

	pos Position

	// sleep paces the step groups; tests swap in a no-op.
	sleep func(time.Duration)
}

// New binds the rig's motor names to the supplied backends.  A name
// with no backend (missing or nil map entry) degrades to a simulated
// motor with a warning rather than failing construction.
func New(cfg *config.Config, motors map[string]stepper.Motor) *Gantry {
	g := &Gantry{
		style:       cfg.Style,
		delay:       cfg.Delay(),
		stepsPerMMX: cfg.Calibration.StepsPerMMX,
		stepsPerMMZ: cfg.Calibration.StepsPerMMZ,
		motors:      map[string]stepper.Motor{},
		bindings:    map[string]Binding{},
		sleep:       time.Sleep,
	}
	for _, name := range motorNames {
		if m := motors[name]; m != nil {
			g.motors[name] = m
			g.bindings[name] = Bound
			continue
		}
		fmt.Printf("WARNING: no hardware channel for motor %q, degrading to simulated\n", name)
		g.motors[name] = stepper.Sim(name)
		g.bindings[name] = Simulated
	}
	return g
}

// MotorNames lists the rig's motors in a fixed order.
func (g *Gantry) MotorNames() []string {
	return append([]string(nil), motorNames...)
}

// Binding reports how a motor name was resolved at construction.
func (g *Gantry) Binding(name string) Binding {
	return g.bindings[name]
}

func (g *Gantry) Position() Position {
	return g.pos
}

// ResetPosition zeroes the logical position without issuing any motion.
// This is "home" in bookkeeping terms only.
func (g *Gantry) ResetPosition() {
	g.pos = Position{}
}

// MoveX moves both X motors by mm (positive = right).
func (g *Gantry) MoveX(ctx context.Context, mm float64) error {
	return g.MoveAxis(ctx, AxisX, mm)
}

// MoveZ moves the Z motor by mm (positive = up).
func (g *Gantry) MoveZ(ctx context.Context, mm float64) error {
	return g.MoveAxis(ctx, AxisZ, mm)
}

// MoveAxis moves one axis by a signed millimeter distance.  The
// distance is quantized to the nearest whole step for the motors, but
// the logical position advances by the exact requested millimeters;
// that asymmetry keeps many small moves from accumulating rounding
// drift.  A zero-step request does nothing at all.
//
// The context is checked between step groups.  A cancelled move stops
// stepping and does not commit the position delta.
func (g *Gantry) MoveAxis(ctx context.Context, axis Axis, mm float64) error {
	var group []string
	var stepsPerMM float64
	switch axis {
	case AxisX:
		group, stepsPerMM = xGroup, g.stepsPerMMX
	case AxisZ:
		group, stepsPerMM = zGroup, g.stepsPerMMZ
	default:
		return errors.Errorf("unknown axis %v", axis)
	}

	steps := mmToSteps(mm, stepsPerMM)
	if steps == 0 {
		return nil
	}
	dir := directionOf(steps)

	failed := 0
	for i := 0; i < abs(steps); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		failed += g.stepGroup(group, dir)
	}

	switch axis {
	case AxisX:
		g.pos.X += mm
	case AxisZ:
		g.pos.Z += mm
	}
	return stepErrors(failed, abs(steps)*len(group))
}

// MoveTo moves both axes from the current position to (x, z) mm along
// an approximately straight line, interleaving the two axes' step
// groups with a Bresenham accumulator so their rates match the ratio
// of their step counts.  Each step group gets its own pacing delay, so
// an iteration that steps both axes waits twice.
//
// On completion the logical position is set to exactly (x, z), not
// accumulated from the quantized steps.
func (g *Gantry) MoveTo(ctx context.Context, x, z float64) error {
	dx := x - g.pos.X
	dz := z - g.pos.Z
	xSteps := mmToSteps(dx, g.stepsPerMMX)
	zSteps := mmToSteps(dz, g.stepsPerMMZ)
	if xSteps == 0 && zSteps == 0 {
		return nil
	}
	sx := directionOf(xSteps)
	sz := directionOf(zSteps)
	xSteps = abs(xSteps)
	zSteps = abs(zSteps)

	failed, total := 0, 0
	diff := xSteps - zSteps
	for xDone, zDone := 0, 0; xDone < xSteps || zDone < zSteps; {
		if err := ctx.Err(); err != nil {
			return err
		}
		e2 := diff * 2
		if xDone < xSteps && e2 > -zSteps {
			failed += g.stepGroup(xGroup, sx)
			total += len(xGroup)
			diff -= zSteps
			xDone++
		}
		if zDone < zSteps && e2 < xSteps {
			failed += g.stepGroup(zGroup, sz)
			total += len(zGroup)
			diff += xSteps
			zDone++
		}
	}

	g.pos = Position{X: x, Z: z}
	return stepErrors(failed, total)
}

// Jog steps one named motor directly, bypassing position bookkeeping.
// It exists for the motor test console; jogging is how you find out
// which way things actually move.
func (g *Gantry) Jog(ctx context.Context, name string, steps int) error {
	m, ok := g.motors[name]
	if !ok {
		return errors.Errorf("unknown motor %q", name)
	}
	dir := directionOf(steps)
	failed := 0
	for i := 0; i < abs(steps); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.OneStep(g.style, dir); err != nil {
			fmt.Printf("Step failed on %q: %v\n", name, err)
			failed++
		}
		g.sleep(g.delay)
	}
	return stepErrors(failed, abs(steps))
}

// stepGroup steps the named motors in sync, then waits out the pacing
// delay.  Step failures are logged and counted, not propagated; the
// sequence always runs to completion.
func (g *Gantry) stepGroup(names []string, dir stepper.Direction) int {
	failed := 0
	for _, name := range names {
		if err := g.motors[name].OneStep(g.style, dir); err != nil {
			fmt.Printf("Step failed on %q: %v\n", name, err)
			failed++
		}
	}
	g.sleep(g.delay)
	return failed
}

// mmToSteps quantizes a millimeter distance to whole motor steps,
// rounding half away from zero.
func mmToSteps(mm, stepsPerMM float64) int {
	return int(math.Round(mm * stepsPerMM))
}

func directionOf(steps int) stepper.Direction {
	if steps < 0 {
		return stepper.Backward
	}
	return stepper.Forward
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func stepErrors(failed, total int) error {
	if failed == 0 {
		return nil
	}
	return errors.Errorf("%d of %d step commands failed", failed, total)
}

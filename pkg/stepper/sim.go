package stepper

import "fmt"

// SimMotor stands in for a motor when no hardware channel could be
// bound.  Every step succeeds; the call is logged and counted so tools
// and tests can see what would have moved.
type SimMotor struct {
	Name string

	ForwardSteps  int
	BackwardSteps int

	// Quiet suppresses the per-step log line.  The counters still
	// update.
	Quiet bool
}

func Sim(name string) *SimMotor {
	return &SimMotor{Name: name}
}

var _ Motor = (*SimMotor)(nil)

func (m *SimMotor) OneStep(style Style, dir Direction) error {
	if dir == Backward {
		m.BackwardSteps++
	} else {
		m.ForwardSteps++
	}
	if !m.Quiet {
		fmt.Printf("SIM: step motor %q dir=%v style=%v\n", m.Name, dir, style)
	}
	return nil
}

// Steps returns the net step count (forward minus backward).
func (m *SimMotor) Steps() int {
	return m.ForwardSteps - m.BackwardSteps
}

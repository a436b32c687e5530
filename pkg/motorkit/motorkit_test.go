package motorkit

import (
	"testing"

	"github.com/aerovision-team/aerovision/go-controller/pkg/stepper"
)

type regWrite struct {
	reg  byte
	data []byte
}

type fakeDevice struct {
	writes []regWrite
}

func (f *fakeDevice) WriteReg(reg byte, buf []byte) error {
	f.writes = append(f.writes, regWrite{reg, append([]byte(nil), buf...)})
	return nil
}

func (f *fakeDevice) Close() error { return nil }

// onChannels decodes the recorded LED register writes into the set of
// PWM channels currently driven fully on.
func (f *fakeDevice) onChannels() map[int]bool {
	on := map[int]bool{}
	for _, w := range f.writes {
		if w.reg < RegLEDBase {
			continue
		}
		ch := (int(w.reg) - RegLEDBase) / 4
		on[ch] = len(w.data) == 4 && w.data[1] == 0x10
	}
	for ch, isOn := range on {
		if !isOn {
			delete(on, ch)
		}
	}
	return on
}

func newTestStepper(t *testing.T) (*fakeDevice, stepper.Motor) {
	t.Helper()
	dev := &fakeDevice{}
	kit := &Kit{dev: dev}
	m, err := kit.Stepper(1)
	if err != nil {
		t.Fatalf("Stepper(1) failed: %v", err)
	}
	return dev, m
}

func TestStepperEnablesBridges(t *testing.T) {
	dev, _ := newTestStepper(t)
	on := dev.onChannels()
	if !on[8] || !on[13] {
		t.Fatalf("Expected bridge PWM channels 8 and 13 on, got %v", on)
	}
}

func TestUnknownChannelRejected(t *testing.T) {
	kit := &Kit{dev: &fakeDevice{}}
	if _, err := kit.Stepper(3); err == nil {
		t.Fatal("Expected Stepper(3) to fail")
	}
}

func TestSingleStepSequence(t *testing.T) {
	dev, m := newTestStepper(t)

	// Single stepping walks the one-coil entries of the drive
	// sequence; stepper 1's coils in sequence order are channels
	// 9, 11, 10, 12.
	for i, wantCoil := range []int{11, 10, 12, 9} {
		dev.writes = nil
		if err := m.OneStep(stepper.Single, stepper.Forward); err != nil {
			t.Fatalf("OneStep failed: %v", err)
		}
		on := dev.onChannels()
		if len(on) != 1 || !on[wantCoil] {
			t.Fatalf("Step %v: expected only coil channel %v on, got %v", i, wantCoil, on)
		}
	}
}

func TestSingleStepBackward(t *testing.T) {
	dev, m := newTestStepper(t)
	dev.writes = nil
	if err := m.OneStep(stepper.Single, stepper.Backward); err != nil {
		t.Fatalf("OneStep failed: %v", err)
	}
	on := dev.onChannels()
	if len(on) != 1 || !on[12] {
		t.Fatalf("Expected backward step to energize channel 12, got %v", on)
	}
}

func TestInterleaveHalfSteps(t *testing.T) {
	dev, m := newTestStepper(t)
	dev.writes = nil
	if err := m.OneStep(stepper.Interleave, stepper.Forward); err != nil {
		t.Fatalf("OneStep failed: %v", err)
	}
	on := dev.onChannels()
	if len(on) != 2 || !on[9] || !on[11] {
		t.Fatalf("Expected half step to energize channels 9 and 11, got %v", on)
	}
}

func TestDoubleStepUsesTwoCoils(t *testing.T) {
	dev, m := newTestStepper(t)
	dev.writes = nil
	if err := m.OneStep(stepper.Double, stepper.Forward); err != nil {
		t.Fatalf("OneStep failed: %v", err)
	}
	on := dev.onChannels()
	if len(on) != 2 || !on[11] || !on[10] {
		t.Fatalf("Expected double step to energize channels 11 and 10, got %v", on)
	}
}

func TestReleaseDeEnergizes(t *testing.T) {
	dev, m := newTestStepper(t)
	if err := m.OneStep(stepper.Single, stepper.Forward); err != nil {
		t.Fatalf("OneStep failed: %v", err)
	}

	kit := &Kit{dev: dev}
	if err := kit.Release(1); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if on := dev.onChannels(); len(on) != 0 {
		t.Fatalf("Expected all channels off after release, got %v", on)
	}
}

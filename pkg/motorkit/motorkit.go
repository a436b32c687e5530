// Package motorkit drives the Adafruit MotorKit stepper HAT.  The HAT
// is a PCA9685 16-channel PWM controller at 0x60 feeding two TB6612
// dual H-bridges, giving two stepper channels.
package motorkit

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"

	"github.com/aerovision-team/aerovision/go-controller/pkg/stepper"
)

const (
	KitAddr = 0x60

	RegMode1 = 0x00
	RegMode2 = 0x01

	// Each PWM output has two 16-bit (low byte first) registers.
	// First register is the on time, second is the off time.
	RegLEDBase = 0x06

	RegPreScale = 0xfe // Pre-scaler for PWM frequency.

	// Pre-scale value for ~1.6kHz, the rate the TB6612 bridges are
	// happy with: 25MHz / (4096 * 1600) - 1.
	preScale1600Hz = 0x03
)

// PCA9685 channel assignments on the MotorKit board, per stepper.  The
// coil channels are listed in drive-sequence order (AIN2, BIN1, AIN1,
// BIN2); the pwm channels gate the two bridges and are held fully on.
var steppers = map[int]struct {
	pwm   [2]int
	coils [4]int
}{
	1: {pwm: [2]int{8, 13}, coils: [4]int{9, 11, 10, 12}},
	2: {pwm: [2]int{2, 7}, coils: [4]int{3, 5, 4, 6}},
}

// One electrical revolution of the coil drive sequence in half-steps.
// Bit i energizes coil i.  Even entries power one coil (SINGLE), odd
// entries power two (DOUBLE); stepping through all eight interleaves.
var coilSeq = [8]byte{
	0b0001,
	0b0011,
	0b0010,
	0b0110,
	0b0100,
	0b1100,
	0b1000,
	0b1001,
}

// i2cDevice is the slice of *i2c.Device that the kit uses; tests swap
// in a recording fake.
type i2cDevice interface {
	WriteReg(reg byte, buf []byte) error
	Close() error
}

type Kit struct {
	dev i2cDevice
}

func Open(deviceFile string) (*Kit, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, KitAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening MotorKit on %v", deviceFile)
	}
	k := &Kit{dev: dev}
	if err := k.configure(); err != nil {
		dev.Close()
		return nil, errors.Wrap(err, "configuring MotorKit")
	}
	return k, nil
}

func (k *Kit) configure() (err error) {
	// Put device to sleep.
	err = k.dev.WriteReg(RegMode1, []byte{0x11})
	if err != nil {
		return
	}
	// Update pre-scaler while asleep.
	err = k.dev.WriteReg(RegPreScale, []byte{preScale1600Hz})
	if err != nil {
		return
	}
	// Trigger a reset.
	err = k.dev.WriteReg(RegMode1, []byte{0x01})
	if err != nil {
		return
	}
	// Required delay after reset.
	time.Sleep(1 * time.Millisecond)
	// Enable with auto-increment.
	err = k.dev.WriteReg(RegMode1, []byte{0x81})
	return
}

// Stepper returns the motor bound to kit channel n (1 or 2).  The
// bridge PWM gates are switched fully on; coils stay de-energized until
// the first step.
func (k *Kit) Stepper(n int) (stepper.Motor, error) {
	layout, ok := steppers[n]
	if !ok {
		return nil, errors.Errorf("MotorKit has no stepper channel %v", n)
	}
	for _, ch := range layout.pwm {
		if err := k.setFull(ch, true); err != nil {
			return nil, errors.Wrapf(err, "enabling stepper %v", n)
		}
	}
	return &kitStepper{kit: k, coils: layout.coils}, nil
}

// Release de-energizes stepper channel n so it can spin freely.
func (k *Kit) Release(n int) error {
	layout, ok := steppers[n]
	if !ok {
		return errors.Errorf("MotorKit has no stepper channel %v", n)
	}
	for _, ch := range layout.coils {
		if err := k.setFull(ch, false); err != nil {
			return err
		}
	}
	for _, ch := range layout.pwm {
		if err := k.setFull(ch, false); err != nil {
			return err
		}
	}
	return nil
}

func (k *Kit) Close() error {
	return k.dev.Close()
}

// setFull drives a PWM channel fully on or fully off using the LEDn
// full-on/full-off bits.
func (k *Kit) setFull(channel int, on bool) error {
	if channel < 0 || channel > 15 {
		fmt.Println("PWM channel out of range: ", channel)
		return nil
	}
	addr := RegLEDBase + channel*4
	if on {
		return k.dev.WriteReg(byte(addr), []byte{0x00, 0x10, 0x00, 0x00})
	}
	return k.dev.WriteReg(byte(addr), []byte{0x00, 0x00, 0x00, 0x10})
}

type kitStepper struct {
	kit   *Kit
	coils [4]int
	phase int // index into coilSeq
}

var _ stepper.Motor = (*kitStepper)(nil)

func (s *kitStepper) OneStep(style stepper.Style, dir stepper.Direction) error {
	sign := 1
	if dir == stepper.Backward {
		sign = -1
	}

	delta := sign
	if style == stepper.Single || style == stepper.Double {
		delta = 2 * sign
	}
	// TODO: drive MICROSTEP with a per-coil sine table rather than
	// reusing the interleave sequence.

	next := (s.phase + delta + len(coilSeq)) % len(coilSeq)
	// Full-step styles own one parity of the half-step sequence;
	// realign after a style switch.
	if (style == stepper.Single && next%2 == 1) ||
		(style == stepper.Double && next%2 == 0) {
		next = (next + sign + len(coilSeq)) % len(coilSeq)
	}

	pattern := coilSeq[next]
	for i, ch := range s.coils {
		if err := s.kit.setFull(ch, pattern&(1<<uint(i)) != 0); err != nil {
			return errors.Wrapf(err, "writing coil %v", ch)
		}
	}
	s.phase = next
	return nil
}

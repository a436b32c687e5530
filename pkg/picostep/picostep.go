// Package picostep talks to a small companion MCU that owns the motor
// coils directly.  The protocol is line based: one command per line,
// the MCU answers "ok" (or an error string) per command.
//
// Commands:
//
//	ID              identification; replies "<< name >>" then "ok"
//	ST <ch> <F|B>   one microstep on channel ch
package picostep

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/aerovision-team/aerovision/go-controller/pkg/stepper"
)

type Driver struct {
	port serial.Port
}

func Open(portName string) (*Driver, error) {
	mode := serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, &mode)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %v", portName)
	}

	// The MCU must answer any command within a couple of seconds.
	port.SetReadTimeout(2 * time.Second)

	d := &Driver{port: port}

	banner, err := d.sendCommandWithReply("ID")
	if err != nil {
		port.Close()
		return nil, errors.Wrap(err, "identifying step controller")
	}
	if !strings.HasPrefix(banner, "<<") || !strings.HasSuffix(banner, ">>") {
		port.Close()
		return nil, errors.Errorf("unexpected identification %q", banner)
	}
	fmt.Println("Connected to step controller:", banner)

	return d, nil
}

func (d *Driver) Close() error {
	return d.port.Close()
}

// Motor returns the stepper bound to MCU channel n.
func (d *Driver) Motor(n int) stepper.Motor {
	return &serialStepper{driver: d, channel: n}
}

func (d *Driver) emitCommand(format string, a ...any) error {
	out := fmt.Sprintf(format, a...) + "\r"
	_, err := d.port.Write([]byte(out))
	return err
}

func (d *Driver) awaitReply() (string, error) {
	buf := []byte{0}
	out := []byte{}

	for {
		n, err := d.port.Read(buf)
		if err != nil {
			return "", err
		}
		if n != 1 {
			return "", errors.New("timed out waiting for reply")
		}
		if buf[0] == '\r' {
			continue
		}
		if buf[0] == '\n' {
			break
		}
		out = append(out, buf[0])
	}

	return string(out), nil
}

func (d *Driver) sendCommand(format string, a ...any) error {
	if err := d.emitCommand(format, a...); err != nil {
		return err
	}
	ack, err := d.awaitReply()
	if err != nil {
		return err
	}
	if ack != "ok" {
		return errors.Errorf("expected 'ok', got %q", ack)
	}
	return nil
}

func (d *Driver) sendCommandWithReply(format string, a ...any) (string, error) {
	if err := d.emitCommand(format, a...); err != nil {
		return "", err
	}
	reply, err := d.awaitReply()
	if err != nil {
		return "", err
	}
	ack, err := d.awaitReply()
	if err != nil {
		return "", err
	}
	if ack != "ok" {
		return "", errors.Errorf("expected 'ok', got %q", ack)
	}
	return reply, nil
}

type serialStepper struct {
	driver  *Driver
	channel int
}

var _ stepper.Motor = (*serialStepper)(nil)

func (s *serialStepper) OneStep(style stepper.Style, dir stepper.Direction) error {
	// The MCU fixes the drive style at flash time, so only the
	// direction goes over the wire.
	code := "F"
	if dir == stepper.Backward {
		code = "B"
	}
	return s.driver.sendCommand("ST %d %s", s.channel, code)
}

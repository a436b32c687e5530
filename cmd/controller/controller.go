package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aerovision-team/aerovision/go-controller/pkg/config"
	"github.com/aerovision-team/aerovision/go-controller/pkg/gantry"
	"github.com/aerovision-team/aerovision/go-controller/pkg/gpiostepper"
	"github.com/aerovision-team/aerovision/go-controller/pkg/motorkit"
	"github.com/aerovision-team/aerovision/go-controller/pkg/picostep"
	"github.com/aerovision-team/aerovision/go-controller/pkg/stepper"
)

func main() {
	fmt.Print("---- AeroVision rig ----\n\n")

	configPath := flag.String("config", "config/config.yaml", "path to the rig config file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	registerSignalHandlers(cancel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalln("Failed to load config:", err)
	}
	fmt.Printf("Step style %v, step delay %v, %v steps/mm X, %v steps/mm Z\n",
		cfg.Style, cfg.Delay(), cfg.Calibration.StepsPerMMX, cfg.Calibration.StepsPerMMZ)

	motors, cleanup := openMotors(cfg)
	defer cleanup()

	g := gantry.New(cfg, motors)
	for _, name := range g.MotorNames() {
		fmt.Printf("Motor %-8s %v\n", name, g.Binding(name))
	}

	runConsole(ctx, g)
}

func registerSignalHandlers(cancel context.CancelFunc) {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.Println("Signal: ", s)
		cancel()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()
}

// openMotors resolves the configured backend into per-motor channels.
// Any failure here is a warning, not an error: unresolved motors come
// back nil and the gantry degrades them to simulated channels.
func openMotors(cfg *config.Config) (map[string]stepper.Motor, func()) {
	noop := func() {}

	switch cfg.Driver.Kind {
	case config.DriverMotorKit:
		dev := cfg.Driver.I2CDevice
		if dev == "" {
			dev = "/dev/i2c-1"
		}
		kit, err := motorkit.Open(dev)
		if err != nil {
			fmt.Println("Failed to open MotorKit:", err)
			return nil, noop
		}
		motors := map[string]stepper.Motor{}
		for name, channel := range cfg.Motors {
			m, err := kit.Stepper(channel)
			if err != nil {
				fmt.Printf("Failed to bind %q to kit channel %v: %v\n", name, channel, err)
				continue
			}
			motors[name] = m
		}
		return motors, func() { kit.Close() }

	case config.DriverGPIO:
		motors := map[string]stepper.Motor{}
		var closers []*gpiostepper.Stepper
		for name, pins := range cfg.Driver.Pins {
			s, err := gpiostepper.Open(gpiostepper.Config{
				StepPin:   pins.Step,
				DirPin:    pins.Dir,
				EnablePin: pins.Enable,
			})
			if err != nil {
				fmt.Printf("Failed to bind %q to pins %+v: %v\n", name, pins, err)
				continue
			}
			motors[name] = s
			closers = append(closers, s)
		}
		return motors, func() {
			for _, s := range closers {
				s.Close()
			}
		}

	case config.DriverSerial:
		drv, err := picostep.Open(cfg.Driver.SerialPort)
		if err != nil {
			fmt.Println("Failed to open step controller:", err)
			return nil, noop
		}
		motors := map[string]stepper.Motor{}
		for name, channel := range cfg.Motors {
			motors[name] = drv.Motor(channel)
		}
		return motors, func() { drv.Close() }
	}

	// Simulated rig: every motor degrades in gantry.New.
	return nil, noop
}

func runConsole(ctx context.Context, g *gantry.Gantry) {
	fmt.Println("\nCommands: x <mm> | z <mm> | goto <x> <z> | pos | home | q")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "q", "quit", "exit":
			return
		case "pos":
		case "home":
			g.ResetPosition()
		case "x", "z":
			if len(fields) != 2 {
				fmt.Println("Usage:", fields[0], "<mm>")
				continue
			}
			mm, perr := strconv.ParseFloat(fields[1], 64)
			if perr != nil {
				fmt.Println("Not a number:", fields[1])
				continue
			}
			if fields[0] == "x" {
				err = g.MoveX(ctx, mm)
			} else {
				err = g.MoveZ(ctx, mm)
			}
		case "goto":
			if len(fields) != 3 {
				fmt.Println("Usage: goto <x> <z>")
				continue
			}
			x, xerr := strconv.ParseFloat(fields[1], 64)
			z, zerr := strconv.ParseFloat(fields[2], 64)
			if xerr != nil || zerr != nil {
				fmt.Println("Not numbers:", fields[1], fields[2])
				continue
			}
			err = g.MoveTo(ctx, x, z)
		default:
			fmt.Println("Unknown command:", fields[0])
			continue
		}

		if err != nil {
			fmt.Println("Move failed:", err)
		}
		pos := g.Position()
		fmt.Printf("Position: X=%.2f mm, Z=%.2f mm\n", pos.X, pos.Z)
	}
}

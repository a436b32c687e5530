// Interactive console for spinning individual motors, for wiring
// validation and calibration.  Pick a motor by index, give it a signed
// step count, watch (or hear) what happens.
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
	"syscall"
	"time"

	"github.com/aerovision-team/aerovision/go-controller/pkg/config"
	"github.com/aerovision-team/aerovision/go-controller/pkg/gantry"
	"github.com/aerovision-team/aerovision/go-controller/pkg/motorkit"
	"github.com/aerovision-team/aerovision/go-controller/pkg/stepper"
)

func main() {
	fmt.Print("---- Motor test ----\n\n")

	configPath := flag.String("config", "config/config.yaml", "path to the rig config file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.Println("Signal: ", s)
		cancel()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalln("Failed to load config:", err)
	}

	// This tool drives the rig's own HAT; with any other (or no)
	// backend configured the motors degrade to simulated channels,
	// which is still useful for checking the step arithmetic.
	motors := map[string]stepper.Motor{}
	if cfg.Driver.Kind == config.DriverMotorKit {
		dev := cfg.Driver.I2CDevice
		if dev == "" {
			dev = "/dev/i2c-1"
		}
		if kit, err := motorkit.Open(dev); err != nil {
			fmt.Println("Failed to open MotorKit:", err)
		} else {
			defer kit.Close()
			for name, channel := range cfg.Motors {
				if m, err := kit.Stepper(channel); err == nil {
					motors[name] = m
				} else {
					fmt.Printf("Failed to bind %q: %v\n", name, err)
				}
			}
		}
	}
	g := gantry.New(cfg, motors)

	names := g.MotorNames()
	fmt.Println("Available motors:")
	for i, name := range names {
		fmt.Printf("  %d: %s (%v)\n", i, name, g.Binding(name))
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Select motor index to test (or 'q' to quit): ")
		if !scanner.Scan() {
			return
		}
		choice := scanner.Text()
		if choice == "q" || choice == "quit" || choice == "exit" {
			fmt.Println("Exiting motor test.")
			return
		}
		idx, err := strconv.Atoi(choice)
		if err != nil || idx < 0 || idx >= len(names) {
			fmt.Println("Invalid selection. Try again.")
			continue
		}
		name := names[idx]

		fmt.Print("Enter number of steps (positive for FORWARD, negative for BACKWARD): ")
		if !scanner.Scan() {
			return
		}
		steps, err := strconv.Atoi(scanner.Text())
		if err != nil {
			fmt.Println("Invalid step count. Enter an integer.")
			continue
		}

		fmt.Printf("Stepping motor %q %d steps...\n", name, steps)
		if err := g.Jog(ctx, name, steps); err != nil {
			fmt.Println("Jog failed:", err)
			continue
		}
		pos := g.Position()
		fmt.Printf("Completed %d steps on %q. Current position: X=%.2f mm, Z=%.2f mm\n\n",
			steps, name, pos.X, pos.Z)
	}
}

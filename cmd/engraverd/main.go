// engraverd is the engraver controller daemon. It speaks the HPGL-derived
// line protocol over a serial device (or stdin/stdout for testing),
// interprets commands and drives the stepper/laser outputs through the
// hardware abstraction layer.
//
// Usage:
//
//	engraverd [options]
//
// Options:
//
//	-config string   Configuration file (YAML; built-in defaults if empty)
//	-device string   Serial device (overrides config)
//	-baud int        Serial baud rate (overrides config)
//	-stdio           Use stdin/stdout instead of a serial device
//	-watch           Reload the config file when it changes
//	-logfile string  Log file path (default: stderr)
//	-debug           Enable debug logging
//	-fast            Skip real step delays (simulation speed)
//
// Examples:
//
//	# Drive the reference hardware
//	engraverd -config engraver.yaml -device /dev/ttyUSB0
//
//	# Interactive testing on a terminal
//	engraverd -stdio -debug -fast
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"laser-engraver-go/pkg/config"
	"laser-engraver-go/pkg/controller"
	"laser-engraver-go/pkg/hal"
	"laser-engraver-go/pkg/log"
	"laser-engraver-go/pkg/safety"
	"laser-engraver-go/pkg/serial"
)

func main() {
	configFile := flag.String("config", "", "Configuration file (YAML)")
	device := flag.String("device", "", "Serial device (overrides config)")
	baud := flag.Int("baud", 0, "Serial baud rate (overrides config)")
	stdio := flag.Bool("stdio", false, "Use stdin/stdout instead of a serial device")
	watch := flag.Bool("watch", false, "Reload the config file when it changes")
	logFile := flag.String("logfile", "", "Log file path (default: stderr)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	fast := flag.Bool("fast", false, "Skip real step delays")
	flag.Parse()

	logger := log.GetLogger("engraverd")
	if *debug {
		logger.SetLevel(log.DEBUG)
	}
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger.SetWriter(f)
		logger.SetColorize(false)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("config: %v", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}

	logger.Info("engraver daemon starting")
	logger.InfoFields("motion parameters", log.Fields{
		"steps_per_unit": cfg.Motion.StepsPerUnit,
		"step_delay_us":  cfg.Motion.StepDelayUS,
		"max_steps_x":    cfg.Motion.MaxStepsX,
		"max_steps_y":    cfg.Motion.MaxStepsY,
	})

	pins := hal.NewLoggingPins(logger.WithPrefix("hal"))
	pins.RealDelays = !*fast

	// Pick the transport before wiring the controller so startup
	// messages go to the right place.
	var (
		in  io.Reader
		out io.Writer
	)
	var port *serial.Port
	if *stdio {
		in, out = os.Stdin, os.Stdout
		logger.Info("transport: stdio")
	} else {
		if cfg.Serial.Device == "" {
			logger.Error("no serial device configured (use -device or -stdio)")
			os.Exit(1)
		}
		scfg := serial.DefaultConfig()
		scfg.Device = cfg.Serial.Device
		scfg.BaudRate = cfg.Serial.Baud
		port, err = serial.Open(scfg)
		if err != nil {
			logger.Error("opening %s: %v", cfg.Serial.Device, err)
			os.Exit(1)
		}
		defer port.Close()
		in, out = port, port
		logger.Info("transport: %s @ %d baud", port.Device(), cfg.Serial.Baud)
	}

	ctrl := controller.New(cfg, pins, out, logger.WithPrefix("controller"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The manager only unblocks the read loop here; the controller's
	// fail-safe runs on the main goroutine once the loop returns, so
	// the interpreter stays single-threaded.
	manager := safety.New()
	manager.OnShutdown(func(reason safety.Reason, msg string) {
		logger.Warn("shutting down (%s): %s", reason, msg)
		cancel()
		if port != nil {
			port.Close()
		} else {
			os.Stdin.Close()
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		manager.Shutdown(safety.ReasonUserRequest, sig.String())
	}()

	if *watch && *configFile != "" {
		go func() {
			err := config.Watch(ctx, *configFile, logger.WithPrefix("config"), func(next *config.Config) {
				if *device != "" {
					next.Serial.Device = *device
				}
				if *baud != 0 {
					next.Serial.Baud = *baud
				}
				ctrl.QueueConfig(next)
			})
			if err != nil && ctx.Err() == nil {
				logger.Error("config watcher: %v", err)
			}
		}()
	}

	ctrl.Startup()

	if err := runLoop(ctx, ctrl, in); err != nil {
		manager.Shutdown(safety.ReasonTransportError, err.Error())
		ctrl.Shutdown()
		logger.Error("transport: %v", err)
		os.Exit(1)
	}

	manager.Shutdown(safety.ReasonInputClosed, "end of input")
	ctrl.Shutdown()
	logger.Info("engraver daemon stopped")
}

// runLoop feeds transport bytes into the controller until EOF or
// cancellation. Serial read timeouts are retried so the loop can notice
// a cancelled context even on an idle line.
func runLoop(ctx context.Context, ctrl *controller.Controller, in io.Reader) error {
	buf := make([]byte, 256)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := in.Read(buf)
		for i := 0; i < n; i++ {
			ctrl.ProcessByte(buf[i])
		}
		if err != nil {
			if errors.Is(err, serial.ErrTimeout) {
				continue
			}
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Package controller implements the command interpreter: it accumulates
// bytes from the transport into lines, parses each line into a command,
// dispatches it against the machine state, and writes exactly one primary
// response line per command.
//
// The interpreter is strictly single-threaded: one byte, one command at a
// time. A move blocks everything until its rasterization completes, which
// is what makes every state update atomic as seen from the protocol.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package controller

import (
	"bufio"
	"fmt"
	"io"
	"sync/atomic"

	"laser-engraver-go/pkg/config"
	"laser-engraver-go/pkg/hal"
	"laser-engraver-go/pkg/log"
	"laser-engraver-go/pkg/motion"
	"laser-engraver-go/pkg/protocol"
)

// Controller owns the laser state and the line accumulator, and drives
// the motion engine.
type Controller struct {
	cfg    *config.Config
	pins   hal.Pins
	engine *motion.Engine
	out    io.Writer
	logger *log.Logger

	laserOn    bool
	laserPower uint8
	actuation  bool

	lineBuf []byte

	// pending holds a config queued by another goroutine (the file
	// watcher); it is applied on this goroutine between commands.
	pending atomic.Pointer[config.Config]
}

// New creates a controller. The initial state is the startup precondition:
// position (0,0), laser off, power 0, actuation enabled after Startup.
func New(cfg *config.Config, pins hal.Pins, out io.Writer, logger *log.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		pins:   pins,
		engine: motion.New(pins, motionParams(cfg), logger.WithPrefix("motion")),
		out:    out,
		logger: logger,
	}
}

func motionParams(cfg *config.Config) motion.Params {
	return motion.Params{
		StepXPin:     cfg.Pins.StepX,
		DirXPin:      cfg.Pins.DirX,
		StepYPin:     cfg.Pins.StepY,
		DirYPin:      cfg.Pins.DirY,
		EnablePin:    cfg.Pins.Enable,
		StepsPerUnit: cfg.Motion.StepsPerUnit,
		StepDelayUS:  cfg.Motion.StepDelayUS,
		PulseWidthUS: cfg.Motion.PulseWidthUS,
		MaxStepsX:    cfg.Motion.MaxStepsX,
		MaxStepsY:    cfg.Motion.MaxStepsY,
	}
}

// Engine exposes the motion engine for position queries.
func (c *Controller) Engine() *motion.Engine {
	return c.engine
}

// Startup configures all outputs to their safe initial state and announces
// readiness and the zero-position assumption over the transport.
func (c *Controller) Startup() {
	c.pins.SetDigitalOutput(c.cfg.Pins.StepX, false)
	c.pins.SetDigitalOutput(c.cfg.Pins.StepY, false)
	c.pins.SetAnalogOutput(c.cfg.Pins.Laser, 0)
	c.engine.Enable()
	c.actuation = true

	c.writeLine("HPGL Laser Engraver Ready")
	c.writeLine("INFO: System assumes current position is (0,0)")

	c.logger.Info("controller ready (limits %d x %d steps, %.4f steps/unit)",
		c.cfg.Motion.MaxStepsX, c.cfg.Motion.MaxStepsY, c.cfg.Motion.StepsPerUnit)
}

// Run reads the transport one byte at a time until EOF. A move command
// blocks the loop for its whole duration; no new input is consumed.
func (c *Controller) Run(r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		c.ProcessByte(b)
	}
}

// ProcessByte feeds one byte into the line accumulator. On a newline the
// accumulated line is dispatched as a command and the accumulator is
// reset regardless of the outcome. Returns true when a command was
// dispatched.
func (c *Controller) ProcessByte(b byte) bool {
	if b != '\n' {
		c.lineBuf = append(c.lineBuf, b)
		return false
	}

	line := string(c.lineBuf)
	c.lineBuf = c.lineBuf[:0]
	c.dispatch(line)
	c.applyPendingConfig()
	return true
}

// dispatch runs one command and writes its response lines.
func (c *Controller) dispatch(line string) {
	cmd, err := protocol.ParseLine(line)
	if err != nil {
		c.logger.Warn("malformed input %q: %v", line, err)
		c.writeLine(protocol.ErrFrom(err))
		return
	}

	c.logger.Debug("dispatch %s:%s", cmd.Name, cmd.Payload)

	switch cmd.Name {
	case protocol.CmdPenUp:
		c.laserOn = false
		c.pins.SetAnalogOutput(c.cfg.Pins.Laser, 0)
		c.writeLine(protocol.Ack(cmd.Name))

	case protocol.CmdPenDown:
		c.laserOn = true
		c.pins.SetAnalogOutput(c.cfg.Pins.Laser, c.laserPower)
		c.writeLine(protocol.Ack(cmd.Name))

	case protocol.CmdPlotAbsolute:
		x, y, ok := protocol.ParsePair(cmd.Payload)
		if !ok {
			c.writeLine(protocol.Err("Invalid PA params"))
			return
		}
		if err := c.engine.MoveAbsolute(x, y); err != nil {
			c.logger.Warn("move to (%d,%d) rejected: %v", x, y, err)
			c.writeLine(protocol.ErrFrom(err))
			return
		}
		c.writeLine(protocol.Ack(cmd.Name))

	case protocol.CmdSetPower:
		power := protocol.Atoi(cmd.Payload)
		if power < 0 {
			power = 0
		}
		if power > 255 {
			power = 255
		}
		c.laserPower = uint8(power)
		if c.laserOn {
			c.pins.SetAnalogOutput(c.cfg.Pins.Laser, c.laserPower)
		}
		c.writeLine(protocol.Ack(cmd.Name))

	case protocol.CmdHome:
		// No limit switches: declare here to be (0,0) without moving.
		c.engine.Home()
		c.writeLine(protocol.Ack(cmd.Name))
		c.writeLine(protocol.Info("Current position set as (0,0)"))

	case protocol.CmdStatus:
		x, y := c.engine.Position()
		c.writeLine(protocol.Status(x, y, c.laserOn, c.laserPower))

	case protocol.CmdReset:
		c.failSafe()
		c.writeLine(protocol.Ack(cmd.Name))
		c.writeLine(protocol.Info("Emergency stop - motors disabled, laser off"))

	case protocol.CmdEnable:
		c.engine.Enable()
		c.actuation = true
		c.writeLine(protocol.Ack(cmd.Name))
		c.writeLine(protocol.Info("Motors enabled"))

	case protocol.CmdSetPos:
		x, y, ok := protocol.ParsePair(cmd.Payload)
		if !ok {
			c.writeLine(protocol.Err("Invalid SET_POS params"))
			return
		}
		c.engine.SetPosition(int64(x), int64(y))
		c.writeLine(protocol.Ack(cmd.Name))
		c.writeLine(protocol.Info(fmt.Sprintf("Position set to (%d,%d)", x, y)))

	default:
		c.logger.Warn("unknown command %q", cmd.Name)
		c.writeLine(protocol.Err("Unknown command"))
	}
}

// failSafe forces the laser off and releases the motor drivers.
func (c *Controller) failSafe() {
	c.laserOn = false
	c.pins.SetAnalogOutput(c.cfg.Pins.Laser, 0)
	c.engine.Disable()
	c.actuation = false
	c.logger.Warn("fail-safe engaged: laser off, drivers disabled")
}

// Shutdown engages the fail-safe without a protocol response. The daemon
// calls this on SIGINT/SIGTERM.
func (c *Controller) Shutdown() {
	c.failSafe()
}

// ActuationEnabled reports whether the motor drivers are enabled.
func (c *Controller) ActuationEnabled() bool {
	return c.actuation
}

// QueueConfig queues a new configuration. Safe to call from another
// goroutine; the config is applied between commands, never mid-move.
func (c *Controller) QueueConfig(cfg *config.Config) {
	c.pending.Store(cfg)
}

func (c *Controller) applyPendingConfig() {
	cfg := c.pending.Swap(nil)
	if cfg == nil {
		return
	}

	laserPinChanged := cfg.Pins.Laser != c.cfg.Pins.Laser
	c.cfg = cfg
	c.engine.SetParams(motionParams(cfg))

	// Keep the physical laser output consistent with the state.
	if laserPinChanged {
		value := uint8(0)
		if c.laserOn {
			value = c.laserPower
		}
		c.pins.SetAnalogOutput(cfg.Pins.Laser, value)
	}

	c.logger.Info("configuration applied (limits %d x %d steps)",
		cfg.Motion.MaxStepsX, cfg.Motion.MaxStepsY)
}

func (c *Controller) writeLine(s string) {
	fmt.Fprintf(c.out, "%s\n", s)
}

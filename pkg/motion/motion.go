// Package motion converts absolute target coordinates into synchronized
// two-axis step pulses.
//
// The engine owns the authoritative machine position in step units. A move
// converts the target from HPGL length units to steps, bounds-checks it,
// and runs a blocking Bresenham rasterization that emits one timed pulse
// per step. Position is committed only after the full loop completes, so
// a move is atomic as seen by any later command.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"math"

	"laser-engraver-go/pkg/errors"
	"laser-engraver-go/pkg/hal"
	"laser-engraver-go/pkg/log"
)

// Direction pin levels expected by the stepper drivers.
const (
	forwardLevel  = false // FORWARD_DIR = 0
	backwardLevel = true  // BACKWARD_DIR = 1
)

// Params holds the engine's pin assignments, conversion constant, travel
// limits, and step timing.
type Params struct {
	StepXPin  int
	DirXPin   int
	StepYPin  int
	DirYPin   int
	EnablePin int

	// StepsPerUnit converts HPGL length units to motor steps.
	StepsPerUnit float64

	// StepDelayUS is the fixed inter-step delay; the feed rate is
	// constant and direction-independent.
	StepDelayUS int

	// PulseWidthUS is the step pulse hold time. Shorter than StepDelayUS.
	PulseWidthUS int

	MaxStepsX int64
	MaxStepsY int64
}

// Engine drives the two stepper axes through a hal.Pins backend.
type Engine struct {
	pins   hal.Pins
	params Params
	logger *log.Logger

	// Current position in steps. Mutated only at the end of a
	// successful move or by an explicit override.
	stepsX int64
	stepsY int64
}

// New creates a motion engine at position (0,0).
func New(pins hal.Pins, params Params, logger *log.Logger) *Engine {
	return &Engine{
		pins:   pins,
		params: params,
		logger: logger,
	}
}

// Position returns the current position in steps.
func (e *Engine) Position() (x, y int64) {
	return e.stepsX, e.stepsY
}

// SetPosition overwrites the position without moving. No bounds check:
// an explicit override is trusted even outside the travel limits.
func (e *Engine) SetPosition(x, y int64) {
	e.stepsX = x
	e.stepsY = y
}

// Home declares the current physical position to be (0,0). There are no
// limit switches, so nothing moves.
func (e *Engine) Home() {
	e.stepsX = 0
	e.stepsY = 0
}

// Enable asserts the driver-enable pin (active low).
func (e *Engine) Enable() {
	e.pins.SetDigitalOutput(e.params.EnablePin, false)
}

// Disable deasserts the driver-enable pin, releasing the motors.
func (e *Engine) Disable() {
	e.pins.SetDigitalOutput(e.params.EnablePin, true)
}

// SetParams replaces the engine parameters. Must not be called during a
// move; the controller only reconfigures between commands.
func (e *Engine) SetParams(params Params) {
	e.params = params
}

// MoveAbsolute moves to the absolute target (x, y) in HPGL length units.
// Each coordinate is converted to steps independently via
// round(StepsPerUnit * value). A target outside [0, MaxSteps] on either
// axis is rejected before any pulse is emitted.
func (e *Engine) MoveAbsolute(x, y int) error {
	targetX := int64(math.Round(e.params.StepsPerUnit * float64(x)))
	targetY := int64(math.Round(e.params.StepsPerUnit * float64(y)))

	if targetX < 0 || targetX > e.params.MaxStepsX ||
		targetY < 0 || targetY > e.params.MaxStepsY {
		return errors.BoundsError()
	}

	dx := targetX - e.stepsX
	dy := targetY - e.stepsY

	// Direction from delta sign; a delta of exactly 0 counts as forward.
	dirX := forwardLevel
	if dx < 0 {
		dirX = backwardLevel
	}
	dirY := forwardLevel
	if dy < 0 {
		dirY = backwardLevel
	}
	e.pins.SetDigitalOutput(e.params.DirXPin, dirX)
	e.pins.SetDigitalOutput(e.params.DirYPin, dirY)

	absDx := abs64(dx)
	absDy := abs64(dy)

	// Bresenham rasterization. The axis with the larger absolute delta
	// drives: one pulse per iteration, with the other axis pulsed each
	// time the accumulated error crosses zero.
	if absDx > absDy {
		err := absDx / 2
		for i := int64(0); i < absDx; i++ {
			e.stepPulse(e.params.StepXPin)
			err -= absDy
			if err < 0 {
				e.stepPulse(e.params.StepYPin)
				err += absDx
			}
			e.pins.DelayMicroseconds(e.params.StepDelayUS)
		}
	} else {
		err := absDy / 2
		for i := int64(0); i < absDy; i++ {
			e.stepPulse(e.params.StepYPin)
			err -= absDx
			if err < 0 {
				e.stepPulse(e.params.StepXPin)
				err += absDy
			}
			e.pins.DelayMicroseconds(e.params.StepDelayUS)
		}
	}

	e.stepsX = targetX
	e.stepsY = targetY

	e.logger.DebugFields("move complete", log.Fields{
		"x": targetX, "y": targetY, "dx": dx, "dy": dy,
	})
	return nil
}

// stepPulse emits a single step pulse: high, hold, low.
func (e *Engine) stepPulse(pin int) {
	e.pins.SetDigitalOutput(pin, true)
	e.pins.DelayMicroseconds(e.params.PulseWidthUS)
	e.pins.SetDigitalOutput(pin, false)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Package hal is the hardware-abstraction boundary between the controller
// core and physical pin I/O. The core only ever touches hardware through
// the Pins capability set, which keeps the motion engine and interpreter
// deterministic under test.
package hal

import (
	"sync"
	"time"

	"laser-engraver-go/pkg/log"
)

// Pins is the capability set the controller core needs from the hardware.
type Pins interface {
	// SetDigitalOutput drives a digital output pin high (true) or low (false).
	SetDigitalOutput(pin int, level bool)

	// SetAnalogOutput drives a PWM output pin with an 8-bit duty value.
	SetAnalogOutput(pin int, value uint8)

	// DelayMicroseconds blocks for n microseconds.
	DelayMicroseconds(n int)
}

// LoggingPins is a simulated pin backend. It keeps the last written level
// per pin, counts rising edges, and sleeps for real on delays so that a
// simulated run paces like hardware. Transitions are logged at DEBUG.
type LoggingPins struct {
	mu sync.Mutex

	logger *log.Logger

	digital map[int]bool
	analog  map[int]uint8
	edges   map[int]int64

	// RealDelays controls whether DelayMicroseconds actually sleeps.
	// On by default; tests and dry runs turn it off.
	RealDelays bool
}

// NewLoggingPins creates a simulated pin backend.
func NewLoggingPins(logger *log.Logger) *LoggingPins {
	return &LoggingPins{
		logger:     logger,
		digital:    make(map[int]bool),
		analog:     make(map[int]uint8),
		edges:      make(map[int]int64),
		RealDelays: true,
	}
}

// SetDigitalOutput records and logs a digital level change.
func (p *LoggingPins) SetDigitalOutput(pin int, level bool) {
	p.mu.Lock()
	prev, had := p.digital[pin]
	p.digital[pin] = level
	if level && (!had || !prev) {
		p.edges[pin]++
	}
	p.mu.Unlock()

	if !had || prev != level {
		p.logger.DebugFields("digital out", log.Fields{"pin": pin, "level": level})
	}
}

// SetAnalogOutput records and logs a PWM duty change.
func (p *LoggingPins) SetAnalogOutput(pin int, value uint8) {
	p.mu.Lock()
	prev, had := p.analog[pin]
	p.analog[pin] = value
	p.mu.Unlock()

	if !had || prev != value {
		p.logger.DebugFields("analog out", log.Fields{"pin": pin, "value": value})
	}
}

// DelayMicroseconds sleeps for n microseconds when RealDelays is set.
func (p *LoggingPins) DelayMicroseconds(n int) {
	if p.RealDelays {
		time.Sleep(time.Duration(n) * time.Microsecond)
	}
}

// DigitalLevel returns the last written level of a digital pin.
func (p *LoggingPins) DigitalLevel(pin int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.digital[pin]
}

// AnalogValue returns the last written duty value of a PWM pin.
func (p *LoggingPins) AnalogValue(pin int) uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.analog[pin]
}

// RisingEdges returns the number of low-to-high transitions seen on a pin.
func (p *LoggingPins) RisingEdges(pin int) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.edges[pin]
}

package hal

// Recorder is a deterministic Pins fake for unit tests. It never sleeps
// and keeps a full trace of writes so tests can assert pulse counts,
// interleaving, and final pin levels.
type Recorder struct {
	// Digital holds the last written level per digital pin.
	Digital map[int]bool

	// Analog holds the last written duty value per PWM pin.
	Analog map[int]uint8

	// Pulses counts low-to-high transitions per pin.
	Pulses map[int]int64

	// Trace is the ordered list of all writes.
	Trace []Write

	// DelayTotal accumulates requested delay microseconds.
	DelayTotal int64
}

// Write is one recorded pin operation.
type Write struct {
	Pin    int
	Level  bool  // digital writes
	Value  uint8 // analog writes
	Analog bool
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		Digital: make(map[int]bool),
		Analog:  make(map[int]uint8),
		Pulses:  make(map[int]int64),
	}
}

func (r *Recorder) SetDigitalOutput(pin int, level bool) {
	if level && !r.Digital[pin] {
		r.Pulses[pin]++
	}
	r.Digital[pin] = level
	r.Trace = append(r.Trace, Write{Pin: pin, Level: level})
}

func (r *Recorder) SetAnalogOutput(pin int, value uint8) {
	r.Analog[pin] = value
	r.Trace = append(r.Trace, Write{Pin: pin, Value: value, Analog: true})
}

func (r *Recorder) DelayMicroseconds(n int) {
	r.DelayTotal += int64(n)
}

// Reset clears all recorded state.
func (r *Recorder) Reset() {
	r.Digital = make(map[int]bool)
	r.Analog = make(map[int]uint8)
	r.Pulses = make(map[int]int64)
	r.Trace = nil
	r.DelayTotal = 0
}

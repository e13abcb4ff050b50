package controller

import (
	"bytes"
	"strings"
	"testing"

	"laser-engraver-go/pkg/config"
	"laser-engraver-go/pkg/hal"
	"laser-engraver-go/pkg/log"
)

func quietLogger() *log.Logger {
	l := log.New("test")
	l.SetLevel(log.ERROR)
	return l
}

// newTestController returns a started controller with a unit conversion
// constant so step counts equal HPGL coordinates in tests.
func newTestController(t *testing.T) (*Controller, *hal.Recorder, *bytes.Buffer) {
	t.Helper()

	cfg := config.Default()
	cfg.Motion.StepsPerUnit = 1.0

	rec := hal.NewRecorder()
	var out bytes.Buffer
	c := New(cfg, rec, &out, quietLogger())
	c.Startup()
	out.Reset()
	rec.Reset()
	return c, rec, &out
}

// feed sends a full line byte by byte, newline included.
func feed(c *Controller, line string) {
	for i := 0; i < len(line); i++ {
		c.ProcessByte(line[i])
	}
	c.ProcessByte('\n')
}

// responses drains and splits the output buffer.
func responses(out *bytes.Buffer) []string {
	text := strings.TrimRight(out.String(), "\n")
	out.Reset()
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestStartupBannerAndOutputs(t *testing.T) {
	cfg := config.Default()
	rec := hal.NewRecorder()
	var out bytes.Buffer

	c := New(cfg, rec, &out, quietLogger())
	c.Startup()

	lines := responses(&out)
	want := []string{
		"HPGL Laser Engraver Ready",
		"INFO: System assumes current position is (0,0)",
	}
	if len(lines) != 2 || lines[0] != want[0] || lines[1] != want[1] {
		t.Errorf("startup banner = %v, want %v", lines, want)
	}

	if rec.Digital[cfg.Pins.Enable] != false {
		t.Error("drivers should be enabled (pin low) after startup")
	}
	if rec.Analog[cfg.Pins.Laser] != 0 {
		t.Error("laser should be off after startup")
	}
	if !c.ActuationEnabled() {
		t.Error("actuation should be enabled after startup")
	}
}

func TestLaserOnOff(t *testing.T) {
	c, rec, out := newTestController(t)
	laser := config.Default().Pins.Laser

	feed(c, "SP:128")
	if got := responses(out); len(got) != 1 || got[0] != "ACK:SP" {
		t.Fatalf("SP response = %v", got)
	}
	// Laser off: power change is latent.
	if rec.Analog[laser] != 0 {
		t.Error("SP with laser off must not drive the output")
	}

	feed(c, "PD:")
	if got := responses(out); len(got) != 1 || got[0] != "ACK:PD" {
		t.Fatalf("PD response = %v", got)
	}
	if rec.Analog[laser] != 128 {
		t.Errorf("laser output = %d, want 128", rec.Analog[laser])
	}

	feed(c, "PU:")
	if got := responses(out); len(got) != 1 || got[0] != "ACK:PU" {
		t.Fatalf("PU response = %v", got)
	}
	if rec.Analog[laser] != 0 {
		t.Errorf("laser output = %d, want 0 after PU", rec.Analog[laser])
	}
}

func TestSetPowerClampAndReapply(t *testing.T) {
	c, rec, out := newTestController(t)
	laser := config.Default().Pins.Laser

	feed(c, "SP:999")
	responses(out)
	feed(c, "STATUS:")
	if got := responses(out); got[0] != "STATUS:0,0,0,255" {
		t.Errorf("power not clamped to 255: %v", got)
	}

	feed(c, "SP:-40")
	responses(out)
	feed(c, "STATUS:")
	if got := responses(out); got[0] != "STATUS:0,0,0,0" {
		t.Errorf("power not clamped to 0: %v", got)
	}

	// Changing power while the laser is on re-applies immediately.
	feed(c, "PD:")
	feed(c, "SP:77")
	responses(out)
	if rec.Analog[laser] != 77 {
		t.Errorf("laser output = %d, want 77 re-applied", rec.Analog[laser])
	}
}

func TestPlotAbsolute(t *testing.T) {
	c, rec, out := newTestController(t)

	feed(c, "PA:10,5")
	if got := responses(out); len(got) != 1 || got[0] != "ACK:PA" {
		t.Fatalf("PA response = %v", got)
	}

	cfg := config.Default()
	if rec.Pulses[cfg.Pins.StepX] != 10 || rec.Pulses[cfg.Pins.StepY] != 5 {
		t.Errorf("pulses = (%d, %d), want (10, 5)",
			rec.Pulses[cfg.Pins.StepX], rec.Pulses[cfg.Pins.StepY])
	}

	feed(c, "STATUS:")
	if got := responses(out); got[0] != "STATUS:10,5,0,0" {
		t.Errorf("STATUS = %v", got)
	}
}

func TestPlotAbsoluteWithConversionConstant(t *testing.T) {
	// The reference constant: PA:100,50 lands on steps (1058, 529).
	cfg := config.Default()
	rec := hal.NewRecorder()
	var out bytes.Buffer
	c := New(cfg, rec, &out, quietLogger())
	c.Startup()
	out.Reset()

	feed(c, "PA:100,50")
	if got := responses(&out); len(got) != 1 || got[0] != "ACK:PA" {
		t.Fatalf("PA response = %v", got)
	}

	feed(c, "STATUS:")
	if got := responses(&out); got[0] != "STATUS:1058,529,0,0" {
		t.Errorf("STATUS = %v", got)
	}
}

func TestPlotAbsoluteOutOfBounds(t *testing.T) {
	c, rec, out := newTestController(t)

	feed(c, "PA:5,5")
	responses(out)
	rec.Reset()

	for _, line := range []string{"PA:-1,0", "PA:0,-1", "PA:99999,0"} {
		feed(c, line)
		got := responses(out)
		if len(got) != 1 || got[0] != "ERR:Target position out of bounds" {
			t.Errorf("%s response = %v, want single bounds ERR", line, got)
		}
	}

	if len(rec.Trace) != 0 {
		t.Error("rejected moves must not touch pins")
	}
	feed(c, "STATUS:")
	if got := responses(out); got[0] != "STATUS:5,5,0,0" {
		t.Errorf("position changed by rejected move: %v", got)
	}
}

func TestMalformedInput(t *testing.T) {
	c, _, out := newTestController(t)

	tests := []struct {
		line     string
		expected string
	}{
		{"PA100,50", "ERR:Invalid command format"},
		{"", "ERR:Invalid command format"},
		{"PA:100", "ERR:Invalid PA params"},
		{"SET_POS:7", "ERR:Invalid SET_POS params"},
		{"FOO:1", "ERR:Unknown command"},
		{"pa:1,2", "ERR:Unknown command"}, // mnemonics are case-sensitive
	}

	for _, tt := range tests {
		feed(c, tt.line)
		got := responses(out)
		if len(got) != 1 || got[0] != tt.expected {
			t.Errorf("%q response = %v, want [%s]", tt.line, got, tt.expected)
		}
	}

	// No state change from any of the above.
	feed(c, "STATUS:")
	if got := responses(out); got[0] != "STATUS:0,0,0,0" {
		t.Errorf("malformed input changed state: %v", got)
	}
}

func TestTolerantNumericPayloads(t *testing.T) {
	c, rec, out := newTestController(t)

	// Non-numeric coordinates parse as 0: a move to the current origin.
	feed(c, "PA:abc,def")
	if got := responses(out); len(got) != 1 || got[0] != "ACK:PA" {
		t.Errorf("PA:abc,def response = %v", got)
	}
	if rec.Pulses[config.Default().Pins.StepX] != 0 {
		t.Error("tolerant parse should yield a zero-length move")
	}

	feed(c, "SP:12junk")
	responses(out)
	feed(c, "STATUS:")
	if got := responses(out); got[0] != "STATUS:0,0,0,12" {
		t.Errorf("SP:12junk should set power 12, STATUS = %v", got)
	}
}

func TestHomeCommand(t *testing.T) {
	c, _, out := newTestController(t)

	feed(c, "SET_POS:40,30")
	responses(out)

	feed(c, "HOME:")
	got := responses(out)
	want := []string{"ACK:HOME", "INFO:Current position set as (0,0)"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("HOME response = %v, want %v", got, want)
	}

	feed(c, "STATUS:")
	if got := responses(out); got[0] != "STATUS:0,0,0,0" {
		t.Errorf("STATUS after HOME = %v", got)
	}
}

func TestSetPos(t *testing.T) {
	c, rec, out := newTestController(t)

	feed(c, "SET_POS:10,20")
	got := responses(out)
	want := []string{"ACK:SET_POS", "INFO:Position set to (10,20)"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("SET_POS response = %v, want %v", got, want)
	}
	if len(rec.Trace) != 0 {
		t.Error("SET_POS must perform zero pulses")
	}

	// Out-of-range overrides are accepted.
	feed(c, "SET_POS:-5,99999")
	got = responses(out)
	if len(got) != 2 || got[0] != "ACK:SET_POS" {
		t.Errorf("out-of-range SET_POS response = %v", got)
	}
	feed(c, "STATUS:")
	if got := responses(out); got[0] != "STATUS:-5,99999,0,0" {
		t.Errorf("STATUS after override = %v", got)
	}
}

func TestResetAndEnable(t *testing.T) {
	c, rec, out := newTestController(t)
	cfg := config.Default()

	feed(c, "SP:200")
	feed(c, "PD:")
	responses(out)

	feed(c, "RESET:")
	got := responses(out)
	want := []string{"ACK:RESET", "INFO:Emergency stop - motors disabled, laser off"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("RESET response = %v, want %v", got, want)
	}
	if rec.Analog[cfg.Pins.Laser] != 0 {
		t.Error("RESET must force the laser output to 0")
	}
	if rec.Digital[cfg.Pins.Enable] != true {
		t.Error("RESET must disable the drivers (pin high)")
	}
	if c.ActuationEnabled() {
		t.Error("actuation should be disabled after RESET")
	}

	// Power survives RESET; only the on-flag is cleared.
	feed(c, "STATUS:")
	if got := responses(out); got[0] != "STATUS:0,0,0,200" {
		t.Errorf("STATUS after RESET = %v", got)
	}

	feed(c, "ENABLE:")
	got = responses(out)
	want = []string{"ACK:ENABLE", "INFO:Motors enabled"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("ENABLE response = %v, want %v", got, want)
	}
	if rec.Digital[cfg.Pins.Enable] != false {
		t.Error("ENABLE must re-enable the drivers (pin low)")
	}
	if !c.ActuationEnabled() {
		t.Error("actuation should be enabled after ENABLE")
	}
}

func TestByteAccumulator(t *testing.T) {
	c, _, out := newTestController(t)

	// Partial input does not dispatch.
	for _, b := range []byte("STAT") {
		if c.ProcessByte(b) {
			t.Fatal("dispatched before newline")
		}
	}
	if got := responses(out); got != nil {
		t.Fatalf("output before newline: %v", got)
	}

	// Completing the line dispatches it.
	for _, b := range []byte("US:") {
		c.ProcessByte(b)
	}
	if !c.ProcessByte('\n') {
		t.Fatal("newline did not dispatch")
	}
	if got := responses(out); len(got) != 1 || got[0] != "STATUS:0,0,0,0" {
		t.Errorf("STATUS = %v", got)
	}

	// The accumulator is clean for the next command.
	feed(c, "SP:10")
	if got := responses(out); len(got) != 1 || got[0] != "ACK:SP" {
		t.Errorf("follow-up command = %v", got)
	}
}

func TestQueuedConfigAppliedBetweenCommands(t *testing.T) {
	c, _, out := newTestController(t)

	next := config.Default()
	next.Motion.StepsPerUnit = 1.0
	next.Motion.MaxStepsX = 50
	next.Motion.MaxStepsY = 50
	c.QueueConfig(next)

	// The queued config takes effect once a command completes.
	feed(c, "STATUS:")
	responses(out)

	feed(c, "PA:60,0")
	got := responses(out)
	if len(got) != 1 || got[0] != "ERR:Target position out of bounds" {
		t.Errorf("move beyond reloaded limit = %v, want bounds ERR", got)
	}
	feed(c, "PA:50,0")
	if got := responses(out); len(got) != 1 || got[0] != "ACK:PA" {
		t.Errorf("move within reloaded limit = %v", got)
	}
}

func TestShutdownFailSafe(t *testing.T) {
	c, rec, out := newTestController(t)
	cfg := config.Default()

	feed(c, "SP:255")
	feed(c, "PD:")
	responses(out)

	c.Shutdown()

	if rec.Analog[cfg.Pins.Laser] != 0 {
		t.Error("Shutdown must force the laser off")
	}
	if rec.Digital[cfg.Pins.Enable] != true {
		t.Error("Shutdown must disable the drivers")
	}
	if got := responses(out); got != nil {
		t.Errorf("Shutdown must not write protocol responses, got %v", got)
	}
}

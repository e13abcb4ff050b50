package protocol

import (
	"testing"

	"laser-engraver-go/pkg/errors"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		name    string
		payload string
		wantErr bool
	}{
		{"PA:100,50", "PA", "100,50", false},
		{"PU:", "PU", "", false},
		{"STATUS:", "STATUS", "", false},
		{"SET_POS:10,20", "SET_POS", "10,20", false},
		{"PA:100,50\r", "PA", "100,50", false},
		{"HOME:extra:colons", "HOME", "extra:colons", false},
		{"", "", "", true},
		{"PA100,50", "", "", true},
		{"just text", "", "", true},
	}

	for _, tt := range tests {
		cmd, err := ParseLine(tt.line)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLine(%q): expected error", tt.line)
			} else if !errors.Is(err, errors.ErrFormat) {
				t.Errorf("ParseLine(%q): error code = %v, want FORMAT", tt.line, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLine(%q): unexpected error %v", tt.line, err)
			continue
		}
		if cmd.Name != tt.name || cmd.Payload != tt.payload {
			t.Errorf("ParseLine(%q) = (%q, %q), want (%q, %q)",
				tt.line, cmd.Name, cmd.Payload, tt.name, tt.payload)
		}
	}
}

func TestAtoiTolerant(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"123", 123},
		{"-45", -45},
		{"+7", 7},
		{"  42", 42},
		{"100abc", 100},
		{"abc", 0},
		{"", 0},
		{"-", 0},
		{"12.5", 12},
		{"999", 999},
	}

	for _, tt := range tests {
		if got := Atoi(tt.input); got != tt.expected {
			t.Errorf("Atoi(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestParsePair(t *testing.T) {
	tests := []struct {
		payload string
		x, y    int
		ok      bool
	}{
		{"100,50", 100, 50, true},
		{"-5,10", -5, 10, true},
		{"0,0", 0, 0, true},
		{"1,2,3", 1, 2, true}, // trailing fields after y are ignored
		{"abc,def", 0, 0, true},
		{"100", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		x, y, ok := ParsePair(tt.payload)
		if ok != tt.ok || x != tt.x || y != tt.y {
			t.Errorf("ParsePair(%q) = (%d, %d, %v), want (%d, %d, %v)",
				tt.payload, x, y, ok, tt.x, tt.y, tt.ok)
		}
	}
}

func TestResponses(t *testing.T) {
	if got := Ack(CmdPlotAbsolute); got != "ACK:PA" {
		t.Errorf("Ack = %q", got)
	}
	if got := Err("Unknown command"); got != "ERR:Unknown command" {
		t.Errorf("Err = %q", got)
	}
	if got := ErrFrom(errors.BoundsError()); got != "ERR:Target position out of bounds" {
		t.Errorf("ErrFrom = %q", got)
	}
	if got := Info("Motors enabled"); got != "INFO:Motors enabled" {
		t.Errorf("Info = %q", got)
	}
}

func TestStatusLine(t *testing.T) {
	tests := []struct {
		x, y     int64
		on       bool
		power    uint8
		expected string
	}{
		{0, 0, false, 0, "STATUS:0,0,0,0"},
		{1058, 529, true, 255, "STATUS:1058,529,1,255"},
		{-3, 7, false, 128, "STATUS:-3,7,0,128"},
	}

	for _, tt := range tests {
		if got := Status(tt.x, tt.y, tt.on, tt.power); got != tt.expected {
			t.Errorf("Status = %q, want %q", got, tt.expected)
		}
	}
}

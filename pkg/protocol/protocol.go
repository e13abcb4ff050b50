// Package protocol implements the line-oriented text protocol spoken over
// the serial transport.
//
// Requests are newline-terminated lines of the form MNEMONIC:PAYLOAD.
// Responses are single lines: ACK:MNEMONIC, ERR:<reason>,
// STATUS:x,y,laser,power, optionally followed by INFO:<message>.
package protocol

import (
	"fmt"
	"strings"

	"laser-engraver-go/pkg/errors"
)

// Supported command mnemonics. Matching is case-sensitive.
const (
	CmdPenUp        = "PU"      // laser off
	CmdPenDown      = "PD"      // laser on at current power
	CmdPlotAbsolute = "PA"      // move to absolute position
	CmdSetPower     = "SP"      // set laser power 0-255
	CmdHome         = "HOME"    // declare current position (0,0)
	CmdStatus       = "STATUS"  // report position and laser state
	CmdReset        = "RESET"   // fail-safe: laser off, drivers disabled
	CmdEnable       = "ENABLE"  // re-enable drivers after RESET
	CmdSetPos       = "SET_POS" // overwrite position without motion
)

// Command is one parsed request line. It lives for a single dispatch cycle.
type Command struct {
	// Name is the mnemonic before the colon
	Name string

	// Payload is the raw parameter text after the colon
	Payload string
}

// ParseLine splits one input line into a Command. The first colon is the
// delimiter; a line without a colon is a format error. A trailing carriage
// return is tolerated for hosts that send CRLF.
func ParseLine(line string) (Command, error) {
	line = strings.TrimSuffix(line, "\r")

	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return Command{}, errors.FormatError("Invalid command format")
	}

	return Command{
		Name:    line[:colon],
		Payload: line[colon+1:],
	}, nil
}

// Atoi parses a decimal integer tolerantly: leading whitespace is skipped,
// an optional sign is honored, and parsing stops at the first non-digit.
// A payload with no leading digits yields 0. This matches the numeric
// semantics of the source firmware's wire format.
func Atoi(s string) int {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}

	negative := false
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		negative = s[i] == '-'
		i++
	}

	value := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		value = value*10 + int(s[i]-'0')
		i++
	}

	if negative {
		value = -value
	}
	return value
}

// ParsePair parses an "x,y" payload. The first comma is the separator;
// ok is false when the payload has no comma.
func ParsePair(payload string) (x, y int, ok bool) {
	comma := strings.IndexByte(payload, ',')
	if comma < 0 {
		return 0, 0, false
	}
	return Atoi(payload[:comma]), Atoi(payload[comma+1:]), true
}

// Ack formats the acknowledgment for a command.
func Ack(cmd string) string {
	return "ACK:" + cmd
}

// Err formats an error response from a reason string.
func Err(reason string) string {
	return "ERR:" + reason
}

// ErrFrom formats an error response from an error value.
func ErrFrom(err error) string {
	return "ERR:" + err.Error()
}

// Info formats a secondary informational line.
func Info(msg string) string {
	return "INFO:" + msg
}

// Status formats the status report line. The laser flag is rendered 0/1.
func Status(x, y int64, laserOn bool, power uint8) string {
	flag := 0
	if laserOn {
		flag = 1
	}
	return fmt.Sprintf("STATUS:%d,%d,%d,%d", x, y, flag, power)
}

// hpgl-send streams an HPGL file to a running engraver controller over a
// serial port. Commands are paced by the controller's acknowledgements:
// the next command is only sent after the previous one got its ACK, ERR
// or STATUS line, so the host never outruns a long move.
//
// Usage:
//
//	hpgl-send -port /dev/ttyUSB0 -file drawing.hpgl [options]
//
// Options:
//
//	-port string     Serial device (required unless -list-ports or -dry-run)
//	-baud int        Baud rate (default 115200)
//	-file string     HPGL input file (required)
//	-power int       Override laser power 0-255 (-1 keeps SP values from the file)
//	-scale float     Scale factor applied to all coordinates
//	-center          Center the drawing in the work area
//	-width int       Work area width for -center (default 1800)
//	-height int      Work area height for -center (default 1800)
//	-timeout duration Per-command response timeout (default 30s)
//	-list-ports      List candidate serial ports and exit
//	-dry-run         Print the command stream instead of sending it
//
// Examples:
//
//	hpgl-send -port /dev/ttyUSB0 -file logo.hpgl -power 200
//	hpgl-send -file logo.hpgl -scale 0.5 -center -dry-run
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tarm/serial"

	"laser-engraver-go/pkg/hpgl"
	"laser-engraver-go/pkg/log"
	engserial "laser-engraver-go/pkg/serial"
)

func main() {
	port := flag.String("port", "", "Serial device")
	baud := flag.Int("baud", 115200, "Baud rate")
	file := flag.String("file", "", "HPGL input file")
	power := flag.Int("power", -1, "Override laser power 0-255 (-1 keeps file values)")
	scale := flag.Float64("scale", 0, "Scale factor applied to all coordinates")
	center := flag.Bool("center", false, "Center the drawing in the work area")
	width := flag.Int("width", 1800, "Work area width for -center")
	height := flag.Int("height", 1800, "Work area height for -center")
	timeout := flag.Duration("timeout", 30*time.Second, "Per-command response timeout")
	listPorts := flag.Bool("list-ports", false, "List candidate serial ports and exit")
	dryRun := flag.Bool("dry-run", false, "Print the command stream instead of sending it")
	flag.Parse()

	logger := log.GetLogger("hpgl-send")

	if *listPorts {
		ports, err := engserial.ListPorts()
		if err != nil {
			logger.Error("listing ports: %v", err)
			os.Exit(1)
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
			return
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required")
		flag.Usage()
		os.Exit(1)
	}

	doc, err := hpgl.ParseFile(*file)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	if *scale > 0 {
		doc.Scale(*scale)
	}
	if *center {
		doc.Center(*width, *height)
	}

	b := doc.Bounds()
	logger.Info("%s: %d operations, bounds (%d,%d)-(%d,%d)",
		*file, len(doc.Ops), b.MinX, b.MinY, b.MaxX, b.MaxY)

	lines := doc.WireLines()
	if *power >= 0 {
		lines = overridePower(lines, *power)
	}
	// Always finish with the laser off.
	lines = append(lines, "PU:")

	if *dryRun {
		for _, line := range lines {
			fmt.Println(line)
		}
		return
	}

	if *port == "" {
		fmt.Fprintln(os.Stderr, "Error: -port is required (or use -dry-run)")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := serial.OpenPort(&serial.Config{
		Name:        *port,
		Baud:        *baud,
		ReadTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		logger.Error("opening %s: %v", *port, err)
		os.Exit(1)
	}
	defer conn.Close()

	br := bufio.NewReader(conn)

	// The board resets when the port opens; wait for the ready banner.
	logger.Info("waiting for controller on %s", *port)
	if err := waitForBanner(br, *timeout); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	start := time.Now()
	errCount := 0
	for i, line := range lines {
		if _, err := conn.Write([]byte(line + "\n")); err != nil {
			logger.Error("sending %q: %v", line, err)
			os.Exit(1)
		}
		resp, err := readResponse(br, *timeout)
		if err != nil {
			logger.Error("after %q: %v", line, err)
			os.Exit(1)
		}
		if strings.HasPrefix(resp, "ERR") {
			errCount++
			logger.Warn("%s -> %s", line, resp)
		} else {
			logger.Debug("%s -> %s", line, resp)
		}

		if (i+1)%50 == 0 || i == len(lines)-1 {
			logger.Info("progress %d/%d (%.0f%%)", i+1, len(lines),
				float64(i+1)/float64(len(lines))*100)
		}
	}

	if errCount > 0 {
		logger.Error("job finished with %d rejected commands", errCount)
		os.Exit(1)
	}
	logger.Info("job complete in %s", time.Since(start).Round(time.Second))
}

// overridePower rewrites every SP command to the given power level.
func overridePower(lines []string, power int) []string {
	if power > 255 {
		power = 255
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.HasPrefix(line, "SP:") {
			out[i] = fmt.Sprintf("SP:%d", power)
		} else {
			out[i] = line
		}
	}
	return out
}

// readLine reads one complete line, retrying across serial read
// timeouts (tarm surfaces them as io.EOF with a partial read).
func readLine(br *bufio.Reader, deadline time.Time) (string, bool) {
	var partial strings.Builder
	for time.Now().Before(deadline) {
		chunk, err := br.ReadString('\n')
		partial.WriteString(chunk)
		if err != nil {
			continue
		}
		return strings.TrimSpace(partial.String()), true
	}
	return "", false
}

// waitForBanner consumes output until the controller's ready banner.
// The startup INFO lines that follow are skipped by readResponse's
// INFO filtering.
func waitForBanner(br *bufio.Reader, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		line, ok := readLine(br, deadline)
		if !ok {
			return fmt.Errorf("controller did not report ready within %s", timeout)
		}
		if strings.Contains(line, "Ready") {
			return nil
		}
	}
}

// readResponse reads lines until a primary response (ACK, ERR or STATUS)
// arrives. Secondary INFO lines are skipped.
func readResponse(br *bufio.Reader, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		line, ok := readLine(br, deadline)
		if !ok {
			return "", fmt.Errorf("no response within %s", timeout)
		}
		if line == "" || strings.HasPrefix(line, "INFO") {
			continue
		}
		return line, nil
	}
}

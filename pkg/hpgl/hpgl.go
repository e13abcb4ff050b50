// Package hpgl parses HPGL plotter files and converts them into the
// line-oriented command stream understood by the engraver firmware.
//
// Only the subset of HPGL emitted by common vector tools is supported:
// IN (initialize), PU/PD (pen up/down, with optional coordinate pairs),
// PA (plot absolute), SP (select pen) and CI (circle). Unrecognized
// statements are skipped.
package hpgl

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// OpType identifies a parsed drawing operation.
type OpType int

const (
	OpHome OpType = iota
	OpPenUp
	OpPenDown
	OpMove
	OpPower
)

// Op is a single drawing operation. X/Y are set for OpMove,
// Power for OpPower.
type Op struct {
	Type  OpType
	X, Y  int
	Power uint8
}

// Bounds is the bounding box of all moves in a document.
type Bounds struct {
	MinX, MinY int
	MaxX, MaxY int
}

// Width returns the horizontal extent of the box.
func (b Bounds) Width() int { return b.MaxX - b.MinX }

// Height returns the vertical extent of the box.
func (b Bounds) Height() int { return b.MaxY - b.MinY }

// Document holds the operations parsed from one HPGL file.
type Document struct {
	Ops    []Op
	bounds Bounds
	seen   bool
}

// circleSegments is the number of chords a CI statement is
// flattened into.
const circleSegments = 36

// ParseFile reads and parses an HPGL file from disk.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}

// Parse reads HPGL statements from r. Statements are separated by
// semicolons; whitespace and line breaks are insignificant.
func Parse(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// HPGL ignores whitespace between tokens.
	content := strings.Map(func(c rune) rune {
		switch c {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return c
	}, string(raw))

	doc := &Document{}
	for _, stmt := range strings.Split(content, ";") {
		if stmt == "" {
			continue
		}
		if len(stmt) < 2 {
			continue
		}

		mnemonic, args := stmt[:2], stmt[2:]
		switch mnemonic {
		case "IN":
			doc.Ops = append(doc.Ops, Op{Type: OpHome})
		case "PU":
			doc.Ops = append(doc.Ops, Op{Type: OpPenUp})
			if err := doc.appendMoves(args); err != nil {
				return nil, fmt.Errorf("statement %q: %w", stmt, err)
			}
		case "PD":
			doc.Ops = append(doc.Ops, Op{Type: OpPenDown})
			if err := doc.appendMoves(args); err != nil {
				return nil, fmt.Errorf("statement %q: %w", stmt, err)
			}
		case "PA":
			if err := doc.appendMoves(args); err != nil {
				return nil, fmt.Errorf("statement %q: %w", stmt, err)
			}
		case "SP":
			if args == "" {
				continue
			}
			pen, err := strconv.Atoi(args)
			if err != nil {
				return nil, fmt.Errorf("statement %q: bad pen number: %w", stmt, err)
			}
			doc.Ops = append(doc.Ops, Op{Type: OpPower, Power: PenToPower(pen)})
		case "CI":
			radius, err := strconv.Atoi(args)
			if err != nil {
				return nil, fmt.Errorf("statement %q: bad radius: %w", stmt, err)
			}
			doc.expandCircle(radius)
		default:
			// Unsupported statement (LT, VS, ...), skip.
		}
	}
	return doc, nil
}

// appendMoves parses a comma-separated coordinate list and appends one
// move per x,y pair. A trailing unpaired value is ignored, matching
// plotter behavior.
func (d *Document) appendMoves(args string) error {
	if args == "" {
		return nil
	}
	fields := strings.Split(args, ",")
	nums := make([]int, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return fmt.Errorf("bad coordinate %q: %w", f, err)
		}
		nums = append(nums, n)
	}
	for i := 0; i+1 < len(nums); i += 2 {
		d.addMove(nums[i], nums[i+1])
	}
	return nil
}

func (d *Document) addMove(x, y int) {
	if !d.seen {
		d.bounds = Bounds{MinX: x, MinY: y, MaxX: x, MaxY: y}
		d.seen = true
	} else {
		if x < d.bounds.MinX {
			d.bounds.MinX = x
		}
		if y < d.bounds.MinY {
			d.bounds.MinY = y
		}
		if x > d.bounds.MaxX {
			d.bounds.MaxX = x
		}
		if y > d.bounds.MaxY {
			d.bounds.MaxY = y
		}
	}
	d.Ops = append(d.Ops, Op{Type: OpMove, X: x, Y: y})
}

// expandCircle flattens a CI statement into line segments around the
// preceding move, which HPGL treats as the circle center.
func (d *Document) expandCircle(radius int) {
	if len(d.Ops) == 0 || d.Ops[len(d.Ops)-1].Type != OpMove {
		return
	}
	center := d.Ops[len(d.Ops)-1]
	d.Ops = d.Ops[:len(d.Ops)-1]

	d.Ops = append(d.Ops, Op{Type: OpPenUp})
	d.addMove(center.X+radius, center.Y)
	d.Ops = append(d.Ops, Op{Type: OpPenDown})
	for i := 1; i <= circleSegments; i++ {
		angle := 2 * math.Pi * float64(i) / circleSegments
		x := center.X + int(float64(radius)*math.Cos(angle))
		y := center.Y + int(float64(radius)*math.Sin(angle))
		d.addMove(x, y)
	}
	d.Ops = append(d.Ops, Op{Type: OpPenUp})
}

// Bounds returns the bounding box of all moves. The zero box is
// returned when the document contains no moves.
func (d *Document) Bounds() Bounds {
	if !d.seen {
		return Bounds{}
	}
	return d.bounds
}

// Scale multiplies every move coordinate by factor.
func (d *Document) Scale(factor float64) {
	for i := range d.Ops {
		if d.Ops[i].Type != OpMove {
			continue
		}
		d.Ops[i].X = int(float64(d.Ops[i].X) * factor)
		d.Ops[i].Y = int(float64(d.Ops[i].Y) * factor)
	}
	d.recomputeBounds()
}

// Center translates all moves so the drawing is centered in a
// width x height work area.
func (d *Document) Center(width, height int) {
	if !d.seen {
		return
	}
	offsetX := (width-d.bounds.Width())/2 - d.bounds.MinX
	offsetY := (height-d.bounds.Height())/2 - d.bounds.MinY
	for i := range d.Ops {
		if d.Ops[i].Type != OpMove {
			continue
		}
		d.Ops[i].X += offsetX
		d.Ops[i].Y += offsetY
	}
	d.recomputeBounds()
}

func (d *Document) recomputeBounds() {
	d.seen = false
	for _, op := range d.Ops {
		if op.Type != OpMove {
			continue
		}
		if !d.seen {
			d.bounds = Bounds{MinX: op.X, MinY: op.Y, MaxX: op.X, MaxY: op.Y}
			d.seen = true
			continue
		}
		if op.X < d.bounds.MinX {
			d.bounds.MinX = op.X
		}
		if op.Y < d.bounds.MinY {
			d.bounds.MinY = op.Y
		}
		if op.X > d.bounds.MaxX {
			d.bounds.MaxX = op.X
		}
		if op.Y > d.bounds.MaxY {
			d.bounds.MaxY = op.Y
		}
	}
}

// WireLines renders the document as firmware protocol lines, one
// command per element, without trailing newlines.
func (d *Document) WireLines() []string {
	lines := make([]string, 0, len(d.Ops))
	for _, op := range d.Ops {
		switch op.Type {
		case OpHome:
			lines = append(lines, "HOME:")
		case OpPenUp:
			lines = append(lines, "PU:")
		case OpPenDown:
			lines = append(lines, "PD:")
		case OpMove:
			lines = append(lines, fmt.Sprintf("PA:%d,%d", op.X, op.Y))
		case OpPower:
			lines = append(lines, fmt.Sprintf("SP:%d", op.Power))
		}
	}
	return lines
}

// PenToPower maps an HPGL pen number (0-8) onto the firmware's
// 0-255 PWM range. Pens above 8 saturate at full power.
func PenToPower(pen int) uint8 {
	if pen <= 0 {
		return 0
	}
	power := pen * 255 / 8
	if power > 255 {
		power = 255
	}
	return uint8(power)
}

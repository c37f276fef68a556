package ir

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"

	"lozenge/pkg/utils/coerce"

	"github.com/expr-lang/expr"
)

// MaxLineBytes bounds a single listing line.
const MaxLineBytes = 1 << 20

// SyntaxError reports a malformed listing line.
type SyntaxError struct {
	Line int    `json:"line"`
	Msg  string `json:"message"`
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s on line %d", e.Msg, e.Line)
}

type listingParser struct {
	lines     []Line
	positions []int
	consts    map[string]interface{}
	pending   Label
	pendingAt int
	lineNo    int
}

// ParseListing reads a textual IR listing.
//
//	CONST limit = 4 * 2   ; compile-time constant
//	loop:  LOAD  x
//	       LOADC limit + 1
//	       JMZ   done
//	x:     DEC   0
//
// A label on its own line marks the next instruction.
func ParseListing(r io.Reader) ([]Line, error) {
	lines, _, err := ParseListingPositions(r)
	return lines, err
}

// ParseListingPositions is ParseListing that also returns, for each parsed
// line, the 1-based source line its instruction was read from.
func ParseListingPositions(r io.Reader) ([]Line, []int, error) {
	p := &listingParser{consts: make(map[string]interface{})}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	for sc.Scan() {
		p.lineNo++
		if err := p.parseLine(sc.Text()); err != nil {
			return nil, nil, err
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, nil, &SyntaxError{Line: p.lineNo + 1, Msg: fmt.Sprintf("line longer than %d bytes", MaxLineBytes)}
		}
		return nil, nil, fmt.Errorf("read listing: %w", err)
	}

	if p.pending != "" {
		return nil, nil, &SyntaxError{Line: p.pendingAt, Msg: fmt.Sprintf("label '%s' does not mark an instruction", p.pending)}
	}
	return p.lines, p.positions, nil
}

// ParseListingString is ParseListing over an in-memory source.
func ParseListingString(src string) ([]Line, error) {
	return ParseListing(strings.NewReader(src))
}

func (p *listingParser) errorf(format string, args ...interface{}) error {
	return &SyntaxError{Line: p.lineNo, Msg: fmt.Sprintf(format, args...)}
}

func (p *listingParser) parseLine(raw string) error {
	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}
		name := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(name, " \t") {
			break
		}
		if !isIdentifier(name) {
			return p.errorf("invalid label '%s'", name)
		}
		if p.pending != "" {
			return p.errorf("instruction already labeled '%s', cannot add '%s'", p.pending, name)
		}
		p.pending = name
		p.pendingAt = p.lineNo
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return nil
		}
	}

	fields := strings.Fields(line)
	if strings.EqualFold(fields[0], "CONST") {
		if p.pending != "" {
			return p.errorf("CONST cannot carry label '%s'", p.pending)
		}
		return p.parseConst(strings.TrimSpace(line[len(fields[0]):]))
	}

	op, ok := LookupOp(fields[0])
	if !ok {
		return p.errorf("unknown instruction: %s", fields[0])
	}
	operand := strings.TrimSpace(line[len(fields[0]):])

	inst := Instruction{Op: op}
	switch {
	case op.HasLabel():
		if operand == "" {
			return p.errorf("%s expects a label operand", op)
		}
		if !isIdentifier(operand) {
			return p.errorf("invalid label operand '%s'", operand)
		}
		inst.Target = operand
	case op.HasLiteral():
		if operand == "" {
			return p.errorf("%s expects a literal operand", op)
		}
		n, err := p.evalLiteral(operand)
		if err != nil {
			return err
		}
		inst.Literal = n
	default:
		if operand != "" {
			return p.errorf("%s expects 0 operands", op)
		}
	}

	p.lines = append(p.lines, Line{Label: p.pending, Inst: inst})
	p.positions = append(p.positions, p.lineNo)
	p.pending = ""
	return nil
}

func (p *listingParser) parseConst(def string) error {
	eq := strings.IndexByte(def, '=')
	if eq == -1 {
		return p.errorf("CONST expects 'name = value'")
	}
	name := strings.TrimSpace(def[:eq])
	if !isIdentifier(name) {
		return p.errorf("invalid constant name '%s'", name)
	}
	if _, exists := p.consts[name]; exists {
		return p.errorf("duplicate constant '%s'", name)
	}
	n, err := p.evalLiteral(strings.TrimSpace(def[eq+1:]))
	if err != nil {
		return err
	}
	p.consts[name] = int(n)
	return nil
}

// evalLiteral folds an integer literal or a constant expression into an int32.
func (p *listingParser) evalLiteral(src string) (int32, error) {
	if src == "" {
		return 0, p.errorf("empty literal")
	}
	if v, err := strconv.ParseInt(src, 0, 64); err == nil {
		return p.fitInt32(v, src)
	}

	program, err := expr.Compile(src, expr.Env(p.consts))
	if err != nil {
		return 0, p.errorf("invalid literal '%s': %v", src, err)
	}
	out, err := expr.Run(program, p.consts)
	if err != nil {
		return 0, p.errorf("cannot evaluate '%s': %v", src, err)
	}
	if f, ok := out.(float64); ok && f != math.Trunc(f) {
		return 0, p.errorf("literal '%s' is not an integer (%v)", src, f)
	}
	v, err := coerce.ToInt64(out)
	if err != nil {
		return 0, p.errorf("literal '%s' is not an integer", src)
	}
	return p.fitInt32(v, src)
}

func (p *listingParser) fitInt32(v int64, src string) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, p.errorf("literal '%s' out of 32-bit range", src)
	}
	return int32(v), nil
}

// FormatListing writes lines back in listing syntax.
func FormatListing(w io.Writer, lines []Line) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l.String()); err != nil {
			return err
		}
	}
	return nil
}

func stripComments(line string) string {
	cut := strings.IndexByte(line, ';')
	if ds := strings.Index(line, "//"); ds >= 0 && (cut == -1 || ds < cut) {
		cut = ds
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

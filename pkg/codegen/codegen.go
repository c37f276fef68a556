package codegen

import (
	"log/slog"

	"lozenge/pkg/ir"
	"lozenge/pkg/isa"
)

// Layout describes where each region landed after relocation.
// Main code occupies [0, CodeEnd), data [DataStart, DataEnd) and
// function bodies [FuncStart, len(Words)).
type Layout struct {
	CodeEnd   int `json:"code_end"`
	DataStart int `json:"data_start"`
	DataEnd   int `json:"data_end"`
	FuncStart int `json:"func_start"`
}

// Program is the result of a successful generation.
type Program struct {
	Words   []uint32          `json:"words"`
	Symbols map[string]uint32 `json:"symbols"`
	Lines   []ir.Line         `json:"-"` // final post-relocation order
	Layout  Layout            `json:"layout"`
}

// Labels returns the reverse symbol table, address to label.
func (p *Program) Labels() map[uint32]string {
	out := make(map[uint32]string, len(p.Symbols))
	for name, addr := range p.Symbols {
		out[addr] = name
	}
	return out
}

// ListingOptions prepares disassembly options for this program.
func (p *Program) ListingOptions() isa.ListingOptions {
	return isa.ListingOptions{
		Labels: p.Labels(),
		Data:   isa.Region{Start: p.Layout.DataStart, End: p.Layout.DataEnd},
	}
}

type Option func(*Generator)

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// Generator turns labeled IR lines into encoded machine words.
// A Generator holds no per-run state and may be reused.
type Generator struct {
	logger *slog.Logger
}

func New(opts ...Option) *Generator {
	g := &Generator{logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate relocates, resolves and encodes lines. The input slice is not
// modified. On error no partial program is returned.
func (g *Generator) Generate(lines []ir.Line) (*Program, error) {
	work := make([]entry, len(lines))
	for i, l := range lines {
		if err := l.Inst.Validate(); err != nil {
			return nil, &StructureError{Err: ErrInvalidInstruction, Line: i, Detail: err.Error()}
		}
		work[i] = entry{Line: l, src: i}
	}

	code, data := hoistData(work)
	main, funcs, err := hoistFunctions(code)
	if err != nil {
		return nil, err
	}

	final := make([]entry, 0, len(work))
	final = append(final, main...)
	final = append(final, data...)
	final = append(final, funcs...)

	symbols, err := resolve(final)
	if err != nil {
		return nil, err
	}

	words, err := encode(final, symbols)
	if err != nil {
		return nil, err
	}

	prog := &Program{
		Words:   words,
		Symbols: symbols,
		Lines:   make([]ir.Line, len(final)),
		Layout: Layout{
			CodeEnd:   len(main),
			DataStart: len(main),
			DataEnd:   len(main) + len(data),
			FuncStart: len(main) + len(data),
		},
	}
	for i, e := range final {
		prog.Lines[i] = e.Line
	}

	g.logger.Debug("program generated",
		"words", len(words),
		"symbols", len(symbols),
		"data_cells", len(data),
		"function_words", len(funcs),
	)
	return prog, nil
}

// entry remembers where a line came from so errors point at the caller's input.
type entry struct {
	ir.Line
	src int
}

// hoistData moves every data reservation, in encounter order, behind the rest.
func hoistData(lines []entry) (code, data []entry) {
	for _, e := range lines {
		if e.Inst.Op == ir.DEC {
			data = append(data, e)
		} else {
			code = append(code, e)
		}
	}
	return code, data
}

// hoistFunctions pulls each FUNC..RET unit out of the main stream. Units are
// emitted in the order their entry markers appear. A FUNC inside an open unit
// starts a new unit; the following RET closes the innermost one.
// A RET outside any unit stays in the main stream.
func hoistFunctions(lines []entry) (main, funcs []entry, err error) {
	var units [][]entry
	var open []int // indices into units

	for _, e := range lines {
		switch {
		case e.Inst.Op == ir.FUNC:
			units = append(units, []entry{e})
			open = append(open, len(units)-1)
		case len(open) > 0:
			top := open[len(open)-1]
			units[top] = append(units[top], e)
			if e.Inst.Op == ir.RET {
				open = open[:len(open)-1]
			}
		default:
			main = append(main, e)
		}
	}

	if len(open) > 0 {
		start := units[open[len(open)-1]][0]
		detail := ""
		if start.Label != "" {
			detail = "function '" + start.Label + "'"
		}
		return nil, nil, &StructureError{Err: ErrUnterminatedFunction, Line: start.src, Detail: detail}
	}

	for _, u := range units {
		funcs = append(funcs, u...)
	}
	return main, funcs, nil
}

// addressLimit is the highest address a label may resolve to.
var addressLimit = isa.MaxOperand

// resolve assigns each labeled line its position in the final order.
func resolve(lines []entry) (map[string]uint32, error) {
	symbols := make(map[string]uint32)
	for addr, e := range lines {
		if e.Label == "" {
			continue
		}
		if _, exists := symbols[e.Label]; exists {
			return nil, &LabelError{Err: ErrDuplicateLabel, Label: e.Label, Line: e.src}
		}
		if uint64(addr) > uint64(addressLimit) {
			return nil, &OperandError{Line: e.src, Inst: "label " + e.Label, Value: int64(addr)}
		}
		symbols[e.Label] = uint32(addr)
	}
	return symbols, nil
}

var opcodeFor = map[ir.Op]isa.Opcode{
	ir.JMP:   isa.OpJMP,
	ir.JMZ:   isa.OpJMZ,
	ir.LOAD:  isa.OpLOAD,
	ir.LOADC: isa.OpLOADC,
	ir.STORE: isa.OpSTORE,
	ir.CALL:  isa.OpCALL,
	ir.WRITE: isa.OpWRITE,
	ir.ADD:   isa.OpADD,
	ir.SUB:   isa.OpSUB,
	ir.DIV:   isa.OpDIV,
	ir.MUL:   isa.OpMUL,
	ir.ODD:   isa.OpODD,
	ir.LT:    isa.OpLT,
	ir.LTE:   isa.OpLTE,
	ir.GT:    isa.OpGT,
	ir.GTE:   isa.OpGTE,
	ir.EQ:    isa.OpEQ,
	ir.NEQ:   isa.OpNEQ,
	ir.NOOP:  isa.OpNOOP,
	ir.FUNC:  isa.OpNOOP, // entry marker shares the NOOP tag
	ir.RET:   isa.OpRET,
	ir.HALT:  isa.OpHALT,
}

func encode(lines []entry, symbols map[string]uint32) ([]uint32, error) {
	words := make([]uint32, 0, len(lines))

	for _, e := range lines {
		inst := e.Inst

		if inst.Op == ir.DEC {
			words = append(words, isa.EncodeData(inst.Literal))
			continue
		}

		op := opcodeFor[inst.Op]
		var operand uint32

		switch {
		case inst.Op.HasLabel():
			addr, ok := symbols[inst.Target]
			if !ok {
				return nil, &LabelError{Err: ErrUndefinedLabel, Label: inst.Target, Line: e.src}
			}
			operand = addr
		case inst.Op == ir.LOADC:
			if inst.Literal < 0 || int64(inst.Literal) > int64(isa.MaxOperand) {
				return nil, &OperandError{Line: e.src, Inst: inst.String(), Value: int64(inst.Literal)}
			}
			operand = uint32(inst.Literal)
		}

		word, err := isa.Encode(op, operand)
		if err != nil {
			return nil, &OperandError{Line: e.src, Inst: inst.String(), Value: int64(operand)}
		}
		words = append(words, word)
	}
	return words, nil
}

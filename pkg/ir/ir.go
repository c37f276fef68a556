package ir

import (
	"fmt"
	"strings"
)

// Label is a symbolic name resolved to an address during generation.
type Label = string

// Op identifies an IR instruction variant.
type Op int

const (
	// Label-bearing
	JMP Op = iota
	JMZ
	LOAD
	STORE
	CALL

	// Literal-bearing
	LOADC
	DEC // data reservation, stored verbatim

	// Operand-free
	WRITE
	ADD
	SUB
	DIV
	MUL
	ODD
	LT
	LTE
	GT
	GTE
	EQ
	NEQ
	NOOP
	FUNC // function-entry marker
	RET
	HALT
)

var opNames = [...]string{
	JMP:   "JMP",
	JMZ:   "JMZ",
	LOAD:  "LOAD",
	STORE: "STORE",
	CALL:  "CALL",
	LOADC: "LOADC",
	DEC:   "DEC",
	WRITE: "WRITE",
	ADD:   "ADD",
	SUB:   "SUB",
	DIV:   "DIV",
	MUL:   "MUL",
	ODD:   "ODD",
	LT:    "LT",
	LTE:   "LTE",
	GT:    "GT",
	GTE:   "GTE",
	EQ:    "EQ",
	NEQ:   "NEQ",
	NOOP:  "NOOP",
	FUNC:  "FUNC",
	RET:   "RET",
	HALT:  "HALT",
}

func (o Op) String() string {
	if o >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// HasLabel reports whether the variant refers to exactly one label.
func (o Op) HasLabel() bool {
	return o >= JMP && o <= CALL
}

// HasLiteral reports whether the variant carries exactly one signed integer.
func (o Op) HasLiteral() bool {
	return o == LOADC || o == DEC
}

func (o Op) valid() bool {
	return o >= JMP && o <= HALT
}

// LookupOp maps a mnemonic (any case) to its Op.
func LookupOp(mnemonic string) (Op, bool) {
	m := strings.ToUpper(mnemonic)
	for i, name := range opNames {
		if name == m {
			return Op(i), true
		}
	}
	return 0, false
}

// Instruction is one IR operation. Only the field matching the variant is meaningful.
type Instruction struct {
	Op      Op
	Target  Label
	Literal int32
}

func Jmp(l Label) Instruction   { return Instruction{Op: JMP, Target: l} }
func Jmz(l Label) Instruction   { return Instruction{Op: JMZ, Target: l} }
func Load(l Label) Instruction  { return Instruction{Op: LOAD, Target: l} }
func Store(l Label) Instruction { return Instruction{Op: STORE, Target: l} }
func Call(l Label) Instruction  { return Instruction{Op: CALL, Target: l} }
func LoadC(n int32) Instruction { return Instruction{Op: LOADC, Literal: n} }
func Dec(n int32) Instruction   { return Instruction{Op: DEC, Literal: n} }

// Simple builds an operand-free instruction.
func Simple(op Op) Instruction { return Instruction{Op: op} }

// Validate checks that the instruction carries exactly the operand its variant needs.
func (i Instruction) Validate() error {
	switch {
	case !i.Op.valid():
		return fmt.Errorf("unknown instruction %s", i.Op)
	case i.Op.HasLabel() && i.Target == "":
		return fmt.Errorf("%s requires a label operand", i.Op)
	case !i.Op.HasLabel() && i.Target != "":
		return fmt.Errorf("%s takes no label operand, got %q", i.Op, i.Target)
	case !i.Op.HasLiteral() && i.Literal != 0:
		return fmt.Errorf("%s takes no literal operand, got %d", i.Op, i.Literal)
	}
	return nil
}

func (i Instruction) String() string {
	switch {
	case i.Op.HasLabel():
		return i.Op.String() + " " + i.Target
	case i.Op.HasLiteral():
		return fmt.Sprintf("%s %d", i.Op, i.Literal)
	default:
		return i.Op.String()
	}
}

// Line is an instruction with an optional label marking its address.
type Line struct {
	Label Label
	Inst  Instruction
}

func NewLine(label Label, inst Instruction) Line {
	return Line{Label: label, Inst: inst}
}

func Unlabeled(inst Instruction) Line {
	return Line{Inst: inst}
}

func (l Line) String() string {
	if l.Label == "" {
		return "\t" + l.Inst.String()
	}
	return l.Label + ":\t" + l.Inst.String()
}

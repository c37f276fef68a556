package isa

// Opcode is the high byte of an encoded instruction word.
type Opcode byte

const (
	OpJMP   Opcode = 0x10 // Unconditional jump
	OpJMZ   Opcode = 0x20 // Pop, jump if zero
	OpLOAD  Opcode = 0x30 // Push memory[address]
	OpLOADC Opcode = 0x40 // Push immediate
	OpSTORE Opcode = 0x50 // Pop into memory[address]
	OpCALL  Opcode = 0x60 // Push return address, jump

	OpWRITE Opcode = 0x70 // Pop and emit

	// Arithmetic
	OpADD Opcode = 0x80
	OpSUB Opcode = 0x90
	OpDIV Opcode = 0xA0
	OpMUL Opcode = 0xB0
	OpODD Opcode = 0xC0

	// Comparison
	OpLT  Opcode = 0xD0
	OpLTE Opcode = 0xE0
	OpGT  Opcode = 0xF0
	OpGTE Opcode = 0xF1
	OpEQ  Opcode = 0xF2
	OpNEQ Opcode = 0xF3

	// OpNOOP doubles as the function-entry marker. Both are no-ops at runtime.
	OpNOOP Opcode = 0xF4
	OpRET  Opcode = 0xF5
	OpHALT Opcode = 0xF6
)

func (o Opcode) String() string {
	switch o {
	case OpJMP:
		return "JMP"
	case OpJMZ:
		return "JMZ"
	case OpLOAD:
		return "LOAD"
	case OpLOADC:
		return "LOADC"
	case OpSTORE:
		return "STORE"
	case OpCALL:
		return "CALL"
	case OpWRITE:
		return "WRITE"
	case OpADD:
		return "ADD"
	case OpSUB:
		return "SUB"
	case OpDIV:
		return "DIV"
	case OpMUL:
		return "MUL"
	case OpODD:
		return "ODD"
	case OpLT:
		return "LT"
	case OpLTE:
		return "LTE"
	case OpGT:
		return "GT"
	case OpGTE:
		return "GTE"
	case OpEQ:
		return "EQ"
	case OpNEQ:
		return "NEQ"
	case OpNOOP:
		return "NOOP"
	case OpRET:
		return "RET"
	case OpHALT:
		return "HALT"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether o is part of the instruction table.
func (o Opcode) Valid() bool {
	return o.String() != "UNKNOWN"
}

// HasOperand reports whether the low 24 bits of the word carry an address or immediate.
func (o Opcode) HasOperand() bool {
	switch o {
	case OpJMP, OpJMZ, OpLOAD, OpLOADC, OpSTORE, OpCALL:
		return true
	default:
		return false
	}
}

// IsAddress reports whether the operand is a memory address (as opposed to an immediate).
func (o Opcode) IsAddress() bool {
	return o.HasOperand() && o != OpLOADC
}

// Opcodes lists the whole table in tag order.
var Opcodes = []Opcode{
	OpJMP, OpJMZ, OpLOAD, OpLOADC, OpSTORE, OpCALL, OpWRITE,
	OpADD, OpSUB, OpDIV, OpMUL, OpODD,
	OpLT, OpLTE, OpGT, OpGTE, OpEQ, OpNEQ,
	OpNOOP, OpRET, OpHALT,
}

package vm

import (
	"errors"
	"fmt"

	"lozenge/pkg/fastjson"
	"lozenge/pkg/isa"
)

type FaultKind int

const (
	FaultStackUnderflow FaultKind = iota + 1
	FaultStackOverflow
	FaultReturnUnderflow
	FaultReturnOverflow
	FaultAddressRange
	FaultDivisionByZero
	FaultInvalidOpcode
	FaultStepLimit
	FaultOutput
)

var (
	ErrStackUnderflow  = errors.New("operand stack underflow")
	ErrStackOverflow   = errors.New("operand stack overflow")
	ErrReturnUnderflow = errors.New("return stack underflow")
	ErrReturnOverflow  = errors.New("return stack overflow")
	ErrAddressRange    = errors.New("address out of range")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrInvalidOpcode   = errors.New("invalid opcode")
	ErrStepLimit       = errors.New("step limit exceeded")
	ErrOutput          = errors.New("output failed")
)

var faultErrors = map[FaultKind]error{
	FaultStackUnderflow:  ErrStackUnderflow,
	FaultStackOverflow:   ErrStackOverflow,
	FaultReturnUnderflow: ErrReturnUnderflow,
	FaultReturnOverflow:  ErrReturnOverflow,
	FaultAddressRange:    ErrAddressRange,
	FaultDivisionByZero:  ErrDivisionByZero,
	FaultInvalidOpcode:   ErrInvalidOpcode,
	FaultStepLimit:       ErrStepLimit,
	FaultOutput:          ErrOutput,
}

func (k FaultKind) String() string {
	if err, ok := faultErrors[k]; ok {
		return err.Error()
	}
	return fmt.Sprintf("FaultKind(%d)", int(k))
}

// Fault is a runtime error that stopped the machine. PC is the address of the
// instruction that faulted, not the already advanced program counter.
type Fault struct {
	Kind        FaultKind  `json:"-"`
	PC          uint32     `json:"pc"`
	Word        uint32     `json:"word"`
	Op          isa.Opcode `json:"-"`
	StackDepth  int        `json:"stack_depth"`
	ReturnDepth int        `json:"return_depth"`
	Detail      string     `json:"detail,omitempty"`
}

func (f *Fault) Error() string {
	msg := fmt.Sprintf("fault at pc %d (%s, word 0x%08X): %s", f.PC, f.Op, f.Word, f.Kind)
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	return fmt.Sprintf("%s [stack=%d return=%d]", msg, f.StackDepth, f.ReturnDepth)
}

func (f *Fault) Unwrap() error { return faultErrors[f.Kind] }

// MarshalJSON exposes kind and mnemonic as text.
func (f *Fault) MarshalJSON() ([]byte, error) {
	type plain Fault
	return fastjson.Marshal(struct {
		*plain
		Kind string `json:"kind"`
		Op   string `json:"op"`
	}{(*plain)(f), f.Kind.String(), f.Op.String()})
}

package codegen

import (
	"errors"
	"fmt"
)

var (
	ErrUndefinedLabel       = errors.New("undefined label")
	ErrDuplicateLabel       = errors.New("duplicate label")
	ErrOperandRange         = errors.New("operand out of encodable range")
	ErrUnterminatedFunction = errors.New("function body has no RET")
	ErrInvalidInstruction   = errors.New("invalid instruction")
)

// LabelError is a problem with a label definition or reference.
// Line is the zero-based index of the offending line in the caller's input.
type LabelError struct {
	Err   error
	Label string
	Line  int
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("%v '%s' at line %d", e.Err, e.Label, e.Line)
}

func (e *LabelError) Unwrap() error { return e.Err }

// OperandError reports an address or literal that does not fit the 24-bit field.
type OperandError struct {
	Line  int
	Inst  string
	Value int64
}

func (e *OperandError) Error() string {
	return fmt.Sprintf("%v: %s resolves to %d at line %d", ErrOperandRange, e.Inst, e.Value, e.Line)
}

func (e *OperandError) Unwrap() error { return ErrOperandRange }

// StructureError reports malformed input shape, such as an unterminated function.
type StructureError struct {
	Err    error
	Line   int
	Detail string
}

func (e *StructureError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v at line %d", e.Err, e.Line)
	}
	return fmt.Sprintf("%v at line %d: %s", e.Err, e.Line, e.Detail)
}

func (e *StructureError) Unwrap() error { return e.Err }

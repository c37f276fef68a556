package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"lozenge/pkg/isa"
)

var (
	ErrProgramTooLarge = errors.New("program does not fit in memory")
	ErrMachineStarted  = errors.New("machine has already started")
)

// ctxCheckInterval is how many instructions run between cancellation checks.
const ctxCheckInterval = 1024

type State int

const (
	Running State = iota
	Halted
	Faulted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Faulted:
		return "faulted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// VM executes encoded words over a single flat memory shared by code and data.
// A VM is not safe for concurrent use; run independent programs on separate VMs.
type VM struct {
	memory []uint32
	pc     uint32
	mar    uint32

	stack  []int32
	rstack []uint32

	state State
	fault *Fault
	steps uint64

	stackDepth  int
	returnDepth int
	maxSteps    uint64

	out     io.Writer
	onWrite func(int32)
	logger  *slog.Logger
	trace   bool
	line    []byte
}

func NewVM(opts ...Option) *VM {
	vm := defaults()
	for _, opt := range opts {
		opt(vm)
	}
	vm.stack = make([]int32, 0, min(vm.stackDepth, 256))
	vm.rstack = make([]uint32, 0, min(vm.returnDepth, 64))
	vm.trace = vm.logger.Enabled(context.Background(), slog.LevelDebug)
	return vm
}

// Load copies words into memory starting at address 0. The rest of memory is zeroed.
func (vm *VM) Load(words []uint32) error {
	if vm.steps > 0 || vm.state != Running {
		return ErrMachineStarted
	}
	if len(words) > len(vm.memory) {
		return fmt.Errorf("%w: %d words, memory holds %d", ErrProgramTooLarge, len(words), len(vm.memory))
	}
	n := copy(vm.memory, words)
	clear(vm.memory[n:])
	return nil
}

// Run executes until HALT, a fault, or ctx is done. It returns nil once halted
// and the *Fault when the machine faulted.
func (vm *VM) Run(ctx context.Context) error {
	for vm.state == Running {
		if vm.steps%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := vm.Step(); err != nil {
			return err
		}
	}
	if vm.state == Faulted {
		return vm.fault
	}
	return nil
}

// Step executes exactly one instruction. Stepping a halted machine is a no-op.
func (vm *VM) Step() error {
	switch vm.state {
	case Halted:
		return nil
	case Faulted:
		return vm.fault
	}

	at := vm.pc
	if vm.maxSteps > 0 && vm.steps >= vm.maxSteps {
		var pending uint32
		if int(at) < len(vm.memory) {
			pending = vm.memory[at]
		}
		return vm.raise(FaultStepLimit, at, pending, fmt.Sprintf("limit %d", vm.maxSteps))
	}
	if int(at) >= len(vm.memory) {
		return vm.raise(FaultAddressRange, at, 0, fmt.Sprintf("fetch from %d", at))
	}

	word := vm.memory[at]
	vm.pc++
	vm.steps++

	op, operand := isa.Decode(word)
	if vm.trace {
		vm.logger.Debug("step", "pc", at, "op", op.String(), "operand", operand, "stack", len(vm.stack))
	}

	switch op {
	case isa.OpJMP:
		vm.pc = operand

	case isa.OpJMZ:
		v, ok := vm.pop()
		if !ok {
			return vm.raise(FaultStackUnderflow, at, word, "")
		}
		if v == 0 {
			vm.pc = operand
		}

	case isa.OpLOAD:
		vm.mar = operand
		if int(operand) >= len(vm.memory) {
			return vm.raise(FaultAddressRange, at, word, fmt.Sprintf("load from %d", operand))
		}
		if !vm.push(int32(vm.memory[operand])) {
			return vm.raise(FaultStackOverflow, at, word, "")
		}

	case isa.OpLOADC:
		if !vm.push(int32(operand)) {
			return vm.raise(FaultStackOverflow, at, word, "")
		}

	case isa.OpSTORE:
		vm.mar = operand
		if int(operand) >= len(vm.memory) {
			return vm.raise(FaultAddressRange, at, word, fmt.Sprintf("store to %d", operand))
		}
		v, ok := vm.pop()
		if !ok {
			return vm.raise(FaultStackUnderflow, at, word, "")
		}
		vm.memory[operand] = uint32(v)

	case isa.OpCALL:
		if len(vm.rstack) >= vm.returnDepth {
			return vm.raise(FaultReturnOverflow, at, word, fmt.Sprintf("depth %d", vm.returnDepth))
		}
		vm.rstack = append(vm.rstack, vm.pc)
		vm.pc = operand

	case isa.OpRET:
		if len(vm.rstack) == 0 {
			return vm.raise(FaultReturnUnderflow, at, word, "")
		}
		vm.pc = vm.rstack[len(vm.rstack)-1]
		vm.rstack = vm.rstack[:len(vm.rstack)-1]

	case isa.OpWRITE:
		v, ok := vm.pop()
		if !ok {
			return vm.raise(FaultStackUnderflow, at, word, "")
		}
		vm.line = strconv.AppendInt(vm.line[:0], int64(v), 10)
		vm.line = append(vm.line, '\n')
		if _, err := vm.out.Write(vm.line); err != nil {
			return vm.raise(FaultOutput, at, word, err.Error())
		}
		if vm.onWrite != nil {
			vm.onWrite(v)
		}

	case isa.OpODD:
		a, ok := vm.pop()
		if !ok {
			return vm.raise(FaultStackUnderflow, at, word, "")
		}
		vm.push(boolWord(a%2 != 0))

	case isa.OpADD, isa.OpSUB, isa.OpMUL, isa.OpDIV,
		isa.OpLT, isa.OpLTE, isa.OpGT, isa.OpGTE, isa.OpEQ, isa.OpNEQ:
		if len(vm.stack) < 2 {
			return vm.raise(FaultStackUnderflow, at, word, "")
		}
		a, _ := vm.pop()
		b, _ := vm.pop()
		r, err := binary(op, b, a)
		if err != nil {
			vm.stack = append(vm.stack, b, a)
			return vm.raise(FaultDivisionByZero, at, word, fmt.Sprintf("%d / 0", b))
		}
		vm.push(r)

	case isa.OpNOOP:

	case isa.OpHALT:
		vm.state = Halted

	default:
		return vm.raise(FaultInvalidOpcode, at, word, fmt.Sprintf("tag 0x%02X", byte(op)))
	}
	return nil
}

// binary applies op with b as the left operand (popped second) and a as the right.
func binary(op isa.Opcode, b, a int32) (int32, error) {
	switch op {
	case isa.OpADD:
		return b + a, nil
	case isa.OpSUB:
		return b - a, nil
	case isa.OpMUL:
		return b * a, nil
	case isa.OpDIV:
		if a == 0 {
			return 0, ErrDivisionByZero
		}
		return b / a, nil
	case isa.OpLT:
		return boolWord(b < a), nil
	case isa.OpLTE:
		return boolWord(b <= a), nil
	case isa.OpGT:
		return boolWord(b > a), nil
	case isa.OpGTE:
		return boolWord(b >= a), nil
	case isa.OpEQ:
		return boolWord(b == a), nil
	default: // NEQ
		return boolWord(b != a), nil
	}
}

func boolWord(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (vm *VM) push(v int32) bool {
	if len(vm.stack) >= vm.stackDepth {
		return false
	}
	vm.stack = append(vm.stack, v)
	return true
}

func (vm *VM) pop() (int32, bool) {
	if len(vm.stack) == 0 {
		return 0, false
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, true
}

func (vm *VM) raise(kind FaultKind, pc, word uint32, detail string) error {
	op, _ := isa.Decode(word)
	vm.fault = &Fault{
		Kind:        kind,
		PC:          pc,
		Word:        word,
		Op:          op,
		StackDepth:  len(vm.stack),
		ReturnDepth: len(vm.rstack),
		Detail:      detail,
	}
	vm.state = Faulted
	vm.logger.Debug("machine faulted", "kind", kind.String(), "pc", pc, "steps", vm.steps)
	return vm.fault
}

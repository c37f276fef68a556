package vm

import (
	"fmt"
	"io"

	"lozenge/pkg/isa"
)

func (vm *VM) State() State { return vm.state }
func (vm *VM) PC() uint32 { return vm.pc }
func (vm *VM) MAR() uint32 { return vm.mar }
func (vm *VM) Steps() uint64 { return vm.steps }
func (vm *VM) Fault() *Fault { return vm.fault }
func (vm *VM) MemorySize() int { return len(vm.memory) }

// Stack returns a copy of the operand stack, bottom first.
func (vm *VM) Stack() []int32 {
	return append([]int32(nil), vm.stack...)
}

// ReturnStack returns a copy of the return-address stack, bottom first.
func (vm *VM) ReturnStack() []uint32 {
	return append([]uint32(nil), vm.rstack...)
}

// Peek reads one memory cell as a signed value.
func (vm *VM) Peek(addr uint32) (int32, error) {
	if int(addr) >= len(vm.memory) {
		return 0, fmt.Errorf("%w: %d", ErrAddressRange, addr)
	}
	return int32(vm.memory[addr]), nil
}

// Snapshot is a point-in-time copy of the execution state.
type Snapshot struct {
	State       string   `json:"state"`
	PC          uint32   `json:"pc"`
	MAR         uint32   `json:"mar"`
	Steps       uint64   `json:"steps"`
	Stack       []int32  `json:"stack"`
	ReturnStack []uint32 `json:"return_stack"`
	Fault       *Fault   `json:"fault,omitempty"`
}

func (vm *VM) Snapshot() Snapshot {
	return Snapshot{
		State:       vm.state.String(),
		PC:          vm.pc,
		MAR:         vm.mar,
		Steps:       vm.steps,
		Stack:       vm.Stack(),
		ReturnStack: vm.ReturnStack(),
		Fault:       vm.fault,
	}
}

// Dump prints memory cells [from, to) as a disassembly listing.
func (vm *VM) Dump(w io.Writer, from, to int, opts isa.ListingOptions) {
	to = min(to, len(vm.memory))
	for offset := max(from, 0); offset < to; {
		offset = isa.DisassembleWord(w, vm.memory, offset, opts)
	}
}

package vm

import (
	"io"
	"log/slog"
	"os"
)

const (
	DefaultMemoryWords = 2048
	DefaultStackDepth  = 4096
	DefaultReturnDepth = 1024
)

type Option func(*VM)

// WithMemoryWords sets the size of the shared code/data memory.
func WithMemoryWords(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.memory = make([]uint32, n)
		}
	}
}

// WithStackDepth bounds the operand stack.
func WithStackDepth(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.stackDepth = n
		}
	}
}

// WithReturnDepth bounds the return-address stack, and with it recursion depth.
func WithReturnDepth(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.returnDepth = n
		}
	}
}

// WithMaxSteps faults the machine after n executed instructions. Zero means no limit.
func WithMaxSteps(n uint64) Option {
	return func(vm *VM) {
		vm.maxSteps = n
	}
}

// WithOutput redirects WRITE output. Each value is printed base-10 on its own line.
func WithOutput(w io.Writer) Option {
	return func(vm *VM) {
		if w != nil {
			vm.out = w
		}
	}
}

// OnWrite registers a callback invoked with every WRITE value, after it is printed.
func OnWrite(fn func(int32)) Option {
	return func(vm *VM) {
		vm.onWrite = fn
	}
}

// WithLogger enables per-instruction tracing at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(vm *VM) {
		if l != nil {
			vm.logger = l
		}
	}
}

func defaults() *VM {
	return &VM{
		memory:      make([]uint32, DefaultMemoryWords),
		stackDepth:  DefaultStackDepth,
		returnDepth: DefaultReturnDepth,
		out:         os.Stdout,
		logger:      slog.Default(),
	}
}

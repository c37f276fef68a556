package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"lozenge/pkg/codegen"
	"lozenge/pkg/ir"
	"lozenge/pkg/journal"
	"lozenge/pkg/vm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
	err     error
}

func (m *memRecorder) Record(_ context.Context, e journal.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return m.err
}

const countdown = `
CONST start = 3
        LOADC start
        STORE n
loop:   LOAD  n
        JMZ   done
        LOAD  n
        WRITE
        LOAD  n
        LOADC 1
        SUB
        STORE n
        JMP   loop
done:   HALT
n:      DEC   0
`

func TestRunSource(t *testing.T) {
	var out bytes.Buffer
	rec := &memRecorder{}
	r := New(WithStdout(&out), WithRecorder(rec))

	res, err := r.RunSource(context.Background(), "countdown.lir", strings.NewReader(countdown))
	require.NoError(t, err)

	assert.Equal(t, "3\n2\n1\n", out.String())
	assert.Equal(t, []int32{3, 2, 1}, res.Output)
	assert.Equal(t, StateHalted, res.State)
	assert.Equal(t, 13, res.Words)
	assert.Greater(t, res.Steps, uint64(13))
	assert.Nil(t, res.Fault)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, "countdown.lir", rec.entries[0].Program)
	assert.Equal(t, StateHalted, rec.entries[0].State)
	assert.Equal(t, []int32{3, 2, 1}, rec.entries[0].Output)
}

func TestRunFaultIsReported(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	r := New(WithRecorder(rec))

	res, err := r.RunLines(context.Background(), "div", []ir.Line{
		ir.Unlabeled(ir.LoadC(1)),
		ir.Unlabeled(ir.LoadC(0)),
		ir.Unlabeled(ir.Simple(ir.DIV)),
		ir.Unlabeled(ir.Simple(ir.HALT)),
	})
	require.ErrorIs(t, err, vm.ErrDivisionByZero)
	require.NotNil(t, res)
	assert.Equal(t, StateFaulted, res.State)
	require.NotNil(t, res.Fault)
	assert.Equal(t, uint32(2), res.Fault.PC)

	// journal failures do not change the outcome
	require.Len(t, rec.entries, 1)
	assert.Contains(t, rec.entries[0].Fault, "division by zero")
}

func TestRunHonoursVMOptions(t *testing.T) {
	r := New(WithVMOptions(vm.WithMaxSteps(50)))
	res, err := r.RunLines(context.Background(), "spin", []ir.Line{
		ir.NewLine("top", ir.Jmp("top")),
	})
	assert.ErrorIs(t, err, vm.ErrStepLimit)
	assert.Equal(t, uint64(50), res.Steps)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New().RunLines(ctx, "spin", []ir.Line{ir.NewLine("top", ir.Jmp("top"))})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCanceled, res.State)
}

func TestBuildErrorsReturnNoResult(t *testing.T) {
	r := New()

	res, err := r.RunSource(context.Background(), "bad", strings.NewReader("JMP nowhere"))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, codegen.ErrUndefinedLabel)

	res, err = r.RunSource(context.Background(), "bad", strings.NewReader("PUSH 1"))
	assert.Nil(t, res)
	var se *ir.SyntaxError
	assert.True(t, errors.As(err, &se))
}

func TestProgramTooLarge(t *testing.T) {
	r := New(WithVMOptions(vm.WithMemoryWords(2)))
	_, err := r.RunLines(context.Background(), "big", []ir.Line{
		ir.Unlabeled(ir.Simple(ir.NOOP)),
		ir.Unlabeled(ir.Simple(ir.NOOP)),
		ir.Unlabeled(ir.Simple(ir.HALT)),
	})
	assert.ErrorIs(t, err, vm.ErrProgramTooLarge)
}

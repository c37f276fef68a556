package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"lozenge/pkg/codegen"
	"lozenge/pkg/ir"
	"lozenge/pkg/journal"
	"lozenge/pkg/metrics"
	"lozenge/pkg/vm"
)

// Run outcomes, also used as metric labels.
const (
	StateHalted   = "halted"
	StateFaulted  = "faulted"
	StateCanceled = "canceled"
)

// Recorder persists run outcomes. *journal.Journal satisfies it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Result describes one finished (or interrupted) run.
type Result struct {
	Name     string           `json:"name"`
	Program  *codegen.Program `json:"-"`
	Output   []int32          `json:"output"`
	Words    int              `json:"words"`
	Steps    uint64           `json:"steps"`
	State    string           `json:"state"`
	Fault    *vm.Fault        `json:"fault,omitempty"`
	Duration time.Duration    `json:"duration_ns"`
	Err      error            `json:"-"`
}

type Option func(*Runner)

func WithVMOptions(opts ...vm.Option) Option {
	return func(r *Runner) { r.vmOpts = append(r.vmOpts, opts...) }
}

// WithStdout streams WRITE output while the program runs.
func WithStdout(w io.Writer) Option {
	return func(r *Runner) {
		if w != nil {
			r.stdout = w
		}
	}
}

func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// Runner drives Generate, Load and Run. Every run gets a fresh VM, so one
// Runner may be shared across goroutines as long as its writer is.
type Runner struct {
	gen      *codegen.Generator
	vmOpts   []vm.Option
	stdout   io.Writer
	recorder Recorder
	logger   *slog.Logger
}

func New(opts ...Option) *Runner {
	r := &Runner{stdout: io.Discard, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.gen = codegen.New(codegen.WithLogger(r.logger))
	return r
}

// Build generates a program and counts the attempt.
func (r *Runner) Build(lines []ir.Line) (*codegen.Program, error) {
	prog, err := r.gen.Generate(lines)
	metrics.ObserveGenerate(err)
	return prog, err
}

// BuildSource parses a listing and generates it.
func (r *Runner) BuildSource(src io.Reader) (*codegen.Program, error) {
	lines, err := ir.ParseListing(src)
	if err != nil {
		metrics.ObserveGenerate(err)
		return nil, err
	}
	return r.Build(lines)
}

// RunSource parses, generates and executes a listing.
func (r *Runner) RunSource(ctx context.Context, name string, src io.Reader) (*Result, error) {
	prog, err := r.BuildSource(src)
	if err != nil {
		return nil, err
	}
	return r.RunProgram(ctx, name, prog)
}

// RunLines generates and executes IR lines.
func (r *Runner) RunLines(ctx context.Context, name string, lines []ir.Line) (*Result, error) {
	prog, err := r.Build(lines)
	if err != nil {
		return nil, err
	}
	return r.RunProgram(ctx, name, prog)
}

// RunProgram executes an already generated program on a fresh machine.
// The Result is returned whenever execution started, even if it then faulted
// or was canceled; the error mirrors Result.Err.
func (r *Runner) RunProgram(ctx context.Context, name string, prog *codegen.Program) (*Result, error) {
	res := &Result{Name: name, Program: prog, Words: len(prog.Words)}

	opts := append([]vm.Option{
		vm.WithOutput(r.stdout),
		vm.WithLogger(r.logger),
		vm.OnWrite(func(v int32) { res.Output = append(res.Output, v) }),
	}, r.vmOpts...)
	machine := vm.NewVM(opts...)
	if err := machine.Load(prog.Words); err != nil {
		return nil, err
	}

	start := time.Now()
	err := machine.Run(ctx)
	res.Duration = time.Since(start)
	res.Steps = machine.Steps()
	res.Err = err

	var fault *vm.Fault
	switch {
	case err == nil:
		res.State = StateHalted
	case errors.As(err, &fault):
		res.State = StateFaulted
		res.Fault = fault
	default:
		res.State = StateCanceled
	}

	metrics.ObserveRun(res.State, res.Steps, res.Duration)
	r.logger.Info("program finished",
		"program", name,
		"state", res.State,
		"steps", res.Steps,
		"duration", res.Duration,
	)
	if res.Fault != nil {
		r.logger.Warn("machine fault", "program", name, "error", res.Fault.Error())
	}

	if r.recorder != nil {
		// recording must outlive a canceled run context
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if jerr := r.recorder.Record(recCtx, res.Entry()); jerr != nil {
			r.logger.Warn("failed to record run", "program", name, "error", jerr)
		}
	}
	return res, err
}

// Entry converts the result into a journal row.
func (res *Result) Entry() journal.Entry {
	e := journal.Entry{
		Program:  res.Name,
		State:    res.State,
		Output:   res.Output,
		Steps:    res.Steps,
		Words:    res.Words,
		Duration: res.Duration,
	}
	if res.Err != nil {
		e.Fault = res.Err.Error()
	}
	return e
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"lozenge/pkg/config"
	"lozenge/pkg/runner"
)

// HandleRun generates and executes a listing, streaming WRITE output.
// Usage: lozenge run <file.lir>
func HandleRun(cfg config.Config, args []string) int {
	_, path, code := singleFile(args, "run <file.lir>")
	if code != ExitOK {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	j, err := openJournal(ctx, cfg)
	if err != nil {
		slog.Warn("⚠️  Journal unavailable, runs will not be recorded", "error", err)
	}
	if j != nil {
		defer j.Close()
	}

	return runFile(ctx, path, runner.New(append(runnerOptions(cfg, j), runner.WithStdout(Stdout))...))
}

func runFile(ctx context.Context, path string, r *runner.Runner) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(Stderr, "❌ %v\n", err)
		return ExitFailure
	}
	defer f.Close()

	res, err := r.RunSource(ctx, programName(path), f)
	if res == nil {
		fmt.Fprintf(Stderr, "❌ %s: %v\n", path, err)
		return ExitFailure
	}

	switch res.State {
	case runner.StateHalted:
		return ExitOK
	case runner.StateFaulted:
		fmt.Fprintf(Stderr, "❌ %s: %v\n", path, res.Fault)
		return ExitFailure
	default:
		if errors.Is(err, context.Canceled) {
			fmt.Fprintf(Stderr, "⚠️  %s: interrupted after %d steps\n", path, res.Steps)
			return ExitCanceled
		}
		fmt.Fprintf(Stderr, "❌ %s: %v\n", path, err)
		return ExitFailure
	}
}

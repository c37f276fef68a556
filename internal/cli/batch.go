package cli

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"lozenge/pkg/config"
	"lozenge/pkg/runner"
	"lozenge/pkg/worker"
)

// HandleBatch runs every .lir listing under a directory on the worker pool.
// Usage: lozenge batch <dir>
func HandleBatch(cfg config.Config, args []string) int {
	_, dir, code := singleFile(args, "batch <dir>")
	if code != ExitOK {
		return code
	}

	files, err := findListings(dir)
	if err != nil {
		fmt.Fprintf(Stderr, "❌ %v\n", err)
		return ExitFailure
	}
	if len(files) == 0 {
		fmt.Fprintln(Stdout, "⚠️  No listings found (looking for *.lir).")
		return ExitOK
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

	fmt.Fprintf(Stdout, "🔍 Found %d listing(s)\n\n", len(files))
	start := time.Now()

	queue := worker.NewMemoryQueue(len(files))
	for _, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			fmt.Fprintf(Stderr, "❌ %v\n", err)
			return ExitFailure
		}
		if err := queue.Push(ctx, worker.Job{Name: f, Source: src}); err != nil {
			fmt.Fprintf(Stderr, "❌ %v\n", err)
			return ExitFailure
		}
	}
	queue.Close()

	outcomes := worker.Start(ctx, runner.New(runnerOptions(cfg, j)...), queue, cfg.Workers)

	var results []worker.Outcome
	for o := range outcomes {
		results = append(results, o)
	}
	sort.Slice(results, func(a, b int) bool { return results[a].Job.Name < results[b].Job.Name })

	failed := 0
	for _, o := range results {
		switch {
		case o.Result == nil:
			fmt.Fprintf(Stdout, "❌ %s: %v\n", o.Job.Name, o.Err)
			failed++
		case o.Result.State != runner.StateHalted:
			fmt.Fprintf(Stdout, "❌ %s: %v\n", o.Job.Name, o.Err)
			failed++
		default:
			fmt.Fprintf(Stdout, "✅ %s: %v (%d steps)\n", o.Job.Name, o.Result.Output, o.Result.Steps)
		}
	}

	fmt.Fprintln(Stdout, "\n"+strings.Repeat("-", 40))
	duration := time.Since(start).Round(time.Microsecond)
	if missing := len(files) - len(results); missing > 0 {
		fmt.Fprintf(Stdout, "⚠️  %d listing(s) not run (interrupted)\n", missing)
		return ExitCanceled
	}
	if failed > 0 {
		fmt.Fprintf(Stdout, "💥 %d of %d listing(s) failed. (%s)\n", failed, len(results), duration)
		return ExitFailure
	}
	fmt.Fprintf(Stdout, "🎉 All %d listing(s) halted. (%s)\n", len(results), duration)
	return ExitOK
}

func findListings(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".lir") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"lozenge/pkg/codegen"
	"lozenge/pkg/config"
	"lozenge/pkg/journal"
	"lozenge/pkg/runner"
)

// Exit codes shared by every command.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 64
	ExitCanceled = 130
)

// Version is overridden at link time.
var Version = "0.1.0"

// Command output. Tests swap these for buffers.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

func usage(format string) int {
	fmt.Fprintf(Stderr, "usage: lozenge %s\n", format)
	return ExitUsage
}

// Usage prints the command list.
func Usage() int {
	fmt.Fprintln(Stderr, "usage: lozenge <command> <file>")
	fmt.Fprintln(Stderr, `
Commands:
  run <file.lir>                 generate and execute a listing
  build [--ir|--raw] <file.lir>  print encoded words, the relocated listing or the raw image
  disasm [--json] <file.lir>     disassemble the generated program
  check [--json] <file.lir>      validate a listing without running it
  test <manifest.yaml>           run programs and compare their output
  batch <dir>                    run every listing in a directory concurrently
  serve                          start the HTTP playground
  token <subject>                issue an API token (needs JWT_SECRET)
  version                        print the version`)
	return ExitUsage
}

// parseArgs splits known --flags from positional arguments. Unknown flags are
// reported as an error so they do not get mistaken for file names.
func parseArgs(args []string, known ...string) (map[string]bool, []string, error) {
	flags := make(map[string]bool)
	var rest []string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			rest = append(rest, arg)
			continue
		}
		name := strings.TrimPrefix(arg, "--")
		ok := false
		for _, k := range known {
			if k == name {
				ok = true
				break
			}
		}
		if !ok {
			return nil, nil, fmt.Errorf("unknown flag %s", arg)
		}
		flags[name] = true
	}
	return flags, rest, nil
}

// singleFile accepts exactly one positional argument.
func singleFile(args []string, format string, known ...string) (map[string]bool, string, int) {
	flags, rest, err := parseArgs(args, known...)
	if err != nil {
		fmt.Fprintln(Stderr, err)
		return nil, "", usage(format)
	}
	if len(rest) != 1 {
		return nil, "", usage(format)
	}
	return flags, rest[0], ExitOK
}

func programName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// build reads and generates a listing file.
func build(path string) (*codegen.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return runner.New().BuildSource(f)
}

// openJournal opens and migrates the configured journal, or returns nil when
// journaling is disabled.
func openJournal(ctx context.Context, cfg config.Config) (*journal.Journal, error) {
	if !cfg.JournalEnabled() {
		return nil, nil
	}
	j, err := journal.Open(cfg.JournalDriver, cfg.JournalDSN)
	if err != nil {
		return nil, err
	}
	if err := j.Migrate(ctx); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

// runnerOptions builds the options shared by run, batch and test.
func runnerOptions(cfg config.Config, j *journal.Journal) []runner.Option {
	opts := []runner.Option{runner.WithVMOptions(cfg.VMOptions()...)}
	if j != nil {
		opts = append(opts, runner.WithRecorder(j))
	}
	return opts
}

// HandleVersion prints the version.
func HandleVersion() int {
	fmt.Fprintf(Stdout, "lozenge v%s\n", Version)
	return ExitOK
}

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"lozenge/pkg/config"
	"lozenge/pkg/runner"
	"lozenge/pkg/vm"

	"gopkg.in/yaml.v3"
)

// Manifest lists programs together with the output they must produce.
//
//	tests:
//	  - name: countdown
//	    file: countdown.lir
//	    output: [3, 2, 1]
//	  - name: divide by zero
//	    source: |
//	      LOADC 1
//	      LOADC 0
//	      DIV
//	      HALT
//	    fault: division by zero
type Manifest struct {
	Tests []TestCase `yaml:"tests"`
}

// TestCase is one manifest entry. Exactly one of File and Source is set;
// File is relative to the manifest. When Fault is empty the program must halt.
type TestCase struct {
	Name     string  `yaml:"name"`
	File     string  `yaml:"file"`
	Source   string  `yaml:"source"`
	Output   []int32 `yaml:"output"`
	Fault    string  `yaml:"fault"`
	MaxSteps uint64  `yaml:"max_steps"`
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for i, tc := range m.Tests {
		if (tc.File == "") == (tc.Source == "") {
			return nil, fmt.Errorf("test %d (%s): set exactly one of file or source", i+1, tc.Name)
		}
	}
	return &m, nil
}

// HandleTest runs every program in a manifest and compares its output.
// Usage: lozenge test <manifest.yaml>
func HandleTest(cfg config.Config, args []string) int {
	_, path, code := singleFile(args, "test <manifest.yaml>")
	if code != ExitOK {
		return code
	}

	fmt.Fprintln(Stdout, "🧪 Starting Lozenge Test Runner...")
	start := time.Now()

	m, err := readManifest(path)
	if err != nil {
		fmt.Fprintf(Stderr, "❌ Failed to read manifest: %v\n", err)
		return ExitFailure
	}
	if len(m.Tests) == 0 {
		fmt.Fprintln(Stdout, "⚠️  No tests found in manifest.")
		return ExitOK
	}

	dir := filepath.Dir(path)
	passed, failed := 0, 0
	for i, tc := range m.Tests {
		name := tc.Name
		if name == "" {
			name = fmt.Sprintf("test %d", i+1)
		}
		if err := runTestCase(cfg, dir, tc); err != nil {
			fmt.Fprintf(Stdout, "❌ FAIL: %s\n", name)
			fmt.Fprintf(Stdout, "   Error: %v\n", err)
			failed++
		} else {
			fmt.Fprintf(Stdout, "✅ PASS: %s\n", name)
			passed++
		}
	}

	duration := time.Since(start).Round(time.Microsecond)
	fmt.Fprintln(Stdout, "\n"+strings.Repeat("-", 40))
	if failed == 0 {
		fmt.Fprintf(Stdout, "🎉 All tests passed! (%s)\n", duration)
		return ExitOK
	}
	fmt.Fprintf(Stdout, "💥 %d passed, %d failed. (%s)\n", passed, failed, duration)
	return ExitFailure
}

func runTestCase(cfg config.Config, dir string, tc TestCase) error {
	src := []byte(tc.Source)
	name := tc.Name
	if tc.File != "" {
		var err error
		if src, err = os.ReadFile(filepath.Join(dir, tc.File)); err != nil {
			return err
		}
		name = programName(tc.File)
	}

	opts := runnerOptions(cfg, nil)
	if tc.MaxSteps > 0 {
		opts = append(opts, runner.WithVMOptions(vm.WithMaxSteps(tc.MaxSteps)))
	}

	res, err := runner.New(opts...).RunSource(context.Background(), name, bytes.NewReader(src))
	if res == nil {
		return err
	}

	if tc.Fault != "" {
		if res.Fault == nil {
			return fmt.Errorf("expected fault %q, program %s", tc.Fault, res.State)
		}
		if got := res.Fault.Kind.String(); got != tc.Fault {
			return fmt.Errorf("expected fault %q, got %q", tc.Fault, got)
		}
	} else if res.State != runner.StateHalted {
		return errors.Join(fmt.Errorf("program %s", res.State), err)
	}

	if tc.Output != nil && !slices.Equal(tc.Output, res.Output) {
		return fmt.Errorf("output mismatch: want %v, got %v", tc.Output, res.Output)
	}
	return nil
}

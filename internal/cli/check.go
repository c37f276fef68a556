package cli

import (
	"errors"
	"fmt"
	"os"

	"lozenge/pkg/codegen"
	"lozenge/pkg/fastjson"
	"lozenge/pkg/ir"
	"lozenge/pkg/runner"
)

// Diagnostic is one problem found in a listing. Line is 1-based, 0 when unknown.
type Diagnostic struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// HandleCheck parses and generates a listing without executing it.
// Usage: lozenge check [--json] <file.lir>
func HandleCheck(args []string) int {
	flags, path, code := singleFile(args, "check [--json] <file.lir>", "json")
	if code != ExitOK {
		return code
	}

	words, diag := checkFile(path)

	if flags["json"] {
		out := map[string]interface{}{"success": diag == nil, "errors": []Diagnostic{}}
		if diag != nil {
			out["errors"] = []Diagnostic{*diag}
		} else {
			out["words"] = words
		}
		fastjson.WriteIndented(Stdout, out)
		if diag != nil {
			return ExitFailure
		}
		return ExitOK
	}

	if diag != nil {
		if diag.Line > 0 {
			fmt.Fprintf(Stderr, "❌ %s:%d: %s\n", path, diag.Line, diag.Message)
		} else {
			fmt.Fprintf(Stderr, "❌ %s: %s\n", path, diag.Message)
		}
		return ExitFailure
	}
	fmt.Fprintf(Stdout, "✅ %s is valid (%d words)\n", path, words)
	return ExitOK
}

func checkFile(path string) (int, *Diagnostic) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &Diagnostic{Type: "error", Message: err.Error()}
	}
	defer f.Close()

	lines, positions, err := ir.ParseListingPositions(f)
	if err != nil {
		var se *ir.SyntaxError
		if errors.As(err, &se) {
			return 0, &Diagnostic{Type: "syntax", Message: se.Msg, Line: se.Line}
		}
		return 0, &Diagnostic{Type: "error", Message: err.Error()}
	}

	prog, err := runner.New().Build(lines)
	if err != nil {
		d := &Diagnostic{Type: "generate", Message: err.Error()}
		if idx, msg, ok := describe(err); ok && idx < len(positions) {
			d.Line = positions[idx]
			d.Message = msg
		}
		return 0, d
	}
	return len(prog.Words), nil
}

// describe extracts the input index a generation error refers to, with a
// message that leaves the index out.
func describe(err error) (int, string, bool) {
	var le *codegen.LabelError
	var oe *codegen.OperandError
	var se *codegen.StructureError
	switch {
	case errors.As(err, &le):
		return le.Line, fmt.Sprintf("%v '%s'", le.Err, le.Label), true
	case errors.As(err, &oe):
		return oe.Line, fmt.Sprintf("%v: %s resolves to %d", codegen.ErrOperandRange, oe.Inst, oe.Value), true
	case errors.As(err, &se):
		if se.Detail != "" {
			return se.Line, fmt.Sprintf("%v: %s", se.Err, se.Detail), true
		}
		return se.Line, se.Err.Error(), true
	}
	return 0, "", false
}

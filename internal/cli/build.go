package cli

import (
	"fmt"

	"lozenge/pkg/fastjson"
	"lozenge/pkg/ir"
	"lozenge/pkg/isa"
)

// HandleBuild prints the encoded words of a listing, one per line, or with
// --ir the relocated listing the words were generated from. --raw writes the
// big-endian program image instead.
// Usage: lozenge build [--ir|--raw] <file.lir>
func HandleBuild(args []string) int {
	flags, path, code := singleFile(args, "build [--ir|--raw] <file.lir>", "ir", "raw")
	if code != ExitOK {
		return code
	}

	prog, err := build(path)
	if err != nil {
		fmt.Fprintf(Stderr, "❌ %s: %v\n", path, err)
		return ExitFailure
	}

	if flags["ir"] {
		if err := ir.FormatListing(Stdout, prog.Lines); err != nil {
			fmt.Fprintf(Stderr, "❌ %v\n", err)
			return ExitFailure
		}
		return ExitOK
	}

	if flags["raw"] {
		if _, err := Stdout.Write(isa.WordsToBytes(prog.Words)); err != nil {
			fmt.Fprintf(Stderr, "❌ %v\n", err)
			return ExitFailure
		}
		return ExitOK
	}

	for _, w := range prog.Words {
		fmt.Fprintf(Stdout, "0x%08X\n", w)
	}
	return ExitOK
}

// HandleDisasm disassembles the program generated from a listing.
// Usage: lozenge disasm [--json] <file.lir>
func HandleDisasm(args []string) int {
	flags, path, code := singleFile(args, "disasm [--json] <file.lir>", "json")
	if code != ExitOK {
		return code
	}

	prog, err := build(path)
	if err != nil {
		fmt.Fprintf(Stderr, "❌ %s: %v\n", path, err)
		return ExitFailure
	}

	if flags["json"] {
		err := fastjson.WriteIndented(Stdout, map[string]interface{}{
			"name":    programName(path),
			"layout":  prog.Layout,
			"symbols": prog.Symbols,
			"entries": isa.Decompile(prog.Words, prog.ListingOptions()),
		})
		if err != nil {
			fmt.Fprintf(Stderr, "❌ %v\n", err)
			return ExitFailure
		}
		return ExitOK
	}

	isa.Disassemble(Stdout, programName(path), prog.Words, prog.ListingOptions())
	return ExitOK
}

package isa

import (
	"fmt"
	"io"
)

// Region marks a half-open address range [Start, End) of data words.
type Region struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Region) contains(addr int) bool {
	return addr >= r.Start && addr < r.End
}

// ListingOptions control how a word stream is rendered.
type ListingOptions struct {
	// Labels maps addresses to symbolic names for annotation.
	Labels map[uint32]string
	// Data is printed as raw values instead of being decoded.
	Data Region
}

// Entry is one decoded word of a listing.
type Entry struct {
	Address  int    `json:"address"`
	Word     uint32 `json:"word"`
	Label    string `json:"label,omitempty"`
	Mnemonic string `json:"mnemonic"`
	Operand  *int64 `json:"operand,omitempty"`
	Target   string `json:"target,omitempty"`
}

// Decompile decodes every word of a program into listing entries.
func Decompile(words []uint32, opts ListingOptions) []Entry {
	entries := make([]Entry, 0, len(words))
	for addr, word := range words {
		entries = append(entries, decodeEntry(addr, word, opts))
	}
	return entries
}

func decodeEntry(addr int, word uint32, opts ListingOptions) Entry {
	e := Entry{Address: addr, Word: word, Label: opts.Labels[uint32(addr)]}

	if opts.Data.contains(addr) {
		v := int64(int32(word))
		e.Mnemonic = "DEC"
		e.Operand = &v
		return e
	}

	op, operand := Decode(word)
	if !op.Valid() {
		v := int64(int32(word))
		e.Mnemonic = ".word"
		e.Operand = &v
		return e
	}

	e.Mnemonic = op.String()
	if op.HasOperand() {
		v := int64(operand)
		e.Operand = &v
		if op.IsAddress() {
			e.Target = opts.Labels[operand]
		}
	}
	return e
}

// Disassemble prints all words in a human-readable format.
func Disassemble(w io.Writer, name string, words []uint32, opts ListingOptions) {
	fmt.Fprintf(w, "== %s ==\n", name)

	for offset := 0; offset < len(words); {
		offset = DisassembleWord(w, words, offset, opts)
	}
}

// DisassembleWord prints a single word and returns the next offset.
func DisassembleWord(w io.Writer, words []uint32, offset int, opts ListingOptions) int {
	e := decodeEntry(offset, words[offset], opts)

	label := ""
	if e.Label != "" {
		label = e.Label + ":"
	}
	fmt.Fprintf(w, "%04d %08X %-12s", e.Address, e.Word, label)

	switch {
	case e.Operand == nil:
		fmt.Fprintf(w, "%s\n", e.Mnemonic)
	case e.Target != "":
		fmt.Fprintf(w, "%-6s %6d -> %s\n", e.Mnemonic, *e.Operand, e.Target)
	default:
		fmt.Fprintf(w, "%-6s %6d\n", e.Mnemonic, *e.Operand)
	}
	return offset + 1
}

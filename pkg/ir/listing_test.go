package ir

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListing(t *testing.T) {
	src := `
; sum two numbers
CONST base = 4 * 2
main:   LOADC base
        LOADC 3
        ADD
        STORE x
        CALL  show
        HALT
x:      DEC   -1
show:
        FUNC
        LOAD  x   // print it
        WRITE
        RET
`
	lines, err := ParseListingString(src)
	require.NoError(t, err)
	require.Len(t, lines, 11)

	assert.Equal(t, NewLine("main", LoadC(8)), lines[0])
	assert.Equal(t, Unlabeled(LoadC(3)), lines[1])
	assert.Equal(t, Unlabeled(Simple(ADD)), lines[2])
	assert.Equal(t, Unlabeled(Store("x")), lines[3])
	assert.Equal(t, Unlabeled(Call("show")), lines[4])
	assert.Equal(t, NewLine("x", Dec(-1)), lines[6])
	assert.Equal(t, NewLine("show", Simple(FUNC)), lines[7])
	assert.Equal(t, Unlabeled(Simple(RET)), lines[10])
}

func TestParseListingMnemonicsAnyCase(t *testing.T) {
	lines, err := ParseListingString("loadc 0x10\nJmz end\nend: halt")
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, int32(16), lines[0].Inst.Literal)
	assert.Equal(t, JMZ, lines[1].Inst.Op)
	assert.Equal(t, HALT, lines[2].Inst.Op)
}

func TestParseListingConstExpressions(t *testing.T) {
	src := `CONST a = 10
CONST b = a * 3 - 1
CONST half = b / 29 + 1
LOADC b
DEC half
DEC a % 3`
	lines, err := ParseListingString(src)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, int32(29), lines[0].Inst.Literal)
	assert.Equal(t, int32(2), lines[1].Inst.Literal)
	assert.Equal(t, int32(1), lines[2].Inst.Literal)
}

func TestParseListingErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"unknown mnemonic", "LOADC 1\nPUSH 2", 2},
		{"missing label operand", "JMP", 1},
		{"missing literal", "HALT\n\nLOADC", 3},
		{"stray operand", "ADD 3", 1},
		{"bad label operand", "CALL 12", 1},
		{"two labels", "a: b: HALT", 1},
		{"dangling label", "HALT\nend:", 2},
		{"undefined constant", "LOADC missing + 1", 1},
		{"fractional constant", "CONST f = 7 / 2\nLOADC f", 1},
		{"duplicate constant", "CONST a = 1\nCONST a = 2", 2},
		{"out of range", "DEC 4294967296", 1},
		{"bad const syntax", "CONST a 5", 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseListingString(tc.src)
			require.Error(t, err)

			var se *SyntaxError
			require.True(t, errors.As(err, &se), "want *SyntaxError, got %T", err)
			assert.Equal(t, tc.line, se.Line)
		})
	}
}

func TestFormatListingRoundTrip(t *testing.T) {
	lines := []Line{
		NewLine("start", LoadC(5)),
		Unlabeled(Jmz("start")),
		Unlabeled(Simple(WRITE)),
		NewLine("cell", Dec(-42)),
	}

	var buf bytes.Buffer
	require.NoError(t, FormatListing(&buf, lines))

	back, err := ParseListing(&buf)
	require.NoError(t, err)
	assert.Equal(t, lines, back)
}

func TestParseListingPositions(t *testing.T) {
	src := "; header\nCONST k = 2\n\nstart:\n  LOADC k\n  WRITE ; out\nHALT\n"
	lines, pos, err := ParseListingPositions(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, []int{5, 6, 7}, pos)
	assert.Equal(t, "start", lines[0].Label)
}

func TestParseListingLongLines(t *testing.T) {
	comment := "; " + strings.Repeat("x", 70000)
	lines, err := ParseListingString("LOADC 1\n" + comment + "\nWRITE\nHALT\n")
	require.NoError(t, err)
	assert.Len(t, lines, 3)

	huge := "; " + strings.Repeat("x", MaxLineBytes)
	_, err = ParseListingString("LOADC 1\nWRITE\n" + huge + "\nHALT\n")
	var se *SyntaxError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, 3, se.Line)
}

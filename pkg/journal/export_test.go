package journal

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteXLSX(t *testing.T) {
	entries := []Entry{
		{ID: 2, Program: "div", State: "faulted", Fault: "division by zero", Steps: 3, Words: 4, Duration: 1500 * time.Microsecond, CreatedAt: time.UnixMilli(1_700_000_000_000)},
		{ID: 1, Program: "countdown", State: "halted", Output: []int32{3, 2, 1}, Steps: 41, Words: 13},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, entries))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Runs")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Program", rows[0][1])
	assert.Equal(t, "div", rows[1][1])
	assert.Equal(t, "division by zero", rows[1][6])
	assert.Equal(t, "1.5", rows[1][7])
	assert.Equal(t, "2023-11-14 22:13:20", rows[1][8])
	assert.Equal(t, "3 2 1", rows[2][3])
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Runs")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Journal {
	t.Helper()
	j, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	require.NoError(t, j.Migrate(context.Background()))
	return j
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	j := openMemory(t)

	// migrating twice is harmless
	require.NoError(t, j.Migrate(ctx))

	at := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, j.Record(ctx, Entry{Program: "examples/Sum Two.lir", State: "halted", Output: []int32{8}, Steps: 5, Words: 5, CreatedAt: at}))
	require.NoError(t, j.Record(ctx, Entry{Program: "div.lir", State: "faulted", Fault: "division by zero", Steps: 3, Words: 4, Duration: time.Millisecond}))
	require.NoError(t, j.Record(ctx, Entry{Program: "loop", State: "canceled", Steps: 1 << 40}))

	entries, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "loop", entries[0].Program)
	assert.Equal(t, uint64(1<<40), entries[0].Steps)
	assert.Empty(t, entries[0].Output)

	assert.Equal(t, "div", entries[1].Program)
	assert.Equal(t, "division by zero", entries[1].Fault)
	assert.Equal(t, time.Millisecond, entries[1].Duration)
	assert.False(t, entries[1].CreatedAt.IsZero())

	all, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "sum-two", all[2].Program)
	assert.Equal(t, []int32{8}, all[2].Output)
	assert.Equal(t, at.UnixMilli(), all[2].CreatedAt.UnixMilli())
	assert.Greater(t, all[0].ID, all[2].ID)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.Error(t, err)
}

func TestProgramName(t *testing.T) {
	assert.Equal(t, "fib-loop", ProgramName("/tmp/progs/Fib Loop.lir"))
	assert.Equal(t, "sum", ProgramName("sum"))
	assert.Equal(t, "program", ProgramName("???.lir"))
}

func TestDialects(t *testing.T) {
	tests := []struct {
		driver string
		name   string
		quote  string
		ph     string
		limit  string
	}{
		{"sqlite3", "sqlite", `"runs"`, "?", " LIMIT 5"},
		{"mysql", "mysql", "`runs`", "?", " LIMIT 5"},
		{"postgresql", "postgres", `"runs"`, "$2", " LIMIT 5"},
		{"mssql", "sqlserver", "[runs]", "@p2", " OFFSET 0 ROWS FETCH NEXT 5 ROWS ONLY"},
	}
	for _, tc := range tests {
		t.Run(tc.driver, func(t *testing.T) {
			d, err := GetDialect(tc.driver)
			require.NoError(t, err)
			assert.Equal(t, tc.name, d.Name())
			assert.Equal(t, tc.quote, d.QuoteIdentifier("runs"))
			assert.Equal(t, tc.ph, d.Placeholder(2))
			assert.Equal(t, tc.limit, d.Limit(5, 0))
			assert.Contains(t, d.CreateTable("runs", "x INTEGER"), tc.quote+" (x INTEGER)")
		})
	}

	assert.Equal(t, " LIMIT -1 OFFSET 3", SQLiteDialect{}.Limit(0, 3))
	assert.Equal(t, " LIMIT 3, 5", MySQLDialect{}.Limit(5, 3))
	assert.Contains(t, SQLServerDialect{}.CreateTable("runs", "x INT"), "IF OBJECT_ID(N'runs', N'U') IS NULL")
}

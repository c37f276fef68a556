package journal

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"lozenge/pkg/fastjson"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gosimple/slug"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const table = "lozenge_runs"

// Entry is one recorded run outcome. Compiled words are never stored.
type Entry struct {
	ID        int64         `json:"id"`
	Program   string        `json:"program"`
	State     string        `json:"state"`
	Output    []int32       `json:"output"`
	Steps     uint64        `json:"steps"`
	Words     int           `json:"words"`
	Fault     string        `json:"fault,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	CreatedAt time.Time     `json:"created_at"`
}

// Journal appends run outcomes to a SQL table.
type Journal struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the journal database. Supported drivers: sqlite, mysql,
// postgres and sqlserver.
func Open(driver, dsn string) (*Journal, error) {
	dialect, err := GetDialect(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	if dialect.Name() == "sqlite" {
		// one connection, so :memory: databases are shared and writes serialize
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	return &Journal{db: db, dialect: dialect}, nil
}

// New wraps an existing connection.
func New(db *sql.DB, dialect Dialect) *Journal {
	return &Journal{db: db, dialect: dialect}
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) Dialect() Dialect { return j.dialect }

// Migrate creates the runs table if it is missing.
func (j *Journal) Migrate(ctx context.Context) error {
	q := j.dialect.QuoteIdentifier
	body := strings.Join([]string{
		q("id") + " " + j.dialect.IDColumn(),
		q("program") + " VARCHAR(255) NOT NULL",
		q("state") + " VARCHAR(32) NOT NULL",
		q("output") + " " + j.dialect.TextType(),
		q("steps") + " BIGINT NOT NULL",
		q("words") + " INTEGER NOT NULL",
		q("fault") + " " + j.dialect.TextType(),
		q("duration_ns") + " BIGINT NOT NULL",
		q("created_at") + " BIGINT NOT NULL",
	}, ", ")

	if _, err := j.db.ExecContext(ctx, j.dialect.CreateTable(table, body)); err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	return nil
}

var columns = []string{"program", "state", "output", "steps", "words", "fault", "duration_ns", "created_at"}

// Record inserts one entry. A zero CreatedAt is set to now.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	output, err := fastjson.Marshal(e.Output)
	if err != nil {
		return err
	}

	cols := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = j.dialect.QuoteIdentifier(c)
		marks[i] = j.dialect.Placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		j.dialect.QuoteIdentifier(table), strings.Join(cols, ", "), strings.Join(marks, ", "))

	_, err = j.db.ExecContext(ctx, query,
		ProgramName(e.Program),
		e.State,
		string(output),
		int64(e.Steps),
		e.Words,
		e.Fault,
		int64(e.Duration),
		e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	cols := make([]string, 0, len(columns)+1)
	cols = append(cols, j.dialect.QuoteIdentifier("id"))
	for _, c := range columns {
		cols = append(cols, j.dialect.QuoteIdentifier(c))
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC%s",
		strings.Join(cols, ", "),
		j.dialect.QuoteIdentifier(table),
		j.dialect.QuoteIdentifier("id"),
		j.dialect.Limit(limit, 0))

	rows, err := j.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                   Entry
			output, fault       sql.NullString
			steps, dur, created int64
		)
		if err := rows.Scan(&e.ID, &e.Program, &e.State, &output, &steps, &e.Words, &fault, &dur, &created); err != nil {
			return nil, err
		}
		if output.Valid && output.String != "" {
			if err := fastjson.Unmarshal([]byte(output.String), &e.Output); err != nil {
				return nil, fmt.Errorf("decode output of run %d: %w", e.ID, err)
			}
		}
		e.Fault = fault.String
		e.Steps = uint64(steps)
		e.Duration = time.Duration(dur)
		e.CreatedAt = time.UnixMilli(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ProgramName turns a file path or free-form title into a stable slug.
func ProgramName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if s := slug.Make(base); s != "" {
		return s
	}
	return "program"
}

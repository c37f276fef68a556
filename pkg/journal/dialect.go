package journal

import (
	"fmt"
	"strings"
)

// Dialect abstraction for different SQL databases
type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	Placeholder(n int) string
	Limit(limit, offset int) string
	IDColumn() string
	TextType() string
	CreateTable(table, body string) string
}

type MySQLDialect struct{}

func (d MySQLDialect) Name() string { return "mysql" }

func (d MySQLDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d MySQLDialect) Placeholder(n int) string { return "?" }

func (d MySQLDialect) Limit(limit, offset int) string {
	if limit > 0 {
		if offset > 0 {
			return fmt.Sprintf(" LIMIT %d, %d", offset, limit)
		}
		return fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		return fmt.Sprintf(" LIMIT 18446744073709551615 OFFSET %d", offset)
	}
	return ""
}

func (d MySQLDialect) IDColumn() string { return "BIGINT AUTO_INCREMENT PRIMARY KEY" }
func (d MySQLDialect) TextType() string { return "TEXT" }

func (d MySQLDialect) CreateTable(table, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdentifier(table), body)
}

type SQLiteDialect struct{}

func (d SQLiteDialect) Name() string { return "sqlite" }

func (d SQLiteDialect) QuoteIdentifier(name string) string {
	return "\"" + strings.ReplaceAll(name, "\"", "\"\"") + "\""
}

func (d SQLiteDialect) Placeholder(n int) string { return "?" }

func (d SQLiteDialect) Limit(limit, offset int) string {
	res := ""
	if limit > 0 {
		res += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		if limit <= 0 {
			res += " LIMIT -1" // OFFSET needs a LIMIT
		}
		res += fmt.Sprintf(" OFFSET %d", offset)
	}
	return res
}

func (d SQLiteDialect) IDColumn() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }
func (d SQLiteDialect) TextType() string { return "TEXT" }

func (d SQLiteDialect) CreateTable(table, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdentifier(table), body)
}

type SQLServerDialect struct{}

func (d SQLServerDialect) Name() string { return "sqlserver" }

func (d SQLServerDialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// Placeholder uses @p1, @p2, ...
func (d SQLServerDialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

// Limit uses OFFSET-FETCH (SQL Server 2012+), which requires an ORDER BY.
func (d SQLServerDialect) Limit(limit, offset int) string {
	res := ""
	if offset > 0 {
		res += fmt.Sprintf(" OFFSET %d ROWS", offset)
		if limit > 0 {
			res += fmt.Sprintf(" FETCH NEXT %d ROWS ONLY", limit)
		}
	} else if limit > 0 {
		res += fmt.Sprintf(" OFFSET 0 ROWS FETCH NEXT %d ROWS ONLY", limit)
	}
	return res
}

func (d SQLServerDialect) IDColumn() string { return "BIGINT IDENTITY(1,1) PRIMARY KEY" }
func (d SQLServerDialect) TextType() string { return "NVARCHAR(MAX)" }

func (d SQLServerDialect) CreateTable(table, body string) string {
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)",
		strings.ReplaceAll(table, "'", "''"), d.QuoteIdentifier(table), body)
}

type PostgreSQLDialect struct{}

func (d PostgreSQLDialect) Name() string { return "postgres" }

func (d PostgreSQLDialect) QuoteIdentifier(name string) string {
	return "\"" + strings.ReplaceAll(name, "\"", "\"\"") + "\""
}

// Placeholder uses $1, $2, ...
func (d PostgreSQLDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (d PostgreSQLDialect) Limit(limit, offset int) string {
	res := ""
	if limit > 0 {
		res += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		res += fmt.Sprintf(" OFFSET %d", offset)
	}
	return res
}

func (d PostgreSQLDialect) IDColumn() string { return "BIGSERIAL PRIMARY KEY" }
func (d PostgreSQLDialect) TextType() string { return "TEXT" }

func (d PostgreSQLDialect) CreateTable(table, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdentifier(table), body)
}

// driverName normalizes aliases to the name the database/sql driver registered.
func driverName(driver string) string {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return "sqlite"
	case "postgres", "postgresql":
		return "postgres"
	case "sqlserver", "mssql":
		return "sqlserver"
	default:
		return strings.ToLower(driver)
	}
}

// GetDialect returns the appropriate dialect for the driver name
func GetDialect(driver string) (Dialect, error) {
	switch driverName(driver) {
	case "mysql":
		return MySQLDialect{}, nil
	case "sqlite":
		return SQLiteDialect{}, nil
	case "postgres":
		return PostgreSQLDialect{}, nil
	case "sqlserver":
		return SQLServerDialect{}, nil
	}
	return nil, fmt.Errorf("unsupported journal driver %q", driver)
}

package config

import (
	"fmt"
	"os"
	"time"

	"lozenge/pkg/utils/coerce"
	"lozenge/pkg/vm"
)

// Config is the process configuration, read from the environment (and .env).
type Config struct {
	Env      string
	LogLevel string

	MemoryWords int
	StackDepth  int
	ReturnDepth int
	MaxSteps    uint64

	Workers int

	JournalDriver string
	JournalDSN    string

	Port              string
	RateLimitRequests int // 0 disables rate limiting
	RateLimitWindow   time.Duration
	JWTSecret         string // empty leaves the API open
}

// Load reads every setting, falling back to defaults for missing or malformed values.
func Load() Config {
	maxSteps, err := coerce.ToInt64(os.Getenv("LOZENGE_MAX_STEPS"))
	if err != nil || maxSteps < 0 {
		maxSteps = 0
	}

	c := Config{
		Env:      envOr("APP_ENV", "development"),
		LogLevel: envOr("LOZENGE_LOG_LEVEL", "info"),

		MemoryWords: coerce.ToIntDef(os.Getenv("LOZENGE_MEMORY_WORDS"), vm.DefaultMemoryWords),
		StackDepth:  coerce.ToIntDef(os.Getenv("LOZENGE_STACK_DEPTH"), vm.DefaultStackDepth),
		ReturnDepth: coerce.ToIntDef(os.Getenv("LOZENGE_RETURN_DEPTH"), vm.DefaultReturnDepth),
		MaxSteps:    uint64(maxSteps),

		Workers: coerce.ToIntDef(os.Getenv("LOZENGE_WORKERS"), 4),

		JournalDriver: os.Getenv("JOURNAL_DRIVER"),
		JournalDSN:    os.Getenv("JOURNAL_DSN"),

		Port:              envOr("APP_PORT", "3000"),
		RateLimitRequests: coerce.ToIntDef(os.Getenv("RATE_LIMIT_REQUESTS"), 0),
		RateLimitWindow:   window(os.Getenv("RATE_LIMIT_WINDOW")),
		JWTSecret:         os.Getenv("JWT_SECRET"),
	}
	if c.JournalDriver != "" && c.JournalDSN == "" {
		c.JournalDSN = journalDSN(c.JournalDriver)
	}
	return c
}

// VMOptions maps the machine limits onto vm options.
func (c Config) VMOptions() []vm.Option {
	return []vm.Option{
		vm.WithMemoryWords(c.MemoryWords),
		vm.WithStackDepth(c.StackDepth),
		vm.WithReturnDepth(c.ReturnDepth),
		vm.WithMaxSteps(c.MaxSteps),
	}
}

// JournalEnabled reports whether run outcomes should be recorded.
func (c Config) JournalEnabled() bool {
	return c.JournalDriver != ""
}

// journalDSN builds a DSN from JOURNAL_HOST/USER/PASS/NAME for the given driver.
func journalDSN(driver string) string {
	host := os.Getenv("JOURNAL_HOST")
	user := os.Getenv("JOURNAL_USER")
	pass := os.Getenv("JOURNAL_PASS")
	name := os.Getenv("JOURNAL_NAME")

	switch driver {
	case "sqlite":
		if name == "" {
			return "lozenge_journal.db"
		}
		return name
	case "sqlserver", "mssql":
		return fmt.Sprintf("sqlserver://%s:%s@%s?database=%s", user, pass, host, name)
	case "postgres", "postgresql":
		return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", user, pass, host, name)
	default:
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", user, pass, host, name)
	}
}

// window accepts "30s" style durations or a bare number of seconds.
func window(v string) time.Duration {
	if secs, err := coerce.ToInt(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return coerce.ToDurationDef(v, time.Minute)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

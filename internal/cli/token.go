package cli

import (
	"fmt"
	"time"

	"lozenge/pkg/config"
	"lozenge/pkg/middleware"
)

const tokenTTL = 24 * time.Hour

// HandleToken issues an API token signed with JWT_SECRET.
// Usage: lozenge token <subject>
func HandleToken(cfg config.Config, args []string) int {
	_, subject, code := singleFile(args, "token <subject>")
	if code != ExitOK {
		return code
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(Stderr, "❌ JWT_SECRET is not set")
		return ExitFailure
	}

	token, err := middleware.IssueToken(cfg.JWTSecret, subject, tokenTTL)
	if err != nil {
		fmt.Fprintf(Stderr, "❌ %v\n", err)
		return ExitFailure
	}
	fmt.Fprintln(Stdout, token)
	return ExitOK
}

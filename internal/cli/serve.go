package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lozenge/internal/server"
	"lozenge/pkg/config"
)

// HandleServe starts the HTTP playground and blocks until interrupted.
// Usage: lozenge serve
func HandleServe(cfg config.Config, args []string) int {
	if len(args) > 0 {
		return usage("serve")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	j, err := openJournal(ctx, cfg)
	if err != nil {
		slog.Error("❌ Error connecting to journal", "driver", cfg.JournalDriver, "error", err)
		return ExitFailure
	}
	if j != nil {
		defer j.Close()
		slog.Info("✅ Journal Connected", "driver", cfg.JournalDriver)
	} else {
		slog.Info("🚫 Journal Disabled (JOURNAL_DRIVER not set)")
	}

	addr := cfg.Port
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = ":" + addr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(cfg, j).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// listen first so "port in use" is reported before anything else starts
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(Stderr, "❌ Failed to start server on %s: %v\n", addr, err)
		fmt.Fprintln(Stderr, "Change APP_PORT in the .env file to use a different port.")
		return ExitFailure
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("🚀 Lozenge Ready", "addr", addr, "env", cfg.Env)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("❌ Listen failed", "error", err)
			return ExitFailure
		}
		return ExitOK
	case <-ctx.Done():
	}

	slog.Info("⚠️  Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("❌ Server Forced Shutdown", "error", err)
		return ExitFailure
	}
	slog.Info("✅ Server Gracefully Stopped")
	return ExitOK
}

package main

import (
	"os"
	"strings"

	"lozenge/internal/cli"
	"lozenge/pkg/config"
	"lozenge/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	cfg := config.Load()
	logger.Setup(cfg.Env, cfg.LogLevel)

	os.Exit(dispatch(cfg, os.Args[1:]))
}

func dispatch(cfg config.Config, args []string) int {
	if len(args) == 0 {
		return cli.Usage()
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run":
		return cli.HandleRun(cfg, rest)
	case "build":
		return cli.HandleBuild(rest)
	case "disasm":
		return cli.HandleDisasm(rest)
	case "check":
		return cli.HandleCheck(rest)
	case "test":
		return cli.HandleTest(cfg, rest)
	case "batch":
		return cli.HandleBatch(cfg, rest)
	case "serve":
		return cli.HandleServe(cfg, rest)
	case "token":
		return cli.HandleToken(cfg, rest)
	case "version", "--version":
		return cli.HandleVersion()
	case "help", "--help", "-h":
		cli.Usage()
		return cli.ExitOK
	}

	// lozenge <file.lir> runs the listing directly
	if strings.HasSuffix(cmd, ".lir") {
		return cli.HandleRun(cfg, args)
	}
	return cli.Usage()
}

// Diagrammaton server entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagrammaton/server/internal/infra/config"
	"github.com/diagrammaton/server/internal/infra/logging"
	"github.com/diagrammaton/server/internal/infra/sqlite"
	"github.com/diagrammaton/server/internal/server"
	"github.com/diagrammaton/server/internal/version"
)

const shutdownGrace = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("diagrammaton", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}
	if *showHelp {
		printHelp(out)
		return 0
	}

	cmd := "serve"
	if fs.NArg() > 0 {
		cmd = fs.Arg(0)
	}

	log := logging.New(os.Stderr)
	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "error", err)
		return 1
	}

	switch cmd {
	case "serve":
		return serve(cfg, log)
	case "migrate":
		return migrate(cfg, log)
	default:
		fmt.Fprintf(out, "unknown command %q\n\n", cmd) //nolint:errcheck
		printHelp(out)
		return 2
	}
}

func serve(cfg config.Config, log *slog.Logger) int {
	db, err := sqlite.NewDB(cfg.DBPath)
	if err != nil {
		log.Error("database open failed", "path", cfg.DBPath, "error", err)
		return 1
	}
	if err := sqlite.MigrateUp(db); err != nil {
		log.Error("migrations failed", "error", err)
		db.Close() //nolint:errcheck
		return 1
	}

	srv := server.New(db, cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Start(ctx) }()

	select {
	case err := <-errc:
		if err != nil {
			log.Error("server failed", "error", err)
			return 1
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "error", err)
			return 1
		}
	}
	return 0
}

func migrate(cfg config.Config, log *slog.Logger) int {
	db, err := sqlite.NewDB(cfg.DBPath)
	if err != nil {
		log.Error("database open failed", "path", cfg.DBPath, "error", err)
		return 1
	}
	defer db.Close() //nolint:errcheck

	if err := sqlite.MigrateUp(db); err != nil {
		log.Error("migrations failed", "error", err)
		return 1
	}
	log.Info("migrations applied", "path", cfg.DBPath)
	return 0
}

func printHelp(out io.Writer) {
	helpText := `Diagrammaton - natural language to diagram backend

Usage:
  diagrammaton [options] [command]

Options:
  --version    Show version information
  --help       Show this help message

Commands:
  serve        Start the HTTP server (default)
  migrate      Run database migrations and exit

Examples:
  diagrammaton --version
  diagrammaton serve
  diagrammaton migrate`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}

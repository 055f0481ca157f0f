// Command migrate applies, reverts and inspects the schema migrations of the
// greeter data-access layer.
//
// Usage:
//
//	migrate [flags] up
//	migrate [flags] down [-steps N]
//	migrate [flags] version
//	migrate [flags] status
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hellodevops/greeter/internal/config"
	"github.com/hellodevops/greeter/internal/migrate"
	"github.com/hellodevops/greeter/internal/repository"
	"github.com/hellodevops/greeter/migrations"
)

var errUsage = errors.New("usage: migrate [-database-url URL] [-format plain|json] [-timeout D] up | down [-steps N] | version | status")

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		databaseURL = fs.String("database-url", os.Getenv("DATABASE_URL"), "Database URL (sqlite://, postgres://, mysql://)")
		format      = fs.String("format", "plain", "Output format: plain or json")
		timeout     = fs.Duration("timeout", 5*time.Minute, "Overall deadline for the command")
		verbose     = fs.Bool("v", false, "Log each applied or reverted migration")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if *format != "plain" && *format != "json" {
		return fmt.Errorf("unknown format %q", *format)
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	command, rest := fs.Arg(0), fs.Args()[1:]

	steps := 1
	if command == "down" {
		downFlags := flag.NewFlagSet("down", flag.ContinueOnError)
		downFlags.SetOutput(stderr)
		downFlags.IntVar(&steps, "steps", 1, "Number of migrations to revert")
		if err := downFlags.Parse(rest); err != nil {
			return err
		}
		rest = downFlags.Args()
	}
	if len(rest) > 0 {
		return errUsage
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL, repository.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer repo.Close()

	mgr, err := migrate.New(repo.DB(), migrations.FS, logger)
	if err != nil {
		return err
	}

	out := printer{w: stdout, json: *format == "json"}

	switch command {
	case "up":
		applied, err := mgr.Up(ctx)
		if err != nil {
			return err
		}
		return out.count("applied", applied)
	case "down":
		reverted, err := mgr.Down(ctx, steps)
		if err != nil {
			return err
		}
		return out.count("reverted", reverted)
	case "version":
		version, err := mgr.Version(ctx)
		if err != nil {
			return err
		}
		return out.version(version)
	case "status":
		statuses, err := mgr.Status(ctx)
		if err != nil {
			return err
		}
		return out.status(statuses)
	default:
		return fmt.Errorf("unknown command %q\n%w", command, errUsage)
	}
}

type printer struct {
	w    io.Writer
	json bool
}

func (p printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) count(verb string, n int) error {
	if p.json {
		return p.encode(map[string]int{verb: n})
	}
	_, err := fmt.Fprintf(p.w, "%s %d migration(s)\n", verb, n)
	return err
}

func (p printer) version(v uint) error {
	if p.json {
		return p.encode(map[string]uint{"version": v})
	}
	_, err := fmt.Fprintf(p.w, "version %d\n", v)
	return err
}

func (p printer) status(statuses []migrate.Status) error {
	if p.json {
		return p.encode(statuses)
	}
	for _, s := range statuses {
		state := "pending"
		if s.Applied && s.AppliedAt != nil {
			state = "applied " + s.AppliedAt.UTC().Format(time.RFC3339)
		}
		if _, err := fmt.Fprintf(p.w, "%06d  %-30s %s\n", s.Version, s.Name, state); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Dexploarer/ghostspeak-go/internal/adapter/postgres"
	"github.com/Dexploarer/ghostspeak-go/internal/config"
)

// runMigrate handles schema migration subcommands (up, down, status).
func runMigrate(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printMigrateHelp()
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx := context.Background()

	switch args[0] {
	case "up":
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		fmt.Fprintln(os.Stderr, "Migrations applied.")
		return nil
	case "down":
		fs := flag.NewFlagSet("down", flag.ContinueOnError)
		steps := fs.Int("steps", 1, "number of migrations to roll back")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *steps); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Rolled back %d migration(s).\n", *steps)
		return nil
	case "status":
		version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("migrate status: %w", err)
		}
		fmt.Printf("Schema version: %d\n", version)
		return nil
	default:
		printMigrateHelp()
		return fmt.Errorf("unknown migrate command: %s", args[0])
	}
}

func printMigrateHelp() {
	fmt.Fprintf(os.Stderr, `Usage: ghostspeak migrate <command> [options]

Commands:
  up       Apply all pending migrations
  down     Roll back migrations (--steps N, default 1)
  status   Show the current schema version
`)
}

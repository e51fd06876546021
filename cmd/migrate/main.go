package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/joao-fontenele/cartflow/internal/config"
)

const usage = "usage: migrate [-path url] <up|down [N]|version|force N>"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	path := flag.String("path", "", "migrations source URL (default $MIGRATIONS_PATH or file://migrations)")
	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		logger.Error(usage)
		os.Exit(1)
	}

	if err := config.Load(); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	required := config.NewRequired()
	postgresURL := required.Get("POSTGRES_URL")
	if err := required.Err(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	source := *path
	if source == "" {
		source = config.Get("MIGRATIONS_PATH", "file://migrations")
	}

	m, err := migrate.New(source, postgresURL)
	if err != nil {
		logger.Error("failed to open migrations", "error", err, "source", source)
		os.Exit(1)
	}
	defer func() { _, _ = m.Close() }()

	if err := run(m, args[0], args[1:], logger); err != nil {
		logger.Error("migrate failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func run(m *migrate.Migrate, command string, args []string, logger *slog.Logger) error {
	switch command {
	case "up":
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info("schema already up to date")
				return nil
			}
			return err
		}

	case "down":
		steps := 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info("nothing to roll back")
				return nil
			}
			return err
		}

	case "version":

	case "force":
		if len(args) < 1 {
			return errors.New(usage)
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		if err := m.Force(version); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown command %q", command)
	}

	return report(m, logger)
}

func report(m *migrate.Migrate, logger *slog.Logger) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("no migrations applied")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logger.Info("schema version", "version", version, "dirty", dirty)
	return nil
}

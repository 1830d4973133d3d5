// Package main provides a CLI tool for database migrations.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/scientometrics-service/internal/config"
	"github.com/helixir/scientometrics-service/internal/database"
	"github.com/helixir/scientometrics-service/internal/observability"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// migrationRunner is the subset of database.Migrator the commands use.
type migrationRunner interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
}

func newRootCmd() *cobra.Command {
	var migrationsPath string
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply or inspect database migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&migrationsPath, "path", "", "override the migrations directory path")

	with := func(fn func(m migrationRunner, logger zerolog.Logger) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), migrationsPath, fn)
		}
	}
	root.AddCommand(buildCommands(with)...)
	return root
}

// buildCommands returns the subcommands. with supplies the migrator.
func buildCommands(with func(func(migrationRunner, zerolog.Logger) error) func(*cobra.Command, []string) error) []*cobra.Command {
	up := &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		Args:  cobra.NoArgs,
		RunE: with(func(m migrationRunner, logger zerolog.Logger) error {
			logger.Info().Msg("running all pending migrations")
			if err := m.Up(); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			printVersion(m, logger)
			return nil
		}),
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: with(func(m migrationRunner, logger zerolog.Logger) error {
			logger.Warn().Msg("rolling back all migrations")
			if err := m.Down(); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			printVersion(m, logger)
			return nil
		}),
	}

	var n int
	steps := &cobra.Command{
		Use:   "steps N",
		Short: "Run N migration steps (positive=up, negative=down)",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(_ *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil || v == 0 {
				return fmt.Errorf("steps must be a non-zero integer, got %q", args[0])
			}
			n = v
			return nil
		},
		RunE: with(func(m migrationRunner, logger zerolog.Logger) error {
			logger.Info().Int("steps", n).Msg("running migration steps")
			if err := m.Steps(n); err != nil {
				return fmt.Errorf("migrate steps: %w", err)
			}
			printVersion(m, logger)
			return nil
		}),
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current migration version",
		Args:  cobra.NoArgs,
		RunE: with(func(m migrationRunner, logger zerolog.Logger) error {
			printVersion(m, logger)
			return nil
		}),
	}

	var v int
	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Force set migration version (use to recover from failed migrations)",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(_ *cobra.Command, args []string) error {
			parsed, err := strconv.Atoi(args[0])
			if err != nil || parsed < 0 {
				return fmt.Errorf("version must be a non-negative integer, got %q", args[0])
			}
			v = parsed
			return nil
		},
		RunE: with(func(m migrationRunner, logger zerolog.Logger) error {
			logger.Warn().Int("version", v).Msg("forcing migration version")
			if err := m.Force(v); err != nil {
				return fmt.Errorf("force version: %w", err)
			}
			printVersion(m, logger)
			return nil
		}),
	}

	return []*cobra.Command{up, down, steps, version, force}
}

// withMigrator connects to the database and runs fn with a migrator.
func withMigrator(ctx context.Context, pathOverride string, fn func(migrationRunner, zerolog.Logger) error) error {
	// Load configuration (database settings from env/config file).
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	logger = logger.With().Str("component", "migrate").Logger()

	migrationDir := cfg.Database.MigrationPath
	if pathOverride != "" {
		migrationDir = pathOverride
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	migrator, err := database.NewMigrator(db, migrationDir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	return fn(migrator, logger)
}

// printVersion logs the current migration version.
func printVersion(m migrationRunner, logger zerolog.Logger) {
	v, dirty, err := m.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine migration version")
		return
	}
	logger.Info().
		Uint("version", v).
		Bool("dirty", dirty).
		Msg("current migration version")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/pkordes/attraction-queue/internal/config"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, logger, err := loadMigrateConfig()
				if err != nil {
					return err
				}
				return migrateUp(cmd.Context(), cfg.DatabaseURL, logger)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, logger, err := loadMigrateConfig()
				if err != nil {
					return err
				}
				return migrateDown(cmd.Context(), cfg.DatabaseURL, logger)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the state of every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, _, err := loadMigrateConfig()
				if err != nil {
					return err
				}
				return migrateStatus(cmd.Context(), cfg.DatabaseURL, cmd.OutOrStdout())
			},
		},
	)
	return cmd
}

// loadMigrateConfig is loadConfig restricted to the postgres backend.
func loadMigrateConfig() (config.Config, *slog.Logger, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	if cfg.DatabaseURL == "" {
		return config.Config{}, nil, errors.New("migrate: DATABASE_URL is required")
	}
	return cfg, logger, nil
}

func migrateUp(ctx context.Context, dsn string, logger *slog.Logger) error {
	provider, db, err := migrationProvider(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	for _, r := range results {
		logger.Info("migration applied", "version", r.Source.Version, "path", r.Source.Path, "duration", r.Duration.String())
	}
	if len(results) == 0 {
		logger.Info("schema up to date")
	}
	return nil
}

func migrateDown(ctx context.Context, dsn string, logger *slog.Logger) error {
	provider, db, err := migrationProvider(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := provider.Down(ctx)
	if errors.Is(err, goose.ErrNoNextVersion) {
		logger.Info("nothing to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	logger.Info("migration rolled back", "version", result.Source.Version, "path", result.Source.Path)
	return nil
}

func migrateStatus(ctx context.Context, dsn string, out io.Writer) error {
	provider, db, err := migrationProvider(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	statuses, err := provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("migrate status: %w", err)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tPATH")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
	}
	return tw.Flush()
}

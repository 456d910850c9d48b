package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/D-Sharma-melb/EscapeRoom/internal/config"
	"github.com/D-Sharma-melb/EscapeRoom/internal/migrations"
	"github.com/D-Sharma-melb/EscapeRoom/internal/seed"
)

// newRootCommand builds the CLI. Without a subcommand it serves HTTP.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Escape room backend",
		Long: `Escape room backend: builders author rooms of puzzle objects, players
run timed sessions against them.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSeedCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Apply database migrations and print the schema version",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

			db, _, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := migrations.Version(ctx, db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users and rooms into an empty database",
		Long: `Load users and rooms into an empty database.

Uses the bundled demo data unless --file names a YAML document of the same
shape. Nothing is written when the database already has users.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

			doc, err := loadSeed(file)
			if err != nil {
				return err
			}

			db, st, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := seed.Apply(ctx, logger, st, doc)
			if err != nil {
				return err
			}
			if applied {
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users and %d rooms\n", len(doc.Users), len(doc.Rooms))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "database already has users, nothing seeded")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed document (default: bundled demo data)")
	return cmd
}

func loadSeed(path string) (seed.Document, error) {
	if path == "" {
		return seed.Demo()
	}
	f, err := os.Open(path)
	if err != nil {
		return seed.Document{}, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()
	return seed.Parse(f)
}

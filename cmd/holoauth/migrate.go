// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/holomush/holoauth/internal/config"
	"github.com/holomush/holoauth/internal/store"
)

// migratorFactory creates migrators for the migrate subcommands. Tests
// replace it.
var migratorFactory = func(url string) (Migrator, error) {
	return store.NewMigrator(url)
}

// NewMigrateCmd creates the migrate command and its subcommands. Without a
// subcommand it applies pending migrations.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL migrations.`,
		RunE:  runMigrateUp,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL (default: $DATABASE_URL)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateUp,
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long: `Roll back the given number of migrations, or all of them with --all.
Rolling back drops the auth tables and everything in them.`,
		Args: cobra.NoArgs,
		RunE: runMigrateDown,
	}
	down.Flags().Int("steps", 1, "number of migrations to roll back")
	down.Flags().Bool("all", false, "roll back every migration")
	down.Flags().Bool("yes", false, "confirm rolling back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		Args:  cobra.NoArgs,
		RunE:  runMigrateStatus,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Long: `Set the recorded migration version and clear the dirty flag. Use only
after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: runMigrateForce,
	})

	return cmd
}

// getDatabaseURL resolves the database URL from --database-url, the
// environment or the config file.
func getDatabaseURL(flags *pflag.FlagSet) (string, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return "", err
	}
	if cfg.Store.Driver != config.DriverPostgres || cfg.Store.DatabaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").
			With("key", "store.database_url").
			Errorf("migrations need the postgres store and a database URL")
	}
	return cfg.Store.DatabaseURL, nil
}

// openMigrator resolves the database URL and creates a migrator.
func openMigrator(cmd *cobra.Command) (Migrator, error) {
	url, err := getDatabaseURL(cmd.Flags())
	if err != nil {
		return nil, err
	}
	m, err := migratorFactory(url)
	if err != nil {
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	return m, nil
}

func closeMigrator(cmd *cobra.Command, m Migrator) {
	if err := m.Close(); err != nil {
		cmd.PrintErrf("Warning: failed to close migrator: %v\n", err)
	}
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	m, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return err //nolint:wrapcheck // carries MIGRATION_UP_FAILED
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	yes, _ := cmd.Flags().GetBool("yes")    //nolint:errcheck // flag is defined above
	all, _ := cmd.Flags().GetBool("all")    //nolint:errcheck // flag is defined above
	steps, _ := cmd.Flags().GetInt("steps") //nolint:errcheck // flag is defined above
	if !yes {
		return oops.Code("CONFIRMATION_REQUIRED").Errorf("rolling back deletes data; re-run with --yes")
	}
	if !all && steps < 1 {
		return oops.Code("INVALID_STEPS").With("steps", steps).Errorf("--steps must be at least 1")
	}

	m, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	if all {
		cmd.Println("Rolling back all migrations...")
		if err := m.Down(); err != nil {
			return err //nolint:wrapcheck // carries MIGRATION_DOWN_FAILED
		}
	} else {
		cmd.Printf("Rolling back %d migration(s)...\n", steps)
		if err := m.Steps(-steps); err != nil {
			return err //nolint:wrapcheck // carries MIGRATION_STEPS_FAILED
		}
	}
	cmd.Println("Rollback completed successfully")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	m, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	st, err := m.Status()
	if err != nil {
		return err //nolint:wrapcheck // carries MIGRATION_* code
	}
	cmd.Print(formatStatus(st))
	return nil
}

// formatStatus renders a migration status for the terminal.
func formatStatus(st *store.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current version: %d", st.Version)
	if st.Dirty {
		b.WriteString(" (dirty: fix the failed migration, then run 'holoauth migrate force VERSION')")
	}
	b.WriteString("\n")

	write := func(label string, versions []uint) {
		fmt.Fprintf(&b, "%s (%d):\n", label, len(versions))
		for _, v := range versions {
			name, err := store.MigrationName(v)
			if err != nil || name == "" {
				name = fmt.Sprintf("%06d", v)
			}
			fmt.Fprintf(&b, "  %s\n", name)
		}
	}
	write("Applied", st.Applied)
	write("Pending", st.Pending)
	return b.String()
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	version, err := parseForceVersion(args[0])
	if err != nil {
		return err
	}

	m, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	if err := m.Force(version); err != nil {
		return err //nolint:wrapcheck // carries MIGRATION_FORCE_FAILED
	}
	cmd.Printf("Forced migration version to %d\n", version)
	return nil
}

// parseForceVersion reads the leading integer of s. Trailing characters are
// ignored; an empty or non-numeric argument is an error.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer: %q", s)
	}
	return version, nil
}

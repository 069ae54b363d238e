package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// MigrationStatus reports the schema version.
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// NewMigrateCmd manages the PostgreSQL schema.
func NewMigrateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "migrations directory (default: database.migration_path)")

	withMigrator := func(run func(cmd *cobra.Command, m *postgres.Migrator, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			conn, err := postgres.NewConnection(cc.Config.Database, cc.Logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			dir := path
			if dir == "" {
				dir = cc.Config.Database.MigrationPath
			}
			return run(cmd, postgres.NewMigrator(conn, dir, cc.Logger), args)
		}
	}

	printStatus := func(cmd *cobra.Command, m *postgres.Migrator) error {
		v, dirty, err := m.Status()
		if err != nil {
			return err
		}
		return PrintResult(cmd, MigrationStatus{Version: v, Dirty: dirty})
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator, _ []string) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printStatus(cmd, m)
			}),
		},
		&cobra.Command{
			Use:   "down [STEPS]",
			Short: "Roll back migrations (default 1 step)",
			Args:  cobra.MaximumNArgs(1),
			RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return errors.NewValidation("steps must be a positive integer, got %q", args[0])
					}
					steps = n
				}
				if err := m.Rollback(steps); err != nil {
					return err
				}
				return printStatus(cmd, m)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator, _ []string) error {
				return printStatus(cmd, m)
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Mark VERSION as applied and clear the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return errors.NewValidation("version must be an integer, got %q", args[0])
				}
				if err := m.Force(v); err != nil {
					return err
				}
				return printStatus(cmd, m)
			}),
		},
	)
	return cmd
}

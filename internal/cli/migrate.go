package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cartrewards/service_layer/internal/platform/migrations"
)

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return &ExitError{Code: ExitCommandError, Message: "DATABASE_URL is not set"}
			}
			if err := migrations.Up(cfg.Database.DSN); err != nil {
				return &ExitError{Code: ExitFailure, Message: "migrate", Err: err}
			}
			version, dirty, err := migrations.Version(cfg.Database.DSN)
			if err != nil {
				return &ExitError{Code: ExitFailure, Message: "read schema version", Err: err}
			}
			NewPrinter(cmd.OutOrStdout()).Success(fmt.Sprintf("schema at version %d (dirty=%t)", version, dirty))
			return nil
		},
	})
	return cmd
}

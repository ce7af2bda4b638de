// Package migrate provides the schema migration command.
package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore"
)

// Command creates the migrate command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, settings)
		},
	}
}

func runMigrate(cmd *cobra.Command, settings *conf.Settings) error {
	manager, err := datastore.Open(&settings.Database)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = manager.Close() }()

	fmt.Fprintf(cmd.OutOrStdout(), "Schema of %s database %s is up to date\n", manager.Dialect(), manager.Path())
	return nil
}

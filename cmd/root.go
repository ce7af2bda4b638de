package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Project-OSmOSE/osmose-app-sub000/cmd/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/cmd/datasets"
	"github.com/Project-OSmOSE/osmose-app-sub000/cmd/migrate"
	"github.com/Project-OSmOSE/osmose-app-sub000/cmd/report"
	"github.com/Project-OSmOSE/osmose-app-sub000/cmd/serve"
	"github.com/Project-OSmOSE/osmose-app-sub000/cmd/user"
	"github.com/Project-OSmOSE/osmose-app-sub000/cmd/version"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "aplose",
		Short:         "APLOSE annotation backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		panic(err)
	}

	subcommands := []*cobra.Command{
		serve.Command(settings),
		migrate.Command(settings),
		datasets.Command(settings),
		user.Command(settings),
		report.Command(settings),
		campaign.Command(settings),
		version.Command(),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().StringVar(&settings.Database.Type, "db", viper.GetString("database.type"), "Database backend (sqlite, mysql, postgres)")
	rootCmd.PersistentFlags().StringVar(&settings.Database.SQLite.Path, "sqlite", viper.GetString("database.sqlite.path"), "Path of the SQLite database file")
	rootCmd.PersistentFlags().StringVar(&settings.Datasets.Root, "datasets", viper.GetString("datasets.root"), "Root folder holding datasets.csv")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

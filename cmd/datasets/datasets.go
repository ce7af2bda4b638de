// Package datasets provides commands listing and importing the datasets of
// the bootstrap folder.
package datasets

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datasetimport"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore"
)

// Command creates the datasets command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Manage datasets of the bootstrap folder",
		Long:  "Datasets reads datasets.csv under the configured root and creates the datasets not imported yet.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "available",
			Short: "List datasets that can be imported",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runAvailable(cmd, settings)
			},
		},
		&cobra.Command{
			Use:   "import [names...]",
			Short: "Import datasets, all available ones when no name is given",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runImport(cmd, settings, args)
			},
		},
	)
	return cmd
}

func datasetRoot(settings *conf.Settings) (fs.FS, error) {
	if settings.Datasets.Root == "" {
		return nil, fmt.Errorf("datasets.root is not configured")
	}
	info, err := os.Stat(settings.Datasets.Root)
	if err != nil {
		return nil, fmt.Errorf("dataset root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset root %s is not a directory", settings.Datasets.Root)
	}
	return os.DirFS(settings.Datasets.Root), nil
}

func runAvailable(cmd *cobra.Command, settings *conf.Settings) error {
	fsys, err := datasetRoot(settings)
	if err != nil {
		return err
	}
	manager, err := datastore.Open(&settings.Database)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()

	candidates, err := datasetimport.NewImporter(manager.DB(), nil, nil).Available(context.Background(), fsys)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATASET\tPATH\tFILE TYPE")
	for _, c := range candidates {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Path, c.FileType)
	}
	return w.Flush()
}

func runImport(cmd *cobra.Command, settings *conf.Settings, names []string) error {
	fsys, err := datasetRoot(settings)
	if err != nil {
		return err
	}
	manager, err := datastore.Open(&settings.Database)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()

	importer := datasetimport.NewImporter(manager.DB(), campaign.NewFileCache(0), nil)
	out, err := importer.Import(context.Background(), fsys, nil, names)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d dataset(s) with %d file(s): %s\n",
		len(out.Imported), out.Files, strings.Join(out.Imported, ", "))
	if len(out.Skipped) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Skipped: %s\n", strings.Join(out.Skipped, ", "))
	}
	return nil
}

// Package report provides the command exporting campaign reports.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	cmdcampaign "github.com/Project-OSmOSE/osmose-app-sub000/cmd/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/report"
)

// Report kinds.
const (
	KindResults = "results"
	KindStatus  = "status"
)

// Options selects the report to export.
type Options struct {
	Phase  string
	Kind   string
	Format string
	// Output is a file or directory. Empty writes to stdout; a directory
	// receives the report under its default name.
	Output string
}

// Command creates the report command.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "report <campaign-id>",
		Short: "Export the result or status report of a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cmdcampaign.ParseID(args[0])
			if err != nil {
				return err
			}
			return Run(cmd.Context(), settings, id, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Phase, "phase", "", "Phase to report (annotation, verification); defaults to the latest phase")
	cmd.Flags().StringVar(&opts.Kind, "kind", KindResults, "Report kind (results, status)")
	cmd.Flags().StringVar(&opts.Format, "format", "csv", "Output format (csv, xlsx)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output file or directory")
	return cmd
}

// Run renders the report of campaignID to the output of opts, or to stdout.
func Run(ctx context.Context, settings *conf.Settings, campaignID uint, opts *Options, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var phaseType entities.PhaseType
	if opts.Phase != "" {
		var ok bool
		if phaseType, ok = entities.ParsePhaseType(opts.Phase); !ok {
			return fmt.Errorf("unknown phase %q", opts.Phase)
		}
	}
	format := strings.ToLower(opts.Format)
	if format != "csv" && format != "xlsx" {
		return fmt.Errorf("unknown format %q", opts.Format)
	}

	manager, err := datastore.Open(&settings.Database)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()

	cc, err := campaign.NewService(manager.DB(), nil, nil).Load(ctx, campaignID, phaseType, nil)
	if err != nil {
		return err
	}
	scope, err := report.ScopeOf(cc)
	if err != nil {
		return err
	}

	aggregator := report.NewAggregator(manager.DB(), nil)
	var table *report.Table
	switch opts.Kind {
	case KindResults:
		table, err = aggregator.Report(ctx, scope)
	case KindStatus:
		table, err = aggregator.Status(ctx, scope)
	default:
		return fmt.Errorf("unknown report kind %q", opts.Kind)
	}
	if err != nil {
		return err
	}

	w, name, closeFn, err := openOutput(opts.Output, scope.Filename(opts.Kind, format), stdout)
	if err != nil {
		return err
	}
	if format == "xlsx" {
		err = report.WriteXLSX(w, table, opts.Kind)
	} else {
		err = report.WriteCSV(w, table)
	}
	if cerr := closeFn(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if name != "" {
		fmt.Fprintf(stdout, "Report written to %s (%d rows)\n", name, len(table.Rows))
	}
	return nil
}

// openOutput resolves the destination of a report. The returned name is
// empty when writing to stdout.
func openOutput(output, defaultName string, stdout io.Writer) (io.Writer, string, func() error, error) {
	if output == "" {
		return stdout, "", func() error { return nil }, nil
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		output = filepath.Join(output, defaultName)
	}
	f, err := os.Create(output)
	if err != nil {
		return nil, "", nil, err
	}
	return f, output, f.Close, nil
}

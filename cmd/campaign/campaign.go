// Package campaign provides campaign maintenance commands.
package campaign

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
)

// Command creates the campaign command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Inspect and maintain annotation campaigns",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every campaign",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runList(cmd, settings)
			},
		},
		&cobra.Command{
			Use:    "unarchive <campaign-id>",
			Short:  "Remove the archive of a campaign",
			Hidden: true,
			Args:   cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := ParseID(args[0])
				if err != nil {
					return err
				}
				return runUnarchive(cmd, settings, id)
			},
		},
	)
	return cmd
}

// ParseID parses a campaign id argument.
func ParseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid campaign id %q", arg)
	}
	return uint(id), nil
}

func runList(cmd *cobra.Command, settings *conf.Settings) error {
	manager, err := datastore.Open(&settings.Database)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()

	campaigns, err := campaign.NewService(manager.DB(), nil, nil).List(context.Background(), &entities.User{IsStaff: true})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tARCHIVED")
	for _, c := range campaigns {
		fmt.Fprintf(w, "%d\t%s\t%t\n", c.ID, c.Name, c.IsArchived())
	}
	return w.Flush()
}

func runUnarchive(cmd *cobra.Command, settings *conf.Settings, id uint) error {
	manager, err := datastore.Open(&settings.Database)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()

	if err := campaign.NewService(manager.DB(), nil, nil).Unarchive(context.Background(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Campaign %d unarchived\n", id)
	return nil
}

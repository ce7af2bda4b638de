// Package user provides account management commands.
package user

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/auth"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
)

// PasswordEnv is read when --password is not given.
const PasswordEnv = "APLOSE_PASSWORD"

type createOptions struct {
	auth.CreateUserInput
	expertise string
}

// Command creates the user command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	opts := &createOptions{}
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user account",
		Long:  "Create stores a new account. The password is taken from --password or the " + PasswordEnv + " environment variable.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Username = args[0]
			return runCreate(cmd, settings, opts)
		},
	}
	create.Flags().StringVar(&opts.Password, "password", "", "Account password")
	create.Flags().StringVar(&opts.Email, "email", "", "Email address")
	create.Flags().StringVar(&opts.FirstName, "first-name", "", "First name")
	create.Flags().StringVar(&opts.LastName, "last-name", "", "Last name")
	create.Flags().BoolVar(&opts.IsStaff, "staff", false, "Grant staff rights")
	create.Flags().StringVar(&opts.expertise, "expertise", "", "Expertise level (expert, average, novice)")

	cmd.AddCommand(create)
	return cmd
}

func runCreate(cmd *cobra.Command, settings *conf.Settings, opts *createOptions) error {
	in := opts.CreateUserInput
	if in.Password == "" {
		in.Password = os.Getenv(PasswordEnv)
	}
	if opts.expertise != "" {
		level := entities.ExpertiseLevel(strings.ToUpper(opts.expertise))
		in.ExpertiseLevel = &level
	}

	manager, err := datastore.Open(&settings.Database)
	if err != nil {
		return err
	}
	defer func() { _ = manager.Close() }()

	user, err := auth.NewService(manager.DB(), nil, nil, nil).CreateUser(context.Background(), &in)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d, staff %t)\n", user.Username, user.ID, user.IsStaff)
	return nil
}

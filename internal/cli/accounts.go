package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func (r *runner) accountsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "List, create and delete accounts",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List accounts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := r.app.load(cmd.Context())
				if err != nil {
					return err
				}
				printAccounts(cmd.OutOrStdout(), st.Accounts, st.DefaultAccountID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create an account",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				acc, err := r.app.Session.CreateAccount(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fprintf(cmd.OutOrStdout(), "Created account %s (%s)\n", acc.Name, acc.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete an account and all of its transactions",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := r.app.Session.DeleteAccount(cmd.Context(), args[0]); err != nil {
					return err
				}
				fprintf(cmd.OutOrStdout(), "Deleted account %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func (r *runner) groupsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "groups",
		Aliases: []string{"group"},
		Short:   "List, create and update groups of people",
	}

	var members []string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := r.app.Session.CreateGroup(cmd.Context(), strings.Join(args, " "), members)
			if err != nil {
				return err
			}
			fprintf(cmd.OutOrStdout(), "Created group %s (%s) with %d members\n", g.Name, g.ID, len(g.Members))
			return nil
		},
	}
	create.Flags().StringSliceVar(&members, "members", nil, "comma separated member names")

	var (
		name       string
		newMembers []string
	)
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename a group or replace its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := r.app.load(cmd.Context())
			if err != nil {
				return err
			}
			for _, g := range st.Groups {
				if g.ID != args[0] {
					continue
				}
				if !cmd.Flags().Changed("name") {
					name = g.Name
				}
				if !cmd.Flags().Changed("members") {
					newMembers = g.Members
				}
				break
			}
			g, err := r.app.Session.UpdateGroup(cmd.Context(), args[0], name, newMembers)
			if err != nil {
				return err
			}
			fprintf(cmd.OutOrStdout(), "Updated group %s (%s)\n", g.Name, g.ID)
			return nil
		},
	}
	update.Flags().StringVar(&name, "name", "", "new group name")
	update.Flags().StringSliceVar(&newMembers, "members", nil, "comma separated member names, replacing the current ones")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List groups",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := r.app.load(cmd.Context())
				if err != nil {
					return err
				}
				printGroups(cmd.OutOrStdout(), st.Groups)
				return nil
			},
		},
		create,
		update,
	)
	return cmd
}

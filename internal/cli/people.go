package cli

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	"budget/internal/log"
)

func (r *runner) peopleCommand() *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "people",
		Short: "Show balances with friends and parents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := r.app.scopeTo(account); err != nil {
				return err
			}
			st, err := r.app.load(cmd.Context())
			if err != nil {
				return err
			}
			printPeople(cmd.OutOrStdout(), st.PersonStats)
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "account id (default all accounts)")
	return cmd
}

func (r *runner) settleCommand() *cobra.Command {
	var (
		account string
		yes     bool
	)
	cmd := &cobra.Command{
		Use:   "settle <person>",
		Short: "Record a settlement that zeroes the balance with a person",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := r.app.Session
			if _, err := r.app.load(cmd.Context()); err != nil {
				return err
			}
			action, err := s.PlanSettlement(strings.Join(args, " "), account)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fprintf(out, "%s\n", action.Message())
			if !action.Enabled {
				return nil
			}
			if !yes && !confirm(cmd) {
				fprintf(out, "Cancelled.\n")
				return nil
			}

			record, err := s.Settle(cmd.Context(), action)
			if err != nil {
				return err
			}
			r.app.Logger.Debug("Settlement confirmed", log.FieldTxID, record.ID)
			fprintf(out, "Settled with %s.\n", action.Person)
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "account receiving the settlement (default account when omitted)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func confirm(cmd *cobra.Command) bool {
	fprintf(cmd.OutOrStdout(), "Continue? [y/N] ")
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

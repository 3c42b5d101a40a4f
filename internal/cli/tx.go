package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"budget/internal/core"
	"budget/internal/draft"
	"budget/internal/session"
)

func (r *runner) txCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "List, add, edit and delete transactions",
	}
	cmd.AddCommand(r.txListCommand(), r.txAddCommand(), r.txEditCommand(), r.txDeleteCommand())
	return cmd
}

func (r *runner) txListCommand() *cobra.Command {
	var filters filterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions matching the filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := filters.apply(r.app.Session); err != nil {
				return err
			}
			st, err := r.app.load(cmd.Context())
			if err != nil {
				return err
			}
			printTransactions(cmd.OutOrStdout(), st.Transactions)
			return nil
		},
	}
	filters.register(cmd)
	return cmd
}

// txFlags are the draft fields settable from the command line.
type txFlags struct {
	txType      string
	category    string
	amount      string
	description string
	date        string
	account     string
	person      string
	splitWith   []string
	group       string
}

func (f *txFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.txType, "type", string(core.Expense), "income or expense")
	cmd.Flags().StringVar(&f.category, "category", "", "category; unknown names are stored as custom categories")
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount, e.g. 12.50")
	cmd.Flags().StringVar(&f.description, "description", "", "description")
	cmd.Flags().StringVar(&f.date, "date", "", "date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&f.account, "account", "", "account id (default account when omitted)")
	cmd.Flags().StringVar(&f.person, "person", "", "person, for friends and parents categories")
	cmd.Flags().StringSliceVar(&f.splitWith, "split-with", nil, "other people sharing the expense")
	cmd.Flags().StringVar(&f.group, "group", "", "group id, instead of a person")
}

// events turns the flags the user set into draft events. known lists the
// people already on record.
func (f *txFlags) events(cmd *cobra.Command, d draft.Draft, known []string) ([]draft.Event, error) {
	changed := cmd.Flags().Changed
	var evs []draft.Event

	txType := d.Type
	if changed("type") {
		txType = core.TransactionType(f.txType)
		if !txType.Valid() {
			return nil, fmt.Errorf("%w: %q", core.ErrInvalidType, f.txType)
		}
		evs = append(evs, draft.SetType{Type: txType})
	}
	if changed("category") || (changed("type") && txType != d.Type) {
		category := strings.TrimSpace(f.category)
		if category == "" && !changed("category") {
			category = d.ResolvedCategory()
		}
		switch {
		case category == "" || core.IsRecognizedCategory(txType, category):
			evs = append(evs, draft.SetCategory{Category: category})
		default:
			evs = append(evs,
				draft.SetCategory{Category: core.CustomCategory},
				draft.SetCustomCategory{Value: category})
		}
	}
	if changed("amount") {
		evs = append(evs, draft.SetAmount{Value: f.amount})
	}
	if changed("description") {
		evs = append(evs, draft.SetDescription{Value: f.description})
	}
	if changed("date") {
		date, err := core.ParseDate(f.date)
		if err != nil {
			return nil, err
		}
		evs = append(evs, draft.SetDate{Date: date})
	}
	if changed("account") {
		evs = append(evs, draft.SetAccount{ID: f.account})
	}
	if changed("group") {
		evs = append(evs, draft.SetWith{With: draft.WithGroup}, draft.SetGroup{ID: f.group})
	}
	if changed("person") {
		evs = append(evs, draft.SetWith{With: draft.WithPerson})
		name := strings.TrimSpace(f.person)
		if slices.Contains(known, name) {
			evs = append(evs, draft.SetPerson{Name: name})
		} else {
			evs = append(evs, draft.SetPerson{Name: draft.AddNewPerson}, draft.SetNewPerson{Value: name})
		}
	}
	if changed("split-with") {
		evs = append(evs, draft.SetSplitWith{Names: f.splitWith})
	}
	return evs, nil
}

func submitDraft(cmd *cobra.Command, s *session.Session, f *txFlags) (core.Transaction, error) {
	st := s.Snapshot()
	evs, err := f.events(cmd, st.Draft, st.People)
	if err != nil {
		return core.Transaction{}, err
	}
	for _, ev := range evs {
		if err := s.Dispatch(ev); err != nil {
			return core.Transaction{}, err
		}
	}
	return s.Submit(cmd.Context())
}

func (r *runner) txAddCommand() *cobra.Command {
	var flags txFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := r.app.Session
			if _, err := r.app.load(cmd.Context()); err != nil {
				return err
			}
			if err := s.OpenCreate(); err != nil {
				return err
			}
			defer func() { _ = s.CancelDraft() }()

			tx, err := submitDraft(cmd, s, &flags)
			if err != nil {
				return err
			}
			fprintf(cmd.OutOrStdout(), "Added %s %s %s (%s)\n", tx.Type, tx.Category, core.FormatAmount(tx.Amount), tx.ID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func (r *runner) txEditCommand() *cobra.Command {
	var flags txFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a transaction; only the flags given change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := r.app.Session
			st, err := r.app.load(cmd.Context())
			if err != nil {
				return err
			}
			i := slices.IndexFunc(st.Transactions, func(tx core.Transaction) bool { return tx.ID == args[0] })
			if i < 0 {
				return fmt.Errorf("transaction %s not found", args[0])
			}
			if err := s.OpenEdit(st.Transactions[i]); err != nil {
				return err
			}
			defer func() { _ = s.CancelDraft() }()

			tx, err := submitDraft(cmd, s, &flags)
			if err != nil {
				return err
			}
			fprintf(cmd.OutOrStdout(), "Updated %s\n", tx.ID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func (r *runner) txDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := r.app.Session.DeleteTransaction(cmd.Context(), args[0]); err != nil {
				return err
			}
			fprintf(cmd.OutOrStdout(), "Deleted transaction %s\n", args[0])
			return nil
		},
	}
}

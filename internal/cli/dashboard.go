package cli

import (
	"github.com/spf13/cobra"

	"budget/internal/core"
	"budget/internal/session"
)

type filterFlags struct {
	account  string
	search   string
	txType   string
	category string
	sort     string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.account, "account", "", "account id (default all accounts)")
	cmd.Flags().StringVar(&f.search, "search", "", "search description, category and people")
	cmd.Flags().StringVar(&f.txType, "type", "", "income or expense")
	cmd.Flags().StringVar(&f.category, "category", "", "exact category")
	cmd.Flags().StringVar(&f.sort, "sort", string(core.SortDateDesc), "date_desc, date_asc, amount_desc or amount_asc")
}

func (f *filterFlags) apply(s *session.Session) error {
	if err := s.SetAccountScope(f.account); err != nil {
		return err
	}
	for key, value := range map[session.FilterKey]string{
		session.FilterSearch:   f.search,
		session.FilterType:     f.txType,
		session.FilterCategory: f.category,
		session.FilterSort:     f.sort,
	} {
		if err := s.SetFilter(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) dashboardCommand() *cobra.Command {
	var (
		filters  filterFlags
		period   string
		from, to string
	)
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show totals, charts and transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := r.app.Session
			if err := filters.apply(s); err != nil {
				return err
			}
			if period != "" {
				if err := s.SetTrendPeriod(core.Period(period)); err != nil {
					return err
				}
			}
			if from != "" || to != "" {
				cur := s.Snapshot().Trend
				start, end := cur.Start, cur.End
				var err error
				if from != "" {
					if start, err = core.ParseDate(from); err != nil {
						return err
					}
				}
				if to != "" {
					if end, err = core.ParseDate(to); err != nil {
						return err
					}
				}
				if err := s.SetTrendRange(start, end); err != nil {
					return err
				}
			}

			st, err := r.app.load(cmd.Context())
			if err != nil {
				return err
			}
			printDashboard(cmd.OutOrStdout(), st)
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().StringVar(&period, "period", "", "trend period: daily, weekly or monthly")
	cmd.Flags().StringVar(&from, "from", "", "trend start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "trend end date (YYYY-MM-DD)")
	return cmd
}

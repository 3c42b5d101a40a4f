package cli

import (
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/session"
	"budget/internal/settlement"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printTransactions(w io.Writer, txs []core.Transaction) {
	if len(txs) == 0 {
		fprintf(w, "No transactions.\n")
		return
	}
	tw := newTable(w)
	fprintf(tw, "ID\tDATE\tTYPE\tCATEGORY\tAMOUNT\tDESCRIPTION\tWITH\tACCOUNT\n")
	for _, tx := range txs {
		fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.ID, tx.Date, tx.Type, tx.Category, signed(tx), tx.Description, association(tx), tx.AccountID)
	}
	_ = tw.Flush()
}

func signed(tx core.Transaction) string {
	if tx.Type == core.Expense {
		return core.FormatAmount(tx.Amount.Neg())
	}
	return core.FormatAmount(tx.Amount)
}

func association(tx core.Transaction) string {
	switch tx.Classification() {
	case core.GroupTagged:
		return "group:" + tx.GroupID
	case core.PersonTagged:
		return strings.Join(tx.People(), ", ")
	}
	return ""
}

func printDashboard(w io.Writer, st session.State) {
	scope := "all accounts"
	if st.Scope != core.AllAccounts {
		scope = "account " + st.Scope
	}
	d := st.Dashboard
	fprintf(w, "Dashboard (%s)\n", scope)
	fprintf(w, "  Income:   %s\n", core.FormatAmount(d.TotalIncome))
	fprintf(w, "  Expenses: %s\n", core.FormatAmount(d.TotalExpense))
	fprintf(w, "  Balance:  %s\n", core.FormatAmount(d.Balance))
	fprintf(w, "  Count:    %d\n", d.TransactionCount)

	if st.FiltersActive {
		fprintf(w, "\nFiltered: income %s, expenses %s, net %s\n",
			core.FormatAmount(st.Stats.Income), core.FormatAmount(st.Stats.Expense), core.FormatAmount(st.Stats.Net))
	}

	if len(st.Charts.Monthly) > 0 {
		fprintf(w, "\nMonthly\n")
		tw := newTable(w)
		for _, m := range st.Charts.Monthly {
			fprintf(tw, "  %s\t%s\t%s\n", m.Month, core.FormatAmount(m.Income), core.FormatAmount(m.Expense.Neg()))
		}
		_ = tw.Flush()
	}
	printCategories(w, "Income by category", st.Charts.IncomeByCategory)
	printCategories(w, "Expenses by category", st.Charts.ExpenseByCategory)

	if len(st.Charts.Trend) > 0 {
		fprintf(w, "\nTrend (%s, %s to %s)\n", st.Trend.Period, st.Trend.Start, st.Trend.End)
		tw := newTable(w)
		for _, p := range st.Charts.Trend {
			fprintf(tw, "  %s\t%s\n", p.Date, core.FormatAmount(p.Net))
		}
		_ = tw.Flush()
	}
	fprintf(w, "\n")
	printTransactions(w, st.Transactions)
}

func printCategories(w io.Writer, title string, cats []core.CategoryAmount) {
	if len(cats) == 0 {
		return
	}
	fprintf(w, "\n%s\n", title)
	tw := newTable(w)
	for _, c := range cats {
		fprintf(tw, "  %s\t%s\t%d\n", c.Category, core.FormatAmount(c.Amount), c.Count)
	}
	_ = tw.Flush()
}

func printPeople(w io.Writer, stats []core.PersonStat) {
	if len(stats) == 0 {
		fprintf(w, "No shared expenses.\n")
		return
	}
	tw := newTable(w)
	fprintf(tw, "PERSON\tRECEIVED\tGIVEN\tNET\tSTATUS\n")
	for _, p := range stats {
		fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.Name, core.FormatAmount(p.TotalReceived), core.FormatAmount(p.TotalGiven),
			core.FormatAmount(p.NetBalance), balanceStatus(p.NetBalance))
	}
	_ = tw.Flush()
}

func balanceStatus(net decimal.Decimal) string {
	switch {
	case settlement.IsSettled(net):
		return "settled"
	case net.IsPositive():
		return "owes you"
	default:
		return "you owe"
	}
}

func printAccounts(w io.Writer, accounts []core.Account, defaultID string) {
	if len(accounts) == 0 {
		fprintf(w, "No accounts.\n")
		return
	}
	tw := newTable(w)
	fprintf(tw, "ID\tNAME\t\n")
	for _, a := range accounts {
		mark := ""
		if a.ID == defaultID {
			mark = "(default)"
		}
		fprintf(tw, "%s\t%s\t%s\n", a.ID, a.Name, mark)
	}
	_ = tw.Flush()
}

func printGroups(w io.Writer, groups []core.Group) {
	if len(groups) == 0 {
		fprintf(w, "No groups.\n")
		return
	}
	tw := newTable(w)
	fprintf(tw, "ID\tNAME\tMEMBERS\n")
	for _, g := range groups {
		fprintf(tw, "%s\t%s\t%s\n", g.ID, g.Name, strings.Join(g.Members, ", "))
	}
	_ = tw.Flush()
}

// Package sheets exports loaded transactions to a Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budget/internal/core"
	"budget/internal/log"
)

// DefaultSheetName is used when no sheet name is configured.
const DefaultSheetName = "Transactions"

// lastColumn is the column of the last exported field.
const lastColumn = "I"

// Header is the first row of every export.
var Header = []any{"Date", "Type", "Category", "Amount", "Description", "Person", "Split With", "Group", "Account"}

var ErrNoCredentials = errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")

// Options configures an Exporter.
type Options struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
	Logger          *log.Logger
}

// Exporter writes transactions to one sheet of a spreadsheet, replacing
// whatever the sheet held before.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// New creates an Exporter authenticated with service account credentials.
func New(ctx context.Context, opts Options) (*Exporter, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := credentials(opts)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.SheetName, opts.Logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Exporter {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = DefaultSheetName
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(spreadsheetID),
		sheetName:     strings.TrimSpace(sheetName),
		logger:        logger.WithComponent(log.ComponentExport),
	}
}

func credentials(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		return []byte(opts.CredentialsJSON), nil
	case strings.TrimSpace(opts.CredentialsFile) != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, ErrNoCredentials
	}
}

// Export clears the sheet and writes the header plus one row per
// transaction. It returns the A1 range written.
func (e *Exporter) Export(ctx context.Context, txs []core.Transaction, accounts []core.Account, groups []core.Group) (string, error) {
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	start := time.Now()

	clearRange := fmt.Sprintf("%s!A:%s", e.sheetName, lastColumn)
	_, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	values := append([][]any{Header}, Rows(txs, accounts, groups)...)
	ref := fmt.Sprintf("%s!A1:%s%d", e.sheetName, lastColumn, len(values))
	_, err = e.svc.Spreadsheets.Values.Update(e.spreadsheetID, ref, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", ref, err)
	}

	e.logger.InfoContext(ctx, "Exported transactions",
		log.FieldOperation, log.OpExport,
		"range", ref,
		"rows", len(txs),
		log.FieldDuration, time.Since(start).Milliseconds())
	return ref, nil
}

// Rows formats transactions as sheet rows. Account and group ids are
// replaced by their names when known.
func Rows(txs []core.Transaction, accounts []core.Account, groups []core.Group) [][]any {
	accountNames := make(map[string]string, len(accounts))
	for _, a := range accounts {
		accountNames[a.ID] = a.Name
	}
	groupNames := make(map[string]string, len(groups))
	for _, g := range groups {
		groupNames[g.ID] = g.Name
	}

	rows := make([][]any, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, []any{
			tx.Date.String(),
			string(tx.Type),
			tx.Category,
			tx.Amount.Round(2).InexactFloat64(),
			tx.Description,
			tx.Person,
			strings.Join(tx.SplitWith, ", "),
			nameOr(groupNames, tx.GroupID),
			nameOr(accountNames, tx.AccountID),
		})
	}
	return rows
}

func nameOr(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}

package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"budget/internal/config"
	"budget/internal/export/sheets"
	"budget/internal/log"
	"budget/internal/worker"
)

func newExporter(ctx context.Context, cfg *config.Config, logger *log.Logger) (*sheets.Exporter, error) {
	if err := cfg.ValidateExport(); err != nil {
		return nil, err
	}
	return sheets.New(ctx, sheets.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		Logger:          logger,
	})
}

func (r *runner) exportCommand() *cobra.Command {
	var filters filterFlags
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the matching transactions to Google Sheets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exp, err := newExporter(cmd.Context(), r.app.Config, r.app.Logger)
			if err != nil {
				return err
			}
			if err := filters.apply(r.app.Session); err != nil {
				return err
			}
			st, err := r.app.load(cmd.Context())
			if err != nil {
				return err
			}
			ref, err := exp.Export(cmd.Context(), st.Transactions, st.Accounts, st.Groups)
			if err != nil {
				return err
			}
			fprintf(cmd.OutOrStdout(), "Exported %d transactions to %s\n", len(st.Transactions), ref)
			return nil
		},
	}
	filters.register(cmd)
	return cmd
}

var errNoChangeFeed = errors.New("watch needs the change feed; set AMQP_URL")

func (r *runner) watchCommand() *cobra.Command {
	var (
		export   bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload on changes made by other clients, optionally mirroring to Google Sheets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := r.app
			if app.Publisher == nil {
				return errNoChangeFeed
			}

			var exporter worker.Exporter
			if export {
				exp, err := newExporter(cmd.Context(), app.Config, app.Logger)
				if err != nil {
					return err
				}
				exporter = exp
			}
			var purger worker.Purger
			if app.Cache != nil {
				purger = app.Cache
			}
			w := worker.NewChangeWorker(app.Session, purger, exporter, app.Logger)

			watchCtx, stop := context.WithCancel(cmd.Context())
			defer stop()
			ctx, done := GracefulShutdown(watchCtx, app.Logger, 30*time.Second, nil)
			if err := w.Refresh(ctx); err != nil {
				app.Logger.Error("Initial refresh failed", log.FieldError, err)
			}
			if interval > 0 {
				go w.Poll(ctx, interval)
			}

			err := w.Run(ctx, app.Publisher)
			stop()
			WaitForShutdown(ctx, done)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&export, "export", false, "export to Google Sheets after every refresh")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Minute, "periodic refresh interval in case change messages are lost; 0 disables")
	return cmd
}

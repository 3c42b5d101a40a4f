package worker

import (
	"context"
	"fmt"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/session"
)

// Session is the part of a session the worker drives.
type Session interface {
	ID() string
	Reload(ctx context.Context) error
	Snapshot() session.State
}

// Purger drops cached gateway reads.
type Purger interface {
	Purge()
}

// Exporter mirrors loaded transactions somewhere else, e.g. a spreadsheet.
type Exporter interface {
	Export(ctx context.Context, txs []core.Transaction, accounts []core.Account, groups []core.Group) (string, error)
}

// Consumer delivers change messages until ctx is done.
type Consumer interface {
	ConsumeChanges(ctx context.Context, consumerID string, handler func(context.Context, *amqp.ChangeMessage) error) error
}

// ChangeWorker keeps a session in sync with writes made by other sessions.
type ChangeWorker struct {
	session  Session
	purger   Purger
	exporter Exporter
	logger   *log.Logger
}

// NewChangeWorker creates a worker. purger and exporter may be nil.
func NewChangeWorker(s Session, purger Purger, exporter Exporter, logger *log.Logger) *ChangeWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ChangeWorker{
		session:  s,
		purger:   purger,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Run consumes changes until ctx is done.
func (w *ChangeWorker) Run(ctx context.Context, consumer Consumer) error {
	w.logger.InfoContext(ctx, "Change worker started", "session", w.session.ID())
	err := consumer.ConsumeChanges(ctx, w.session.ID(), w.HandleChange)
	w.logger.InfoContext(ctx, "Change worker stopped", "session", w.session.ID())
	return err
}

// HandleChange processes one change message. Changes published by the
// worker's own session are skipped; that session already reloaded.
func (w *ChangeWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	if msg.Source == w.session.ID() {
		w.logger.DebugContext(ctx, "Skipping own change", "entity", msg.Entity, "id", msg.ID)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing change message",
		"source", msg.Source,
		"entity", msg.Entity,
		log.FieldOperation, msg.Operation,
		"id", msg.ID,
		log.FieldAccountID, msg.AccountID)

	return w.Refresh(ctx)
}

// Refresh purges the cache, reloads the session and exports the result
// when an exporter is configured.
func (w *ChangeWorker) Refresh(ctx context.Context) error {
	if w.purger != nil {
		w.purger.Purge()
	}
	if err := w.session.Reload(ctx); err != nil {
		return fmt.Errorf("reload session: %w", err)
	}
	if w.exporter == nil {
		return nil
	}
	st := w.session.Snapshot()
	ref, err := w.exporter.Export(ctx, st.Transactions, st.Accounts, st.Groups)
	if err != nil {
		return fmt.Errorf("export transactions: %w", err)
	}
	w.logger.InfoContext(ctx, "Export refreshed", "range", ref, "rows", len(st.Transactions))
	return nil
}

// Poll refreshes every interval until ctx is done. It backs up the change
// feed in case messages are lost; failures are logged and polling goes on.
func (w *ChangeWorker) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Refresh(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic refresh failed", log.FieldError, err)
			}
		}
	}
}

package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heli-gil/sunny/internal/amqp"
	"github.com/heli-gil/sunny/internal/core"
	"github.com/heli-gil/sunny/internal/sheets"
)

// EntrySource is the slice of the repository the export worker needs.
type EntrySource interface {
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	PendingSyncExpenses(ctx context.Context, limit int) ([]core.Expense, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string) error
}

// Consumer delivers broker messages to a handler until the context ends.
type Consumer interface {
	ConsumeEntrySync(ctx context.Context, handler func(*amqp.EntrySyncMessage) error) error
}

// ExportWorker keeps the accountant's spreadsheet in step with the ledger.
// It consumes change messages and sweeps the pending backlog so a lost
// message only delays an entry, never drops it.
type ExportWorker struct {
	source    EntrySource
	writer    sheets.EntryWriter
	deleter   sheets.EntryDeleter
	batchSize int
	interval  time.Duration
}

func NewExportWorker(source EntrySource, writer sheets.EntryWriter, deleter sheets.EntryDeleter, batchSize int, interval time.Duration) *ExportWorker {
	return &ExportWorker{
		source:    source,
		writer:    writer,
		deleter:   deleter,
		batchSize: batchSize,
		interval:  interval,
	}
}

// Run consumes messages and sweeps the backlog concurrently until the
// context is cancelled.
func (w *ExportWorker) Run(ctx context.Context, consumer Consumer) error {
	if err := w.StartupSyncCheck(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup backlog check failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.ConsumeEntrySync(ctx, func(msg *amqp.EntrySyncMessage) error {
			return w.HandleMessage(ctx, msg)
		})
	})

	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.ProcessPending(ctx); err != nil {
					slog.ErrorContext(ctx, "Backlog sweep failed", "error", err)
				}
			}
		}
	})

	return g.Wait()
}

// HandleMessage exports one changed entry. The current row is always
// re-read from the store, so a stale message can never overwrite newer
// data.
func (w *ExportWorker) HandleMessage(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	slog.InfoContext(ctx, "Processing entry sync message",
		"id", msg.ID,
		"action", msg.Action)

	if msg.Action == amqp.ActionDelete {
		if w.deleter == nil {
			slog.WarnContext(ctx, "No entry deleter configured, skipping", "id", msg.ID)
			return nil
		}
		if err := w.deleter.DeleteEntry(ctx, msg.ID); err != nil {
			return fmt.Errorf("delete entry from sheet: %w", err)
		}
		return nil
	}

	expense, err := w.source.GetExpense(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("load expense: %w", err)
	}
	return w.export(ctx, expense)
}

// ProcessPending sweeps entries stuck in the pending state. This is the
// recovery path for lost broker messages.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.source.PendingSyncExpenses(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("load pending entries: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending entries", "count", len(pending))
	for _, expense := range pending {
		if err := w.export(ctx, expense); err != nil {
			slog.ErrorContext(ctx, "Failed to export entry", "id", expense.ID, "error", err)
		}
	}
	return nil
}

// StartupSyncCheck drains a larger backlog batch once at boot to recover
// from downtime.
func (w *ExportWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.source.PendingSyncExpenses(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("load pending entries for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending entries found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending entries on startup", "count", len(pending))
	for _, expense := range pending {
		if err := w.export(ctx, expense); err != nil {
			slog.ErrorContext(ctx, "Failed to export entry", "id", expense.ID, "error", err)
		}
	}
	return nil
}

func (w *ExportWorker) export(ctx context.Context, expense core.Expense) error {
	if err := w.writer.AppendEntry(ctx, expense); err != nil {
		if markErr := w.source.MarkSyncError(ctx, expense.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", expense.ID, "error", markErr)
		}
		return fmt.Errorf("append entry to sheet: %w", err)
	}
	if err := w.source.MarkSynced(ctx, expense.ID); err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}
	slog.InfoContext(ctx, "Exported entry", "id", expense.ID)
	return nil
}

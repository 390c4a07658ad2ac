package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kaskelas/internal/amqp"
	"kaskelas/internal/core"
	"kaskelas/internal/ports"
)

// SyncWorker mirrors stored transactions into an external sheet.
// AMQP messages drive the fast path; PendingSync rows are the fallback.
type SyncWorker struct {
	queue     ports.SyncQueue
	mirror    ports.TransactionMirror
	batchSize int
}

// NewSyncWorker accepts a nil mirror, in which case every message is
// acknowledged without side effects.
func NewSyncWorker(queue ports.SyncQueue, mirror ports.TransactionMirror, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		queue:     queue,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single transaction sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"class_id", msg.ClassID,
		"version", msg.Version)

	if w.mirror == nil {
		slog.WarnContext(ctx, "No transaction mirror configured, skipping sync", "id", msg.ID)
		return nil
	}

	rec, err := w.queue.GetSyncRecord(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted before we got here; the delete message handles the sheet.
		slog.InfoContext(ctx, "Transaction no longer exists, dropping sync message", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	if rec.Version > msg.Version {
		slog.DebugContext(ctx, "Message is older than stored row, mirroring latest",
			"id", msg.ID,
			"message_version", msg.Version,
			"stored_version", rec.Version)
	}

	return w.syncTransaction(ctx, rec)
}

// HandleDeleteMessage removes a transaction's row from the mirror.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.TransactionDeleteMessage) error {
	slog.InfoContext(ctx, "Processing delete message", "id", msg.ID, "class_id", msg.ClassID)

	if w.mirror == nil {
		slog.WarnContext(ctx, "No transaction mirror configured, skipping deletion", "id", msg.ID)
		return nil
	}

	if err := w.mirror.RemoveTransaction(ctx, msg.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to remove transaction from mirror",
			"id", msg.ID,
			"error", err,
			"timestamp", msg.Timestamp)
		return fmt.Errorf("remove transaction from mirror: %w", err)
	}

	slog.InfoContext(ctx, "Successfully removed transaction from mirror",
		"id", msg.ID,
		"timestamp", msg.Timestamp)
	return nil
}

// ProcessPending syncs one batch of rows that never reached the mirror.
// It covers lost AMQP messages and runs on a ticker.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	synced, failed, err := w.drain(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if synced+failed > 0 {
		slog.InfoContext(ctx, "Processed pending transactions", "synced", synced, "errors", failed)
	}
	return nil
}

// StartupSyncCheck drains a larger batch once, before consuming messages.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.drain(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced+failed == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"total", synced+failed,
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) drain(ctx context.Context, limit int) (synced, failed int, err error) {
	if w.mirror == nil {
		return 0, 0, nil
	}
	pending, err := w.queue.PendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending transactions: %w", err)
	}

	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		rec, err := w.queue.GetSyncRecord(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get transaction", "id", p.ID, "error", err)
			if err := w.queue.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			failed++
			continue
		}
		if err := w.syncTransaction(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction", "id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (w *SyncWorker) syncTransaction(ctx context.Context, rec ports.SyncRecord) error {
	t := rec.Transaction
	ref, err := w.mirror.MirrorTransaction(ctx, t)
	if err != nil {
		if markErr := w.queue.MarkSyncError(ctx, t.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", t.ID, "error", markErr)
		}
		return fmt.Errorf("mirror transaction: %w", err)
	}

	// The mirror already has the row; a failed mark only causes a resync.
	if err := w.queue.MarkSynced(ctx, t.ID, rec.Version); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", t.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced transaction",
		"id", t.ID,
		"version", rec.Version,
		"row_ref", ref,
		"amount", t.Amount.String())
	return nil
}

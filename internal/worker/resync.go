package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kaskelas/internal/ports"
)

// ResyncAll mirrors every stored transaction of every class, whether or not
// it is pending. It rebuilds a sheet that was cleared or replaced.
func (w *SyncWorker) ResyncAll(ctx context.Context, classes ports.ClassStore, txs ports.TransactionStore) (synced, failed int, err error) {
	if w.mirror == nil {
		return 0, 0, errors.New("no mirror configured")
	}
	all, err := classes.ListClasses(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list classes: %w", err)
	}

	for _, c := range all {
		list, err := txs.ListTransactions(ctx, c.ID)
		if err != nil {
			return synced, failed, fmt.Errorf("list transactions of %s: %w", c.ID, err)
		}
		for _, t := range list {
			if ctx.Err() != nil {
				return synced, failed, ctx.Err()
			}
			rec, err := w.queue.GetSyncRecord(ctx, t.ID)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to get transaction", "id", t.ID, "error", err)
				failed++
				continue
			}
			if err := w.syncTransaction(ctx, rec); err != nil {
				slog.ErrorContext(ctx, "Failed to resync transaction", "id", t.ID, "error", err)
				failed++
				continue
			}
			synced++
		}
		slog.InfoContext(ctx, "Class resynced", "class_id", c.ID, "transactions", len(list))
	}
	return synced, failed, nil
}

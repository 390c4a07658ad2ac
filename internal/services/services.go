// Package services orchestrates the write and read paths between the HTTP
// layer, the repository and the sync publisher.
package services

import (
	"context"
	"log/slog"

	"kaskelas/internal/ports"
)

// ChangeHook runs after a write to a class has been persisted.
type ChangeHook func(classID string)

// Publisher announces persisted changes to the mirror worker.
type Publisher interface {
	PublishTransactionSync(ctx context.Context, id, classID string, version int64) error
	PublishTransactionDelete(ctx context.Context, id, classID string) error
}

type writeHooks struct {
	snapshotter ports.Snapshotter
	hooks       []ChangeHook
}

// SetSnapshotter makes every successful write flush the store.
func (w *writeHooks) SetSnapshotter(s ports.Snapshotter) {
	w.snapshotter = s
}

func (w *writeHooks) OnChange(fn ChangeHook) {
	w.hooks = append(w.hooks, fn)
}

func (w *writeHooks) afterWrite(ctx context.Context, classID string) {
	if w.snapshotter != nil {
		if err := w.snapshotter.Flush(ctx); err != nil {
			slog.ErrorContext(ctx, "Failed to flush snapshot", "class_id", classID, "error", err)
		}
	}
	for _, fn := range w.hooks {
		fn(classID)
	}
}

// Package ports declares the storage and mirror contracts the services
// depend on. Implementations live in storage, ports/memory and
// ports/google and are chosen at startup by the backend factory.
package ports

import (
	"context"
	"time"

	"kaskelas/internal/core"
)

type (
	ClassStore interface {
		ListClasses(ctx context.Context) ([]core.SchoolClass, error)
		// GetClass returns core.ErrNotFound for an unknown id.
		GetClass(ctx context.Context, id string) (core.SchoolClass, error)
		SaveClass(ctx context.Context, c core.SchoolClass) error
	}

	TransactionStore interface {
		ListTransactions(ctx context.Context, classID string) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, classID, id string) (core.Transaction, error)
		// SaveTransaction inserts or replaces a transaction and returns its
		// new version. Each save bumps the version by one.
		SaveTransaction(ctx context.Context, t core.Transaction) (version int64, err error)
		DeleteTransaction(ctx context.Context, classID, id string) error
	}

	BalanceStore interface {
		GetInitialBalances(ctx context.Context, classID string) (core.InitialBalances, error)
		SetInitialBalances(ctx context.Context, classID string, b core.InitialBalances) error
	}

	// Repository is the full persistence surface of one backend.
	Repository interface {
		ClassStore
		TransactionStore
		BalanceStore
		Ping(ctx context.Context) error
		Close() error
	}

	// Snapshotter persists an in-process store to durable media.
	Snapshotter interface {
		Flush(ctx context.Context) error
	}

	// TransactionMirror keeps an external copy of the ledger, one row per
	// transaction, addressable by transaction id.
	TransactionMirror interface {
		MirrorTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
		RemoveTransaction(ctx context.Context, id string) error
	}

	// SyncQueue tracks which stored transactions still need mirroring.
	SyncQueue interface {
		GetSyncRecord(ctx context.Context, id string) (SyncRecord, error)
		PendingSync(ctx context.Context, limit int) ([]PendingSync, error)
		// MarkSynced is a no-op when the row changed after version.
		MarkSynced(ctx context.Context, id string, version int64) error
		MarkSyncError(ctx context.Context, id string) error
	}
)

type SyncRecord struct {
	Transaction core.Transaction
	Version     int64
}

type PendingSync struct {
	ID        string
	ClassID   string
	Version   int64
	CreatedAt time.Time
}

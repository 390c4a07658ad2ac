package backend

import (
	"context"

	"kaskelas/internal/ports"
	"kaskelas/internal/services"
)

// CleanupFunc releases what a backend opened.
type CleanupFunc func() error

// Result is a constructed backend. Optional parts are nil when the
// backend or the configuration does not provide them.
type Result struct {
	Repository  ports.Repository
	Snapshotter ports.Snapshotter
	SyncQueue   ports.SyncQueue
	Publisher   services.Publisher
	Cleanup     CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type BackendType

	// SQLite
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Memory
	SnapshotPath string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

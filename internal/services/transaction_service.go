package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"kaskelas/internal/core"
	"kaskelas/internal/ports"
)

// TransactionService owns the write path for transactions: fund
// attribution, validation, persistence and the sync announcement.
type TransactionService struct {
	writeHooks
	repo      ports.Repository
	publisher Publisher
}

// NewTransactionService takes a nil publisher when no broker is configured.
// Pass a nil interface, not a typed nil pointer.
func NewTransactionService(repo ports.Repository, publisher Publisher) *TransactionService {
	return &TransactionService{
		repo:      repo,
		publisher: publisher,
	}
}

// List returns the class's transactions, newest date first.
func (s *TransactionService) List(ctx context.Context, classID string) ([]core.Transaction, error) {
	if _, err := s.repo.GetClass(ctx, classID); err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}
	txs, err := s.repo.ListTransactions(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date.Time)
	})
	return txs, nil
}

func (s *TransactionService) Get(ctx context.Context, classID, id string) (core.Transaction, error) {
	t, err := s.repo.GetTransaction(ctx, classID, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// Create assigns a new id to draft and stores it under classID.
func (s *TransactionService) Create(ctx context.Context, classID string, draft core.Transaction) (core.Transaction, error) {
	class, err := s.repo.GetClass(ctx, classID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get class: %w", err)
	}
	draft.ID = uuid.NewString()
	draft.ClassID = classID
	return s.save(ctx, class, draft)
}

// Update replaces an existing transaction. Fund attribution is applied
// again, so editing the category or type can move a row in or out of the split.
func (s *TransactionService) Update(ctx context.Context, classID string, t core.Transaction) (core.Transaction, error) {
	class, err := s.repo.GetClass(ctx, classID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get class: %w", err)
	}
	if _, err := s.repo.GetTransaction(ctx, classID, t.ID); err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	t.ClassID = classID
	return s.save(ctx, class, t)
}

func (s *TransactionService) Delete(ctx context.Context, classID, id string) error {
	if err := s.repo.DeleteTransaction(ctx, classID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.afterWrite(ctx, classID)

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping delete message", "id", id)
		return nil
	}
	if err := s.publisher.PublishTransactionDelete(ctx, id, classID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message", "id", id, "error", err)
	}
	return nil
}

func (s *TransactionService) save(ctx context.Context, class core.SchoolClass, t core.Transaction) (core.Transaction, error) {
	if err := AttributeFund(class, &t); err != nil {
		return core.Transaction{}, err
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	version, err := s.repo.SaveTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.afterWrite(ctx, t.ClassID)

	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping sync message", "id", t.ID)
		return t, nil
	}
	// The row is stored and marked pending, so the worker's recovery
	// pass picks it up if this publish is lost.
	if err := s.publisher.PublishTransactionSync(ctx, t.ID, t.ClassID, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", t.ID, "version", version, "error", err)
	}
	return t, nil
}

// AttributeFund tags t with the split sentinel when the class rule applies
// and otherwise resolves it to one of the class's funds. An empty or stale
// split reference falls back to the main fund.
func AttributeFund(class core.SchoolClass, t *core.Transaction) error {
	if core.ShouldSplit(class.SplitRule, t.Category, t.Type) {
		t.Fund = core.SplitAcrossTargets()
		return nil
	}
	if t.Fund.IsZero() || t.Fund.IsSplit() {
		main, ok := class.MainFund()
		if !ok {
			return core.ErrEmptyFund
		}
		t.Fund = core.ConcreteFund(main.ID)
		return nil
	}
	id, _ := t.Fund.FundID()
	if _, ok := class.FundByID(id); !ok {
		return fmt.Errorf("%w: %q", core.ErrUnknownFund, id)
	}
	return nil
}

package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"kaskelas/internal/core"
	"kaskelas/internal/ports"
)

// LedgerService loads a class snapshot and hands it to the aggregator.
type LedgerService struct {
	repo ports.Repository
}

func NewLedgerService(repo ports.Repository) *LedgerService {
	return &LedgerService{repo: repo}
}

// Snapshot reads the class, its transactions and its opening balances
// concurrently.
func (s *LedgerService) Snapshot(ctx context.Context, classID string) (core.Snapshot, error) {
	var snap core.Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c, err := s.repo.GetClass(gctx, classID)
		if err != nil {
			return fmt.Errorf("get class: %w", err)
		}
		snap.Class = c
		return nil
	})
	g.Go(func() error {
		txs, err := s.repo.ListTransactions(gctx, classID)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		snap.Transactions = txs
		return nil
	})
	g.Go(func() error {
		b, err := s.repo.GetInitialBalances(gctx, classID)
		if err != nil {
			return fmt.Errorf("get initial balances: %w", err)
		}
		snap.Balances = b
		return nil
	})

	if err := g.Wait(); err != nil {
		return core.Snapshot{}, err
	}
	return snap, nil
}

func (s *LedgerService) Summary(ctx context.Context, classID string) (core.Summary, error) {
	snap, err := s.Snapshot(ctx, classID)
	if err != nil {
		return core.Summary{}, err
	}
	return snap.Summary(), nil
}

func (s *LedgerService) MonthlyLedger(ctx context.Context, classID string) ([]core.MonthRow, error) {
	snap, err := s.Snapshot(ctx, classID)
	if err != nil {
		return nil, err
	}
	return snap.MonthlyLedger(), nil
}

func (s *LedgerService) Checklist(ctx context.Context, classID string, year int) (core.ChecklistReport, error) {
	snap, err := s.Snapshot(ctx, classID)
	if err != nil {
		return core.ChecklistReport{}, err
	}
	return snap.Checklist(year), nil
}

func (s *LedgerService) FundReport(ctx context.Context, classID string) (core.FundReport, error) {
	snap, err := s.Snapshot(ctx, classID)
	if err != nil {
		return core.FundReport{}, err
	}
	return snap.FundReport(), nil
}

func (s *LedgerService) CategoryTotals(ctx context.Context, classID string) ([]core.CategoryTotal, error) {
	snap, err := s.Snapshot(ctx, classID)
	if err != nil {
		return nil, err
	}
	return snap.CategoryTotals(), nil
}

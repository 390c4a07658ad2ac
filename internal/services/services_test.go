package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaskelas/internal/core"
	"kaskelas/internal/ports/memory"
)

type publishedSync struct {
	ID, ClassID string
	Version     int64
}

type fakePublisher struct {
	mu          sync.Mutex
	syncs       []publishedSync
	deletes     []string
	publishSync func(id string) error
}

func (p *fakePublisher) PublishTransactionSync(_ context.Context, id, classID string, version int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishSync != nil {
		if err := p.publishSync(id); err != nil {
			return err
		}
	}
	p.syncs = append(p.syncs, publishedSync{id, classID, version})
	return nil
}

func (p *fakePublisher) PublishTransactionDelete(_ context.Context, id, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletes = append(p.deletes, id)
	return nil
}

type countingSnapshotter struct{ flushes int }

func (c *countingSnapshotter) Flush(context.Context) error {
	c.flushes++
	return nil
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	class := core.NewDefaultClass("kelas-1", "Kelas 1A")
	class.Students = []string{"Ahmad", "Siti"}
	require.NoError(t, store.SaveClass(context.Background(), class))
	return store
}

func draft(typ core.TransactionType, cat core.Category, fund core.FundRef, amount int64) core.Transaction {
	return core.Transaction{
		Date:        core.NewDate(2025, 3, 10),
		Description: "Catatan kas",
		Amount:      decimal.NewFromInt(amount),
		Type:        typ,
		Fund:        fund,
		Category:    cat,
		RecordedBy:  "Bendahara",
	}
}

func TestAttributeFund(t *testing.T) {
	class := core.NewDefaultClass("c", "C")

	tests := []struct {
		name    string
		in      core.Transaction
		want    core.FundRef
		wantErr error
	}{
		{"dues income splits", draft(core.Income, core.CategoryDues, core.ConcreteFund("anak"), 1), core.SplitAcrossTargets(), nil},
		{"dues expense stays concrete", draft(core.Expense, core.CategoryDues, core.ConcreteFund("perpisahan"), 1), core.ConcreteFund("perpisahan"), nil},
		{"stale split tag falls back to main", draft(core.Income, core.CategoryDonation, core.SplitAcrossTargets(), 1), core.ConcreteFund("anak"), nil},
		{"empty fund falls back to main", draft(core.Expense, core.CategorySupplies, core.FundRef{}, 1), core.ConcreteFund("anak"), nil},
		{"unknown fund rejected", draft(core.Expense, core.CategorySupplies, core.ConcreteFund("tabungan"), 1), core.FundRef{}, core.ErrUnknownFund},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := tt.in
			err := AttributeFund(class, &tx)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tx.Fund)

			again := tx
			require.NoError(t, AttributeFund(class, &again))
			assert.Equal(t, tx.Fund, again.Fund, "attribution is idempotent")
		})
	}
}

func TestTransactionService_CreatePublishesAndNotifies(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	pub := &fakePublisher{}
	snap := &countingSnapshotter{}
	svc := NewTransactionService(store, pub)
	svc.SetSnapshotter(snap)
	var changed []string
	svc.OnChange(func(classID string) { changed = append(changed, classID) })

	got, err := svc.Create(ctx, "kelas-1", draft(core.Income, core.CategoryDues, core.ConcreteFund("anak"), 50000))

	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "kelas-1", got.ClassID)
	assert.True(t, got.Fund.IsSplit())
	require.Len(t, pub.syncs, 1)
	assert.Equal(t, publishedSync{got.ID, "kelas-1", 1}, pub.syncs[0])
	assert.Equal(t, 1, snap.flushes)
	assert.Equal(t, []string{"kelas-1"}, changed)

	stored, err := store.GetTransaction(ctx, "kelas-1", got.ID)
	require.NoError(t, err)
	assert.True(t, stored.Fund.IsSplit())
}

func TestTransactionService_CreateErrors(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewTransactionService(seededStore(t), pub)

	_, err := svc.Create(ctx, "missing", draft(core.Income, core.CategoryDues, core.FundRef{}, 1))
	assert.ErrorIs(t, err, core.ErrNotFound)

	bad := draft(core.Expense, core.CategorySupplies, core.ConcreteFund("anak"), 0)
	_, err = svc.Create(ctx, "kelas-1", bad)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	assert.Empty(t, pub.syncs)
}

func TestTransactionService_PublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{publishSync: func(string) error { return errors.New("circuit breaker is open") }}
	svc := NewTransactionService(seededStore(t), pub)

	_, err := svc.Create(context.Background(), "kelas-1", draft(core.Expense, core.CategoryEvent, core.ConcreteFund("anak"), 1000))

	assert.NoError(t, err)
}

func TestTransactionService_UpdateReappliesSplit(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewTransactionService(seededStore(t), pub)

	created, err := svc.Create(ctx, "kelas-1", draft(core.Income, core.CategoryDues, core.FundRef{}, 50000))
	require.NoError(t, err)
	require.True(t, created.Fund.IsSplit())

	created.Category = core.CategoryDonation
	updated, err := svc.Update(ctx, "kelas-1", created)
	require.NoError(t, err)
	assert.Equal(t, core.ConcreteFund("anak"), updated.Fund)
	require.Len(t, pub.syncs, 2)
	assert.Equal(t, int64(2), pub.syncs[1].Version)

	created.ID = "nope"
	_, err = svc.Update(ctx, "kelas-1", created)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTransactionService_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewTransactionService(seededStore(t), nil)

	older := draft(core.Expense, core.CategorySupplies, core.ConcreteFund("anak"), 1000)
	older.Date = core.NewDate(2025, 1, 5)
	a, err := svc.Create(ctx, "kelas-1", older)
	require.NoError(t, err)
	b, err := svc.Create(ctx, "kelas-1", draft(core.Income, core.CategoryDues, core.FundRef{}, 50000))
	require.NoError(t, err)

	list, err := svc.List(ctx, "kelas-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)

	svc.publisher = pub
	require.NoError(t, svc.Delete(ctx, "kelas-1", a.ID))
	assert.Equal(t, []string{a.ID}, pub.deletes)

	assert.ErrorIs(t, svc.Delete(ctx, "kelas-1", a.ID), core.ErrNotFound)
	_, err = svc.List(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLedgerService_Snapshot(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	require.NoError(t, store.SetInitialBalances(ctx, "kelas-1", core.InitialBalances{"anak": decimal.NewFromInt(100000)}))
	txs := NewTransactionService(store, nil)
	dues := draft(core.Income, core.CategoryDues, core.FundRef{}, 50000)
	dues.StudentName = "Ahmad"
	_, err := txs.Create(ctx, "kelas-1", dues)
	require.NoError(t, err)

	svc := NewLedgerService(store)

	snap, err := svc.Snapshot(ctx, "kelas-1")
	require.NoError(t, err)
	assert.Equal(t, "Kelas 1A", snap.Class.Name)
	assert.Len(t, snap.Transactions, 1)

	summary, err := svc.Summary(ctx, "kelas-1")
	require.NoError(t, err)
	assert.Equal(t, "150000", summary.TotalBalance.String())
	assert.Equal(t, "125000", summary.FundBalances["anak"].String())

	checklist, err := svc.Checklist(ctx, "kelas-1", 2025)
	require.NoError(t, err)
	assert.True(t, checklist.Rows[0].PaidMonths[2])

	ledger, err := svc.MonthlyLedger(ctx, "kelas-1")
	require.NoError(t, err)
	assert.Len(t, ledger, 1)

	report, err := svc.FundReport(ctx, "kelas-1")
	require.NoError(t, err)
	assert.Equal(t, "150000", report.Totals.Final.String())

	cats, err := svc.CategoryTotals(ctx, "kelas-1")
	require.NoError(t, err)
	assert.Len(t, cats, 1)

	_, err = svc.Snapshot(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestClassService(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewClassService(store)
	var changed []string
	svc.OnChange(func(id string) { changed = append(changed, id) })

	require.NoError(t, svc.EnsureDefaultClass(ctx, "default", "Kelas Default"))
	require.NoError(t, svc.EnsureDefaultClass(ctx, "default", "Renamed"))
	c, err := svc.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "Kelas Default", c.Name)
	assert.Equal(t, []string{"default"}, changed)

	created, err := svc.Create(ctx, "  Kelas 2B ")
	require.NoError(t, err)
	assert.Equal(t, "Kelas 2B", created.Name)
	assert.Len(t, created.Funds, 2)

	_, err = svc.Create(ctx, " ")
	assert.ErrorIs(t, err, core.ErrEmptyClassName)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	err = svc.SetInitialBalances(ctx, "default", core.InitialBalances{"tabungan": decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, core.ErrUnknownFund)

	require.NoError(t, svc.SetInitialBalances(ctx, "default", core.InitialBalances{"anak": decimal.NewFromInt(5000)}))
	b, err := svc.InitialBalances(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "5000", b["anak"].String())

	_, err = svc.InitialBalances(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaskelas/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "kaskelas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func syncStatus(t *testing.T, r *SQLiteRepository, id string) string {
	t.Helper()
	var s string
	require.NoError(t, r.db.QueryRow(`SELECT sync_status FROM transactions WHERE id = ?`, id).Scan(&s))
	return s
}

func seedClass(t *testing.T, r *SQLiteRepository) core.SchoolClass {
	t.Helper()
	c := core.NewDefaultClass("kelas-1a", "Kelas 1A")
	c.Students = []string{"Ahmad", "Siti"}
	require.NoError(t, r.SaveClass(context.Background(), c))
	return c
}

func sampleTx(id string) core.Transaction {
	return core.Transaction{
		ID:          id,
		ClassID:     "kelas-1a",
		Date:        core.NewDate(2025, 3, 15),
		PaymentDate: core.NewDate(2025, 2, 1),
		Description: "Iuran Februari",
		Amount:      decimal.RequireFromString("50000.50"),
		Type:        core.Income,
		Fund:        core.SplitAcrossTargets(),
		Category:    core.CategoryDues,
		RecordedBy:  "Bu Rina",
		StudentName: "Ahmad",
	}
}

func TestClassRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	want := seedClass(t, repo)

	got, err := repo.GetClass(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Funds, got.Funds)
	assert.Equal(t, want.Students, got.Students)
	assert.True(t, got.SplitRule.Enabled)
	assert.True(t, got.SplitRule.Ratio.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, []string{"anak", "perpisahan"}, got.SplitRule.TargetFundIDs)

	got.Name = "Kelas 1A (2025)"
	got.Students = nil
	require.NoError(t, repo.SaveClass(ctx, got))

	all, err := repo.ListClasses(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Kelas 1A (2025)", all[0].Name)
	assert.Empty(t, all[0].Students)

	_, err = repo.GetClass(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTransactionRoundTripAndVersioning(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	seedClass(t, repo)

	tx := sampleTx("tx-1")
	v, err := repo.SaveTransaction(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	got, err := repo.GetTransaction(ctx, "kelas-1a", "tx-1")
	require.NoError(t, err)
	assert.True(t, got.Fund.IsSplit())
	assert.Equal(t, "2025-02-01", got.PaymentDate.String())
	assert.True(t, got.Amount.Equal(tx.Amount))
	assert.Equal(t, core.CategoryDues, got.Category)
	assert.Equal(t, "Ahmad", got.StudentName)

	require.NoError(t, repo.MarkSynced(ctx, "tx-1", 1))
	assert.Equal(t, "synced", syncStatus(t, repo, "tx-1"))

	tx.Description = "Iuran Februari (koreksi)"
	tx.PaymentDate = core.Date{}
	tx.Fund = core.ConcreteFund("anak")
	v, err = repo.SaveTransaction(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	assert.Equal(t, "pending", syncStatus(t, repo, "tx-1"))

	// A stale acknowledgement must not hide the newer edit.
	require.NoError(t, repo.MarkSynced(ctx, "tx-1", 1))
	assert.Equal(t, "pending", syncStatus(t, repo, "tx-1"))

	got, err = repo.GetTransaction(ctx, "kelas-1a", "tx-1")
	require.NoError(t, err)
	assert.True(t, got.PaymentDate.IsZero())
	id, ok := got.Fund.FundID()
	assert.True(t, ok)
	assert.Equal(t, "anak", id)
}

func TestSaveTransactionRejectsForeignClassID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	seedClass(t, repo)
	require.NoError(t, repo.SaveClass(ctx, core.NewDefaultClass("kelas-2b", "Kelas 2B")))

	_, err := repo.SaveTransaction(ctx, sampleTx("tx-1"))
	require.NoError(t, err)

	other := sampleTx("tx-1")
	other.ClassID = "kelas-2b"
	_, err = repo.SaveTransaction(ctx, other)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListAndDeleteTransactions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	seedClass(t, repo)

	late := sampleTx("late")
	late.Date = core.NewDate(2025, 5, 1)
	early := sampleTx("early")
	early.Date = core.NewDate(2025, 1, 1)
	for _, tx := range []core.Transaction{late, early} {
		_, err := repo.SaveTransaction(ctx, tx)
		require.NoError(t, err)
	}

	list, err := repo.ListTransactions(ctx, "kelas-1a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "early", list[0].ID)

	empty, err := repo.ListTransactions(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.DeleteTransaction(ctx, "kelas-1a", "early"))
	assert.ErrorIs(t, repo.DeleteTransaction(ctx, "kelas-1a", "early"), core.ErrNotFound)
	_, err = repo.GetTransaction(ctx, "kelas-1a", "early")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInitialBalancesReplace(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	seedClass(t, repo)

	require.NoError(t, repo.SetInitialBalances(ctx, "kelas-1a", core.InitialBalances{
		"anak":       decimal.NewFromInt(100000),
		"perpisahan": decimal.NewFromInt(50000),
	}))
	require.NoError(t, repo.SetInitialBalances(ctx, "kelas-1a", core.InitialBalances{
		"anak": decimal.RequireFromString("125000.25"),
	}))

	got, err := repo.GetInitialBalances(ctx, "kelas-1a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "125000.25", got["anak"].String())

	none, err := repo.GetInitialBalances(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPendingSyncQueue(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	seedClass(t, repo)

	for _, id := range []string{"a", "b", "c"} {
		_, err := repo.SaveTransaction(ctx, sampleTx(id))
		require.NoError(t, err)
	}
	require.NoError(t, repo.MarkSynced(ctx, "a", 1))
	require.NoError(t, repo.MarkSyncError(ctx, "b"))

	pending, err := repo.PendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].ID)
	assert.Equal(t, "kelas-1a", pending[0].ClassID)
	assert.Equal(t, int64(1), pending[0].Version)
	assert.False(t, pending[0].CreatedAt.IsZero())

	limited, err := repo.PendingSync(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	rec, err := repo.GetSyncRecord(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, "Iuran Februari", rec.Transaction.Description)

	_, err = repo.GetSyncRecord(ctx, "zzz")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeletingClassCascades(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	seedClass(t, repo)
	_, err := repo.SaveTransaction(ctx, sampleTx("tx-1"))
	require.NoError(t, err)

	_, err = repo.db.ExecContext(ctx, `DELETE FROM classes WHERE id = ?`, "kelas-1a")
	require.NoError(t, err)

	list, err := repo.ListTransactions(ctx, "kelas-1a")
	require.NoError(t, err)
	assert.Empty(t, list)
}

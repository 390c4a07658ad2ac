package memory

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaskelas/internal/core"
)

func sampleTx(id string, day int) core.Transaction {
	return core.Transaction{
		ID:          id,
		ClassID:     "kelas-1a",
		Date:        core.NewDate(2025, 3, day),
		Description: "Iuran " + id,
		Amount:      decimal.NewFromInt(50000),
		Type:        core.Income,
		Fund:        core.SplitAcrossTargets(),
		Category:    core.CategoryDues,
		StudentName: "Ahmad",
	}
}

func TestStoreTransactionsOrderedAndVersioned(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, tx := range []core.Transaction{sampleTx("b", 10), sampleTx("a", 10), sampleTx("c", 1)} {
		v, err := s.SaveTransaction(ctx, tx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	}

	list, err := s.ListTransactions(ctx, "kelas-1a")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{list[0].ID, list[1].ID, list[2].ID})

	edited := sampleTx("b", 10)
	edited.Description = "koreksi"
	v, err := s.SaveTransaction(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	got, err := s.GetTransaction(ctx, "kelas-1a", "b")
	require.NoError(t, err)
	assert.Equal(t, "koreksi", got.Description)

	foreign := sampleTx("b", 10)
	foreign.ClassID = "kelas-2b"
	_, err = s.SaveTransaction(ctx, foreign)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.DeleteTransaction(ctx, "kelas-1a", "b"))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "kelas-1a", "b"), core.ErrNotFound)
	_, err = s.GetTransaction(ctx, "kelas-1a", "b")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStoreClassesAndBalances(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetClass(ctx, "kelas-1a")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.SaveClass(ctx, core.NewDefaultClass("kelas-2b", "Kelas 2B")))
	require.NoError(t, s.SaveClass(ctx, core.NewDefaultClass("kelas-1a", "Kelas 1A")))
	classes, err := s.ListClasses(ctx)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "kelas-1a", classes[0].ID)

	in := core.InitialBalances{"anak": decimal.NewFromInt(100000)}
	require.NoError(t, s.SetInitialBalances(ctx, "kelas-1a", in))
	in["anak"] = decimal.Zero

	got, err := s.GetInitialBalances(ctx, "kelas-1a")
	require.NoError(t, err)
	assert.Equal(t, "100000", got["anak"].String())
}

func TestFlushAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "snapshot.json")

	s, err := NewFromFile(path)
	require.NoError(t, err)

	class := core.NewDefaultClass("kelas-1a", "Kelas 1A")
	class.Students = []string{"Ahmad"}
	require.NoError(t, s.SaveClass(ctx, class))
	paid := sampleTx("x", 15)
	paid.PaymentDate = core.NewDate(2025, 2, 1)
	_, err = s.SaveTransaction(ctx, paid)
	require.NoError(t, err)
	_, err = s.SaveTransaction(ctx, sampleTx("y", 2))
	require.NoError(t, err)
	require.NoError(t, s.SetInitialBalances(ctx, "kelas-1a", core.InitialBalances{
		"anak": decimal.RequireFromString("1250.50"),
	}))
	require.NoError(t, s.Close())

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	reloaded, err := NewFromFile(path)
	require.NoError(t, err)

	gotClass, err := reloaded.GetClass(ctx, "kelas-1a")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ahmad"}, gotClass.Students)
	assert.True(t, gotClass.SplitRule.Ratio.Equal(decimal.RequireFromString("0.5")))

	list, err := reloaded.ListTransactions(ctx, "kelas-1a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "y", list[0].ID)
	assert.True(t, list[1].Fund.IsSplit())
	assert.Equal(t, "2025-02-01", list[1].PaymentDate.String())

	bal, err := reloaded.GetInitialBalances(ctx, "kelas-1a")
	require.NoError(t, err)
	assert.True(t, bal["anak"].Equal(decimal.RequireFromString("1250.5")))
}

func TestNewFromFileRejectsCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFromFile(path)
	assert.Error(t, err)
}

func TestFlushWithoutPathIsNoop(t *testing.T) {
	assert.NoError(t, New().Flush(context.Background()))
}

func TestConcurrentSavesAndFlushes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	s, err := NewFromFile(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			tx := sampleTx("tx-"+strconv.Itoa(i%20), 1+i%28)
			tx.Description = "rev " + strconv.Itoa(i)
			_, err := s.SaveTransaction(ctx, tx)
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Flush(ctx))
		}()
	}
	wg.Wait()
	require.NoError(t, s.Flush(ctx))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	reloaded, err := NewFromFile(path)
	require.NoError(t, err)
	want, err := s.ListTransactions(ctx, "kelas-1a")
	require.NoError(t, err)
	got, err := reloaded.ListTransactions(ctx, "kelas-1a")
	require.NoError(t, err)
	require.Len(t, got, 20)
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Description, got[i].Description)
	}
}

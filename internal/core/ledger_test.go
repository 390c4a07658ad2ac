package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyLedgerContinuity(t *testing.T) {
	initial := InitialBalances{"anak": d("100000"), "perpisahan": d("50000")}
	txs := []Transaction{
		tx(Expense, "20000", ConcreteFund("anak"), CategorySupplies, NewDate(2025, 3, 10)),
		tx(Income, "50000", SplitAcrossTargets(), CategoryDues, NewDate(2025, 1, 15)),
		tx(Income, "10000", ConcreteFund("anak"), CategoryDonation, NewDate(2025, 1, 20)),
		tx(Expense, "5000", ConcreteFund("perpisahan"), CategorySocial, NewDate(2025, 2, 2)),
		tx(Income, "7000", ConcreteFund("anak"), CategoryDonation, NewDate(2024, 12, 31)),
	}

	rows := ComputeMonthlyLedger(txs, initial)

	require.Len(t, rows, 4)
	assert.Equal(t, []string{"2025-03", "2025-02", "2025-01", "2024-12"},
		[]string{rows[0].Key, rows[1].Key, rows[2].Key, rows[3].Key})
	assert.Equal(t, "Maret 2025", rows[0].Label)
	assert.Equal(t, "Desember 2024", rows[3].Label)

	// Rows are newest first; the older row's closing is the newer row's opening.
	for i := 0; i+1 < len(rows); i++ {
		assertDecimal(t, rows[i+1].Closing.String(), rows[i].Opening, "row", rows[i].Key)
	}

	oldest := rows[3]
	assertDecimal(t, "150000", oldest.Opening)
	assertDecimal(t, "157000", oldest.Closing)

	jan := rows[2]
	assertDecimal(t, "60000", jan.Income)
	assert.True(t, jan.Expense.IsZero())
	assertDecimal(t, "217000", jan.Closing)

	assertDecimal(t, "192000", rows[0].Closing)
}

func TestMonthlyLedgerKeysOnTransactionDate(t *testing.T) {
	due := tx(Income, "50000", ConcreteFund("anak"), CategoryDues, NewDate(2025, 3, 15))
	due.PaymentDate = NewDate(2025, 2, 1)

	rows := ComputeMonthlyLedger([]Transaction{due}, nil)

	require.Len(t, rows, 1)
	assert.Equal(t, "2025-03", rows[0].Key)
	assert.True(t, rows[0].Opening.IsZero())
}

func TestMonthlyLedgerStableWithinDay(t *testing.T) {
	a := tx(Income, "100", ConcreteFund("anak"), CategoryDonation, NewDate(2025, 5, 1))
	b := tx(Expense, "40", ConcreteFund("anak"), CategorySupplies, NewDate(2025, 5, 1))

	rows := ComputeMonthlyLedger([]Transaction{a, b}, nil)

	require.Len(t, rows, 1)
	assertDecimal(t, "100", rows[0].Income)
	assertDecimal(t, "40", rows[0].Expense)
	assertDecimal(t, "60", rows[0].Closing)
}

func TestMonthLabel(t *testing.T) {
	assert.Equal(t, "Januari 2026", MonthLabel(2026, 1))
	assert.Equal(t, "Agustus 2025", MonthLabel(2025, 8))
	assert.Equal(t, "2025-13", MonthLabel(2025, 13))
}

package core

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var monthNames = [12]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// MonthRow is one month of the mutation ledger.
type MonthRow struct {
	Key     string          `json:"key"`
	Label   string          `json:"label"`
	Opening decimal.Decimal `json:"openingBalance"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Closing decimal.Decimal `json:"closingBalance"`
}

// MonthLabel renders a month in Indonesian, e.g. "Maret 2025".
func MonthLabel(year, month int) string {
	if month < 1 || month > 12 {
		return fmt.Sprintf("%04d-%02d", year, month)
	}
	return fmt.Sprintf("%s %d", monthNames[month-1], year)
}

// ComputeMonthlyLedger walks transactions oldest-first by the date money
// moved and returns one row per month that has transactions, newest first.
// The running total starts at the sum of all opening balances. Months
// without transactions get no row.
func ComputeMonthlyLedger(txs []Transaction, initial InitialBalances) []MonthRow {
	running := decimal.Zero
	for _, v := range initial {
		running = running.Add(v)
	}

	sorted := make([]Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date.Time)
	})

	var rows []*MonthRow
	index := map[string]*MonthRow{}
	for _, t := range sorted {
		key := fmt.Sprintf("%04d-%02d", t.Date.Year(), t.Date.Month())
		row, ok := index[key]
		if !ok {
			row = &MonthRow{
				Key:     key,
				Label:   MonthLabel(t.Date.Year(), t.Date.Month()),
				Opening: running,
				Income:  decimal.Zero,
				Expense: decimal.Zero,
			}
			index[key] = row
			rows = append(rows, row)
		}
		if t.Type == Income {
			row.Income = row.Income.Add(t.Amount)
		} else {
			row.Expense = row.Expense.Add(t.Amount)
		}
		running = running.Add(signed(t, t.Amount))
		row.Closing = running
	}

	out := make([]MonthRow, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, *rows[i])
	}
	return out
}

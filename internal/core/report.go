package core

import "github.com/shopspring/decimal"

type FundReportRow struct {
	FundID  string          `json:"fundId"`
	Name    string          `json:"name"`
	Initial decimal.Decimal `json:"initial"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Final   decimal.Decimal `json:"final"`
}

// FundReport is the per-fund cash report. Debit is money in, credit money out.
type FundReport struct {
	Rows   []FundReportRow `json:"rows"`
	Totals FundReportRow   `json:"totals"`
}

type CategoryTotal struct {
	Category Category        `json:"category"`
	Label    string          `json:"label"`
	Income   decimal.Decimal `json:"income"`
	Expense  decimal.Decimal `json:"expense"`
}

// ComputeFundReport lists every fund in class order with its opening balance,
// money in, money out and closing balance. Postings follow Allocate, so Final
// always agrees with ComputeFundBalances.
func ComputeFundReport(funds []Fund, rule SplitRule, txs []Transaction, initial InitialBalances) FundReport {
	rows := make([]FundReportRow, len(funds))
	pos := make(map[string]int, len(funds))
	for i, f := range funds {
		opening := decimal.Zero
		if v, ok := initial[f.ID]; ok {
			opening = v
		}
		rows[i] = FundReportRow{
			FundID:  f.ID,
			Name:    f.Name,
			Initial: opening,
			Debit:   decimal.Zero,
			Credit:  decimal.Zero,
		}
		if _, dup := pos[f.ID]; !dup {
			pos[f.ID] = i
		}
	}

	for _, t := range txs {
		for _, a := range Allocate(t, rule) {
			i, ok := pos[a.FundID]
			if !ok {
				continue
			}
			if t.Type == Income {
				rows[i].Debit = rows[i].Debit.Add(a.Amount)
			} else {
				rows[i].Credit = rows[i].Credit.Add(a.Amount)
			}
		}
	}

	totals := FundReportRow{
		Name:    "Total",
		Initial: decimal.Zero,
		Debit:   decimal.Zero,
		Credit:  decimal.Zero,
		Final:   decimal.Zero,
	}
	for i := range rows {
		rows[i].Final = rows[i].Initial.Add(rows[i].Debit).Sub(rows[i].Credit)
		totals.Initial = totals.Initial.Add(rows[i].Initial)
		totals.Debit = totals.Debit.Add(rows[i].Debit)
		totals.Credit = totals.Credit.Add(rows[i].Credit)
		totals.Final = totals.Final.Add(rows[i].Final)
	}
	return FundReport{Rows: rows, Totals: totals}
}

// ComputeCategoryTotals sums income and expense per category in display
// order. Categories with no transactions are omitted. Unknown categories,
// such as stored rows from an older category list, count as CategoryOther
// so the rows always add up to the ledger totals.
func ComputeCategoryTotals(txs []Transaction) []CategoryTotal {
	sums := map[Category]*CategoryTotal{}
	for _, t := range txs {
		cat := t.Category
		if !cat.Valid() {
			cat = CategoryOther
		}
		ct, ok := sums[cat]
		if !ok {
			ct = &CategoryTotal{
				Category: cat,
				Label:    cat.Label(),
				Income:   decimal.Zero,
				Expense:  decimal.Zero,
			}
			sums[cat] = ct
		}
		switch t.Type {
		case Income:
			ct.Income = ct.Income.Add(t.Amount)
		case Expense:
			ct.Expense = ct.Expense.Add(t.Amount)
		}
	}

	out := make([]CategoryTotal, 0, len(sums))
	for _, c := range AllCategories() {
		if ct, ok := sums[c]; ok {
			out = append(out, *ct)
		}
	}
	return out
}

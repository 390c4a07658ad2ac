package core

import "github.com/shopspring/decimal"

// Allocation is the part of a transaction's amount posted to one fund.
type Allocation struct {
	FundID string
	Amount decimal.Decimal
}

// Summary holds derived balances for one class.
type Summary struct {
	FundBalances map[string]decimal.Decimal `json:"fundBalances"`
	TotalBalance decimal.Decimal            `json:"totalBalance"`
	TotalIncome  decimal.Decimal            `json:"totalIncome"`
	TotalExpense decimal.Decimal            `json:"totalExpense"`
}

// ShouldSplit decides at write time whether a transaction is tagged with the
// split reference instead of a concrete fund.
func ShouldSplit(rule SplitRule, category Category, typ TransactionType) bool {
	return rule.Enabled && category == rule.TriggerCategory && typ == Income
}

// SplitShares divides amount across the rule's targets, aligned with
// rule.TargetFundIDs. Two targets use the ratio; any other count is split
// evenly with the last target absorbing the division remainder, so the
// shares always sum to amount. No targets yields no shares.
func SplitShares(amount decimal.Decimal, rule SplitRule) []decimal.Decimal {
	n := len(rule.TargetFundIDs)
	switch {
	case n == 0:
		return nil
	case n == 2:
		first := amount.Mul(rule.Ratio)
		return []decimal.Decimal{first, amount.Sub(first)}
	}

	shares := make([]decimal.Decimal, n)
	each := amount.Div(decimal.NewFromInt(int64(n)))
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		shares[i] = each
		allocated = allocated.Add(each)
	}
	shares[n-1] = amount.Sub(allocated)
	return shares
}

// ShareOf returns the part of a split transaction allocated to fundID, or
// zero when fundID is not a split target.
func ShareOf(t Transaction, rule SplitRule, fundID string) decimal.Decimal {
	shares := SplitShares(t.Amount, rule)
	for i, id := range rule.TargetFundIDs {
		if id == fundID {
			return shares[i]
		}
	}
	return decimal.Zero
}

// Allocate returns the unsigned per-fund postings of a transaction. Fund ids
// are not checked against any class: callers decide what to surface.
func Allocate(t Transaction, rule SplitRule) []Allocation {
	if id, ok := t.Fund.FundID(); ok {
		if id == "" {
			return nil
		}
		return []Allocation{{FundID: id, Amount: t.Amount}}
	}

	shares := SplitShares(t.Amount, rule)
	out := make([]Allocation, 0, len(shares))
	seen := make(map[string]struct{}, len(shares))
	for i, id := range rule.TargetFundIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, Allocation{FundID: id, Amount: shares[i]})
	}
	return out
}

func signed(t Transaction, amount decimal.Decimal) decimal.Decimal {
	if t.Type == Income {
		return amount
	}
	return amount.Neg()
}

// ComputeFundBalances returns every fund's opening balance plus its
// concrete postings plus its share of split postings. Transactions whose
// fund reference matches no fund contribute nothing.
func ComputeFundBalances(funds []Fund, rule SplitRule, txs []Transaction, initial InitialBalances) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal, len(funds))
	for _, f := range funds {
		if v, ok := initial[f.ID]; ok {
			balances[f.ID] = v
		} else {
			balances[f.ID] = decimal.Zero
		}
	}

	for _, t := range txs {
		for _, a := range Allocate(t, rule) {
			bal, ok := balances[a.FundID]
			if !ok {
				continue
			}
			balances[a.FundID] = bal.Add(signed(t, a.Amount))
		}
	}
	return balances
}

// ComputeSummary adds class-wide totals to the fund balances. Income and
// expense totals count each transaction once, split or not.
func ComputeSummary(funds []Fund, rule SplitRule, txs []Transaction, initial InitialBalances) Summary {
	s := Summary{
		FundBalances: ComputeFundBalances(funds, rule, txs, initial),
		TotalBalance: decimal.Zero,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
	}
	for _, bal := range s.FundBalances {
		s.TotalBalance = s.TotalBalance.Add(bal)
	}
	for _, t := range txs {
		switch t.Type {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case Expense:
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
		}
	}
	return s
}

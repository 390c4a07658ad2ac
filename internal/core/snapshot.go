package core

// Snapshot is everything the aggregator needs for one class, loaded at once.
type Snapshot struct {
	Class        SchoolClass     `json:"class"`
	Transactions []Transaction   `json:"transactions"`
	Balances     InitialBalances `json:"initialBalances"`
}

func (s Snapshot) Summary() Summary {
	return ComputeSummary(s.Class.Funds, s.Class.SplitRule, s.Transactions, s.Balances)
}

func (s Snapshot) MonthlyLedger() []MonthRow {
	return ComputeMonthlyLedger(s.Transactions, s.Balances)
}

func (s Snapshot) Checklist(year int) ChecklistReport {
	return ComputeChecklistReport(s.Class.Students, s.Transactions, year)
}

func (s Snapshot) FundReport() FundReport {
	return ComputeFundReport(s.Class.Funds, s.Class.SplitRule, s.Transactions, s.Balances)
}

func (s Snapshot) CategoryTotals() []CategoryTotal {
	return ComputeCategoryTotals(s.Transactions)
}

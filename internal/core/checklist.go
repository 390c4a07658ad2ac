package core

import "strings"

// ChecklistRow marks which months of a year a student's dues were paid.
// PaidMonths is indexed January..December.
type ChecklistRow struct {
	StudentName string   `json:"studentName"`
	PaidMonths  [12]bool `json:"paidMonths"`
	TotalPaid   int      `json:"totalPaid"`
}

// UnmatchedPayment is a qualifying dues payment whose student name is not
// on the class roster.
type UnmatchedPayment struct {
	StudentName   string `json:"studentName"`
	Month         int    `json:"month"`
	TransactionID string `json:"transactionId"`
}

type ChecklistReport struct {
	Year      int                `json:"year"`
	Rows      []ChecklistRow     `json:"rows"`
	Unmatched []UnmatchedPayment `json:"unmatched"`
	Filled    int                `json:"filled"`
	Expected  int                `json:"expected"`
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// qualifiesForChecklist reports whether t is a dues payment credited to
// year, and the month index (0-11) it is credited to.
func qualifiesForChecklist(t Transaction, year int) (int, bool) {
	if t.Type != Income || t.Category != CategoryDues {
		return 0, false
	}
	if normalizeName(t.StudentName) == "" {
		return 0, false
	}
	d := t.AttributionDate()
	if d.IsZero() || d.Year() != year {
		return 0, false
	}
	return d.Month() - 1, true
}

// ComputeChecklist builds the roster-ordered student x month matrix for
// year. Any qualifying payment marks its month paid regardless of amount.
// Payments for names not on the roster are dropped.
func ComputeChecklist(students []string, txs []Transaction, year int) []ChecklistRow {
	rows, _ := buildChecklist(students, txs, year)
	return rows
}

// ComputeChecklistReport is ComputeChecklist plus the payments that matched
// no roster entry and the overall fill progress.
func ComputeChecklistReport(students []string, txs []Transaction, year int) ChecklistReport {
	rows, unmatched := buildChecklist(students, txs, year)
	filled, expected := ChecklistProgress(rows)
	return ChecklistReport{
		Year:      year,
		Rows:      rows,
		Unmatched: unmatched,
		Filled:    filled,
		Expected:  expected,
	}
}

func buildChecklist(students []string, txs []Transaction, year int) ([]ChecklistRow, []UnmatchedPayment) {
	roster := make(map[string]struct{}, len(students))
	for _, s := range students {
		roster[normalizeName(s)] = struct{}{}
	}

	paid := map[string]*[12]bool{}
	unmatched := []UnmatchedPayment{}
	for _, t := range txs {
		month, ok := qualifiesForChecklist(t, year)
		if !ok {
			continue
		}
		key := normalizeName(t.StudentName)
		if _, onRoster := roster[key]; !onRoster {
			unmatched = append(unmatched, UnmatchedPayment{
				StudentName:   strings.TrimSpace(t.StudentName),
				Month:         month + 1,
				TransactionID: t.ID,
			})
		}
		months, exists := paid[key]
		if !exists {
			months = &[12]bool{}
			paid[key] = months
		}
		months[month] = true
	}

	rows := make([]ChecklistRow, 0, len(students))
	for _, s := range students {
		row := ChecklistRow{StudentName: s}
		if months, ok := paid[normalizeName(s)]; ok {
			row.PaidMonths = *months
		}
		for _, p := range row.PaidMonths {
			if p {
				row.TotalPaid++
			}
		}
		rows = append(rows, row)
	}
	return rows, unmatched
}

// ChecklistProgress returns how many student-months are paid out of the
// twelve expected per student.
func ChecklistProgress(rows []ChecklistRow) (filled, expected int) {
	for _, r := range rows {
		filled += r.TotalPaid
	}
	return filled, len(rows) * 12
}

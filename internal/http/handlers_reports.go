package http

import (
	"net/http"
	"strconv"

	"kaskelas/internal/core"
	"kaskelas/internal/log"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	classID := r.PathValue("classID")
	summary, err := cachedReport(s, classID, "summary", func() (core.Summary, error) {
		return s.ledger.Summary(r.Context(), classID)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Data(summary).Write(w)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	classID := r.PathValue("classID")
	rows, err := cachedReport(s, classID, "ledger", func() ([]core.MonthRow, error) {
		return s.ledger.MonthlyLedger(r.Context(), classID)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []core.MonthRow{}
	}
	NewResponse().Data(rows).Write(w)
}

func (s *Server) handleChecklist(w http.ResponseWriter, r *http.Request) {
	classID := r.PathValue("classID")
	year, err := parseYear(r, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := cachedReport(s, classID, "checklist:"+strconv.Itoa(year), func() (core.ChecklistReport, error) {
		return s.ledger.Checklist(r.Context(), classID, year)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Data(report).Write(w)
}

func (s *Server) handleFundReport(w http.ResponseWriter, r *http.Request) {
	classID := r.PathValue("classID")
	report, err := cachedReport(s, classID, "report", func() (core.FundReport, error) {
		return s.ledger.FundReport(r.Context(), classID)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Data(report).Write(w)
}

func (s *Server) handleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	classID := r.PathValue("classID")
	totals, err := cachedReport(s, classID, "categories", func() ([]core.CategoryTotal, error) {
		return s.ledger.CategoryTotals(r.Context(), classID)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if totals == nil {
		totals = []core.CategoryTotal{}
	}
	NewResponse().Data(totals).Write(w)
}

// handleInsights is never cached; every call asks the model again.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	classID := r.PathValue("classID")
	snap, err := s.ledger.Snapshot(r.Context(), classID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	text, err := s.advisor.Insights(r.Context(), snap.Class, snap.Summary(), snap.Transactions)
	if err != nil {
		if s.advisor.Enabled() {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Insights generation failed",
				log.FieldComponent, log.ComponentInsights,
				log.FieldClassID, classID,
				log.FieldError, err)
		}
		writeError(w, r, err)
		return
	}
	NewResponse().Data(insightsResponse{ClassID: classID, Text: text}).Write(w)
}

package http

import (
	"log/slog"
	"net/http"

	"kaskelas/internal/core"
	"kaskelas/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.txs.List(r.Context(), r.PathValue("classID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewResponse().Data(txs).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.txs.Get(r.Context(), r.PathValue("classID"), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Data(t).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	classID := r.PathValue("classID")
	draft, err := s.decodeTransaction(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.txs.Create(r.Context(), classID, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logTransaction(r, "Transaction created", log.OpCreate, t)
	Created(t).Header("Location", "/api/classes/"+classID+"/transactions/"+t.ID).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	draft, err := s.decodeTransaction(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	draft.ID = r.PathValue("id")
	t, err := s.txs.Update(r.Context(), r.PathValue("classID"), draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logTransaction(r, "Transaction updated", log.OpUpdate, t)
	NewResponse().Data(t).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	classID, id := r.PathValue("classID"), r.PathValue("id")
	if err := s.txs.Delete(r.Context(), classID, id); err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		log.FieldClassID, classID,
		log.FieldTransactionID, id,
		log.FieldOperation, log.OpDelete)
	NoContent().Write(w)
}

func (s *Server) decodeTransaction(w http.ResponseWriter, r *http.Request) (core.Transaction, error) {
	var req TransactionRequest
	if err := decodeJSON(w, r, s.validate, &req); err != nil {
		return core.Transaction{}, err
	}
	return req.toTransaction()
}

func logTransaction(r *http.Request, msg, op string, t core.Transaction) {
	fields := log.NewFields().
		WithOperation(op).
		WithTransaction(t.ClassID, t.ID, t.Fund.String(), string(t.Category), string(t.Type), t.Amount.String())
	log.FromContext(r.Context()).Fields(r.Context(), slog.LevelInfo, msg, fields)
}

package http

import (
	"net/http"

	"kaskelas/internal/core"
	"kaskelas/internal/log"
)

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats := core.AllCategories()
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryResponse{Code: c, Label: c.Label()})
	}
	NewResponse().Data(out).Write(w)
}

func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := s.classes.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if classes == nil {
		classes = []core.SchoolClass{}
	}
	NewResponse().Data(classes).Write(w)
}

func (s *Server) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	var req CreateClassRequest
	if err := decodeJSON(w, r, s.validate, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.classes.Create(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Class created",
		log.FieldClassID, c.ID,
		log.FieldOperation, log.OpCreate)
	Created(c).Header("Location", "/api/classes/"+c.ID).Write(w)
}

func (s *Server) handleGetClass(w http.ResponseWriter, r *http.Request) {
	c, err := s.classes.Get(r.Context(), r.PathValue("classID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Data(c).Write(w)
}

func (s *Server) handleUpdateClass(w http.ResponseWriter, r *http.Request) {
	current, err := s.classes.Get(r.Context(), r.PathValue("classID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req UpdateClassRequest
	if err := decodeJSON(w, r, s.validate, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := req.toClass(current)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.classes.Save(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Class updated",
		log.FieldClassID, c.ID,
		log.FieldOperation, log.OpUpdate)
	NewResponse().Data(c).Write(w)
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	b, err := s.classes.InitialBalances(r.Context(), r.PathValue("classID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Data(b).Write(w)
}

func (s *Server) handleSetBalances(w http.ResponseWriter, r *http.Request) {
	classID := r.PathValue("classID")
	var req BalancesRequest
	if err := decodeJSON(w, r, nil, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := req.toBalances()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.classes.SetInitialBalances(r.Context(), classID, b); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Data(b).Write(w)
}

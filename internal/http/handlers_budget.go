package http

import (
	"net/http"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.finance.ListBudgets(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(nonNil(budgets)).Write(w)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.finance.GetBudget(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(b).Write(w)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	p, err := DecodePayload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := p.BudgetInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.finance.CreateBudget(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(b).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := DecodePayload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := p.BudgetInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.finance.UpdateBudget(r.Context(), userID(r), id, in, r.Method == http.MethodPatch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(b).Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.finance.DeleteBudget(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

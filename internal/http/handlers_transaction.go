package http

import (
	"net/http"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseTransactionFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	transactions, err := s.finance.ListTransactions(r.Context(), userID(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(nonNil(transactions)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.finance.GetTransaction(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(t).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, err := DecodePayload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := p.TransactionInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.finance.CreateTransaction(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(t).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
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
	in, err := p.TransactionInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.finance.UpdateTransaction(r.Context(), userID(r), id, in, r.Method == http.MethodPatch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(t).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.finance.DeleteTransaction(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

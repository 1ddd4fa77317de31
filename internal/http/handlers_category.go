package http

import (
	"net/http"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.finance.ListCategories(r.Context(), userID(r), ParseCategoryFilter(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(nonNil(categories)).Write(w)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.finance.GetCategory(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(c).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	p, err := DecodePayload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := p.CategoryInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.finance.CreateCategory(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(c).Write(w)
}

// handleUpdateCategory serves PUT (all fields) and PATCH (supplied fields).
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
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
	in, err := p.CategoryInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.finance.UpdateCategory(r.Context(), userID(r), id, in, r.Method == http.MethodPatch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(c).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.finance.DeleteCategory(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

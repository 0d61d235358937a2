package http

import (
	"net/http"

	"hamyon/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.ListCategories(r.Context(), userID(r), core.EntryType(r.URL.Query().Get("type")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, newCategoryView(c))
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	c, err := s.ledger.CreateCategory(r.Context(), userID(r), p.Get("name"), core.EntryType(p.Get("type")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(newCategoryView(c)).Write(w)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.ledger.GetCategory(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newCategoryView(c)).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	current, err := s.ledger.GetCategory(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	name, typ := current.Name, current.Type
	if p.Has("name") {
		name = p.Get("name")
	}
	if p.Has("type") {
		typ = core.EntryType(p.Get("type"))
	}
	c, err := s.ledger.UpdateCategory(r.Context(), userID(r), id, name, typ)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newCategoryView(c)).Write(w)
}

// handleDeleteCategory leaves the category's transactions uncategorized.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteCategory(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

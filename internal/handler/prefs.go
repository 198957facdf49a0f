package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/portpilot/portal/internal/middleware"
)

// SidebarRequest is the body of PUT /api/prefs/sidebar.
type SidebarRequest struct {
	Collapsed bool `json:"collapsed"`
}

// GetPrefs handles GET /api/prefs.
func (s *Server) GetPrefs(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.prefs.Get(r.Context(), middleware.ClientIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// PutWidths handles PUT /api/prefs/widths/{resource} with a {column: width} body.
func (s *Server) PutWidths(w http.ResponseWriter, r *http.Request) {
	var widths map[string]int
	if err := json.NewDecoder(r.Body).Decode(&widths); err != nil {
		requestError(w, "request body must be an object of column widths")
		return
	}
	saved, err := s.prefs.SetWidths(r.Context(), middleware.ClientIDFrom(r.Context()), chi.URLParam(r, "resource"), widths)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// PutSidebar handles PUT /api/prefs/sidebar.
func (s *Server) PutSidebar(w http.ResponseWriter, r *http.Request) {
	var body SidebarRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		requestError(w, "request body must be JSON")
		return
	}
	if err := s.prefs.SetSidebar(r.Context(), middleware.ClientIDFrom(r.Context()), body.Collapsed); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

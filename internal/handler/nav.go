package handler

import (
	"net/http"

	"github.com/portpilot/portal/internal/service"
	"github.com/portpilot/portal/internal/session"
)

// GetNav handles GET /api/nav.
func (s *Server) GetNav(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, service.Nav(session.FromContext(r.Context())))
}

// GetCompanyCodes handles GET /api/options/company-codes. Lists that cannot
// be fetched come back empty rather than failing the request.
func (s *Server) GetCompanyCodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.codes.CompanyCodes(r.Context(), session.FromContext(r.Context())))
}

package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/portpilot/portal/internal/middleware"
	"github.com/portpilot/portal/internal/resources"
	"github.com/portpilot/portal/internal/service"
	"github.com/portpilot/portal/internal/session"
	"github.com/portpilot/portal/internal/sheet"
	"github.com/portpilot/portal/internal/table"
)

// maxUploadMemory is how much of a multipart upload is held in memory before
// spilling to disk.
const maxUploadMemory = 8 << 20

// CellRequest is the body of PATCH /api/pages/{resource}/rows/{rowID}.
type CellRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// BlurRequest is the body of POST /api/pages/{resource}/rows/{rowID}/blur.
type BlurRequest struct {
	Field string `json:"field"`
}

// SelectRequest is the body of PUT /api/pages/{resource}/selection/{rowID}.
type SelectRequest struct {
	Selected bool `json:"selected"`
}

// DeleteRequest is the body of POST /api/pages/{resource}/delete.
type DeleteRequest struct {
	Confirm bool `json:"confirm"`
}

// DeleteResponse reports how many rows a delete removed.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}

// DecisionRequest is the body of POST /api/pages/{resource}/import/decision.
type DecisionRequest struct {
	Decision string `json:"decision"`
}

// LoadPage handles POST /api/pages/{resource}/load.
func (s *Server) LoadPage(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	st, err := s.pages.Load(r.Context(), session.FromContext(r.Context()), resource)
	if err != nil {
		title := resource
		if def, ok := resources.Lookup(resource); ok {
			title = def.Schema.Title
		}
		s.loadError(w, r, title, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetPage handles GET /api/pages/{resource}?sort=&dir=&q=.
func (s *Server) GetPage(w http.ResponseWriter, r *http.Request) {
	var sortKey, dir, query string
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dest *string
	}{
		{"sort", &sortKey},
		{"dir", &dir},
		{"q", &query},
	} {
		if err := runtime.BindQueryParameter("form", true, false, p.name, q, p.dest); err != nil {
			requestError(w, "invalid query parameter "+p.name)
			return
		}
	}
	sortDir := table.SortDir(dir)
	if sortDir != table.Asc && sortDir != table.Desc && sortDir != table.None {
		requestError(w, "dir must be asc or desc")
		return
	}

	st, err := s.pages.State(session.FromContext(r.Context()), chi.URLParam(r, "resource"), table.ViewOptions{
		SortKey: sortKey,
		Dir:     sortDir,
		Query:   query,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// AddRow handles POST /api/pages/{resource}/rows.
func (s *Server) AddRow(w http.ResponseWriter, r *http.Request) {
	row, err := s.pages.AddRow(session.FromContext(r.Context()), chi.URLParam(r, "resource"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

// EditCell handles PATCH /api/pages/{resource}/rows/{rowID}.
func (s *Server) EditCell(w http.ResponseWriter, r *http.Request) {
	var body CellRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Field == "" {
		requestError(w, "field is required")
		return
	}
	row, err := s.pages.EditCell(session.FromContext(r.Context()), chi.URLParam(r, "resource"),
		chi.URLParam(r, "rowID"), body.Field, body.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// BlurCell handles POST /api/pages/{resource}/rows/{rowID}/blur.
func (s *Server) BlurCell(w http.ResponseWriter, r *http.Request) {
	var body BlurRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Field == "" {
		requestError(w, "field is required")
		return
	}
	row, err := s.pages.Blur(session.FromContext(r.Context()), chi.URLParam(r, "resource"),
		chi.URLParam(r, "rowID"), body.Field)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// SelectRow handles PUT /api/pages/{resource}/selection/{rowID}.
func (s *Server) SelectRow(w http.ResponseWriter, r *http.Request) {
	var body SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		requestError(w, "request body must be JSON")
		return
	}
	err := s.pages.Select(session.FromContext(r.Context()), chi.URLParam(r, "resource"),
		chi.URLParam(r, "rowID"), body.Selected)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteRows handles POST /api/pages/{resource}/delete. Without confirm
// nothing is removed.
func (s *Server) DeleteRows(w http.ResponseWriter, r *http.Request) {
	var body DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		requestError(w, "request body must be JSON")
		return
	}
	n, err := s.pages.DeleteSelected(session.FromContext(r.Context()), chi.URLParam(r, "resource"), body.Confirm)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: n})
}

// SavePage handles POST /api/pages/{resource}/save.
func (s *Server) SavePage(w http.ResponseWriter, r *http.Request) {
	res, err := s.pages.Save(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "resource"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ExportPage handles GET /api/pages/{resource}/export and streams an .xlsx
// workbook using the caller's saved column widths.
func (s *Server) ExportPage(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	widths, err := s.prefs.Widths(r.Context(), middleware.ClientIDFrom(r.Context()), resource)
	if err != nil {
		s.log.WarnContext(r.Context(), "column widths unavailable, using defaults", "error", err)
		widths = nil
	}

	out, err := s.pages.Export(session.FromContext(r.Context()), resource, widths)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", sheet.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.FileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}

// ImportPage handles POST /api/pages/{resource}/import?mode=append|overwrite
// with the workbook in the multipart field "file".
func (s *Server) ImportPage(w http.ResponseWriter, r *http.Request) {
	mode := string(service.ImportAppend)
	if err := runtime.BindQueryParameter("form", true, false, "mode", r.URL.Query(), &mode); err != nil {
		requestError(w, "invalid query parameter mode")
		return
	}
	importMode, err := service.ParseImportMode(mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, err)
			return
		}
		requestError(w, "request must be multipart/form-data with a file")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		requestError(w, "file is required")
		return
	}
	defer file.Close()

	res, err := s.pages.Import(session.FromContext(r.Context()), chi.URLParam(r, "resource"), importMode, file, header.Filename)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DecideImport handles POST /api/pages/{resource}/import/decision. Any answer
// other than overwrite or cancel skips the conflicting row.
func (s *Server) DecideImport(w http.ResponseWriter, r *http.Request) {
	var body DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		requestError(w, "request body must be JSON")
		return
	}
	res, err := s.pages.Decide(session.FromContext(r.Context()), chi.URLParam(r, "resource"), table.ParseDecision(body.Decision))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

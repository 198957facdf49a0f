package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/portpilot/portal/internal/domain"
	"github.com/portpilot/portal/internal/table"
	"github.com/portpilot/portal/internal/upstream"
)

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the JSON error envelope: {"error":{"code","message"}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErrorBody writes an error envelope.
func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// requestError reports a request rejected before it reaches a service, such
// as a malformed body.
func requestError(w http.ResponseWriter, message string) {
	writeErrorBody(w, http.StatusUnprocessableEntity, "validation_error", message)
}

// writeError maps a service error onto a status code and a message fit for
// the user. Unclassified errors are logged and reported as a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		apiErr   *upstream.APIError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		writeErrorBody(w, http.StatusRequestEntityTooLarge, "too_large", "Request body is too large.")
	case errors.Is(err, domain.ErrValidation):
		writeErrorBody(w, http.StatusUnprocessableEntity, "validation_error", unwrapMessage(err, domain.ErrValidation, "Invalid input."))
	case errors.Is(err, domain.ErrNotFound):
		writeErrorBody(w, http.StatusNotFound, "not_found", unwrapMessage(err, domain.ErrNotFound, "Not found."))
	case errors.Is(err, domain.ErrUnauthorized):
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", unwrapMessage(err, domain.ErrUnauthorized, "Please sign in."))
	case errors.Is(err, domain.ErrForbidden):
		writeErrorBody(w, http.StatusForbidden, "forbidden", unwrapMessage(err, domain.ErrForbidden, "Access forbidden."))
	case errors.Is(err, domain.ErrConflict):
		writeErrorBody(w, http.StatusConflict, "conflict", unwrapMessage(err, domain.ErrConflict, "Not possible right now."))
	case errors.Is(err, table.ErrLoadFailed):
		s.log.WarnContext(r.Context(), "page load failed", "error", err)
		writeErrorBody(w, http.StatusBadGateway, "load_failed", "Load failed.")
	case errors.Is(err, table.ErrSaveFailed) && errors.As(err, &apiErr) && apiErr.Message != "":
		writeErrorBody(w, http.StatusBadGateway, "save_failed", apiErr.Message)
	case errors.Is(err, table.ErrSaveFailed):
		s.log.WarnContext(r.Context(), "page save failed", "error", err)
		writeErrorBody(w, http.StatusBadGateway, "save_failed", "Save failed.")
	case errors.As(err, &apiErr) && apiErr.Message != "":
		writeErrorBody(w, http.StatusBadGateway, "upstream_error", apiErr.Message)
	case errors.Is(err, upstream.ErrUnavailable):
		writeErrorBody(w, http.StatusBadGateway, "upstream_unavailable", unwrapMessage(err, upstream.ErrUnavailable, "Unable to reach the server. Please try again later."))
	default:
		s.log.ErrorContext(r.Context(), "request failed", "error", err)
		writeErrorBody(w, http.StatusInternalServerError, "internal_error", "Something went wrong.")
	}
}

// loadError is writeError for page loads, naming the page in the message.
func (s *Server) loadError(w http.ResponseWriter, r *http.Request, title string, err error) {
	if errors.Is(err, table.ErrLoadFailed) {
		s.log.WarnContext(r.Context(), "page load failed", "error", err)
		writeErrorBody(w, http.StatusBadGateway, "load_failed", fmt.Sprintf("Failed to load %s.", title))
		return
	}
	s.writeError(w, r, err)
}

// unwrapMessage extracts the human-readable part that follows sentinel in a
// wrapped error.
// e.g. "service.PageService.Save: table.Editor.Save: validation error: Duplicate Code: A" → "Duplicate Code: A"
func unwrapMessage(err, sentinel error, fallback string) string {
	msg := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.Index(msg, marker); i >= 0 && len(msg) > i+len(marker) {
		return msg[i+len(marker):]
	}
	return fallback
}

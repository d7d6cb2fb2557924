package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"shelfkeeper/internal/common"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the service error taxonomy onto HTTP responses. Access
// denials are deliberately generic: the recorded reason stays server-side.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *common.ValidationError
		ce *common.ConflictError
	)

	switch {
	case errors.As(err, &ve):
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation_error",
			"field":  ve.Field,
			"reason": ve.Reason,
		})
	case errors.As(err, &ce):
		s.writeJSON(w, http.StatusConflict, map[string]any{
			"error":      ce.Reason,
			"item_count": ce.ItemCount,
		})
	case errors.Is(err, common.ErrorAccessDenied):
		s.writeJSON(w, http.StatusForbidden, map[string]any{"error": "access denied"})
	case errors.Is(err, common.ErrorUnauthorized):
		s.writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
	case errors.Is(err, common.ErrorNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	default:
		s.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return common.NewValidationError("", "invalid JSON body")
	}
	return nil
}

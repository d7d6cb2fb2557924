package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"shelfkeeper/internal/common"
	"shelfkeeper/internal/server/models"
)

type libraryResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SpaceID     *int64 `json:"space_id"`
	CreatedBy   int64  `json:"created_by"`
	ArchivedAt  string `json:"archived_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toLibraryResponse(l *models.Library) libraryResponse {
	resp := libraryResponse{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		SpaceID:     l.SpaceID,
		CreatedBy:   l.CreatedBy,
		CreatedAt:   l.CreatedAt.Format(time.RFC3339),
	}
	if l.ArchivedAt != nil {
		resp.ArchivedAt = l.ArchivedAt.Format(time.RFC3339)
	}
	return resp
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

func (s *Server) handleListLibraries(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())
	scope, _ := ScopeFromContext(r.Context())

	libs, err := s.libraries.ListAccessible(r.Context(), ident)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]libraryResponse, 0, len(libs))
	for _, l := range libs {
		out = append(out, toLibraryResponse(l))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"scope": map[string]any{
			"space_id":   scope.SpaceID,
			"library_id": scope.LibraryID,
		},
		"libraries": out,
	})
}

type createLibraryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SpaceID     *int64 `json:"space_id"`
}

func (s *Server) handleCreateLibrary(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	var req createLibraryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	lib, err := s.libraries.Create(r.Context(), ident, req.Name, req.Description, req.SpaceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toLibraryResponse(lib))
}

type updateLibraryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (s *Server) handleUpdateLibrary(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req updateLibraryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	lib, err := s.libraries.Update(r.Context(), ident, id, req.Name, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toLibraryResponse(lib))
}

type selectScopeRequest struct {
	SpaceID   *int64 `json:"space_id"`
	LibraryID *int64 `json:"library_id"`
}

func (s *Server) handleSelectScope(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	var req selectScopeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.libraries.Select(r.Context(), ident, req.SpaceID, req.LibraryID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transferLibraryRequest struct {
	NewOwnerID int64 `json:"new_owner_id"`
}

func (s *Server) handleTransferLibrary(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req transferLibraryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.libraries.Transfer(r.Context(), ident, id, req.NewOwnerID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type confirmRequest struct {
	ConfirmName string `json:"confirm_name"`
}

func (s *Server) handleArchiveLibrary(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.libraries.Archive(r.Context(), ident, id, req.ConfirmName); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnarchiveLibrary(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.libraries.Unarchive(r.Context(), ident, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteLibrary(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.libraries.Delete(r.Context(), ident, id, req.ConfirmName); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

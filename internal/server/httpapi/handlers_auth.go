package httpapi

import (
	"net/http"
	"time"

	"shelfkeeper/internal/server/services"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin verifies credentials through the external account subsystem,
// issues a session, and guarantees the user has a usable active library
// before the first scoped request arrives.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.verifier == nil {
		s.writeJSON(w, http.StatusNotImplemented, map[string]any{"error": "login is not configured"})
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	userID, err := s.verifier.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	token, session, err := s.sessions.Create(r.Context(), userID, services.SessionMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.libraries.EnsureDefault(r.Context(), userID); err != nil {
		s.logger.Error(r.Context(), "default library bootstrap failed", "user_id", userID, "error", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	s.writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": session.ExpiresAt.Format(time.RFC3339),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	if err := s.sessions.RevokeByToken(r.Context(), ident.UserID, tokenFromRequest(r)); err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleLogoutAll revokes every other session of the user, keeping the one
// that made the request (the password-change flow relies on this).
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ident, _ := IdentityFromContext(r.Context())

	n, err := s.sessions.RevokeAllForUser(r.Context(), ident.UserID, ident.SessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"revoked": n})
}

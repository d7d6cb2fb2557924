package httpapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shelfkeeper/internal/server/metrics"
	"shelfkeeper/internal/server/models"
	"shelfkeeper/internal/server/services"
)

type contextKey int

const (
	identityKey contextKey = iota
	scopeKey
)

// IdentityFromContext returns the authenticated identity attached by the
// session middleware.
func IdentityFromContext(ctx context.Context) (*models.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(*models.Identity)
	return ident, ok
}

// ScopeFromContext returns the resolved scope attached by the scope
// middleware.
func ScopeFromContext(ctx context.Context) (models.Scope, bool) {
	scope, ok := ctx.Value(scopeKey).(models.Scope)
	return scope, ok
}

// tokenFromRequest extracts the session token from the session cookie or,
// for non-browser callers, from the Authorization bearer header.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// requireSession authenticates the request and attaches the identity to the
// context. Missing, unknown, and expired tokens are indistinguishable 401s.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := s.sessions.GetUserByToken(r.Context(), tokenFromRequest(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, ident)))
	})
}

// resolveScope computes the request scope from the identity and any caller
// hints and attaches it to the context. Denials surface as a generic 403;
// the specific reason is recorded server-side by the resolver.
func (s *Server) resolveScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		scope, err := s.scope.Resolve(r.Context(), ident, hintsFromRequest(r), s.hintRoles)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), scopeKey, scope)))
	})
}

// hintsFromRequest extracts scope hints from the X-Space-Id/X-Library-Id
// headers or the space_id/library_id query parameters. Headers win.
func hintsFromRequest(r *http.Request) services.ScopeHints {
	var hints services.ScopeHints
	hints.SpaceID = hintValue(r, "X-Space-Id", "space_id")
	hints.LibraryID = hintValue(r, "X-Library-Id", "library_id")
	return hints
}

func hintValue(r *http.Request, header, query string) *int64 {
	raw := r.Header.Get(header)
	if raw == "" {
		raw = r.URL.Query().Get(query)
	}
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Unparseable hints still count as "supplied": a sentinel value
		// the resolver can never satisfy beats silently ignoring them.
		id = -1
	}
	return &id
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withMetrics records request duration by method and status code.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.RequestDuration.
			WithLabelValues(r.Method, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/camden-git/titlesnap/services"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// SessionContextKey holds the *services.Session for the request.
	SessionContextKey ContextKey = "session"

	SessionHeader = "X-Session-ID"

	maxSessionIDLength = 128
)

// SessionMiddleware resolves the caller's session from the X-Session-ID header,
// creating one when the header is absent, and echoes the id back.
func SessionMiddleware(sessions *services.Sessions, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(SessionHeader))
		if len(id) > maxSessionIDLength {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, SessionHeader+" is too long")
			return
		}

		session := sessions.Get(id)
		w.Header().Set(SessionHeader, session.ID)

		ctx := context.WithValue(r.Context(), SessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFromContext returns the session placed by SessionMiddleware.
func SessionFromContext(ctx context.Context) (*services.Session, bool) {
	s, ok := ctx.Value(SessionContextKey).(*services.Session)
	return s, ok && s != nil
}

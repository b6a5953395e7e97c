package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/titlesnap/services"
)

type SessionHandler struct {
	Sessions *services.Sessions
}

// GetSession returns the last committed state of a session.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	sess, ok := h.Sessions.Lookup(id)
	if !ok {
		WriteAPIError(w, http.StatusNotFound, CodeSessionNotFound, "no session with id '"+id+"'")
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

package api

import (
	"net/http"

	"github.com/gorplabs/gorp/internal/session"
)

// health is a simple liveness endpoint for Docker/Kubernetes probes.
// Returns 200 OK with {"status":"ok"}.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness reports whether the server can take traffic. The session store
// is in-process, so readiness also carries its current size for operators.
func readiness(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if store == nil {
			writeError(w, http.StatusServiceUnavailable, "not_ready", "session store not configured")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ready",
			"sessions": store.Len(),
		})
	}
}

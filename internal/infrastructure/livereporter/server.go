package livereporter

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// Handler returns an http.Handler exposing the reporter's websocket endpoint
// and a liveness probe, routed with gorilla/mux in the teacher's
// cmd/server router-construction style (one *mux.Router per subsystem,
// composed by the host's top-level server).
func (r *Reporter) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/ws/events", r.hub.handleWebSocket).Methods(http.MethodGet)
	router.HandleFunc("/healthz", r.handleHealth).Methods(http.MethodGet)
	return router
}

func (r *Reporter) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":             "ok",
		"active_connections": r.ActiveConnections(),
	})
}

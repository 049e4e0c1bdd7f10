package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires every endpoint behind the CORS middleware.
func NewRouter(h *Handler, ws *WSHandler) http.Handler {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	// mux does not run middleware for these two.
	r.MethodNotAllowedHandler = corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}))
	r.NotFoundHandler = corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	}))

	r.HandleFunc("/api/submit-scorecard", h.SubmitScorecard).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/report", h.Report).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/health", h.Health).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/quiz", h.Quiz).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/score", h.Score).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/log-error", h.LogError).Methods("POST", "OPTIONS")

	if ws != nil {
		r.HandleFunc("/ws/submit", ws.ServeWS).Methods("GET")
	}

	// Liveness only; /api/health checks dependencies.
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods("GET")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

package http

import (
	"net/http"

	"assessment-service/internal/auth"
	"assessment-service/internal/metrics"
)

// NewRouter wires health, metrics and the authenticated websocket endpoint.
func NewRouter(ws *WSHandler, verifier *auth.Verifier, m *metrics.Prometheus) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/ws", auth.Middleware(verifier)(http.HandlerFunc(ws.ServeWS)))
	if m == nil {
		return mux
	}
	mux.Handle("/metrics", m.Handler())
	return m.Middleware(mux)
}

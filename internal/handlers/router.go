package handlers

import (
	"net/http"

	"brightsteps/internal/metrics"
)

// NewRouter wires the API routes and the metrics endpoint behind the logging
// middleware. m may be nil, which leaves /metrics unregistered.
func NewRouter(api *APIHandler, mw *Middleware, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	api.RegisterRoutes(mux, mw)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}
	return mw.Logging(mux)
}

package mcpserver

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rishitank/context-engine-sub000/internal/logging"
)

// HTTPHandler returns the POST /mcp handler: decode one JSON-RPC request
// from the body, dispatch through srv, write the encoded response. Mirrors
// the teacher's HTTPTransport request/response shape, inverted to the
// server role.
func HTTPHandler(srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxLineBytes))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		resp := srv.Handle(r.Context(), body)
		w.Header().Set("Content-Type", "application/json")
		if resp == nil {
			// Notification: valid JSON-RPC 2.0 behavior over HTTP is to
			// acknowledge with no body.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if _, err := w.Write(resp); err != nil {
			logging.DispatcherWarn("failed writing mcp http response: %v", err)
		}
	}
}

// MetricsHandler serves a JSON snapshot of tool call counters for the
// optional --metrics HTTP endpoint.
func MetricsHandler(srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		data, err := json.MarshalIndent(srv.Metrics().Snapshot(), "", "  ")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(data)
	}
}

// NewMux builds the HTTP mux for the transport: POST /mcp, and GET /metrics
// when metricsEnabled is true.
func NewMux(srv *Server, metricsEnabled bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", HTTPHandler(srv))
	if metricsEnabled {
		mux.HandleFunc("/metrics", MetricsHandler(srv))
	}
	return mux
}

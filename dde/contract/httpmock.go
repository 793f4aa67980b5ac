package contract

import (
	"encoding/json"
	"net/http"
	"strings"
)

// MockHandler serves activated mock payloads over HTTP so consumers can
// address a producer's interface exactly as they would the real one.
//
// Routes:
//
//	GET /contracts                 → JSON list of registered contract IDs
//	GET /contracts/{id}/mock       → the active mock payload, 404 if none
//	GET /contracts/{id}            → the contract definition
//
// Responses are JSON. The handler is read-only; activation stays with the
// registry owner.
//
// Example:
//
//	handler := contract.NewMockHandler(registry)
//	srv := httptest.NewServer(handler)
//	resp, _ := http.Get(srv.URL + "/contracts/c1/mock")
type MockHandler struct {
	registry *Registry
}

// NewMockHandler creates an HTTP handler backed by the given registry.
func NewMockHandler(registry *Registry) *MockHandler {
	return &MockHandler{registry: registry}
}

// ServeHTTP implements http.Handler.
func (h *MockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "only GET is supported")
		return
	}

	path := strings.Trim(r.URL.Path, "/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] != "contracts" {
		writeJSONError(w, http.StatusNotFound, "unknown route")
		return
	}

	switch {
	case len(parts) == 1:
		writeJSON(w, http.StatusOK, map[string]any{"contracts": h.registry.IDs()})

	case len(parts) == 2:
		c, err := h.registry.Get(parts[1])
		if err != nil {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, c)

	case len(parts) == 3 && parts[2] == "mock":
		payload, ok := h.registry.MockFor(parts[1])
		if !ok {
			writeJSONError(w, http.StatusNotFound, "no active mock for contract "+parts[1])
			return
		}
		writeJSON(w, http.StatusOK, payload)

	default:
		writeJSONError(w, http.StatusNotFound, "unknown route")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
